package game

import (
	"sync"

	"github.com/google/uuid"
)

type GameStore struct {
	mu    sync.Mutex
	games map[uuid.UUID]*Flip7Game
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[uuid.UUID]*Flip7Game),
	}
}

func (s *GameStore) AddGame(game *Flip7Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = game
}

func (s *GameStore) GetGame(id uuid.UUID) (*Flip7Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, exists := s.games[id]
	return g, exists
}

func (s *GameStore) DeleteGame(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}

// GetGameByLobbyID returns the game spawned from a given lobby, or nil.
func (s *GameStore) GetGameByLobbyID(lobbyID uuid.UUID) *Flip7Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.games {
		if g.LobbyID == lobbyID {
			return g
		}
	}
	return nil
}
