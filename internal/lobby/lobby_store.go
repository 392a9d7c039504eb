// internal/lobby/lobby_store.go
package lobby

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// LobbyStore manages active ephemeral lobbies in memory.
type LobbyStore struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*Lobby
}

// NewLobbyStore initializes and returns an empty LobbyStore.
func NewLobbyStore() *LobbyStore {
	return &LobbyStore{
		lobbies: make(map[uuid.UUID]*Lobby),
	}
}

// AddLobby adds a new lobby instance to the store. Configure the lobby's
// OnEmpty callback before adding it so it cleans up when the last user leaves.
func (s *LobbyStore) AddLobby(lobby *Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lobbies[lobby.ID]; exists {
		log.Printf("LobbyStore: attempted to add lobby %s which already exists.", lobby.ID)
		return
	}
	s.lobbies[lobby.ID] = lobby
}

// DeleteLobby removes a lobby instance from the store by its ID.
// This is typically called via the lobby's OnEmpty callback.
func (s *LobbyStore) DeleteLobby(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, id)
}

// GetLobby retrieves a lobby instance from the store by its ID.
func (s *LobbyStore) GetLobby(id uuid.UUID) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	return l, ok
}

// GetLobbies returns a copy of the map containing all active lobbies.
// Returning a copy prevents races if the caller iterates while another
// goroutine modifies the store.
func (s *LobbyStore) GetLobbies() map[uuid.UUID]*Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobbiesCopy := make(map[uuid.UUID]*Lobby, len(s.lobbies))
	for k, v := range s.lobbies {
		lobbiesCopy[k] = v
	}
	return lobbiesCopy
}
