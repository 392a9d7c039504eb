// internal/handlers/game_server.go
package handlers

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"flipseven/internal/game"
	"flipseven/internal/lobby"
	"flipseven/internal/models"
)

// GameServer holds the in-memory lobby and game stores and creates new
// games from lobbies.
type GameServer struct {
	Mutex      sync.Mutex
	LobbyStore *lobby.LobbyStore
	GameStore  *game.GameStore
}

func NewGameServer() *GameServer {
	return &GameServer{
		LobbyStore: lobby.NewLobbyStore(),
		GameStore:  game.NewGameStore(),
	}
}

// CreateGameInstance builds a Flip7Game from lobby connections without
// holding the lobby lock, attaches the end-of-game callback, and starts it.
// Returns nil if there are not enough players.
func (gs *GameServer) CreateGameInstance(ctx context.Context, lobbyID, hostID uuid.UUID, houseRules game.HouseRules, playersToStart []*lobby.LobbyConnection) *game.Flip7Game {
	g := game.NewFlip7Game()
	g.LobbyID = lobbyID
	g.HouseRules = houseRules

	var players []*models.Player
	for _, conn := range playersToStart {
		players = append(players, &models.Player{
			ID:        conn.UserID,
			Connected: true,
			Hand:      []*models.Card{},
			User: &models.User{
				ID:       conn.UserID,
				Username: conn.Username,
			},
		})
	}
	if len(players) < 2 {
		log.Printf("Lobby %s: cannot start game, not enough players (%d).", lobbyID, len(players))
		return nil
	}
	g.Players = players

	g.OnGameEnd = func(endedLobbyID uuid.UUID, winner uuid.UUID, scores map[uuid.UUID]int) {
		lobInstance, exists := gs.LobbyStore.GetLobby(endedLobbyID)
		if !exists {
			gs.GameStore.DeleteGame(g.ID)
			return
		}

		lobInstance.Mu.Lock()
		lobInstance.InGame = false
		lobInstance.GameID = uuid.Nil
		for uid := range lobInstance.Connections {
			lobInstance.ReadyStates[uid] = false
		}
		statusPayload := lobInstance.GetLobbyStatusPayloadUnsafe()

		resultMsg := map[string]interface{}{
			"type":         "game_results",
			"winner":       winner.String(),
			"scores":       map[string]int{},
			"lobby_status": statusPayload,
		}
		for pid, sc := range scores {
			resultMsg["scores"].(map[string]int)[pid.String()] = sc
		}
		lobInstance.Mu.Unlock()

		lobInstance.BroadcastAll(resultMsg)

		gs.GameStore.DeleteGame(g.ID)
	}

	gs.GameStore.AddGame(g)
	g.Start()

	return g
}

// NewFlip7GameFromLobby builds a game from a lobby's live connections.
// Used by the auto-start countdown path, where the lobby lock is not held.
func (gs *GameServer) NewFlip7GameFromLobby(ctx context.Context, lob *lobby.Lobby) *game.Flip7Game {
	lob.Mu.Lock()
	lobbyID := lob.ID
	hostID := lob.HostUserID
	houseRules := lob.HouseRules
	conns := lob.GetConnectionsUnsafe()
	lob.Mu.Unlock()

	return gs.CreateGameInstance(ctx, lobbyID, hostID, houseRules, conns)
}
