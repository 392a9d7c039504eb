// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flipseven/internal/game"
	"flipseven/internal/models"
)

// GameMessage represents the structure for incoming WebSocket messages during the game phase.
type GameMessage struct {
	Type string `json:"type"`

	// Payload carries action-specific fields, e.g. {"target": "<uuid>"} for
	// action_choose_target.
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// GameWSHandler upgrades the HTTP connection to WebSocket for a specific game
// instance. It authenticates the user, verifies they belong to the game,
// registers the connection, and then starts the read loop.
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/game/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "Missing game_id in path (/game/ws/{game_id})", http.StatusBadRequest)
			return
		}
		gameID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "Invalid game_id format", http.StatusBadRequest)
			return
		}

		g, ok := gs.GameStore.GetGame(gameID)
		if !ok {
			http.Error(w, "Game not found", http.StatusNotFound)
			return
		}
		if g.GameOver {
			http.Error(w, "Game has already ended", http.StatusGone)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for game %s: %v", gameID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "game" {
			c.Close(BadSubprotocolError, "Client must use the 'game' subprotocol.")
			return
		}

		userID, err := EnsureEphemeralUser(w, r)
		if err != nil {
			logger.Warnf("User authentication failed for game %s: %v", gameID, err)
			c.Close(websocket.StatusPolicyViolation, "Authentication failed.")
			return
		}
		logger.Infof("User %s authenticated for game %s", userID, gameID)

		// Verify the authenticated user is a player in this specific game.
		isPlayerInGame := false
		g.Mu.Lock()
		for _, p := range g.Players {
			if p.ID == userID {
				isPlayerInGame = true
				break
			}
		}
		g.Mu.Unlock()
		if !isPlayerInGame {
			c.Close(websocket.StatusPolicyViolation, "You are not a player in this game.")
			return
		}

		g.Mu.Lock()
		if g.BroadcastFn == nil {
			g.BroadcastFn = createBroadcastFunc(g, logger)
		}
		if g.BroadcastToPlayerFn == nil {
			g.BroadcastToPlayerFn = createBroadcastToPlayerFunc(g, logger)
		}
		g.Mu.Unlock()

		// Updates the player's connection status and sends a state snapshot.
		g.HandleReconnect(userID, c)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		readGameMessages(ctx, c, g, userID, logger)

		logger.Infof("Player %s WebSocket read loop exited for game %s.", userID, gameID)
		g.HandleDisconnect(userID)
	}
}

// createBroadcastFunc returns a function suitable for Flip7Game.BroadcastFn.
// It marshals the event and sends it asynchronously to all connected players.
func createBroadcastFunc(g *game.Flip7Game, logger *logrus.Logger) func(ev game.GameEvent) {
	return func(ev game.GameEvent) {
		// Called while the game lock is held; snapshot the conn values here
		// so the writer goroutine never touches Player fields that
		// HandleDisconnect may be resetting under the lock.
		type target struct {
			playerID uuid.UUID
			conn     *websocket.Conn
		}
		targets := []target{}
		for _, p := range g.Players {
			if p.Connected && p.Conn != nil {
				targets = append(targets, target{playerID: p.ID, conn: p.Conn})
			}
		}

		msgBytes, err := json.Marshal(ev)
		if err != nil {
			logger.Errorf("Failed to marshal broadcast event (%s) for game %s: %v", ev.Type, g.ID, err)
			return
		}

		go func(targets []target, data []byte, gameID uuid.UUID) {
			for _, t := range targets {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				err := t.conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					logger.Warnf("Failed to write broadcast message to player %s in game %s: %v", t.playerID, gameID, err)
				}
			}
		}(targets, msgBytes, g.ID)
	}
}

// createBroadcastToPlayerFunc returns a function suitable for Flip7Game.BroadcastToPlayerFn.
func createBroadcastToPlayerFunc(g *game.Flip7Game, logger *logrus.Logger) func(targetPlayerID uuid.UUID, ev game.GameEvent) {
	return func(targetPlayerID uuid.UUID, ev game.GameEvent) {
		// Also called while the game lock is held.
		var targetConn *websocket.Conn
		for _, pl := range g.Players {
			if pl.ID == targetPlayerID {
				if pl.Connected && pl.Conn != nil {
					targetConn = pl.Conn
				}
				break
			}
		}

		if targetConn != nil {
			msgBytes, err := json.Marshal(ev)
			if err != nil {
				logger.Errorf("Failed to marshal private event (%s) for player %s in game %s: %v", ev.Type, targetPlayerID, g.ID, err)
				return
			}
			go func(conn *websocket.Conn, data []byte, playerID uuid.UUID, gameID uuid.UUID) {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					logger.Warnf("Failed to write private message to player %s in game %s: %v", playerID, gameID, err)
				}
			}(targetConn, msgBytes, targetPlayerID, g.ID)
		}
	}
}

// readGameMessages continuously reads messages from a client's WebSocket
// connection and routes them to the game logic. It exits on read error or
// context cancellation.
func readGameMessages(ctx context.Context, c *websocket.Conn, g *game.Flip7Game, userID uuid.UUID, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for user %s in game %s.", userID, g.ID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("WebSocket context canceled for user %s in game %s.", userID, g.ID)
			} else {
				logger.Warnf("Error reading from WebSocket for user %s in game %s: %v (Status: %d)", userID, g.ID, err, status)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var msg GameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("Invalid JSON received from user %s in game %s: %v", userID, g.ID, err)
			sendWsError(ctx, c, "Invalid JSON format.")
			continue
		}

		logger.Debugf("Received action '%s' from user %s in game %s.", msg.Type, userID, g.ID)

		g.Mu.Lock()

		if g.GameOver {
			g.Mu.Unlock()
			continue
		}

		switch msg.Type {
		case "action_hit", "action_stay", "action_choose_target":
			gameAction := models.GameAction{
				ActionType: msg.Type,
				Payload:    make(map[string]interface{}),
			}
			if msg.Payload != nil {
				gameAction.Payload = msg.Payload
			}
			g.HandlePlayerAction(userID, gameAction)

		case "ping":
			g.Mu.Unlock()
			sendWsMessage(ctx, c, map[string]string{"type": "pong"})
			g.Mu.Lock()

		default:
			logger.Warnf("Unknown action type '%s' from user %s in game %s.", msg.Type, userID, g.ID)
			sendWsError(ctx, c, fmt.Sprintf("Unknown action type: %s", msg.Type))
		}

		g.Mu.Unlock()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// sendWsMessage marshals a message and sends it to the WebSocket client.
func sendWsMessage(ctx context.Context, c *websocket.Conn, message interface{}) {
	if c == nil {
		log.Println("Error: Attempted to send WebSocket message on nil connection.")
		return
	}
	msgBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling WebSocket message: %v", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Write(writeCtx, websocket.MessageText, msgBytes); err != nil {
		status := websocket.CloseStatus(err)
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
			log.Printf("Error writing WebSocket message: %v (Status: %d)", err, status)
		}
	}
}

// sendWsError sends a structured error message to the client.
func sendWsError(ctx context.Context, c *websocket.Conn, errorMsg string) {
	sendWsMessage(ctx, c, map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	})
}
