// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flipseven/internal/lobby"
)

var GameServerForLobbyWS *GameServer

// LobbyWSHandler sets up the ephemeral in-memory WS flow.
func LobbyWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	GameServerForLobbyWS = gs
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/lobby/ws/"), "/")
		if len(pathParts) < 1 {
			http.Error(w, "missing lobby_id", http.StatusBadRequest)
			return
		}
		lobbyUUID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "invalid lobby_id", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"lobby"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "lobby" {
			c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
			return
		}

		userUUID, err := EnsureEphemeralUser(w, r)
		if err != nil {
			logger.Warnf("User authentication failed for lobby %s: %v", lobbyUUID, err)
			c.Close(websocket.StatusPolicyViolation, "Authentication failed.")
			return
		}

		lob, exists := gs.LobbyStore.GetLobby(lobbyUUID)
		if !exists {
			c.Close(InvalidLobbyIDError, "lobby does not exist")
			return
		}

		lob.Mu.Lock()
		_, isInvitedOrPresent := lob.Users[userUUID]
		lobbyType := lob.Type
		lob.Mu.Unlock()

		if lobbyType == "private" && !isInvitedOrPresent && lob.HostUserID != userUUID {
			c.Close(websocket.StatusPolicyViolation, "user not invited to private lobby")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		conn := &lobby.LobbyConnection{
			UserID:  userUUID,
			Cancel:  cancel,
			OutChan: make(chan map[string]interface{}, 10),
			IsHost:  lob.HostUserID == userUUID,
		}

		if err := lob.AddConnection(userUUID, conn); err != nil {
			logger.Warnf("failed AddConnection: %v", err)
			c.Close(websocket.StatusPolicyViolation, fmt.Sprintf("AddConnection error: %v", err))
			cancel()
			return
		}

		logger.Infof("User %v (%s) connected to lobby %v", userUUID, remoteAddr, lobbyUUID)

		go writePump(ctx, c, conn, logger)

		readPump(ctx, c, lob, conn, logger, lobbyUUID)

		logger.Infof("User %v readPump exited for lobby %v.", userUUID, lobbyUUID)
		lob.RemoveUser(userUUID)
	}
}

// readPump handles incoming messages from the lobby websocket. It acquires the
// lobby lock before calling handleLobbyMessage and releases it afterwards,
// unless the handler signals otherwise (e.g. leave_lobby).
func readPump(ctx context.Context, c *websocket.Conn, lob *lobby.Lobby, conn *lobby.LobbyConnection, logger *logrus.Logger, lobbyID uuid.UUID) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("Lobby %s: WebSocket closed normally for user %v.", lobbyID, conn.UserID)
			} else if !strings.Contains(err.Error(), "context canceled") {
				logger.Warnf("Lobby %s: read error for user %v: %v", lobbyID, conn.UserID, err)
			}
			return
		}

		if typ != websocket.MessageText {
			continue
		}

		var packet map[string]interface{}
		if err := json.Unmarshal(msg, &packet); err != nil {
			conn.WriteError("Invalid JSON format")
			continue
		}

		lockReleasedByHandler := false
		shouldStartCountdown := false

		lob.Mu.Lock()

		currentConn, stillConnected := lob.Connections[conn.UserID]
		if !stillConnected || currentConn != conn {
			lob.Mu.Unlock()
			continue
		}

		handleLobbyMessage(packet, lob, conn, logger, &shouldStartCountdown, func() {
			lob.Mu.Unlock()
			lockReleasedByHandler = true
		})

		if !lockReleasedByHandler {
			lob.Mu.Unlock()
		}

		if shouldStartCountdown {
			lob.Mu.Lock()
			lob.StartCountdown(10, func(l *lobby.Lobby) {
				logger.Infof("Lobby %s: auto-start countdown finished.", l.ID)
				if GameServerForLobbyWS == nil {
					logger.Errorf("Lobby %s: no game server configured, cannot start game.", l.ID)
					return
				}
				g := GameServerForLobbyWS.NewFlip7GameFromLobby(context.Background(), l)
				if g == nil {
					return
				}
				l.Mu.Lock()
				l.InGame = true
				l.GameID = g.ID
				l.BroadcastAllUnsafe(map[string]interface{}{
					"type":    "game_start",
					"game_id": g.ID.String(),
				})
				l.Mu.Unlock()
			})
			lob.Mu.Unlock()
		}
	}
}

// handleLobbyMessage interprets the "type" field for ephemeral lobby logic.
// Assumes the lobby lock is HELD by the caller (readPump). unlockCallback
// releases it early for long operations like game creation.
func handleLobbyMessage(packet map[string]interface{}, lob *lobby.Lobby, senderConn *lobby.LobbyConnection, logger *logrus.Logger, shouldStartCountdown *bool, unlockCallback func()) {
	action, _ := packet["type"].(string)

	switch action {
	case "ready":
		if lob.MarkUserReadyUnsafe(senderConn.UserID) {
			*shouldStartCountdown = true
		}
	case "unready":
		lob.MarkUserUnreadyUnsafe(senderConn.UserID)
	case "invite":
		userIDStr, _ := packet["userID"].(string)
		userToAdd, err := uuid.Parse(userIDStr)
		if err != nil {
			senderConn.WriteError("Invalid userID format for invite")
			return
		}
		lob.InviteUser(userToAdd)
	case "leave_lobby":
		userID := senderConn.UserID
		unlockCallback()
		lob.RemoveUser(userID) // manages its own lock
		return
	case "chat":
		msg, _ := packet["msg"].(string)
		if msg != "" {
			lob.BroadcastChat(senderConn.UserID, msg)
		}
	case "update_rules":
		if !senderConn.IsHost {
			senderConn.WriteError("Only the host can update rules")
			return
		}
		if rulesData, ok := packet["rules"].(map[string]interface{}); ok {
			if err := lob.UpdateUnsafe(rulesData); err != nil {
				logger.Warnf("Lobby %s: error applying rule update: %v", lob.ID, err)
				senderConn.WriteError("Failed to apply rule updates.")
			}
		} else {
			senderConn.WriteError("Invalid payload for update_rules")
		}
	case "start_game":
		if !senderConn.IsHost {
			senderConn.WriteError("Only the host can force start")
			return
		}
		if lob.InGame {
			senderConn.WriteError("Game already in progress")
			return
		}
		if !lob.AreAllReadyUnsafe() {
			senderConn.WriteError("Not all users are ready")
			return
		}
		lob.CancelCountdownUnsafe()

		lobbyID := lob.ID
		hostID := lob.HostUserID
		houseRules := lob.HouseRules
		playersToStart := lob.GetConnectionsUnsafe()

		unlockCallback()

		if GameServerForLobbyWS == nil {
			logger.Errorf("Lobby %s: no game server configured, cannot start game.", lobbyID)
			return
		}

		g := GameServerForLobbyWS.CreateGameInstance(context.Background(), lobbyID, hostID, houseRules, playersToStart)
		if g == nil {
			logger.Errorf("Lobby %s: failed to create game instance.", lobbyID)
			return
		}

		lob.Mu.Lock()
		if _, stillConnected := lob.Connections[senderConn.UserID]; !stillConnected {
			GameServerForLobbyWS.GameStore.DeleteGame(g.ID)
			lob.Mu.Unlock()
			return
		}
		if lob.InGame {
			GameServerForLobbyWS.GameStore.DeleteGame(g.ID)
			lob.Mu.Unlock()
			return
		}

		lob.InGame = true
		lob.GameID = g.ID
		lob.BroadcastAllUnsafe(map[string]interface{}{
			"type":    "game_start",
			"game_id": g.ID.String(),
		})
		lob.Mu.Unlock()

	default:
		senderConn.WriteError(fmt.Sprintf("Unknown action type: %s", action))
	}
}

// writePump drains the connection's OutChan onto the websocket and sends
// periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *lobby.LobbyConnection, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Lobby: failed to marshal outgoing msg for user %v: %v", conn.UserID, err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Lobby: failed to write to websocket for user %v: %v", conn.UserID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Lobby: ping failed for user %v: %v. Assuming disconnect.", conn.UserID, err)
				return
			}
		}
	}
}
