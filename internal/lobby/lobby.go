// internal/lobby/lobby.go
package lobby

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"flipseven/internal/database"
	"flipseven/internal/game"
)

// Lobby is an ephemeral grouping of users with chat, rules, ready states, etc.
type Lobby struct {
	ID         uuid.UUID `json:"id"`
	HostUserID uuid.UUID `json:"hostUserID"`
	Type       string    `json:"type"`
	Ranked     bool      `json:"ranked"`

	// Users maps userID -> whether they've joined (true) or only invited (false).
	Users map[uuid.UUID]bool `json:"-"`

	// Connections holds the actual live WebSocket connections for joined users.
	Connections map[uuid.UUID]*LobbyConnection `json:"-"`
	// ReadyStates holds userID -> bool for "is ready".
	ReadyStates map[uuid.UUID]bool `json:"-"`

	GameID uuid.UUID `json:"gameId,omitempty"`
	InGame bool      `json:"inGame"`

	CountdownTimer *time.Timer `json:"-"`

	HouseRules game.HouseRules `json:"houseRules"`

	LobbySettings LobbySettings `json:"lobbySettings"`

	// OnEmpty is called once the last user leaves, typically wired by the
	// store to delete the lobby.
	OnEmpty func(lobbyID uuid.UUID) `json:"-"`

	Mu sync.Mutex `json:"-"`
}

// LobbyConnection is a single user's presence in the lobby.
type LobbyConnection struct {
	UserID   uuid.UUID
	Username string
	Cancel   func()
	OutChan  chan map[string]interface{}
	IsHost   bool
}

// Write pushes a message onto the user's OutChan non-blockingly.
func (conn *LobbyConnection) Write(msg map[string]interface{}) {
	select {
	case conn.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		log.Printf("Lobby write: OutChan for user %s closed or full, dropped %q.", conn.UserID, msgType)
	}
}

// WriteError is a convenience to send an error object.
func (conn *LobbyConnection) WriteError(msg string) {
	conn.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

// LobbySettings holds settings specific to the lobby behavior.
type LobbySettings struct {
	AutoStart bool `json:"autoStart"`
}

// NewLobbyWithDefaults creates an ephemeral lobby with default house rules.
func NewLobbyWithDefaults(hostID uuid.UUID) *Lobby {
	lobbyID, _ := uuid.NewRandom()
	return &Lobby{
		ID:          lobbyID,
		HostUserID:  hostID,
		Type:        "private",
		Users:       make(map[uuid.UUID]bool),
		Connections: make(map[uuid.UUID]*LobbyConnection),
		ReadyStates: make(map[uuid.UUID]bool),

		HouseRules: game.DefaultHouseRules(),

		LobbySettings: LobbySettings{
			AutoStart: true,
		},
	}
}

// InviteUser marks userID as invited but not joined. Assumes lock is held.
func (lobby *Lobby) InviteUser(userID uuid.UUID) {
	if _, exists := lobby.Users[userID]; !exists {
		lobby.Users[userID] = false
		lobby.BroadcastAllUnsafe(map[string]interface{}{
			"type":      "lobby_invite",
			"invitedID": userID.String(),
		})
	}
}

// AddConnection registers a live connection and resets the user's ready state.
// Acquires the lock.
func (lobby *Lobby) AddConnection(userID uuid.UUID, conn *LobbyConnection) error {
	lobby.Mu.Lock()

	joined, exists := lobby.Users[userID]
	if !exists {
		if lobby.Type != "private" {
			lobby.Users[userID] = true
		} else {
			lobby.Mu.Unlock()
			return fmt.Errorf("user %s not invited to the private lobby %s", userID, lobby.ID)
		}
	} else if joined {
		// Replacing an existing connection: tear the old one down first.
		if oldConn, ok := lobby.Connections[userID]; ok && oldConn != conn {
			close(oldConn.OutChan)
			if oldConn.Cancel != nil {
				oldConn.Cancel()
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	user, err := database.GetUserByID(ctx, userID)
	cancel()
	if err != nil {
		conn.Username = fmt.Sprintf("User_%s", userID.String()[:4])
	} else {
		conn.Username = user.Username
	}

	lobby.Connections[userID] = conn
	lobby.ReadyStates[userID] = false
	lobby.Users[userID] = true
	seatPos := len(lobby.Connections) - 1

	log.Printf("Lobby %s: user %s (%s) connected.", lobby.ID, userID, conn.Username)

	statePayload := lobby.getLobbyStatePayloadUnsafe(userID)
	joinPayload := lobby.getLobbyJoinPayloadUnsafe(userID)

	lobby.Mu.Unlock()

	go lobby.persistParticipant(userID, seatPos)

	go func() {
		conn.Write(statePayload)
		lobby.BroadcastAll(joinPayload)
	}()

	return nil
}

// persistParticipant records the user's seat in lobby_participants, best
// effort. Rejoining users already have a row.
func (lobby *Lobby) persistParticipant(userID uuid.UUID, seatPos int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	already, err := database.IsUserInLobby(ctx, lobby.ID, userID)
	if err != nil {
		if err != database.ErrNoDB {
			log.Printf("Lobby %s: participant lookup for %s failed: %v", lobby.ID, userID, err)
		}
		return
	}
	if already {
		return
	}
	if err := database.InsertParticipant(ctx, lobby.ID, userID, seatPos); err != nil {
		log.Printf("Lobby %s: failed to persist participant %s: %v", lobby.ID, userID, err)
	}
}

// RemoveUser drops a user's connection and ready state. If the lobby empties,
// the OnEmpty callback fires. Acquires the lock.
func (lobby *Lobby) RemoveUser(userID uuid.UUID) {
	lobby.Mu.Lock()

	conn, connExists := lobby.Connections[userID]
	if !connExists {
		delete(lobby.Users, userID)
		lobby.Mu.Unlock()
		return
	}

	go func(ch chan map[string]interface{}, cancelFunc func()) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Lobby %s: recovered closing OutChan for user %s: %v", lobby.ID, userID, r)
			}
		}()
		close(ch)
		if cancelFunc != nil {
			cancelFunc()
		}
	}(conn.OutChan, conn.Cancel)

	delete(lobby.Users, userID)
	delete(lobby.Connections, userID)
	delete(lobby.ReadyStates, userID)

	leavePayload := lobby.getLobbyLeavePayloadUnsafe(userID)
	isEmpty := len(lobby.Connections) == 0
	onEmptyCallback := lobby.OnEmpty
	if lobby.CountdownTimer != nil {
		lobby.CancelCountdownUnsafe()
	}

	lobby.Mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.RemoveUserFromLobby(ctx, userID, lobby.ID); err != nil && err != database.ErrNoDB {
			log.Printf("Lobby %s: failed to remove participant %s: %v", lobby.ID, userID, err)
		}
	}()

	lobby.BroadcastAll(leavePayload)

	if isEmpty && onEmptyCallback != nil {
		log.Printf("Lobby %s is now empty.", lobby.ID)
		onEmptyCallback(lobby.ID)
	}
}

// StartCountdownUnsafe begins a start-of-game countdown. Assumes lock is held.
func (lobby *Lobby) StartCountdownUnsafe(seconds int, callback func(*Lobby)) bool {
	if lobby.InGame || lobby.CountdownTimer != nil {
		return false
	}
	if len(lobby.Connections) < 2 {
		return false
	}

	log.Printf("Lobby %s: starting %d second countdown.", lobby.ID, seconds)
	lobby.BroadcastAllUnsafe(map[string]interface{}{
		"type":    "lobby_countdown_start",
		"seconds": seconds,
	})

	var timer *time.Timer
	timer = time.AfterFunc(time.Duration(seconds)*time.Second, func() {
		lobby.Mu.Lock()
		// Only fire if this timer is still the current one.
		if lobby.CountdownTimer == timer {
			lobby.CountdownTimer = nil
			lobby.Mu.Unlock()
			callback(lobby)
		} else {
			lobby.Mu.Unlock()
		}
	})
	lobby.CountdownTimer = timer
	return true
}

// StartCountdown starts a countdown. Assumes caller holds the lock.
func (lobby *Lobby) StartCountdown(seconds int, callback func(*Lobby)) bool {
	return lobby.StartCountdownUnsafe(seconds, callback)
}

// CancelCountdownUnsafe stops any existing countdown. Assumes lock is held.
func (lobby *Lobby) CancelCountdownUnsafe() {
	if lobby.CountdownTimer != nil {
		if lobby.CountdownTimer.Stop() {
			lobby.CountdownTimer = nil
			lobby.BroadcastAllUnsafe(map[string]interface{}{
				"type": "lobby_countdown_cancel",
			})
		} else {
			lobby.CountdownTimer = nil
		}
	}
}

// MarkUserReadyUnsafe sets a user's ready state to true. Assumes lock is held.
// Returns true if an auto-start countdown should begin.
func (lobby *Lobby) MarkUserReadyUnsafe(userID uuid.UUID) bool {
	conn, ok := lobby.Connections[userID]
	if !ok {
		return false
	}
	if lobby.ReadyStates[userID] {
		return false
	}

	lobby.ReadyStates[userID] = true
	lobby.BroadcastAllUnsafe(map[string]interface{}{
		"type":     "ready_update",
		"user_id":  userID.String(),
		"username": conn.Username,
		"is_ready": true,
	})

	allReady := lobby.AreAllReadyUnsafe()
	return allReady && lobby.LobbySettings.AutoStart && !lobby.InGame && len(lobby.Connections) >= 2
}

// MarkUserUnreadyUnsafe sets a user's ready state to false and cancels any
// countdown. Assumes lock is held.
func (lobby *Lobby) MarkUserUnreadyUnsafe(userID uuid.UUID) {
	conn, ok := lobby.Connections[userID]
	if !ok {
		return
	}
	if !lobby.ReadyStates[userID] {
		return
	}

	lobby.ReadyStates[userID] = false
	lobby.BroadcastAllUnsafe(map[string]interface{}{
		"type":     "ready_update",
		"user_id":  userID.String(),
		"username": conn.Username,
		"is_ready": false,
	})

	lobby.CancelCountdownUnsafe()
}

// AreAllReadyUnsafe checks readiness without acquiring lock. Assumes lock is held.
func (lobby *Lobby) AreAllReadyUnsafe() bool {
	if len(lobby.Connections) < 2 {
		return false
	}
	for userID := range lobby.Connections {
		if !lobby.ReadyStates[userID] {
			return false
		}
	}
	return true
}

// AreAllReady checks readiness (public method, acquires lock).
func (lobby *Lobby) AreAllReady() bool {
	lobby.Mu.Lock()
	defer lobby.Mu.Unlock()
	return lobby.AreAllReadyUnsafe()
}

// BroadcastAllUnsafe sends msg to every connection. Assumes lock is held.
func (lobby *Lobby) BroadcastAllUnsafe(msg map[string]interface{}) {
	for _, conn := range lobby.Connections {
		conn.Write(msg)
	}
}

// BroadcastAll sends msg to every connected user.
func (lobby *Lobby) BroadcastAll(msg map[string]interface{}) {
	lobby.BroadcastAllUnsafe(msg)
}

// GetLobbyStatusPayloadUnsafe gathers current user status. Assumes lock is held.
func (lobby *Lobby) GetLobbyStatusPayloadUnsafe() map[string]interface{} {
	users := []map[string]interface{}{}
	for userID, conn := range lobby.Connections {
		users = append(users, map[string]interface{}{
			"id":       userID.String(),
			"username": conn.Username,
			"is_host":  conn.IsHost,
			"is_ready": lobby.ReadyStates[userID],
		})
	}
	return map[string]interface{}{
		"users": users,
	}
}

func (lobby *Lobby) getLobbyJoinPayloadUnsafe(userID uuid.UUID) map[string]interface{} {
	isHost := false
	username := "Unknown"
	if conn, ok := lobby.Connections[userID]; ok {
		isHost = conn.IsHost
		username = conn.Username
	}

	return map[string]interface{}{
		"type":         "lobby_update",
		"user_join":    userID.String(),
		"username":     username,
		"is_host":      isHost,
		"lobby_status": lobby.GetLobbyStatusPayloadUnsafe(),
	}
}

func (lobby *Lobby) getLobbyLeavePayloadUnsafe(userID uuid.UUID) map[string]interface{} {
	username := "Unknown"
	if conn, ok := lobby.Connections[userID]; ok {
		username = conn.Username
	}

	return map[string]interface{}{
		"type":         "lobby_update",
		"user_left":    userID.String(),
		"username":     username,
		"lobby_status": lobby.GetLobbyStatusPayloadUnsafe(),
	}
}

// BroadcastChatUnsafe broadcasts a chat message from senderConn. Assumes lock is held.
func (lobby *Lobby) BroadcastChatUnsafe(senderConn *LobbyConnection, msg string) {
	username := senderConn.Username
	if username == "" {
		username = "Unknown"
	}

	lobby.BroadcastAllUnsafe(map[string]interface{}{
		"type":     "chat",
		"user_id":  senderConn.UserID.String(),
		"username": username,
		"msg":      msg,
		"ts":       time.Now().Unix(),
	})
}

// BroadcastChat broadcasts a chat message from userID. Assumes caller holds the lock.
func (lobby *Lobby) BroadcastChat(userID uuid.UUID, msg string) {
	conn, ok := lobby.Connections[userID]
	if !ok {
		return
	}
	lobby.BroadcastChatUnsafe(conn, msg)
}

func (lobby *Lobby) getLobbyStatePayloadUnsafe(userID uuid.UUID) map[string]interface{} {
	isHost := false
	if conn, ok := lobby.Connections[userID]; ok {
		isHost = conn.IsHost
	}

	gameIDStr := ""
	if lobby.GameID != uuid.Nil {
		gameIDStr = lobby.GameID.String()
	}

	return map[string]interface{}{
		"type":         "lobby_state",
		"lobby_id":     lobby.ID.String(),
		"host_id":      lobby.HostUserID.String(),
		"your_id":      userID.String(),
		"your_is_host": isHost,
		"lobby_type":   lobby.Type,
		"ranked":       lobby.Ranked,
		"in_game":      lobby.InGame,
		"game_id":      gameIDStr,
		"house_rules":  lobby.HouseRules,
		"settings": map[string]interface{}{
			"autoStart": lobby.LobbySettings.AutoStart,
		},
		"lobby_status": lobby.GetLobbyStatusPayloadUnsafe(),
	}
}

// SendLobbyState sends the full current lobby state to a specific user.
// Assumes caller holds the lock.
func (lobby *Lobby) SendLobbyState(userID uuid.UUID) {
	conn, ok := lobby.Connections[userID]
	if !ok {
		return
	}
	conn.Write(lobby.getLobbyStatePayloadUnsafe(userID))
}

// BroadcastRulesUpdateUnsafe notifies all users about updated rules. Assumes lock is held.
func (lobby *Lobby) BroadcastRulesUpdateUnsafe() {
	lobby.BroadcastAllUnsafe(map[string]interface{}{
		"type": "lobby_rules_updated",
		"rules": map[string]interface{}{
			"house_rules": lobby.HouseRules,
			"settings":    lobby.LobbySettings,
		},
	})
}

// UpdateUnsafe applies partial settings updates (house rules, lobby settings).
// Assumes lock is HELD by the caller.
func (lobby *Lobby) UpdateUnsafe(rules map[string]interface{}) error {
	changed := false

	tempHR := lobby.HouseRules
	if hrData, ok := rules["houseRules"].(map[string]interface{}); ok {
		if err := tempHR.Update(hrData); err != nil {
			return err
		}
		if tempHR != lobby.HouseRules {
			lobby.HouseRules = tempHR
			changed = true
		}
	}

	if lsData, ok := rules["settings"].(map[string]interface{}); ok {
		if autoStart, ok := lsData["autoStart"].(bool); ok {
			if lobby.LobbySettings.AutoStart != autoStart {
				lobby.LobbySettings.AutoStart = autoStart
				changed = true
			}
		}
	}

	if changed {
		lobby.BroadcastRulesUpdateUnsafe()
	}
	return nil
}

// Update applies changes. Assumes caller holds the lock.
func (lobby *Lobby) Update(rules map[string]interface{}) error {
	return lobby.UpdateUnsafe(rules)
}

func (l *Lobby) GetConnectionsUnsafe() []*LobbyConnection {
	conns := make([]*LobbyConnection, 0, len(l.Connections))
	for _, conn := range l.Connections {
		conns = append(conns, conn)
	}
	return conns
}
