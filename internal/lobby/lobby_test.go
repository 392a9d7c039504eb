// internal/lobby/lobby_test.go
package lobby

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(userID uuid.UUID) *LobbyConnection {
	return &LobbyConnection{
		UserID:  userID,
		OutChan: make(chan map[string]interface{}, 32),
	}
}

// joinUsers invites and connects n users, returning their IDs.
func joinUsers(t *testing.T, lob *Lobby, n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		ids[i] = uuid.New()
		lob.Mu.Lock()
		lob.InviteUser(ids[i])
		lob.Mu.Unlock()
		require.NoError(t, lob.AddConnection(ids[i], newTestConn(ids[i])))
	}
	return ids
}

func TestPrivateLobbyRejectsUninvited(t *testing.T) {
	host := uuid.New()
	lob := NewLobbyWithDefaults(host)
	require.Equal(t, "private", lob.Type)

	stranger := uuid.New()
	err := lob.AddConnection(stranger, newTestConn(stranger))
	assert.Error(t, err, "uninvited users must not join a private lobby")

	lob.Mu.Lock()
	lob.InviteUser(stranger)
	lob.Mu.Unlock()
	assert.NoError(t, lob.AddConnection(stranger, newTestConn(stranger)))
}

func TestPublicLobbyAdmitsAnyone(t *testing.T) {
	lob := NewLobbyWithDefaults(uuid.New())
	lob.Type = "public"

	userID := uuid.New()
	require.NoError(t, lob.AddConnection(userID, newTestConn(userID)))

	lob.Mu.Lock()
	_, joined := lob.Connections[userID]
	ready := lob.ReadyStates[userID]
	lob.Mu.Unlock()
	assert.True(t, joined)
	assert.False(t, ready, "fresh connections start unready")
}

func TestReadyStatesGateCountdown(t *testing.T) {
	lob := NewLobbyWithDefaults(uuid.New())
	lob.Type = "public"
	ids := joinUsers(t, lob, 2)

	lob.Mu.Lock()
	shouldStart := lob.MarkUserReadyUnsafe(ids[0])
	lob.Mu.Unlock()
	assert.False(t, shouldStart, "countdown must wait for every user")

	lob.Mu.Lock()
	shouldStart = lob.MarkUserReadyUnsafe(ids[1])
	allReady := lob.AreAllReadyUnsafe()
	lob.Mu.Unlock()
	assert.True(t, shouldStart, "last ready user should trigger the countdown")
	assert.True(t, allReady)

	lob.Mu.Lock()
	lob.MarkUserUnreadyUnsafe(ids[1])
	allReady = lob.AreAllReadyUnsafe()
	lob.Mu.Unlock()
	assert.False(t, allReady)
}

func TestCountdownFiresCallback(t *testing.T) {
	lob := NewLobbyWithDefaults(uuid.New())
	lob.Type = "public"
	joinUsers(t, lob, 2)

	fired := make(chan struct{})
	lob.Mu.Lock()
	started := lob.StartCountdownUnsafe(0, func(l *Lobby) {
		close(fired)
	})
	lob.Mu.Unlock()
	require.True(t, started)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("countdown callback never fired")
	}
}

func TestCountdownCancelled(t *testing.T) {
	lob := NewLobbyWithDefaults(uuid.New())
	lob.Type = "public"
	joinUsers(t, lob, 2)

	fired := make(chan struct{})
	lob.Mu.Lock()
	require.True(t, lob.StartCountdownUnsafe(1, func(l *Lobby) { close(fired) }))
	lob.CancelCountdownUnsafe()
	timer := lob.CountdownTimer
	lob.Mu.Unlock()

	assert.Nil(t, timer)
	select {
	case <-fired:
		t.Fatal("cancelled countdown should not fire")
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestCountdownNeedsTwoPlayers(t *testing.T) {
	lob := NewLobbyWithDefaults(uuid.New())
	lob.Type = "public"
	joinUsers(t, lob, 1)

	lob.Mu.Lock()
	started := lob.StartCountdownUnsafe(0, func(l *Lobby) {})
	lob.Mu.Unlock()
	assert.False(t, started, "a game needs at least two connected users")
}

func TestRemoveLastUserFiresOnEmpty(t *testing.T) {
	lob := NewLobbyWithDefaults(uuid.New())
	lob.Type = "public"
	ids := joinUsers(t, lob, 2)

	emptied := make(chan uuid.UUID, 1)
	lob.OnEmpty = func(lobbyID uuid.UUID) { emptied <- lobbyID }

	lob.RemoveUser(ids[0])
	select {
	case <-emptied:
		t.Fatal("OnEmpty fired while a user remained")
	default:
	}

	lob.RemoveUser(ids[1])
	select {
	case id := <-emptied:
		assert.Equal(t, lob.ID, id)
	case <-time.After(time.Second):
		t.Fatal("OnEmpty never fired for the empty lobby")
	}
}

func TestUpdateRules(t *testing.T) {
	lob := NewLobbyWithDefaults(uuid.New())

	lob.Mu.Lock()
	err := lob.UpdateUnsafe(map[string]interface{}{
		"houseRules": map[string]interface{}{
			"targetScore":  float64(150),
			"turnTimerSec": float64(30),
		},
	})
	target := lob.HouseRules.TargetScore
	timer := lob.HouseRules.TurnTimerSec
	lob.Mu.Unlock()

	require.NoError(t, err)
	assert.Equal(t, 150, target)
	assert.Equal(t, 30, timer)
}

func TestUpdateRulesRejectsBadValues(t *testing.T) {
	lob := NewLobbyWithDefaults(uuid.New())

	lob.Mu.Lock()
	err := lob.UpdateUnsafe(map[string]interface{}{
		"houseRules": map[string]interface{}{"targetScore": "a lot"},
	})
	target := lob.HouseRules.TargetScore
	lob.Mu.Unlock()

	require.Error(t, err)
	assert.Equal(t, 200, target, "a rejected update must not change the rules")
}
