// internal/handlers/game_ws_test.go
package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flipseven/internal/game"
	"flipseven/internal/models"
)

// TestBroadcastSurvivesDisconnect checks that an event queued for delivery
// still reaches its socket even when the disconnect handler clears the
// player's Conn before the async writer goroutine runs.
func TestBroadcastSurvivesDisconnect(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		_, data, err := c.Read(r.Context())
		if err != nil {
			return
		}
		received <- data
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	g := game.NewFlip7GameWithSeed(1)
	player := &models.Player{ID: uuid.New(), Connected: true, Conn: conn}
	g.AddPlayer(player)

	broadcast := createBroadcastFunc(g, logrus.New())

	g.Mu.Lock()
	broadcast(game.GameEvent{Type: game.EventRoundStart})
	// The disconnect lands before the writer goroutine gets scheduled.
	player.Conn = nil
	player.Connected = false
	g.Mu.Unlock()

	select {
	case data := <-received:
		if !strings.Contains(string(data), string(game.EventRoundStart)) {
			t.Fatalf("unexpected broadcast payload: %s", data)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("broadcast never reached the socket")
	}
}
