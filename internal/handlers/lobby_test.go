// internal/handlers/lobby_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"flipseven/internal/auth"
	"flipseven/internal/lobby"
)

// TestLobbyCreate checks that /lobby/create builds an ephemeral lobby in memory.
func TestLobbyCreate(t *testing.T) {
	auth.Init() // ephemeral keys, no DB needed
	gs := NewGameServer()

	// ephemeral user ID
	uHost := uuid.New()

	token, _ := auth.CreateJWT(uHost.String())
	body := `{"type":"private","ranked":true}`
	req := httptest.NewRequest("POST", "/lobby/create", bytes.NewBuffer([]byte(body)))
	req.Header.Set("Cookie", "auth_token="+token)
	w := httptest.NewRecorder()

	h := CreateLobbyHandler(gs)
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var newLobby lobby.Lobby
	if err := json.Unmarshal(w.Body.Bytes(), &newLobby); err != nil {
		t.Fatalf("failed to decode lobby: %v", err)
	}
	if newLobby.ID == uuid.Nil {
		t.Fatalf("lobby has no ID")
	}
	if newLobby.HostUserID != uHost {
		t.Fatalf("lobby host mismatch, expected %v got %v", uHost, newLobby.HostUserID)
	}
	if !newLobby.Ranked {
		t.Fatalf("ranked flag from request body was not applied")
	}
	if newLobby.HouseRules.TargetScore != 200 {
		t.Fatalf("expected default target score 200, got %d", newLobby.HouseRules.TargetScore)
	}

	if _, ok := gs.LobbyStore.GetLobby(newLobby.ID); !ok {
		t.Fatalf("lobby was not added to the store")
	}
}

// TestLobbyCreateRejectsBadType checks lobby type validation.
func TestLobbyCreateRejectsBadType(t *testing.T) {
	auth.Init()
	gs := NewGameServer()

	token, _ := auth.CreateJWT(uuid.New().String())
	req := httptest.NewRequest("POST", "/lobby/create", bytes.NewBufferString(`{"type":"tournament"}`))
	req.Header.Set("Cookie", "auth_token="+token)
	w := httptest.NewRecorder()

	CreateLobbyHandler(gs).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid lobby type, got %d", w.Code)
	}
}

// TestGetLobby checks that /lobby/{lobby_id} serves the live in-memory lobby.
func TestGetLobby(t *testing.T) {
	gs := NewGameServer()

	lob := lobby.NewLobbyWithDefaults(uuid.New())
	gs.LobbyStore.AddLobby(lob)

	r := chi.NewRouter()
	r.Get("/lobby/{lobby_id}", GetLobbyHandler(gs))

	req := httptest.NewRequest("GET", "/lobby/"+lob.ID.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var got lobby.Lobby
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode lobby: %v", err)
	}
	if got.ID != lob.ID {
		t.Fatalf("lobby ID mismatch, expected %v got %v", lob.ID, got.ID)
	}

	// An unknown ID with no database behind the store is simply gone.
	req = httptest.NewRequest("GET", "/lobby/"+uuid.New().String(), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown lobby, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/lobby/not-a-uuid", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed lobby id, got %d", w.Code)
	}
}

// TestLobbyCreateRequiresAuth checks that a missing token is rejected.
func TestLobbyCreateRequiresAuth(t *testing.T) {
	auth.Init()
	gs := NewGameServer()

	req := httptest.NewRequest("POST", "/lobby/create", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()

	CreateLobbyHandler(gs).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth_token, got %d", w.Code)
	}
}
