// internal/handlers/lobby.go
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"flipseven/internal/auth"
	"flipseven/internal/database"
	"flipseven/internal/lobby"
	"flipseven/internal/models"
)

var validLobbyTypes = map[string]bool{
	"private":     true,
	"public":      true,
	"matchmaking": true,
}

// CreateLobbyHandler creates an in-memory lobby with the requester as host.
// The OnEmpty callback removes it from the store once the last user leaves.
func CreateLobbyHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie := r.Header.Get("Cookie")
		if !strings.Contains(cookie, "auth_token=") {
			http.Error(w, "missing auth_token", http.StatusUnauthorized)
			return
		}
		token := extractCookieToken(cookie, "auth_token")

		userIDStr, err := auth.AuthenticateJWT(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			http.Error(w, "invalid user id format in token", http.StatusBadRequest)
			return
		}

		lob := lobby.NewLobbyWithDefaults(userID)

		if err := json.NewDecoder(r.Body).Decode(lob); err != nil && err.Error() != "EOF" {
			http.Error(w, "bad lobby request payload", http.StatusBadRequest)
			return
		}

		if lob.Type != "" && !validLobbyTypes[lob.Type] {
			http.Error(w, "invalid lobby type", http.StatusBadRequest)
			return
		}

		lob.OnEmpty = func(lobbyID uuid.UUID) {
			gs.LobbyStore.DeleteLobby(lobbyID)
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := database.DeleteLobby(ctx, lobbyID); err != nil && err != database.ErrNoDB {
					log.Printf("Lobby %s: failed to delete row: %v", lobbyID, err)
				}
			}()
		}

		gs.LobbyStore.AddLobby(lob)

		// Persist the lobby row asynchronously; in-memory play continues even
		// without a database.
		go func(row *models.Lobby) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := database.InsertLobby(ctx, row); err != nil && err != database.ErrNoDB {
				log.Printf("Lobby %s: failed to persist row: %v", row.ID, err)
			}
		}(lobbyRow(lob))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(lob)
	}
}

// lobbyRow flattens an in-memory lobby into its persisted shape.
func lobbyRow(lob *lobby.Lobby) *models.Lobby {
	return &models.Lobby{
		ID:         lob.ID,
		HostUserID: lob.HostUserID,
		Type:       lob.Type,
		Ranked:     lob.Ranked,
		HouseRules: map[string]interface{}{
			"targetScore":         lob.HouseRules.TargetScore,
			"turnTimerSec":        lob.HouseRules.TurnTimerSec,
			"forfeitOnDisconnect": lob.HouseRules.ForfeitOnDisconnect,
			"maxPlayers":          lob.HouseRules.MaxPlayers,
		},
	}
}

// GetLobbyHandler returns a single lobby: the live in-memory one when it
// exists, otherwise the persisted row (e.g. a lobby that already emptied).
func GetLobbyHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lobbyID, err := uuid.Parse(chi.URLParam(r, "lobby_id"))
		if err != nil {
			http.Error(w, "invalid lobby id", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")

		if lob, ok := gs.LobbyStore.GetLobby(lobbyID); ok {
			json.NewEncoder(w).Encode(lob)
			return
		}

		row, err := database.GetLobby(r.Context(), lobbyID)
		if err != nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(row)
	}
}

// ListLobbiesHandler returns the in-memory store for debugging/dashboards.
func ListLobbiesHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie := r.Header.Get("Cookie")
		if !strings.Contains(cookie, "auth_token=") {
			http.Error(w, "missing auth_token", http.StatusUnauthorized)
			return
		}
		token := extractTokenFromCookie(cookie)
		if _, err := auth.AuthenticateJWT(token); err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}

		lobbies := gs.LobbyStore.GetLobbies()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(lobbies)
	}
}
