// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"flipseven/internal/database"
)

// GameStateHandler returns the public snapshot of a running game, useful for
// spectating dashboards and debugging.
func GameStateHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, err := uuid.Parse(chi.URLParam(r, "game_id"))
		if err != nil {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}
		g, ok := gs.GameStore.GetGame(gameID)
		if !ok {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		g.Mu.Lock()
		snap := g.Snapshot()
		g.Mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snap)
	}
}

// LeaderboardHandler returns the top rated users. Query params:
// mode=duel|multi (default duel), limit (default 20, max 100).
func LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode != "multi" {
		mode = "duel"
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}

	entries, err := database.GetLeaderboard(r.Context(), mode, limit)
	if err != nil {
		http.Error(w, "failed to fetch leaderboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"mode":    mode,
		"entries": entries,
	})
}
