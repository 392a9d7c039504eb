// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"flipseven/internal/models"
	"flipseven/internal/rating"
)

// RecordGameAndResults persists the final outcome of a game, plus updates ratings.
// Two-player games rank on the duel rating, three or more on the multiplayer rating.
// A nil pool (CLI play) makes this a no-op.
func RecordGameAndResults(ctx context.Context, gameID uuid.UUID, players []*models.Player, finalScores map[uuid.UUID]int, winners []uuid.UUID) error {
	if DB == nil {
		return nil
	}

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// upsert the game row if not exist, set status=completed
		upsertGame := `
			INSERT INTO games (id, status, end_time)
			VALUES ($1, 'completed', NOW())
			ON CONFLICT (id) DO UPDATE SET status = 'completed', end_time = NOW()
		`
		if _, e := tx.Exec(ctx, upsertGame, gameID); e != nil {
			return e
		}

		for _, pl := range players {
			score := finalScores[pl.ID]
			didWin := false
			for _, w := range winners {
				if w == pl.ID {
					didWin = true
					break
				}
			}
			q := `
				INSERT INTO game_results (game_id, player_id, score, did_win)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (game_id, player_id)
				DO UPDATE SET score=$3, did_win=$4
			`
			if _, e2 := tx.Exec(ctx, q, gameID, pl.ID, score, didWin); e2 != nil {
				return e2
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or results: %w", err)
	}

	var ratingMode string
	switch {
	case len(players) == 2:
		ratingMode = "duel"
	case len(players) >= 3 && len(players) <= 8:
		ratingMode = "multi"
	default:
		ratingMode = ""
	}

	if ratingMode == "" {
		log.Printf("No rating update for %d-player game.\n", len(players))
		return nil
	}

	// load user objects from DB for rating
	var userList []models.User
	for _, p := range players {
		u, err := GetUserByID(ctx, p.ID)
		if err != nil {
			log.Printf("user not found for rating: %v\n", p.ID)
			continue
		}
		userList = append(userList, *u)
	}
	if len(userList) < 2 {
		return nil
	}

	smap := make(map[uuid.UUID]int)
	for _, p := range players {
		smap[p.ID] = finalScores[p.ID]
	}

	if ratingMode == "duel" {
		return finalizeDuelRatings(ctx, gameID, userList, smap)
	}
	return finalizeMultiRatings(ctx, gameID, userList, smap)
}

// finalizeDuelRatings applies a single-step Glicko-2 update against each
// player's stored deviation and volatility, commits both Elos plus the audit
// rows in one transaction, then persists the new Glicko state.
func finalizeDuelRatings(ctx context.Context, gameID uuid.UUID, users []models.User, scores map[uuid.UUID]int) error {
	fracs := []float64{0.5, 0.5}
	switch {
	case scores[users[0].ID] > scores[users[1].ID]:
		fracs = []float64{1.0, 0.0}
	case scores[users[1].ID] > scores[users[0].ID]:
		fracs = []float64{0.0, 1.0}
	}

	// Users who have never finished a rated duel carry zero phi/sigma.
	for i := range users {
		if users[i].PhiDuel == 0 {
			users[i].PhiDuel = rating.DefaultPhi
		}
		if users[i].SigmaDuel == 0 {
			users[i].SigmaDuel = 0.06
		}
	}
	oldElos := []int{users[0].EloDuel, users[1].EloDuel}

	updated := rating.SingleOrMultiPlayerGlicko2(users, fracs)

	wi, li := 0, 1
	if fracs[1] > fracs[0] {
		wi, li = 1, 0
	}
	err := CommitDuelMatchResults(ctx, updated[wi].ID, updated[li].ID, gameID,
		oldElos[wi], oldElos[li], updated[wi].EloDuel, updated[li].EloDuel)
	if err != nil {
		return fmt.Errorf("commit duel results: %w", err)
	}
	for i := range updated {
		if err := SaveUserGlickoDuel(ctx, &updated[i]); err != nil {
			return fmt.Errorf("save glicko state for %s: %w", updated[i].ID, err)
		}
	}
	return nil
}

// finalizeMultiRatings runs the multi-iteration group update on the multi
// rating, then writes the new Elos and one audit row per player.
func finalizeMultiRatings(ctx context.Context, gameID uuid.UUID, users []models.User, scores map[uuid.UUID]int) error {
	// The glicko update operates on the duel fields, so seed them from the
	// multi rating and write the result back afterward.
	for i := range users {
		users[i].EloDuel = users[i].EloMulti
	}

	// FinalizeRatings updates the slice in place, so snapshot the old ratings
	// first for the audit rows.
	oldElos := make(map[uuid.UUID]int, len(users))
	for _, u := range users {
		oldElos[u.ID] = u.EloDuel
	}

	updated := rating.FinalizeRatings(users, scores)

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, uNew := range updated {
			if _, e := tx.Exec(ctx, `UPDATE users SET elo_multi=$1 WHERE id=$2`, uNew.EloDuel, uNew.ID); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx rating update: %w", err)
	}

	for _, uNew := range updated {
		if err := InsertRatingRecord(ctx, uNew.ID, gameID, oldElos[uNew.ID], uNew.EloDuel, "multi"); err != nil {
			return fmt.Errorf("insert rating record for %s: %w", uNew.ID, err)
		}
	}
	return nil
}

// StoreFinalGameStateInDB updates the games.final_game_state column with JSON containing
// each player's final banked total plus the winner userIDs.
func StoreFinalGameStateInDB(ctx context.Context, gameID uuid.UUID, finalSnapshot map[string]interface{}) error {
	if DB == nil {
		return nil
	}
	jsonData, err := json.Marshal(finalSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal final snapshot: %w", err)
	}
	query := `
		UPDATE games
		SET final_game_state = $1
		WHERE id = $2
	`
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, query, jsonData, gameID)
		return e
	})
	if err != nil {
		return fmt.Errorf("storing final game state in DB: %w", err)
	}
	return nil
}

// UpsertInitialGameState stores the shuffled stockpile order into
// games.initial_game_state so a finished game can be replayed.
func UpsertInitialGameState(gameID uuid.UUID, initialData interface{}) {
	if DB == nil {
		return
	}
	ctx := context.Background()
	dataBytes, err := json.Marshal(initialData)
	if err != nil {
		log.Printf("failed to marshal initial game state for game %v: %v", gameID, err)
		return
	}
	_ = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO games (id, status, initial_game_state, start_time)
			VALUES ($1, 'in_progress', $2, NOW())
			ON CONFLICT (id)
			DO UPDATE SET initial_game_state = EXCLUDED.initial_game_state, status='in_progress'
		`
		_, e := tx.Exec(ctx, q, gameID, dataBytes)
		return e
	})
}

// LeaderboardEntry is one row of the ranked standings.
type LeaderboardEntry struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Elo      int       `json:"elo"`
	Wins     int       `json:"wins"`
	Games    int       `json:"games"`
}

// GetLeaderboard returns the top users for a rating mode ("duel" or "multi").
func GetLeaderboard(ctx context.Context, mode string, limit int) ([]LeaderboardEntry, error) {
	if DB == nil {
		return nil, ErrNoDB
	}
	col := "elo_duel"
	if mode == "multi" {
		col = "elo_multi"
	}
	q := fmt.Sprintf(`
		SELECT u.id, u.username, u.%s,
		       COUNT(gr.game_id) FILTER (WHERE gr.did_win) AS wins,
		       COUNT(gr.game_id) AS games
		FROM users u
		LEFT JOIN game_results gr ON gr.player_id = u.id
		WHERE NOT u.is_ephemeral
		GROUP BY u.id, u.username, u.%s
		ORDER BY u.%s DESC
		LIMIT $1
	`, col, col, col)

	rows, err := DB.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Elo, &e.Wins, &e.Games); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
