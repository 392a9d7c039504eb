package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertRatingRecord logs a rating change in the 'ratings' table
func InsertRatingRecord(ctx context.Context, userID, gameID uuid.UUID, oldRating, newRating int, mode string) error {
	if DB == nil {
		return ErrNoDB
	}
	q := `
		INSERT INTO ratings (user_id, game_id, old_rating, new_rating, rating_mode)
		VALUES ($1, $2, $3, $4, $5)
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, userID, gameID, oldRating, newRating, mode)
		return err
	})
}

// CommitDuelMatchResults updates both players' duel ratings and logs the change in one tx.
func CommitDuelMatchResults(ctx context.Context, winnerID, loserID, gameID uuid.UUID, oldWRating, oldLRating, newWRating, newLRating int) error {
	if DB == nil {
		return ErrNoDB
	}
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, e1 := tx.Exec(ctx, `UPDATE users SET elo_duel = $1 WHERE id = $2`, newWRating, winnerID); e1 != nil {
			return e1
		}
		if _, e2 := tx.Exec(ctx, `UPDATE users SET elo_duel = $1 WHERE id = $2`, newLRating, loserID); e2 != nil {
			return e2
		}
		_, e3 := tx.Exec(ctx, `
			INSERT INTO ratings (user_id, game_id, old_rating, new_rating, rating_mode)
			VALUES ($1, $2, $3, $4, $5), ($6, $7, $8, $9, $10)
		`,
			winnerID, gameID, oldWRating, newWRating, "duel",
			loserID, gameID, oldLRating, newLRating, "duel",
		)
		return e3
	})
	if err != nil {
		return fmt.Errorf("failed to commit duel match results: %w", err)
	}
	return nil
}
