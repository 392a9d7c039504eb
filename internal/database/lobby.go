package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"flipseven/internal/models"
)

// InsertLobby creates a new lobby row in the DB. House rules are stored as JSON.
func InsertLobby(ctx context.Context, lobby *models.Lobby) error {
	if DB == nil {
		return ErrNoDB
	}
	rules, err := json.Marshal(lobby.HouseRules)
	if err != nil {
		return err
	}
	q := `
	INSERT INTO lobbies (id, host_user_id, type, ranked, house_rules)
	VALUES ($1, $2, $3, $4, $5)
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			lobby.ID,
			lobby.HostUserID,
			lobby.Type,
			lobby.Ranked,
			rules,
		)
		return err
	})
}

// GetLobby fetches a lobby by ID
func GetLobby(ctx context.Context, lobbyID uuid.UUID) (*models.Lobby, error) {
	if DB == nil {
		return nil, ErrNoDB
	}
	var l models.Lobby
	var rules []byte
	q := `
	SELECT id, host_user_id, type, ranked, house_rules
	FROM lobbies
	WHERE id = $1
	`
	err := DB.QueryRow(ctx, q, lobbyID).Scan(
		&l.ID,
		&l.HostUserID,
		&l.Type,
		&l.Ranked,
		&rules,
	)
	if err != nil {
		return nil, err
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &l.HouseRules); err != nil {
			return nil, err
		}
	}
	return &l, nil
}

// InsertParticipant inserts a user into lobby_participants.
func InsertParticipant(ctx context.Context, lobbyID, userID uuid.UUID, seatPos int) error {
	if DB == nil {
		return ErrNoDB
	}
	q := `
	INSERT INTO lobby_participants (lobby_id, user_id, is_ready, seat_position)
	VALUES ($1, $2, false, $3)
	ON CONFLICT (lobby_id, user_id) DO NOTHING
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, lobbyID, userID, seatPos)
		return err
	})
}

// IsUserInLobby checks if the user is already in the lobby
func IsUserInLobby(ctx context.Context, lobbyID, userID uuid.UUID) (bool, error) {
	if DB == nil {
		return false, ErrNoDB
	}
	q := `
	SELECT 1
	  FROM lobby_participants
	  WHERE lobby_id = $1 AND user_id = $2
	  LIMIT 1
	`
	var tmp int
	err := DB.QueryRow(ctx, q, lobbyID, userID).Scan(&tmp)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveUserFromLobby removes a user from the lobby_participants table.
func RemoveUserFromLobby(ctx context.Context, userID uuid.UUID, lobbyID uuid.UUID) error {
	if DB == nil {
		return ErrNoDB
	}
	q := `DELETE FROM lobby_participants WHERE lobby_id=$1 AND user_id=$2`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, lobbyID, userID)
		return err
	})
}

// DeleteLobby removes a lobby row from the DB by ID. We also remove participants.
func DeleteLobby(ctx context.Context, lobbyID uuid.UUID) error {
	if DB == nil {
		return ErrNoDB
	}
	q := `DELETE FROM lobbies WHERE id=$1`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM lobby_participants WHERE lobby_id=$1`, lobbyID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, q, lobbyID)
		return err
	})
}
