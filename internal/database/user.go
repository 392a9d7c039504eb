package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"flipseven/internal/auth"
	"flipseven/internal/models"
)

func CreateUser(ctx context.Context, user *models.User) error {
	if DB == nil {
		return ErrNoDB
	}
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	hash, err := auth.CreateHash(user.Password, auth.Params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash

	q := `INSERT INTO users (id, email, password, username, is_ephemeral, is_admin)
	      VALUES ($1, $2, $3, $4, $5, $6)`

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.ID, user.Email, user.Password, user.Username,
			user.IsEphemeral, user.IsAdmin,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if DB == nil {
		return nil, ErrNoDB
	}
	var u models.User
	q := `
	SELECT id, email, password, username, is_ephemeral, is_admin,
	       elo_duel, elo_multi,
	       phi_duel, sigma_duel
	FROM users
	WHERE email=$1
	`
	err := DB.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.Password, &u.Username,
		&u.IsEphemeral, &u.IsAdmin,
		&u.EloDuel, &u.EloMulti,
		&u.PhiDuel, &u.SigmaDuel,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if DB == nil {
		return nil, ErrNoDB
	}
	var u models.User
	q := `
	SELECT id, email, password, username, is_ephemeral, is_admin,
	       elo_duel, elo_multi,
	       phi_duel, sigma_duel
	FROM users
	WHERE id=$1
	`
	err := DB.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.Email, &u.Password, &u.Username,
		&u.IsEphemeral, &u.IsAdmin,
		&u.EloDuel, &u.EloMulti,
		&u.PhiDuel, &u.SigmaDuel,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func AuthenticateUser(ctx context.Context, email, password string) (string, error) {
	user, err := GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("user not found or db error: %w", err)
	}

	match, err := auth.ComparePasswordAndHash(password, user.Password)
	if err != nil || !match {
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := auth.CreateJWT(user.ID.String())
	if err != nil {
		return "", fmt.Errorf("failed to create jwt: %w", err)
	}

	return token, nil
}

// UpdateUserCredentials updates a user's email/password and ephemeral flag in DB
func UpdateUserCredentials(ctx context.Context, u *models.User) error {
	if DB == nil {
		return ErrNoDB
	}
	hashed, err := auth.CreateHash(u.Password, auth.Params)
	if err != nil {
		return err
	}

	q := `UPDATE users SET email = $1, password = $2, is_ephemeral = $3 WHERE id = $4`
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, u.Email, hashed, u.IsEphemeral, u.ID)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to update user credentials: %w", err)
	}
	return nil
}

// SaveUserGlickoDuel stores the user's ELO, phi, and sigma in the DB
func SaveUserGlickoDuel(ctx context.Context, u *models.User) error {
	if DB == nil {
		return ErrNoDB
	}
	q := `
	UPDATE users
	SET elo_duel=$1, phi_duel=$2, sigma_duel=$3
	WHERE id=$4
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, u.EloDuel, u.PhiDuel, u.SigmaDuel, u.ID)
		return err
	})
}
