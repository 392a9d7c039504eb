package models

import "github.com/google/uuid"

type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Password string    `json:"password,omitempty"`
	Username string    `json:"username"`

	IsEphemeral bool `json:"is_ephemeral"`
	IsAdmin     bool `json:"is_admin"`

	EloDuel  int `json:"elo_duel"`  // 2-player games
	EloMulti int `json:"elo_multi"` // 3+ player games

	// Glicko-2 state for duels
	PhiDuel   float64 `json:"phi_duel"`
	SigmaDuel float64 `json:"sigma_duel"`
}
