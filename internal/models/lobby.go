// internal/models/lobby.go
package models

import "github.com/google/uuid"

// Lobby represents a row in the lobbies table.
type Lobby struct {
	ID         uuid.UUID `json:"id"`
	HostUserID uuid.UUID `json:"host_user_id"`
	Type       string    `json:"type"` // 'private', 'public', or 'matchmaking'
	Ranked     bool      `json:"ranked"`

	// HouseRules holds the nested object of table rules (target score,
	// turn timer, disconnect policy), see internal/game/rules.go.
	HouseRules map[string]interface{} `json:"house_rules"`
}
