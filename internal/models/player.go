package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// PlayerStatus tracks a player's standing within the current round.
type PlayerStatus string

const (
	StatusActive PlayerStatus = "active" // still hitting
	StatusStayed PlayerStatus = "stayed" // banked voluntarily or via Flip Seven
	StatusBusted PlayerStatus = "busted" // drew a duplicate number
	StatusFrozen PlayerStatus = "frozen" // banked by a Freeze card
)

// Done reports whether the player is out of the current round.
func (s PlayerStatus) Done() bool {
	return s != StatusActive
}

type Player struct {
	ID        uuid.UUID       `json:"id"`
	Hand      []*Card         `json:"hand"`
	Status    PlayerStatus    `json:"status"`
	Score     int             `json:"score"` // banked total across rounds
	Connected bool            `json:"connected"`
	Conn      *websocket.Conn `json:"-"`

	User *User `json:"-"`
}

// NumberValues returns the values of the number cards in hand, in draw order.
func (p *Player) NumberValues() []int {
	var vals []int
	for _, c := range p.Hand {
		if c.IsNumber() {
			vals = append(vals, c.Value)
		}
	}
	return vals
}

// HasNumber reports whether a number card of the given value is already face up.
func (p *Player) HasNumber(value int) bool {
	for _, c := range p.Hand {
		if c.IsNumber() && c.Value == value {
			return true
		}
	}
	return false
}

// SecondChanceIndex returns the hand index of a held Second Chance, or -1.
func (p *Player) SecondChanceIndex() int {
	for i, c := range p.Hand {
		if c.Kind == KindAction && c.Action == ActionSecondChance {
			return i
		}
	}
	return -1
}
