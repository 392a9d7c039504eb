// internal/models/card.go
package models

import (
	"strconv"

	"github.com/google/uuid"
)

// CardKind discriminates the three card families in a Flip Seven deck.
type CardKind string

const (
	KindNumber   CardKind = "number"
	KindModifier CardKind = "modifier"
	KindAction   CardKind = "action"
)

// Action card identifiers.
const (
	ActionFreeze       = "freeze"
	ActionFlipThree    = "flip_three"
	ActionSecondChance = "second_chance"
)

// Card is a single card in the deck or in a player's face-up hand.
//
// Number cards carry Value 0-12. Modifier cards carry the bonus in Value
// (+2..+10) or Multiplier=true for the x2 card. Action cards carry one of the
// Action* identifiers in Action.
type Card struct {
	ID         uuid.UUID `json:"id"`
	Kind       CardKind  `json:"kind"`
	Value      int       `json:"value,omitempty"`
	Multiplier bool      `json:"multiplier,omitempty"`
	Action     string    `json:"action,omitempty"`
}

// Label renders the card the way it is printed on the physical deck.
func (c *Card) Label() string {
	switch c.Kind {
	case KindNumber:
		return strconv.Itoa(c.Value)
	case KindModifier:
		if c.Multiplier {
			return "x2"
		}
		return "+" + strconv.Itoa(c.Value)
	case KindAction:
		switch c.Action {
		case ActionFreeze:
			return "Freeze"
		case ActionFlipThree:
			return "Flip Three"
		case ActionSecondChance:
			return "Second Chance"
		}
	}
	return "?"
}

// IsNumber reports whether the card counts toward the seven-number bank-out.
func (c *Card) IsNumber() bool {
	return c.Kind == KindNumber
}
