// internal/game/events.go
package game

import "github.com/google/uuid"

// GameEventType is an enum-like type for broadcasting game actions.
type GameEventType string

const (
	EventRoundStart         GameEventType = "round_start"          // new round, fresh deck
	EventPlayerTurn         GameEventType = "player_turn"          // whose turn it is (with bust probability)
	EventPlayerHit          GameEventType = "player_hit"           // card drawn, face up for everyone
	EventPlayerBust         GameEventType = "player_bust"          // duplicate number, round score forfeited
	EventPlayerSecondChance GameEventType = "player_second_chance" // duplicate absorbed by a Second Chance
	EventPlayerStay         GameEventType = "player_stay"          // player banks their hand
	EventPlayerFlipSeven    GameEventType = "player_flip_seven"    // seven number cards, +15 bonus
	EventEffectPending      GameEventType = "effect_pending"       // drawer must choose a target
	EventPlayerFrozen       GameEventType = "player_frozen"        // Freeze resolved onto a target
	EventFlipThreeStart     GameEventType = "flip_three_start"     // target begins three forced draws
	EventFlipThreeSurvived  GameEventType = "flip_three_survived"  // target finished all three draws alive
	EventDeckReshuffle      GameEventType = "deck_reshuffle"       // discard pile shuffled back in
	EventRoundEnd           GameEventType = "round_end"            // round scores banked
	EventGameEnd            GameEventType = "game_end"             // target score reached, winners declared
	EventSyncState          GameEventType = "sync_state"           // full state snapshot on (re)connect
	EventActionError        GameEventType = "action_error"         // private rejection of an invalid action
)

// EventUser identifies a player within an event payload.
type EventUser struct {
	ID uuid.UUID `json:"id"`
}

// EventCard carries card details inside an event. Flip Seven hands are played
// face up, so events reveal full card details to everyone.
type EventCard struct {
	ID         uuid.UUID `json:"id"`
	Kind       string    `json:"kind"`
	Value      int       `json:"value,omitempty"`
	Multiplier bool      `json:"multiplier,omitempty"`
	Action     string    `json:"action,omitempty"`
	Label      string    `json:"label"`
}

// GameEvent holds data about an event broadcast to clients in a consistent format.
type GameEvent struct {
	Type    GameEventType          `json:"type"`
	User    *EventUser             `json:"user,omitempty"`
	Target  *EventUser             `json:"target,omitempty"`
	Card    *EventCard             `json:"card,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`

	State *StateSnapshot `json:"state,omitempty"`
}

// OnGameEndFunc handles a finished game, e.g. broadcasting results to the lobby.
type OnGameEndFunc func(lobbyID uuid.UUID, winner uuid.UUID, scores map[uuid.UUID]int)
