// internal/game/sync_state.go
package game

import "github.com/google/uuid"

// Flip Seven is played entirely face up, so a state snapshot reveals every
// hand; only the stockpile order stays hidden.

// PlayerState is one player's public state within a snapshot.
type PlayerState struct {
	PlayerID        uuid.UUID   `json:"player_id"`
	Username        string      `json:"username,omitempty"`
	Status          string      `json:"status"`
	Score           int         `json:"score"`
	Hand            []EventCard `json:"hand"`
	RoundScore      int         `json:"roundScore"`
	BustProbability float64     `json:"bustProbability"`
	Connected       bool        `json:"connected"`
	IsCurrentTurn   bool        `json:"isCurrentTurn"`
}

// StateSnapshot is sent to a player on connect/reconnect.
type StateSnapshot struct {
	GameID          uuid.UUID     `json:"game_id"`
	Started         bool          `json:"started"`
	GameOver        bool          `json:"gameOver"`
	Round           int           `json:"round"`
	TargetScore     int           `json:"targetScore"`
	CurrentPlayerID uuid.UUID     `json:"currentPlayerId"`
	DeckSize        int           `json:"deckSize"`
	DiscardSize     int           `json:"discardSize"`
	Players         []PlayerState `json:"players"`
	PendingOwnerID  uuid.UUID     `json:"pendingOwnerId,omitempty"`
	PendingAction   string        `json:"pendingAction,omitempty"`
}

// Snapshot builds the current public game state. Assumes lock is held.
func (g *Flip7Game) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		GameID:      g.ID,
		Started:     g.Started,
		GameOver:    g.GameOver,
		Round:       g.Round,
		TargetScore: g.HouseRules.TargetScore,
		DeckSize:    len(g.Deck),
		DiscardSize: len(g.DiscardPile),
	}
	if len(g.Players) > 0 && g.CurrentPlayerIndex < len(g.Players) {
		snap.CurrentPlayerID = g.Players[g.CurrentPlayerIndex].ID
	}
	if g.Pending.Active {
		snap.PendingOwnerID = g.Pending.OwnerID
		snap.PendingAction = g.Pending.Card.Action
	}

	for i, p := range g.Players {
		ps := PlayerState{
			PlayerID:        p.ID,
			Status:          string(p.Status),
			Score:           p.Score,
			RoundScore:      g.roundScore(p),
			BustProbability: g.BustProbability(p),
			Connected:       p.Connected,
			IsCurrentTurn:   i == g.CurrentPlayerIndex,
		}
		if p.User != nil {
			ps.Username = p.User.Username
		}
		for _, c := range p.Hand {
			ps.Hand = append(ps.Hand, *cardEvent(c))
		}
		snap.Players = append(snap.Players, ps)
	}
	return snap
}

// sendSyncState sends the snapshot to a specific player. Assumes lock is held.
func (g *Flip7Game) sendSyncState(playerID uuid.UUID) {
	state := g.Snapshot()
	g.fireEventToPlayer(playerID, GameEvent{
		Type:  EventSyncState,
		State: &state,
	})
}
