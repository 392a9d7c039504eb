// internal/game/effects.go
package game

import (
	"log"

	"github.com/google/uuid"

	"flipseven/internal/models"
)

// setPendingEffect parks a drawn Freeze or Flip Three until its owner picks a
// target, and restarts the timer so they have time to decide.
// Assumes lock is held.
func (g *Flip7Game) setPendingEffect(ownerID uuid.UUID, card *models.Card) {
	g.Pending = PendingEffect{Active: true, OwnerID: ownerID, Card: card}
	g.ResetTurnTimer()
	g.fireEvent(GameEvent{
		Type: EventEffectPending,
		User: &EventUser{ID: ownerID},
		Card: cardEvent(card),
	})
	g.logAction(ownerID, string(EventEffectPending), map[string]interface{}{"action": card.Action})
}

// handleChooseTarget validates and applies a target choice from the payload of
// an action_choose_target message. Assumes lock is held.
func (g *Flip7Game) handleChooseTarget(playerID uuid.UUID, payload map[string]interface{}) {
	targetStr, _ := payload["target"].(string)
	targetID, err := uuid.Parse(targetStr)
	if err != nil {
		g.fireActionError(playerID, "Invalid target id.")
		return
	}
	g.ChooseEffectTarget(playerID, targetID)
}

// ChooseEffectTarget resolves the pending action card onto the chosen target.
// Only the card's owner may choose, and only players still in the round are
// legal targets (the owner included).
// Assumes lock is held by the caller.
func (g *Flip7Game) ChooseEffectTarget(ownerID, targetID uuid.UUID) {
	defer func() { g.roundJustEnded = false }()

	if !g.Pending.Active {
		g.fireActionError(ownerID, "No action card is waiting for a target.")
		return
	}
	if g.Pending.OwnerID != ownerID {
		g.fireActionError(ownerID, "This action card is not yours to aim.")
		return
	}
	target := g.getPlayerByID(targetID)
	if target == nil || target.Status.Done() {
		g.fireActionError(ownerID, "Target is not in the round.")
		return
	}

	card := g.Pending.Card
	g.Pending = PendingEffect{}
	if owner := g.getPlayerByID(ownerID); owner != nil {
		g.removeFromHand(owner, card.ID)
	}
	g.discard(card)
	g.applyEffect(ownerID, card, target)

	if g.GameOver || g.roundJustEnded {
		return
	}
	if g.drainEffectQueue() {
		return // a queued effect is now pending
	}
	g.advanceTurn()
}

// applyEffect performs the actual Freeze or Flip Three. Assumes lock is held.
func (g *Flip7Game) applyEffect(ownerID uuid.UUID, card *models.Card, target *models.Player) {
	switch card.Action {
	case models.ActionFreeze:
		g.fireEvent(GameEvent{
			Type:   EventPlayerFrozen,
			User:   &EventUser{ID: ownerID},
			Target: &EventUser{ID: target.ID},
		})
		g.logAction(ownerID, string(EventPlayerFrozen), map[string]interface{}{"target": target.ID.String()})
		g.endRoundFor(target, models.StatusFrozen)

	case models.ActionFlipThree:
		g.runFlipThree(ownerID, target)

	default:
		log.Printf("Game %s: applyEffect called with non-effect card %q.", g.ID, card.Action)
	}
}

// runFlipThree forces the target through up to three draws. Action cards drawn
// along the way queue up and resolve afterwards, provided their owner survives.
// Assumes lock is held.
func (g *Flip7Game) runFlipThree(ownerID uuid.UUID, target *models.Player) {
	g.fireEvent(GameEvent{
		Type:   EventFlipThreeStart,
		User:   &EventUser{ID: ownerID},
		Target: &EventUser{ID: target.ID},
	})
	g.logAction(ownerID, string(EventFlipThreeStart), map[string]interface{}{"target": target.ID.String()})

	for i := 1; i <= 3; i++ {
		if target.Status.Done() || g.GameOver || g.roundJustEnded {
			return
		}
		card := g.drawCard()
		if card == nil {
			log.Printf("Game %s: deck exhausted during flip three, ending round early.", g.ID)
			g.endRound()
			return
		}
		target.Hand = append(target.Hand, card)
		g.fireEvent(GameEvent{
			Type:    EventPlayerHit,
			User:    &EventUser{ID: target.ID},
			Card:    cardEvent(card),
			Payload: map[string]interface{}{"flipThree": i, "deckSize": len(g.Deck)},
		})
		g.logAction(target.ID, string(EventPlayerHit), map[string]interface{}{"card": card.Label(), "flipThree": i})
		g.resolveDraw(target, card, true)
	}

	if !target.Status.Done() && !g.GameOver && !g.roundJustEnded {
		g.fireEvent(GameEvent{
			Type:   EventFlipThreeSurvived,
			Target: &EventUser{ID: target.ID},
		})
	}
}

// drainEffectQueue promotes the next queued effect to pending, skipping any
// whose owner has since left the round. Returns true if an effect is now
// waiting on a target choice.
// Assumes lock is held.
func (g *Flip7Game) drainEffectQueue() bool {
	for len(g.effectQueue) > 0 {
		e := g.effectQueue[0]
		g.effectQueue = g.effectQueue[1:]
		owner := g.getPlayerByID(e.Owner)
		if owner == nil || owner.Status.Done() {
			continue
		}
		g.setPendingEffect(e.Owner, e.Card)
		return true
	}
	return false
}

// autoResolvePending targets the pending effect at its owner (or the first
// active player if the owner is out) when the owner never chose. Used on
// timeout and disconnect.
// Assumes lock is held.
func (g *Flip7Game) autoResolvePending() {
	if !g.Pending.Active {
		return
	}
	ownerID := g.Pending.OwnerID
	target := g.getPlayerByID(ownerID)
	if target == nil || target.Status.Done() {
		targets := g.ActiveTargets()
		if len(targets) == 0 {
			g.Pending = PendingEffect{}
			g.endRound()
			return
		}
		target = targets[0]
	}
	log.Printf("Game %s: auto-targeting pending %s at %s.", g.ID, g.Pending.Card.Action, target.ID)
	g.ChooseEffectTarget(ownerID, target.ID)
}
