// internal/game/deck.go
package game

import (
	"log"

	"github.com/google/uuid"

	"flipseven/internal/models"
)

// newDeck builds the 94-card Flip Seven deck:
//   - number cards 0-12, where value n appears n times (0 and 1 once each),
//   - 3x Freeze, 3x Flip Three, 3x Second Chance,
//   - one each of +2, +4, +6, +8, +10 and a single x2.
func newDeck() []*models.Card {
	var deck []*models.Card

	add := func(c models.Card, copies int) {
		for i := 0; i < copies; i++ {
			card := c
			card.ID = uuid.New()
			deck = append(deck, &card)
		}
	}

	for v := 0; v <= 12; v++ {
		copies := v
		if copies < 1 {
			copies = 1
		}
		add(models.Card{Kind: models.KindNumber, Value: v}, copies)
	}

	for _, action := range []string{models.ActionFreeze, models.ActionFlipThree, models.ActionSecondChance} {
		add(models.Card{Kind: models.KindAction, Action: action}, 3)
	}

	for _, bonus := range []int{2, 4, 6, 8, 10} {
		add(models.Card{Kind: models.KindModifier, Value: bonus}, 1)
	}
	add(models.Card{Kind: models.KindModifier, Multiplier: true}, 1)

	return deck
}

// resetDeck replaces the stockpile with a freshly shuffled deck and clears the
// discard pile. Called at game start and between rounds.
// Assumes lock is held.
func (g *Flip7Game) resetDeck() {
	deck := newDeck()
	g.rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	g.Deck = deck
	g.DiscardPile = nil
}

// drawCard removes and returns the top card of the stockpile, reshuffling the
// discard pile into it if needed. Returns nil when no cards remain anywhere.
// Assumes lock is held.
func (g *Flip7Game) drawCard() *models.Card {
	if len(g.Deck) == 0 {
		if len(g.DiscardPile) == 0 {
			log.Printf("Game %s: stockpile and discard pile are both empty.", g.ID)
			return nil
		}
		log.Printf("Game %s: stockpile empty, reshuffling %d discarded card(s).", g.ID, len(g.DiscardPile))
		g.Deck = append(g.Deck, g.DiscardPile...)
		g.DiscardPile = nil
		g.rng.Shuffle(len(g.Deck), func(i, j int) {
			g.Deck[i], g.Deck[j] = g.Deck[j], g.Deck[i]
		})
		g.fireEvent(GameEvent{
			Type:    EventDeckReshuffle,
			Payload: map[string]interface{}{"deckSize": len(g.Deck)},
		})
		g.logAction(uuid.Nil, string(EventDeckReshuffle), map[string]interface{}{"newSize": len(g.Deck)})
	}

	card := g.Deck[0]
	g.Deck = g.Deck[1:]
	return card
}

// discard moves a card out of play until the next reshuffle.
// Assumes lock is held.
func (g *Flip7Game) discard(c *models.Card) {
	g.DiscardPile = append(g.DiscardPile, c)
}
