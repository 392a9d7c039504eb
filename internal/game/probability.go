// internal/game/probability.go
package game

import "flipseven/internal/models"

// BustProbability returns the chance that the player's next draw busts them:
// the fraction of cards remaining in the stockpile whose number already shows
// in their hand. A held Second Chance makes the next duplicate survivable, so
// the probability is 0 while one is held.
// Assumes lock is held.
func (g *Flip7Game) BustProbability(p *models.Player) float64 {
	if len(g.Deck) == 0 {
		return 0
	}
	if p.SecondChanceIndex() >= 0 {
		return 0
	}

	held := make(map[int]bool)
	for _, c := range p.Hand {
		if c.IsNumber() {
			held[c.Value] = true
		}
	}
	if len(held) == 0 {
		return 0
	}

	matches := 0
	for _, c := range g.Deck {
		if c.IsNumber() && held[c.Value] {
			matches++
		}
	}
	return float64(matches) / float64(len(g.Deck))
}
