// internal/game/scoring.go
package game

import "flipseven/internal/models"

// flipSevenBonus is awarded for banking with seven number cards.
const flipSevenBonus = 15

// roundScore computes what the player's hand is worth this round: the number
// cards summed, doubled by a held x2, plus bonus modifiers, plus the Flip
// Seven bonus for seven numbers. A busted hand is worth nothing.
// Assumes lock is held.
func (g *Flip7Game) roundScore(p *models.Player) int {
	if p.Status == models.StatusBusted {
		return 0
	}

	numberSum := 0
	modifierSum := 0
	numbers := 0
	doubled := false
	for _, c := range p.Hand {
		switch c.Kind {
		case models.KindNumber:
			numberSum += c.Value
			numbers++
		case models.KindModifier:
			if c.Multiplier {
				doubled = true
			} else {
				modifierSum += c.Value
			}
		}
	}

	score := numberSum
	if doubled {
		score *= 2
	}
	score += modifierSum
	if numbers == 7 {
		score += flipSevenBonus
	}
	return score
}

// RoundScorePreview exposes the current hand value, for displays.
func (g *Flip7Game) RoundScorePreview(p *models.Player) int {
	return g.roundScore(p)
}
