// Package strategy contains decision-making policies for seat automation.
// A Strategy receives an Observation of the table and the set of legal
// moves and picks one; implementations range from uniform-random play to
// a simple expected-value threshold bot.
package strategy

import (
	"math/rand"

	"github.com/google/uuid"
)

// Move is a legal choice available to the acting player.
type Move string

const (
	MoveHit  Move = "hit"
	MoveStay Move = "stay"
)

// Observation is a single player's view of the table. Hands are public,
// so the observation carries everyone's visible state.
type Observation struct {
	Round           int
	TargetScore     int
	OwnScore        int       // banked total across rounds
	OwnRoundScore   int       // what staying right now would bank
	OwnNumbers      []int     // distinct number cards in hand
	HasSecondChance bool
	BustProbability float64 // fraction of remaining deck that busts us
	DeckSize        int
	BestRivalScore  int // highest banked total among other players
	ActivePlayers   int
}

// TargetChoice is one candidate recipient for an action card.
type TargetChoice struct {
	PlayerID   uuid.UUID
	Score      int
	RoundScore int
	IsSelf     bool
}

// Strategy decides moves for one seat.
type Strategy interface {
	// ChooseMove picks among legal moves; legal is never empty.
	ChooseMove(obs Observation, legal []Move) Move
	// ChooseTarget picks the recipient of a Freeze or Flip Three.
	ChooseTarget(obs Observation, action string, targets []TargetChoice) uuid.UUID
}

// Random plays uniformly at random among legal moves and targets.
type Random struct {
	Rng *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{Rng: rand.New(rand.NewSource(seed))}
}

func (s *Random) ChooseMove(_ Observation, legal []Move) Move {
	return legal[s.Rng.Intn(len(legal))]
}

func (s *Random) ChooseTarget(_ Observation, _ string, targets []TargetChoice) uuid.UUID {
	return targets[s.Rng.Intn(len(targets))].PlayerID
}

// Threshold hits while the bust probability stays under MaxBustChance and
// the round haul is below StayAt, then banks. It freezes the rival with
// the highest banked total and hands Flip Three to itself when its own
// bust chance is low, otherwise to the weakest rival.
type Threshold struct {
	StayAt        int     // bank once the round score reaches this
	MaxBustChance float64 // hit only below this bust probability
}

// NewThreshold returns a Threshold bot with house-tested defaults.
func NewThreshold() *Threshold {
	return &Threshold{StayAt: 18, MaxBustChance: 0.35}
}

func (s *Threshold) ChooseMove(obs Observation, legal []Move) Move {
	canStay := false
	for _, m := range legal {
		if m == MoveStay {
			canStay = true
		}
	}
	if !canStay {
		return MoveHit
	}

	// Close out the game on the spot if staying wins.
	if obs.OwnScore+obs.OwnRoundScore >= obs.TargetScore {
		return MoveStay
	}
	// A held Second Chance makes the next duplicate free.
	if obs.HasSecondChance {
		return MoveHit
	}
	if obs.OwnRoundScore >= s.StayAt {
		return MoveStay
	}
	// Six distinct numbers: one more safe draw banks the seven-card bonus.
	if len(obs.OwnNumbers) == 6 && obs.BustProbability < 0.5 {
		return MoveHit
	}
	if obs.BustProbability >= s.MaxBustChance {
		return MoveStay
	}
	return MoveHit
}

func (s *Threshold) ChooseTarget(obs Observation, action string, targets []TargetChoice) uuid.UUID {
	switch action {
	case "freeze":
		// Freeze the rival closest to winning; freeze ourselves only if alone.
		best := targets[0]
		for _, t := range targets {
			if !t.IsSelf && (best.IsSelf || t.Score+t.RoundScore > best.Score+best.RoundScore) {
				best = t
			}
		}
		return best.PlayerID
	default:
		// Flip Three: take it ourselves while the deck is friendly,
		// otherwise push the forced draws onto the richest rival hand.
		if obs.BustProbability < 0.25 {
			for _, t := range targets {
				if t.IsSelf {
					return t.PlayerID
				}
			}
		}
		best := targets[0]
		for _, t := range targets {
			if !t.IsSelf && (best.IsSelf || t.RoundScore > best.RoundScore) {
				best = t
			}
		}
		return best.PlayerID
	}
}
