// internal/strategy/strategy_test.go
package strategy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomOnlyPicksLegalMoves(t *testing.T) {
	s := NewRandom(1)
	legal := []Move{MoveHit, MoveStay}
	for i := 0; i < 100; i++ {
		mv := s.ChooseMove(Observation{}, legal)
		assert.Contains(t, legal, mv)
	}
}

func TestRandomTargetsFromCandidates(t *testing.T) {
	s := NewRandom(1)
	targets := []TargetChoice{
		{PlayerID: uuid.New()},
		{PlayerID: uuid.New()},
		{PlayerID: uuid.New()},
	}
	for i := 0; i < 50; i++ {
		picked := s.ChooseTarget(Observation{}, "freeze", targets)
		found := false
		for _, tc := range targets {
			if tc.PlayerID == picked {
				found = true
			}
		}
		require.True(t, found, "random target must come from the candidate list")
	}
}

func TestThresholdStaysOnWinningScore(t *testing.T) {
	s := NewThreshold()
	obs := Observation{
		TargetScore:     200,
		OwnScore:        190,
		OwnRoundScore:   12,
		BustProbability: 0.05,
	}
	assert.Equal(t, MoveStay, s.ChooseMove(obs, []Move{MoveHit, MoveStay}),
		"banking a winning total beats any further draw")
}

func TestThresholdHitsWithSecondChance(t *testing.T) {
	s := NewThreshold()
	obs := Observation{
		TargetScore:     200,
		OwnRoundScore:   25, // above StayAt
		HasSecondChance: true,
		BustProbability: 0, // a held Second Chance zeroes the bust chance
	}
	assert.Equal(t, MoveHit, s.ChooseMove(obs, []Move{MoveHit, MoveStay}))
}

func TestThresholdBanksBigHauls(t *testing.T) {
	s := NewThreshold()
	obs := Observation{
		TargetScore:     200,
		OwnRoundScore:   s.StayAt,
		BustProbability: 0.1,
	}
	assert.Equal(t, MoveStay, s.ChooseMove(obs, []Move{MoveHit, MoveStay}))
}

func TestThresholdChasesSeventhNumber(t *testing.T) {
	s := NewThreshold()
	obs := Observation{
		TargetScore:     200,
		OwnRoundScore:   15,
		OwnNumbers:      []int{1, 2, 3, 4, 5, 0},
		BustProbability: 0.45, // above MaxBustChance, below the bonus-chasing cap
	}
	assert.Equal(t, MoveHit, s.ChooseMove(obs, []Move{MoveHit, MoveStay}),
		"six distinct numbers justify chasing the bonus")
}

func TestThresholdRespectsBustChance(t *testing.T) {
	s := NewThreshold()
	obs := Observation{
		TargetScore:     200,
		OwnRoundScore:   10,
		OwnNumbers:      []int{4, 6},
		BustProbability: 0.5,
	}
	assert.Equal(t, MoveStay, s.ChooseMove(obs, []Move{MoveHit, MoveStay}))

	obs.BustProbability = 0.1
	assert.Equal(t, MoveHit, s.ChooseMove(obs, []Move{MoveHit, MoveStay}))
}

func TestThresholdAlwaysHitsWhenStayIsIllegal(t *testing.T) {
	s := NewThreshold()
	obs := Observation{OwnRoundScore: 100, BustProbability: 0.9}
	assert.Equal(t, MoveHit, s.ChooseMove(obs, []Move{MoveHit}))
}

func TestThresholdFreezesLeadingRival(t *testing.T) {
	s := NewThreshold()
	self := uuid.New()
	leader := uuid.New()
	targets := []TargetChoice{
		{PlayerID: self, Score: 150, RoundScore: 20, IsSelf: true},
		{PlayerID: uuid.New(), Score: 40, RoundScore: 5},
		{PlayerID: leader, Score: 120, RoundScore: 18},
	}
	picked := s.ChooseTarget(Observation{}, "freeze", targets)
	assert.Equal(t, leader, picked, "the rival closest to winning should be frozen")
}

func TestThresholdKeepsFlipThreeWhenDeckIsFriendly(t *testing.T) {
	s := NewThreshold()
	self := uuid.New()
	targets := []TargetChoice{
		{PlayerID: self, IsSelf: true},
		{PlayerID: uuid.New(), RoundScore: 30},
	}

	picked := s.ChooseTarget(Observation{BustProbability: 0.1}, "flip_three", targets)
	assert.Equal(t, self, picked, "a friendly deck makes three free flips worth taking")

	picked = s.ChooseTarget(Observation{BustProbability: 0.6}, "flip_three", targets)
	assert.Equal(t, targets[1].PlayerID, picked, "a risky deck pushes the flips onto the richest rival")
}
