package rating

import (
	"testing"

	"github.com/google/uuid"

	"flipseven/internal/models"
)

func TestUpdateDuel(t *testing.T) {
	winner := models.User{EloDuel: 1500}
	loser := models.User{EloDuel: 1500}

	newW, newL := UpdateDuel(winner, loser)
	if newW.EloDuel <= 1500 {
		t.Errorf("winner's rating should have gone up, got %d", newW.EloDuel)
	}
	if newL.EloDuel >= 1500 {
		t.Errorf("loser's rating should have gone down, got %d", newL.EloDuel)
	}
}

func TestFinalizeRatingsRewardsHighScores(t *testing.T) {
	a := models.User{ID: uuid.New(), EloDuel: 1500}
	b := models.User{ID: uuid.New(), EloDuel: 1500}
	c := models.User{ID: uuid.New(), EloDuel: 1500}

	scores := map[uuid.UUID]int{
		a.ID: 215, // first past the post
		b.ID: 140,
		c.ID: 60,
	}

	updated := FinalizeRatings([]models.User{a, b, c}, scores)

	byID := map[uuid.UUID]int{}
	for _, u := range updated {
		byID[u.ID] = u.EloDuel
	}
	if byID[a.ID] <= 1500 {
		t.Errorf("top scorer should gain rating, got %d", byID[a.ID])
	}
	if byID[c.ID] >= 1500 {
		t.Errorf("bottom scorer should lose rating, got %d", byID[c.ID])
	}
	if byID[a.ID] <= byID[c.ID] {
		t.Errorf("ratings should follow the standings: %d vs %d", byID[a.ID], byID[c.ID])
	}
}

func TestFinalizeRatingsTiedGame(t *testing.T) {
	a := models.User{ID: uuid.New(), EloDuel: 1500}
	b := models.User{ID: uuid.New(), EloDuel: 1500}

	scores := map[uuid.UUID]int{a.ID: 200, b.ID: 200}
	updated := FinalizeRatings([]models.User{a, b}, scores)

	if updated[0].EloDuel != updated[1].EloDuel {
		t.Errorf("a tied game between equals should leave ratings equal: %d vs %d",
			updated[0].EloDuel, updated[1].EloDuel)
	}
}

func TestSingleStepDuelUpdate(t *testing.T) {
	winner := models.User{ID: uuid.New(), EloDuel: 1500, PhiDuel: DefaultPhi, SigmaDuel: 0.06}
	loser := models.User{ID: uuid.New(), EloDuel: 1500, PhiDuel: DefaultPhi, SigmaDuel: 0.06}

	updated := SingleOrMultiPlayerGlicko2([]models.User{winner, loser}, []float64{1.0, 0.0})

	if updated[0].EloDuel <= 1500 {
		t.Errorf("winner's rating should have gone up, got %d", updated[0].EloDuel)
	}
	if updated[1].EloDuel >= 1500 {
		t.Errorf("loser's rating should have gone down, got %d", updated[1].EloDuel)
	}
	if updated[0].PhiDuel <= 0 || updated[0].PhiDuel >= DefaultPhi {
		t.Errorf("a finished match should shrink the rating deviation, got %f", updated[0].PhiDuel)
	}
	if updated[0].SigmaDuel <= 0 {
		t.Errorf("volatility should stay positive, got %f", updated[0].SigmaDuel)
	}
}

func TestSingleStepDuelSettlesWithNarrowDeviation(t *testing.T) {
	// A veteran with a small deviation moves less than a fresh account.
	veteran := models.User{ID: uuid.New(), EloDuel: 1500, PhiDuel: 50, SigmaDuel: 0.06}
	fresh := models.User{ID: uuid.New(), EloDuel: 1500, PhiDuel: DefaultPhi, SigmaDuel: 0.06}

	vUp := SingleOrMultiPlayerGlicko2([]models.User{veteran, fresh}, []float64{1.0, 0.0})
	vGain := vUp[0].EloDuel - 1500
	fGain := -(vUp[1].EloDuel - 1500)

	if vGain >= fGain {
		t.Errorf("a narrow deviation should damp the swing: veteran %+d vs fresh %+d", vGain, -fGain)
	}
}

func TestHigherRatedWinnerGainsLess(t *testing.T) {
	favorite := models.User{EloDuel: 1800}
	underdog := models.User{EloDuel: 1400}

	newFav, _ := UpdateDuel(favorite, underdog)
	favGain := newFav.EloDuel - 1800

	evenW, _ := UpdateDuel(models.User{EloDuel: 1500}, models.User{EloDuel: 1500})
	evenGain := evenW.EloDuel - 1500

	if favGain >= evenGain {
		t.Errorf("beating an underdog should pay less than an even match: %d vs %d", favGain, evenGain)
	}
}
