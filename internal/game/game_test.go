// internal/game/game_test.go
package game

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flipseven/internal/models"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent               // Events sent to everyone
	playerEvents map[uuid.UUID][]GameEvent // Events sent to specific players
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]GameEvent),
	}
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = []GameEvent{}
	mb.playerEvents = make(map[uuid.UUID][]GameEvent)
}

func (mb *mockBroadcaster) getLastEvent() *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.allEvents) == 0 {
		return nil
	}
	return &mb.allEvents[len(mb.allEvents)-1]
}

func (mb *mockBroadcaster) getLastPlayerEvent(playerID uuid.UUID) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events, ok := mb.playerEvents[playerID]
	if !ok || len(events) == 0 {
		return nil
	}
	return &events[len(events)-1]
}

func (mb *mockBroadcaster) eventsOfType(typ GameEventType) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEvent
	for _, ev := range mb.allEvents {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// setupTestGame initializes a started game with players and mock broadcasters.
// The turn timer is disabled so tests drive the game synchronously.
func setupTestGame(t *testing.T, numPlayers int, rules *HouseRules) (*Flip7Game, []*models.Player, *mockBroadcaster) {
	g := NewFlip7GameWithSeed(7)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn

	if rules != nil {
		g.HouseRules = *rules
	} else {
		g.HouseRules.TurnTimerSec = 0
	}

	players := make([]*models.Player, numPlayers)
	for i := 0; i < numPlayers; i++ {
		player := &models.Player{
			ID:        uuid.New(),
			Connected: true,
		}
		players[i] = player
		g.AddPlayer(player)
	}

	g.Start()
	require.True(t, g.Started, "Game should be marked as started")
	require.Equal(t, 1, g.Round)

	mb.clear() // Clear events from setup phase

	return g, players, mb
}

// act routes a player action through HandlePlayerAction under the game lock.
func act(g *Flip7Game, playerID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.HandlePlayerAction(playerID, models.GameAction{ActionType: actionType, Payload: payload})
}

// stackDeck replaces the stockpile so draws come out in a known order.
func stackDeck(g *Flip7Game, cards ...*models.Card) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.Deck = cards
	g.DiscardPile = nil
}

func numberCard(v int) *models.Card {
	return &models.Card{ID: uuid.New(), Kind: models.KindNumber, Value: v}
}

func actionCard(action string) *models.Card {
	return &models.Card{ID: uuid.New(), Kind: models.KindAction, Action: action}
}

func modifierCard(v int) *models.Card {
	return &models.Card{ID: uuid.New(), Kind: models.KindModifier, Value: v}
}

func multiplierCard() *models.Card {
	return &models.Card{ID: uuid.New(), Kind: models.KindModifier, Multiplier: true}
}

// TestHitDrawsCardAndAdvancesTurn tests the basic hit flow.
func TestHitDrawsCardAndAdvancesTurn(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	playerA := players[0]
	playerB := players[1]
	require.Equal(t, playerA.ID, g.Players[g.CurrentPlayerIndex].ID, "Should be Player A's turn")

	stackDeck(g, numberCard(5), numberCard(6), numberCard(7), numberCard(8))

	act(g, playerA.ID, "action_hit", nil)

	require.Len(t, playerA.Hand, 1, "Player A should have drawn one card")
	assert.Equal(t, 5, playerA.Hand[0].Value)
	assert.Equal(t, models.StatusActive, playerA.Status)

	hits := mb.eventsOfType(EventPlayerHit)
	require.Len(t, hits, 1)
	assert.Equal(t, playerA.ID, hits[0].User.ID)
	require.NotNil(t, hits[0].Card)
	assert.Equal(t, "5", hits[0].Card.Label)

	// Turn advances after every resolved draw.
	assert.Equal(t, playerB.ID, g.Players[g.CurrentPlayerIndex].ID, "Turn should advance to Player B")
	lastEvent := mb.getLastEvent()
	require.NotNil(t, lastEvent)
	assert.Equal(t, EventPlayerTurn, lastEvent.Type)
	assert.Equal(t, playerB.ID, lastEvent.User.ID)
}

// TestStayBanksRoundScore tests that staying takes the player out with their hand value.
func TestStayBanksRoundScore(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	playerA := players[0]

	playerA.Hand = []*models.Card{numberCard(10), numberCard(4)}

	act(g, playerA.ID, "action_stay", nil)

	assert.Equal(t, models.StatusStayed, playerA.Status)
	stays := mb.eventsOfType(EventPlayerStay)
	require.Len(t, stays, 1)
	assert.Equal(t, playerA.ID, stays[0].User.ID)
	assert.Equal(t, 14, stays[0].Payload["roundScore"])

	// Score banks at round end, not on the stay itself.
	assert.Equal(t, 0, playerA.Score)
}

// TestBustOnDuplicate tests that drawing a number already in hand busts.
func TestBustOnDuplicate(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	playerA := players[0]
	playerB := players[1]

	playerA.Hand = []*models.Card{numberCard(9)}
	stackDeck(g, numberCard(9), numberCard(3), numberCard(4))

	act(g, playerA.ID, "action_hit", nil)

	assert.Equal(t, models.StatusBusted, playerA.Status)
	busts := mb.eventsOfType(EventPlayerBust)
	require.Len(t, busts, 1)
	assert.Equal(t, playerA.ID, busts[0].User.ID)
	assert.Equal(t, 9, busts[0].Payload["duplicate"])

	// B is still in the round, so play continues.
	require.False(t, g.GameOver)
	assert.Equal(t, 1, g.Round)
	assert.Equal(t, playerB.ID, g.Players[g.CurrentPlayerIndex].ID)
}

// TestBustedHandScoresZero tests that a bust forfeits the round score.
func TestBustedHandScoresZero(t *testing.T) {
	g, players, _ := setupTestGame(t, 2, nil)
	playerA := players[0]
	playerB := players[1]

	playerA.Hand = []*models.Card{numberCard(12), numberCard(11), modifierCard(10)}
	playerB.Hand = []*models.Card{numberCard(2)}
	stackDeck(g, numberCard(12), numberCard(3), numberCard(4))

	// A busts, then B stays; round ends and totals bank.
	act(g, playerA.ID, "action_hit", nil)
	require.Equal(t, models.StatusBusted, playerA.Status)
	act(g, playerB.ID, "action_stay", nil)

	assert.Equal(t, 0, playerA.Score, "Busted hand should bank nothing")
	assert.Equal(t, 2, playerB.Score)
	assert.Equal(t, 2, g.Round, "A new round should have started")
}

// TestSecondChanceAbsorbsDuplicate tests the Second Chance save.
func TestSecondChanceAbsorbsDuplicate(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	playerA := players[0]

	playerA.Hand = []*models.Card{numberCard(6), actionCard(models.ActionSecondChance)}
	stackDeck(g, numberCard(6), numberCard(3), numberCard(4))

	act(g, playerA.ID, "action_hit", nil)

	assert.Equal(t, models.StatusActive, playerA.Status, "Second Chance should keep the player in the round")
	saves := mb.eventsOfType(EventPlayerSecondChance)
	require.Len(t, saves, 1)
	assert.Equal(t, playerA.ID, saves[0].User.ID)
	assert.Equal(t, 6, saves[0].Payload["duplicate"])
	assert.Empty(t, mb.eventsOfType(EventPlayerBust))

	// Both the Second Chance and the duplicate leave the hand.
	require.Len(t, playerA.Hand, 1)
	assert.Equal(t, 6, playerA.Hand[0].Value)
	assert.Equal(t, -1, playerA.SecondChanceIndex())
	assert.Len(t, g.DiscardPile, 2)
}

// TestFlipSevenBanksWithBonus tests the seven-number instant bank-out.
func TestFlipSevenBanksWithBonus(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	playerA := players[0]
	playerB := players[1]

	playerA.Hand = []*models.Card{
		numberCard(1), numberCard(2), numberCard(3),
		numberCard(4), numberCard(5), numberCard(6),
	}
	playerB.Hand = []*models.Card{numberCard(9)}
	stackDeck(g, numberCard(7), numberCard(8), numberCard(10))

	act(g, playerA.ID, "action_hit", nil)

	assert.Equal(t, models.StatusStayed, playerA.Status, "Flip Seven banks the player immediately")
	require.Len(t, mb.eventsOfType(EventPlayerFlipSeven), 1)

	// 1+2+...+7 = 28, plus the bonus.
	act(g, playerB.ID, "action_stay", nil)
	assert.Equal(t, 28+15, playerA.Score)
	assert.Equal(t, 9, playerB.Score)
}

// TestFreezeTargeting tests drawing a Freeze and aiming it at a rival.
func TestFreezeTargeting(t *testing.T) {
	g, players, mb := setupTestGame(t, 3, nil)
	playerA := players[0]
	playerB := players[1]
	playerC := players[2]

	playerB.Hand = []*models.Card{numberCard(8), numberCard(4)}
	stackDeck(g, actionCard(models.ActionFreeze), numberCard(3), numberCard(5))

	act(g, playerA.ID, "action_hit", nil)

	require.True(t, g.Pending.Active, "A target choice should be pending")
	assert.Equal(t, playerA.ID, g.Pending.OwnerID)
	pending := mb.eventsOfType(EventEffectPending)
	require.Len(t, pending, 1)
	assert.Equal(t, playerA.ID, pending[0].User.ID)

	// The pending choice blocks normal play for everyone.
	act(g, playerB.ID, "action_hit", nil)
	errEvent := mb.getLastPlayerEvent(playerB.ID)
	require.NotNil(t, errEvent)
	assert.Equal(t, EventActionError, errEvent.Type)

	// Only the owner may aim the card.
	act(g, playerB.ID, "action_choose_target", map[string]interface{}{"target": playerC.ID.String()})
	require.True(t, g.Pending.Active, "A non-owner must not resolve the effect")

	act(g, playerA.ID, "action_choose_target", map[string]interface{}{"target": playerB.ID.String()})

	require.False(t, g.Pending.Active)
	assert.Equal(t, models.StatusFrozen, playerB.Status, "Frozen player banks and leaves the round")
	frozen := mb.eventsOfType(EventPlayerFrozen)
	require.Len(t, frozen, 1)
	assert.Equal(t, playerA.ID, frozen[0].User.ID)
	assert.Equal(t, playerB.ID, frozen[0].Target.ID)

	// Play resumes with the next active player after A.
	assert.Equal(t, playerC.ID, g.Players[g.CurrentPlayerIndex].ID)
}

// TestFreezeSelfEndsOwnRound tests aiming a Freeze at yourself.
func TestFreezeSelfEndsOwnRound(t *testing.T) {
	g, players, _ := setupTestGame(t, 2, nil)
	playerA := players[0]

	playerA.Hand = []*models.Card{numberCard(10)}
	stackDeck(g, actionCard(models.ActionFreeze), numberCard(3), numberCard(5))

	act(g, playerA.ID, "action_hit", nil)
	require.True(t, g.Pending.Active)

	act(g, playerA.ID, "action_choose_target", map[string]interface{}{"target": playerA.ID.String()})

	assert.Equal(t, models.StatusFrozen, playerA.Status)
	require.False(t, g.GameOver)
}

// TestFlipThreeForcesDraws tests the three forced flips and the survival event.
func TestFlipThreeForcesDraws(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	playerA := players[0]
	playerB := players[1]

	stackDeck(g,
		actionCard(models.ActionFlipThree),
		numberCard(2), numberCard(5), numberCard(8),
		numberCard(11),
	)

	act(g, playerA.ID, "action_hit", nil)
	require.True(t, g.Pending.Active)

	act(g, playerA.ID, "action_choose_target", map[string]interface{}{"target": playerB.ID.String()})

	assert.Len(t, playerB.Hand, 3, "Target should have flipped three cards")
	assert.Equal(t, models.StatusActive, playerB.Status)
	require.Len(t, mb.eventsOfType(EventFlipThreeStart), 1)
	require.Len(t, mb.eventsOfType(EventFlipThreeSurvived), 1)

	// The Flip Three card itself never joins a hand.
	for _, c := range playerA.Hand {
		assert.NotEqual(t, models.ActionFlipThree, c.Action)
	}
}

// TestFlipThreeBustStopsEarly tests that a duplicate during Flip Three busts and halts the flips.
func TestFlipThreeBustStopsEarly(t *testing.T) {
	g, players, mb := setupTestGame(t, 3, nil)
	playerA := players[0]
	playerB := players[1]

	playerB.Hand = []*models.Card{numberCard(4)}
	stackDeck(g,
		actionCard(models.ActionFlipThree),
		numberCard(4), // duplicate on the first forced flip
		numberCard(6), numberCard(7), numberCard(8),
	)

	act(g, playerA.ID, "action_hit", nil)
	act(g, playerA.ID, "action_choose_target", map[string]interface{}{"target": playerB.ID.String()})

	assert.Equal(t, models.StatusBusted, playerB.Status)
	assert.Len(t, playerB.Hand, 2, "Flips should stop after the bust")
	assert.Empty(t, mb.eventsOfType(EventFlipThreeSurvived))
}

// TestFlipThreeQueuesActionCards tests that action cards drawn during the
// forced flips resolve only after the sequence finishes.
func TestFlipThreeQueuesActionCards(t *testing.T) {
	g, players, mb := setupTestGame(t, 3, nil)
	playerA := players[0]
	playerB := players[1]
	playerC := players[2]

	stackDeck(g,
		actionCard(models.ActionFlipThree),
		numberCard(2),
		actionCard(models.ActionFreeze), // queued, not immediate
		numberCard(5),
		numberCard(9),
	)

	act(g, playerA.ID, "action_hit", nil)
	act(g, playerA.ID, "action_choose_target", map[string]interface{}{"target": playerB.ID.String()})

	require.Len(t, mb.eventsOfType(EventFlipThreeSurvived), 1, "B should survive all three flips")
	require.True(t, g.Pending.Active, "The queued Freeze should now be pending")
	assert.Equal(t, playerB.ID, g.Pending.OwnerID, "The Freeze belongs to the player who flipped it")

	act(g, playerB.ID, "action_choose_target", map[string]interface{}{"target": playerC.ID.String()})
	assert.Equal(t, models.StatusFrozen, playerC.Status)
}

// TestRoundEndBanksAndRotates tests round scoring, totals, and the rotated opener.
func TestRoundEndBanksAndRotates(t *testing.T) {
	g, players, mb := setupTestGame(t, 3, nil)
	playerA := players[0]
	playerB := players[1]
	playerC := players[2]

	playerA.Hand = []*models.Card{numberCard(10), numberCard(2), multiplierCard()}
	playerB.Hand = []*models.Card{numberCard(7), modifierCard(4)}
	playerC.Hand = []*models.Card{numberCard(1)}

	act(g, playerA.ID, "action_stay", nil)
	act(g, playerB.ID, "action_stay", nil)
	act(g, playerC.ID, "action_stay", nil)

	assert.Equal(t, 24, playerA.Score, "x2 doubles the number sum")
	assert.Equal(t, 11, playerB.Score, "bonus modifiers add after doubling")
	assert.Equal(t, 1, playerC.Score)

	ends := mb.eventsOfType(EventRoundEnd)
	require.Len(t, ends, 1)
	totals, ok := ends[0].Payload["totals"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 24, totals[playerA.ID.String()])

	// Round 2: hands cleared, everyone active, opener rotates to seat 1.
	assert.Equal(t, 2, g.Round)
	assert.Equal(t, 1, g.CurrentPlayerIndex)
	for _, p := range players {
		assert.Empty(t, p.Hand)
		assert.Equal(t, models.StatusActive, p.Status)
	}
	assert.Len(t, g.Deck, 94, "Each round starts from a fresh deck")
}

// TestTargetScoreEndsGame tests that crossing the target after a round ends the game.
func TestTargetScoreEndsGame(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	playerA := players[0]
	playerB := players[1]

	playerA.Score = 195
	playerA.Hand = []*models.Card{numberCard(12)}
	playerB.Score = 100

	act(g, playerA.ID, "action_stay", nil)
	act(g, playerB.ID, "action_stay", nil)

	require.True(t, g.GameOver)
	assert.Equal(t, 207, playerA.Score)

	endEvents := mb.eventsOfType(EventGameEnd)
	require.Len(t, endEvents, 1)
	assert.Equal(t, playerA.ID.String(), endEvents[0].Payload["winner"])
	winners, ok := endEvents[0].Payload["winners"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{playerA.ID.String()}, winners)

	// No further actions are accepted.
	mb.clear()
	act(g, playerB.ID, "action_hit", nil)
	assert.Empty(t, mb.eventsOfType(EventPlayerHit))
}

// TestTiedWinnersShareTheWin tests that equal top totals all count as winners.
func TestTiedWinnersShareTheWin(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	playerA := players[0]
	playerB := players[1]

	playerA.Score = 200
	playerB.Score = 200

	act(g, playerA.ID, "action_stay", nil)
	act(g, playerB.ID, "action_stay", nil)

	require.True(t, g.GameOver)
	endEvents := mb.eventsOfType(EventGameEnd)
	require.Len(t, endEvents, 1)
	winners, ok := endEvents[0].Payload["winners"].([]string)
	require.True(t, ok)
	assert.Len(t, winners, 2)
}

// TestOutOfTurnActionRejected tests the turn guard.
func TestOutOfTurnActionRejected(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	playerA := players[0]
	playerB := players[1]
	require.Equal(t, playerA.ID, g.Players[g.CurrentPlayerIndex].ID)

	act(g, playerB.ID, "action_hit", nil)

	assert.Empty(t, playerB.Hand)
	errEvent := mb.getLastPlayerEvent(playerB.ID)
	require.NotNil(t, errEvent)
	assert.Equal(t, EventActionError, errEvent.Type)
	assert.Equal(t, playerA.ID, g.Players[g.CurrentPlayerIndex].ID, "Turn should not move")
}

// TestTurnTimeoutAutoStays tests that an unresponsive player is auto-stayed.
func TestTurnTimeoutAutoStays(t *testing.T) {
	g := NewFlip7GameWithSeed(7)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	g.HouseRules.TurnTimerSec = -1 // keep the preset duration below
	g.TurnDuration = 50 * time.Millisecond

	playerA := &models.Player{ID: uuid.New(), Connected: true}
	playerB := &models.Player{ID: uuid.New(), Connected: true}
	g.AddPlayer(playerA)
	g.AddPlayer(playerB)
	g.Start()
	require.True(t, g.Started)
	defer func() {
		g.Mu.Lock()
		g.EndGame()
		g.Mu.Unlock()
	}()

	require.Eventually(t, func() bool {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		return playerA.Status == models.StatusStayed
	}, time.Second, 10*time.Millisecond, "Player A should auto-stay on timeout")
}

// TestDisconnectForfeitsRound tests the forfeit-on-disconnect house rule.
func TestDisconnectForfeitsRound(t *testing.T) {
	g, players, mb := setupTestGame(t, 3, nil)
	playerA := players[0]
	playerB := players[1]
	require.True(t, g.HouseRules.ForfeitOnDisconnect)

	g.HandleDisconnect(playerA.ID)

	assert.Equal(t, models.StatusBusted, playerA.Status)
	assert.False(t, playerA.Connected)
	busts := mb.eventsOfType(EventPlayerBust)
	require.Len(t, busts, 1)
	assert.Equal(t, "disconnect", busts[0].Payload["reason"])
	assert.Equal(t, playerB.ID, g.Players[g.CurrentPlayerIndex].ID)
}

// TestDisconnectWithoutForfeitSkipsTurns tests that without the forfeit rule a
// disconnected player stays in the round but is skipped.
func TestDisconnectWithoutForfeitSkipsTurns(t *testing.T) {
	rules := DefaultHouseRules()
	rules.TurnTimerSec = 0
	rules.ForfeitOnDisconnect = false
	g, players, _ := setupTestGame(t, 3, &rules)
	playerA := players[0]
	playerC := players[2]

	g.HandleDisconnect(players[1].ID)
	stackDeck(g, numberCard(3), numberCard(5), numberCard(6), numberCard(8))

	act(g, playerA.ID, "action_hit", nil)

	assert.Equal(t, models.StatusActive, players[1].Status)
	assert.Equal(t, playerC.ID, g.Players[g.CurrentPlayerIndex].ID, "Turn should skip the disconnected seat")
}

// TestDeckReshufflesDiscards tests that an exhausted stockpile recycles the discard pile.
func TestDeckReshufflesDiscards(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	playerA := players[0]

	g.Mu.Lock()
	g.Deck = []*models.Card{}
	g.DiscardPile = []*models.Card{numberCard(3), numberCard(4), numberCard(5)}
	g.Mu.Unlock()

	act(g, playerA.ID, "action_hit", nil)

	require.Len(t, mb.eventsOfType(EventDeckReshuffle), 1)
	assert.Len(t, playerA.Hand, 1)
	assert.Empty(t, g.DiscardPile)
}

// TestDeckExhaustionEndsRound tests that a hit with both the stockpile and the
// discard pile empty forces the round to end with every active hand banked.
func TestDeckExhaustionEndsRound(t *testing.T) {
	g, players, mb := setupTestGame(t, 2, nil)
	playerA := players[0]
	playerB := players[1]

	stackDeck(g, numberCard(5), numberCard(7))

	act(g, playerA.ID, "action_hit", nil) // A draws the 5, deck down to one
	act(g, playerB.ID, "action_hit", nil) // B draws the 7, deck now empty

	require.Empty(t, g.Deck)
	require.Empty(t, g.DiscardPile)

	act(g, playerA.ID, "action_hit", nil) // nothing left anywhere

	require.Len(t, mb.eventsOfType(EventRoundEnd), 1, "an unfillable hit should end the round")
	assert.Equal(t, 5, playerA.Score, "Player A banks their hand as it stands")
	assert.Equal(t, 7, playerB.Score, "Player B banks their hand as it stands")
	assert.Equal(t, 2, g.Round, "a fresh round should have started")
	assert.Len(t, g.Deck, 94, "the new round gets a full deck")
}
