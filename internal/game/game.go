// internal/game/game.go
package game

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"flipseven/internal/cache"
	"flipseven/internal/database"
	"flipseven/internal/models"
)

// queuedEffect is a Freeze or Flip Three drawn during a Flip Three sequence.
// It resolves after the sequence finishes, owned by the player who drew it.
type queuedEffect struct {
	Card  *models.Card
	Owner uuid.UUID
}

// PendingEffect tracks an action card waiting for its owner to pick a target.
type PendingEffect struct {
	Active  bool
	OwnerID uuid.UUID
	Card    *models.Card
}

// Flip7Game holds the entire state for a single game instance in memory.
//
// A game is a sequence of rounds. Within a round each active player, in turn
// order, either hits (draws one face-up card) or stays (banks their hand).
// The round ends when every player has busted, stayed, or been frozen; banked
// round scores accumulate and the first player to reach the target score wins.
type Flip7Game struct {
	ID      uuid.UUID
	LobbyID uuid.UUID // references the lobby that spawned this game

	HouseRules HouseRules

	Players     []*models.Player
	Deck        []*models.Card
	DiscardPile []*models.Card

	Round              int // 1-based
	CurrentPlayerIndex int
	TurnID             int // increments each turn, guards stale timers
	TurnDuration       time.Duration
	turnTimer          *time.Timer
	actionIndex        int // increments per action for the historian

	Started  bool
	GameOver bool
	lastSeen map[uuid.UUID]time.Time
	Mu       sync.Mutex

	// roundJustEnded marks that endRound ran inside a deeper call so outer
	// frames skip their own turn advancement. Cleared on entry-point exit.
	roundJustEnded bool

	rng *rand.Rand

	// Pending is the action card currently awaiting a target choice.
	Pending     PendingEffect
	effectQueue []queuedEffect

	// BroadcastFn sends an event to all players. If nil, no broadcast is done.
	BroadcastFn func(ev GameEvent)

	// BroadcastToPlayerFn sends an event to a single specific player.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)

	// OnGameEnd is invoked at game end to broadcast results, etc.
	OnGameEnd OnGameEndFunc
}

// NewFlip7Game builds an empty instance with default rules and a time-seeded shuffle.
func NewFlip7Game() *Flip7Game {
	return NewFlip7GameWithSeed(time.Now().UnixNano())
}

// NewFlip7GameWithSeed builds a game whose shuffles derive from the given
// seed. Used by the CLI for reproducible games and by tests.
func NewFlip7GameWithSeed(seed int64) *Flip7Game {
	g := &Flip7Game{
		ID:           uuid.New(),
		HouseRules:   DefaultHouseRules(),
		Round:        0,
		TurnDuration: 15 * time.Second,
		lastSeen:     make(map[uuid.UUID]time.Time),
		rng:          rand.New(rand.NewSource(seed)),
	}
	return g
}

// AddPlayer adds a player or refreshes their connection if they already exist.
func (g *Flip7Game) AddPlayer(p *models.Player) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	for i, pl := range g.Players {
		if pl.ID == p.ID {
			g.Players[i].Conn = p.Conn
			g.Players[i].Connected = true
			g.lastSeen[p.ID] = time.Now()
			log.Printf("Player %s reconnected to game %s", p.ID, g.ID)
			g.logAction(p.ID, "player_add", map[string]interface{}{"reconnect": true})
			return
		}
	}
	if g.Started {
		log.Printf("Player %s cannot join game %s after it started.", p.ID, g.ID)
		return
	}
	if len(g.Players) >= g.HouseRules.MaxPlayers {
		log.Printf("Player %s cannot join game %s: table is full.", p.ID, g.ID)
		return
	}
	p.Status = models.StatusActive
	g.Players = append(g.Players, p)
	g.lastSeen[p.ID] = time.Now()
	g.logAction(p.ID, "player_add", map[string]interface{}{"reconnect": false})
}

// Start deals nothing (hands begin empty), shuffles the first deck, and opens
// round 1 with player 0.
func (g *Flip7Game) Start() {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Started || g.GameOver {
		return
	}
	if len(g.Players) < 2 {
		log.Printf("Game %s: need at least 2 players to start (have %d).", g.ID, len(g.Players))
		return
	}
	if g.HouseRules.TurnTimerSec >= 0 {
		g.TurnDuration = time.Duration(g.HouseRules.TurnTimerSec) * time.Second
	}

	g.Started = true
	g.Round = 1
	g.resetDeck()
	for _, p := range g.Players {
		p.Hand = nil
		p.Status = models.StatusActive
	}
	g.CurrentPlayerIndex = 0
	g.logAction(uuid.Nil, "game_start", map[string]interface{}{"players": len(g.Players)})
	g.persistInitialGameState()

	g.fireRoundStart()
	g.scheduleNextTurnTimer()
	g.broadcastPlayerTurn()
}

// HandlePlayerAction interprets hit, stay, and target choices. This is the
// main router for player actions during their turn.
// Assumes lock is held by the caller (e.g. the WS handler).
func (g *Flip7Game) HandlePlayerAction(playerID uuid.UUID, action models.GameAction) {
	defer func() { g.roundJustEnded = false }()
	if g.GameOver {
		log.Printf("Game %s: action %s from %s after game over. Ignoring.", g.ID, action.ActionType, playerID)
		return
	}
	if !g.Started {
		log.Printf("Game %s: action %s from %s before game start. Ignoring.", g.ID, action.ActionType, playerID)
		return
	}

	player := g.getPlayerByID(playerID)
	if player == nil || !player.Connected {
		log.Printf("Game %s: action %s from unknown or disconnected player %s. Ignoring.", g.ID, action.ActionType, playerID)
		return
	}
	g.lastSeen[playerID] = time.Now()

	// A pending Freeze/Flip Three blocks everything except the target choice.
	if g.Pending.Active {
		if action.ActionType != "action_choose_target" {
			g.fireActionError(playerID, "An action card is waiting for a target.")
			return
		}
		g.handleChooseTarget(playerID, action.Payload)
		return
	}

	isCurrent := len(g.Players) > g.CurrentPlayerIndex && g.Players[g.CurrentPlayerIndex].ID == playerID
	if !isCurrent {
		g.fireActionError(playerID, "It's not your turn.")
		return
	}
	if player.Status.Done() {
		g.fireActionError(playerID, "You are out of this round.")
		return
	}

	switch action.ActionType {
	case "action_hit":
		g.handleHit(player)
	case "action_stay":
		g.handleStay(player)
	case "action_choose_target":
		g.fireActionError(playerID, "No action card is waiting for a target.")
	default:
		log.Printf("Game %s: unknown action type %q from player %s.", g.ID, action.ActionType, playerID)
		g.fireActionError(playerID, "Unknown action type.")
	}
}

// drawOutcome describes what a resolved draw means for turn flow.
type drawOutcome int

const (
	outcomeContinue drawOutcome = iota // turn may advance normally
	outcomePending                     // waiting on a target choice
	outcomeRoundOver
)

// handleHit draws one card for the player and resolves its consequences.
// Assumes lock is held.
func (g *Flip7Game) handleHit(p *models.Player) {
	card := g.drawCard()
	if card == nil {
		// Nothing left to draw anywhere: all remaining hands bank as they stand.
		log.Printf("Game %s: deck exhausted, ending round early.", g.ID)
		g.endRound()
		return
	}

	p.Hand = append(p.Hand, card)
	g.fireEvent(GameEvent{
		Type:    EventPlayerHit,
		User:    &EventUser{ID: p.ID},
		Card:    cardEvent(card),
		Payload: map[string]interface{}{"deckSize": len(g.Deck)},
	})
	g.logAction(p.ID, string(EventPlayerHit), map[string]interface{}{"card": card.Label()})

	switch g.resolveDraw(p, card, false) {
	case outcomePending:
		// Wait for action_choose_target; timer already reset.
	case outcomeRoundOver:
		// endRound already ran.
	default:
		g.advanceTurn()
	}
}

// handleStay banks the player's hand for the round.
// Assumes lock is held.
func (g *Flip7Game) handleStay(p *models.Player) {
	roundScore := g.roundScore(p)
	g.fireEvent(GameEvent{
		Type:    EventPlayerStay,
		User:    &EventUser{ID: p.ID},
		Payload: map[string]interface{}{"roundScore": roundScore},
	})
	g.logAction(p.ID, string(EventPlayerStay), map[string]interface{}{"roundScore": roundScore})
	g.endRoundFor(p, models.StatusStayed)
	g.advanceTurn()
}

// resolveDraw applies the consequences of a freshly drawn card: bust or Second
// Chance on duplicates, the Flip Seven bank-out, and action-card targeting.
// During a Flip Three sequence action cards queue instead of interrupting.
// Assumes lock is held.
func (g *Flip7Game) resolveDraw(p *models.Player, card *models.Card, duringFlipThree bool) drawOutcome {
	switch card.Kind {
	case models.KindNumber:
		if g.countNumber(p, card.Value) > 1 {
			return g.resolveDuplicate(p, card)
		}
		if g.distinctNumbers(p) == 7 {
			g.fireEvent(GameEvent{
				Type:    EventPlayerFlipSeven,
				User:    &EventUser{ID: p.ID},
				Payload: map[string]interface{}{"bonus": flipSevenBonus},
			})
			g.logAction(p.ID, string(EventPlayerFlipSeven), nil)
			g.endRoundFor(p, models.StatusStayed)
			return g.roundOverOr(outcomeContinue)
		}
	case models.KindAction:
		if card.Action == models.ActionSecondChance {
			// Kept in hand until a duplicate spends it.
			break
		}
		if duringFlipThree {
			g.effectQueue = append(g.effectQueue, queuedEffect{Card: card, Owner: p.ID})
			break
		}
		g.setPendingEffect(p.ID, card)
		return outcomePending
	}
	return g.roundOverOr(outcomeContinue)
}

// resolveDuplicate handles a drawn number that matches one already in hand.
// Assumes lock is held.
func (g *Flip7Game) resolveDuplicate(p *models.Player, card *models.Card) drawOutcome {
	if idx := p.SecondChanceIndex(); idx >= 0 {
		sc := p.Hand[idx]
		p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
		g.removeFromHand(p, card.ID)
		g.discard(sc)
		g.discard(card)
		g.fireEvent(GameEvent{
			Type:    EventPlayerSecondChance,
			User:    &EventUser{ID: p.ID},
			Card:    cardEvent(card),
			Payload: map[string]interface{}{"duplicate": card.Value},
		})
		g.logAction(p.ID, string(EventPlayerSecondChance), map[string]interface{}{"duplicate": card.Value})
		return g.roundOverOr(outcomeContinue)
	}

	g.fireEvent(GameEvent{
		Type:    EventPlayerBust,
		User:    &EventUser{ID: p.ID},
		Card:    cardEvent(card),
		Payload: map[string]interface{}{"duplicate": card.Value},
	})
	g.logAction(p.ID, string(EventPlayerBust), map[string]interface{}{"duplicate": card.Value})
	g.endRoundFor(p, models.StatusBusted)
	return g.roundOverOr(outcomeContinue)
}

// roundOverOr maps "did endRound just run" onto a draw outcome.
func (g *Flip7Game) roundOverOr(fallback drawOutcome) drawOutcome {
	if g.GameOver || g.roundJustEnded {
		return outcomeRoundOver
	}
	return fallback
}

// endRoundFor takes the player out of the current round, dropping any queued
// effects they own, and ends the round if nobody is left.
// Assumes lock is held.
func (g *Flip7Game) endRoundFor(p *models.Player, status models.PlayerStatus) {
	if p.Status.Done() {
		return
	}
	p.Status = status

	// Unresolved effects owned by a player who left the round are dropped.
	kept := g.effectQueue[:0]
	for _, e := range g.effectQueue {
		if e.Owner != p.ID {
			kept = append(kept, e)
		}
	}
	g.effectQueue = kept
	if g.Pending.Active && g.Pending.OwnerID == p.ID {
		g.Pending = PendingEffect{}
	}

	if g.activePlayers() == 0 {
		g.endRound()
	}
}

// advanceTurn moves play to the next active connected player, or ends the
// round when none remain.
// Assumes lock is held.
func (g *Flip7Game) advanceTurn() {
	if g.GameOver || g.roundJustEnded {
		return
	}
	if g.activePlayers() == 0 {
		g.endRound()
		return
	}

	g.TurnID++
	n := len(g.Players)
	idx := g.CurrentPlayerIndex
	for i := 0; i < n; i++ {
		idx = (idx + 1) % n
		p := g.Players[idx]
		if p.Status.Done() {
			continue
		}
		if !p.Connected {
			continue
		}
		g.CurrentPlayerIndex = idx
		g.scheduleNextTurnTimer()
		g.broadcastPlayerTurn()
		return
	}

	// Active players exist but none are connected; without forfeit we would
	// stall forever, so close out the round.
	log.Printf("Game %s: no connected active players, ending round.", g.ID)
	g.endRound()
}

// broadcastPlayerTurn notifies all players whose turn it is now.
// Assumes lock is held.
func (g *Flip7Game) broadcastPlayerTurn() {
	if g.GameOver || !g.Started || len(g.Players) == 0 {
		return
	}
	p := g.Players[g.CurrentPlayerIndex]
	g.fireEvent(GameEvent{
		Type: EventPlayerTurn,
		User: &EventUser{ID: p.ID},
		Payload: map[string]interface{}{
			"turn":            g.TurnID,
			"round":           g.Round,
			"bustProbability": g.BustProbability(p),
		},
	})
	g.logAction(p.ID, string(EventPlayerTurn), map[string]interface{}{"turn": g.TurnID, "round": g.Round})
}

// scheduleNextTurnTimer restarts the turn timer for the current player.
// A fired timer validates the turn ID so stale callbacks are ignored.
// Assumes lock is held.
func (g *Flip7Game) scheduleNextTurnTimer() {
	if g.TurnDuration <= 0 {
		return
	}
	if g.turnTimer != nil {
		g.turnTimer.Stop()
	}
	if len(g.Players) == 0 || g.CurrentPlayerIndex >= len(g.Players) {
		return
	}
	curPID := g.Players[g.CurrentPlayerIndex].ID
	turnID := g.TurnID

	g.turnTimer = time.AfterFunc(g.TurnDuration, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		if g.GameOver || !g.Started {
			return
		}
		if g.TurnID != turnID {
			return // stale timer
		}
		log.Printf("Game %s, turn %d: timer fired for player %s.", g.ID, turnID, curPID)
		g.handleTimeout(curPID)
	})
}

// handleTimeout resolves an unresponsive player: a pending action card
// auto-targets, otherwise the current player auto-stays.
// Assumes lock is held.
func (g *Flip7Game) handleTimeout(playerID uuid.UUID) {
	defer func() { g.roundJustEnded = false }()
	g.logAction(playerID, "player_timeout", nil)

	if g.Pending.Active {
		g.autoResolvePending()
		return
	}

	player := g.getPlayerByID(playerID)
	if player == nil || player.Status.Done() {
		g.advanceTurn()
		return
	}
	log.Printf("Game %s: player %s timed out, auto-stay.", g.ID, playerID)
	g.handleStay(player)
}

// ResetTurnTimer is exported for external usage. Assumes lock is held.
func (g *Flip7Game) ResetTurnTimer() {
	g.scheduleNextTurnTimer()
}

// endRound banks every surviving hand, broadcasts the totals, and either ends
// the game or opens the next round.
// Assumes lock is held.
func (g *Flip7Game) endRound() {
	if g.GameOver {
		return
	}
	g.roundJustEnded = true
	if g.turnTimer != nil {
		g.turnTimer.Stop()
	}
	g.Pending = PendingEffect{}
	g.effectQueue = nil

	roundScores := make(map[uuid.UUID]int, len(g.Players))
	totals := make(map[uuid.UUID]int, len(g.Players))
	for _, p := range g.Players {
		rs := g.roundScore(p)
		p.Score += rs
		roundScores[p.ID] = rs
		totals[p.ID] = p.Score
	}

	payload := map[string]interface{}{
		"round":       g.Round,
		"roundScores": uuidScoreMap(roundScores),
		"totals":      uuidScoreMap(totals),
	}
	g.fireEvent(GameEvent{Type: EventRoundEnd, Payload: payload})
	g.logAction(uuid.Nil, string(EventRoundEnd), payload)

	for _, p := range g.Players {
		if p.Score >= g.HouseRules.TargetScore {
			g.EndGame()
			return
		}
	}

	// Next round: fresh deck, cleared hands, rotated starting player.
	g.Round++
	g.resetDeck()
	for _, p := range g.Players {
		p.Hand = nil
		p.Status = models.StatusActive
	}
	start := (g.Round - 1) % len(g.Players)
	g.CurrentPlayerIndex = start
	// Skip a disconnected opener.
	for i := 0; i < len(g.Players); i++ {
		idx := (start + i) % len(g.Players)
		if g.Players[idx].Connected {
			g.CurrentPlayerIndex = idx
			break
		}
	}
	g.TurnID++

	g.fireRoundStart()
	g.scheduleNextTurnTimer()
	g.broadcastPlayerTurn()
}

// fireRoundStart announces a new round. Assumes lock is held.
func (g *Flip7Game) fireRoundStart() {
	g.fireEvent(GameEvent{
		Type: EventRoundStart,
		Payload: map[string]interface{}{
			"round":    g.Round,
			"deckSize": len(g.Deck),
		},
	})
	g.logAction(uuid.Nil, string(EventRoundStart), map[string]interface{}{"round": g.Round})
}

// EndGame finalizes scoring, declares winners, and persists results.
// Assumes lock is held.
func (g *Flip7Game) EndGame() {
	if g.GameOver {
		return
	}
	g.GameOver = true
	g.Started = false
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}

	scores := make(map[uuid.UUID]int, len(g.Players))
	best := 0
	for _, p := range g.Players {
		scores[p.ID] = p.Score
		if p.Score > best {
			best = p.Score
		}
	}
	var winners []uuid.UUID
	for _, p := range g.Players {
		if p.Score == best {
			winners = append(winners, p.ID)
		}
	}
	var firstWinner uuid.UUID
	if len(winners) > 0 {
		firstWinner = winners[0]
	}

	payload := map[string]interface{}{
		"scores":  uuidScoreMap(scores),
		"winner":  firstWinner.String(),
		"winners": uuidList(winners),
		"rounds":  g.Round,
	}
	g.fireEvent(GameEvent{Type: EventGameEnd, Payload: payload})
	g.logAction(uuid.Nil, string(EventGameEnd), payload)

	if g.OnGameEnd != nil {
		g.OnGameEnd(g.LobbyID, firstWinner, scores)
	}

	players := make([]*models.Player, len(g.Players))
	copy(players, g.Players)
	finalSnapshot := map[string]interface{}{
		"scores":  uuidScoreMap(scores),
		"winners": uuidList(winners),
		"rounds":  g.Round,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := database.RecordGameAndResults(ctx, g.ID, players, scores, winners); err != nil {
			log.Printf("Game %s: failed to persist results: %v", g.ID, err)
		}
		if err := database.StoreFinalGameStateInDB(ctx, g.ID, finalSnapshot); err != nil {
			log.Printf("Game %s: failed to store final state: %v", g.ID, err)
		}
	}()

	log.Printf("Game %s ended after %d round(s). Winner(s): %v", g.ID, g.Round, winners)
}

// HandleDisconnect processes a player's disconnection.
func (g *Flip7Game) HandleDisconnect(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	defer func() { g.roundJustEnded = false }()
	player := g.getPlayerByID(playerID)
	if player == nil || !player.Connected {
		return
	}
	player.Connected = false
	player.Conn = nil
	g.logAction(playerID, "player_disconnect", nil)

	if !g.Started || g.GameOver {
		return
	}

	wasCurrent := g.Players[g.CurrentPlayerIndex].ID == playerID

	if g.HouseRules.ForfeitOnDisconnect && !player.Status.Done() {
		g.fireEvent(GameEvent{
			Type:    EventPlayerBust,
			User:    &EventUser{ID: playerID},
			Payload: map[string]interface{}{"reason": "disconnect"},
		})
		g.endRoundFor(player, models.StatusBusted)
		if g.GameOver || g.roundJustEnded {
			return
		}
	}

	if g.Pending.Active && g.Pending.OwnerID == playerID {
		g.autoResolvePending()
		return
	}
	if wasCurrent {
		g.advanceTurn()
	}
}

// HandleReconnect marks a player as connected again and resyncs their state.
func (g *Flip7Game) HandleReconnect(playerID uuid.UUID, conn *websocket.Conn) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	player := g.getPlayerByID(playerID)
	if player == nil {
		log.Printf("Game %s: reconnecting player %s not found.", g.ID, playerID)
		if conn != nil {
			conn.Close(websocket.StatusPolicyViolation, "You are not a player in this game.")
		}
		return
	}
	player.Connected = true
	player.Conn = conn
	g.lastSeen[playerID] = time.Now()
	g.logAction(playerID, "player_reconnect", nil)

	g.sendSyncState(playerID)
	if g.Started && !g.GameOver && g.Players[g.CurrentPlayerIndex].ID == playerID {
		g.scheduleNextTurnTimer()
	}
}

// --- helpers ---

// countNumber counts face-up number cards of the given value (including the
// one just drawn). Assumes lock is held.
func (g *Flip7Game) countNumber(p *models.Player, value int) int {
	n := 0
	for _, c := range p.Hand {
		if c.IsNumber() && c.Value == value {
			n++
		}
	}
	return n
}

// distinctNumbers counts the number cards in hand. Hands never retain
// duplicates, so this equals the count of distinct values.
func (g *Flip7Game) distinctNumbers(p *models.Player) int {
	n := 0
	for _, c := range p.Hand {
		if c.IsNumber() {
			n++
		}
	}
	return n
}

// activePlayers counts players still hitting this round. Assumes lock is held.
func (g *Flip7Game) activePlayers() int {
	n := 0
	for _, p := range g.Players {
		if !p.Status.Done() {
			n++
		}
	}
	return n
}

// ActiveTargets lists players a Freeze or Flip Three may be aimed at.
// Assumes lock is held.
func (g *Flip7Game) ActiveTargets() []*models.Player {
	var out []*models.Player
	for _, p := range g.Players {
		if !p.Status.Done() {
			out = append(out, p)
		}
	}
	return out
}

func (g *Flip7Game) getPlayerByID(playerID uuid.UUID) *models.Player {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (g *Flip7Game) removeFromHand(p *models.Player, cardID uuid.UUID) {
	for i, c := range p.Hand {
		if c.ID == cardID {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return
		}
	}
}

// fireEvent broadcasts an event to all connected players. Assumes lock is held.
func (g *Flip7Game) fireEvent(ev GameEvent) {
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends an event only to a specific player. Assumes lock is held.
func (g *Flip7Game) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn == nil {
		return
	}
	p := g.getPlayerByID(playerID)
	if p != nil && p.Connected {
		g.BroadcastToPlayerFn(playerID, ev)
	}
}

func (g *Flip7Game) fireActionError(playerID uuid.UUID, msg string) {
	g.fireEventToPlayer(playerID, GameEvent{
		Type:    EventActionError,
		Payload: map[string]interface{}{"message": msg},
	})
}

// logAction ships the action to the historian queue, best effort.
// Assumes lock is held.
func (g *Flip7Game) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		GameID:        g.ID,
		ActionIndex:   g.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.GameActionRecord) {
		if cache.Rdb == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			log.Printf("Game %s: failed to publish action %d: %v", g.ID, rec.ActionIndex, err)
		}
	}(record)
}

// persistInitialGameState saves the shuffled round-1 deck order so a replay
// can reconstruct the game. Assumes lock is held.
func (g *Flip7Game) persistInitialGameState() {
	snap := struct {
		Deck []*models.Card `json:"deck"`
	}{Deck: make([]*models.Card, len(g.Deck))}
	copy(snap.Deck, g.Deck)
	go database.UpsertInitialGameState(g.ID, snap)
}

func cardEvent(c *models.Card) *EventCard {
	if c == nil {
		return nil
	}
	return &EventCard{
		ID:         c.ID,
		Kind:       string(c.Kind),
		Value:      c.Value,
		Multiplier: c.Multiplier,
		Action:     c.Action,
		Label:      c.Label(),
	}
}

func uuidScoreMap(m map[uuid.UUID]int) map[string]int {
	out := make(map[string]int, len(m))
	for id, v := range m {
		out[id.String()] = v
	}
	return out
}

func uuidList(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
