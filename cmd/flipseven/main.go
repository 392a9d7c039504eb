// cmd/flipseven/main.go is the local table: it runs a full game of Flip Seven
// in the terminal with any mix of human seats and bots.
//
// Usage:
//
//	flipseven [-target N] [-seed N] [-verbose] NAME [NAME...]
//
// Plain names are human seats prompted on stdin. A "bot:" prefix seats a
// threshold bot, a "random:" prefix a uniform-random one.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"flipseven/internal/game"
	"flipseven/internal/models"
	"flipseven/internal/strategy"
)

func main() {
	target := flag.Int("target", 200, "banked score that ends the game")
	seed := flag.Int64("seed", 0, "deck shuffle seed (0 = random)")
	verbose := flag.Bool("verbose", false, "show engine log output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] NAME [NAME...]\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "  NAME          human seat, prompted on stdin")
		fmt.Fprintln(flag.CommandLine.Output(), "  bot:NAME      threshold bot")
		fmt.Fprintln(flag.CommandLine.Output(), "  random:NAME   uniform-random bot")
		flag.PrintDefaults()
	}
	flag.Parse()

	names := flag.Args()
	if len(names) < 2 {
		flag.Usage()
		os.Exit(2)
	}
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	t := newTable(*seed, *target, names)
	t.run()
}

// table owns the game instance and one strategy per seat.
type table struct {
	g     *game.Flip7Game
	seats map[uuid.UUID]strategy.Strategy
	names map[uuid.UUID]string
	in    *bufio.Scanner
	out   io.Writer
}

func newTable(seed int64, target int, names []string) *table {
	g := game.NewFlip7GameWithSeed(seed)
	g.HouseRules.TargetScore = target
	g.HouseRules.TurnTimerSec = 0 // turns wait for stdin
	if len(names) > g.HouseRules.MaxPlayers {
		fmt.Fprintf(os.Stderr, "at most %d players per table\n", g.HouseRules.MaxPlayers)
		os.Exit(2)
	}

	t := &table{
		g:     g,
		seats: make(map[uuid.UUID]strategy.Strategy, len(names)),
		names: make(map[uuid.UUID]string, len(names)),
		in:    bufio.NewScanner(os.Stdin),
		out:   os.Stdout,
	}

	for i, raw := range names {
		name := raw
		var strat strategy.Strategy
		switch {
		case strings.HasPrefix(raw, "bot:"):
			name = strings.TrimPrefix(raw, "bot:")
			strat = strategy.NewThreshold()
		case strings.HasPrefix(raw, "random:"):
			name = strings.TrimPrefix(raw, "random:")
			strat = strategy.NewRandom(seed + int64(i) + 1)
		default:
			strat = &humanSeat{table: t, name: name}
		}
		if name == "" {
			name = fmt.Sprintf("Player%d", i+1)
		}

		id := uuid.New()
		t.seats[id] = strat
		t.names[id] = name
		g.AddPlayer(&models.Player{
			ID:        id,
			Connected: true,
			User:      &models.User{ID: id, Username: name, IsEphemeral: true},
		})
	}

	g.BroadcastFn = t.renderEvent
	g.BroadcastToPlayerFn = func(playerID uuid.UUID, ev game.GameEvent) {
		if ev.Type == game.EventActionError {
			fmt.Fprintf(t.out, "  ! %v\n", ev.Payload["message"])
		}
	}
	return t
}

// run drives the game to completion. The engine expects its lock held around
// HandlePlayerAction and ChooseEffectTarget; with no timers and no sockets
// this goroutine is the only caller, so locking is purely for that contract.
func (t *table) run() {
	t.g.Start()

	for {
		t.g.Mu.Lock()
		if t.g.GameOver {
			t.g.Mu.Unlock()
			break
		}

		if t.g.Pending.Active {
			ownerID := t.g.Pending.OwnerID
			action := t.g.Pending.Card.Action
			obs := t.observe(ownerID)
			choices := t.targetChoices(ownerID)
			t.g.Mu.Unlock()

			targetID := t.seats[ownerID].ChooseTarget(obs, action, choices)

			t.g.Mu.Lock()
			t.g.ChooseEffectTarget(ownerID, targetID)
			t.g.Mu.Unlock()
			continue
		}

		p := t.g.Players[t.g.CurrentPlayerIndex]
		obs := t.observe(p.ID)
		t.g.Mu.Unlock()

		mv := t.seats[p.ID].ChooseMove(obs, []strategy.Move{strategy.MoveHit, strategy.MoveStay})
		actionType := "action_stay"
		if mv == strategy.MoveHit {
			actionType = "action_hit"
		}

		t.g.Mu.Lock()
		t.g.HandlePlayerAction(p.ID, models.GameAction{ActionType: actionType})
		t.g.Mu.Unlock()
	}

	t.printStandings()
}

// observe builds a seat's view of the table. Assumes the game lock is held.
func (t *table) observe(playerID uuid.UUID) strategy.Observation {
	g := t.g
	var p *models.Player
	bestRival := 0
	active := 0
	for _, pl := range g.Players {
		if pl.ID == playerID {
			p = pl
		} else if pl.Score > bestRival {
			bestRival = pl.Score
		}
		if !pl.Status.Done() {
			active++
		}
	}
	return strategy.Observation{
		Round:           g.Round,
		TargetScore:     g.HouseRules.TargetScore,
		OwnScore:        p.Score,
		OwnRoundScore:   g.RoundScorePreview(p),
		OwnNumbers:      p.NumberValues(),
		HasSecondChance: p.SecondChanceIndex() >= 0,
		BustProbability: g.BustProbability(p),
		DeckSize:        len(g.Deck),
		BestRivalScore:  bestRival,
		ActivePlayers:   active,
	}
}

// targetChoices lists the players still in the round. Assumes the game lock is held.
func (t *table) targetChoices(ownerID uuid.UUID) []strategy.TargetChoice {
	var choices []strategy.TargetChoice
	for _, p := range t.g.ActiveTargets() {
		choices = append(choices, strategy.TargetChoice{
			PlayerID:   p.ID,
			Score:      p.Score,
			RoundScore: t.g.RoundScorePreview(p),
			IsSelf:     p.ID == ownerID,
		})
	}
	return choices
}

func (t *table) name(u *game.EventUser) string {
	if u == nil {
		return "?"
	}
	if n, ok := t.names[u.ID]; ok {
		return n
	}
	return u.ID.String()[:8]
}

// renderEvent prints a one-line narration of each game event. Called by the
// engine with its lock held, so it must not touch the game directly.
func (t *table) renderEvent(ev game.GameEvent) {
	w := t.out
	switch ev.Type {
	case game.EventRoundStart:
		fmt.Fprintf(w, "\n=== Round %v ===\n", ev.Payload["round"])
	case game.EventPlayerTurn:
		if bp, ok := ev.Payload["bustProbability"].(float64); ok {
			fmt.Fprintf(w, "\n%s to act (bust chance %.0f%%)\n", t.name(ev.User), bp*100)
		} else {
			fmt.Fprintf(w, "\n%s to act\n", t.name(ev.User))
		}
	case game.EventPlayerHit:
		if n, ok := ev.Payload["flipThree"]; ok {
			fmt.Fprintf(w, "  %s flips %s (%v of 3)\n", t.name(ev.User), ev.Card.Label, n)
		} else {
			fmt.Fprintf(w, "  %s draws %s\n", t.name(ev.User), ev.Card.Label)
		}
	case game.EventPlayerBust:
		fmt.Fprintf(w, "  %s BUSTS on a duplicate %s\n", t.name(ev.User), ev.Card.Label)
	case game.EventPlayerSecondChance:
		fmt.Fprintf(w, "  %s burns a Second Chance on the duplicate %s\n", t.name(ev.User), ev.Card.Label)
	case game.EventPlayerStay:
		fmt.Fprintf(w, "  %s stays\n", t.name(ev.User))
	case game.EventPlayerFlipSeven:
		fmt.Fprintf(w, "  *** %s FLIPS SEVEN! +15 bonus, round over ***\n", t.name(ev.User))
	case game.EventEffectPending:
		fmt.Fprintf(w, "  %s drew %s and must pick a target\n", t.name(ev.User), ev.Card.Label)
	case game.EventPlayerFrozen:
		fmt.Fprintf(w, "  %s freezes %s\n", t.name(ev.User), t.name(ev.Target))
	case game.EventFlipThreeStart:
		fmt.Fprintf(w, "  %s hands Flip Three to %s\n", t.name(ev.User), t.name(ev.Target))
	case game.EventFlipThreeSurvived:
		fmt.Fprintf(w, "  %s survives all three flips\n", t.name(ev.Target))
	case game.EventDeckReshuffle:
		fmt.Fprintln(w, "  (discards shuffled back into the deck)")
	case game.EventRoundEnd:
		fmt.Fprintf(w, "--- Round %v scores ---\n", ev.Payload["round"])
		if scores, ok := ev.Payload["roundScores"].(map[string]int); ok {
			totals, _ := ev.Payload["totals"].(map[string]int)
			for idStr, rs := range scores {
				id, err := uuid.Parse(idStr)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "  %-12s +%-3d (total %d)\n", t.names[id], rs, totals[idStr])
			}
		}
	case game.EventGameEnd:
		fmt.Fprintf(w, "\n### Game over after %v round(s) ###\n", ev.Payload["rounds"])
	}
}

func (t *table) printStandings() {
	t.g.Mu.Lock()
	type row struct {
		name  string
		score int
	}
	rows := make([]row, 0, len(t.g.Players))
	for _, p := range t.g.Players {
		rows = append(rows, row{t.names[p.ID], p.Score})
	}
	t.g.Mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].score > rows[j].score })
	fmt.Fprintln(t.out, "Final standings:")
	for i, r := range rows {
		marker := "  "
		if r.score == rows[0].score {
			marker = " *"
		}
		fmt.Fprintf(t.out, "%s %d. %-12s %d\n", marker, i+1, r.name, r.score)
	}
}

// humanSeat prompts on stdin for every decision.
type humanSeat struct {
	table *table
	name  string
}

func (h *humanSeat) ChooseMove(obs strategy.Observation, legal []strategy.Move) strategy.Move {
	t := h.table
	fmt.Fprintf(t.out, "  [%s] numbers %v | round %d pts | banked %d/%d | bust %.0f%% | deck %d\n",
		h.name, obs.OwnNumbers, obs.OwnRoundScore, obs.OwnScore, obs.TargetScore,
		obs.BustProbability*100, obs.DeckSize)
	if obs.HasSecondChance {
		fmt.Fprintf(t.out, "  [%s] holding a Second Chance\n", h.name)
	}
	for {
		fmt.Fprintf(t.out, "  [%s] (h)it or (s)tay? ", h.name)
		line, ok := t.readLine()
		if !ok {
			return strategy.MoveStay
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "h", "hit":
			return strategy.MoveHit
		case "s", "stay":
			return strategy.MoveStay
		}
		fmt.Fprintln(t.out, "  please answer h or s")
	}
}

func (h *humanSeat) ChooseTarget(_ strategy.Observation, action string, targets []strategy.TargetChoice) uuid.UUID {
	t := h.table
	fmt.Fprintf(t.out, "  [%s] choose a target for %s:\n", h.name, action)
	for i, tc := range targets {
		self := ""
		if tc.IsSelf {
			self = " (you)"
		}
		fmt.Fprintf(t.out, "    %d. %s%s — banked %d, %d this round\n",
			i+1, t.names[tc.PlayerID], self, tc.Score, tc.RoundScore)
	}
	for {
		fmt.Fprintf(t.out, "  [%s] target number? ", h.name)
		line, ok := t.readLine()
		if !ok {
			return targets[0].PlayerID
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n >= 1 && n <= len(targets) {
			return targets[n-1].PlayerID
		}
		fmt.Fprintf(t.out, "  enter 1-%d\n", len(targets))
	}
}

// readLine returns the next stdin line; ok is false once stdin is closed.
func (t *table) readLine() (string, bool) {
	if !t.in.Scan() {
		return "", false
	}
	return t.in.Text(), true
}
