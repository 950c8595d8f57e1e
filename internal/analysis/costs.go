// Package analysis walks completed bridge hands card by card, comparing each
// play against the double-dummy optimum and charging the difference in
// tricks to the side that moved it.
package analysis

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rawblock/bridge-dd-engine/internal/dd"
	"github.com/rawblock/bridge-dd-engine/pkg/models"
)

// ErrMalformedPlay reports a play record the engine could not follow at all;
// milder defects (illegal follow) are surfaced as warnings on the result.
var ErrMalformedPlay = errors.New("malformed play")

// Config selects the analysis mode.
type Config struct {
	// MidTrick computes the DD value before and after every card; off, only
	// trick boundaries are compared (faster, coarser attribution).
	MidTrick bool
	// Budget caps the wall-clock time spent solving one hand; zero means no
	// limit. Cards whose solve the budget kills score zero cost.
	Budget time.Duration
	// Debug prints dd_before/dd_after per card to the log.
	Debug bool
}

// MidTrickConfig returns the per-card analysis mode.
func MidTrickConfig() Config {
	return Config{MidTrick: true}
}

// TrickBoundaryConfig returns the per-trick analysis mode.
func TrickBoundaryConfig() Config {
	return Config{}
}

// Engine owns a pair of solver caches. One engine serves one goroutine; the
// caches persist across the boards it analyzes, never across workers.
type Engine struct {
	cut *dd.CutoffCache
	pat *dd.PatternCache
}

// NewEngine builds an engine with default-sized caches.
func NewEngine() *Engine {
	return &Engine{
		cut: dd.NewCutoffCache(16),
		pat: dd.NewPatternCache(16),
	}
}

// ComputeDDCosts scores every card of a play record against double-dummy
// optimal play. The deal is PBN, the cardplay lists tricks separated by '|'
// with cards separated by spaces, e.g. "S4 S2 SA S5|D7 DQ DK DA|...".
func (e *Engine) ComputeDDCosts(dealPBN, cardplay, contract, declarer string) (*models.CostsResult, error) {
	deal, err := dd.DealFromPBN(dealPBN)
	if err != nil {
		return nil, err
	}
	trump, err := ParseTrump(contract)
	if err != nil {
		return nil, err
	}
	declarerSeat, err := dd.ParseSeat(declarer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlay, err)
	}
	tricks, err := parseCardplay(cardplay)
	if err != nil {
		return nil, err
	}
	return e.computeCosts(deal, trump, declarerSeat, tricks, Config{MidTrick: true})
}

// ComputeDDCosts is the package-level form using a throwaway engine.
func ComputeDDCosts(dealPBN, cardplay, contract, declarer string) (*models.CostsResult, error) {
	return NewEngine().ComputeDDCosts(dealPBN, cardplay, contract, declarer)
}

// declarerView converts an N-S trick count to the declarer's perspective.
// remaining must be the number of tricks yet to be played, counting an
// in-flight trick as open.
func declarerView(ns, remaining uint8, declarerIsNS bool) uint8 {
	if declarerIsNS {
		return ns
	}
	if ns > remaining {
		return 0
	}
	return remaining - ns
}

// computeCosts is the core per-card walk shared by the cost API and the
// board analyzer. tricks holds the play chunked four cards per trick; a
// short final trick is scored mid-trick and left unresolved.
func (e *Engine) computeCosts(deal dd.Deal, trump dd.Suit, declarerSeat dd.Seat, tricks [][]dd.Card, cfg Config) (*models.CostsResult, error) {
	if err := deal.Validate(); err != nil {
		return nil, err
	}

	residual := deal
	leader := declarerSeat.Next()
	declarerIsNS := declarerSeat.IsNS()

	var deadline time.Time
	if cfg.Budget > 0 {
		deadline = time.Now().Add(cfg.Budget)
	}

	res := &models.CostsResult{
		DeclarerSeat: declarerSeat.String(),
		DeclarerIsNS: declarerIsNS,
	}
	if len(tricks) == 0 {
		return res, nil
	}

	solveBoundary := func(lead dd.Seat) (uint8, bool) {
		if residual.MaxHandSize() == 0 {
			return 0, true
		}
		s := dd.NewSolver(residual, trump, lead)
		if !deadline.IsZero() {
			s.SetDeadline(deadline)
		}
		ns, err := s.Solve(e.cut, e.pat)
		return ns, err == nil
	}

	if initialNS, ok := solveBoundary(leader); ok {
		res.InitialDD = declarerView(initialNS, 13, declarerIsNS)
	} else {
		res.BudgetHit = true
	}

	var declarerTricksWon uint8
	currentLeader := leader

	for trickIdx, trick := range tricks {
		cardCosts := make([]uint8, 0, len(trick))
		seat := currentLeader
		var pt dd.PartialTrick
		var plays []dd.PlayedCard

		// DD entering the trick, declarer view.
		currentDD := declarerTricksWon
		if !res.BudgetHit {
			remaining := uint8(residual.MaxHandSize())
			ns, ok := solveBoundary(currentLeader)
			if !ok {
				res.BudgetHit = true
			} else {
				currentDD = declarerTricksWon + declarerView(ns, remaining, declarerIsNS)
			}
		}

		for cardIdx, card := range trick {
			if !residual[seat].Has(card) {
				res.Truncated = true
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("trick %d card %d: %s not held by %s", trickIdx+1, cardIdx, card, seat))
				res.Costs = append(res.Costs, cardCosts)
				res.TricksScored = len(res.Costs)
				res.DeclarerTook = declarerTricksWon
				return res, nil
			}
			if led, ok := pt.LedSuit(); ok && card.Suit() != led && residual[seat].SuitRanks(led) != 0 {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("trick %d: %s discarded %s while holding %s", trickIdx+1, seat, card, led))
			}

			ddBefore := currentDD

			residual[seat] = residual[seat].Remove(card)
			pt.Add(seat, card)
			plays = append(plays, dd.PlayedCard{Seat: seat, Card: card})

			ddAfter := ddBefore
			switch {
			case res.BudgetHit:
				// Budget gone: stop solving, score zero, keep walking so the
				// final trick count stays faithful.
			case cardIdx == 3:
				winner := dd.TrickWinner(plays, trump)
				var inc uint8
				if winner.SameSide(declarerSeat) {
					inc = 1
				}
				if residual.MaxHandSize() == 0 {
					ddAfter = declarerTricksWon + inc
				} else {
					remaining := uint8(residual.MaxHandSize())
					ns, ok := solveBoundary(winner)
					if !ok {
						res.BudgetHit = true
					} else {
						ddAfter = declarerTricksWon + inc + declarerView(ns, remaining, declarerIsNS)
					}
				}
			default:
				ns, remaining, err := e.solveMid(residual, trump, &pt, deadline)
				switch {
				case errors.Is(err, dd.ErrBudgetExceeded):
					res.BudgetHit = true
				case errors.Is(err, dd.ErrInconsistentPartialTrick):
					// Cannot happen on a well-formed walk. Zero the in-trick
					// cost rather than fabricate a value; the next boundary
					// resynchronizes the DD trail.
					res.Warnings = append(res.Warnings,
						fmt.Sprintf("trick %d: mid-trick state inconsistent, cost zeroed", trickIdx+1))
				case err != nil:
					return nil, err
				default:
					ddAfter = declarerTricksWon + declarerView(ns, remaining, declarerIsNS)
				}
			}

			currentDD = ddAfter

			if cfg.Debug {
				debugf("  T%d pos%d: %s dd_before=%d dd_after=%d",
					trickIdx+1, cardIdx, card, ddBefore, ddAfter)
			}

			var cost uint8
			if seat.SameSide(declarerSeat) {
				if ddAfter < ddBefore {
					cost = ddBefore - ddAfter
				}
			} else {
				if ddAfter > ddBefore {
					cost = ddAfter - ddBefore
				}
			}
			cardCosts = append(cardCosts, cost)
			seat = seat.Next()
		}

		res.Costs = append(res.Costs, cardCosts)

		if len(plays) == 4 {
			winner := dd.TrickWinner(plays, trump)
			if winner.SameSide(declarerSeat) {
				declarerTricksWon++
			}
			currentLeader = winner
		}
	}

	res.TricksScored = len(res.Costs)
	res.DeclarerTook = declarerTricksWon
	return res, nil
}

// solveMid runs the mid-trick solver under the hand's deadline.
func (e *Engine) solveMid(residual dd.Deal, trump dd.Suit, pt *dd.PartialTrick, deadline time.Time) (uint8, uint8, error) {
	s, err := dd.NewMidTrickSolver(residual, trump, pt)
	if err != nil {
		return 0, uint8(residual.MaxHandSize()), err
	}
	if !deadline.IsZero() {
		s.SetDeadline(deadline)
	}
	return s.SolveMidTrick(e.cut, e.pat)
}

func debugf(format string, args ...any) {
	log.Printf("[CostEngine]"+format, args...)
}

// parseCardplay splits "S4 S2 SA S5|D7 DQ DK DA|..." into tricks.
func parseCardplay(cardplay string) ([][]dd.Card, error) {
	var tricks [][]dd.Card
	for _, trickStr := range strings.Split(cardplay, "|") {
		fields := strings.Fields(trickStr)
		if len(fields) == 0 {
			continue
		}
		trick := make([]dd.Card, 0, 4)
		for _, f := range fields {
			c, err := dd.ParseCard(f)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedPlay, err)
			}
			trick = append(trick, c)
		}
		if len(trick) > 4 {
			return nil, fmt.Errorf("%w: trick of %d cards", ErrMalformedPlay, len(trick))
		}
		tricks = append(tricks, trick)
	}
	return tricks, nil
}

// chunkTricks groups a flat chronological play into tricks of four.
func chunkTricks(play []dd.Card) [][]dd.Card {
	var tricks [][]dd.Card
	for i := 0; i < len(play); i += 4 {
		end := i + 4
		if end > len(play) {
			end = len(play)
		}
		tricks = append(tricks, play[i:end])
	}
	return tricks
}
