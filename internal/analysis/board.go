package analysis

import (
	"sort"
	"time"

	"github.com/rawblock/bridge-dd-engine/internal/dd"
	"github.com/rawblock/bridge-dd-engine/internal/lin"
	"github.com/rawblock/bridge-dd-engine/pkg/models"
)

// AnalyzeBoard runs a full double-dummy error analysis of one parsed board.
// It returns (nil, nil) for boards with no play to analyze (passed out or
// abandoned before the opening lead).
func (e *Engine) AnalyzeBoard(board *lin.Board, cfg Config) (*models.BoardResult, error) {
	if len(board.Play) == 0 {
		return nil, nil
	}
	contract := ExtractContract(board.Auction)
	if contract == PassedOut {
		return nil, nil
	}
	declarerSeat, err := DeriveDeclarer(board)
	if err != nil {
		return nil, err
	}
	trump, err := ParseTrump(contract)
	if err != nil {
		return nil, err
	}
	tricks := chunkTricks(board.Play)

	if cfg.MidTrick {
		return e.analyzeMidTrick(board, cfg, contract, declarerSeat, trump, tricks)
	}
	return e.analyzeTrickBoundary(board, cfg, contract, declarerSeat, trump, tricks)
}

// analyzeMidTrick attributes per-card costs to players, folding dummy's
// plays onto declarer.
func (e *Engine) analyzeMidTrick(board *lin.Board, cfg Config, contract string, declarerSeat dd.Seat, trump dd.Suit, tricks [][]dd.Card) (*models.BoardResult, error) {
	costs, err := e.computeCosts(board.Deal, trump, declarerSeat, tricks, cfg)
	if err != nil {
		return nil, err
	}

	result := &models.BoardResult{
		BoardNum:       board.BoardNumber(),
		Contract:       contract,
		Declarer:       declarerSeat.String(),
		Players:        board.PlayerNames,
		InitialDD:      costs.InitialDD,
		FinalResult:    costs.DeclarerTook,
		Truncated:      costs.Truncated,
		BudgetExceeded: costs.BudgetHit,
		Warnings:       costs.Warnings,
	}

	leader := declarerSeat.Next()
	for ti, trickCosts := range costs.Costs {
		trickCards := tricks[ti]
		seat := leader
		plays := make([]dd.PlayedCard, 0, 4)
		for ci, cost := range trickCosts {
			plays = append(plays, dd.PlayedCard{Seat: seat, Card: trickCards[ci]})
			if cost > 0 {
				errSeat := seat
				if seat.SameSide(declarerSeat) {
					errSeat = declarerSeat // dummy's errors belong to declarer
				}
				result.Errors = append(result.Errors, models.CardError{
					Player:       board.PlayerAt(errSeat),
					Seat:         errSeat.String(),
					TrickNum:     ti + 1,
					CardPosition: ci,
					Card:         trickCards[ci].String(),
					Cost:         cost,
				})
			}
			seat = seat.Next()
		}
		if len(plays) == 4 {
			leader = dd.TrickWinner(plays, trump)
		}
	}
	return result, nil
}

// analyzeTrickBoundary compares the DD value only at trick boundaries. A
// declarer-side loss is charged to declarer; a defensive gift goes to the
// leader when the leader defends, otherwise to the first defender who played
// to the trick.
func (e *Engine) analyzeTrickBoundary(board *lin.Board, cfg Config, contract string, declarerSeat dd.Seat, trump dd.Suit, tricks [][]dd.Card) (*models.BoardResult, error) {
	if err := board.Deal.Validate(); err != nil {
		return nil, err
	}

	result := &models.BoardResult{
		BoardNum: board.BoardNumber(),
		Contract: contract,
		Declarer: declarerSeat.String(),
		Players:  board.PlayerNames,
	}

	var deadline time.Time
	if cfg.Budget > 0 {
		deadline = time.Now().Add(cfg.Budget)
	}
	residual := board.Deal
	declarerIsNS := declarerSeat.IsNS()

	solve := func(lead dd.Seat) (uint8, bool) {
		if residual.MaxHandSize() == 0 {
			return 0, true
		}
		s := dd.NewSolver(residual, trump, lead)
		if !deadline.IsZero() {
			s.SetDeadline(deadline)
		}
		ns, err := s.Solve(e.cut, e.pat)
		if err != nil {
			result.BudgetExceeded = true
			return 0, false
		}
		return ns, true
	}

	currentLeader := declarerSeat.Next()
	if ns, ok := solve(currentLeader); ok {
		result.InitialDD = declarerView(ns, 13, declarerIsNS)
	}

	var declarerTricksWon uint8
	for ti, trick := range tricks {
		if len(trick) != 4 {
			continue // incomplete final trick carries no boundary
		}

		ddStart := declarerTricksWon
		startOK := false
		if !result.BudgetExceeded {
			remaining := uint8(residual.MaxHandSize())
			if ns, ok := solve(currentLeader); ok {
				ddStart = declarerTricksWon + declarerView(ns, remaining, declarerIsNS)
				startOK = true
			}
		}

		seat := currentLeader
		plays := make([]dd.PlayedCard, 0, 4)
		for _, card := range trick {
			if !residual[seat].Has(card) {
				result.Truncated = true
				result.FinalResult = declarerTricksWon
				return result, nil
			}
			residual[seat] = residual[seat].Remove(card)
			plays = append(plays, dd.PlayedCard{Seat: seat, Card: card})
			seat = seat.Next()
		}

		winner := dd.TrickWinner(plays, trump)
		var inc uint8
		if winner.SameSide(declarerSeat) {
			inc = 1
		}

		if startOK {
			ddEnd := declarerTricksWon + inc
			endOK := residual.MaxHandSize() == 0
			if !endOK {
				remaining := uint8(residual.MaxHandSize())
				if ns, ok := solve(winner); ok {
					ddEnd = declarerTricksWon + inc + declarerView(ns, remaining, declarerIsNS)
					endOK = true
				}
			}
			if endOK && ddEnd != ddStart {
				errSeat := declarerSeat
				cost := ddStart - ddEnd
				if ddEnd > ddStart {
					cost = ddEnd - ddStart
					errSeat = currentLeader
					if currentLeader.SameSide(declarerSeat) {
						for _, pc := range plays {
							if !pc.Seat.SameSide(declarerSeat) {
								errSeat = pc.Seat
								break
							}
						}
					}
				}
				result.Errors = append(result.Errors, models.CardError{
					Player:       board.PlayerAt(errSeat),
					Seat:         errSeat.String(),
					TrickNum:     ti + 1,
					CardPosition: 0,
					Card:         trick[0].String(),
					Cost:         cost,
				})
			}
		}

		declarerTricksWon += inc
		currentLeader = winner
	}

	result.FinalResult = declarerTricksWon
	return result, nil
}

// AggregateErrorsByPlayer counts nonzero-cost cards per player name.
func AggregateErrorsByPlayer(result *models.BoardResult) map[string]int {
	counts := make(map[string]int)
	for _, e := range result.Errors {
		counts[e.Player]++
	}
	return counts
}

// AggregateCostsByPlayer sums trick costs per player name.
func AggregateCostsByPlayer(result *models.BoardResult) map[string]int {
	costs := make(map[string]int)
	for _, e := range result.Errors {
		costs[e.Player] += int(e.Cost)
	}
	return costs
}

// SummarizePlayers folds a set of board results into per-player totals,
// sorted most tricks lost first, name as tiebreak.
func SummarizePlayers(results []*models.BoardResult) []models.PlayerSummary {
	byName := make(map[string]*models.PlayerSummary)
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, name := range r.Players {
			if name == "" {
				continue
			}
			s, ok := byName[name]
			if !ok {
				s = &models.PlayerSummary{Player: name}
				byName[name] = s
			}
			s.Boards++
		}
		for _, e := range r.Errors {
			s, ok := byName[e.Player]
			if !ok {
				s = &models.PlayerSummary{Player: e.Player}
				byName[e.Player] = s
			}
			s.ErrorCount++
			s.TricksLost += int(e.Cost)
		}
	}
	out := make([]models.PlayerSummary, 0, len(byName))
	for _, s := range byName {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TricksLost != out[j].TricksLost {
			return out[i].TricksLost > out[j].TricksLost
		}
		return out[i].Player < out[j].Player
	})
	return out
}
