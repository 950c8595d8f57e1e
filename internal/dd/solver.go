package dd

import (
	"math/bits"
	"time"
)

// Solver runs a double-dummy alpha-beta search over one residual position.
// The search value is the number of tricks the N-S side takes from the
// position under perfect play by both sides. A Solver is single-use and not
// safe for concurrent use; the caches it borrows belong to the caller.
type Solver struct {
	hands    [4]Hand
	trump    Suit
	leader   Seat
	trick    [4]Card
	trickLen int

	cut *CutoffCache
	pat *PatternCache

	deadline time.Time
	nodes    uint64
	exceeded bool
}

// NewSolver positions the search at a trick boundary with the given leader.
func NewSolver(deal Deal, trump Suit, leader Seat) *Solver {
	return &Solver{hands: deal, trump: trump, leader: leader}
}

// SetDeadline arms the wall-clock budget. The search checks it periodically
// at trick boundaries and abandons with ErrBudgetExceeded once past it.
func (s *Solver) SetDeadline(t time.Time) {
	s.deadline = t
}

// Solve searches a boundary position to an exact N-S trick count.
func (s *Solver) Solve(cut *CutoffCache, pat *PatternCache) (uint8, error) {
	s.cut, s.pat = cut, pat
	rem := s.hands[s.leader].Size()
	if rem == 0 {
		return 0, nil
	}
	v := s.search(0, rem)
	if s.exceeded {
		return 0, ErrBudgetExceeded
	}
	return uint8(v), nil
}

// BoundarySolve is the one-shot form of the boundary search.
func BoundarySolve(deal Deal, trump Suit, leader Seat, cut *CutoffCache, pat *PatternCache) (uint8, error) {
	return NewSolver(deal, trump, leader).Solve(cut, pat)
}

// search is the minimax core. N-S seats maximize the N-S trick count, E-W
// seats minimize it. Transposition and claim shortcuts apply only at trick
// boundaries; completed tricks shift the window by the banked trick.
func (s *Solver) search(alpha, beta int) int {
	if s.exceeded {
		return 0
	}
	seat := Seat((uint8(s.leader) + uint8(s.trickLen)) & 3)
	if s.trickLen != 0 {
		return s.searchMoves(seat, alpha, beta)
	}

	rem := s.hands[seat].Size()
	if rem == 0 {
		return 0
	}
	s.nodes++
	if !s.deadline.IsZero() && s.nodes&1023 == 0 && time.Now().After(s.deadline) {
		s.exceeded = true
		return 0
	}

	key := positionKey(s.hands, seat, s.trump)
	if s.quickTricks(seat, key) == rem {
		if seat.IsNS() {
			return rem
		}
		return 0
	}
	// The collapsed key drops how many cards each run holds, so positions of
	// different value can share it; the cutoff cache also keys on the exact
	// holdings.
	ckey := []byte(key)
	for _, h := range s.hands {
		for i := 0; i < 7; i++ {
			ckey = append(ckey, byte(h>>(8*i)))
		}
	}
	if s.cut != nil {
		if lo, hi, ok := s.cut.Lookup(string(ckey)); ok {
			l, h := int(lo), int(hi)
			if l >= beta {
				return l
			}
			if h <= alpha {
				return h
			}
			if l == h {
				return l
			}
			if l > alpha {
				alpha = l
			}
			if h < beta {
				beta = h
			}
		}
	}
	alphaOrig, betaOrig := alpha, beta

	best := s.searchMoves(seat, alpha, beta)

	if s.cut != nil && !s.exceeded {
		var lo, hi uint8
		switch {
		case best <= alphaOrig:
			lo, hi = 0, uint8(best)
		case best >= betaOrig:
			lo, hi = uint8(best), uint8(rem)
		default:
			lo, hi = uint8(best), uint8(best)
		}
		s.cut.Store(string(ckey), lo, hi, uint8(rem))
	}
	return best
}

// searchMoves expands the seat to act over its candidate cards.
func (s *Solver) searchMoves(seat Seat, alpha, beta int) int {
	var buf [13]Card
	moves := s.candidates(seat, &buf)
	maximizing := seat.IsNS()
	best := -1
	if !maximizing {
		best = 1 << 10
	}
	for _, c := range moves {
		s.hands[seat] = s.hands[seat].Remove(c)
		s.trick[s.trickLen] = c
		s.trickLen++
		var v int
		if s.trickLen == 4 {
			winner := s.currentTrickWinner()
			inc := 0
			if winner.IsNS() {
				inc = 1
			}
			prevLeader := s.leader
			savedTrick := s.trick
			s.leader = winner
			s.trickLen = 0
			v = inc + s.search(alpha-inc, beta-inc)
			s.leader = prevLeader
			s.trick = savedTrick
			s.trickLen = 4
		} else {
			v = s.search(alpha, beta)
		}
		s.trickLen--
		s.hands[seat] = s.hands[seat].Add(c)
		if s.exceeded {
			return 0
		}
		if maximizing {
			if v > best {
				best = v
			}
			if best > alpha {
				alpha = best
			}
		} else {
			if v < best {
				best = v
			}
			if best < beta {
				beta = best
			}
		}
		if alpha >= beta {
			break
		}
	}
	return best
}

// currentTrickWinner adjudicates the four cards of the in-progress trick.
func (s *Solver) currentTrickWinner() Seat {
	win := 0
	for i := 1; i < 4; i++ {
		if beats(s.trick[i], s.trick[win], s.trump) {
			win = i
		}
	}
	return Seat((uint8(s.leader) + uint8(win)) & 3)
}

// candidates generates the seat's moves after rank-equivalence collapsing.
// A maximal run of consecutive outstanding ranks held by one seat yields a
// single representative; runs merge as outer cards leave play, which is why
// this is recomputed at every node.
//
// Ordering: a leader tries each suit's runs highest first, suits in fixed
// order. A follower holding the led suit tries its runs highest first. A
// void follower discards lowest non-trump runs first, then trumps lowest
// first.
func (s *Solver) candidates(seat Seat, buf *[13]Card) []Card {
	moves := buf[:0]
	if s.trickLen > 0 {
		led := s.trick[0].Suit()
		own := s.hands[seat].SuitRanks(led)
		if own != 0 {
			return appendRunTops(moves, led, own, s.outstanding(led))
		}
		// Void in the led suit: discard cheap, ruff as a late resort.
		for suit := Spades; suit <= Clubs; suit++ {
			if suit == s.trump {
				continue
			}
			if own := s.hands[seat].SuitRanks(suit); own != 0 {
				moves = appendRunBottoms(moves, suit, own, s.outstanding(suit))
			}
		}
		sortByRankAsc(moves)
		if s.trump != NoTrump {
			if own := s.hands[seat].SuitRanks(s.trump); own != 0 {
				start := len(moves)
				moves = appendRunBottoms(moves, s.trump, own, s.outstanding(s.trump))
				sortByRankAsc(moves[start:])
			}
		}
		return moves
	}
	for suit := Spades; suit <= Clubs; suit++ {
		if own := s.hands[seat].SuitRanks(suit); own != 0 {
			moves = appendRunTops(moves, suit, own, s.outstanding(suit))
		}
	}
	return moves
}

// outstanding unions the four residual holdings in one suit.
func (s *Solver) outstanding(suit Suit) uint16 {
	return s.hands[0].SuitRanks(suit) | s.hands[1].SuitRanks(suit) |
		s.hands[2].SuitRanks(suit) | s.hands[3].SuitRanks(suit)
}

// appendRunTops appends the highest card of each equivalence run, highest
// run first.
func appendRunTops(moves []Card, suit Suit, own, out uint16) []Card {
	inRun := false
	for r := int(Ace); r >= 0; r-- {
		bit := uint16(1) << uint(r)
		if out&bit == 0 {
			continue
		}
		if own&bit != 0 {
			if !inRun {
				moves = append(moves, MakeCard(suit, Rank(r)))
				inRun = true
			}
		} else {
			inRun = false
		}
	}
	return moves
}

// appendRunBottoms appends the lowest card of each equivalence run.
func appendRunBottoms(moves []Card, suit Suit, own, out uint16) []Card {
	inRun := false
	bottom := 0
	for r := int(Ace); r >= 0; r-- {
		bit := uint16(1) << uint(r)
		if out&bit == 0 {
			continue
		}
		if own&bit != 0 {
			inRun = true
			bottom = r
		} else if inRun {
			moves = append(moves, MakeCard(suit, Rank(bottom)))
			inRun = false
		}
	}
	if inRun {
		moves = append(moves, MakeCard(suit, Rank(bottom)))
	}
	return moves
}

// sortByRankAsc is an insertion sort; candidate lists are at most 13 long.
func sortByRankAsc(moves []Card) {
	for i := 1; i < len(moves); i++ {
		for j := i; j > 0 && moves[j].Rank() < moves[j-1].Rank(); j-- {
			moves[j], moves[j-1] = moves[j-1], moves[j]
		}
	}
}

// quickTricks returns the number of tricks the seat to lead can provably
// cash without search: its full remaining hand when every held card is top
// of its suit and no opponent can ruff in. Memoized in the pattern cache
// under the suit-length signature, lock-verified against the rank layout.
func (s *Solver) quickTricks(seat Seat, key string) int {
	if s.pat == nil {
		return s.claimCount(seat)
	}
	pk := patternKey(s.hands, seat, s.trump)
	lock := fnv64a(key)
	if q, ok := s.pat.Lookup(pk, lock); ok {
		return int(q)
	}
	q := s.claimCount(seat)
	s.pat.Store(pk, lock, uint8(q))
	return q
}

// claimCount computes the claim: the full hand size when the seat's every
// suit holding sits strictly above everyone else's and, in a trump
// contract, either nobody else holds a trump or the seat holds nothing but
// winning trumps. Otherwise zero.
func (s *Solver) claimCount(seat Seat) int {
	var othersTrump uint16
	if s.trump != NoTrump {
		for o := 0; o < 4; o++ {
			if Seat(o) != seat {
				othersTrump |= s.hands[o].SuitRanks(s.trump)
			}
		}
	}
	holdsNonTrump := false
	for suit := Spades; suit <= Clubs; suit++ {
		own := s.hands[seat].SuitRanks(suit)
		if own == 0 {
			continue
		}
		if suit != s.trump {
			holdsNonTrump = true
		}
		others := s.outstanding(suit) &^ own
		if others != 0 && bits.TrailingZeros16(own) <= bits.Len16(others)-1 {
			return 0
		}
	}
	if s.trump != NoTrump && othersTrump != 0 && holdsNonTrump {
		return 0
	}
	return s.hands[seat].Size()
}
