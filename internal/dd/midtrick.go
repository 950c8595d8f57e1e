package dd

import "fmt"

// Mid-trick entry into the double-dummy search: the cards already played
// into the current trick are treated as pre-chosen moves and the search
// resumes at the next seat clockwise, bound by the led suit the partial
// trick establishes.

// NewMidTrickSolver positions the search after 1-3 cards of the current
// trick have been played. The partial trick must be consistent with the
// residual deal: consecutive clockwise seats from the leader, cards disjoint
// from the residual hands, and hand sizes reflecting who has played.
func NewMidTrickSolver(deal Deal, trump Suit, pt *PartialTrick) (*Solver, error) {
	n := pt.Len()
	if n < 1 || n > 3 {
		return nil, fmt.Errorf("%w: %d cards played", ErrInconsistentPartialTrick, n)
	}
	plays := pt.Plays()
	leader := plays[0].Seat
	var seen Hand
	for i, pc := range plays {
		if pc.Seat != Seat((uint8(leader)+uint8(i))&3) {
			return nil, fmt.Errorf("%w: seats not consecutive from %s", ErrInconsistentPartialTrick, leader)
		}
		if seen.Has(pc.Card) {
			return nil, fmt.Errorf("%w: %s played twice", ErrInconsistentPartialTrick, pc.Card)
		}
		seen = seen.Add(pc.Card)
		if holder, held := deal.Holder(pc.Card); held {
			return nil, fmt.Errorf("%w: %s still held by %s", ErrInconsistentPartialTrick, pc.Card, holder)
		}
	}
	max := deal.MaxHandSize()
	for seat := 0; seat < 4; seat++ {
		expected := max
		played := false
		for i := 0; i < n; i++ {
			if plays[i].Seat == Seat(seat) {
				played = true
			}
		}
		if played {
			expected = max - 1
		}
		if deal[seat].Size() != expected {
			return nil, fmt.Errorf("%w: %s holds %d cards, expected %d",
				ErrInconsistentPartialTrick, Seat(seat), deal[seat].Size(), expected)
		}
	}
	s := &Solver{hands: deal, trump: trump, leader: leader, trickLen: n}
	for i, pc := range plays {
		s.trick[i] = pc.Card
	}
	return s, nil
}

// SolveMidTrick searches from inside a trick. It returns the N-S tricks won
// from here, counting the in-flight trick, together with the number of
// tricks remaining (the largest residual hand size).
func (s *Solver) SolveMidTrick(cut *CutoffCache, pat *PatternCache) (ns, remaining uint8, err error) {
	s.cut, s.pat = cut, pat
	rem := 0
	for _, h := range s.hands {
		if n := h.Size(); n > rem {
			rem = n
		}
	}
	if rem == 0 {
		return 0, 0, nil
	}
	v := s.search(0, rem)
	if s.exceeded {
		return 0, uint8(rem), ErrBudgetExceeded
	}
	return uint8(v), uint8(rem), nil
}

// MidTrickSolve is the one-shot form of the mid-trick search.
func MidTrickSolve(deal Deal, trump Suit, pt *PartialTrick, cut *CutoffCache, pat *PatternCache) (uint8, uint8, error) {
	s, err := NewMidTrickSolver(deal, trump, pt)
	if err != nil {
		return 0, uint8(deal.MaxHandSize()), err
	}
	return s.SolveMidTrick(cut, pat)
}
