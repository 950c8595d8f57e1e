package dd

import "errors"

// Sentinel errors surfaced by the solver and its input validation. All of
// them are recoverable at the hand level.
var (
	// ErrMalformedDeal reports hands that are not 13 cards, duplicated
	// cards, or a total other than 52.
	ErrMalformedDeal = errors.New("malformed deal")

	// ErrInconsistentPartialTrick reports a mid-trick entry whose seats are
	// not consecutive clockwise from a leader or whose cards intersect the
	// residual hands.
	ErrInconsistentPartialTrick = errors.New("inconsistent partial trick")

	// ErrBudgetExceeded reports that the solver hit its wall-clock budget
	// before completing the search.
	ErrBudgetExceeded = errors.New("solve budget exceeded")
)
