package analysis

import (
	"fmt"
	"strings"

	"github.com/rawblock/bridge-dd-engine/internal/dd"
	"github.com/rawblock/bridge-dd-engine/internal/lin"
)

// PassedOut is the contract string for a board with no bid.
const PassedOut = "Passed Out"

// ExtractContract folds an auction into its final contract string, e.g.
// "3NT", "4SX", "6HXX". Doubles and redoubles are tracked but reset by any
// later bid.
func ExtractContract(auction []string) string {
	var level byte
	var strain string
	doubled, redoubled := false, false

	for _, bid := range auction {
		b := strings.ToUpper(strings.TrimSpace(bid))
		switch {
		case b == "P" || b == "PASS":
			continue
		case b == "D" || b == "X" || b == "DBL":
			doubled, redoubled = true, false
		case b == "R" || b == "XX" || b == "RDBL":
			redoubled = true
		case len(b) >= 2 && b[0] >= '1' && b[0] <= '7':
			level = b[0]
			strain = b[1:]
			doubled, redoubled = false, false
		}
	}

	if level == 0 {
		return PassedOut
	}
	contract := string(level) + strain
	if redoubled {
		contract += "XX"
	} else if doubled {
		contract += "X"
	}
	return contract
}

// ParseTrump extracts the trump designation from a contract string.
func ParseTrump(contract string) (dd.Suit, error) {
	c := strings.ToUpper(strings.TrimSpace(contract))
	if strings.Contains(c, "NT") || (strings.Contains(c, "N") && !strings.Contains(c, "S")) {
		return dd.NoTrump, nil
	}
	for i := 0; i < len(c); i++ {
		switch c[i] {
		case 'S':
			return dd.Spades, nil
		case 'H':
			return dd.Hearts, nil
		case 'D':
			return dd.Diamonds, nil
		case 'C':
			return dd.Clubs, nil
		}
	}
	return 0, fmt.Errorf("%w: no trump in contract %q", ErrMalformedPlay, contract)
}

// DeriveDeclarer locates the declarer from the opening lead: the defender on
// lead sits to declarer's left, so declarer is the seat counter-clockwise of
// whoever holds the first played card.
func DeriveDeclarer(board *lin.Board) (dd.Seat, error) {
	if len(board.Play) == 0 {
		return 0, fmt.Errorf("%w: no opening lead", ErrMalformedPlay)
	}
	holder, ok := board.Deal.Holder(board.Play[0])
	if !ok {
		return 0, fmt.Errorf("%w: opening lead %s not in deal", ErrMalformedPlay, board.Play[0])
	}
	// Counter-clockwise is three clockwise steps.
	return holder.Next().Next().Next(), nil
}
