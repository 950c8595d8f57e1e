// Package lin parses the BBO LIN play-record format into structured boards:
// deal, auction, and chronological card play. Only the tags the analyzer
// consumes are interpreted; everything else is skipped.
package lin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rawblock/bridge-dd-engine/internal/dd"
)

// Board is one parsed LIN board.
type Board struct {
	// PlayerNames in LIN pn order: south, west, north, east.
	PlayerNames   [4]string
	Dealer        dd.Seat
	Vulnerability string
	Header        string // "ah" value, e.g. "Board 5"
	Deal          dd.Deal
	HasDeal       bool
	Auction       []string
	Play          []dd.Card
}

// PlayerAt maps a table seat to the player name occupying it.
func (b *Board) PlayerAt(seat dd.Seat) string {
	switch seat {
	case dd.South:
		return b.PlayerNames[0]
	case dd.West:
		return b.PlayerNames[1]
	case dd.North:
		return b.PlayerNames[2]
	default:
		return b.PlayerNames[3]
	}
}

// BoardNumber extracts the trailing number of the board header, 0 if absent.
func (b *Board) BoardNumber() int {
	fields := strings.Fields(strings.ReplaceAll(b.Header, "+", " "))
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0
	}
	return n
}

// ParseBoard parses a single-board LIN string.
func ParseBoard(s string) (*Board, error) {
	boards, err := ParseFile(s)
	if err != nil {
		return nil, err
	}
	if len(boards) == 0 {
		return nil, fmt.Errorf("lin: no board found")
	}
	return boards[0], nil
}

// ParseFile parses a LIN stream that may contain several boards. Boards are
// delimited by qx tags; player names seen in a pn tag carry forward until
// replaced, matching how tournament files emit them once up front.
func ParseFile(content string) ([]*Board, error) {
	var boards []*Board
	var names [4]string
	cur := &Board{}
	flush := func() {
		if cur.HasDeal {
			cur.PlayerNames = names
			boards = append(boards, cur)
		}
		cur = &Board{}
	}

	fields := strings.Split(content, "|")
	for i := 0; i+1 < len(fields); i += 2 {
		tag := strings.TrimSpace(strings.ToLower(fields[i]))
		// A tag may trail the previous value after a newline between boards.
		if idx := strings.LastIndexAny(tag, "\r\n"); idx >= 0 {
			tag = strings.TrimSpace(tag[idx+1:])
		}
		value := fields[i+1]
		switch tag {
		case "qx":
			flush()
		case "pn":
			parts := strings.Split(value, ",")
			for j := 0; j < 4 && j < len(parts); j++ {
				names[j] = strings.TrimSpace(parts[j])
			}
		case "md":
			deal, dealer, err := parseDealTag(value)
			if err != nil {
				return nil, err
			}
			cur.Deal = deal
			cur.Dealer = dealer
			cur.HasDeal = true
		case "sv":
			cur.Vulnerability = strings.TrimSpace(value)
		case "ah":
			cur.Header = strings.TrimSpace(value)
		case "mb":
			bid := strings.TrimSuffix(strings.TrimSpace(value), "!")
			if bid != "" {
				cur.Auction = append(cur.Auction, bid)
			}
		case "pc":
			card, err := dd.ParseCard(value)
			if err != nil {
				return nil, fmt.Errorf("lin: bad pc token: %w", err)
			}
			cur.Play = append(cur.Play, card)
		}
	}
	flush()
	return boards, nil
}

// parseDealTag decodes an md value: a dealer digit followed by up to four
// comma-separated hands in south, west, north, east order. A missing or
// empty fourth hand receives the 13 remaining cards.
func parseDealTag(value string) (dd.Deal, dd.Seat, error) {
	var deal dd.Deal
	value = strings.TrimSpace(value)
	if value == "" {
		return deal, 0, fmt.Errorf("lin: empty md tag")
	}
	dealer, ok := linDealerSeat(value[0])
	if !ok {
		return deal, 0, fmt.Errorf("lin: bad dealer digit %q", value[0])
	}

	seatOrder := [4]dd.Seat{dd.South, dd.West, dd.North, dd.East}
	hands := strings.Split(value[1:], ",")
	if len(hands) > 4 {
		return deal, 0, fmt.Errorf("lin: %d hands in md tag", len(hands))
	}
	var dealt dd.Hand
	filled := 0
	for i, hs := range hands {
		hs = strings.TrimSpace(hs)
		if hs == "" {
			continue
		}
		h, err := parseHand(hs)
		if err != nil {
			return deal, 0, err
		}
		if dealt&h != 0 {
			return deal, 0, fmt.Errorf("lin: %w", dd.ErrMalformedDeal)
		}
		dealt |= h
		deal[seatOrder[i]] = h
		filled++
	}
	if filled == 3 {
		// Fourth hand is the remainder of the pack.
		for i, seat := range seatOrder {
			if i < len(hands) && strings.TrimSpace(hands[i]) != "" {
				continue
			}
			var rest dd.Hand
			for c := dd.Card(0); c < 52; c++ {
				if !dealt.Has(c) {
					rest = rest.Add(c)
				}
			}
			deal[seat] = rest
			break
		}
	}
	if err := deal.Validate(); err != nil {
		return deal, 0, err
	}
	return deal, dealer, nil
}

// parseHand decodes "SAKQH87..." style suit-grouped holdings.
func parseHand(s string) (dd.Hand, error) {
	var h dd.Hand
	suit := dd.Suit(255)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case 'S', 's':
			suit = dd.Spades
		case 'H', 'h':
			suit = dd.Hearts
		case 'D', 'd':
			suit = dd.Diamonds
		case 'C', 'c':
			suit = dd.Clubs
		default:
			rank, ok := dd.RankFromChar(c)
			if !ok || suit > dd.Clubs {
				return 0, fmt.Errorf("lin: bad hand %q", s)
			}
			card := dd.MakeCard(suit, rank)
			if h.Has(card) {
				return 0, fmt.Errorf("lin: duplicate %s in hand %q", card, s)
			}
			h = h.Add(card)
		}
	}
	return h, nil
}

// linDealerSeat maps the md dealer digit: 1=south, 2=west, 3=north, 4=east.
func linDealerSeat(c byte) (dd.Seat, bool) {
	switch c {
	case '1':
		return dd.South, true
	case '2':
		return dd.West, true
	case '3':
		return dd.North, true
	case '4':
		return dd.East, true
	}
	return 0, false
}
