package dd

// PlayedCard is one (seat, card) entry of a trick.
type PlayedCard struct {
	Seat Seat
	Card Card
}

// PartialTrick is the ordered sequence of cards already played into the
// current trick, at most four; a fourth card completes the trick. Seats run
// clockwise from the leader.
type PartialTrick struct {
	plays [4]PlayedCard
	n     int
}

// Add appends a play. Adding a fifth card panics; callers resolve the trick
// at four.
func (pt *PartialTrick) Add(seat Seat, card Card) {
	if pt.n >= 4 {
		panic("partial trick overflow")
	}
	pt.plays[pt.n] = PlayedCard{Seat: seat, Card: card}
	pt.n++
}

// Len returns the number of cards played so far.
func (pt *PartialTrick) Len() int {
	return pt.n
}

// Leader returns the seat that led, valid only when Len() > 0.
func (pt *PartialTrick) Leader() (Seat, bool) {
	if pt.n == 0 {
		return 0, false
	}
	return pt.plays[0].Seat, true
}

// LedSuit returns the suit of the first card, valid only when Len() > 0.
func (pt *PartialTrick) LedSuit() (Suit, bool) {
	if pt.n == 0 {
		return 0, false
	}
	return pt.plays[0].Card.Suit(), true
}

// Plays returns the entries in play order.
func (pt *PartialTrick) Plays() []PlayedCard {
	return pt.plays[:pt.n]
}

// Reset empties the trick.
func (pt *PartialTrick) Reset() {
	pt.n = 0
}

// TrickWinner adjudicates a completed (or leading) sequence of plays: the
// highest trump wins if any trump was played, otherwise the highest card of
// the led suit. Ties are impossible since all 52 cards are distinct.
func TrickWinner(plays []PlayedCard, trump Suit) Seat {
	winner := plays[0]
	for _, pc := range plays[1:] {
		if beats(pc.Card, winner.Card, trump) {
			winner = pc
		}
	}
	return winner.Seat
}

// beats reports whether challenger takes the trick from the current winning
// card. The led suit is implied by the winning card: a card of a third suit
// never wins unless it is a trump.
func beats(challenger, winning Card, trump Suit) bool {
	if challenger.Suit() == winning.Suit() {
		return challenger.Rank() > winning.Rank()
	}
	if trump != NoTrump && challenger.Suit() == trump {
		return winning.Suit() != trump
	}
	return false
}
