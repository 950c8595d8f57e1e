package dd

import "testing"

func play(t *testing.T, leader Seat, codes ...string) []PlayedCard {
	t.Helper()
	out := make([]PlayedCard, len(codes))
	for i, code := range codes {
		c, err := ParseCard(code)
		if err != nil {
			t.Fatalf("bad card %q: %v", code, err)
		}
		out[i] = PlayedCard{Seat: (leader + Seat(i)) & 3, Card: c}
	}
	return out
}

func TestTrickWinner(t *testing.T) {
	tests := []struct {
		name   string
		leader Seat
		trump  Suit
		cards  []string
		winner Seat
	}{
		{"highest of led suit", West, NoTrump, []string{"S5", "SK", "S2", "SA"}, South},
		{"discards never win", North, NoTrump, []string{"D3", "HA", "SA", "CA"}, North},
		{"lone trump beats led ace", North, Hearts, []string{"SA", "H2", "S3", "S4"}, East},
		{"highest trump among several", South, Clubs, []string{"D9", "C2", "CT", "C5"}, North},
		{"trump contract, no trump played", East, Spades, []string{"H4", "HQ", "H8", "HJ"}, South},
		{"leader holds with top card", West, Diamonds, []string{"DA", "D2", "D5", "DK"}, West},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrickWinner(play(t, tt.leader, tt.cards...), tt.trump)
			if got != tt.winner {
				t.Errorf("winner = %v, want %v", got, tt.winner)
			}
		})
	}
}

func TestPartialTrick(t *testing.T) {
	var pt PartialTrick
	if _, ok := pt.Leader(); ok {
		t.Error("empty trick has no leader")
	}
	pt.Add(West, MakeCard(Spades, Two))
	pt.Add(North, MakeCard(Spades, Three))
	if pt.Len() != 2 {
		t.Fatalf("Len = %d", pt.Len())
	}
	if leader, _ := pt.Leader(); leader != West {
		t.Errorf("leader = %v", leader)
	}
	if led, _ := pt.LedSuit(); led != Spades {
		t.Errorf("led suit = %v", led)
	}
	plays := pt.Plays()
	if len(plays) != 2 || plays[1].Seat != North {
		t.Errorf("plays = %v", plays)
	}
	pt.Reset()
	if pt.Len() != 0 {
		t.Error("reset failed")
	}
}
