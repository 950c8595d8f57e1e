package lin

import (
	"testing"

	"github.com/rawblock/bridge-dd-engine/internal/dd"
)

const sampleBoard = "pn|South,West,North,East|md|3SAKQJHAKQDAKCAKQJ,ST987HJT9DQJTCT98,S6543H876D987C765,|sv|o|ah|Board 1|mb|1C|mb|p|mb|1N|mb|p|mb|p|mb|p|pc|D2|"

func TestParseBoard(t *testing.T) {
	b, err := ParseBoard(sampleBoard)
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	if b.PlayerNames != [4]string{"South", "West", "North", "East"} {
		t.Errorf("player names = %v", b.PlayerNames)
	}
	if b.Dealer != dd.North {
		t.Errorf("dealer = %v, want North", b.Dealer)
	}
	if b.Vulnerability != "o" {
		t.Errorf("vulnerability = %q", b.Vulnerability)
	}
	if b.BoardNumber() != 1 {
		t.Errorf("board number = %d", b.BoardNumber())
	}
	if got := len(b.Auction); got != 6 {
		t.Errorf("auction length = %d, want 6", got)
	}
	if b.Auction[2] != "1N" {
		t.Errorf("auction[2] = %q", b.Auction[2])
	}
	if len(b.Play) != 1 || b.Play[0] != dd.MakeCard(dd.Diamonds, dd.Two) {
		t.Errorf("play = %v", b.Play)
	}

	// md order is S, W, N; the east hand is inferred as the remainder.
	if err := b.Deal.Validate(); err != nil {
		t.Fatalf("inferred deal invalid: %v", err)
	}
	if !b.Deal[dd.South].Has(dd.MakeCard(dd.Spades, dd.Ace)) {
		t.Error("south should hold SA")
	}
	if !b.Deal[dd.West].Has(dd.MakeCard(dd.Hearts, dd.Jack)) {
		t.Error("west should hold HJ")
	}
	if !b.Deal[dd.North].Has(dd.MakeCard(dd.Diamonds, dd.Nine)) {
		t.Error("north should hold D9")
	}
	// Cards named in no explicit hand land with east.
	if !b.Deal[dd.East].Has(dd.MakeCard(dd.Spades, dd.Two)) {
		t.Error("east should hold the leftover S2")
	}
	if !b.Deal[dd.East].Has(dd.MakeCard(dd.Diamonds, dd.Two)) {
		t.Error("east should hold the leftover D2")
	}
}

func TestParseFileMultipleBoards(t *testing.T) {
	const md1 = "3SAKQJHAKQDAKCAKQJ,ST987HJT9DQJTCT98,S6543H876D987C765,"
	const md2 = "4SAKQJHAKQDAKCAKQJ,ST987HJT9DQJTCT98,S6543H876D987C765,"
	content := "pn|anna,bruno,clara,dieter|\n" +
		"qx|o1|ah|Board 1|md|" + md1 + "|mb|1N|mb|p|mb|p|mb|p|pc|D2|pg||\n" +
		"qx|o2|ah|Board 2|md|" + md2 + "|mb|p|mb|2H|mb|p|mb|p|mb|p|pc|S2|pg||\n"
	boards, err := ParseFile(content)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(boards) != 2 {
		t.Fatalf("got %d boards, want 2", len(boards))
	}
	for _, b := range boards {
		if b.PlayerNames[0] != "anna" {
			t.Errorf("pn did not carry forward: %v", b.PlayerNames)
		}
	}
	if boards[0].BoardNumber() != 1 || boards[1].BoardNumber() != 2 {
		t.Errorf("board numbers = %d, %d", boards[0].BoardNumber(), boards[1].BoardNumber())
	}
	if boards[1].Dealer != dd.East {
		t.Errorf("board 2 dealer = %v, want East", boards[1].Dealer)
	}
}

func TestParseBadInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no board", "pn|a,b,c,d|"},
		{"bad dealer", "md|9SAK,S2,SQ,|"},
		{"duplicate card", "md|3SAAQJHAKQDAKCAKQJ,ST987HJT9DQJTCT98,S6543H876D987C765,|"},
		{"bad play card", sampleBoard + "pc|Z9|"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseBoard(tt.in); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}
