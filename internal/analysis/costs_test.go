package analysis

import (
	"strings"
	"testing"
	"time"

	"github.com/rawblock/bridge-dd-engine/internal/dd"
	"github.com/rawblock/bridge-dd-engine/internal/lin"
)

// The race deal: north owns twelve top spades plus the club two, west twelve
// top clubs plus the spade two, east all hearts, south all diamonds. In
// notrump whichever side attacks first runs its suit; the stray deuce
// concedes one trick at the end. With west on lead against south, the
// defense is worth twelve tricks and declarer exactly one.
const raceDealPBN = "N:AKQJT9876543...2 .AKQJT98765432.. ..AKQJT98765432. 2...AKQJT9876543"

// raceDealPlay is the record where west underleads the spade two at trick
// one, handing north the run: an 11-trick defensive error on the opening
// lead and nothing else.
const raceDealPlay = "S2 S3 H2 D2|SA H3 D3 C3|SK H4 D4 C4|SQ H5 D5 C5|" +
	"SJ H6 D6 C6|ST H7 D7 C7|S9 H8 D8 C8|S8 H9 D9 C9|" +
	"S7 HT DT CT|S6 HJ DJ CJ|S5 HQ DQ CQ|S4 HK DK CK|C2 HA DA CA"

// The pulled-winner deal: south declares seven spades holding eleven trumps
// and the top diamonds; west's doubleton trump and diamond void make cashing
// a diamond before drawing trumps a one-trick error.
const drawTrumpsDealPBN = "N:...AKQJT98765432 .32.QJT98765432. AKQJT987654..AK. 32.AKQJT987654.."

// drawTrumpsDealPlay cashes the diamond ace at trick two; west ruffs it.
const drawTrumpsDealPlay = "HA C2 H2 S4|DA S2 C3 D2|HK C4 H3 S5|SA S3 C5 D3|" +
	"SK HQ C6 D4|SQ HJ C7 D5|SJ HT C8 D6|ST H9 C9 D7|" +
	"S9 H8 CT D8|S8 H7 CJ D9|S7 H6 CQ DT|S6 H5 CK DJ|DK H4 CA DQ"

func flattenPlay(t *testing.T, cardplay string) []dd.Card {
	t.Helper()
	tricks, err := parseCardplay(cardplay)
	if err != nil {
		t.Fatalf("parseCardplay: %v", err)
	}
	var out []dd.Card
	for _, trick := range tricks {
		out = append(out, trick...)
	}
	return out
}

func sumCosts(costs [][]uint8) int {
	total := 0
	for _, trick := range costs {
		for _, c := range trick {
			total += int(c)
		}
	}
	return total
}

func TestComputeDDCostsDefensiveError(t *testing.T) {
	res, err := ComputeDDCosts(raceDealPBN, raceDealPlay, "1N", "South")
	if err != nil {
		t.Fatalf("ComputeDDCosts: %v", err)
	}
	if res.InitialDD != 1 {
		t.Errorf("initial DD = %d, want 1", res.InitialDD)
	}
	if res.DeclarerTook != 12 {
		t.Errorf("declarer took %d, want 12", res.DeclarerTook)
	}
	if res.TricksScored != 13 {
		t.Errorf("tricks scored = %d, want 13", res.TricksScored)
	}
	if got := res.Costs[0][0]; got != 11 {
		t.Errorf("opening lead cost = %d, want 11", got)
	}
	for ti, trick := range res.Costs {
		for ci, c := range trick {
			if (ti != 0 || ci != 0) && c != 0 {
				t.Errorf("unexpected cost %d at trick %d card %d", c, ti+1, ci)
			}
		}
	}
	if res.Truncated || res.BudgetHit || len(res.Warnings) != 0 {
		t.Errorf("unexpected flags: %+v", res)
	}
}

func TestComputeDDCostsDeclarerError(t *testing.T) {
	res, err := ComputeDDCosts(drawTrumpsDealPBN, drawTrumpsDealPlay, "7S", "South")
	if err != nil {
		t.Fatalf("ComputeDDCosts: %v", err)
	}
	if res.InitialDD != 13 {
		t.Errorf("initial DD = %d, want 13", res.InitialDD)
	}
	if res.DeclarerTook != 12 {
		t.Errorf("declarer took %d, want 12", res.DeclarerTook)
	}
	if got := res.Costs[1][0]; got != 1 {
		t.Errorf("diamond ace cost = %d, want 1", got)
	}
	if sumCosts(res.Costs) != 1 {
		t.Errorf("total cost = %d, want 1", sumCosts(res.Costs))
	}
}

// The telescoping identity: initial DD plus defensive gifts minus declarer
// losses must land exactly on the tricks declarer took.
func TestCostTelescoping(t *testing.T) {
	tests := []struct {
		name     string
		pbn      string
		play     string
		contract string
		declarer string
	}{
		{"defensive error", raceDealPBN, raceDealPlay, "1N", "South"},
		{"declarer error", drawTrumpsDealPBN, drawTrumpsDealPlay, "7S", "South"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ComputeDDCosts(tt.pbn, tt.play, tt.contract, tt.declarer)
			if err != nil {
				t.Fatal(err)
			}
			declarerSeat, _ := dd.ParseSeat(tt.declarer)
			trump, _ := ParseTrump(tt.contract)
			balance := int(res.InitialDD)
			tricks, err := parseCardplay(tt.play)
			if err != nil {
				t.Fatal(err)
			}
			seatLeader := declarerSeat.Next()
			for ti, trickCosts := range res.Costs {
				seat := seatLeader
				plays := make([]dd.PlayedCard, 0, 4)
				for ci, cost := range trickCosts {
					plays = append(plays, dd.PlayedCard{Seat: seat, Card: tricks[ti][ci]})
					if seat.SameSide(declarerSeat) {
						balance -= int(cost)
					} else {
						balance += int(cost)
					}
					seat = seat.Next()
				}
				if len(plays) == 4 {
					seatLeader = dd.TrickWinner(plays, trump)
				}
			}
			if balance != int(res.DeclarerTook) {
				t.Errorf("telescoped balance %d != declarer took %d", balance, res.DeclarerTook)
			}
		})
	}
}

func TestComputeDDCostsColdSlam(t *testing.T) {
	// Seven hearts by east on the one-suit deal: east ruffs the opening
	// diamond with an arbitrary mid-suit trump and runs the rest. Thirteen
	// tricks cold; rank equivalence must not flag any heart as an error.
	pbn := "N:AKQJT98765432... .AKQJT98765432.. ..AKQJT98765432. ...AKQJT98765432"
	var plays []string
	plays = append(plays, "D2 C2 S2 H5")
	heartRest := []string{"HA", "HK", "HQ", "HJ", "HT", "H9", "H8", "H7", "H6", "H4", "H3", "H2"}
	diamonds := "3456789TJQKA"
	clubs := "3456789TJQKA"
	spades := "3456789TJQKA"
	for i := 0; i < 12; i++ {
		plays = append(plays, strings.Join([]string{
			heartRest[i],
			"D" + string(diamonds[i]),
			"C" + string(clubs[i]),
			"S" + string(spades[i]),
		}, " "))
	}
	cardplay := strings.Join(plays, "|")

	res, err := ComputeDDCosts(pbn, cardplay, "7H", "East")
	if err != nil {
		t.Fatalf("ComputeDDCosts: %v", err)
	}
	if res.InitialDD != 13 {
		t.Errorf("initial DD = %d, want 13", res.InitialDD)
	}
	if res.DeclarerTook != 13 {
		t.Errorf("declarer took %d, want 13", res.DeclarerTook)
	}
	if sumCosts(res.Costs) != 0 {
		t.Errorf("cold slam produced costs: %v", res.Costs)
	}
}

func TestComputeDDCostsIllegalFollowWarning(t *testing.T) {
	// North discards a club on the spade lead while holding twelve spades:
	// flagged as a warning, and still scored from the observed position
	// (throwing the club lets west's spade two hold and west run the clubs:
	// north's side drops from twelve tricks to none).
	res, err := ComputeDDCosts(raceDealPBN, "S2 C2 H2 D2", "1N", "South")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected an illegal-follow warning")
	}
	if res.Truncated {
		t.Error("illegal follow should not truncate")
	}
	if got := res.Costs[0][0]; got != 11 {
		t.Errorf("west's lead cost = %d, want 11", got)
	}
	if got := res.Costs[0][1]; got != 12 {
		t.Errorf("north's club discard cost = %d, want 12", got)
	}
}

func TestComputeDDCostsTruncation(t *testing.T) {
	// North "plays" a diamond it does not hold: scoring stops after west's
	// lead and the result is flagged truncated.
	res, err := ComputeDDCosts(raceDealPBN, "S2 D5 H2 D2", "1N", "South")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	if res.TricksScored != 1 {
		t.Errorf("tricks scored = %d, want 1", res.TricksScored)
	}
	if len(res.Costs[0]) != 1 || res.Costs[0][0] != 11 {
		t.Errorf("costs = %v, want the lone lead cost 11", res.Costs)
	}
}

func TestComputeDDCostsBadInputs(t *testing.T) {
	if _, err := ComputeDDCosts("N:bogus", raceDealPlay, "1N", "South"); err == nil {
		t.Error("expected deal parse error")
	}
	if _, err := ComputeDDCosts(raceDealPBN, raceDealPlay, "1N", "Middle"); err == nil {
		t.Error("expected declarer parse error")
	}
	if _, err := ComputeDDCosts(raceDealPBN, "S2 XX", "1N", "South"); err == nil {
		t.Error("expected cardplay parse error")
	}
}

// interleavedBoard builds a deal with no equivalence runs and a mechanical
// legal play for it, heavy enough that a tiny budget trips mid-analysis.
func interleavedBoard(t *testing.T) *lin.Board {
	t.Helper()
	var deal dd.Deal
	for c := dd.Card(0); c < 52; c++ {
		deal[c&3] = deal[c&3].Add(c)
	}
	trump := dd.NoTrump
	leader := dd.West
	residual := deal
	var play []dd.Card
	for residual.MaxHandSize() > 0 {
		plays := make([]dd.PlayedCard, 0, 4)
		seat := leader
		for i := 0; i < 4; i++ {
			var card dd.Card
			if i > 0 {
				led := plays[0].Card.Suit()
				if ranks := residual[seat].SuitRanks(led); ranks != 0 {
					card = lowestOf(ranks, led)
				} else {
					card = residual[seat].Cards()[0]
				}
			} else {
				card = residual[seat].Cards()[0]
			}
			residual[seat] = residual[seat].Remove(card)
			plays = append(plays, dd.PlayedCard{Seat: seat, Card: card})
			play = append(play, card)
			seat = seat.Next()
		}
		leader = dd.TrickWinner(plays, trump)
	}
	return &lin.Board{
		PlayerNames: [4]string{"sven", "wanda", "nora", "emil"},
		Deal:        deal,
		Auction:     []string{"3N", "p", "p", "p"},
		Play:        play,
	}
}

func lowestOf(ranks uint16, suit dd.Suit) dd.Card {
	for r := dd.Two; r <= dd.Ace; r++ {
		if ranks&(1<<uint(r)) != 0 {
			return dd.MakeCard(suit, r)
		}
	}
	panic("empty rank set")
}

func TestBudgetExceededZeroesCosts(t *testing.T) {
	board := interleavedBoard(t)
	engine := NewEngine()
	cfg := MidTrickConfig()
	cfg.Budget = time.Nanosecond
	res, err := engine.AnalyzeBoard(board, cfg)
	if err != nil {
		t.Fatalf("AnalyzeBoard: %v", err)
	}
	if res == nil {
		t.Fatal("expected a result")
	}
	if !res.BudgetExceeded {
		t.Fatal("expected the budget flag")
	}
	if len(res.Errors) != 0 {
		t.Errorf("budgeted-out analysis still reported %d errors", len(res.Errors))
	}
	// The trick count must stay faithful even without solves.
	actual := declarerTricksOf(t, board)
	if res.FinalResult != actual {
		t.Errorf("final result = %d, want %d", res.FinalResult, actual)
	}
}

// declarerTricksOf replays the record with plain trick adjudication.
func declarerTricksOf(t *testing.T, board *lin.Board) uint8 {
	t.Helper()
	declarer, err := DeriveDeclarer(board)
	if err != nil {
		t.Fatal(err)
	}
	contract := ExtractContract(board.Auction)
	trump, err := ParseTrump(contract)
	if err != nil {
		t.Fatal(err)
	}
	leader := declarer.Next()
	var won uint8
	for i := 0; i+4 <= len(board.Play); i += 4 {
		plays := make([]dd.PlayedCard, 4)
		for j := 0; j < 4; j++ {
			plays[j] = dd.PlayedCard{Seat: (leader + dd.Seat(j)) & 3, Card: board.Play[i+j]}
		}
		winner := dd.TrickWinner(plays, trump)
		if winner.SameSide(declarer) {
			won++
		}
		leader = winner
	}
	return won
}
