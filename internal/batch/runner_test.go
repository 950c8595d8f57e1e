package batch

import (
	"context"
	"sync"
	"testing"

	"github.com/rawblock/bridge-dd-engine/internal/analysis"
	"github.com/rawblock/bridge-dd-engine/internal/dd"
	"github.com/rawblock/bridge-dd-engine/internal/lin"
	"github.com/rawblock/bridge-dd-engine/pkg/models"
)

// testBoards builds race-style deals with distinct board numbers.
func testBoards(t *testing.T, n int) []*lin.Board {
	t.Helper()
	const pbn = "N:AKQJT9876543...2 .AKQJT98765432.. ..AKQJT98765432. 2...AKQJT9876543"
	const play = "S2 S3 H2 D2|SA H3 D3 C3|SK H4 D4 C4|SQ H5 D5 C5|" +
		"SJ H6 D6 C6|ST H7 D7 C7|S9 H8 D8 C8|S8 H9 D9 C9|" +
		"S7 HT DT CT|S6 HJ DJ CJ|S5 HQ DQ CQ|S4 HK DK CK|C2 HA DA CA"
	deal, err := dd.DealFromPBN(pbn)
	if err != nil {
		t.Fatal(err)
	}
	var cards []dd.Card
	for _, f := range splitCards(play) {
		c, err := dd.ParseCard(f)
		if err != nil {
			t.Fatal(err)
		}
		cards = append(cards, c)
	}
	boards := make([]*lin.Board, n)
	for i := range boards {
		boards[i] = &lin.Board{
			PlayerNames: [4]string{"sven", "wanda", "nora", "emil"},
			Header:      "Board " + string(rune('1'+i)),
			Deal:        deal,
			Auction:     []string{"1N", "p", "p", "p"},
			Play:        cards,
		}
	}
	return boards
}

func splitCards(play string) []string {
	var out []string
	field := ""
	for _, r := range play {
		if r == ' ' || r == '|' {
			if field != "" {
				out = append(out, field)
				field = ""
			}
			continue
		}
		field += string(r)
	}
	if field != "" {
		out = append(out, field)
	}
	return out
}

func TestRunAnalyzesAllBoards(t *testing.T) {
	boards := testBoards(t, 4)
	var mu sync.Mutex
	var streamed []models.BoardResult
	runner := NewRunner(2, analysis.MidTrickConfig(), nil, func(r models.BoardResult) {
		mu.Lock()
		streamed = append(streamed, r)
		mu.Unlock()
	})

	results, jobID, err := runner.Run(context.Background(), boards)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jobID == "" {
		t.Error("expected a job id")
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].BoardNum < results[i-1].BoardNum {
			t.Error("results not ordered by board number")
		}
	}
	for _, r := range results {
		if len(r.Errors) != 1 || r.Errors[0].Player != "wanda" {
			t.Errorf("board %d: errors = %+v", r.BoardNum, r.Errors)
		}
	}
	if len(streamed) != 4 {
		t.Errorf("streamed %d results, want 4", len(streamed))
	}

	progress := runner.Progress()
	if progress.IsRunning {
		t.Error("runner should be idle after Run returns")
	}
	if progress.BoardsAnalyzed != 4 || progress.ErrorsFound != 4 {
		t.Errorf("progress = %+v", progress)
	}
}

func TestRunMatchesSingleWorker(t *testing.T) {
	boards := testBoards(t, 3)
	one, _, err := NewRunner(1, analysis.MidTrickConfig(), nil, nil).Run(context.Background(), boards)
	if err != nil {
		t.Fatal(err)
	}
	many, _, err := NewRunner(4, analysis.MidTrickConfig(), nil, nil).Run(context.Background(), boards)
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != len(many) {
		t.Fatalf("result counts differ: %d vs %d", len(one), len(many))
	}
	for i := range one {
		if one[i].InitialDD != many[i].InitialDD || len(one[i].Errors) != len(many[i].Errors) {
			t.Errorf("board %d: parallel run diverged", one[i].BoardNum)
		}
	}
}

func TestRunSkipsPassedOut(t *testing.T) {
	boards := testBoards(t, 2)
	boards[1].Auction = []string{"p", "p", "p", "p"}
	results, _, err := NewRunner(2, analysis.MidTrickConfig(), nil, nil).Run(context.Background(), boards)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (passed-out board skipped)", len(results))
	}
}

func TestRunRejectsConcurrentJobs(t *testing.T) {
	runner := NewRunner(1, analysis.MidTrickConfig(), nil, nil)
	runner.isRunning.Store(true)
	if _, _, err := runner.Run(context.Background(), testBoards(t, 1)); err != ErrBusy {
		t.Errorf("err = %v, want ErrBusy", err)
	}
	runner.isRunning.Store(false)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, _, err := NewRunner(2, analysis.MidTrickConfig(), nil, nil).Run(ctx, testBoards(t, 3))
	if err == nil {
		t.Error("expected a context error")
	}
	if len(results) > 3 {
		t.Errorf("results = %d", len(results))
	}
}
