// ddtrace prints a card-by-card double-dummy trace of one LIN board, for
// verification against handviewer analysis. By default the DD value is
// computed at trick boundaries only; --mid-trick evaluates every card.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rawblock/bridge-dd-engine/internal/analysis"
	"github.com/rawblock/bridge-dd-engine/internal/dd"
	"github.com/rawblock/bridge-dd-engine/internal/lin"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:      "ddtrace",
		Usage:     "Trace double-dummy values through a played bridge hand",
		ArgsUsage: "<file.lin>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "mid-trick",
				Usage: "Compute DD after every card (slower, finer attribution)",
			},
			&cli.IntFlag{
				Name:  "board",
				Usage: "Board number to trace (default: first board in the file)",
			},
		},
		Action: runTrace,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTrace(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: ddtrace [--mid-trick] [--board N] <file.lin>", 1)
	}
	content, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	boards, err := lin.ParseFile(string(content))
	if err != nil {
		return err
	}
	if len(boards) == 0 {
		return fmt.Errorf("no boards in %s", c.Args().First())
	}

	board := boards[0]
	if want := c.Int("board"); want != 0 {
		board = nil
		for _, b := range boards {
			if b.BoardNumber() == want {
				board = b
				break
			}
		}
		if board == nil {
			return fmt.Errorf("board %d not found", want)
		}
	}

	return trace(board, c.Bool("mid-trick"))
}

func trace(board *lin.Board, midTrick bool) error {
	contract := analysis.ExtractContract(board.Auction)
	if contract == analysis.PassedOut || len(board.Play) == 0 {
		return fmt.Errorf("board %d has no play to trace", board.BoardNumber())
	}
	declarer, err := analysis.DeriveDeclarer(board)
	if err != nil {
		return err
	}
	trump, err := analysis.ParseTrump(contract)
	if err != nil {
		return err
	}
	leader := declarer.Next()
	declarerIsNS := declarer.IsNS()

	fmt.Println("\n=== Deal Information ===")
	fmt.Printf("Players: %v\n", board.PlayerNames)
	fmt.Printf("Dealer: %v\n", board.Dealer)
	if board.Vulnerability != "" {
		fmt.Printf("Vulnerability: %s\n", board.Vulnerability)
	}
	if board.Header != "" {
		fmt.Printf("Board: %s\n", board.Header)
	}

	fmt.Println("\n=== Hands ===")
	fmt.Println(board.Deal.PBN(dd.North))

	fmt.Println("\n=== Contract ===")
	fmt.Printf("Contract: %s by %v\n", contract, declarer)
	fmt.Printf("Trump: %v\n", trump)
	fmt.Printf("Opening leader: %v\n", leader)

	cut := dd.NewCutoffCache(16)
	pat := dd.NewPatternCache(16)

	view := func(ns, remaining uint8) uint8 {
		if declarerIsNS {
			return ns
		}
		if ns > remaining {
			return 0
		}
		return remaining - ns
	}

	residual := board.Deal
	if err := residual.Validate(); err != nil {
		return err
	}

	initialNS, err := dd.BoundarySolve(residual, trump, leader, cut, pat)
	if err != nil {
		return err
	}
	fmt.Printf("\nInitial DD: Declarer makes %d tricks\n", view(initialNS, 13))

	if midTrick {
		fmt.Println("\n=== DD Analysis Card-by-Card (mid-trick mode) ===")
	} else {
		fmt.Println("\n=== DD Analysis at Trick Boundaries ===")
	}
	fmt.Printf("%-6s | %-4s | %-6s | %-6s | %-9s | %-9s | %-4s\n",
		"Trick", "Card", "Player", "Played", "DD Before", "DD After", "Cost")
	fmt.Println(strings.Repeat("-", 64))

	currentLeader := leader
	var declarerTricks uint8

	for i := 0; i < len(board.Play); i += 4 {
		end := i + 4
		if end > len(board.Play) {
			end = len(board.Play)
		}
		trick := board.Play[i:end]
		trickNum := i/4 + 1

		remaining := uint8(residual.MaxHandSize())
		startNS, err := dd.BoundarySolve(residual, trump, currentLeader, cut, pat)
		if err != nil {
			return err
		}
		currentDD := declarerTricks + view(startNS, remaining)

		seat := currentLeader
		var pt dd.PartialTrick
		plays := make([]dd.PlayedCard, 0, 4)
		for pos, card := range trick {
			before := currentDD
			if !residual[seat].Has(card) {
				log.Printf("[ddtrace] Trick %d: %s does not hold %s; stopping", trickNum, seat, card)
				return nil
			}
			residual[seat] = residual[seat].Remove(card)
			pt.Add(seat, card)
			plays = append(plays, dd.PlayedCard{Seat: seat, Card: card})

			after := before
			if pos == 3 {
				winner := dd.TrickWinner(plays, trump)
				var inc uint8
				if winner.SameSide(declarer) {
					inc = 1
				}
				if residual.MaxHandSize() == 0 {
					after = declarerTricks + inc
				} else {
					rem := uint8(residual.MaxHandSize())
					ns, err := dd.BoundarySolve(residual, trump, winner, cut, pat)
					if err != nil {
						return err
					}
					after = declarerTricks + inc + view(ns, rem)
				}
			} else if midTrick {
				ns, rem, err := dd.MidTrickSolve(residual, trump, &pt, cut, pat)
				if err != nil {
					return err
				}
				after = declarerTricks + view(ns, rem)
			}
			currentDD = after

			if midTrick {
				var cost uint8
				if seat.SameSide(declarer) {
					if after < before {
						cost = before - after
					}
				} else {
					if after > before {
						cost = after - before
					}
				}
				fmt.Printf("%-6d | %-4d | %-6s | %-6s | %-9d | %-9d | %-4d\n",
					trickNum, pos, seat, card, before, after, cost)
			}
			seat = seat.Next()
		}

		if len(plays) == 4 {
			winner := dd.TrickWinner(plays, trump)
			trickStart := declarerTricks + view(startNS, remaining)
			if !midTrick {
				// One row per trick: the swing between the two boundaries,
				// charged to whichever side moved the DD against itself.
				charged := declarer
				var cost uint8
				if currentDD > trickStart {
					cost = currentDD - trickStart
					charged = leaderOrFirstDefender(plays, currentLeader, declarer)
				} else {
					cost = trickStart - currentDD
				}
				fmt.Printf("%-6d | %-4d | %-6s | %-6s | %-9d | %-9d | %-4d\n",
					trickNum, 0, charged, trick[0], trickStart, currentDD, cost)
			}
			if winner.SameSide(declarer) {
				declarerTricks++
			}
			currentLeader = winner
		}
	}

	fmt.Printf("\nFinal result: declarer took %d tricks (DD said %d)\n",
		declarerTricks, view(initialNS, 13))
	return nil
}

// leaderOrFirstDefender picks the seat charged with a defensive DD swing:
// the leader when the leader defends, otherwise the first defender who
// played to the trick.
func leaderOrFirstDefender(plays []dd.PlayedCard, leader, declarer dd.Seat) dd.Seat {
	if !leader.SameSide(declarer) {
		return leader
	}
	for _, pc := range plays {
		if !pc.Seat.SameSide(declarer) {
			return pc.Seat
		}
	}
	return leader
}
