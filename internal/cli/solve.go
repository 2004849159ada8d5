package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pontinhos/internal/domain"
)

type solveOutput struct {
	Hand     string   `json:"hand"`
	CanGoOut bool     `json:"canGoOut"`
	Scenario string   `json:"scenario,omitempty"`
	Melds    []string `json:"melds"`
	Discard  string   `json:"discard,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	// Deadwood is the greedy split's leftover when the hand cannot go out.
	Deadwood       string `json:"deadwood,omitempty"`
	DeadwoodPoints int    `json:"deadwoodPoints"`
}

func newSolveCmd() *cobra.Command {
	var (
		top     string
		offTurn bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "solve HAND",
		Short: "Find a way to go out with a hand",
		Long:  "solve checks whether a hand (e.g. \"7H 8H 9H 4S 4D 4C KD\") can go out, optionally with a discard top, and prints the melds.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hand, err := domain.ParseCards(args[0])
			if err != nil {
				return fmt.Errorf("parse hand: %w", err)
			}
			var topCard *domain.Card
			if top != "" {
				c, err := domain.ParseCard(top)
				if err != nil {
					return fmt.Errorf("parse top: %w", err)
				}
				topCard = &c
			}

			out := solve(hand, topCard, offTurn)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return writeSolve(cmd, out)
		},
	}
	cmd.Flags().StringVar(&top, "top", "", "visible discard top")
	cmd.Flags().BoolVar(&offTurn, "off-turn", false, "solve a knock: the top is picked up out of turn and must be melded")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func solve(hand []domain.Card, top *domain.Card, offTurn bool) solveOutput {
	out := solveOutput{Hand: domain.FormatCards(hand)}
	sc, err := domain.CanGoOutWithScenarios(hand, top, offTurn)
	if err != nil {
		melds, rest := domain.DecomposeGreedy(hand)
		out.Reason = err.Error()
		out.Melds = formatCandidates(melds)
		out.Deadwood = domain.FormatCards(rest)
		out.DeadwoodPoints = domain.HandPoints(rest)
		return out
	}
	out.CanGoOut = true
	out.Scenario = sc.Kind.String()
	out.Melds = formatCandidates(sc.Melds)
	if sc.Discard != nil {
		out.Discard = sc.Discard.String()
	}
	return out
}

func formatCandidates(melds []domain.MeldCandidate) []string {
	out := make([]string, 0, len(melds))
	for _, m := range melds {
		out = append(out, fmt.Sprintf("%s: %s", m.Kind, domain.FormatCards(m.Cards)))
	}
	return out
}

func writeSolve(cmd *cobra.Command, out solveOutput) error {
	w := cmd.OutOrStdout()
	if !out.CanGoOut {
		fmt.Fprintf(w, "cannot go out: %s\n", out.Reason)
		for _, m := range out.Melds {
			fmt.Fprintf(w, "  meld %s\n", m)
		}
		_, err := fmt.Fprintf(w, "  deadwood %s (%d points)\n", out.Deadwood, out.DeadwoodPoints)
		return err
	}
	fmt.Fprintf(w, "go out: %s\n", out.Scenario)
	for _, m := range out.Melds {
		fmt.Fprintf(w, "  meld %s\n", m)
	}
	if out.Discard != "" {
		fmt.Fprintf(w, "  discard %s\n", out.Discard)
	}
	return nil
}
