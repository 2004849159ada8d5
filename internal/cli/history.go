package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"pontinhos/internal/ports"
)

type winsRow struct {
	PlayerID string `json:"playerId"`
	Wins     int    `json:"wins"`
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var (
		wins   bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history [ROOM]",
		Short: "Show settled rounds from the ledger",
		Long:  "history lists the settled rounds of a room, or with --wins the number of finished games each player won.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !wins && len(args) == 0 {
				return errors.New("a room id is required unless --wins is set")
			}
			d, err := wire(cmd.Context(), cmd, flags)
			if err != nil {
				return err
			}
			defer d.Close()
			if d.ledger == nil {
				return errors.New("no ledger configured, set --ledger or ledger_path")
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			w := cmd.OutOrStdout()

			if wins {
				counts, err := d.ledger.Wins(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([]winsRow, 0, len(counts))
				for id, n := range counts {
					rows = append(rows, winsRow{PlayerID: id, Wins: n})
				}
				sort.Slice(rows, func(i, j int) bool {
					if rows[i].Wins != rows[j].Wins {
						return rows[i].Wins > rows[j].Wins
					}
					return rows[i].PlayerID < rows[j].PlayerID
				})
				if asJSON {
					return enc.Encode(rows)
				}
				for _, r := range rows {
					fmt.Fprintf(w, "%-20s %d\n", r.PlayerID, r.Wins)
				}
				return nil
			}

			rounds, err := d.ledger.ListRounds(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				if rounds == nil {
					rounds = []ports.RoundRecord{}
				}
				return enc.Encode(rounds)
			}
			if len(rounds) == 0 {
				_, err := fmt.Fprintf(w, "no rounds recorded for %s\n", args[0])
				return err
			}
			for _, r := range rounds {
				fmt.Fprintf(w, "round %d  %s  winner %s (%s)  scores %v\n", r.Round, r.EndedAt.Format("2006-01-02 15:04"), r.Winner, r.Scenario, r.Scores)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wins, "wins", false, "count finished games won per player")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
