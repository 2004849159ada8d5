package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"pontinhos/internal/app"
	"pontinhos/internal/bot"
	"pontinhos/internal/domain"
	"pontinhos/internal/logging"
)

// Simulation outcomes.
const (
	outcomeRounds   = "rounds_played"
	outcomeFinished = "game_finished"
	outcomeStalled  = "stalled"
	outcomeStepCap  = "step_limit"
)

type simulateOptions struct {
	players  int
	seed     int64
	rounds   int
	maxSteps int
	level    string
	roomID   string
	asJSON   bool
}

type simulationResult struct {
	RoomID  string               `json:"roomId"`
	Outcome string               `json:"outcome"`
	Steps   int                  `json:"steps"`
	Rounds  []domain.RoundResult `json:"rounds"`
	Scores  map[string]int       `json:"scores"`
	Winner  string               `json:"winner,omitempty"`
}

func newSimulateCmd(flags *globalFlags) *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play bots against each other",
		Long:  "simulate seats bots in a room and lets them play through the game service until the requested rounds are done, the game finishes or the table stalls.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := wire(cmd.Context(), cmd, flags)
			if err != nil {
				return err
			}
			defer d.Close()

			svcOpts := []app.Option{
				app.WithRules(d.rules),
				app.WithRand(rand.New(rand.NewSource(opts.seed))),
				app.WithLogger(logging.Printf{L: d.logger}),
			}
			if d.ledger != nil {
				svcOpts = append(svcOpts, app.WithLedger(d.ledger))
			}
			svc := app.NewService(d.store, svcOpts...)

			res, err := simulate(cmd.Context(), svc, opts)
			if err != nil {
				return err
			}
			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return writeSimulation(cmd, res)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.players, "players", 3, "number of bots")
	f.Int64Var(&opts.seed, "seed", 1, "shuffle seed")
	f.IntVar(&opts.rounds, "rounds", 1, "rounds to play, 0 plays until the game is finished")
	f.IntVar(&opts.maxSteps, "max-steps", 5000, "stop after this many bot actions")
	f.StringVar(&opts.level, "level", "simple", "bot level: simple or knocker")
	f.StringVar(&opts.roomID, "room", "", "room id (default sim-<seed>)")
	f.BoolVar(&opts.asJSON, "json", false, "print JSON")
	return cmd
}

func simulate(ctx context.Context, svc *app.Service, opts simulateOptions) (simulationResult, error) {
	if opts.roomID == "" {
		opts.roomID = fmt.Sprintf("sim-%d", opts.seed)
	}
	if _, err := bot.ParseLevel(opts.level); err != nil {
		return simulationResult{}, err
	}

	agents := make([]*bot.Agent, 0, opts.players)
	ids := make([]string, 0, opts.players)
	for i := 1; i <= opts.players; i++ {
		id := fmt.Sprintf("bot-%d", i)
		agent, err := bot.NewAgent(bot.BotIdentity{UserID: id, DisplayName: id, Difficulty: opts.level})
		if err != nil {
			return simulationResult{}, err
		}
		agents = append(agents, agent)
		ids = append(ids, id)
	}

	res := simulationResult{RoomID: opts.roomID}
	feed := func(events []app.Event) {
		for _, ev := range events {
			for _, a := range agents {
				if len(ev.Recipients) == 0 || ev.Recipients[0] == a.ID {
					a.OnGameEvent(ev)
				}
			}
			if ended, ok := ev.Payload.(app.RoundEndedPayload); ok {
				res.Rounds = append(res.Rounds, ended.Result)
			}
			if finished, ok := ev.Payload.(app.GameFinishedPayload); ok {
				res.Winner = finished.Winner
			}
		}
	}

	events, err := svc.StartRound(ctx, opts.roomID, ids)
	if err != nil {
		return res, err
	}
	feed(events)

	for res.Outcome == "" {
		view, err := svc.View(ctx, opts.roomID, "")
		if err != nil {
			return res, err
		}
		res.Scores = make(map[string]int, len(view.Seats))
		for _, s := range view.Seats {
			res.Scores[s.ID] = s.Score
		}

		switch view.Status {
		case domain.StatusFinished:
			res.Outcome = outcomeFinished
			continue
		case domain.StatusRoundEnd:
			if opts.rounds > 0 && len(res.Rounds) >= opts.rounds {
				res.Outcome = outcomeRounds
				continue
			}
			events, err := svc.StartNextRound(ctx, opts.roomID)
			if err != nil {
				return res, err
			}
			feed(events)
			continue
		}

		if res.Steps >= opts.maxSteps {
			res.Outcome = outcomeStepCap
			continue
		}
		moved := false
		for _, a := range agents {
			move, events, err := a.Step(ctx, svc, opts.roomID)
			feed(events)
			if err != nil {
				if app.IsIllegalMove(err) || errors.Is(err, app.ErrTransientConflict) {
					continue
				}
				return res, err
			}
			if move.Kind == bot.ActionNone {
				continue
			}
			moved = true
			res.Steps++
			break
		}
		if !moved {
			// nobody can act: the stock ran out without anyone going out
			res.Outcome = outcomeStalled
		}
	}
	return res, nil
}

func writeSimulation(cmd *cobra.Command, res simulationResult) error {
	w := cmd.OutOrStdout()
	for _, r := range res.Rounds {
		fmt.Fprintf(w, "round %d: %s went out (%s), winner %s, points %v\n", r.Round, r.WentOut, r.Scenario, r.Winner, r.Points)
	}
	fmt.Fprintf(w, "room %s: %s after %d steps\n", res.RoomID, res.Outcome, res.Steps)
	fmt.Fprintf(w, "scores %v\n", res.Scores)
	if res.Winner != "" {
		fmt.Fprintf(w, "game won by %s\n", res.Winner)
	}
	return nil
}
