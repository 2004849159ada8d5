package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pontinhos/internal/app"
	"pontinhos/internal/config"
	"pontinhos/internal/logging"
)

func newReapCmd(flags *globalFlags) *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Expire knock windows past their deadline",
		Long:  "reap watches the redis store for paused rooms and rolls back knock windows nobody acted on before the deadline.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := wire(cmd.Context(), cmd, flags)
			if err != nil {
				return err
			}
			defer d.Close()
			if d.settings.Store != config.StoreRedis {
				return fmt.Errorf("reap needs the %s store, got %s", config.StoreRedis, d.settings.Store)
			}

			svc := app.NewService(d.store, app.WithRules(d.rules), app.WithLogger(logging.Printf{L: d.logger}))
			reaper := app.NewReaper(svc, d.paused, d.rules.KnockTimeout, interval)

			if once {
				n, err := reaper.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "expired %d knock window(s)\n", n)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			d.logger.Info("reaper started", "interval", interval, "timeout", d.rules.KnockTimeout)
			if err := reaper.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			d.logger.Info("reaper stopped")
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", app.DefaultReapInterval, "sweep interval")
	cmd.Flags().BoolVar(&once, "once", false, "sweep once and exit")
	return cmd
}

