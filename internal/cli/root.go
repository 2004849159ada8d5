// Package cli implements the pontinhos command: offline solving, bot simulations, the knock
// reaper and round history.
package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

type globalFlags struct {
	configFile    string
	store         string
	redisAddr     string
	redisPassword string
	redisDB       int
	ledgerPath    string
	gameConfig    string
	logLevel      string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "pontinhos",
		Short:         "100 Pontinhos rule engine tools",
		Long:          "pontinhos solves go-out hands, runs bot games against the game service, expires stale knock windows and shows round history.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (default: pontinhos.toml in . or $HOME/.config/pontinhos)")
	pf.StringVar(&flags.store, "store", "", "session store: memory or redis")
	pf.StringVar(&flags.redisAddr, "redis-addr", "", "redis address")
	pf.StringVar(&flags.redisPassword, "redis-password", "", "redis password")
	pf.IntVar(&flags.redisDB, "redis-db", 0, "redis database")
	pf.StringVar(&flags.ledgerPath, "ledger", "", "sqlite file keeping round history")
	pf.StringVar(&flags.gameConfig, "game-config", "", "game rules JSON file")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newSolveCmd(),
		newSimulateCmd(flags),
		newReapCmd(flags),
		newHistoryCmd(flags),
	)

	return rootCmd
}
