package nakama

import (
	"context"
	"database/sql"

	"github.com/heroiclabs/nakama-common/runtime"

	"pontinhos/internal/bot"
	"pontinhos/internal/config"
)

// InitModule wires RPCs and match handlers for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := config.LoadGameConfig(gameConfigPath); err != nil {
		logger.Warn("InitModule: Could not load game config, using defaults: %v", err)
	}

	roster, err := bot.LoadRoster(botIdentitiesPath)
	if err != nil {
		logger.Warn("InitModule: Could not load bot identities: %v", err)
		roster = bot.NewRoster(nil)
	}
	roster.Provision(ctx, nk, logger)

	if err := RegisterRPCs(initializer); err != nil {
		return err
	}

	cfg := config.GetGameConfig()
	if err := initializer.RegisterMatch(MatchNamePontinhos, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newMatchHandler(roster, cfg), nil
	}); err != nil {
		return err
	}

	logger.Info("Pontinhos Go module loaded.")
	return nil
}
