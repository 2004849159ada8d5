package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pontinhos/internal/config"
	"pontinhos/internal/domain"
	"pontinhos/internal/logging"
	"pontinhos/internal/ports"
	"pontinhos/internal/ports/memory"
	"pontinhos/internal/ports/redisstore"
	"pontinhos/internal/ports/sqlitestore"
)

const appName = "pontinhos"

// deps holds what a command runs against. Close releases every opened resource.
type deps struct {
	settings config.Settings
	logger   *log.Logger
	rules    domain.Rules
	store    ports.SessionStore
	paused   ports.PausedRoomIndex
	ledger   *sqlitestore.Ledger
	closers  []func() error
}

func (d *deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

func loadSettings(cmd *cobra.Command, flags *globalFlags) (config.Settings, error) {
	var searchPaths []string
	searchPaths = append(searchPaths, ".")
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", appName))
	}
	s, err := config.LoadSettings(viper.New(), flags.configFile, searchPaths...)
	if err != nil {
		return config.Settings{}, err
	}

	changed := cmd.Flags().Changed
	if changed("store") {
		s.Store = flags.store
	}
	if changed("redis-addr") {
		s.RedisAddr = flags.redisAddr
	}
	if changed("redis-password") {
		s.RedisPassword = flags.redisPassword
	}
	if changed("redis-db") {
		s.RedisDB = flags.redisDB
	}
	if changed("ledger") {
		s.LedgerPath = flags.ledgerPath
	}
	if changed("game-config") {
		s.GameConfig = flags.gameConfig
	}
	if changed("log-level") {
		s.LogLevel = flags.logLevel
	}
	return s, s.Validate()
}

// wire opens the store and ledger the settings select.
func wire(ctx context.Context, cmd *cobra.Command, flags *globalFlags) (*deps, error) {
	s, err := loadSettings(cmd, flags)
	if err != nil {
		return nil, err
	}
	d := &deps{
		settings: s,
		logger:   logging.New(cmd.ErrOrStderr(), appName, s.LogLevel),
		rules:    domain.DefaultRules(),
	}

	if s.GameConfig != "" {
		gc, err := config.ReadGameConfig(s.GameConfig)
		if err != nil {
			return nil, err
		}
		d.rules = gc.Rules()
	}

	switch s.Store {
	case config.StoreRedis:
		store, err := redisstore.Dial(ctx, s.RedisAddr, s.RedisPassword, s.RedisDB, logging.Printf{L: d.logger})
		if err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", s.RedisAddr, err)
		}
		d.store, d.paused = store, store
		d.closers = append(d.closers, store.Close)
	default:
		store := memory.NewStore()
		d.store, d.paused = store, store
	}

	if s.LedgerPath != "" {
		ledger, err := sqlitestore.Open(ctx, s.LedgerPath)
		if err != nil {
			_ = d.Close()
			return nil, err
		}
		d.ledger = ledger
		d.closers = append(d.closers, ledger.Close)
	}
	d.logger.Debug("wired", "store", s.Store, "ledger", s.LedgerPath)
	return d, nil
}
