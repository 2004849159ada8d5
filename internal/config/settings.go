package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// Store backends selectable from the command line.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Settings configures the pontinhos command. Values come from defaults, then the config
// file, then PONTINHOS_* environment variables; flags are applied last by the command.
type Settings struct {
	Store         string `mapstructure:"store" env:"PONTINHOS_STORE"`
	RedisAddr     string `mapstructure:"redis_addr" env:"PONTINHOS_REDIS_ADDR"`
	RedisPassword string `mapstructure:"redis_password" env:"PONTINHOS_REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"redis_db" env:"PONTINHOS_REDIS_DB"`
	LedgerPath    string `mapstructure:"ledger_path" env:"PONTINHOS_LEDGER_PATH"`
	GameConfig    string `mapstructure:"game_config" env:"PONTINHOS_GAME_CONFIG"`
	LogLevel      string `mapstructure:"log_level" env:"PONTINHOS_LOG_LEVEL"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Store:     StoreMemory,
		RedisAddr: "127.0.0.1:6379",
		LogLevel:  "info",
	}
}

// LoadSettings reads configFile (when set) or a pontinhos.{toml,yaml,json} found in the
// search paths, then applies the environment. A missing config file is not an error.
func LoadSettings(v *viper.Viper, configFile string, searchPaths ...string) (Settings, error) {
	if v == nil {
		v = viper.New()
	}
	d := DefaultSettings()
	v.SetDefault("store", d.Store)
	v.SetDefault("redis_addr", d.RedisAddr)
	v.SetDefault("redis_password", d.RedisPassword)
	v.SetDefault("redis_db", d.RedisDB)
	v.SetDefault("ledger_path", d.LedgerPath)
	v.SetDefault("game_config", d.GameConfig)
	v.SetDefault("log_level", d.LogLevel)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("pontinhos")
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the store selection.
func (s Settings) Validate() error {
	switch s.Store {
	case StoreMemory:
		return nil
	case StoreRedis:
		if s.RedisAddr == "" {
			return errors.New("redis store selected without an address")
		}
		return nil
	default:
		return fmt.Errorf("unknown store %q, want %s or %s", s.Store, StoreMemory, StoreRedis)
	}
}
