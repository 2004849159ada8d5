package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"pontinhos/internal/domain"
)

// GameConfig holds the table rules and bot timing read from data/game_config.json.
type GameConfig struct {
	KnockTimeoutSeconds int   `json:"knock_timeout_seconds"`
	EliminationScore    int   `json:"elimination_score"`
	HandSize            int   `json:"hand_size"`
	MaxHandSize         int   `json:"max_hand_size"`
	AllowLayoff         *bool `json:"allow_layoff"`
	MinPlayers          int   `json:"min_players"`
	MaxPlayers          int   `json:"max_players"`
	// BotAutoFillDelaySeconds configures how many seconds to wait before adding a bot to a solo human lobby.
	BotAutoFillDelaySeconds int `json:"bot_auto_fill_delay_seconds"`
	// BotActionDelayMillis is the pause before a bot acts on its turn.
	BotActionDelayMillis int `json:"bot_action_delay_millis"`
}

const (
	DefaultBotAutoFillDelay = 5 * time.Second
	DefaultBotActionDelay   = 800 * time.Millisecond
)

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		c, err := ReadGameConfig(path)
		if err != nil {
			loadErr = err
			return
		}
		cfg = c
	})
	return loadErr
}

// ReadGameConfig parses a config file without touching the global configuration.
func ReadGameConfig(path string) (*GameConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read game config: %w", err)
	}
	var c GameConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	return &c, nil
}

// GetGameConfig returns the global game configuration, or nil if none was loaded.
func GetGameConfig() *GameConfig {
	return cfg
}

// Rules converts the config into table rules. Unset fields take the defaults; a nil config
// yields the default rules.
func (c *GameConfig) Rules() domain.Rules {
	if c == nil {
		return domain.DefaultRules()
	}
	r := domain.Rules{
		HandSize:         c.HandSize,
		MaxHandSize:      c.MaxHandSize,
		EliminationScore: c.EliminationScore,
		KnockTimeout:     time.Duration(c.KnockTimeoutSeconds) * time.Second,
		AllowLayoff:      true,
		MinPlayers:       c.MinPlayers,
		MaxPlayers:       c.MaxPlayers,
	}
	if c.AllowLayoff != nil {
		r.AllowLayoff = *c.AllowLayoff
	}
	return r.WithDefaults()
}

// BotAutoFillDelay returns the lobby auto-fill delay.
func (c *GameConfig) BotAutoFillDelay() time.Duration {
	if c == nil || c.BotAutoFillDelaySeconds <= 0 {
		return DefaultBotAutoFillDelay
	}
	return time.Duration(c.BotAutoFillDelaySeconds) * time.Second
}

// BotActionDelay returns the pause before a bot acts.
func (c *GameConfig) BotActionDelay() time.Duration {
	if c == nil || c.BotActionDelayMillis <= 0 {
		return DefaultBotActionDelay
	}
	return time.Duration(c.BotActionDelayMillis) * time.Millisecond
}

// Runtime env keys understood by ApplyEnv.
const (
	EnvKnockTimeoutSec  = "pontinhos_knock_timeout_sec"
	EnvEliminationScore = "pontinhos_elimination_score"
	EnvAllowLayoff      = "pontinhos_allow_layoff"
	EnvBotsEnabled      = "pontinhos_bots_enabled"
	EnvBotAutoFillDelay = "pontinhos_bot_autofill_delay_sec"
)

// ApplyEnv overrides rules from a runtime env map. Unparseable values are ignored.
func ApplyEnv(r domain.Rules, env map[string]string) domain.Rules {
	if v, ok := envInt(env, EnvKnockTimeoutSec); ok && v > 0 {
		r.KnockTimeout = time.Duration(v) * time.Second
	}
	if v, ok := envInt(env, EnvEliminationScore); ok && v > 0 {
		r.EliminationScore = v
	}
	if v, ok := env[EnvAllowLayoff]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			r.AllowLayoff = b
		}
	}
	return r
}

// BotsEnabled reads the bots toggle from a runtime env map; bots are on unless disabled.
func BotsEnabled(env map[string]string) bool {
	v, ok := env[EnvBotsEnabled]
	if !ok {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err != nil || b
}

// BotAutoFillDelayFromEnv returns the env override for the lobby auto-fill delay, or def.
func BotAutoFillDelayFromEnv(env map[string]string, def time.Duration) time.Duration {
	if v, ok := envInt(env, EnvBotAutoFillDelay); ok && v >= 0 {
		return time.Duration(v) * time.Second
	}
	return def
}

func envInt(env map[string]string, key string) (int, bool) {
	v, ok := env[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
