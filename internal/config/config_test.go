package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pontinhos/internal/domain"
)

func TestReadGameConfigRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game_config.json")
	body := `{"knock_timeout_seconds": 25, "elimination_score": 150, "allow_layoff": false}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := ReadGameConfig(path)
	if err != nil {
		t.Fatalf("ReadGameConfig: %v", err)
	}
	r := c.Rules()
	if r.KnockTimeout != 25*time.Second {
		t.Fatalf("KnockTimeout = %v", r.KnockTimeout)
	}
	if r.EliminationScore != 150 || r.AllowLayoff {
		t.Fatalf("unexpected rules: %+v", r)
	}
	if r.HandSize != domain.DefaultHandSize || r.MaxPlayers != domain.DefaultMaxPlayers {
		t.Fatalf("missing fields must take defaults: %+v", r)
	}
}

func TestReadGameConfigErrors(t *testing.T) {
	if _, err := ReadGameConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadGameConfig(path); err == nil {
		t.Fatal("expected error for malformed file")
	}
}

func TestNilConfigUsesDefaults(t *testing.T) {
	var c *GameConfig
	if got := c.Rules(); got != domain.DefaultRules() {
		t.Fatalf("Rules() = %+v", got)
	}
	if c.BotAutoFillDelay() != DefaultBotAutoFillDelay || c.BotActionDelay() != DefaultBotActionDelay {
		t.Fatal("nil config must use default bot delays")
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want func(domain.Rules) bool
	}{
		{
			name: "timeout override",
			env:  map[string]string{EnvKnockTimeoutSec: "10"},
			want: func(r domain.Rules) bool { return r.KnockTimeout == 10*time.Second },
		},
		{
			name: "garbage ignored",
			env:  map[string]string{EnvKnockTimeoutSec: "soon", EnvEliminationScore: "-5"},
			want: func(r domain.Rules) bool { return r == domain.DefaultRules() },
		},
		{
			name: "layoff toggle",
			env:  map[string]string{EnvAllowLayoff: "false"},
			want: func(r domain.Rules) bool { return !r.AllowLayoff },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplyEnv(domain.DefaultRules(), tt.env); !tt.want(got) {
				t.Fatalf("ApplyEnv() = %+v", got)
			}
		})
	}
}

func TestBotsEnabled(t *testing.T) {
	if !BotsEnabled(nil) {
		t.Fatal("bots default to enabled")
	}
	if BotsEnabled(map[string]string{EnvBotsEnabled: "false"}) {
		t.Fatal("explicit false disables bots")
	}
	if got := BotAutoFillDelayFromEnv(map[string]string{EnvBotAutoFillDelay: "0"}, time.Minute); got != 0 {
		t.Fatalf("BotAutoFillDelayFromEnv() = %v", got)
	}
}
