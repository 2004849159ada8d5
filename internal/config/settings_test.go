package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings(viper.New(), "", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadSettingsFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	content := "store = \"redis\"\nredis_addr = \"cache:6379\"\nredis_db = 2\nledger_path = \"rounds.db\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pontinhos.toml"), []byte(content), 0o600))
	t.Setenv("PONTINHOS_REDIS_ADDR", "override:6380")

	s, err := LoadSettings(viper.New(), "", dir)
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, s.Store)
	assert.Equal(t, "override:6380", s.RedisAddr)
	assert.Equal(t, 2, s.RedisDB)
	assert.Equal(t, "rounds.db", s.LedgerPath)
	assert.Equal(t, "info", s.LogLevel)
}

func TestLoadSettingsExplicitFileMustExist(t *testing.T) {
	_, err := LoadSettings(viper.New(), filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	s.Store = "postgres"
	assert.ErrorContains(t, s.Validate(), "unknown store")

	s.Store = StoreRedis
	s.RedisAddr = ""
	assert.Error(t, s.Validate())
}
