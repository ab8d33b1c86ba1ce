package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Given
	t.Setenv("TCP_ADDR", "")
	os.Unsetenv("TCP_ADDR")

	// When
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	// Then
	require.NoError(t, err)
	assert.Equal(t, ":5555", cfg.TCPAddr)
	assert.Equal(t, 100*time.Millisecond, cfg.Game.PairInterval)
	assert.Equal(t, 5*time.Minute, cfg.Postgres.ConnMaxLifetime())
	assert.Equal(t, "medium", cfg.Game.BotDifficulty)
	assert.False(t, cfg.Game.BotFallback)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	// Given
	t.Setenv("TURN_TIMEOUT", "45s")
	t.Setenv("REQUIRE_AUTH", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	// When
	cfg, err := Load()

	// Then
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Game.TurnTimeout)
	assert.True(t, cfg.Auth.RequireAuth)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_DotEnvFile(t *testing.T) {
	// Given
	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("HTTP_ADDR=:9999\nOUTBOUND_BUFFER=8\n"), 0o600))
	t.Setenv("HTTP_ADDR", "")
	os.Unsetenv("HTTP_ADDR")
	t.Setenv("OUTBOUND_BUFFER", "")
	os.Unsetenv("OUTBOUND_BUFFER")

	// When
	cfg, err := Load(file)

	// Then
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 8, cfg.Game.OutboundBuffer)
}
