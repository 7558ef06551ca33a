package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, warnings := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "data/konsul.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "uploads", cfg.Storage.UploadsDir)
	assert.Equal(t, "output", cfg.Storage.OutputDir)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, time.Second, cfg.Voice.GreetingLock)
	assert.Equal(t, "info", cfg.LogLevel)

	// No collaborators configured in the test environment.
	assert.NotEmpty(t, warnings)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("GREETING_LOCK_MS", "250")
	t.Setenv("LIVEKIT_URL", "https://lk.example")
	t.Setenv("LIVEKIT_API_KEY", "key")
	t.Setenv("LIVEKIT_API_SECRET", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("WEBHOOK_URL", "https://hooks.example/x")

	cfg, warnings := Load()
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Voice.GreetingLock)
	assert.True(t, cfg.LiveKit.Configured())
	assert.Empty(t, warnings)
}

func TestLoadBadIntFallsBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	cfg, _ := Load()
	assert.Equal(t, 8080, cfg.Server.Port)
}
