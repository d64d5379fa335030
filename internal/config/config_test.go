package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DB_PATH", "GEN_PROVIDER", "CLIENT_URL", "CLIENT_IDENTITY",
		"CLIENT_MAX_ATTEMPTS", "CLIENT_BACKOFF_BASE", "CLIENT_BACKOFF_CAP", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/sessions.db", cfg.Server.DBPath)
	assert.Equal(t, "generic", cfg.Generation.Provider)
	assert.Equal(t, "ws://localhost:8080", cfg.Client.URL)
	assert.Equal(t, "TOM", cfg.Client.Identity)
	assert.Equal(t, 30, cfg.Client.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Client.BackoffBase)
	assert.Zero(t, cfg.Client.BackoffCap)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CLIENT_BACKOFF_BASE", "250ms")
	t.Setenv("PROMPT_RATE", "0.5")
	t.Setenv("GEN_PROVIDER", "openai")
	t.Setenv("GEN_API_KEY", "sk-test")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.BackoffBase)
	assert.Equal(t, 0.5, cfg.Server.PromptRate)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_InvalidValues(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "PORT")

	t.Setenv("PORT", "")
	t.Setenv("GEN_TIMEOUT", "soon")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "GEN_TIMEOUT")
}

func TestValidate(t *testing.T) {
	t.Setenv("GEN_PROVIDER", "")
	cfg, err := FromEnv()
	require.NoError(t, err)

	cfg.Server.Port = 0
	cfg.Generation.Provider = "gemini"
	cfg.Client.URL = "http://localhost:8080"
	cfg.Client.MaxAttempts = 0

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "GEN_API_KEY")
	assert.Contains(t, err.Error(), "CLIENT_URL")
	assert.Contains(t, err.Error(), "CLIENT_MAX_ATTEMPTS")
}

func TestServerConfig_AuditEnabled(t *testing.T) {
	assert.True(t, ServerConfig{DBPath: "data/sessions.db"}.AuditEnabled())
	assert.False(t, ServerConfig{DBPath: AuditDisabled}.AuditEnabled())
}
