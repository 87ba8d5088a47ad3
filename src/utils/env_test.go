package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()

	t.Setenv("SLACK_CLIENT_ID", "slack-client-id")
	t.Setenv("SLACK_CLIENT_SECRET", "slack-client-secret")
	t.Setenv("SLACK_APP_ID", "A0001")
	t.Setenv("PD_CLIENT_ID", "pd-client-id")
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("BOLT_DB_PATH", "/tmp/martbot.bolt")
	t.Setenv("SERVER_NAME", "bot.example.com")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("WORKER_POOL_SIZE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "bot.example.com", cfg.ServerName)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 8, cfg.WorkerCount)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("WORKER_POOL_SIZE", "16")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 16, cfg.WorkerCount)
}

func TestLoadConfigMissingRequiredValue(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_NAME", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_NAME")
}

func TestLoadConfigRejectsBadWorkerCount(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WORKER_POOL_SIZE", "zero")

	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("WORKER_POOL_SIZE", "-2")
	_, err = LoadConfig()
	assert.Error(t, err)
}
