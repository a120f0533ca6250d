package config_test

import (
	"log/slog"
	"testing"
	"time"

	"pairup/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "QUEUE_TIMEOUT", "CHAT_HISTORY_CAP", "CHAT_MESSAGE_MAX_LEN", "LOG_LEVEL", "LOG_FORMAT", "REDIS_URL", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "5001", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.QueueTimeout)
	assert.Equal(t, 300, cfg.HistoryCap)
	assert.Equal(t, 1000, cfg.MaxMessageLen)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.RedisURL)
	assert.True(t, cfg.OriginAllowed("https://anything.example"))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("QUEUE_TIMEOUT", "90s")
	t.Setenv("SOCKET_HEARTBEAT", "15000")
	t.Setenv("CHAT_HISTORY_CAP", "50")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.QueueTimeout)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 50, cfg.HistoryCap)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.OriginAllowed("https://b.example"))
	assert.False(t, cfg.OriginAllowed("https://evil.example"))
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("CHAT_HISTORY_CAP", "0")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("CHAT_HISTORY_CAP", "")
	t.Setenv("LOG_FORMAT", "xml")
	_, err = config.Load()
	assert.Error(t, err)

	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_LEVEL", "loud")
	_, err = config.Load()
	assert.Error(t, err)
}
