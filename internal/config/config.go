// Package config loads server tunables from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable of the server process.
type Config struct {
	// Server
	Port            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration

	// Matching / chat
	QueueTimeout  time.Duration
	HistoryCap    int
	MaxMessageLen int
	SendBuffer    int

	// Presence sidecar. Empty RedisURL disables it.
	RedisURL          string
	HeartbeatInterval time.Duration
	PresenceTTL       time.Duration

	// Logging
	LogFormat string
	LogLevel  slog.Level

	// LocalesDir overrides the embedded notice translations.
	LocalesDir string
}

// Load reads the configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            getEnv("PORT", "5001"),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "*")),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		QueueTimeout:  getEnvAsDuration("QUEUE_TIMEOUT", DefaultQueueTimeout),
		HistoryCap:    getEnvAsInt("CHAT_HISTORY_CAP", DefaultHistoryCap),
		MaxMessageLen: getEnvAsInt("CHAT_MESSAGE_MAX_LEN", DefaultMaxMessageLen),
		SendBuffer:    getEnvAsInt("SEND_BUFFER_SIZE", DefaultSendBuffer),

		RedisURL:          getEnv("REDIS_URL", ""),
		HeartbeatInterval: getEnvAsDuration("SOCKET_HEARTBEAT", DefaultHeartbeatInterval),
		PresenceTTL:       getEnvAsDuration("SOCKET_PRESENCE_TTL", DefaultPresenceTTL),

		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogLevel:  level,

		LocalesDir: getEnv("LOCALES_DIR", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.QueueTimeout <= 0 {
		return fmt.Errorf("QUEUE_TIMEOUT must be positive, got %s", c.QueueTimeout)
	}
	if c.HistoryCap <= 0 {
		return fmt.Errorf("CHAT_HISTORY_CAP must be positive, got %d", c.HistoryCap)
	}
	if c.MaxMessageLen <= 0 {
		return fmt.Errorf("CHAT_MESSAGE_MAX_LEN must be positive, got %d", c.MaxMessageLen)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER_SIZE must be positive, got %d", c.SendBuffer)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("SOCKET_HEARTBEAT must be positive, got %s", c.HeartbeatInterval)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// OriginAllowed reports whether a websocket Origin header may connect.
func (c *Config) OriginAllowed(origin string) bool {
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("5m") or plain milliseconds ("30000").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", raw, err)
	}
	return level, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
