package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tryon-studio/internal/gemini"
)

var configKeys = []string{
	"TELEGRAM_BOT_TOKEN", "GEMINI_API_KEY", "GEMINI_BASE_URL", "GEMINI_API_VERSION",
	"GEMINI_MODEL", "GEMINI_BACKEND", "RELAY_URL", "RELAY_ADDR", "CATALOG_PATH",
	"IMAGE_MAX_DIMENSION", "IMAGE_QUALITY", "LOG_LEVEL", "DEBUG", "PREFER_IPV4",
	"MEDIA_GROUP_DEBOUNCE_MS", "MAX_CONCURRENT", "REQUEST_TIMEOUT_SECONDS", "HTTP_TIMEOUT_SECONDS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, gemini.DefaultModel, cfg.GeminiModel)
	assert.Equal(t, gemini.DefaultAPIVersion, cfg.GeminiAPIVersion)
	assert.Equal(t, gemini.DefaultBaseURL, cfg.GeminiBaseURL)
	assert.Equal(t, gemini.BackendREST, cfg.GeminiBackend)
	assert.Equal(t, ":8080", cfg.RelayAddr)
	assert.Equal(t, 800, cfg.ImageMaxDimension)
	assert.Equal(t, 70, cfg.ImageQuality)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 180*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 4, cfg.MaxConcurrent)
	assert.True(t, cfg.PreferIPv4)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadClampsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_CONCURRENT", "0")
	t.Setenv("IMAGE_QUALITY", "150")
	t.Setenv("IMAGE_MAX_DIMENSION", "abc")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "-5")
	t.Setenv("RELAY_URL", "https://relay.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.MaxConcurrent)
	assert.Equal(t, 70, cfg.ImageQuality)
	assert.Equal(t, 800, cfg.ImageMaxDimension)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "https://relay.example.com", cfg.RelayURL)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_BACKEND", "grpc")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateBot(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "no token", cfg: Config{GeminiAPIKey: "k"}, wantErr: true},
		{name: "no generator", cfg: Config{TelegramToken: "t"}, wantErr: true},
		{name: "direct key", cfg: Config{TelegramToken: "t", GeminiAPIKey: "k"}},
		{name: "relay only", cfg: Config{TelegramToken: "t", RelayURL: "http://relay"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateBot()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "warn"}.SlogLevel())
	assert.Equal(t, slog.LevelError, Config{LogLevel: "error"}.SlogLevel())
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "error", Debug: true}.SlogLevel())
}
