package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"tryon-studio/internal/gemini"
	"tryon-studio/internal/httpclient"
	"tryon-studio/internal/imagenorm"
	"tryon-studio/internal/tryon"
)

type Config struct {
	TelegramToken string

	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiAPIVersion string
	GeminiModel      string
	GeminiBackend    string

	RelayURL  string
	RelayAddr string

	CatalogPath string

	ImageMaxDimension int
	ImageQuality      int

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	MediaGroupDebounce time.Duration
	MaxConcurrent      int
	RequestTimeout     time.Duration
	HTTPTimeout        time.Duration
}

// Load never fails on missing credentials; each entry point validates what it needs.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken:      strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		GeminiAPIKey:       strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:      strings.TrimSpace(getEnv("GEMINI_BASE_URL", gemini.DefaultBaseURL)),
		GeminiAPIVersion:   strings.TrimSpace(getEnv("GEMINI_API_VERSION", gemini.DefaultAPIVersion)),
		GeminiModel:        strings.TrimSpace(getEnv("GEMINI_MODEL", gemini.DefaultModel)),
		GeminiBackend:      strings.ToLower(getEnv("GEMINI_BACKEND", gemini.BackendREST)),
		RelayURL:           strings.TrimRight(strings.TrimSpace(os.Getenv("RELAY_URL")), "/"),
		RelayAddr:          getEnv("RELAY_ADDR", ":8080"),
		CatalogPath:        strings.TrimSpace(os.Getenv("CATALOG_PATH")),
		ImageMaxDimension:  getEnvInt("IMAGE_MAX_DIMENSION", imagenorm.DefaultMaxDimension),
		ImageQuality:       getEnvInt("IMAGE_QUALITY", imagenorm.DefaultQuality),
		LogLevel:           strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:              getEnvBool("DEBUG", false),
		PreferIPv4:         getEnvBool("PREFER_IPV4", true),
		MediaGroupDebounce: time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 4),
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", int(tryon.DefaultTimeout.Seconds()))) * time.Second,
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", int(httpclient.DefaultTimeout.Seconds()))) * time.Second,
	}

	switch cfg.GeminiBackend {
	case gemini.BackendREST, gemini.BackendSDK:
	default:
		return Config{}, errors.New("GEMINI_BACKEND must be rest or sdk")
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.ImageMaxDimension < 1 {
		cfg.ImageMaxDimension = imagenorm.DefaultMaxDimension
	}
	if cfg.ImageQuality < 1 || cfg.ImageQuality > 100 {
		cfg.ImageQuality = imagenorm.DefaultQuality
	}
	if cfg.MediaGroupDebounce <= 0 {
		cfg.MediaGroupDebounce = 1200 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = tryon.DefaultTimeout
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = httpclient.DefaultTimeout
	}

	return cfg, nil
}

func (c Config) ValidateBot() error {
	switch {
	case c.TelegramToken == "":
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	case c.GeminiAPIKey == "" && c.RelayURL == "":
		return errors.New("GEMINI_API_KEY or RELAY_URL is required")
	}
	return nil
}

func (c Config) SlogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
