package cli

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/yammer/pkg/yammersdk"
	"github.com/joho/godotenv"
)

type Config struct {
	ClientID     string // YAMMER_CLIENT_ID
	ClientSecret string // YAMMER_CLIENT_SECRET
	RedirectURI  string // YAMMER_REDIRECT_URI (default: http://localhost:8765/callback)
	AccessToken  string // YAMMER_ACCESS_TOKEN: skips the login flow when set

	BaseURL        string        // YAMMER_BASE_URL (default: https://www.yammer.com)
	DecodeMode     string        // YAMMER_DECODE_MODE: lenient or strict (default: strict)
	RequestTimeout time.Duration // YAMMER_REQUEST_TIMEOUT (default: 30s)

	RateLimit yammersdk.RateLimitConfig // YAMMER_RATELIMIT_REQUESTS / _WINDOW / _BURST

	CallbackPort    int           // YAMMER_CALLBACK_PORT (default: 8765)
	CallbackTimeout time.Duration // YAMMER_CALLBACK_TIMEOUT (default: 5m)

	Env       string // ENV (default: dev)
	LogLevel  string // LOG_LEVEL (default: warn)
	LogFormat string // LOG_FORMAT (default: text)
}

// LoadConfig reads the configuration from the environment, after loading a .env
// file from the working directory if there is one.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg := Config{
		ClientID:        os.Getenv("YAMMER_CLIENT_ID"),
		ClientSecret:    os.Getenv("YAMMER_CLIENT_SECRET"),
		RedirectURI:     getEnvOrDefault("YAMMER_REDIRECT_URI", "http://localhost:8765/callback"),
		AccessToken:     os.Getenv("YAMMER_ACCESS_TOKEN"),
		BaseURL:         getEnvOrDefault("YAMMER_BASE_URL", yammersdk.DefaultBaseURL),
		DecodeMode:      getEnvOrDefault("YAMMER_DECODE_MODE", "strict"),
		RequestTimeout:  getEnvDurationOrDefault("YAMMER_REQUEST_TIMEOUT", yammersdk.DefaultRequestTimeout),
		CallbackPort:    getEnvIntOrDefault("YAMMER_CALLBACK_PORT", 8765),
		CallbackTimeout: getEnvDurationOrDefault("YAMMER_CALLBACK_TIMEOUT", 5*time.Minute),
		Env:             getEnvOrDefault("ENV", "dev"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "warn"),
		LogFormat:       getEnvOrDefault("LOG_FORMAT", "text"),
		RateLimit: yammersdk.RateLimitConfig{
			RequestsPerWindow: getEnvIntOrDefault("YAMMER_RATELIMIT_REQUESTS", yammersdk.DefaultLimit.RequestsPerWindow),
			Window:            getEnvDurationOrDefault("YAMMER_RATELIMIT_WINDOW", yammersdk.DefaultLimit.Window),
			Burst:             getEnvIntOrDefault("YAMMER_RATELIMIT_BURST", yammersdk.DefaultLimit.Burst),
		},
	}

	if _, err := yammersdk.ParseDecodeMode(cfg.DecodeMode); err != nil {
		return Config{}, err
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
