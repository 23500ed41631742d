// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrAPIKeyRequired is returned when GEMINI_API_KEY is not set.
	ErrAPIKeyRequired = errors.New("config: GEMINI_API_KEY is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Generative API settings
	GeminiAPIKey  string `env:"GEMINI_API_KEY, required" json:"-"` // Masked in JSON
	GeminiBaseURL string `env:"GEMINI_BASE_URL" json:"gemini_base_url,omitempty"`

	// Model selection per concern
	VideoModelFast    string `env:"VIDEO_MODEL_FAST, default=veo-3.0-fast-generate-001" json:"video_model_fast"`
	VideoModelQuality string `env:"VIDEO_MODEL_QUALITY, default=veo-3.0-generate-001" json:"video_model_quality"`
	TTSModel          string `env:"TTS_MODEL, default=gemini-2.5-flash-preview-tts" json:"tts_model"`
	TextModel         string `env:"TEXT_MODEL, default=gemini-2.5-flash" json:"text_model"`

	// Polling settings
	PollIntervalSec int `env:"POLL_INTERVAL_SEC, default=10" json:"poll_interval_sec"`
	MaxPollAttempts int `env:"MAX_POLL_ATTEMPTS, default=90" json:"max_poll_attempts"`

	// Storage settings
	DataDir     string `env:"DATA_DIR, default=/var/lib/promoreel" json:"data_dir"`
	HistoryPath string `env:"HISTORY_PATH" json:"history_path,omitempty"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// PollInterval returns the operation poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// ResolvedHistoryPath returns the history file location, defaulting to a
// file inside the data directory.
func (c *Config) ResolvedHistoryPath() string {
	if c.HistoryPath != "" {
		return c.HistoryPath
	}
	return c.DataDir + "/history.json"
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// GEMINI_API_KEY is the only required variable
		if errors.Is(err, envconfig.ErrMissingRequired) {
			return nil, ErrAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return ErrAPIKeyRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, VideoModelFast: %s, VideoModelQuality: %s, TTSModel: %s, TextModel: %s, PollIntervalSec: %d, MaxPollAttempts: %d, DataDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.VideoModelFast,
		c.VideoModelQuality,
		c.TTSModel,
		c.TextModel,
		c.PollIntervalSec,
		c.MaxPollAttempts,
		c.DataDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
