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
	// ErrInvalidPort is returned when PORT is outside 1..65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidUploadLimit is returned when MAX_UPLOAD_MB is not positive.
	ErrInvalidUploadLimit = errors.New("config: MAX_UPLOAD_MB must be positive")
	// ErrInvalidTTL is returned when ARTIFACT_TTL is negative.
	ErrInvalidTTL = errors.New("config: ARTIFACT_TTL must not be negative")
	// ErrSweepWithoutTTL is returned when SWEEP_INTERVAL is set but ARTIFACT_TTL is zero.
	ErrSweepWithoutTTL = errors.New("config: SWEEP_INTERVAL requires a positive ARTIFACT_TTL")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=3001" json:"port"`
	MaxUploadMB    int64    `env:"MAX_UPLOAD_MB, default=512" json:"max_upload_mb"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Storage settings
	StorageDir   string `env:"STORAGE_DIR, default=uploads" json:"storage_dir"`
	PublicPrefix string `env:"PUBLIC_PREFIX, default=uploads" json:"public_prefix"`

	// Compositing settings
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	VideoCodec  string `env:"VIDEO_CODEC, default=libx264" json:"video_codec"`
	VideoPreset string `env:"VIDEO_PRESET, default=veryfast" json:"video_preset"`
	VideoCRF    int    `env:"VIDEO_CRF, default=23" json:"video_crf"`

	// Expiry settings
	ArtifactTTL   time.Duration `env:"ARTIFACT_TTL, default=24h" json:"artifact_ttl"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL, default=15m" json:"sweep_interval"`

	// Optional Redis artifact registry
	RedisAddr     string `env:"REDIS_ADDR" json:"redis_addr,omitempty"`
	RedisPassword string `env:"REDIS_PASSWORD" json:"-"` // Masked in JSON
	RedisDB       int    `env:"REDIS_DB, default=0" json:"redis_db"`

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

// RedisEnabled returns true if the artifact registry should live in Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.MaxUploadMB <= 0 {
		return ErrInvalidUploadLimit
	}
	if c.ArtifactTTL < 0 {
		return ErrInvalidTTL
	}
	if c.SweepInterval > 0 && c.ArtifactTTL == 0 {
		return ErrSweepWithoutTTL
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
		"Config{Port: %d, StorageDir: %s, PublicPrefix: %s, MaxUploadMB: %d, FFmpegPath: %s, VideoCodec: %s, ArtifactTTL: %s, SweepInterval: %s, RedisAddr: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.StorageDir,
		c.PublicPrefix,
		c.MaxUploadMB,
		c.FFmpegPath,
		c.VideoCodec,
		c.ArtifactTTL,
		c.SweepInterval,
		c.RedisAddr,
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
