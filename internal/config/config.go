// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when KUIPER_PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: KUIPER_PORT must be between 1 and 65535")
	// ErrInvalidUploadLimit is returned when KUIPER_MAX_UPLOAD_SIZE_MB is not positive.
	ErrInvalidUploadLimit = errors.New("config: KUIPER_MAX_UPLOAD_SIZE_MB must be positive")
	// ErrSupabaseKeyRequired is returned when SUPABASE_URL is set without SUPABASE_KEY.
	ErrSupabaseKeyRequired = errors.New("config: SUPABASE_KEY is required when SUPABASE_URL is set")
)

// DefaultCORSOrigins are the origins allowed in production when
// KUIPER_CORS_ORIGINS is unset or empty.
var DefaultCORSOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"https://kuiper-tts-recording.vercel.app",
}

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Host        string `env:"KUIPER_HOST, default=0.0.0.0" json:"host"`
	Port        int    `env:"KUIPER_PORT, default=8000" json:"port"`
	Environment string `env:"KUIPER_ENV, default=development" json:"environment"`
	Debug       bool   `env:"KUIPER_DEBUG, default=false" json:"debug"`

	// Supabase settings (PostgREST metadata store and JWT issuer)
	SupabaseURL string `env:"SUPABASE_URL" json:"supabase_url,omitempty"`
	SupabaseKey string `env:"SUPABASE_KEY" json:"-"` // Masked in JSON
	JWTAudience string `env:"KUIPER_JWT_AUDIENCE, default=authenticated" json:"jwt_audience"`

	// Security settings
	AdminPassword      string   `env:"ADMIN_PASSWORD" json:"-"` // Masked in JSON
	CORSOrigins        []string `env:"KUIPER_CORS_ORIGINS" json:"cors_origins"`
	MaxUploadSizeMB    int      `env:"KUIPER_MAX_UPLOAD_SIZE_MB, default=100" json:"max_upload_size_mb"`
	RateLimitPerMinute int      `env:"KUIPER_RATE_LIMIT, default=120" json:"rate_limit_per_minute"`

	// Object storage settings
	StorageDir         string `env:"KUIPER_STORAGE_DIR, default=/tmp/kuiper/recordings" json:"storage_dir"`
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Pronunciation settings
	ESpeakPath string `env:"ESPEAK_PATH, default=espeak-ng" json:"espeak_path"`

	// Logging settings
	LogFormat string `env:"KUIPER_LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"KUIPER_LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// SupabaseEnabled returns true if the PostgREST metadata store is configured.
func (c *Config) SupabaseEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseKey != ""
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AllowedOrigins returns the CORS origins to enforce: the configured list in
// production and a wildcard everywhere else.
func (c *Config) AllowedOrigins() []string {
	if !c.IsProduction() {
		return []string{"*"}
	}
	return c.CORSOrigins
}

// JWKSURL returns the Supabase JWKS endpoint used to verify access tokens.
func (c *Config) JWKSURL() string {
	if c.SupabaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.SupabaseURL, "/") + "/auth/v1/.well-known/jwks.json"
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	return LoadWithLookuper(envconfig.OsLookuper())
}

// LoadWithLookuper reads configuration from the given lookuper.
func LoadWithLookuper(l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.CORSOrigins = normalizeOrigins(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.MaxUploadSizeMB <= 0 {
		return ErrInvalidUploadLimit
	}
	if c.SupabaseURL != "" && c.SupabaseKey == "" {
		return ErrSupabaseKeyRequired
	}
	return nil
}

// normalizeOrigins trims entries, drops empty ones and falls back to
// DefaultCORSOrigins when nothing is left.
func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultCORSOrigins...)
	}
	return out
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
		"Config{Addr: %s, Environment: %s, Debug: %t, SupabaseURL: %s, StorageDir: %s, S3Bucket: %s, S3Region: %s, MaxUploadSizeMB: %d, RateLimitPerMinute: %d, LogFormat: %s, LogLevel: %s}",
		c.Addr(),
		c.Environment,
		c.Debug,
		c.SupabaseURL,
		c.StorageDir,
		c.S3Bucket,
		c.S3Region,
		c.MaxUploadSizeMB,
		c.RateLimitPerMinute,
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
