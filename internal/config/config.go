package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// maxQueueBatchSize caps how many rows a single batch may claim.
const maxQueueBatchSize = 50

type Config struct {
	// ----------------------------
	// Logging
	// ----------------------------
	LogDevelopment bool `envconfig:"LOG_DEVELOPMENT" default:"false"`

	// ----------------------------
	// Email provider
	// ----------------------------
	EmailProvider string `envconfig:"EMAIL_PROVIDER" default:"resend"`
	ResendAPIKey  string `envconfig:"RESEND_API_KEY" default:""`
	ResendAPIURL  string `envconfig:"RESEND_API_URL" default:"https://api.resend.com/emails"`
	EmailFrom     string `envconfig:"EMAIL_FROM" default:"CSS Jobs <noreply@css-jobs.org>"`
	SiteURL       string `envconfig:"SITE_URL" default:"https://css-jobs.org"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`

	// ----------------------------
	// Queue
	// ----------------------------
	QueueBatchSize    int           `envconfig:"QUEUE_BATCH_SIZE" default:"50"`
	QueueLease        time.Duration `envconfig:"QUEUE_LEASE" default:"10m"`
	QueuePollInterval time.Duration `envconfig:"QUEUE_POLL_INTERVAL" default:"0s"`
	ProviderRateLimit float64       `envconfig:"PROVIDER_RATE_LIMIT" default:"2"`
	RetryBaseDelay    time.Duration `envconfig:"RETRY_BASE_DELAY" default:"5m"`
	DefaultMaxRetries int           `envconfig:"DEFAULT_MAX_RETRIES" default:"3"`

	// ----------------------------
	// Supabase
	// ----------------------------
	SupabaseURL            string `envconfig:"SUPABASE_URL" default:""`
	SupabaseServiceRoleKey string `envconfig:"SUPABASE_SERVICE_ROLE_KEY" default:""`
	SupabaseJWTSecret      string `envconfig:"SUPABASE_JWT_SECRET" default:""`
	SupabaseJWTAudience    string `envconfig:"SUPABASE_JWT_AUDIENCE" default:"authenticated"`

	// FunctionSecret guards the queue trigger and enqueue endpoints when set.
	FunctionSecret string `envconfig:"FUNCTION_SECRET" default:""`

	// ----------------------------
	// Rate limiting
	// ----------------------------
	RateLimitBackend         string        `envconfig:"RATE_LIMIT_BACKEND" default:"memory"`
	RateLimitCleanupInterval time.Duration `envconfig:"RATE_LIMIT_CLEANUP_INTERVAL" default:"5m"`
	RedisAddr                string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword            string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB                  int           `envconfig:"REDIS_DB" default:"0"`

	// ----------------------------
	// Institution domains
	// ----------------------------
	DomainsSource string `envconfig:"DOMAINS_SOURCE" default:""`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"8080"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Database
	// ----------------------------
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.EmailProvider {
	case "resend", "smtp":
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be resend or smtp, got %q", c.EmailProvider)
	}
	switch c.RateLimitBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", c.RateLimitBackend)
	}
	if c.QueueBatchSize <= 0 || c.QueueBatchSize > maxQueueBatchSize {
		return fmt.Errorf("QUEUE_BATCH_SIZE must be between 1 and %d", maxQueueBatchSize)
	}
	if c.QueueLease <= 0 {
		return errors.New("QUEUE_LEASE must be positive")
	}
	if c.QueuePollInterval < 0 {
		return errors.New("QUEUE_POLL_INTERVAL must not be negative")
	}
	if c.RetryBaseDelay <= 0 {
		return errors.New("RETRY_BASE_DELAY must be positive")
	}
	if c.DefaultMaxRetries < 0 {
		return errors.New("DEFAULT_MAX_RETRIES must not be negative")
	}
	if c.ProviderRateLimit <= 0 {
		return errors.New("PROVIDER_RATE_LIMIT must be positive")
	}
	if c.RateLimitCleanupInterval <= 0 {
		return errors.New("RATE_LIMIT_CLEANUP_INTERVAL must be positive")
	}
	return nil
}
