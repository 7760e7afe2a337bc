package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"production" validate:"oneof=local development staging production"`

	// Server
	HTTPPort        string        `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// Database
	DatabaseURL    string `envconfig:"DATABASE_URL" validate:"required"`
	DBMaxConns     int32  `envconfig:"DB_MAX_CONNS" default:"25" validate:"gte=1"`
	DBMinConns     int32  `envconfig:"DB_MIN_CONNS" default:"5" validate:"gte=0,ltefield=DBMaxConns"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`

	// Job runner
	WorkerCount     int           `envconfig:"WORKER_COUNT" default:"4" validate:"gte=1,lte=256"`
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"2s" validate:"gt=0"`
	BackoffBase     time.Duration `envconfig:"BACKOFF_BASE" default:"30s" validate:"gt=0"`
	BackoffMax      time.Duration `envconfig:"BACKOFF_MAX" default:"30m" validate:"gtefield=BackoffBase"`
	StaleJobTimeout time.Duration `envconfig:"STALE_JOB_TIMEOUT" default:"10m" validate:"gt=0"`
	ReapInterval    time.Duration `envconfig:"REAP_INTERVAL" default:"1m" validate:"gt=0"`
	// A handler must time out before the reaper treats its claim as abandoned.
	JobTimeout   time.Duration `envconfig:"JOB_TIMEOUT" default:"5m" validate:"gt=0,ltfield=StaleJobTimeout"`
	ListenNotify bool          `envconfig:"LISTEN_NOTIFY" default:"true"`
	InstanceID   string        `envconfig:"INSTANCE_ID"`

	// Escalation
	EscalationSchedule string `envconfig:"ESCALATION_SCHEDULE" default:"@every 15m" validate:"required"`
	PMSchedule         string `envconfig:"PM_SCHEDULE" default:"@hourly"`
	EscalationMaxLevel int    `envconfig:"ESCALATION_MAX_LEVEL" default:"0" validate:"gte=0"`

	// Notifications
	QuietHoursTimezone string        `envconfig:"QUIET_HOURS_TIMEZONE" default:"UTC" validate:"timezone"`
	PushTimeout        time.Duration `envconfig:"PUSH_TIMEOUT" default:"10s"`
	PushTTL            int           `envconfig:"PUSH_TTL" default:"86400"`
	PushFanout         int           `envconfig:"PUSH_FANOUT" default:"8" validate:"gte=1"`
	VAPIDPublicKey     string        `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey    string        `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDSubject       string        `envconfig:"VAPID_SUBJECT" default:"mailto:ops@example.com"`

	// Email / SMS
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`
	EmailFrom string `envconfig:"EMAIL_FROM"`
	SMSEnable bool   `envconfig:"SMS_ENABLED" default:"false"`

	// Rate limiting: maximum sends per second per channel
	PushRateLimit  int `envconfig:"PUSH_RATE_LIMIT" default:"100" validate:"gte=1"`
	EmailRateLimit int `envconfig:"EMAIL_RATE_LIMIT" default:"14" validate:"gte=1"`
	SMSRateLimit   int `envconfig:"SMS_RATE_LIMIT" default:"20" validate:"gte=1"`

	// Redis (scheduler tick lock); empty disables the lock
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Load reads an optional .env file, then the environment, then validates.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// PushEnabled reports whether VAPID credentials are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// EmailEnabled reports whether a sender address is configured.
func (c *Config) EmailEnabled() bool {
	return c.EmailFrom != ""
}

// Location returns the timezone quiet hours are evaluated in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.QuietHoursTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
