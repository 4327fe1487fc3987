// Package profile loads and validates the engine's runtime configuration.
package profile

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration needed to start the SLA engine.
type Profile struct {
	Mode    string // "dev", "demo", "prod"
	Version string

	Addr string
	Port int

	// Storage.
	Driver string // "postgres" or "sqlite"
	DSN    string

	// Durable queue (asynq over Redis).
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Chat transport.
	TelegramBotToken   string
	WebhookSecret      string
	WebhookPathPrefix  string
	InstanceURL        string

	// AI classifier.
	AIClassifierEnabled   bool
	AIClassifierProvider  string
	AIClassifierAPIKey    string
	AIClassifierBaseURL   string
	AIClassifierModel     string
	AIClassifierTimeout   time.Duration
	AIConfidenceThreshold float64

	// SLA defaults, overridable per-chat / via GlobalSettings at runtime.
	DefaultSLAThresholdMinutes int
	DefaultMaxEscalations      int
	DefaultEscalationInterval  time.Duration
	DefaultWarningPercent      int
	DefaultTimezone            string

	// Operational.
	DataRetentionDays int
	LogLevel          string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv fills configuration not already set by flags from environment
// variables, matching the SLASENTRY_* prefix used by cmd/slasentry.
func (p *Profile) FromEnv() {
	p.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	if p.Driver == "" {
		p.Driver = getEnvOrDefault("SLASENTRY_DRIVER", "postgres")
	}
	if p.DSN == "" {
		p.DSN = getEnvOrDefault("SLASENTRY_DSN", "")
	}

	p.RedisAddr = getEnvOrDefault("SLASENTRY_REDIS_ADDR", "localhost:6379")
	p.RedisPassword = getEnvOrDefault("SLASENTRY_REDIS_PASSWORD", "")
	p.RedisDB = getEnvOrDefaultInt("SLASENTRY_REDIS_DB", 0)

	p.TelegramBotToken = getEnvOrDefault("SLASENTRY_TELEGRAM_BOT_TOKEN", "")
	p.WebhookSecret = getEnvOrDefault("SLASENTRY_WEBHOOK_SECRET", "")
	p.WebhookPathPrefix = getEnvOrDefault("SLASENTRY_WEBHOOK_PATH_PREFIX", "/webhook")
	if p.InstanceURL == "" {
		p.InstanceURL = getEnvOrDefault("SLASENTRY_INSTANCE_URL", "")
	}

	p.AIClassifierProvider = getEnvOrDefault("SLASENTRY_AI_PROVIDER", "openai")
	p.AIClassifierAPIKey = getEnvOrDefault("SLASENTRY_AI_API_KEY", "")
	p.AIClassifierBaseURL = getEnvOrDefault("SLASENTRY_AI_BASE_URL", "https://api.openai.com/v1")
	p.AIClassifierModel = getEnvOrDefault("SLASENTRY_AI_MODEL", "gpt-4o-mini")
	p.AIClassifierEnabled = p.AIClassifierAPIKey != ""
	p.AIClassifierTimeout = time.Duration(getEnvOrDefaultInt("SLASENTRY_AI_TIMEOUT_SECONDS", 10)) * time.Second
	p.AIConfidenceThreshold = getEnvOrDefaultFloat("SLASENTRY_AI_CONFIDENCE_THRESHOLD", 0.75)

	p.DefaultSLAThresholdMinutes = getEnvOrDefaultInt("SLASENTRY_SLA_THRESHOLD_MINUTES", 60)
	p.DefaultMaxEscalations = getEnvOrDefaultInt("SLASENTRY_SLA_MAX_ESCALATIONS", 3)
	p.DefaultEscalationInterval = time.Duration(getEnvOrDefaultInt("SLASENTRY_SLA_ESCALATION_INTERVAL_MINUTES", 30)) * time.Minute
	p.DefaultWarningPercent = getEnvOrDefaultInt("SLASENTRY_SLA_WARNING_PERCENT", 80)
	p.DefaultTimezone = getEnvOrDefault("SLASENTRY_DEFAULT_TIMEZONE", "Europe/Moscow")

	p.DataRetentionDays = getEnvOrDefaultInt("SLASENTRY_DATA_RETENTION_DAYS", 180)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Validate checks invariants that must hold before the engine starts.
// A missing webhook secret in production is a fatal misconfiguration per
// the transport's authentication contract.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "postgres" && p.Driver != "sqlite" {
		return errors.Errorf("unsupported storage driver %q", p.Driver)
	}
	if p.DSN == "" {
		return errors.New("database DSN is required")
	}

	if p.Mode == "prod" && p.WebhookSecret == "" {
		return errors.New("SLASENTRY_WEBHOOK_SECRET is mandatory in production")
	}
	if p.TelegramBotToken == "" {
		return errors.New("SLASENTRY_TELEGRAM_BOT_TOKEN is required")
	}
	if _, err := time.LoadLocation(p.DefaultTimezone); err != nil {
		return errors.Wrapf(err, "invalid default timezone %q", p.DefaultTimezone)
	}
	if p.DefaultWarningPercent < 0 || p.DefaultWarningPercent > 100 {
		return errors.Errorf("SLASENTRY_SLA_WARNING_PERCENT must be in [0,100], got %d", p.DefaultWarningPercent)
	}

	p.WebhookPathPrefix = "/" + strings.Trim(p.WebhookPathPrefix, "/")
	return nil
}
