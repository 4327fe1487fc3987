package profile

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearSLAEnvVars() {
	vars := []string{
		"SLASENTRY_DRIVER", "SLASENTRY_DSN", "SLASENTRY_REDIS_ADDR",
		"SLASENTRY_TELEGRAM_BOT_TOKEN", "SLASENTRY_WEBHOOK_SECRET",
		"SLASENTRY_AI_API_KEY", "SLASENTRY_SLA_WARNING_PERCENT",
		"SLASENTRY_DEFAULT_TIMEZONE",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}

func TestProfileFromEnvDefaults(t *testing.T) {
	clearSLAEnvVars()

	p := &Profile{}
	p.FromEnv()

	require.Equal(t, "postgres", p.Driver)
	require.Equal(t, 60, p.DefaultSLAThresholdMinutes)
	require.Equal(t, 3, p.DefaultMaxEscalations)
	require.Equal(t, 80, p.DefaultWarningPercent)
	require.Equal(t, "Europe/Moscow", p.DefaultTimezone)
	require.False(t, p.AIClassifierEnabled)
}

func TestProfileFromEnvOverrides(t *testing.T) {
	clearSLAEnvVars()
	os.Setenv("SLASENTRY_AI_API_KEY", "sk-test")
	defer clearSLAEnvVars()

	p := &Profile{}
	p.FromEnv()

	require.True(t, p.AIClassifierEnabled)
}

func TestProfileValidateRequiresWebhookSecretInProd(t *testing.T) {
	p := &Profile{
		Mode:               "prod",
		Driver:             "postgres",
		DSN:                "postgres://localhost/sla",
		TelegramBotToken:   "123:abc",
		DefaultTimezone:    "Europe/Moscow",
		DefaultWarningPercent: 80,
	}

	err := p.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "WEBHOOK_SECRET")
}

func TestProfileValidateAcceptsDevWithoutSecret(t *testing.T) {
	p := &Profile{
		Mode:               "dev",
		Driver:             "sqlite",
		DSN:                "file::memory:",
		TelegramBotToken:   "123:abc",
		DefaultTimezone:    "Europe/Moscow",
		DefaultWarningPercent: 80,
		WebhookPathPrefix:  "webhook",
	}

	require.NoError(t, p.Validate())
	require.Equal(t, "/webhook", p.WebhookPathPrefix)
}

func TestProfileValidateRejectsBadTimezone(t *testing.T) {
	p := &Profile{
		Mode:               "dev",
		Driver:             "sqlite",
		DSN:                "file::memory:",
		TelegramBotToken:   "123:abc",
		DefaultTimezone:    "Not/AZone",
		DefaultWarningPercent: 80,
	}

	require.Error(t, p.Validate())
}

func TestProfileIsDev(t *testing.T) {
	require.True(t, (&Profile{Mode: "dev"}).IsDev())
	require.True(t, (&Profile{Mode: "demo"}).IsDev())
	require.False(t, (&Profile{Mode: "prod"}).IsDev())
}
