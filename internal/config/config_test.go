package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestFromViperDefaults(t *testing.T) {
	cfg := FromViper(newViper(map[string]any{"DATABASE_URL": "postgres://localhost/app"}))

	assert.Equal(t, 30*time.Minute, cfg.ReminderLead)
	assert.Equal(t, "* * * * *", cfg.ReminderSchedule)
	assert.Equal(t, 4, cfg.ReminderConcurrency)
	assert.Equal(t, "email", cfg.MailChannel)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "postgres://localhost/app", cfg.DSN())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
	}{
		{"timezone", map[string]any{"DISPLAY_TIMEZONE": "Mars/Olympus"}},
		{"lead", map[string]any{"REMINDER_LEAD": "0s"}},
		{"concurrency", map[string]any{"REMINDER_CONCURRENCY": 0}},
		{"channel", map[string]any{"MAIL_CHANNEL": "pigeon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.values["DATABASE_URL"] = "postgres://localhost/app"
			cfg := FromViper(newViper(tt.values))
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateRequiresDatabase(t *testing.T) {
	cfg := FromViper(newViper(nil))
	assert.Error(t, cfg.Validate())

	cfg = FromViper(newViper(map[string]any{
		"DB_HOST": "localhost", "DB_USER": "app", "DB_NAME": "app", "DB_PORT": "5432",
	}))
	require.NoError(t, cfg.Validate())
	assert.Contains(t, cfg.DSN(), "host=localhost")
	assert.Contains(t, cfg.DSN(), "sslmode=disable")
}

func TestLocation(t *testing.T) {
	cfg := FromViper(newViper(map[string]any{"DISPLAY_TIMEZONE": "Asia/Kolkata"}))
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
}
