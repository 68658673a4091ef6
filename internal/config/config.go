package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the reminder service reads at startup.
type Config struct {
	GinMode  string
	HTTPAddr string

	DatabaseURL string
	DBHost      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPort      string
	DBSSLMode   string

	// DisplayTimezone is the IANA zone occurrence times are stored in.
	DisplayTimezone string
	ReminderLead    time.Duration
	// ReminderSchedule is a five-field cron expression for the dispatcher tick.
	ReminderSchedule    string
	ReminderConcurrency int
	ReminderRetention   time.Duration
	PurgeSchedule       string

	RunLogPath     string
	RunHistorySize int

	SendGridAPIKey string
	FromEmail      string
	FromName       string
	MailChannel    string

	RelayPollInterval time.Duration
	RelayBatchSize    int
	RelayMaxAttempts  int

	ZoomAccountID    string
	ZoomClientID     string
	ZoomClientSecret string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SendGridAPIKey == "" && cfg.MailChannel == "email" {
		log.Println("SENDGRID_API_KEY is not set, falling back to the log mail channel")
		cfg.MailChannel = "log"
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DISPLAY_TIMEZONE", "UTC")
	v.SetDefault("REMINDER_LEAD", 30*time.Minute)
	v.SetDefault("REMINDER_SCHEDULE", "* * * * *")
	v.SetDefault("REMINDER_CONCURRENCY", 4)
	v.SetDefault("REMINDER_RETENTION", 48*time.Hour)
	v.SetDefault("PURGE_SCHEDULE", "15 3 * * *")
	v.SetDefault("RUN_LOG_PATH", "reminder-runs.log")
	v.SetDefault("RUN_HISTORY_SIZE", 100)
	v.SetDefault("SENDGRID_FROM_NAME", "Class Reminders")
	v.SetDefault("MAIL_CHANNEL", "email")
	v.SetDefault("RELAY_POLL_INTERVAL", 5*time.Second)
	v.SetDefault("RELAY_BATCH_SIZE", 50)
	v.SetDefault("RELAY_MAX_ATTEMPTS", 5)
}

// FromViper builds a Config from an already-populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		GinMode:             v.GetString("GIN_MODE"),
		HTTPAddr:            v.GetString("HTTP_ADDR"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		DBHost:              v.GetString("DB_HOST"),
		DBUser:              v.GetString("DB_USER"),
		DBPassword:          v.GetString("DB_PASSWORD"),
		DBName:              v.GetString("DB_NAME"),
		DBPort:              v.GetString("DB_PORT"),
		DBSSLMode:           v.GetString("DB_SSL_MODE"),
		DisplayTimezone:     v.GetString("DISPLAY_TIMEZONE"),
		ReminderLead:        v.GetDuration("REMINDER_LEAD"),
		ReminderSchedule:    v.GetString("REMINDER_SCHEDULE"),
		ReminderConcurrency: v.GetInt("REMINDER_CONCURRENCY"),
		ReminderRetention:   v.GetDuration("REMINDER_RETENTION"),
		PurgeSchedule:       v.GetString("PURGE_SCHEDULE"),
		RunLogPath:          v.GetString("RUN_LOG_PATH"),
		RunHistorySize:      v.GetInt("RUN_HISTORY_SIZE"),
		SendGridAPIKey:      v.GetString("SENDGRID_API_KEY"),
		FromEmail:           v.GetString("SENDGRID_NOTIFICATIONS_FROM_EMAIL"),
		FromName:            v.GetString("SENDGRID_FROM_NAME"),
		MailChannel:         strings.ToLower(v.GetString("MAIL_CHANNEL")),
		RelayPollInterval:   v.GetDuration("RELAY_POLL_INTERVAL"),
		RelayBatchSize:      v.GetInt("RELAY_BATCH_SIZE"),
		RelayMaxAttempts:    v.GetInt("RELAY_MAX_ATTEMPTS"),
		ZoomAccountID:       v.GetString("ZOOM_ACCOUNT_ID"),
		ZoomClientID:        v.GetString("ZOOM_CLIENT_ID"),
		ZoomClientSecret:    v.GetString("ZOOM_CLIENT_SECRET"),
	}
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.DisplayTimezone); err != nil {
		return fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", c.DisplayTimezone, err)
	}
	if c.ReminderLead <= 0 {
		return fmt.Errorf("REMINDER_LEAD must be positive, got %s", c.ReminderLead)
	}
	if c.ReminderConcurrency <= 0 {
		return fmt.Errorf("REMINDER_CONCURRENCY must be positive, got %d", c.ReminderConcurrency)
	}
	if c.RelayMaxAttempts <= 0 {
		return fmt.Errorf("RELAY_MAX_ATTEMPTS must be positive, got %d", c.RelayMaxAttempts)
	}
	switch c.MailChannel {
	case "email", "log":
	default:
		return fmt.Errorf("unsupported MAIL_CHANNEL %q", c.MailChannel)
	}
	if c.DatabaseURL == "" && (c.DBHost == "" || c.DBUser == "" || c.DBName == "" || c.DBPort == "") {
		return errors.New("DATABASE_URL or DB_HOST, DB_USER, DB_NAME and DB_PORT must be set")
	}
	return nil
}

// Location returns the display timezone. Validate must have succeeded first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN returns the Postgres connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC connect_timeout=10",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// ZoomEnabled reports whether Zoom credentials were provided.
func (c *Config) ZoomEnabled() bool {
	return c.ZoomAccountID != "" && c.ZoomClientID != "" && c.ZoomClientSecret != ""
}
