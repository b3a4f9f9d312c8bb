package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Webhook verification secrets (LinkedIn has no GET handshake)
	InstagramVerifyToken string
	FacebookVerifyToken  string

	// Origins allowed to use the HTTP API and the websocket channel
	AllowedOrigins []string

	// Content-source credentials for polling snapshot fetches
	InstagramAccessToken string
	InstagramUserID      string
	FacebookPageID       string
	FacebookPageToken    string

	// Polling fallback tuning
	PollIntervalSeconds int
	PollMaxFailures     int

	// Digest configuration
	DigestSchedule    string // "daily", "weekly" or "" (disabled)
	TimeZone          string
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// Azure Storage configuration (digest archive)
	StorageAccount   string
	StorageContainer string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "5000"),
		Debug: getBoolEnv("DEBUG", false),

		InstagramVerifyToken: getEnv("INSTAGRAM_WEBHOOK_TOKEN", ""),
		FacebookVerifyToken:  getEnv("FACEBOOK_WEBHOOK_TOKEN", ""),

		AllowedOrigins: getSliceEnv("ALLOWED_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}),

		InstagramAccessToken: getEnv("INSTAGRAM_ACCESS_TOKEN", ""),
		InstagramUserID:      getEnv("INSTAGRAM_USER_ID", ""),
		FacebookPageID:       getEnv("FACEBOOK_PAGE_ID", ""),
		FacebookPageToken:    getEnv("FACEBOOK_PAGE_TOKEN", ""),

		PollIntervalSeconds: getIntEnv("POLL_INTERVAL_SECONDS", 30),
		PollMaxFailures:     getIntEnv("POLL_MAX_FAILURES", 5),

		DigestSchedule:    getEnv("DIGEST_SCHEDULE", ""),
		TimeZone:          getEnv("TIMEZONE", "UTC"),
		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "digests"),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DigestSchedule != "" && c.DigestSchedule != "daily" && c.DigestSchedule != "weekly" {
		return fmt.Errorf("DIGEST_SCHEDULE must be 'daily', 'weekly' or unset")
	}

	if c.DigestSchedule != "" && c.TeamsWebhookURL == "" && c.NotificationEmail == "" {
		return fmt.Errorf("at least one notification method must be configured when DIGEST_SCHEDULE is set (TEAMS_WEBHOOK_URL or NOTIFICATION_EMAIL)")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}

	if c.PollMaxFailures <= 0 {
		return fmt.Errorf("POLL_MAX_FAILURES must be positive")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
