package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// PlatformCredentials is one platform's login, always sourced from the
// environment.
type PlatformCredentials struct {
	Username string
	Password string
}

// Config holds all configuration for the application.
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Datastore
	DatabaseURL string

	// Session state files
	SessionDir string

	// AI collaborator
	AnalysisURL     string
	AnalysisAPIKey  string
	AnalysisTimeout time.Duration

	// Scraping
	LegTimeout         time.Duration
	MaxItems           int
	MaxCommentsPerItem int
	FeedACredentials   PlatformCredentials
	FeedBCredentials   PlatformCredentials
	FeedABaseURL       string
	FeedBBaseURL       string
	WebsiteBaseURL     string
	MapsBaseURL        string
	AppStoreBaseURL    string

	// Schedule configuration
	RescrapeSchedule string // "daily" or "weekly"

	// Notification configuration
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SMTPFrom          string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SessionDir:  getEnv("SESSION_DIR", "./sessions"),

		AnalysisURL:     getEnv("ANALYSIS_URL", ""),
		AnalysisAPIKey:  getEnv("ANALYSIS_API_KEY", ""),
		AnalysisTimeout: getDurationEnv("ANALYSIS_TIMEOUT", 2*time.Minute),

		LegTimeout:         getDurationEnv("LEG_TIMEOUT", 10*time.Minute),
		MaxItems:           getIntEnv("MAX_ITEMS", 40),
		MaxCommentsPerItem: getIntEnv("MAX_COMMENTS_PER_ITEM", 20),

		FeedACredentials: PlatformCredentials{
			Username: getEnv("FEED_A_USERNAME", ""),
			Password: getEnv("FEED_A_PASSWORD", ""),
		},
		FeedBCredentials: PlatformCredentials{
			Username: getEnv("FEED_B_USERNAME", ""),
			Password: getEnv("FEED_B_PASSWORD", ""),
		},
		FeedABaseURL:    getEnv("FEED_A_BASE_URL", "https://feeda.example.com"),
		FeedBBaseURL:    getEnv("FEED_B_BASE_URL", "https://feedb.example.com"),
		WebsiteBaseURL:  getEnv("WEBSITE_BASE_URL", "https://reviews.example.com"),
		MapsBaseURL:     getEnv("MAPS_BASE_URL", "https://maps.example.com"),
		AppStoreBaseURL: getEnv("APPSTORE_BASE_URL", "https://apps.example.com"),

		RescrapeSchedule: getEnv("RESCRAPE_SCHEDULE", "weekly"),

		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:          getEnv("SMTP_FROM", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.AnalysisURL == "" {
		return fmt.Errorf("ANALYSIS_URL is required")
	}
	if c.RescrapeSchedule != "daily" && c.RescrapeSchedule != "weekly" {
		return fmt.Errorf("RESCRAPE_SCHEDULE must be 'daily' or 'weekly'")
	}
	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
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

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
