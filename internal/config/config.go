package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Classifier modes.
const (
	ClassifierKeyword = "keyword"
	ClassifierAI      = "ai"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port           string
	Debug          bool
	AllowedOrigins []string

	// Boundary auth
	WebhookToken   string
	ReviewerTokens map[string]string // bearer token -> reviewer name
	DemoLimit      int

	// Classifier configuration
	ClassifierMode    string // "keyword" or "ai"
	AnthropicAPIKey   string
	ClassifierModel   string
	ClassifierTimeout time.Duration

	// Relay configuration
	TelegramBotToken    string
	TelegramPolling     bool
	TwitterBearerToken  string
	TwitterKeywords     []string
	TwitterPollInterval time.Duration

	// Digest configuration
	DigestSchedule    string // "daily", "weekly", or "off"
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	CriticalThreshold int

	// Digest archive (Azure Blob), disabled when the account is empty
	StorageAccount   string
	StorageContainer string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "3001"),
		Debug: getBoolEnv("DEBUG", false),
		AllowedOrigins: getSliceEnv("ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"https://grumpy-generator.github.io",
		}),

		WebhookToken:   getEnv("WEBHOOK_TOKEN", ""),
		ReviewerTokens: getTokenMapEnv("REVIEWER_TOKENS"),
		DemoLimit:      getIntEnv("DEMO_LIMIT", 20),

		ClassifierMode:    getEnv("CLASSIFIER_MODE", ClassifierKeyword),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		ClassifierModel:   getEnv("CLASSIFIER_MODEL", "claude-3-haiku-20240307"),
		ClassifierTimeout: time.Duration(getIntEnv("CLASSIFIER_TIMEOUT_SECONDS", 10)) * time.Second,

		TelegramBotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramPolling:     getBoolEnv("TELEGRAM_POLLING", true),
		TwitterBearerToken:  getEnv("TWITTER_BEARER_TOKEN", ""),
		TwitterKeywords:     getSliceEnv("TWITTER_KEYWORDS", nil),
		TwitterPollInterval: time.Duration(getIntEnv("TWITTER_POLL_MINUTES", 5)) * time.Minute,

		DigestSchedule:    getEnv("DIGEST_SCHEDULE", "off"),
		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		CriticalThreshold: getIntEnv("CRITICAL_ALERT_THRESHOLD", 1),

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
	if c.WebhookToken == "" {
		return fmt.Errorf("WEBHOOK_TOKEN is required")
	}

	if c.ClassifierMode != ClassifierKeyword && c.ClassifierMode != ClassifierAI {
		return fmt.Errorf("CLASSIFIER_MODE must be 'keyword' or 'ai'")
	}

	if c.ClassifierMode == ClassifierAI && c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when CLASSIFIER_MODE is 'ai'")
	}

	switch c.DigestSchedule {
	case "daily", "weekly", "off":
	default:
		return fmt.Errorf("DIGEST_SCHEDULE must be 'daily', 'weekly', or 'off'")
	}

	if c.DigestSchedule != "off" && c.TeamsWebhookURL == "" && c.NotificationEmail == "" {
		return fmt.Errorf("at least one notification method must be configured (TEAMS_WEBHOOK_URL or NOTIFICATION_EMAIL) when digests are enabled")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// ReviewerForToken resolves a bearer token to a reviewer name.
func (c *Config) ReviewerForToken(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	name, ok := c.ReviewerTokens[token]
	return name, ok
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
		return strings.Split(value, ",")
	}
	return defaultValue
}

// getTokenMapEnv parses "name:token,name:token" pairs into token -> name.
func getTokenMapEnv(key string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(os.Getenv(key), ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		result[parts[1]] = parts[0]
	}
	return result
}
