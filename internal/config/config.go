package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SlotCacheTTL  time.Duration

	AuthJWTSecret string

	CORSAllowedOrigins []string

	// Default working-hours window used when a provider has no
	// configured availability for a weekday.
	DefaultWorkdayStart string
	DefaultWorkdayEnd   string
	DefaultSlotMinutes  int

	// Per-step timeout for post-booking enrichment calls.
	EnrichmentTimeout time.Duration

	// Meeting-link provider (Zoom-compatible API).
	MeetingProvider     string
	ZoomBaseURL         string
	ZoomAccountID       string
	ZoomClientID        string
	ZoomClientSecret    string
	MeetingTopicPrefix  string
	MeetingLinkDisabled bool

	// Email delivery.
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
	AWSRegion         string
	AWSAccessKeyID    string
	AWSSecretKey      string

	// Calendar sync service.
	CalendarBaseURL  string
	CalendarAPIToken string

	// Mobile/web push gateway.
	PushGatewayURL string
	PushAPIKey     string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SlotCacheTTL:  getEnvAsDuration("SLOT_CACHE_TTL", 5*time.Minute),

		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		DefaultWorkdayStart: getEnv("DEFAULT_WORKDAY_START", "09:00"),
		DefaultWorkdayEnd:   getEnv("DEFAULT_WORKDAY_END", "17:00"),
		DefaultSlotMinutes:  getEnvAsInt("DEFAULT_SLOT_MINUTES", 30),

		EnrichmentTimeout: getEnvAsDuration("ENRICHMENT_TIMEOUT", 10*time.Second),

		MeetingProvider:     strings.ToLower(strings.TrimSpace(getEnv("MEETING_PROVIDER", "zoom"))),
		ZoomBaseURL:         getEnv("ZOOM_BASE_URL", "https://api.zoom.us/v2"),
		ZoomAccountID:       getEnv("ZOOM_ACCOUNT_ID", ""),
		ZoomClientID:        getEnv("ZOOM_CLIENT_ID", ""),
		ZoomClientSecret:    getEnv("ZOOM_CLIENT_SECRET", ""),
		MeetingTopicPrefix:  getEnv("MEETING_TOPIC_PREFIX", "Nutrition Consultation"),
		MeetingLinkDisabled: getEnvAsBool("MEETING_LINK_DISABLED", false),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "NutriPractice"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "NutriPractice"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:    getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),

		CalendarBaseURL:  getEnv("CALENDAR_BASE_URL", ""),
		CalendarAPIToken: getEnv("CALENDAR_API_TOKEN", ""),

		PushGatewayURL: getEnv("PUSH_GATEWAY_URL", ""),
		PushAPIKey:     getEnv("PUSH_API_KEY", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
