package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Issuer string // Issuer claim for ID tokens

	Algorithm  string // ID-token signing algorithm (EdDSA, ES256) (default: EdDSA)
	SigningKey string // Optional: path to a PKCS#8 PEM signing key; ephemeral when unset

	DatabaseFile string // Path to the SQLite database file (default: ./idp.db)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired-session sweep interval (default: 1h)

	SessionTTL        time.Duration // Session lifetime (default: 30 days)
	ChallengeTTL      time.Duration // Challenge validity window (default: 300s)
	ChallengeCooldown time.Duration // Minimum gap between challenge issues (default: 1m)

	AuthorizationCodeTTL time.Duration // default: 5m
	AccessTokenTTL       time.Duration // default: 1h
	RefreshTokenTTL      time.Duration // default: 30 days
	IDTokenTTL           time.Duration // default: 1h
	DeviceCodeTTL        time.Duration // default: 10m

	// SkipConsentClients bypass the consent prompt. Comma-separated ids.
	SkipConsentClients []string

	NotifyHost string // Notification API host; slog fallback when unset
	NotifyKey  string // Notification API key

	AuditBufferSize int // Audit dispatcher buffer (default: 256)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:     getEnvOrDefault("AUTH_ISSUER", "polaris-idp"),
		Algorithm:  getEnvOrDefault("AUTH_ALGORITHM", "EdDSA"),
		SigningKey: os.Getenv("AUTH_SIGNING_KEY_PATH"),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "idp.db"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		SessionTTL:        getEnvDurationOrDefault("AUTH_SESSION_TTL", 30*24*time.Hour),
		ChallengeTTL:      getEnvDurationOrDefault("AUTH_CHALLENGE_TTL", 300*time.Second),
		ChallengeCooldown: getEnvDurationOrDefault("AUTH_CHALLENGE_COOLDOWN", time.Minute),

		AuthorizationCodeTTL: getEnvDurationOrDefault("AUTH_CODE_TTL", 5*time.Minute),
		AccessTokenTTL:       getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:      getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		IDTokenTTL:           getEnvDurationOrDefault("AUTH_ID_TOKEN_TTL", time.Hour),
		DeviceCodeTTL:        getEnvDurationOrDefault("AUTH_DEVICE_CODE_TTL", 10*time.Minute),

		NotifyHost: os.Getenv("NOTIFY_API_HOST"),
		NotifyKey:  os.Getenv("NOTIFY_API_KEY"),

		AuditBufferSize: getEnvIntOrDefault("AUDIT_BUFFER_SIZE", 256),
	}

	if raw := os.Getenv("AUTH_SKIP_CONSENT_CLIENTS"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.SkipConsentClients = append(cfg.SkipConsentClients, id)
			}
		}
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	// Bare integers are read as seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
