package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/schoolgate/pkg/httpx"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	// Issuer is the iss and aud claim of session tokens.
	Issuer string `validate:"required"`

	LockoutThreshold     int           `validate:"min=1"`
	LockoutWindow        time.Duration `validate:"min=1s"`
	ApprovalResetTTL     time.Duration `validate:"gt=0"`
	SelfServiceResetTTL  time.Duration `validate:"gt=0"`
	SessionMaxAge        time.Duration `validate:"gt=0"`
	ClearAdminMustChange bool
	ResetBaseURL         string `validate:"required,url"` // prefix of emailed reset links
	AdminToken           string // Optional: bearer token for /v1/internal routes

	KeyStorageMode string        `validate:"oneof=ephemeral persistent"`
	NumKeys        int           `validate:"min=1,max=10"`
	KeyGracePeriod time.Duration `validate:"gtefield=SessionMaxAge"`
	MasterKeyPath  string        // Optional: master key file sealing persisted private keys
	PepperFile     string        `validate:"required"`

	DBDriver    string `validate:"oneof=sqlite postgres"`
	DatabaseDSN string `validate:"required"`

	RedisAddr          string // Optional: enables the distributed reset throttle
	RedisPassword      string
	ResetRequestLimit  int           `validate:"min=1"`
	ResetRequestWindow time.Duration `validate:"gt=0"`

	// HousekeepingSchedule is a cron spec or a descriptor such as "@every 1h".
	HousekeepingSchedule string `validate:"required"`

	Env                 string `validate:"oneof=dev staging prod test"`
	LogLevel            string
	LogFormat           string        `validate:"oneof=json text"`
	Port                int           `validate:"min=1,max=65535"`
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout

	// TrustedProxies may report the client address in forwarding headers.
	TrustedProxies []string `validate:"dive,cidr|ip"`
}

func LoadConfig() Config {
	return Config{
		Issuer: getEnvOrDefault("AUTH_ISSUER", "schoolgate-auth"),

		LockoutThreshold:     getEnvIntOrDefault("AUTH_LOCKOUT_THRESHOLD", 5),
		LockoutWindow:        getEnvDurationOrDefault("AUTH_LOCKOUT_WINDOW", 15*time.Minute),
		ApprovalResetTTL:     getEnvDurationOrDefault("AUTH_APPROVAL_RESET_TTL", 24*time.Hour),
		SelfServiceResetTTL:  getEnvDurationOrDefault("AUTH_SELF_SERVICE_RESET_TTL", time.Hour),
		SessionMaxAge:        getEnvDurationOrDefault("AUTH_SESSION_MAX_AGE", 30*24*time.Hour),
		ClearAdminMustChange: getEnvBoolOrDefault("AUTH_CLEAR_ADMIN_MUST_CHANGE", true),
		ResetBaseURL:         getEnvOrDefault("AUTH_RESET_BASE_URL", "http://localhost:8080"),
		AdminToken:           os.Getenv("AUTH_ADMIN_TOKEN"),

		KeyStorageMode: getEnvOrDefault("AUTH_KEY_STORAGE_MODE", "persistent"),
		NumKeys:        getEnvIntOrDefault("AUTH_NUM_KEYS", 2),
		KeyGracePeriod: getEnvDurationOrDefault("AUTH_KEY_GRACE_PERIOD", 30*24*time.Hour),
		MasterKeyPath:  os.Getenv("AUTH_MASTER_KEY_PATH"),
		PepperFile:     getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		DBDriver:    getEnvOrDefault("AUTH_DB_DRIVER", "sqlite"),
		DatabaseDSN: getEnvOrDefault("AUTH_DATABASE_DSN", "file:auth.db"),

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		ResetRequestLimit:  getEnvIntOrDefault("AUTH_RESET_REQUEST_LIMIT", 5),
		ResetRequestWindow: getEnvDurationOrDefault("AUTH_RESET_REQUEST_WINDOW", time.Hour),

		HousekeepingSchedule: getEnvOrDefault("HOUSEKEEPING_SCHEDULE", "@every 1h"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		TrustedProxies: getEnvListOrDefault("AUTH_TRUSTED_PROXIES", httpx.DefaultTrustedProxies),
	}
}

// Validate checks the struct tags above. A retired signing key must keep
// verifying for at least a session lifetime.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma-separated value. Set the variable to
// "none" for an empty list.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "none" {
		return []string{}
	}

	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
