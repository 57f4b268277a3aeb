package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ResolutionErrorPolicy controls what the quota resolver does when an
// upstream read (profile, override, usage count) fails.
type ResolutionErrorPolicy string

const (
	ResolutionErrorAllow ResolutionErrorPolicy = "allow"
	ResolutionErrorDeny  ResolutionErrorPolicy = "deny"
)

// QuotaConfig holds the call-limit thresholds, the tier mapping product ids
// and the enforcement policy knobs.
type QuotaConfig struct {
	FreeLimit       int64
	BasicLimit      int64
	EnterpriseLimit int64

	BasicProductID      string
	EnterpriseProductID string

	// OnResolutionError unifies the fail-open/fail-closed behavior across
	// the HTTP middleware and the dashboard call site.
	OnResolutionError ResolutionErrorPolicy

	// OverrideBypassesLimit makes an override waive blocking entirely, even
	// when usage already exceeds the override value.
	OverrideBypassesLimit bool

	// StoreTimeout bounds every external fetch; a timeout counts as a
	// failed fetch.
	StoreTimeout time.Duration
}

type CacheConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	DefaultTTL    time.Duration
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Config is the full application configuration, loaded from the environment.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	CORSOrigins []string

	PostHogAPIKey string
	PostHogHost   string

	Quota QuotaConfig
	Cache CacheConfig
	LLM   LLMConfig
}

// Load populates a Config from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		PostHogAPIKey: getEnv("POSTHOG_API_KEY", ""),
		PostHogHost:   getEnv("POSTHOG_HOST", "https://app.posthog.com"),

		Quota: QuotaConfig{
			FreeLimit:             getEnvInt64("API_CALL_LIMIT_FREE", 50),
			BasicLimit:            getEnvInt64("API_CALL_LIMIT_BASIC", 4750),
			EnterpriseLimit:       getEnvInt64("API_CALL_LIMIT_ENTERPRISE", 25000),
			BasicProductID:        getEnv("STRIPE_PRODUCT_ID_BASIC", ""),
			EnterpriseProductID:   getEnv("STRIPE_PRODUCT_ID_ENTERPRISE", ""),
			OnResolutionError:     resolutionPolicy(getEnv("QUOTA_ON_RESOLUTION_ERROR", "allow")),
			OverrideBypassesLimit: getEnvBool("QUOTA_OVERRIDE_BYPASSES_LIMIT", true),
			StoreTimeout:          getEnvDuration("QUOTA_STORE_TIMEOUT", 3*time.Second),
		},

		Cache: CacheConfig{
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       int(getEnvInt64("REDIS_DB", 0)),
			DefaultTTL:    getEnvDuration("CACHE_TTL", 30*time.Second),
		},

		LLM: LLMConfig{
			APIKey:  getEnv("LLM_API_KEY", ""),
			BaseURL: getEnv("LLM_API_URL", "https://api.openai.com/v1/chat/completions"),
			Model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
	}
}

func resolutionPolicy(value string) ResolutionErrorPolicy {
	if strings.EqualFold(value, string(ResolutionErrorDeny)) {
		return ResolutionErrorDeny
	}
	return ResolutionErrorAllow
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
