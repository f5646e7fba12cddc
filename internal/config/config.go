package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the booking BFF configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// FlowKey REST API (system of record for bookings)
	FlowKeyAPIBaseURL string
	FlowKeyAPITimeout time.Duration

	// Public booking flow drafts
	FlowStore               string // "memory" or "redis"
	FlowTTL                 time.Duration
	AvailabilityMaxRangeDay int

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	CORSAllowedOrigins   []string
	PublicRateLimitRPS   float64
	PublicRateLimitBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		FlowKeyAPIBaseURL: strings.TrimRight(getEnv("FLOWKEY_API_BASE_URL", "http://localhost:8000"), "/"),
		FlowKeyAPITimeout: getEnvAsDuration("FLOWKEY_API_TIMEOUT", 15*time.Second),

		FlowStore:               strings.ToLower(strings.TrimSpace(getEnv("FLOW_STORE", "memory"))),
		FlowTTL:                 getEnvAsDuration("FLOW_TTL", 2*time.Hour),
		AvailabilityMaxRangeDay: getEnvAsInt("AVAILABILITY_MAX_RANGE_DAYS", 62),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CORSAllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS"),
		PublicRateLimitRPS:   getEnvAsFloat("PUBLIC_RATE_LIMIT_RPS", 5),
		PublicRateLimitBurst: getEnvAsInt("PUBLIC_RATE_LIMIT_BURST", 20),
	}
}

// UsesRedisFlowStore reports whether flow drafts should be kept in redis.
func (c *Config) UsesRedisFlowStore() bool {
	return c.FlowStore == "redis"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

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

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
