package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Payment gateway configuration
	GatewayProvider string
	GatewayBaseURL  string
	GatewayAPIKey   string
	GatewayTimeout  time.Duration

	// Marketplace configuration
	DefaultFeePercent decimal.Decimal
	EscrowGrace       time.Duration
	MarketStatsTTL    time.Duration

	// Sweep schedules (cron expressions)
	ExpirationSchedule    string
	GoLiveSchedule        string
	AutoSellSchedule      string
	EscrowTimeoutSchedule string

	// Monitoring
	EnableMetrics bool
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Payment gateway
		GatewayProvider: getEnv("GATEWAY_PROVIDER", "sandbox"),
		GatewayBaseURL:  getEnv("GATEWAY_BASE_URL", ""),
		GatewayAPIKey:   getEnv("GATEWAY_API_KEY", ""),
		GatewayTimeout:  getEnvAsDuration("GATEWAY_TIMEOUT", "10s"),

		// Marketplace
		DefaultFeePercent: getEnvAsDecimal("DEFAULT_FEE_PERCENT", "10"),
		EscrowGrace:       getEnvAsDuration("ESCROW_GRACE", "72h"),
		MarketStatsTTL:    getEnvAsDuration("MARKET_STATS_TTL", "1m"),

		// Sweeps
		ExpirationSchedule:    getEnv("EXPIRATION_SCHEDULE", "@every 1m"),
		GoLiveSchedule:        getEnv("GO_LIVE_SCHEDULE", "@every 1m"),
		AutoSellSchedule:      getEnv("AUTO_SELL_SCHEDULE", "@every 2m"),
		EscrowTimeoutSchedule: getEnv("ESCROW_TIMEOUT_SCHEDULE", "@every 15m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsDecimal(key string, defaultValue string) decimal.Decimal {
	valueStr := getEnv(key, defaultValue)
	if value, err := decimal.NewFromString(valueStr); err == nil {
		return value
	}
	value, _ := decimal.NewFromString(defaultValue)
	return value
}
