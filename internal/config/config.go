package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Database drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Ledger backends. LedgerSQL keeps refresh tokens in the main database.
const (
	LedgerRedis = "redis"
	LedgerSQL   = "sql"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	DBDriver    string
	MySQLDSN    string
	SQLitePath  string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	SwaggerHost string
	ResetDB     bool
	LogMode     string

	// TokenSecret signs access tokens, RefreshTokenSecret signs refresh tokens.
	TokenSecret        string
	RefreshTokenSecret string
	// RefreshTokenTTL of zero issues refresh tokens without an expiry claim.
	RefreshTokenTTL time.Duration
	LedgerBackend   string // redis or sql

	StorageTimeout time.Duration
	DayLocation    *time.Location

	RateLimit RateLimitConfig
}

// RateLimitConfig configures the Redis token bucket in front of login.
type RateLimitConfig struct {
	Enabled        bool
	Prefix         string
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", DriverMySQL)),
		MySQLDSN:    getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/nutritrack?charset=utf8mb4&parseTime=True&loc=UTC"),
		SQLitePath:  getEnv("SQLITE_PATH", "nutritrack.db"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		SwaggerHost: os.Getenv("SWAGGER_HOST"),
		ResetDB:     getEnvBool("RESET_DB", false),
		LogMode:     getEnv("LOG_MODE", "development"),

		TokenSecret:        getEnv("TOKEN_SECRET", "change-me"),
		RefreshTokenSecret: getEnv("REFRESH_TOKEN_SECRET", "change-me-too"),
		RefreshTokenTTL:    getEnvDuration("REFRESH_TOKEN_TTL", 0),
		LedgerBackend:      strings.ToLower(getEnv("LEDGER_BACKEND", LedgerRedis)),

		StorageTimeout: getEnvDuration("STORAGE_TIMEOUT", 5*time.Second),
		DayLocation:    getEnvLocation("DAY_LOCATION", time.UTC),

		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", false),
			Prefix:         getEnv("RATE_LIMIT_PREFIX", "rl:login"),
			Capacity:       getEnvInt("RATE_LIMIT_CAPACITY", 10),
			RefillTokens:   getEnvInt("RATE_LIMIT_REFILL_TOKENS", 1),
			RefillInterval: getEnvDuration("RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
			TTL:            getEnvDuration("RATE_LIMIT_TTL", 10*time.Minute),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvLocation(key string, def *time.Location) *time.Location {
	if v := os.Getenv(key); v != "" {
		if loc, err := time.LoadLocation(v); err == nil {
			return loc
		}
	}
	return def
}
