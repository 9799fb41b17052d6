package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv       string
	IsProduction bool
	Port         string
	LogLevel     string

	JWTSecret string
	TokenTTL  time.Duration

	DBDriver    string
	DatabaseURL string
	RedisURL    string

	CORSOrigins []string

	RateLimitWindow   time.Duration
	RateLimitCapacity int

	ProductCacheTTL      time.Duration
	ProductCacheMaxItems int

	WSSendQueue int
}

const devJWTSecret = "dev-only-secret-change-me"

var defaultOrigins = []string{
	"http://localhost:3000", "http://127.0.0.1:3000",
	"http://localhost:5173", "http://127.0.0.1:5173",
	"http://localhost:5174",
}

// loadDotEnv reads .env outside production. A missing file is not an error:
// the process environment is used as is.
func loadDotEnv(appEnv string) {
	if appEnv == "production" {
		return
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] ignoring .env: %v", err)
	}
}

// Load reads the configuration from the environment (and .env outside
// production) and validates it.
func Load() (*Config, error) {
	loadDotEnv(os.Getenv("APP_ENV"))

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "5000"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		JWTSecret:   os.Getenv("JWT_SECRET_KEY"),
		TokenTTL:    time.Duration(atoiOr(os.Getenv("TOKEN_TTL_HOURS"), 24)) * time.Hour,
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DatabaseURL: getEnv("DATABASE_URL", "app.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
		CORSOrigins: splitList(os.Getenv("CORS_ORIGINS"), defaultOrigins),

		RateLimitWindow:   time.Duration(atoiOr(os.Getenv("RATE_LIMIT_WINDOW_SECONDS"), 10)) * time.Second,
		RateLimitCapacity: atoiOr(os.Getenv("RATE_LIMIT_CAPACITY"), 5),

		ProductCacheTTL:      time.Duration(atoiOr(os.Getenv("PRODUCT_CACHE_TTL_SECONDS"), 300)) * time.Second,
		ProductCacheMaxItems: atoiOr(os.Getenv("PRODUCT_CACHE_MAX_ITEMS"), 500),

		WSSendQueue: atoiOr(os.Getenv("WS_SEND_QUEUE"), 64),
	}

	if !slices.Contains([]string{"development", "staging", "production"}, cfg.AppEnv) {
		return nil, fmt.Errorf("APP_ENV must be 'development', 'staging' or 'production', got %q", cfg.AppEnv)
	}
	cfg.IsProduction = cfg.AppEnv == "production"

	if !slices.Contains([]string{"sqlite", "mysql", "postgres"}, cfg.DBDriver) {
		return nil, fmt.Errorf("DB_DRIVER must be sqlite, mysql or postgres, got %q", cfg.DBDriver)
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction {
			return nil, errors.New("JWT_SECRET_KEY must be set in production")
		}
		cfg.JWTSecret = devJWTSecret
	}

	if cfg.RateLimitCapacity <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, errors.New("rate limit window and capacity must be positive")
	}
	if cfg.WSSendQueue <= 0 {
		return nil, errors.New("WS_SEND_QUEUE must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func splitList(s string, def []string) []string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
