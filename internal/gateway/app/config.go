package app

import (
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/promogate/pkg/httpx"
)

// Store drivers selectable with GATEWAY_STORE.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	APIBaseURL      string        // Resource API base URL (default: /api on localhost)
	RequestTimeout  time.Duration // Per API call, replay included (default: 30s)
	RefreshTimeout  time.Duration // Shared refresh flight (default: 10s)
	LoginBufferPath string        // Where an ended session sends the user (default: /login-buffer)
	Locale          string        // Message table: en, zh (default: en)

	Store         string // Credential store driver: sqlite, memory, redis (default: sqlite)
	DatabaseFile  string // SQLite file (default: ./promogate.db)
	RedisAddr     string // Redis address (default: localhost:6379)
	RedisPrefix   string // Redis key prefix (default: promogate)
	MasterKeyPath string // Optional: key file for sealing stored credentials
	CodeCapacity  int    // Processed authorization codes remembered (default: 256)

	AppID             string // Identity provider application id
	AppSecret         string // Identity provider application secret
	AppHost           string // Identity provider host, e.g. https://example.authing.cn
	RedirectURI       string // Login callback URI
	LogoutRedirectURI string // Where the provider sends the user after logout
	Scope             string // Requested scopes (default: authsdk.DefaultScope)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)

	APILimit httpx.RateLimitConfig
}

func LoadConfig() Config {
	return Config{
		APIBaseURL:      getEnvOrDefault("GATEWAY_API_BASE_URL", "http://localhost:8080/api"),
		RequestTimeout:  getEnvDurationOrDefault("GATEWAY_REQUEST_TIMEOUT", 30*time.Second),
		RefreshTimeout:  getEnvDurationOrDefault("GATEWAY_REFRESH_TIMEOUT", 10*time.Second),
		LoginBufferPath: getEnvOrDefault("GATEWAY_LOGIN_BUFFER_PATH", "/login-buffer"),
		Locale:          getEnvOrDefault("GATEWAY_LOCALE", "en"),

		Store:         getEnvOrDefault("GATEWAY_STORE", StoreSQLite),
		DatabaseFile:  getEnvOrDefault("GATEWAY_DATABASE_FILE", "promogate.db"),
		RedisAddr:     getEnvOrDefault("GATEWAY_REDIS_ADDR", "localhost:6379"),
		RedisPrefix:   getEnvOrDefault("GATEWAY_REDIS_PREFIX", "promogate"),
		MasterKeyPath: os.Getenv("GATEWAY_MASTER_KEY_PATH"),
		CodeCapacity:  getEnvIntOrDefault("GATEWAY_CODE_CAPACITY", 256),

		AppID:             os.Getenv("AUTHING_APP_ID"),
		AppSecret:         os.Getenv("AUTHING_APP_SECRET"),
		AppHost:           os.Getenv("AUTHING_APP_HOST"),
		RedirectURI:       os.Getenv("AUTHING_REDIRECT_URI"),
		LogoutRedirectURI: os.Getenv("AUTHING_LOGOUT_REDIRECT_URI"),
		Scope:             os.Getenv("AUTHING_SCOPE"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		APILimit: httpx.ParseRateLimitFromEnv("API", httpx.APILimit),
	}
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

	// Bare integers are seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
