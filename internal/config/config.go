package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Activity tracking
	StoreBackend       string // "postgres" or "redis"
	CheckpointInterval time.Duration
	MinSessionSeconds  int
	RetryEnabled       bool
	RetryWorkers       int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		Env:                getEnvOrDefault("ENV", "development"),
		DatabaseURL:        mustGetEnv("DATABASE_URL"),
		RedisURL:           mustGetEnv("REDIS_URL"),
		JWTSecret:          mustGetEnv("JWT_SECRET"),
		StoreBackend:       getEnvOrDefault("ACTIVITY_STORE", "postgres"),
		CheckpointInterval: time.Duration(getEnvAsIntOrDefault("ACTIVITY_CHECKPOINT_SECONDS", 60)) * time.Second,
		MinSessionSeconds:  getEnvAsIntOrDefault("ACTIVITY_MIN_SESSION_SECONDS", 5),
		RetryEnabled:       getEnvAsBoolOrDefault("ACTIVITY_RETRY_ENABLED", false),
		RetryWorkers:       getEnvAsIntOrDefault("ACTIVITY_RETRY_WORKERS", 2),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
