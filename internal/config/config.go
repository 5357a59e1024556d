// Package config loads service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs to start.
type Config struct {
	ListenAddr   string        // HTTP/WebSocket listen address
	RedisAddr    string        // empty: in-memory store, no audit queue
	PostgresDSN  string        // empty: no finished-game archive
	JWTSecret    string        // session token signing key
	TurnDuration time.Duration // per-turn deadline
	LogLevel     string
}

// Load reads the environment. A .env file in the working directory is
// applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ListenAddr:   getenv("LISTEN_ADDR", ":8080"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		JWTSecret:    getenv("JWT_SECRET", "dev-secret"),
		TurnDuration: getduration("TURN_DURATION", 30*time.Second),
		LogLevel:     getenv("LOG_LEVEL", "info"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
