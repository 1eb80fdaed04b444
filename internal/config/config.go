package config

import (
	"fmt"
	"os"
)

// Config holds the environment-driven settings for the server.
type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisAddr     string
	RedisPassword string

	JWTSecret string

	ListenAddr string

	// ConfirmationGate enables the two-party proposal handshake before a
	// session is materialized. When disabled the initiator commits directly.
	ConfirmationGate bool

	LocalesPath string
}

// Load reads configuration from environment variables, applying defaults
// suitable for local development.
func Load() *Config {
	return &Config{
		DBHost:           getenv("DB_HOST", "localhost"),
		DBUser:           getenv("DB_USER", "user"),
		DBPassword:       getenv("DB_PASSWORD", "password"),
		DBName:           getenv("DB_NAME", "unichatdb"),
		DBPort:           getenv("DB_PORT", "5432"),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		JWTSecret:        getenv("JWT_SECRET", "dev-only-secret"),
		ListenAddr:       getenv("LISTEN_ADDR", ":8080"),
		ConfirmationGate: os.Getenv("MATCH_CONFIRMATION") == "1",
		LocalesPath:      getenv("LOCALES_PATH", "assets/locales"),
	}
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
