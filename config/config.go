package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the application settings
type Config struct {
	RedisAddr     string
	RedisPassword string
	BaseDomain    string
	AllowedOrigin string
	Port          string
}

// LoadConfig loads environment variables and returns a Config
func LoadConfig() (*Config, error) {
	// Load variables from a .env file, if present
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	config := &Config{
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		BaseDomain:    getEnvWithDefault("BASE_DOMAIN", "cmla.cc"),
		AllowedOrigin: getEnvWithDefault("ALLOWED_ORIGIN", "https://cmla.cc"),
		Port:          getEnvWithDefault("PORT", "8080"),
	}

	if config.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR not set")
	}

	return config, nil
}

// getEnvWithDefault returns environment variable value or default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
