package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB_USERNAME string
	DB_PASSWORD string
	DB_HOST     string
	DB_PORT     string
	DB_NAME     string
	DISABLE_TLS string

	HTTP_ADDR     string
	REALTIME_ADDR string

	// Cache backend: "redis" or "memory"
	CACHE_DRIVER             string
	CACHE_MAX_ENTRIES        int
	CACHE_SEARCH_TTL         time.Duration
	CACHE_INVALIDATE_TIMEOUT time.Duration

	REDIS_HOST     string
	REDIS_PORT     string
	REDIS_USERNAME string
	REDIS_PASSWORD string
	REDIS_DB       int

	JWT_SECRET      string
	JWT_TTL         time.Duration
	JWT_REFRESH_TTL time.Duration

	ALLOWED_ORIGINS string

	// Otel
	OTEL_EXPORTER_OTLP_ENDPOINT string
}

func ReadConfig() *Config {
	return &Config{
		DB_USERNAME: os.Getenv("DB_USERNAME"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_NAME:     os.Getenv("DB_NAME"),
		DISABLE_TLS: os.Getenv("DISABLE_TLS"),

		HTTP_ADDR:     GetEnvOrDefault("HTTP_ADDR", "0.0.0.0:6060"),
		REALTIME_ADDR: GetEnvOrDefault("REALTIME_ADDR", "0.0.0.0:6061"),

		CACHE_DRIVER:             GetEnvOrDefault("CACHE_DRIVER", "redis"),
		CACHE_MAX_ENTRIES:        getIntOrDefault("CACHE_MAX_ENTRIES", 10000),
		CACHE_SEARCH_TTL:         getDurationOrDefault("CACHE_SEARCH_TTL", 5*time.Minute),
		CACHE_INVALIDATE_TIMEOUT: getDurationOrDefault("CACHE_INVALIDATE_TIMEOUT", 5*time.Second),

		REDIS_HOST:     GetEnvOrDefault("REDIS_HOST", "localhost"),
		REDIS_PORT:     GetEnvOrDefault("REDIS_PORT", "6379"),
		REDIS_USERNAME: os.Getenv("REDIS_USERNAME"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:       getIntOrDefault("REDIS_DB", 0),

		JWT_SECRET:      os.Getenv("JWT_SECRET"),
		JWT_TTL:         getDurationOrDefault("JWT_TTL", 168*time.Hour),
		JWT_REFRESH_TTL: getDurationOrDefault("JWT_REFRESH_TTL", 720*time.Hour),

		ALLOWED_ORIGINS: GetEnvOrDefault("ALLOWED_ORIGINS", "*"),

		OTEL_EXPORTER_OTLP_ENDPOINT: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

// DSN returns the postgres connection string for the configured database.
func (c *Config) DSN() string {
	str := "postgresql://" + c.DB_USERNAME + ":" + c.DB_PASSWORD + "@" + c.DB_HOST + ":" + c.DB_PORT + "/" + c.DB_NAME
	if c.DISABLE_TLS == "true" {
		str = str + "?sslmode=disable"
	}
	return str
}

func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
	}
	return defaultValue
}
