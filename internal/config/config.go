// Package config provides environment configuration for the binaries.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Agent daemon server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Fake agent pacing
	AgentChunkDelay   time.Duration
	AgentTextChunks   int
	AgentEmitTools    bool
	AgentEmitArtifact bool

	// Client settings
	ServerURL string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Fake agent
		AgentChunkDelay:   getDurationEnv("AGENT_CHUNK_DELAY", 100*time.Millisecond),
		AgentTextChunks:   getIntEnv("AGENT_TEXT_CHUNKS", 5),
		AgentEmitTools:    getBoolEnv("AGENT_EMIT_TOOLS", true),
		AgentEmitArtifact: getBoolEnv("AGENT_EMIT_ARTIFACT", true),

		// Client
		ServerURL: getEnv("A2A_SERVER_URL", "http://localhost:8080"),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
