package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.ServerReadTimeout)
	assert.Equal(t, time.Duration(0), cfg.ServerWriteTimeout)
	assert.Equal(t, 120, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 100*time.Millisecond, cfg.AgentChunkDelay)
	assert.Equal(t, 5, cfg.AgentTextChunks)
	assert.True(t, cfg.AgentEmitTools)
	assert.True(t, cfg.AgentEmitArtifact)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AGENT_CHUNK_DELAY", "250ms")
	t.Setenv("AGENT_TEXT_CHUNKS", "3")
	t.Setenv("AGENT_EMIT_TOOLS", "false")
	t.Setenv("A2A_SERVER_URL", "http://agent.internal:8080")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 250*time.Millisecond, cfg.AgentChunkDelay)
	assert.Equal(t, 3, cfg.AgentTextChunks)
	assert.False(t, cfg.AgentEmitTools)
	assert.Equal(t, "http://agent.internal:8080", cfg.ServerURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS", "many")
	t.Setenv("AGENT_CHUNK_DELAY", "soon")
	t.Setenv("AGENT_EMIT_ARTIFACT", "maybe")

	cfg := Load()

	assert.Equal(t, 120, cfg.RateLimitRequests)
	assert.Equal(t, 100*time.Millisecond, cfg.AgentChunkDelay)
	assert.True(t, cfg.AgentEmitArtifact)
}
