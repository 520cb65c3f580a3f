package agentd

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	name    string
	payload any
}

func runExecutor(t *testing.T, cfg ExecutorConfig, ctx context.Context) []emitted {
	t.Helper()
	var events []emitted
	exec := NewExecutor(cfg, nil)
	exec.Run(ctx, "task-1", "hello", func(name string, payload any) {
		events = append(events, emitted{name: name, payload: payload})
	})
	return events
}

func names(events []emitted) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.name
	}
	return out
}

func TestExecutorFullSequence(t *testing.T) {
	events := runExecutor(t, ExecutorConfig{
		TextChunks:   2,
		EmitTools:    true,
		EmitArtifact: true,
	}, context.Background())

	assert.Equal(t, []string{
		"task.working",
		"tool-call",
		"tool-call-result",
		"task.message",
		"task.message",
		"task.artifact",
		"task.completed",
	}, names(events))
}

func TestExecutorToolCallIDsMatch(t *testing.T) {
	events := runExecutor(t, ExecutorConfig{
		TextChunks: 1,
		EmitTools:  true,
	}, context.Background())

	byName := map[string]map[string]any{}
	for _, e := range events {
		data, err := json.Marshal(e.payload)
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		byName[e.name] = m
	}

	call := byName["tool-call"]
	result := byName["tool-call-result"]
	require.NotNil(t, call)
	require.NotNil(t, result)
	assert.NotEmpty(t, call["toolCallId"])
	assert.Equal(t, call["toolCallId"], result["toolCallId"])
	assert.Equal(t, "fake_search", call["toolName"])

	input, ok := call["input"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello", input["query"])
}

func TestExecutorMinimalSequence(t *testing.T) {
	events := runExecutor(t, ExecutorConfig{TextChunks: 1}, context.Background())

	assert.Equal(t, []string{
		"task.working",
		"task.message",
		"task.completed",
	}, names(events))
}

func TestExecutorDefaultsTextChunks(t *testing.T) {
	events := runExecutor(t, ExecutorConfig{}, context.Background())

	got := names(events)
	chunks := 0
	for _, n := range got {
		if n == "task.message" {
			chunks++
		}
	}
	assert.Equal(t, 5, chunks)
	assert.Equal(t, "task.completed", got[len(got)-1])
}

func TestExecutorCanceledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := runExecutor(t, ExecutorConfig{TextChunks: 3}, ctx)

	got := names(events)
	require.NotEmpty(t, got)
	assert.Equal(t, "task.failed", got[len(got)-1])
	assert.NotContains(t, got, "task.completed")
}
