package agentd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/a2a-client/internal/event"
	"github.com/agentmesh/a2a-client/internal/model"
	"github.com/agentmesh/a2a-client/pkg/logger"
)

// EmitFunc receives each event the executor produces: the wire label
// plus a JSON-marshalable payload.
type EmitFunc func(name string, payload any)

// ExecutorConfig controls the scripted agent's output.
type ExecutorConfig struct {
	// ChunkDelay is the pause between consecutive events.
	ChunkDelay time.Duration
	// TextChunks is the number of task.message events per run.
	TextChunks int
	// EmitTools toggles the tool-call/tool-call-result pair.
	EmitTools bool
	// EmitArtifact toggles the trailing artifact event.
	EmitArtifact bool
}

// Executor is a scripted agent that emits a deterministic event
// sequence for a task: working, an optional tool interaction, a run of
// text chunks, an optional artifact, and a terminal event. It stands in
// for a real reasoning agent during development and tests.
type Executor struct {
	cfg ExecutorConfig
	log *logger.Logger
}

// NewExecutor creates an executor with the given pacing.
func NewExecutor(cfg ExecutorConfig, log *logger.Logger) *Executor {
	if cfg.TextChunks <= 0 {
		cfg.TextChunks = 5
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Executor{cfg: cfg, log: log.Named("executor")}
}

// Run emits the scripted event sequence for the task. It returns early
// when the context is canceled, emitting task.failed so the stream
// still terminates cleanly.
func (e *Executor) Run(ctx context.Context, taskID, userText string, emit EmitFunc) {
	e.log.Info("executing task",
		zap.String("task_id", taskID),
		zap.String("user_text", userText),
	)

	emit(string(event.TypeWorking), map[string]any{"taskId": taskID})

	if e.cfg.EmitTools {
		callID := fmt.Sprintf("tool-%s-1", taskID)
		emit(string(event.TypeToolCall), map[string]any{
			"taskId":     taskID,
			"toolCallId": callID,
			"toolName":   "fake_search",
			"input":      map[string]any{"query": userText},
		})
		if !e.pause(ctx, taskID, emit) {
			return
		}
		emit(string(event.TypeToolCallResult), map[string]any{
			"taskId":     taskID,
			"toolCallId": callID,
			"result":     map[string]any{"results": []string{"fake result 1", "fake result 2"}},
		})
	}

	for i := 0; i < e.cfg.TextChunks; i++ {
		text := fmt.Sprintf(
			"Response chunk %d/%d. Your message was: %q. Processing step %d of %d complete. ",
			i+1, e.cfg.TextChunks, userText, i+1, e.cfg.TextChunks,
		)
		emit(string(event.TypeMessage), map[string]any{
			"taskId":  taskID,
			"message": model.NewTextMessage(model.RoleAgent, text),
		})
		if !e.pause(ctx, taskID, emit) {
			return
		}
	}

	if e.cfg.EmitArtifact {
		emit(string(event.TypeArtifact), map[string]any{
			"taskId": taskID,
			"artifact": model.Artifact{
				Name: "analysis_result",
				Parts: []model.MessagePart{{
					Type: "data",
					Data: []byte(`{"summary":"simulated analysis","items":["item1","item2","item3"]}`),
				}},
			},
		})
	}

	emit(string(event.TypeCompleted), map[string]any{
		"taskId":  taskID,
		"message": model.NewTextMessage(model.RoleAgent, "Task completed successfully!"),
	})

	e.log.Info("task completed", zap.String("task_id", taskID))
}

// pause waits one chunk delay, reporting false and emitting task.failed
// when the context ends first.
func (e *Executor) pause(ctx context.Context, taskID string, emit EmitFunc) bool {
	if e.cfg.ChunkDelay <= 0 {
		if ctx.Err() != nil {
			emit(string(event.TypeFailed), map[string]any{"taskId": taskID})
			return false
		}
		return true
	}
	select {
	case <-time.After(e.cfg.ChunkDelay):
		return true
	case <-ctx.Done():
		emit(string(event.TypeFailed), map[string]any{"taskId": taskID})
		return false
	}
}
