// Package reconcile maps decoded push-channel events onto transcript
// mutations for one streaming task.
package reconcile

import (
	"go.uber.org/zap"

	"github.com/agentmesh/a2a-client/internal/event"
	"github.com/agentmesh/a2a-client/internal/model"
	"github.com/agentmesh/a2a-client/internal/transcript"
	"github.com/agentmesh/a2a-client/pkg/logger"
	"github.com/agentmesh/a2a-client/pkg/metrics"
)

// Reconciler applies events for a single stream to a transcript store.
// It owns the index of the in-progress agent turn so the "current agent
// turn" lookup stays O(1) instead of re-scanning the transcript.
//
// A Reconciler is not safe for concurrent use; the session directory
// serializes all calls for a conversation.
type Reconciler struct {
	store  *transcript.Store
	log    *logger.Logger
	turn   int // index of the streaming agent turn, -1 while absent
	closed bool
}

// New creates a reconciler bound to the given store.
func New(store *transcript.Store, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{store: store, log: log, turn: -1}
}

// Apply dispatches one decoded event onto the transcript. Events that
// reference missing state are logged and dropped; nothing here is fatal
// to the stream.
func (r *Reconciler) Apply(ev event.Event) {
	if r.closed {
		// Task lifecycle is authoritative: terminal is final, anything
		// delivered afterwards is discarded.
		r.drop("after_terminal", ev)
		return
	}

	switch e := ev.(type) {
	case event.Working:
		// Turn creation is deferred to the first content-bearing event;
		// working only raises the loading indicator.
		r.store.SetThinking(true)

	case event.Message:
		idx := r.ensureAgentTurn()
		var text string
		for _, part := range e.Message.Parts {
			text += part.PlainText()
		}
		if text != "" {
			r.store.AppendText(idx, text)
		}
		r.store.SetThinking(false)

	case event.ToolCall:
		idx := r.ensureAgentTurn()
		r.store.AppendToolCall(idx, transcript.ToolCall{
			ID:    e.ToolCallID,
			Name:  e.ToolName,
			Input: e.Input,
		})

	case event.ToolCallResult:
		if r.turn < 0 || !r.store.ResolveToolCall(r.turn, e.ToolCallID, e.Result) {
			r.drop("unmatched_tool_result", ev)
			return
		}

	case event.Artifact:
		idx := r.ensureAgentTurn()
		r.store.AppendArtifact(idx, e.Artifact)

	case event.Completed:
		r.terminal()

	case event.Failed:
		r.terminal()
	}
}

// Closed reports whether a terminal event has been applied.
func (r *Reconciler) Closed() bool {
	return r.closed
}

// ensureAgentTurn returns the index of the mutable agent turn, creating
// one when the stream has none yet. When the transcript already ends
// with an agent turn (a stream re-attached after a full refresh), that
// turn is adopted rather than duplicated.
func (r *Reconciler) ensureAgentTurn() int {
	if r.turn >= 0 {
		return r.turn
	}
	if r.store.Len() > 0 && r.store.LastRole() == model.RoleAgent {
		r.turn = r.store.Len() - 1
		return r.turn
	}
	r.turn = r.store.AppendTurn(transcript.Turn{Role: model.RoleAgent})
	return r.turn
}

func (r *Reconciler) terminal() {
	r.closed = true
	r.turn = -1
	r.store.SetStreaming(false)
}

func (r *Reconciler) drop(reason string, ev event.Event) {
	metrics.RecordEventDropped(reason)
	r.log.Warn("event dropped",
		zap.String("reason", reason),
		zap.String("event_type", string(ev.Type())),
	)
}
