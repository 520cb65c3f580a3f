// Package event defines the closed set of typed events carried by a
// task's push channel and the decoder that produces them.
package event

import (
	"encoding/json"

	"github.com/agentmesh/a2a-client/internal/model"
)

// Type is the wire label of a push-channel event.
type Type string

const (
	TypeWorking        Type = "task.working"
	TypeMessage        Type = "task.message"
	TypeToolCall       Type = "tool-call"
	TypeToolCallResult Type = "tool-call-result"
	TypeArtifact       Type = "task.artifact"
	TypeCompleted      Type = "task.completed"
	TypeFailed         Type = "task.failed"
)

// Event is one decoded push-channel event. Concrete types are the only
// implementations; consumers switch on them.
type Event interface {
	Type() Type
}

// Working signals that the agent has started processing the task.
type Working struct {
	TaskID string
}

// Message carries one or more parts to append onto the current agent turn.
type Message struct {
	TaskID  string
	Message model.Message
}

// ToolCall records a tool invocation by the agent.
type ToolCall struct {
	TaskID     string
	ToolCallID string
	ToolName   string
	Input      json.RawMessage
}

// ToolCallResult carries the result of a previously emitted tool call.
type ToolCallResult struct {
	TaskID     string
	ToolCallID string
	Result     json.RawMessage
}

// Artifact carries a named artifact produced by the agent.
type Artifact struct {
	TaskID   string
	Artifact model.Artifact
}

// Completed is the terminal success signal.
type Completed struct {
	TaskID string
}

// Failed is the terminal failure signal.
type Failed struct {
	TaskID string
}

func (Working) Type() Type        { return TypeWorking }
func (Message) Type() Type        { return TypeMessage }
func (ToolCall) Type() Type       { return TypeToolCall }
func (ToolCallResult) Type() Type { return TypeToolCallResult }
func (Artifact) Type() Type       { return TypeArtifact }
func (Completed) Type() Type      { return TypeCompleted }
func (Failed) Type() Type         { return TypeFailed }
