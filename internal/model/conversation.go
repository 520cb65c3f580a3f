package model

import (
	"time"
)

// Conversation is a summary row returned by the conversation list.
type Conversation struct {
	ContextID   string     `json:"context_id"`
	AgentID     string     `json:"agent_id"`
	Title       string     `json:"title"`
	IsStreaming bool       `json:"is_streaming"`
	TaskCount   int        `json:"task_count"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// ConversationMessage is one transcript entry in a conversation detail,
// flattened across the conversation's tasks in chronological order.
type ConversationMessage struct {
	TaskID string        `json:"task_id"`
	Role   Role          `json:"role"`
	Parts  []MessagePart `json:"parts"`
}

// ConversationDetail is the full authoritative state of one conversation.
type ConversationDetail struct {
	ContextID   string                `json:"context_id"`
	AgentID     string                `json:"agent_id"`
	IsStreaming bool                  `json:"is_streaming"`
	StreamURL   string                `json:"stream_url,omitempty"`
	CreatedAt   *time.Time            `json:"created_at,omitempty"`
	UpdatedAt   *time.Time            `json:"updated_at,omitempty"`
	Tasks       []Task                `json:"tasks"`
	Messages    []ConversationMessage `json:"messages"`
}

// ActiveTask returns the most recent non-terminal task reference, or nil
// when the conversation has no outstanding work.
func (d *ConversationDetail) ActiveTask() *Task {
	for i := range d.Tasks {
		if !d.Tasks[i].Status.State.Terminal() {
			return &d.Tasks[i]
		}
	}
	return nil
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	ContextID string `json:"context_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
}
