package model

import (
	"encoding/json"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message represents one role-tagged message exchanged with the agent.
type Message struct {
	MessageID string        `json:"messageId,omitempty"`
	Role      Role          `json:"role"`
	Parts     []MessagePart `json:"parts"`
}

// MessagePart is one semantic unit of content within a message or
// artifact. Text parts carry Text; data parts carry raw structured
// content in Data.
type MessagePart struct {
	Type string          `json:"type"`
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PlainText extracts a plain-text rendering of the part: the explicit
// text field when present, otherwise a canonical JSON serialization.
func (p MessagePart) PlainText() string {
	if p.Text != "" {
		return p.Text
	}
	if len(p.Data) > 0 {
		return string(p.Data)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}

// Artifact is a named, file-like output produced by the agent.
type Artifact struct {
	Name  string        `json:"name,omitempty"`
	Parts []MessagePart `json:"parts"`
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role Role, text string) Message {
	return Message{
		Role:  role,
		Parts: []MessagePart{{Type: "text", Text: text}},
	}
}
