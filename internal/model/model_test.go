package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStateTerminal(t *testing.T) {
	terminal := []TaskState{TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected}
	for _, state := range terminal {
		assert.True(t, state.Terminal(), string(state))
	}
	assert.False(t, TaskStateSubmitted.Terminal())
	assert.False(t, TaskStateWorking.Terminal())
}

func TestPlainTextPrefersText(t *testing.T) {
	p := MessagePart{Type: "text", Text: "hello", Data: json.RawMessage(`{"x":1}`)}
	assert.Equal(t, "hello", p.PlainText())
}

func TestPlainTextFallsBackToData(t *testing.T) {
	p := MessagePart{Type: "data", Data: json.RawMessage(`{"summary":"done"}`)}
	assert.Equal(t, `{"summary":"done"}`, p.PlainText())
}

func TestPlainTextSerializesEmptyPart(t *testing.T) {
	p := MessagePart{Type: "text"}
	assert.JSONEq(t, `{"type":"text"}`, p.PlainText())
}

func TestActiveTaskSkipsTerminal(t *testing.T) {
	detail := ConversationDetail{
		Tasks: []Task{
			{ID: "t3", Status: TaskStatus{State: TaskStateWorking}},
			{ID: "t2", Status: TaskStatus{State: TaskStateCompleted}},
			{ID: "t1", Status: TaskStatus{State: TaskStateFailed}},
		},
	}
	active := detail.ActiveTask()
	require.NotNil(t, active)
	assert.Equal(t, "t3", active.ID)
}

func TestActiveTaskNilWhenAllTerminal(t *testing.T) {
	detail := ConversationDetail{
		Tasks: []Task{
			{ID: "t1", Status: TaskStatus{State: TaskStateCompleted}},
			{ID: "t2", Status: TaskStatus{State: TaskStateCanceled}},
		},
	}
	assert.Nil(t, detail.ActiveTask())
}

func TestNewTextMessage(t *testing.T) {
	m := NewTextMessage(RoleUser, "hi")
	assert.Equal(t, RoleUser, m.Role)
	require.Len(t, m.Parts, 1)
	assert.Equal(t, "text", m.Parts[0].Type)
	assert.Equal(t, "hi", m.Parts[0].Text)
}
