package transcript

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/a2a-client/internal/model"
)

func TestAppendTextConcatenates(t *testing.T) {
	s := New()
	idx := s.AppendTurn(Turn{Role: model.RoleAgent})

	s.AppendText(idx, "hello ")
	s.AppendText(idx, "world")

	turns := s.Turns()
	require.Len(t, turns, 1)
	require.Len(t, turns[0].Parts, 1)
	assert.Equal(t, "hello world", turns[0].Parts[0].Text)
}

func TestAppendTextStartsNewPartAfterNonText(t *testing.T) {
	s := New()
	idx := s.AppendTurn(Turn{
		Role:  model.RoleAgent,
		Parts: []Part{{Type: "data", Text: "ignored"}},
	})

	s.AppendText(idx, "tail")

	turns := s.Turns()
	require.Len(t, turns[0].Parts, 2)
	assert.Equal(t, PartTypeText, turns[0].Parts[1].Type)
	assert.Equal(t, "tail", turns[0].Parts[1].Text)
}

func TestAppendTextOutOfRangeIgnored(t *testing.T) {
	s := New()
	s.AppendText(3, "nope")
	assert.Equal(t, 0, s.Len())
}

func TestResolveToolCallByID(t *testing.T) {
	s := New()
	idx := s.AppendTurn(Turn{Role: model.RoleAgent})
	s.AppendToolCall(idx, ToolCall{ID: "c1", Name: "first"})
	s.AppendToolCall(idx, ToolCall{ID: "c2", Name: "second"})

	require.True(t, s.ResolveToolCall(idx, "c1", json.RawMessage(`{"ok":true}`)))

	turns := s.Turns()
	assert.True(t, turns[0].Tools[0].Resolved)
	assert.False(t, turns[0].Tools[1].Resolved)
	assert.JSONEq(t, `{"ok":true}`, string(turns[0].Tools[0].Result))
}

func TestResolveToolCallFallsBackToMostRecent(t *testing.T) {
	s := New()
	idx := s.AppendTurn(Turn{Role: model.RoleAgent})
	s.AppendToolCall(idx, ToolCall{ID: "c1", Name: "first"})
	s.AppendToolCall(idx, ToolCall{ID: "c2", Name: "second"})

	// No id on the result: the most recently appended unresolved call wins.
	require.True(t, s.ResolveToolCall(idx, "", json.RawMessage(`1`)))

	turns := s.Turns()
	assert.False(t, turns[0].Tools[0].Resolved)
	assert.True(t, turns[0].Tools[1].Resolved)
}

func TestResolveToolCallNoUnresolved(t *testing.T) {
	s := New()
	idx := s.AppendTurn(Turn{Role: model.RoleAgent})

	assert.False(t, s.ResolveToolCall(idx, "", json.RawMessage(`1`)))
	assert.False(t, s.ResolveToolCall(idx, "missing", nil))
}

func TestReplaceClearsThinking(t *testing.T) {
	s := New()
	s.SetThinking(true)
	s.Replace([]Turn{{Role: model.RoleUser}}, true)

	assert.False(t, s.Thinking())
	assert.True(t, s.Streaming())
	assert.Equal(t, 1, s.Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	idx := s.AppendTurn(Turn{Role: model.RoleAgent})
	s.AppendText(idx, "original")

	snap := s.Turns()
	snap[0].Parts[0].Text = "mutated"

	assert.Equal(t, "original", s.Turns()[0].Parts[0].Text)
}

func TestOnChangeFiresPerMutation(t *testing.T) {
	s := New()
	var calls int
	s.SetOnChange(func() { calls++ })

	idx := s.AppendTurn(Turn{Role: model.RoleAgent})
	s.AppendText(idx, "x")
	s.SetStreaming(true)

	assert.Equal(t, 3, calls)
}

func TestLastRole(t *testing.T) {
	s := New()
	assert.Equal(t, model.Role(""), s.LastRole())

	s.AppendTurn(Turn{Role: model.RoleUser})
	assert.Equal(t, model.RoleUser, s.LastRole())

	s.AppendTurn(Turn{Role: model.RoleAgent})
	assert.Equal(t, model.RoleAgent, s.LastRole())
}

func TestFromMessages(t *testing.T) {
	turns := FromMessages([]model.ConversationMessage{
		{Role: model.RoleUser, Parts: []model.MessagePart{{Type: "text", Text: "ping"}}},
		{Role: model.RoleAgent, Parts: []model.MessagePart{
			{Type: "text", Text: "pong"},
			{Type: "data", Data: json.RawMessage(`{"k":1}`)},
		}},
	})

	require.Len(t, turns, 2)
	assert.Equal(t, "ping", turns[0].Text())
	assert.Equal(t, `pong{"k":1}`, turns[1].Text())
}
