// Package transcript holds the in-memory, per-conversation transcript:
// an ordered list of turns mutated by the reconciler and observed by the
// presentation layer.
package transcript

import (
	"encoding/json"
	"sync"

	"github.com/agentmesh/a2a-client/internal/model"
)

// PartTypeText marks a plain-text part.
const PartTypeText = "text"

// Part is one content unit within a turn.
type Part struct {
	Type string
	Text string
}

// ToolCall is one tool interaction on an agent turn. Result is only
// valid once Resolved is true.
type ToolCall struct {
	ID       string
	Name     string
	Input    json.RawMessage
	Result   json.RawMessage
	Resolved bool
}

// Turn is one role-tagged transcript entry. Tool interactions and
// artifacts live in ordered sub-collections beside the content parts;
// a tool result always follows its call within Tools.
type Turn struct {
	Role      model.Role
	Parts     []Part
	Tools     []ToolCall
	Artifacts []model.Artifact
}

// Text returns the concatenation of the turn's text parts.
func (t Turn) Text() string {
	var out string
	for _, p := range t.Parts {
		if p.Type == PartTypeText {
			out += p.Text
		}
	}
	return out
}

// Store is the mutable transcript of one conversation. All methods are
// safe for concurrent use; snapshots returned to observers are copies.
type Store struct {
	mu        sync.RWMutex
	turns     []Turn
	streaming bool
	thinking  bool
	onChange  func()
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// SetOnChange registers a single observer invoked after every mutation.
// The callback runs outside the store lock.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Replace swaps the transcript wholesale with the given turns, clearing
// any thinking indicator. Used when authoritative state is re-fetched.
func (s *Store) Replace(turns []Turn, streaming bool) {
	s.mu.Lock()
	s.turns = turns
	s.streaming = streaming
	s.thinking = false
	cb := s.onChange
	s.mu.Unlock()
	notify(cb)
}

// Turns returns a deep-copied snapshot of the transcript.
func (s *Store) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	for i, t := range s.turns {
		out[i] = Turn{
			Role:      t.Role,
			Parts:     append([]Part(nil), t.Parts...),
			Tools:     append([]ToolCall(nil), t.Tools...),
			Artifacts: append([]model.Artifact(nil), t.Artifacts...),
		}
	}
	return out
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// LastRole returns the role of the final turn, or "" on an empty
// transcript.
func (s *Store) LastRole() model.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.turns) == 0 {
		return ""
	}
	return s.turns[len(s.turns)-1].Role
}

// AppendTurn appends a turn and returns its index.
func (s *Store) AppendTurn(t Turn) int {
	s.mu.Lock()
	s.turns = append(s.turns, t)
	idx := len(s.turns) - 1
	cb := s.onChange
	s.mu.Unlock()
	notify(cb)
	return idx
}

// AppendText concatenates text onto the trailing text part of the turn
// at idx, starting a new text part when the trailing part is not text.
// Out-of-range indexes are ignored.
func (s *Store) AppendText(idx int, text string) {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.turns) {
		s.mu.Unlock()
		return
	}
	turn := &s.turns[idx]
	if n := len(turn.Parts); n > 0 && turn.Parts[n-1].Type == PartTypeText {
		turn.Parts[n-1].Text += text
	} else {
		turn.Parts = append(turn.Parts, Part{Type: PartTypeText, Text: text})
	}
	cb := s.onChange
	s.mu.Unlock()
	notify(cb)
}

// AppendToolCall records an unresolved tool interaction on the turn at idx.
func (s *Store) AppendToolCall(idx int, call ToolCall) {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.turns) {
		s.mu.Unlock()
		return
	}
	call.Resolved = false
	s.turns[idx].Tools = append(s.turns[idx].Tools, call)
	cb := s.onChange
	s.mu.Unlock()
	notify(cb)
}

// ResolveToolCall attaches a result to an unresolved tool call on the
// turn at idx. When callID names an unresolved call it is matched
// exactly; otherwise the most recently appended unresolved call is
// taken. It reports whether any call was resolved.
func (s *Store) ResolveToolCall(idx int, callID string, result json.RawMessage) bool {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.turns) {
		s.mu.Unlock()
		return false
	}
	tools := s.turns[idx].Tools

	match := -1
	if callID != "" {
		for i := range tools {
			if !tools[i].Resolved && tools[i].ID == callID {
				match = i
				break
			}
		}
	}
	if match < 0 {
		for i := len(tools) - 1; i >= 0; i-- {
			if !tools[i].Resolved {
				match = i
				break
			}
		}
	}
	if match < 0 {
		s.mu.Unlock()
		return false
	}

	tools[match].Result = result
	tools[match].Resolved = true
	cb := s.onChange
	s.mu.Unlock()
	notify(cb)
	return true
}

// AppendArtifact records an artifact on the turn at idx.
func (s *Store) AppendArtifact(idx int, artifact model.Artifact) {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.turns) {
		s.mu.Unlock()
		return
	}
	s.turns[idx].Artifacts = append(s.turns[idx].Artifacts, artifact)
	cb := s.onChange
	s.mu.Unlock()
	notify(cb)
}

// SetStreaming flips the conversation's streaming flag.
func (s *Store) SetStreaming(v bool) {
	s.mu.Lock()
	s.streaming = v
	if !v {
		s.thinking = false
	}
	cb := s.onChange
	s.mu.Unlock()
	notify(cb)
}

// Streaming reports whether a live task is attached.
func (s *Store) Streaming() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streaming
}

// SetThinking flips the presentation-only loading indicator.
func (s *Store) SetThinking(v bool) {
	s.mu.Lock()
	s.thinking = v
	cb := s.onChange
	s.mu.Unlock()
	notify(cb)
}

// Thinking reports whether the loading indicator is showing.
func (s *Store) Thinking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thinking
}

func notify(cb func()) {
	if cb != nil {
		cb()
	}
}

// FromMessages converts a fetched conversation history into transcript
// turns. Consecutive wire messages keep their own turns; parts without
// an explicit text field are rendered through their canonical string
// form.
func FromMessages(messages []model.ConversationMessage) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, msg := range messages {
		turn := Turn{Role: msg.Role}
		for _, p := range msg.Parts {
			if text := p.PlainText(); text != "" {
				turn.Parts = append(turn.Parts, Part{Type: PartTypeText, Text: text})
			}
		}
		turns = append(turns, turn)
	}
	return turns
}
