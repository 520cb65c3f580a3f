// Package agentd is an in-process implementation of the storage/agent
// collaborator: an in-memory conversation and task store with a
// per-task event log, a scripted agent executor, and the HTTP surface
// the client engine consumes. It exists for development and end-to-end
// tests; production deployments point the client at a real agent.
package agentd

import (
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentmesh/a2a-client/internal/model"
	"github.com/agentmesh/a2a-client/pkg/metrics"
)

// Envelope is one logged push-channel event: a monotonic per-task
// delivery marker, the event label, and the JSON payload.
type Envelope struct {
	Seq  uint64
	Name string
	Data []byte
}

// ID formats the delivery marker as sent on the wire.
func (e Envelope) ID() string {
	return strconv.FormatUint(e.Seq, 10)
}

type taskRecord struct {
	task    model.Task
	events  []Envelope
	subs    map[int]chan Envelope
	nextSub int
}

type conversationRecord struct {
	contextID   string
	agentID     string
	isStreaming bool
	streamURL   string
	createdAt   time.Time
	updatedAt   time.Time
}

// Store holds all conversations, tasks, and per-task event logs. It is
// the in-memory analogue of the conversation database plus the event
// stream a production collaborator would keep in a broker.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*conversationRecord
	tasks         map[string]*taskRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*conversationRecord),
		tasks:         make(map[string]*taskRecord),
	}
}

// CreateConversation creates a conversation, or returns the existing
// one when the context id is already known.
func (s *Store) CreateConversation(contextID, agentID string) model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureConversationLocked(contextID, agentID)
}

func (s *Store) ensureConversationLocked(contextID, agentID string) model.Conversation {
	if contextID == "" {
		contextID = "ctx-" + uuid.New().String()[:8]
	}
	if agentID == "" {
		agentID = "default"
	}
	if rec, ok := s.conversations[contextID]; ok {
		return s.conversationSummaryLocked(rec)
	}
	now := time.Now().UTC()
	rec := &conversationRecord{
		contextID: contextID,
		agentID:   agentID,
		createdAt: now,
		updatedAt: now,
	}
	s.conversations[contextID] = rec
	metrics.ConversationsTotal.Inc()
	return s.conversationSummaryLocked(rec)
}

// ListConversations returns all conversations, most recently updated
// first, with titles derived from each conversation's first user
// message.
func (s *Store) ListConversations() []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Conversation, 0, len(s.conversations))
	for _, rec := range s.conversations {
		out = append(out, s.conversationSummaryLocked(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(*out[j].UpdatedAt)
	})
	return out
}

// GetConversationDetail returns the full state of a conversation, or
// nil when it does not exist.
func (s *Store) GetConversationDetail(contextID string) *model.ConversationDetail {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.conversations[contextID]
	if !ok {
		return nil
	}

	tasks := s.tasksByContextLocked(contextID)

	var messages []model.ConversationMessage
	for i := len(tasks) - 1; i >= 0; i-- {
		for _, msg := range tasks[i].History {
			messages = append(messages, model.ConversationMessage{
				TaskID: tasks[i].ID,
				Role:   msg.Role,
				Parts:  msg.Parts,
			})
		}
	}

	created := rec.createdAt
	updated := rec.updatedAt
	return &model.ConversationDetail{
		ContextID:   rec.contextID,
		AgentID:     rec.agentID,
		IsStreaming: rec.isStreaming,
		StreamURL:   rec.streamURL,
		CreatedAt:   &created,
		UpdatedAt:   &updated,
		Tasks:       tasks,
		Messages:    messages,
	}
}

// DeleteConversation removes a conversation and all its tasks. It
// reports whether the conversation existed.
func (s *Store) DeleteConversation(contextID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[contextID]; !ok {
		return false
	}
	delete(s.conversations, contextID)
	for id, rec := range s.tasks {
		if rec.task.ContextID == contextID {
			for _, ch := range rec.subs {
				close(ch)
			}
			delete(s.tasks, id)
		}
	}
	return true
}

// CreateTask creates a task on the given conversation seeded with the
// user message, creating the conversation when needed.
func (s *Store) CreateTask(contextID string, message model.Message) model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	taskID := "task-" + uuid.Must(uuid.NewV7()).String()
	if contextID == "" {
		contextID = taskID
	}
	s.ensureConversationLocked(contextID, "")

	if message.MessageID == "" {
		message.MessageID = "msg-" + uuid.New().String()[:8]
	}
	now := time.Now().UTC()
	task := model.Task{
		ID:        taskID,
		ContextID: contextID,
		Status:    model.TaskStatus{State: model.TaskStateSubmitted},
		History:   []model.Message{message},
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	s.tasks[taskID] = &taskRecord{
		task: task,
		subs: make(map[int]chan Envelope),
	}
	s.touchConversationLocked(contextID)
	return task
}

// GetTask returns a snapshot of a task, or nil when unknown.
func (s *Store) GetTask(taskID string) *model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tasks[taskID]
	if !ok {
		return nil
	}
	task := rec.task
	return &task
}

// UpdateTaskStatus sets a task's lifecycle state.
func (s *Store) UpdateTaskStatus(taskID string, state model.TaskState, statusMessage *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[taskID]
	if !ok {
		return
	}
	rec.task.Status = model.TaskStatus{State: state, Message: statusMessage}
	s.touchTaskLocked(rec)
	if state.Terminal() {
		metrics.TasksTotal.WithLabelValues(string(state)).Inc()
	}
}

// AppendTaskMessage appends a message to a task's history.
func (s *Store) AppendTaskMessage(taskID string, message model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[taskID]
	if !ok {
		return
	}
	rec.task.History = append(rec.task.History, message)
	s.touchTaskLocked(rec)
}

// AddTaskArtifact records an artifact on a task.
func (s *Store) AddTaskArtifact(taskID string, artifact model.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[taskID]
	if !ok {
		return
	}
	rec.task.Artifacts = append(rec.task.Artifacts, artifact)
	s.touchTaskLocked(rec)
}

// SetStreaming flips the streaming marker on a conversation and records
// the current stream URL while one is active.
func (s *Store) SetStreaming(contextID string, streaming bool, streamURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.conversations[contextID]
	if !ok {
		return
	}
	rec.isStreaming = streaming
	rec.streamURL = streamURL
	rec.updatedAt = time.Now().UTC()
}

// Publish appends an event to the task's log, assigns its delivery
// marker, and fans it out to live subscribers. Payloads that fail to
// marshal are dropped.
func (s *Store) Publish(taskID, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[taskID]
	if !ok {
		return
	}
	env := Envelope{
		Seq:  uint64(len(rec.events) + 1),
		Name: name,
		Data: data,
	}
	rec.events = append(rec.events, env)

	// Fan-out stays under the lock so a concurrent delete cannot close a
	// channel between the snapshot and the send. Sends never block: a
	// subscriber that stopped draining loses live events and replays from
	// its last delivery marker on reconnect.
	for _, ch := range rec.subs {
		select {
		case ch <- env:
		default:
		}
	}
}

// Subscribe returns the replay of a task's log after the given marker
// plus a live channel for subsequent events. The cancel function
// detaches the subscriber; the channel is closed when the task is
// deleted.
func (s *Store) Subscribe(taskID string, afterSeq uint64) ([]Envelope, <-chan Envelope, func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[taskID]
	if !ok {
		return nil, nil, nil, false
	}

	var replay []Envelope
	for _, env := range rec.events {
		if env.Seq > afterSeq {
			replay = append(replay, env)
		}
	}

	ch := make(chan Envelope, 256)
	id := rec.nextSub
	rec.nextSub++
	rec.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.tasks[taskID]; ok {
			delete(cur.subs, id)
		}
	}
	return replay, ch, cancel, true
}

// tasksByContextLocked returns snapshots of a conversation's tasks,
// newest first.
func (s *Store) tasksByContextLocked(contextID string) []model.Task {
	var tasks []model.Task
	for _, rec := range s.tasks {
		if rec.task.ContextID == contextID {
			tasks = append(tasks, rec.task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(*tasks[j].CreatedAt)
	})
	return tasks
}

func (s *Store) touchTaskLocked(rec *taskRecord) {
	now := time.Now().UTC()
	rec.task.UpdatedAt = &now
	s.touchConversationLocked(rec.task.ContextID)
}

func (s *Store) touchConversationLocked(contextID string) {
	if conv, ok := s.conversations[contextID]; ok {
		conv.updatedAt = time.Now().UTC()
	}
}

func (s *Store) conversationSummaryLocked(rec *conversationRecord) model.Conversation {
	created := rec.createdAt
	updated := rec.updatedAt

	title := "New Conversation"
	taskCount := 0
	var first *model.Task
	for id := range s.tasks {
		task := &s.tasks[id].task
		if task.ContextID != rec.contextID {
			continue
		}
		taskCount++
		if first == nil || task.CreatedAt.Before(*first.CreatedAt) {
			first = task
		}
	}
	if first != nil && len(first.History) > 0 && len(first.History[0].Parts) > 0 {
		if text := first.History[0].Parts[0].PlainText(); text != "" {
			title = truncate(text, 50)
		}
	}

	return model.Conversation{
		ContextID:   rec.contextID,
		AgentID:     rec.agentID,
		Title:       title,
		IsStreaming: rec.isStreaming,
		TaskCount:   taskCount,
		CreatedAt:   &created,
		UpdatedAt:   &updated,
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
