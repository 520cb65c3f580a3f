package agentd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agentmesh/a2a-client/internal/middleware"
	"github.com/agentmesh/a2a-client/internal/model"
	"github.com/agentmesh/a2a-client/internal/sse"
	"github.com/agentmesh/a2a-client/pkg/logger"
	"github.com/agentmesh/a2a-client/pkg/metrics"
)

// ServerConfig holds the tunables of the HTTP surface.
type ServerConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Executor          ExecutorConfig
}

// Server exposes the collaborator HTTP surface over an in-memory store
// and the scripted executor.
type Server struct {
	store *Store
	exec  *Executor
	log   *logger.Logger
	cfg   ServerConfig
}

// NewServer creates a server around a fresh store.
func NewServer(cfg ServerConfig, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		store: NewStore(),
		exec:  NewExecutor(cfg.Executor, log),
		log:   log.Named("agentd"),
		cfg:   cfg,
	}
}

// Store exposes the underlying store, mainly for tests.
func (s *Server) Store() *Store {
	return s.store
}

// Router builds the HTTP router: REST conversations, the JSON-RPC
// endpoint, the per-task SSE stream, and operational endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID"},
		MaxAge:         300,
	}))
	if s.cfg.RateLimitRequests > 0 {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", s.handleListConversations)
		r.Post("/", s.handleCreateConversation)
		r.Get("/{id}/", s.handleGetConversation)
		r.Delete("/{id}/", s.handleDeleteConversation)
		// Also accept the non-trailing-slash form.
		r.Get("/{id}", s.handleGetConversation)
		r.Delete("/{id}", s.handleDeleteConversation)
	})

	r.Post("/rpc/", s.handleRPC)
	r.Post("/rpc", s.handleRPC)
	r.Get("/rpc/{taskID}/stream/", s.handleStream)
	r.Get("/rpc/{taskID}/stream", s.handleStream)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListConversations())
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if r.Body != nil {
		// An empty body is fine: both fields are optional.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	conv := s.store.CreateConversation(req.ContextID, req.AgentID)
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "id")
	detail := s.store.GetConversationDetail(contextID)
	if detail == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "id")
	if !s.store.DeleteConversation(contextID) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleStream serves GET /rpc/{taskID}/stream/ as SSE. The log is
// replayed from the Last-Event-ID marker (everything, when absent) and
// then followed live until a terminal event is delivered or the client
// disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var afterSeq uint64
	if lastID := r.Header.Get("Last-Event-ID"); lastID != "" {
		if parsed, err := strconv.ParseUint(lastID, 10, 64); err == nil {
			afterSeq = parsed
		}
	}

	replay, live, cancel, ok := s.store.Subscribe(taskID, afterSeq)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.SSEConnectionsActive.Inc()
	defer metrics.SSEConnectionsActive.Dec()

	done := r.Context().Done()
	seen := afterSeq

	send := func(env Envelope) bool {
		if env.Seq <= seen {
			return true
		}
		seen = env.Seq
		if err := sse.WriteFrame(w, flusher, env.ID(), env.Name, env.Data); err != nil {
			return false
		}
		return !terminalEventName(env.Name)
	}

	for _, env := range replay {
		select {
		case <-done:
			return
		default:
		}
		if !send(env) {
			return
		}
	}

	for {
		select {
		case <-done:
			s.log.Debug("SSE client disconnected", zap.String("task_id", taskID))
			return
		case env, open := <-live:
			if !open {
				return
			}
			if !send(env) {
				return
			}
		}
	}
}

// startTask launches the scripted executor for a task. Events are
// published to the task's log for SSE fan-out and simultaneously folded
// into the task record, so a later authoritative fetch sees the same
// history the stream delivered.
func (s *Server) startTask(task model.Task, streamURL string) {
	userText := ""
	if len(task.History) > 0 && len(task.History[0].Parts) > 0 {
		userText = task.History[0].Parts[0].PlainText()
	}

	s.store.SetStreaming(task.ContextID, true, streamURL)

	emit := func(name string, payload any) {
		s.store.Publish(task.ID, name, payload)
		s.applyTaskEvent(task, name, payload)
	}

	go func() {
		s.exec.Run(context.Background(), task.ID, userText, emit)
		s.store.SetStreaming(task.ContextID, false, "")
	}()
}

// applyTaskEvent mirrors an emitted event into persistent task state.
func (s *Server) applyTaskEvent(task model.Task, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	var env struct {
		Message  *model.Message  `json:"message"`
		Artifact *model.Artifact `json:"artifact"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}

	switch name {
	case "task.message":
		if env.Message != nil {
			s.store.AppendTaskMessage(task.ID, *env.Message)
		}
	case "task.artifact":
		if env.Artifact != nil {
			s.store.AddTaskArtifact(task.ID, *env.Artifact)
		}
	case "task.working":
		s.store.UpdateTaskStatus(task.ID, model.TaskStateWorking, nil)
	default:
		if state, ok := terminalState(name); ok {
			s.store.UpdateTaskStatus(task.ID, state, env.Message)
		}
	}
}

func terminalState(eventName string) (model.TaskState, bool) {
	switch eventName {
	case "task.completed":
		return model.TaskStateCompleted, true
	case "task.failed":
		return model.TaskStateFailed, true
	case "task.canceled":
		return model.TaskStateCanceled, true
	case "task.rejected":
		return model.TaskStateRejected, true
	}
	return "", false
}

func terminalEventName(name string) bool {
	_, ok := terminalState(name)
	return ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func streamPath(taskID string) string {
	return fmt.Sprintf("/rpc/%s/stream/", taskID)
}
