// Package feed owns the live subscription to one task's event feed:
// connect, decode, dispatch, and tear down exactly once.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/agentmesh/a2a-client/internal/event"
	"github.com/agentmesh/a2a-client/internal/sse"
	"github.com/agentmesh/a2a-client/pkg/logger"
	"github.com/agentmesh/a2a-client/pkg/metrics"
)

// EventFunc receives each successfully decoded event in delivery order.
type EventFunc func(event.Event)

// TerminalFunc fires exactly once when the feed ends: a terminal task
// event, a transport failure, or an unexpected stream close. It does
// not fire after Close.
type TerminalFunc func()

// Session is one live subscription to a task's SSE feed. A session is
// single-use: once terminal or closed it never delivers again.
type Session struct {
	taskID     string
	streamURL  string
	httpClient *http.Client
	log        *logger.Logger

	onEvent    EventFunc
	onTerminal TerminalFunc
	cancel     context.CancelFunc

	mu          sync.Mutex
	closed      bool
	terminated  bool
	lastEventID string
}

// Open establishes a subscription to the task's feed and returns
// immediately; events arrive asynchronously on the callbacks. The
// httpClient must not enforce an overall request timeout, since the
// stream is held open indefinitely.
func Open(ctx context.Context, httpClient *http.Client, streamURL, taskID string, onEvent EventFunc, onTerminal TerminalFunc, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		taskID:     taskID,
		streamURL:  streamURL,
		httpClient: httpClient,
		log:        log.With(zap.String("task_id", taskID)),
		onEvent:    onEvent,
		onTerminal: onTerminal,
		cancel:     cancel,
	}

	metrics.FeedSessionsActive.Inc()
	go s.run(ctx)
	return s
}

// Close releases the subscription. It is idempotent, never blocks on
// in-flight delivery, and suppresses any further callback from this
// session instance.
func (s *Session) Close() {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	if !already {
		s.log.Debug("feed session closed")
	}
}

// TaskID returns the task this session subscribes to.
func (s *Session) TaskID() string {
	return s.taskID
}

// LastEventID returns the delivery marker of the last applied event.
// Kept for resumption bookkeeping; the session itself never resumes.
func (s *Session) LastEventID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEventID
}

func (s *Session) run(ctx context.Context) {
	defer metrics.FeedSessionsActive.Dec()

	if err := s.consume(ctx); err != nil && !s.isClosed() {
		s.log.Warn("feed transport failure", zap.Error(err))
	}
	// Any exit that was not caused by Close is terminal for the
	// session; the caller decides whether to re-sync and reopen.
	s.fireTerminal()
}

func (s *Session) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.streamURL, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open stream: unexpected status %d", resp.StatusCode)
	}

	reader := sse.NewReader(resp.Body)
	for {
		frame, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}

		ev, err := event.Decode(frame.Name, frame.Data)
		if err != nil {
			// Unknown or malformed payloads never close the feed.
			metrics.RecordEventDropped("decode")
			s.log.Warn("undecodable event",
				zap.String("event", frame.Name),
				zap.Error(err),
			)
			continue
		}

		if !s.deliver(frame.ID, ev) {
			return nil
		}

		switch ev.(type) {
		case event.Completed, event.Failed:
			return nil
		}
	}
}

// deliver records the delivery marker and hands the event to the
// consumer. It reports false when the session was closed meanwhile.
func (s *Session) deliver(id string, ev event.Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if id != "" {
		s.lastEventID = id
	}
	s.mu.Unlock()

	metrics.RecordEventDecoded(string(ev.Type()))
	s.onEvent(ev)
	return true
}

func (s *Session) fireTerminal() {
	s.mu.Lock()
	fire := !s.terminated && !s.closed
	s.terminated = true
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	if fire && s.onTerminal != nil {
		s.onTerminal()
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
