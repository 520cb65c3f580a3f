// Package a2a is the HTTP client for the storage/agent collaborator: a
// REST surface for conversations and a JSON-RPC surface for tasks.
package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentmesh/a2a-client/internal/model"
	"github.com/agentmesh/a2a-client/pkg/logger"
)

// ErrNotFound is returned when the collaborator reports a missing
// conversation or task.
var ErrNotFound = errors.New("not found")

// Client talks to one collaborator endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	// stream has no overall timeout: SSE responses stay open until the
	// task reaches a terminal state.
	stream *http.Client
	log    *logger.Logger
}

// NewClient creates a client for the collaborator at baseURL (scheme,
// host, and any mount prefix, without a trailing slash).
func NewClient(baseURL string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		stream:  &http.Client{},
		log:     log,
	}
}

// StreamHTTPClient returns the timeout-free client used for SSE feeds.
func (c *Client) StreamHTTPClient() *http.Client {
	return c.stream
}

// StreamURL returns the push-channel subscription URL for a task. The
// URL is parameterized solely by task identifier.
func (c *Client) StreamURL(taskID string) string {
	return fmt.Sprintf("%s/rpc/%s/stream/", c.baseURL, url.PathEscape(taskID))
}

// ResolveURL turns a server-relative URL from a collaborator response
// into an absolute one against the client's base.
func (c *Client) ResolveURL(ref string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

// ListConversations fetches all conversations, most recent first.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/conversations/", nil, &out); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// CreateConversation creates a conversation and returns its summary.
func (c *Client) CreateConversation(ctx context.Context, req model.CreateConversationRequest) (*model.Conversation, error) {
	var out model.Conversation
	if err := c.doJSON(ctx, http.MethodPost, "/conversations/", req, &out); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &out, nil
}

// GetConversation fetches authoritative conversation state.
func (c *Client) GetConversation(ctx context.Context, contextID string) (*model.ConversationDetail, error) {
	var out model.ConversationDetail
	path := "/conversations/" + url.PathEscape(contextID) + "/"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", contextID, err)
	}
	return &out, nil
}

// DeleteConversation deletes a conversation and its tasks. Deleting a
// conversation that is already gone succeeds.
func (c *Client) DeleteConversation(ctx context.Context, contextID string) error {
	path := "/conversations/" + url.PathEscape(contextID) + "/"
	err := c.doJSON(ctx, http.MethodDelete, path, nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", contextID, err)
	}
	return nil
}

// SendResult is the acknowledgement for a streamed message: the created
// task plus the feed URL to stream its events from.
type SendResult struct {
	Task      model.Task `json:"task"`
	StreamURL string     `json:"streamUrl"`
}

// SendMessage submits a user message on a conversation and returns the
// task reference to stream from.
func (c *Client) SendMessage(ctx context.Context, contextID, text string) (*SendResult, error) {
	params := map[string]any{
		"contextId": contextID,
		"message":   model.NewTextMessage(model.RoleUser, text),
	}
	var out SendResult
	if err := c.rpc(ctx, "message/stream", params, &out); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &out, nil
}

// GetTask fetches the current snapshot of a task. Used as a polling
// fallback, not by the core streaming path.
func (c *Client) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	var out model.Task
	if err := c.rpc(ctx, "tasks/get", map[string]any{"id": taskID}, &out); err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return &out, nil
}

// CancelTask requests cancellation of a non-terminal task.
func (c *Client) CancelTask(ctx context.Context, taskID string) (*model.Task, error) {
	var out model.Task
	if err := c.rpc(ctx, "tasks/cancel", map[string]any{"id": taskID}, &out); err != nil {
		return nil, fmt.Errorf("cancel task %s: %w", taskID, err)
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
