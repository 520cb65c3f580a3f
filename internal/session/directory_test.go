package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/a2a-client/internal/a2a"
	"github.com/agentmesh/a2a-client/internal/agentd"
	"github.com/agentmesh/a2a-client/internal/model"
)

func newTestServer(t *testing.T, wrap func(http.Handler) http.Handler) (*httptest.Server, *agentd.Server) {
	t.Helper()
	srv := agentd.NewServer(agentd.ServerConfig{
		Executor: agentd.ExecutorConfig{
			TextChunks:   2,
			EmitTools:    true,
			EmitArtifact: true,
		},
	}, nil)
	handler := srv.Router()
	if wrap != nil {
		handler = wrap(handler)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, srv
}

func newTestDirectory(t *testing.T, ts *httptest.Server) *Directory {
	t.Helper()
	dir := NewDirectory(a2a.NewClient(ts.URL, nil), nil)
	t.Cleanup(dir.Close)
	return dir
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSendRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	dir := newTestDirectory(t, ts)
	ctx := context.Background()

	conv, err := dir.NewConversation(ctx)
	require.NoError(t, err)
	assert.Equal(t, conv.ContextID, dir.Selected())

	require.NoError(t, dir.Send(ctx, "ping"))

	waitFor(t, func() bool { return !dir.Streaming() })

	turns := dir.Store().Turns()
	require.GreaterOrEqual(t, len(turns), 2)
	assert.Equal(t, model.RoleUser, turns[0].Role)
	assert.Equal(t, "ping", turns[0].Text())

	agent := turns[len(turns)-1]
	assert.Equal(t, model.RoleAgent, agent.Role)
	assert.Contains(t, agent.Text(), `"ping"`)
	require.Len(t, agent.Tools, 1)
	assert.Equal(t, "fake_search", agent.Tools[0].Name)
	assert.True(t, agent.Tools[0].Resolved)
	require.Len(t, agent.Artifacts, 1)
	assert.Equal(t, "analysis_result", agent.Artifacts[0].Name)
}

func TestSelectReplacesTranscriptFromStorage(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	dir := newTestDirectory(t, ts)
	ctx := context.Background()

	conv, err := dir.NewConversation(ctx)
	require.NoError(t, err)
	require.NoError(t, dir.Send(ctx, "hello"))
	waitFor(t, func() bool { return !dir.Streaming() })

	// Re-selecting rebuilds the transcript from the authoritative fetch.
	other, err := dir.NewConversation(ctx)
	require.NoError(t, err)
	assert.Equal(t, other.ContextID, dir.Selected())
	assert.Equal(t, 0, dir.Store().Len())

	require.NoError(t, dir.Select(ctx, conv.ContextID))
	assert.Equal(t, conv.ContextID, dir.Selected())
	turns := dir.Store().Turns()
	require.NotEmpty(t, turns)
	assert.Equal(t, model.RoleUser, turns[0].Role)
	assert.Equal(t, "hello", turns[0].Text())
	assert.False(t, dir.Streaming())
}

func TestSupersededSelectNeverLands(t *testing.T) {
	var (
		once    sync.Once
		entered = make(chan struct{})
		release = make(chan struct{})
		slowID  string
		mu      sync.Mutex
	)
	wrap := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			id := slowID
			mu.Unlock()
			if id != "" && r.Method == http.MethodGet && strings.Contains(r.URL.Path, id) {
				once.Do(func() { close(entered) })
				<-release
			}
			next.ServeHTTP(w, r)
		})
	}
	ts, _ := newTestServer(t, wrap)
	dir := newTestDirectory(t, ts)
	ctx := context.Background()

	client := a2a.NewClient(ts.URL, nil)
	convA, err := client.CreateConversation(ctx, model.CreateConversationRequest{})
	require.NoError(t, err)
	convB, err := client.CreateConversation(ctx, model.CreateConversationRequest{})
	require.NoError(t, err)

	// Seed A with history so a late-landing fetch would be visible.
	_, err = client.SendMessage(ctx, convA.ContextID, "seed")
	require.NoError(t, err)

	mu.Lock()
	slowID = convA.ContextID
	mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- dir.Select(ctx, convA.ContextID) }()
	<-entered

	require.NoError(t, dir.Select(ctx, convB.ContextID))
	close(release)
	require.NoError(t, <-done)

	// The stale fetch for A resolved after B was selected; it must not
	// have replaced B's state.
	assert.Equal(t, convB.ContextID, dir.Selected())
	assert.Equal(t, 0, dir.Store().Len())
}

func TestDeleteSelectedClearsSelection(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	dir := newTestDirectory(t, ts)
	ctx := context.Background()

	conv, err := dir.NewConversation(ctx)
	require.NoError(t, err)

	require.NoError(t, dir.Delete(ctx, conv.ContextID))
	assert.Equal(t, "", dir.Selected())
	assert.Nil(t, dir.Store())

	convs, err := dir.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, convs)

	// Deleting again is not an error.
	require.NoError(t, dir.Delete(ctx, conv.ContextID))
}

func TestDeleteOtherKeepsSelection(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	dir := newTestDirectory(t, ts)
	ctx := context.Background()

	other, err := dir.NewConversation(ctx)
	require.NoError(t, err)
	selected, err := dir.NewConversation(ctx)
	require.NoError(t, err)

	require.NoError(t, dir.Delete(ctx, other.ContextID))
	assert.Equal(t, selected.ContextID, dir.Selected())
	assert.NotNil(t, dir.Store())
}

func TestSendWithoutSelection(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	dir := newTestDirectory(t, ts)

	err := dir.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestSendFailureLowersIndicators(t *testing.T) {
	var failRPC bool
	var mu sync.Mutex
	wrap := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			fail := failRPC
			mu.Unlock()
			if fail && r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/rpc") {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	ts, _ := newTestServer(t, wrap)
	dir := newTestDirectory(t, ts)
	ctx := context.Background()

	_, err := dir.NewConversation(ctx)
	require.NoError(t, err)

	mu.Lock()
	failRPC = true
	mu.Unlock()

	err = dir.Send(ctx, "doomed")
	require.Error(t, err)

	store := dir.Store()
	assert.False(t, store.Thinking())
	assert.False(t, store.Streaming())

	// The optimistic user turn stays; nothing else was touched.
	turns := store.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, model.RoleUser, turns[0].Role)
	assert.Equal(t, "doomed", turns[0].Text())
}

func TestOnChangeFiresForStreamMutations(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	dir := newTestDirectory(t, ts)
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	dir.SetOnChange(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	_, err := dir.NewConversation(ctx)
	require.NoError(t, err)
	require.NoError(t, dir.Send(ctx, "notify me"))
	waitFor(t, func() bool { return !dir.Streaming() })

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, calls, 0)
}
