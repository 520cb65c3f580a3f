// Package session provides the process-wide directory of conversations:
// which one is selected, its transcript, and the single active feed
// session streaming into it.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/agentmesh/a2a-client/internal/a2a"
	"github.com/agentmesh/a2a-client/internal/event"
	"github.com/agentmesh/a2a-client/internal/feed"
	"github.com/agentmesh/a2a-client/internal/model"
	"github.com/agentmesh/a2a-client/internal/reconcile"
	"github.com/agentmesh/a2a-client/internal/transcript"
	"github.com/agentmesh/a2a-client/pkg/logger"
)

// ErrNoSelection is returned for operations that need a selected
// conversation when none is selected.
var ErrNoSelection = errors.New("no conversation selected")

// Directory owns the active conversation state. It is the sole owner of
// the active feed session: at most one exists at any time, and opening
// a new one always closes the previous one first.
//
// Every async completion (conversation fetch, message acknowledgement,
// feed callback) is guarded by a generation counter so that work
// belonging to a superseded selection can never mutate current state.
type Directory struct {
	client *a2a.Client
	log    *logger.Logger

	mu       sync.Mutex
	gen      uint64
	selected string
	store    *transcript.Store
	feed     *feed.Session
	onChange func()
}

// NewDirectory creates a directory backed by the given collaborator.
func NewDirectory(client *a2a.Client, log *logger.Logger) *Directory {
	if log == nil {
		log = logger.Nop()
	}
	return &Directory{client: client, log: log.Named("session")}
}

// SetOnChange registers the observer notified after every transcript
// mutation of the selected conversation.
func (d *Directory) SetOnChange(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	if d.store != nil {
		d.store.SetOnChange(fn)
	}
	d.mu.Unlock()
}

// Selected returns the selected conversation id, or "".
func (d *Directory) Selected() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected
}

// Store returns the transcript store of the selected conversation, or
// nil when nothing is selected.
func (d *Directory) Store() *transcript.Store {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store
}

// Streaming reports whether the selected conversation has a live task.
func (d *Directory) Streaming() bool {
	d.mu.Lock()
	store := d.store
	d.mu.Unlock()
	return store != nil && store.Streaming()
}

// ListConversations fetches the conversation summaries from storage.
func (d *Directory) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	return d.client.ListConversations(ctx)
}

// NewConversation creates a conversation and selects it.
func (d *Directory) NewConversation(ctx context.Context) (*model.Conversation, error) {
	conv, err := d.client.CreateConversation(ctx, model.CreateConversationRequest{})
	if err != nil {
		return nil, err
	}
	if err := d.Select(ctx, conv.ContextID); err != nil {
		return nil, err
	}
	return conv, nil
}

// Select makes the given conversation current. The previous feed
// session is closed unconditionally, authoritative state is fetched
// from storage, the transcript is replaced wholesale, and when the
// fetched state reports an outstanding task a fresh feed session is
// opened for it. A Select superseded by a later Select is a no-op.
func (d *Directory) Select(ctx context.Context, contextID string) error {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.closeFeedLocked()
	d.mu.Unlock()

	detail, err := d.client.GetConversation(ctx, contextID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		// A newer selection won; this fetch result must not land.
		return nil
	}
	if err != nil {
		return err
	}

	store := transcript.New()
	store.SetOnChange(d.onChange)
	store.Replace(transcript.FromMessages(detail.Messages), detail.IsStreaming)

	d.selected = contextID
	d.store = store

	if task := detail.ActiveTask(); task != nil {
		d.attachFeedLocked(task.ID)
	} else {
		store.SetStreaming(false)
	}

	d.log.Info("conversation selected",
		zap.String("context_id", contextID),
		zap.Int("turns", store.Len()),
	)
	return nil
}

// Delete closes any open feed session, requests deletion from storage,
// and clears the selection when the deleted conversation was selected.
func (d *Directory) Delete(ctx context.Context, contextID string) error {
	d.mu.Lock()
	d.gen++
	d.closeFeedLocked()
	if d.selected == contextID {
		d.selected = ""
		d.store = nil
	} else if d.store != nil {
		d.store.SetStreaming(false)
	}
	d.mu.Unlock()

	if err := d.client.DeleteConversation(ctx, contextID); err != nil {
		return err
	}
	d.log.Info("conversation deleted", zap.String("context_id", contextID))
	return nil
}

// Send submits a user message on the selected conversation. The user
// turn and a loading indicator are applied optimistically; a rejected
// submission takes the indicator back down and leaves the transcript
// otherwise unchanged.
func (d *Directory) Send(ctx context.Context, text string) error {
	d.mu.Lock()
	if d.selected == "" {
		d.mu.Unlock()
		return ErrNoSelection
	}
	gen := d.gen
	contextID := d.selected
	store := d.store
	store.AppendTurn(transcript.Turn{
		Role:  model.RoleUser,
		Parts: []transcript.Part{{Type: transcript.PartTypeText, Text: text}},
	})
	store.SetStreaming(true)
	store.SetThinking(true)
	d.mu.Unlock()

	res, err := d.client.SendMessage(ctx, contextID, text)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		return nil
	}
	if err != nil {
		store.SetThinking(false)
		store.SetStreaming(false)
		return err
	}

	d.attachFeedLocked(res.Task.ID)
	return nil
}

// Close tears down the active feed session, if any.
func (d *Directory) Close() {
	d.mu.Lock()
	d.gen++
	d.closeFeedLocked()
	d.mu.Unlock()
}

// attachFeedLocked opens a feed session for the task, replacing any
// previous one. The caller holds d.mu. The prior session is always
// fully closed before the new subscription is issued, so two sessions
// can never write into the same transcript.
func (d *Directory) attachFeedLocked(taskID string) {
	d.closeFeedLocked()
	d.gen++
	gen := d.gen

	rec := reconcile.New(d.store, d.log)
	store := d.store
	store.SetStreaming(true)

	onEvent := func(ev event.Event) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.gen != gen {
			return
		}
		rec.Apply(ev)
	}
	onTerminal := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.gen != gen {
			return
		}
		store.SetStreaming(false)
		d.feed = nil
	}

	d.feed = feed.Open(
		context.Background(),
		d.client.StreamHTTPClient(),
		d.client.StreamURL(taskID),
		taskID,
		onEvent,
		onTerminal,
		d.log,
	)
}

// closeFeedLocked closes the active feed session. Closing when none is
// open is a no-op. The caller holds d.mu.
func (d *Directory) closeFeedLocked() {
	if d.feed != nil {
		d.feed.Close()
		d.feed = nil
	}
}
