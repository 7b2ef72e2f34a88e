package api

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/flitsinc/go-transcript/internal/session"
	"github.com/flitsinc/go-transcript/internal/state"
)

// Registry owns the live aggregators, one per session. The aggregation core
// is single-writer; the registry serializes the HTTP ingest path with one
// mutex per session so concurrent producers cannot interleave feeds.
type Registry struct {
	store *state.Store

	mu       sync.Mutex
	sessions map[string]*liveSession
}

type liveSession struct {
	mu  sync.Mutex
	agg *session.Aggregator
}

func NewRegistry(store *state.Store) *Registry {
	return &Registry{store: store, sessions: map[string]*liveSession{}}
}

func (r *Registry) get(sessionID string) *liveSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls, ok := r.sessions[sessionID]
	if !ok {
		ls = &liveSession{}
		r.sessions[sessionID] = ls
	}
	return ls
}

// Ingest persists one message and feeds it to the session's live aggregator,
// returning the updated view. A session seen for the first time since process
// start is rehydrated from its persisted history, so live state and batch
// replay stay convergent across restarts.
func (r *Registry) Ingest(ctx context.Context, sessionID string, msg session.Message) (session.View, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return session.View{}, fmt.Errorf("session id is required")
	}
	if _, err := r.store.EnsureSession(ctx, sessionID, ""); err != nil {
		return session.View{}, err
	}

	ls := r.get(sessionID)
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.agg == nil {
		history, err := r.store.LoadMessages(ctx, sessionID)
		if err != nil {
			return session.View{}, err
		}
		ls.agg = session.NewAggregator()
		for _, past := range history {
			ls.agg.FeedMessage(past)
		}
	}

	stored, err := r.store.AppendMessage(ctx, sessionID, msg)
	if err != nil {
		return session.View{}, err
	}
	ls.agg.FeedMessage(stored)
	return ls.agg.Snapshot(), nil
}

// View returns the current view of a session: the live snapshot when an
// aggregator is active, otherwise a batch reconstruction from the store.
func (r *Registry) View(ctx context.Context, sessionID string) (session.View, error) {
	if _, err := r.store.GetSession(ctx, sessionID); err != nil {
		return session.View{}, err
	}

	r.mu.Lock()
	ls := r.sessions[sessionID]
	r.mu.Unlock()

	if ls != nil {
		ls.mu.Lock()
		agg := ls.agg
		if agg != nil {
			view := agg.Snapshot()
			ls.mu.Unlock()
			return view, nil
		}
		ls.mu.Unlock()
	}

	history, err := r.store.LoadMessages(ctx, sessionID)
	if err != nil {
		return session.View{}, err
	}
	return session.Reconstruct(history), nil
}

// Diagnostics returns the anomalies recovered for a session.
func (r *Registry) Diagnostics(ctx context.Context, sessionID string) ([]session.Diagnostic, error) {
	view, err := r.View(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return view.Diagnostics, nil
}
