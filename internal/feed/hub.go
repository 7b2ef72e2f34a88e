// Package feed fans out freshly aggregated session views to live
// subscribers (websocket streams, in-process watchers). It carries no
// aggregation logic and holds no persistent state.
package feed

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/flitsinc/go-transcript/internal/session"
)

// Update is one published view refresh for a session.
type Update struct {
	SessionID string       `json:"sessionId"`
	View      session.View `json:"view"`
}

type Hub struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

type subscriber struct {
	sessionID string // empty subscribes to every session
	ch        chan Update
}

func NewHub() *Hub {
	return &Hub{subs: map[string]*subscriber{}}
}

// Subscribe returns a channel of updates for one session, or for all
// sessions when sessionID is empty. The channel closes when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, sessionID string) <-chan Update {
	ch := make(chan Update, 16)
	id := ulid.Make().String()

	sub := &subscriber{sessionID: sessionID, ch: ch}
	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Publish delivers the update to every matching subscriber. Slow consumers
// miss updates rather than blocking the ingest path; the next update carries
// the full view anyway.
func (h *Hub) Publish(update Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.sessionID != "" && sub.sessionID != update.SessionID {
			continue
		}
		select {
		case sub.ch <- update:
		default:
			// Drop if subscriber is slow.
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
