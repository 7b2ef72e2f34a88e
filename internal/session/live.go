package session

import "github.com/flitsinc/go-transcript/internal/events"

// Aggregator is the incremental entry point: feed events as they arrive and
// snapshot the evolving view between feeds. It holds no goroutines, timers,
// or external resources; abandoning a live session is simply dropping the
// Aggregator. Not safe for concurrent use; the session owner feeds it from
// a single goroutine, or serializes access itself.
type Aggregator struct {
	state *State
}

func NewAggregator() *Aggregator {
	return &Aggregator{state: NewState()}
}

// Feed applies one execution event.
func (a *Aggregator) Feed(ev events.Event) {
	a.state.Apply(ev)
}

// FeedMessage applies one complete message (events, trailing snapshot,
// narrated text).
func (a *Aggregator) FeedMessage(msg Message) {
	a.state.ApplyMessage(msg)
}

// Snapshot returns the current view. The copy is independent of later feeds.
func (a *Aggregator) Snapshot() View {
	return a.state.Snapshot()
}

// Pending returns the calls still running, for surfacing interrupted work.
func (a *Aggregator) Pending() []*ToolCall {
	return a.state.Pending()
}

// Diagnostics returns the anomalies recovered so far.
func (a *Aggregator) Diagnostics() []Diagnostic {
	return a.state.Diagnostics()
}
