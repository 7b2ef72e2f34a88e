// Package session reconstructs a consistent hierarchical view of a
// multi-agent tool-use session from its execution events: an ordered log of
// entries, a tree of agent invocations with nested steps, named-scope todo
// lists, and a deduplicated registry of loaded contextual resources.
//
// The core is an explicit reducer: (state, event) -> state', pure apart from
// the state it owns and never dependent on arrival timing. Feeding an event
// list one at a time therefore produces exactly the same final structure as
// replaying it in one batch pass, which is the central correctness property
// of the package.
//
// State is single-writer: events for one session must be applied
// sequentially. Different sessions are fully independent.
package session

import (
	"time"

	"github.com/flitsinc/go-transcript/internal/events"
)

// State is the per-session aggregate. The zero value is not usable; use
// NewState. Calls are owned exclusively by this state and are never handed
// out by reference; Snapshot returns copies.
type State struct {
	entries []entry
	calls   map[string]*ToolCall
	order   []string
	todos   todoState
	context contextRegistry
	diags   []Diagnostic
}

func NewState() *State {
	return &State{
		calls:   map[string]*ToolCall{},
		todos:   newTodoState(),
		context: newContextRegistry(),
	}
}

// Apply folds one event into the state. A malformed or out-of-order event
// degrades to a diagnostic; it never aborts aggregation of the rest of the
// session.
func (s *State) Apply(ev events.Event) {
	if err := ev.Validate(); err != nil {
		s.diag(DiagMalformedEvent, ev, err.Error())
		return
	}
	switch ev.Kind {
	case events.KindThinking:
		s.entries = append(s.entries, entry{
			id:        ev.ID,
			kind:      EntryThinking,
			timestamp: ev.Timestamp,
			text:      ev.Text,
		})
	case events.KindCallStart, events.KindAgentStart:
		s.registerStart(ev)
	case events.KindCallResult, events.KindAgentEnd:
		s.resolve(ev)
	case events.KindContext:
		if s.context.announce(ev.ContextCategory, ev.ContextName) {
			// Repeated announcements of the same resource stay out of
			// the timeline but remain tracked.
			s.entries = append(s.entries, entry{
				id:        ev.ID,
				kind:      EntryContext,
				timestamp: ev.Timestamp,
				category:  ev.ContextCategory,
				name:      ev.ContextName,
			})
		}
	case events.KindTodoUpdate:
		s.todos.apply(ev)
	}
}

// ApplyMessage folds one persisted message: its events in emission order,
// then any trailing context snapshot, then the narrated message text. Side
// effects are observed before the final response, matching how a turn is
// structured.
func (s *State) ApplyMessage(msg Message) {
	for _, ev := range msg.Events {
		s.Apply(ev)
	}
	if msg.Context != nil {
		s.context.merge(*msg.Context)
	}
	if msg.Text != "" {
		s.entries = append(s.entries, entry{
			id:        msg.ID,
			kind:      EntryMessage,
			timestamp: msg.CreatedAt,
			role:      msg.Role,
			text:      msg.Text,
		})
	}
}

func (s *State) appendCallEntry(ev events.Event, call *ToolCall) {
	s.entries = append(s.entries, entry{
		id:        ev.ID,
		kind:      EntryCall,
		timestamp: ev.Timestamp,
		callID:    call.ID,
	})
}

// Diagnostics returns a copy of the recovered anomalies so far.
func (s *State) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)
	return out
}

// Message is one ordered unit of a persisted session history: optional
// execution events, an optional trailing context snapshot, and optional
// narrated text.
type Message struct {
	ID        string                  `json:"id"`
	Role      string                  `json:"role,omitempty"`
	Text      string                  `json:"text,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
	Events    []events.Event          `json:"events,omitempty"`
	Context   *events.ContextSnapshot `json:"context,omitempty"`
}
