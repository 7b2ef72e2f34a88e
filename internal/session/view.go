package session

import (
	"time"

	"github.com/flitsinc/go-transcript/internal/events"
)

// EntryKind discriminates top-level log entries.
type EntryKind string

const (
	EntryMessage  EntryKind = "message"
	EntryThinking EntryKind = "thinking"
	EntryContext  EntryKind = "context"
	EntryCall     EntryKind = "call"
)

// LogEntry is one user-facing line in the reconstructed timeline. Entry ids
// equal the originating event or message id, so the ordered id sequence is
// stable under replay. Nested calls never appear here; they live inside
// their ancestor's step list.
type LogEntry struct {
	ID        string    `json:"id"`
	Kind      EntryKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	Role string `json:"role,omitempty"`
	Text string `json:"text,omitempty"`

	ContextCategory events.ContextCategory `json:"contextCategory,omitempty"`
	ContextName     string                 `json:"contextName,omitempty"`

	Call *ToolCall `json:"call,omitempty"`
}

// TodoView is the immutable todo snapshot for rendering.
type TodoView struct {
	Global  []events.TodoItem            `json:"global"`
	ByScope map[string][]events.TodoItem `json:"byScope"`
}

// ContextView lists the distinct contextual resources loaded during the
// session, sorted per category.
type ContextView struct {
	ExternalServices []string `json:"externalServices"`
	Rules            []string `json:"rules"`
	Skills           []string `json:"skills"`
}

// View is the reconstructed session for the rendering layer. It is a deep
// copy: mutating it never touches aggregator state.
type View struct {
	Entries     []LogEntry   `json:"entries"`
	Todos       TodoView     `json:"todos"`
	Context     ContextView  `json:"context"`
	ToolHistory []*ToolCall  `json:"toolHistory"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// entry is the internal timeline record; call entries resolve their call
// from the arena at snapshot time.
type entry struct {
	id        string
	kind      EntryKind
	timestamp time.Time
	role      string
	text      string
	category  events.ContextCategory
	name      string
	callID    string
}

// Snapshot materializes the current aggregate state into a View.
func (s *State) Snapshot() View {
	view := View{
		Entries: make([]LogEntry, 0, len(s.entries)),
		Todos:   s.todos.snapshot(),
		Context: s.context.snapshot(),
	}
	for _, e := range s.entries {
		out := LogEntry{
			ID:              e.id,
			Kind:            e.kind,
			Timestamp:       e.timestamp,
			Role:            e.role,
			Text:            e.text,
			ContextCategory: e.category,
			ContextName:     e.name,
		}
		if e.callID != "" {
			out.Call = s.calls[e.callID].clone()
		}
		view.Entries = append(view.Entries, out)
	}
	view.ToolHistory = make([]*ToolCall, 0, len(s.order))
	for _, id := range s.order {
		view.ToolHistory = append(view.ToolHistory, s.calls[id].cloneFlat())
	}
	if len(s.diags) > 0 {
		view.Diagnostics = make([]Diagnostic, len(s.diags))
		copy(view.Diagnostics, s.diags)
	}
	return view
}
