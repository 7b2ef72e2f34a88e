package events

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates execution events emitted by the orchestrator.
type Kind string

const (
	KindThinking   Kind = "thinking"
	KindCallStart  Kind = "call_start"
	KindCallResult Kind = "call_result"
	KindContext    Kind = "context"
	KindAgentStart Kind = "agent_start"
	KindAgentEnd   Kind = "agent_end"
	KindTodoUpdate Kind = "todo_update"
)

// ContextCategory names the kind of contextual resource a context event
// announces.
type ContextCategory string

const (
	ContextExternalService ContextCategory = "external_service"
	ContextRule            ContextCategory = "rule"
	ContextSkill           ContextCategory = "skill"
)

// TodoStatus is the lifecycle state of a single todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// TodoItem is one entry of a whole-list todo replacement.
type TodoItem struct {
	Content string     `json:"content"`
	Status  TodoStatus `json:"status"`
}

// ContextSnapshot is a point-in-time summary of contextual resources,
// carried by persisted messages when discrete context events were not
// recorded separately.
type ContextSnapshot struct {
	ExternalServices []string `json:"externalServices,omitempty"`
	Rules            []string `json:"rules,omitempty"`
	Skills           []string `json:"skills,omitempty"`
}

// Event is one atomic, timestamped fact emitted during an agent session.
// Field names follow the producer's wire contract. Events are immutable
// once ingested; the aggregator never mutates them in place.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Call-related fields (call_start, call_result, agent_start, agent_end).
	CallID       string         `json:"callId,omitempty"`
	ParentCallID string         `json:"parentCallId,omitempty"`
	ToolName     string         `json:"toolName,omitempty"`
	Input        map[string]any `json:"input,omitempty"`
	Output       string         `json:"output,omitempty"`
	Error        string         `json:"error,omitempty"`

	// Thinking fragment.
	Text string `json:"text,omitempty"`

	// Context announcement.
	ContextCategory ContextCategory `json:"contextCategory,omitempty"`
	ContextName     string          `json:"contextName,omitempty"`

	// Todo replacement; empty ScopeID means the global list.
	ScopeID string     `json:"scopeId,omitempty"`
	Todos   []TodoItem `json:"todos,omitempty"`
}

// IsCallKind reports whether the event references a tool call.
func (k Kind) IsCallKind() bool {
	switch k {
	case KindCallStart, KindCallResult, KindAgentStart, KindAgentEnd:
		return true
	}
	return false
}

// IsStartKind reports whether the event opens a new call.
func (k Kind) IsStartKind() bool {
	return k == KindCallStart || k == KindAgentStart
}

// Validate checks that the event carries the fields its kind requires.
// A failing event is dropped by the aggregator with a diagnostic rather
// than aborting reconstruction.
func (e Event) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("event id is required")
	}
	switch e.Kind {
	case KindThinking:
		if strings.TrimSpace(e.Text) == "" {
			return fmt.Errorf("thinking event %s has no text", e.ID)
		}
	case KindCallStart, KindAgentStart:
		if strings.TrimSpace(e.CallID) == "" {
			return fmt.Errorf("%s event %s has no call id", e.Kind, e.ID)
		}
		if strings.TrimSpace(e.ToolName) == "" && e.Kind == KindCallStart {
			return fmt.Errorf("call_start event %s has no tool name", e.ID)
		}
	case KindCallResult, KindAgentEnd:
		if strings.TrimSpace(e.CallID) == "" {
			return fmt.Errorf("%s event %s has no call id", e.Kind, e.ID)
		}
	case KindContext:
		if e.ContextCategory == "" || strings.TrimSpace(e.ContextName) == "" {
			return fmt.Errorf("context event %s is missing category or name", e.ID)
		}
		switch e.ContextCategory {
		case ContextExternalService, ContextRule, ContextSkill:
		default:
			return fmt.Errorf("context event %s has unknown category %q", e.ID, e.ContextCategory)
		}
	case KindTodoUpdate:
		// Scope and items are both optional: empty scope targets the
		// global list, an empty list clears the scope.
	default:
		return fmt.Errorf("event %s has unknown kind %q", e.ID, e.Kind)
	}
	return nil
}
