package session

import (
	"time"

	"github.com/flitsinc/go-transcript/internal/events"
)

// CallStatus is the lifecycle state of a tool call.
type CallStatus string

const (
	CallRunning   CallStatus = "running"
	CallCompleted CallStatus = "completed"
	CallFailed    CallStatus = "failed"
)

// ToolCall is one invocation of a tool or delegated sub-agent. Created when
// its start event arrives and mutated only by the matching result event; a
// call left running at stream end stays running so the rendering layer can
// show it as incomplete. Calls are never removed from a session.
type ToolCall struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category events.Category `json:"category"`
	Input    map[string]any  `json:"input,omitempty"`
	Summary  string          `json:"summary,omitempty"`
	Output   string          `json:"output,omitempty"`
	Error    string          `json:"error,omitempty"`
	Status   CallStatus      `json:"status"`
	ParentID string          `json:"parentId,omitempty"`

	// Orphaned marks a nested call whose parent was never observed; it is
	// surfaced top-level instead of being dropped.
	Orphaned bool `json:"orphaned,omitempty"`

	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`

	// Steps are calls nested under this one when it represents a
	// sub-agent delegation. Depth is unbounded.
	Steps []*ToolCall `json:"steps,omitempty"`
}

// clone returns a deep copy of the call, including its step tree. A call
// appears under at most one parent, so the walk terminates.
func (c *ToolCall) clone() *ToolCall {
	out := *c
	if c.Input != nil {
		out.Input = make(map[string]any, len(c.Input))
		for k, v := range c.Input {
			out.Input[k] = v
		}
	}
	if c.EndedAt != nil {
		ended := *c.EndedAt
		out.EndedAt = &ended
	}
	if len(c.Steps) > 0 {
		out.Steps = make([]*ToolCall, 0, len(c.Steps))
		for _, step := range c.Steps {
			out.Steps = append(out.Steps, step.clone())
		}
	} else {
		out.Steps = nil
	}
	return &out
}

// cloneFlat returns a copy without the step tree, used for the flat
// chronological tool history.
func (c *ToolCall) cloneFlat() *ToolCall {
	out := c.clone()
	out.Steps = nil
	return out
}

func (s *State) registerStart(ev events.Event) {
	callID := ev.CallID
	if _, exists := s.calls[callID]; exists {
		s.diag(DiagDuplicateStart, ev, "call id already registered; keeping the earlier call")
		return
	}

	name := ev.ToolName
	if name == "" {
		// agent_start events may omit the tool name; the delegation
		// itself is the call.
		name = "Agent"
	}

	call := &ToolCall{
		ID:        callID,
		Name:      name,
		Category:  events.Classify(ev.Kind, ev.ToolName),
		Input:     ev.Input,
		Summary:   events.InputSummary(ev.Input),
		Status:    CallRunning,
		ParentID:  ev.ParentCallID,
		StartedAt: ev.Timestamp,
	}

	switch {
	case ev.ParentCallID == "":
		s.appendCallEntry(ev, call)
	case ev.ParentCallID == callID:
		call.ParentID = ""
		s.diag(DiagSelfParent, ev, "call declares itself as parent; treating as top-level")
		s.appendCallEntry(ev, call)
	default:
		parent, ok := s.calls[ev.ParentCallID]
		if !ok {
			// Losing visibility of work performed is worse than
			// misplacing it in the hierarchy.
			call.Orphaned = true
			s.diag(DiagUnresolvedReference, ev, "parent call never observed; surfacing top-level")
			s.appendCallEntry(ev, call)
			break
		}
		parent.Steps = append(parent.Steps, call)
	}

	s.calls[callID] = call
	s.order = append(s.order, callID)
}

func (s *State) resolve(ev events.Event) {
	call, ok := s.calls[ev.CallID]
	if !ok {
		// A call cannot be fabricated retroactively; downstream
		// consumers may already have rendered the entry list.
		s.diag(DiagUnresolvedReference, ev, "result for a call that was never started; dropped")
		return
	}
	if call.Status != CallRunning {
		s.diag(DiagDuplicateResult, ev, "call already resolved; later result ignored")
		return
	}
	if ev.Error != "" {
		call.Status = CallFailed
		call.Error = ev.Error
	} else {
		call.Status = CallCompleted
	}
	call.Output = ev.Output
	ended := ev.Timestamp
	call.EndedAt = &ended
}

// Pending returns copies of all calls still running, in start order. Used at
// stream end to surface interrupted work.
func (s *State) Pending() []*ToolCall {
	var out []*ToolCall
	for _, id := range s.order {
		if call := s.calls[id]; call.Status == CallRunning {
			out = append(out, call.cloneFlat())
		}
	}
	return out
}
