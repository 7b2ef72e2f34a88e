package session

import (
	"testing"

	"github.com/flitsinc/go-transcript/internal/events"
)

func nestedStart(id, callID, parentID, tool string, offset int) events.Event {
	ev := callStart(id, callID, tool, offset)
	ev.ParentCallID = parentID
	return ev
}

func TestNestedCallBecomesStep(t *testing.T) {
	state := NewState()
	state.Apply(callStart("e1", "1", "Task", 0))
	state.Apply(nestedStart("e2", "2", "1", "Grep", 1))
	state.Apply(callResult("e3", "2", "3 matches", 2))

	view := state.Snapshot()
	if len(view.Entries) != 1 {
		t.Fatalf("nested call must not be a top-level entry, got %d entries", len(view.Entries))
	}
	agent := view.Entries[0].Call
	if agent.Category != events.CategoryAgent {
		t.Fatalf("Task call should classify as agent, got %s", agent.Category)
	}
	if len(agent.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(agent.Steps))
	}
	step := agent.Steps[0]
	if step.ID != "2" || step.Name != "Grep" {
		t.Fatalf("unexpected step: %+v", step)
	}
	if step.Status != CallCompleted || step.Output != "3 matches" {
		t.Fatalf("step not resolved: %+v", step)
	}
	// Nested calls still appear in the flat history.
	if len(view.ToolHistory) != 2 {
		t.Fatalf("expected 2 calls in history, got %d", len(view.ToolHistory))
	}
}

func TestDeepNestingChain(t *testing.T) {
	state := NewState()
	state.Apply(callStart("e1", "A", "Task", 0))
	state.Apply(nestedStart("e2", "B", "A", "Task", 1))
	state.Apply(nestedStart("e3", "C", "B", "Task", 2))
	state.Apply(nestedStart("e4", "D", "C", "Read", 3))

	view := state.Snapshot()
	if len(view.Entries) != 1 {
		t.Fatalf("expected exactly one top-level entry, got %d", len(view.Entries))
	}

	node := view.Entries[0].Call
	for _, want := range []string{"B", "C", "D"} {
		if len(node.Steps) != 1 {
			t.Fatalf("expected one step under %s, got %d", node.ID, len(node.Steps))
		}
		node = node.Steps[0]
		if node.ID != want {
			t.Fatalf("expected %s, got %s", want, node.ID)
		}
	}
	if len(node.Steps) != 0 {
		t.Fatalf("leaf call should have no steps")
	}
}

func TestStepsKeepEmissionOrder(t *testing.T) {
	state := NewState()
	state.Apply(callStart("e1", "A", "Task", 0))
	state.Apply(nestedStart("e2", "B", "A", "Read", 1))
	state.Apply(nestedStart("e3", "C", "A", "Grep", 2))
	state.Apply(nestedStart("e4", "D", "A", "Bash", 3))

	view := state.Snapshot()
	steps := view.Entries[0].Call.Steps
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	for i, want := range []string{"B", "C", "D"} {
		if steps[i].ID != want {
			t.Fatalf("step %d: expected %s, got %s", i, want, steps[i].ID)
		}
	}
}

func TestSelfParentingTreatedAsTopLevel(t *testing.T) {
	state := NewState()
	state.Apply(nestedStart("e1", "1", "1", "Read", 0))

	view := state.Snapshot()
	if len(view.Entries) != 1 || view.Entries[0].Call == nil {
		t.Fatalf("self-parenting call must surface top-level")
	}
	if view.Entries[0].Call.ParentID != "" {
		t.Fatalf("self parent must be cleared")
	}
	diags := state.Diagnostics()
	if len(diags) != 1 || diags[0].Code != DiagSelfParent {
		t.Fatalf("expected self_parent diagnostic, got %v", diags)
	}
}

func TestOrphanedNestingSurfacesTopLevel(t *testing.T) {
	state := NewState()
	state.Apply(nestedStart("e1", "2", "missing", "Grep", 0))

	view := state.Snapshot()
	if len(view.Entries) != 1 {
		t.Fatalf("orphaned call must not be dropped")
	}
	call := view.Entries[0].Call
	if !call.Orphaned {
		t.Fatalf("expected orphan marker")
	}
	diags := state.Diagnostics()
	if len(diags) != 1 || diags[0].Code != DiagUnresolvedReference {
		t.Fatalf("expected unresolved_reference diagnostic, got %v", diags)
	}
}

func TestAgentEndResolvesDelegation(t *testing.T) {
	state := NewState()
	state.Apply(events.Event{ID: "e1", Kind: events.KindAgentStart, Timestamp: at(0), CallID: "a1", Input: map[string]any{"prompt": "review the diff"}})
	state.Apply(nestedStart("e2", "b1", "a1", "Read", 1))
	state.Apply(events.Event{ID: "e3", Kind: events.KindAgentEnd, Timestamp: at(2), CallID: "a1", Output: "done"})

	view := state.Snapshot()
	agent := view.Entries[0].Call
	if agent.Category != events.CategoryAgent {
		t.Fatalf("agent_start should classify as agent, got %s", agent.Category)
	}
	if agent.Status != CallCompleted || agent.Output != "done" {
		t.Fatalf("agent_end did not resolve the call: %+v", agent)
	}
	if agent.Summary != "review the diff" {
		t.Fatalf("unexpected summary: %q", agent.Summary)
	}
	// The child was abandoned; it stays running inside the step list.
	if agent.Steps[0].Status != CallRunning {
		t.Fatalf("abandoned step must stay running")
	}
}
