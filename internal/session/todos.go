package session

import "github.com/flitsinc/go-transcript/internal/events"

// todoState holds the global todo list plus per-call private lists. Updates
// are whole-list replacements scoped by the originating call; the producer
// always sends the complete current list, never a patch. Scopes are retained
// for the lifetime of the session even if their call never completes.
type todoState struct {
	global  []events.TodoItem
	byScope map[string][]events.TodoItem
}

func newTodoState() todoState {
	return todoState{byScope: map[string][]events.TodoItem{}}
}

func (t *todoState) apply(ev events.Event) {
	list := make([]events.TodoItem, len(ev.Todos))
	copy(list, ev.Todos)
	if ev.ScopeID == "" {
		t.global = list
		return
	}
	t.byScope[ev.ScopeID] = list
}

func (t *todoState) snapshot() TodoView {
	view := TodoView{
		Global:  make([]events.TodoItem, len(t.global)),
		ByScope: make(map[string][]events.TodoItem, len(t.byScope)),
	}
	copy(view.Global, t.global)
	for scope, list := range t.byScope {
		items := make([]events.TodoItem, len(list))
		copy(items, list)
		view.ByScope[scope] = items
	}
	return view
}
