package session

import (
	"sort"

	"github.com/flitsinc/go-transcript/internal/events"
)

// contextRegistry accumulates distinct context announcements per category.
// Membership is idempotent: only structurally identical names deduplicate,
// semantic similarity is not considered.
type contextRegistry struct {
	services map[string]struct{}
	rules    map[string]struct{}
	skills   map[string]struct{}
}

func newContextRegistry() contextRegistry {
	return contextRegistry{
		services: map[string]struct{}{},
		rules:    map[string]struct{}{},
		skills:   map[string]struct{}{},
	}
}

func (r *contextRegistry) set(category events.ContextCategory) map[string]struct{} {
	switch category {
	case events.ContextExternalService:
		return r.services
	case events.ContextRule:
		return r.rules
	case events.ContextSkill:
		return r.skills
	}
	return nil
}

// announce adds name to the category set and reports whether it was new.
// The caller emits a visible log entry only for first-seen names.
func (r *contextRegistry) announce(category events.ContextCategory, name string) bool {
	set := r.set(category)
	if set == nil {
		return false
	}
	if _, seen := set[name]; seen {
		return false
	}
	set[name] = struct{}{}
	return true
}

// merge unions a point-in-time snapshot into the registry without emitting
// log entries for already-known names.
func (r *contextRegistry) merge(snap events.ContextSnapshot) {
	for _, name := range snap.ExternalServices {
		r.services[name] = struct{}{}
	}
	for _, name := range snap.Rules {
		r.rules[name] = struct{}{}
	}
	for _, name := range snap.Skills {
		r.skills[name] = struct{}{}
	}
}

func (r *contextRegistry) snapshot() ContextView {
	return ContextView{
		ExternalServices: sortedNames(r.services),
		Rules:            sortedNames(r.rules),
		Skills:           sortedNames(r.skills),
	}
}

func sortedNames(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
