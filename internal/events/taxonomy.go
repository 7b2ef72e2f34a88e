package events

import "strings"

// Category is the semantic classification of a tool invocation.
type Category string

const (
	CategoryTool            Category = "tool"
	CategoryAgent           Category = "agent"
	CategorySkill           Category = "skill"
	CategoryCommand         Category = "command"
	CategoryExternalService Category = "external_service"
	CategoryContext         Category = "context"
)

// mcpPrefix marks tools exposed by an external service integration.
const mcpPrefix = "mcp__"

// Classify maps an event kind and tool name to a semantic category.
// Pure; the set of tool names is open-ended, so anything unrecognized
// is a plain tool.
func Classify(kind Kind, toolName string) Category {
	if kind == KindAgentStart || kind == KindAgentEnd {
		return CategoryAgent
	}
	if kind == KindContext {
		return CategoryContext
	}
	name := strings.TrimSpace(toolName)
	switch {
	case name == "Task":
		return CategoryAgent
	case name == "Skill":
		return CategorySkill
	case name == "SlashCommand":
		return CategoryCommand
	case strings.HasPrefix(name, mcpPrefix):
		return CategoryExternalService
	}
	return CategoryTool
}
