package events

import (
	"sort"
	"strings"
)

// summaryKeys are checked in order when extracting a display summary from
// a tool input payload. Tool input shapes are open-ended and owned by the
// producer, so extraction is defensive: named fields first, then any
// string-valued field.
var summaryKeys = []string{
	"path", "file_path", "command", "pattern", "query", "url",
	"description", "prompt", "content",
}

const maxSummaryLen = 120

// InputSummary extracts a short human-readable summary from an opaque tool
// input payload. Returns "" when nothing usable is present.
func InputSummary(input map[string]any) string {
	if len(input) == 0 {
		return ""
	}
	for _, key := range summaryKeys {
		if v, ok := input[key]; ok {
			if s := asDisplayString(v); s != "" {
				return truncate(s)
			}
		}
	}
	// Check remaining keys in sorted order so the same input always yields
	// the same summary regardless of map iteration order.
	keys := make([]string, 0, len(input))
	for key := range input {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if s := asDisplayString(input[key]); s != "" {
			return truncate(s)
		}
	}
	return ""
}

func asDisplayString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func truncate(s string) string {
	if len(s) <= maxSummaryLen {
		return s
	}
	cut := s[:maxSummaryLen]
	// Avoid splitting a multi-byte rune at the cut point.
	for len(cut) > 0 && cut[len(cut)-1]&0xC0 == 0x80 {
		cut = cut[:len(cut)-1]
	}
	return cut + "…"
}
