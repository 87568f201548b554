// internal/llm/json.go
package llm

import "strings"

// ExtractJSON strips markdown code fences the model tends to wrap JSON
// payloads in and returns the raw JSON text.
func ExtractJSON(output string) string {
	trimmed := strings.TrimSpace(output)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		return strings.TrimSpace(trimmed)
	}

	// Fall back to the outermost braces when the model adds prose
	// around the payload.
	start := strings.IndexAny(trimmed, "{[")
	if start < 0 {
		return trimmed
	}
	end := strings.LastIndexAny(trimmed, "}]")
	if end < start {
		return trimmed
	}
	return trimmed[start : end+1]
}
