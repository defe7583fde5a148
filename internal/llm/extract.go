package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fenceJSONRe = regexp.MustCompile("(?m)^```json\\s*")
	fenceRe     = regexp.MustCompile("(?m)^```\\s*")
)

// ExtractJSON pulls a JSON object out of possibly fenced or noisy model
// output. Code fences are stripped, then the substring between the first
// '{' and the last '}' is parsed; when no braces are present the whole
// trimmed text is tried instead. Never fails: unparseable input degrades to
// a sentinel payload carrying the raw text so callers can surface the
// provider output instead of crashing the request.
func ExtractJSON(text string) map[string]any {
	cleaned := fenceJSONRe.ReplaceAllString(text, "")
	cleaned = fenceRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	candidate := cleaned
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start != -1 && end > start {
		candidate = cleaned[start : end+1]
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return map[string]any{
			"error": "JSON Parsing Failed",
			"raw":   cleaned,
		}
	}
	return parsed
}
