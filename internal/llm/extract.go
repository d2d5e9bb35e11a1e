package llm

import (
	"encoding/json"
	"strings"
)

// Normalizer is implemented by stage artifact types that can repair their
// own field-level shape (nil lists, untrimmed strings).
type Normalizer interface {
	Normalize()
}

// ParseOutcome says which path produced the extracted value.
type ParseOutcome int

const (
	ParsedDirect ParseOutcome = iota
	ParsedEmbedded
	UsedFallback
)

func (o ParseOutcome) String() string {
	switch o {
	case ParsedDirect:
		return "direct"
	case ParsedEmbedded:
		return "embedded"
	default:
		return "fallback"
	}
}

// Extract turns raw model text into a typed value. It tries a direct parse
// of the whole text, then the last top-level JSON object embedded in it,
// and finally the fallback factory. It never fails: the caller always gets
// a value whose Normalize (if implemented) has run.
func Extract[T any](raw string, fallback func() *T) (*T, ParseOutcome) {
	cleaned := stripCodeFences(strings.TrimSpace(raw))

	var direct T
	if err := json.Unmarshal([]byte(cleaned), &direct); err == nil {
		return normalize(&direct), ParsedDirect
	}

	if block := lastJSONObject(cleaned); block != "" {
		var embedded T
		if err := json.Unmarshal([]byte(block), &embedded); err == nil {
			return normalize(&embedded), ParsedEmbedded
		}
	}

	return normalize(fallback()), UsedFallback
}

func normalize[T any](v *T) *T {
	if n, ok := any(v).(Normalizer); ok {
		n.Normalize()
	}
	return v
}

// lastJSONObject finds the last complete top-level {...} block in s by
// scanning backwards from the final closing brace and balancing braces.
// Returns "" when no valid object ends there.
func lastJSONObject(s string) string {
	end := strings.LastIndex(s, "}")
	if end == -1 {
		return ""
	}
	balance := 0
	for i := end; i >= 0; i-- {
		switch s[i] {
		case '}':
			balance++
		case '{':
			balance--
		}
		if balance == 0 && s[i] == '{' {
			candidate := s[i : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate
			}
			// A balanced pair that is not valid JSON means the braces sit
			// inside strings or the object is garbled; nothing ends here.
			return ""
		}
	}
	return ""
}

// stripCodeFences unwraps ```json ... ``` style markdown fences.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	firstNewline := strings.Index(trimmed, "\n")
	if firstNewline == -1 {
		return trimmed
	}
	rest := trimmed[firstNewline+1:]
	if lastFence := strings.LastIndex(rest, "```"); lastFence != -1 {
		rest = rest[:lastFence]
	}
	return strings.TrimSpace(rest)
}
