// Package postprocess turns free-form LLM output into valid anketa values.
// Every operation here is pure; persistence stays with the caller.
package postprocess

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxRepairAttempts caps the escalation ladder in Repair.
const maxRepairAttempts = 5

// JSONRepairError is returned when no repair attempt produced valid JSON.
// The original text is truncated for diagnostics.
type JSONRepairError struct {
	Attempts int
	Input    string
}

func (e *JSONRepairError) Error() string {
	return fmt.Sprintf("json repair failed after %d attempts: %s", e.Attempts, e.Input)
}

// Repair parses a string that may be pure JSON, JSON in a fenced code block,
// JSON with trailing commentary, or JSON with smart quotes and trailing
// commas. Repairs are applied with increasing aggression, capped at five
// attempts.
func Repair(raw string) (map[string]any, error) {
	candidates := []func(string) string{
		func(s string) string { return s },
		stripCodeFences,
		func(s string) string { return extractObject(stripCodeFences(s)) },
		func(s string) string { return normalizeQuotes(extractObject(stripCodeFences(s))) },
		func(s string) string {
			return stripTrailingCommas(normalizeQuotes(extractObject(stripCodeFences(s))))
		},
	}

	attempts := 0
	for _, transform := range candidates {
		if attempts >= maxRepairAttempts {
			break
		}
		attempts++

		candidate := strings.TrimSpace(transform(raw))
		if candidate == "" {
			continue
		}

		var out map[string]any
		if err := json.Unmarshal([]byte(candidate), &out); err == nil {
			return out, nil
		}
	}

	return nil, &JSONRepairError{Attempts: attempts, Input: truncate(raw, 500)}
}

// stripCodeFences removes a leading ```json / ``` wrapper if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Language tag on the opening fence.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}") {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// extractObject locates the outermost balanced {…} span, ignoring braces
// inside string literals. Returns s unchanged when no balanced object is
// found.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return s
}

var quoteReplacer = strings.NewReplacer(
	"“", `"`, // left double quotation mark
	"”", `"`, // right double quotation mark
	"„", `"`, // double low-9 quotation mark
	"‘", "'",
	"’", "'",
	"«", `"`, // «
	"»", `"`, // »
)

func normalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

// stripTrailingCommas removes commas that directly precede a closing
// bracket, outside string literals.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			b.WriteByte(c)
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
			b.WriteByte(c)
		case '"':
			inString = !inString
			b.WriteByte(c)
		case ',':
			if inString {
				b.WriteByte(c)
				continue
			}
			// Look ahead past whitespace for a closing bracket.
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the comma
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
