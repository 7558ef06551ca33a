package postprocess

import "strings"

// maxListItemLen is the cutoff above which a list item is considered a
// copied dialogue turn rather than an answer.
const maxListItemLen = 300

// dialogueMarkers are role labels that leak from the transcript into
// extracted fields. Latin and Cyrillic variants, longest first so prefix
// matching picks the most specific.
var dialogueMarkers = []string{
	"Консультант:",
	"Пользователь:",
	"Ассистент:",
	"Клиент:",
	"Consultant:",
	"Assistant:",
	"Client:",
	"User:",
	"ASSISTANT:",
	"USER:",
}

// CleanString strips leaked dialogue markers from a field value, keeping
// whichever side of the marker carries the answer: a marker at position 0
// labels the content that follows it, a marker mid-string introduces leaked
// dialogue that follows it.
func CleanString(s string) string {
	s = strings.TrimSpace(s)
	for {
		marker, pos := findMarker(s)
		if pos < 0 {
			return s
		}
		if pos == 0 {
			s = strings.TrimSpace(s[len(marker):])
			continue
		}
		s = strings.TrimSpace(s[:pos])
	}
}

// CleanList cleans each item and drops items that are empty after cleaning
// or longer than the dialogue-turn cutoff.
func CleanList(items []string) []string {
	if len(items) == 0 {
		return items
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		cleaned := CleanString(item)
		if cleaned == "" || len(cleaned) > maxListItemLen {
			continue
		}
		out = append(out, cleaned)
	}
	return out
}

// findMarker returns the first marker occurring in s and its byte offset,
// or ("", -1) when none occurs. Case-insensitive for Latin markers via the
// explicit upper-case variants in the list.
func findMarker(s string) (string, int) {
	best := -1
	bestMarker := ""
	for _, m := range dialogueMarkers {
		if idx := strings.Index(s, m); idx >= 0 && (best < 0 || idx < best) {
			best = idx
			bestMarker = m
		}
	}
	return bestMarker, best
}
