package export

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// translit maps Cyrillic runes to ASCII for the plain filename parameter
// and output-directory slugs.
var translit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

// SanitizeFilename strips control characters and CRLF so the value is safe
// inside a Content-Disposition header. Non-ASCII text is preserved.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f || r == '\r' || r == '\n' || r == '"' || r == '\\' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Slug converts a company name into an ASCII-safe token: transliterated,
// lower-cased, runs of other characters collapsed to single underscores.
func Slug(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case unicode.Is(unicode.Cyrillic, r):
			if t, ok := translit[r]; ok {
				b.WriteString(t)
				lastUnderscore = false
			}
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		out = "anketa"
	}
	return out
}

// ContentDisposition builds the dual-encoded header value per RFC 5987:
// an ASCII-safe filename= plus the UTF-8 filename*= parameter.
func ContentDisposition(dispositionType, filename string) string {
	clean := SanitizeFilename(filename)

	ext := ""
	if idx := strings.LastIndexByte(clean, '.'); idx >= 0 {
		ext = clean[idx:]
	}
	ascii := Slug(strings.TrimSuffix(clean, ext)) + ext

	return fmt.Sprintf(`%s; filename="%s"; filename*=UTF-8''%s`,
		dispositionType, ascii, url.PathEscape(clean))
}
