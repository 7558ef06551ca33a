package postprocess

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/konsulhq/konsul/pkg/models"
)

// ExtractedField is a recovered value paired with a heuristic confidence.
type ExtractedField struct {
	Value      string
	Confidence float64
}

var (
	phoneRe   = regexp.MustCompile(`\+?\d[\d\s\-().]{6,16}\d`)
	emailRe   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	websiteRe = regexp.MustCompile(`(?:https?://|www\.)[a-zA-Zа-яА-Я0-9.\-]+\.[a-zA-Zа-яА-Я]{2,}(?:/\S*)?`)

	// Introductions like "меня зовут Анна" / "my name is Anna".
	nameIntroRe = regexp.MustCompile(`(?i)(?:меня зовут|моё имя|мое имя|my name is|i am|i'm|это)\s+([A-ZА-ЯЁ][a-zа-яё]+(?:\s+[A-ZА-ЯЁ][a-zа-яё]+)?)`)
)

// CompanyNameFromDialogue looks for a company name in the most recent user
// turn whose content is short and proper-noun-like. Confidence reflects how
// strongly the turn resembles a bare name.
func CompanyNameFromDialogue(turns []models.DialogueTurn) ExtractedField {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != models.RoleUser {
			continue
		}
		content := strings.TrimSpace(turns[i].Content)
		if content == "" || len([]rune(content)) > 60 {
			continue
		}
		words := strings.Fields(content)
		if len(words) == 0 || len(words) > 5 {
			continue
		}
		if !startsUpper(words[0]) {
			continue
		}
		// Sentences with verbs of introduction are handled by the name
		// extractor; a bare short line is more likely the company.
		if nameIntroRe.MatchString(content) {
			continue
		}
		conf := 0.5
		if len(words) <= 2 {
			conf = 0.7
		}
		return ExtractedField{Value: strings.TrimRight(content, ".!?"), Confidence: conf}
	}
	return ExtractedField{}
}

// ContactNameFromDialogue recovers the contact name from introduction
// phrases in user turns. Last introduction wins.
func ContactNameFromDialogue(turns []models.DialogueTurn) ExtractedField {
	var out ExtractedField
	for _, turn := range turns {
		if turn.Role != models.RoleUser {
			continue
		}
		if m := nameIntroRe.FindStringSubmatch(turn.Content); m != nil {
			out = ExtractedField{Value: m[1], Confidence: 0.8}
		}
	}
	return out
}

// ContactPhoneFromDialogue scans user turns for phone numbers; the last
// match wins.
func ContactPhoneFromDialogue(turns []models.DialogueTurn) ExtractedField {
	var out ExtractedField
	for _, turn := range turns {
		if turn.Role != models.RoleUser {
			continue
		}
		if m := phoneRe.FindString(turn.Content); m != "" {
			out = ExtractedField{Value: normalizePhone(m), Confidence: 0.9}
		}
	}
	return out
}

// EmailFromDialogue scans user turns for an email address; last match wins.
func EmailFromDialogue(turns []models.DialogueTurn) ExtractedField {
	var out ExtractedField
	for _, turn := range turns {
		if turn.Role != models.RoleUser {
			continue
		}
		if m := emailRe.FindString(turn.Content); m != "" {
			out = ExtractedField{Value: m, Confidence: 0.9}
		}
	}
	return out
}

// WebsiteFromDialogue scans user turns for a URL-looking token; last match
// wins.
func WebsiteFromDialogue(turns []models.DialogueTurn) ExtractedField {
	var out ExtractedField
	for _, turn := range turns {
		if turn.Role != models.RoleUser {
			continue
		}
		if m := websiteRe.FindString(turn.Content); m != "" {
			out = ExtractedField{Value: strings.TrimRight(m, ".,"), Confidence: 0.8}
		}
	}
	return out
}

// CountryHint describes the likely country and currency inferred from a
// phone prefix, used to steer extraction prompts.
type CountryHint struct {
	Country  string
	Currency string
}

var countryByPrefix = []struct {
	prefix string
	hint   CountryHint
}{
	{"+375", CountryHint{"Belarus", "BYN"}},
	{"+380", CountryHint{"Ukraine", "UAH"}},
	{"+998", CountryHint{"Uzbekistan", "UZS"}},
	{"+971", CountryHint{"UAE", "AED"}},
	{"+44", CountryHint{"United Kingdom", "GBP"}},
	{"+48", CountryHint{"Poland", "PLN"}},
	{"+49", CountryHint{"Germany", "EUR"}},
	{"+33", CountryHint{"France", "EUR"}},
	{"+34", CountryHint{"Spain", "EUR"}},
	{"+39", CountryHint{"Italy", "EUR"}},
	{"+7", CountryHint{"Russia", "RUB"}},
	{"+1", CountryHint{"United States", "USD"}},
}

// CountryHintFromPhone maps a phone number to a country/currency hint.
// Returns the zero hint when the prefix is unknown. Numbers written with a
// leading 8 are treated as the +7 zone.
func CountryHintFromPhone(phone string) CountryHint {
	digits := normalizePhone(phone)
	if digits == "" {
		return CountryHint{}
	}
	if !strings.HasPrefix(digits, "+") {
		if strings.HasPrefix(digits, "8") && len(digits) == 11 {
			digits = "+7" + digits[1:]
		} else {
			digits = "+" + digits
		}
	}
	for _, entry := range countryByPrefix {
		if strings.HasPrefix(digits, entry.prefix) {
			return entry.hint
		}
	}
	return CountryHint{}
}

// CountryHintFromDialogue finds the first phone number across all turns and
// derives the hint from it.
func CountryHintFromDialogue(turns []models.DialogueTurn) CountryHint {
	for _, turn := range turns {
		if m := phoneRe.FindString(turn.Content); m != "" {
			return CountryHintFromPhone(m)
		}
	}
	return CountryHint{}
}

func normalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '+' || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r) || unicode.IsDigit(r)
	}
	return false
}
