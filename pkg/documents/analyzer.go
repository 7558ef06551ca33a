package documents

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/konsulhq/konsul/pkg/llm"
	"github.com/konsulhq/konsul/pkg/models"
)

const (
	summaryLen     = 500
	digestLen      = 200
	maxKeyFacts    = 15
	maxServices    = 20
	maxContacts    = 10

	llmSummaryTimeout  = 15 * time.Second
	llmSummaryInputCap = 6000
)

var (
	contactRe = regexp.MustCompile(
		`\+?\d[\d\s\-().]{6,16}\d|[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}|(?:https?://|www\.)[a-zA-Zа-яА-Я0-9.\-]+\.[a-zA-Zа-яА-Я]{2,}\S*`)
	numericFactRe = regexp.MustCompile(`\d+\s*(?:%|руб|₽|\$|€|шт|клиент|заказ|лет|года?|сотрудник)`)
	bulletRe      = regexp.MustCompile(`^\s*(?:[-•*]|\d+[.)])\s+`)
)

// serviceCues mark lines that enumerate what the company sells.
var serviceCues = []string{"услуг", "предлага", "сервис", "прайс", "тариф", "service", "offer"}

// Analyze distills a parsed document set into the persisted context shape.
// Rule-based: cheap, deterministic, always available.
func Analyze(docs []*ParsedDocument) *models.DocumentContext {
	dc := &models.DocumentContext{}

	var firstText string
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		text := doc.Text()
		if firstText == "" {
			firstText = text
		}

		dc.Documents = append(dc.Documents, models.DocumentDigest{
			Filename: doc.Filename,
			Summary:  truncateRunes(collapseSpace(text), digestLen),
			Chars:    len(text),
		})

		collectFacts(dc, text)
	}

	if len(dc.Documents) == 0 {
		return dc
	}

	names := make([]string, 0, len(dc.Documents))
	for _, d := range dc.Documents {
		names = append(names, d.Filename)
	}
	dc.Summary = fmt.Sprintf("Загружено файлов: %d (%s). %s",
		len(dc.Documents), strings.Join(names, ", "),
		truncateRunes(collapseSpace(firstText), summaryLen))

	return dc
}

// AnalyzeWithLLM runs the rule-based analysis and, when a chat client is
// available, replaces the summary with an LLM-written digest of the
// documents. LLM failures fall back to the rule-based summary, so uploads
// never fail on the model.
func AnalyzeWithLLM(ctx context.Context, chat llm.ChatClient, docs []*ParsedDocument) *models.DocumentContext {
	dc := Analyze(docs)
	if chat == nil || len(dc.Documents) == 0 {
		return dc
	}

	var sb strings.Builder
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		sb.WriteString(doc.Filename)
		sb.WriteString(":\n")
		sb.WriteString(doc.Text())
		sb.WriteString("\n\n")
	}

	ctx, cancel := context.WithTimeout(ctx, llmSummaryTimeout)
	defer cancel()

	out, err := chat.Complete(ctx, llm.CompletionRequest{
		System: "Ты анализируешь документы компании для подготовки анкеты голосового ИИ-агента. " +
			"Сформулируй краткую выжимку на русском: чем занимается компания, ключевые услуги, важные цифры и контакты.",
		User:        truncateRunes(sb.String(), llmSummaryInputCap),
		Temperature: 0.1,
		MaxTokens:   500,
	})
	if err != nil || strings.TrimSpace(out) == "" {
		return dc
	}
	dc.Summary = strings.TrimSpace(out)
	return dc
}

func collectFacts(dc *models.DocumentContext, text string) {
	inServiceBlock := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			inServiceBlock = false
			continue
		}

		for _, m := range contactRe.FindAllString(line, -1) {
			if len(dc.AllContacts) < maxContacts && !contains(dc.AllContacts, m) {
				dc.AllContacts = append(dc.AllContacts, m)
			}
		}

		lower := strings.ToLower(line)
		cueLine := false
		for _, cue := range serviceCues {
			if strings.Contains(lower, cue) {
				cueLine = true
				break
			}
		}
		switch {
		case cueLine && bulletRe.MatchString(line):
			addService(dc, line)
		case cueLine:
			// Header line: the bullets that follow are services.
			inServiceBlock = true
		case inServiceBlock && bulletRe.MatchString(line):
			addService(dc, line)
		default:
			inServiceBlock = false
		}

		if numericFactRe.MatchString(line) && len(dc.KeyFacts) < maxKeyFacts &&
			len([]rune(line)) <= 200 && !contains(dc.KeyFacts, line) {
			dc.KeyFacts = append(dc.KeyFacts, line)
		}
	}
}

func addService(dc *models.DocumentContext, line string) {
	service := strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
	if service == "" || len(dc.ServicesMentioned) >= maxServices || contains(dc.ServicesMentioned, service) {
		return
	}
	dc.ServicesMentioned = append(dc.ServicesMentioned, service)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
