package extraction

import (
	"fmt"
	"strings"

	"github.com/konsulhq/konsul/pkg/models"
	"github.com/konsulhq/konsul/pkg/postprocess"
)

// maxDialogueTurns bounds the transcript window passed to the extractor so
// long consultations still fit the model context.
const maxDialogueTurns = 50

const extractionSystemPrompt = `Ты — аналитик, который по стенограмме голосовой консультации заполняет анкету для создания голосового ИИ-агента.

Верни СТРОГО один JSON-объект без пояснений и без markdown. Поля:
company_name, industry, website, contact_name, contact_phone, contact_email,
business_description, target_audience, services (массив строк), pricing_info,
working_hours, proposed_solution,
voice_gender (female/male), voice_tone, call_direction (inbound/outbound), language,
main_agent_functions (массив {name, description, priority}),
additional_agent_functions (тот же формат),
integrations (массив {name, purpose, required}),
faq (массив {question, answer}),
objection_handlers (массив {objection, response}),
sample_dialogue (массив {role, message, intent}),
financial_metrics ({average_check, monthly_leads, conversion_rate, call_volume_per_day, estimated_savings, currency}),
competitors, market_insights, customer_segments (массивы строк),
escalation_rules (массив {trigger, urgency, action}),
kpis, launch_checklist, error_scripts, follow_up_sequence (массивы строк),
ai_recommendations (массив {recommendation, impact, priority, effort}),
tone_of_voice.

Правила: пропускай поля, о которых в диалоге нет информации; ничего не выдумывай; телефоны сохраняй как произнесены; ответы клиента важнее реплик консультанта.`

const interviewSystemPrompt = `Ты — аналитик, который по стенограмме интервью составляет его структурированную сводку.

Верни СТРОГО один JSON-объект без пояснений и без markdown. Поля:
company_name, contact_name, position,
qa_pairs (массив {question, answer, topic}),
insights (массив строк), summary.

Правила: вопросы бери из реплик интервьюера, ответы из реплик респондента; не сокращай ответы до потери смысла; ничего не выдумывай.`

// buildUserPrompt assembles the transcript window plus optional document and
// country context into the extraction request body.
func buildUserPrompt(in Input) string {
	var b strings.Builder

	b.WriteString("Стенограмма консультации:\n")
	b.WriteString(formatDialogue(in.Dialogue))

	if in.DocumentContext != nil {
		b.WriteString("\nМатериалы клиента:\n")
		b.WriteString(formatDocumentContext(in.DocumentContext))
	}

	if hint := countryHint(in); hint.Country != "" {
		fmt.Fprintf(&b, "\nПодсказка: клиент, вероятно, из страны %s, валюта %s.\n",
			hint.Country, hint.Currency)
	}

	if in.Prior != nil && in.Prior.CompanyName != "" {
		fmt.Fprintf(&b, "\nРанее извлечённое название компании: %s.\n", in.Prior.CompanyName)
	}

	return b.String()
}

func countryHint(in Input) postprocess.CountryHint {
	if in.CountryHint.Country != "" {
		return in.CountryHint
	}
	return postprocess.CountryHintFromDialogue(in.Dialogue)
}

func formatDialogue(turns []models.DialogueTurn) string {
	if len(turns) > maxDialogueTurns {
		turns = turns[len(turns)-maxDialogueTurns:]
	}

	var b strings.Builder
	for _, turn := range turns {
		label := "Клиент"
		if turn.Role == models.RoleAssistant {
			label = "Консультант"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, strings.TrimSpace(turn.Content))
	}
	return b.String()
}

func formatDocumentContext(dc *models.DocumentContext) string {
	var b strings.Builder
	if dc.Summary != "" {
		b.WriteString(dc.Summary)
		b.WriteString("\n")
	}
	if len(dc.KeyFacts) > 0 {
		b.WriteString("Ключевые факты: " + strings.Join(dc.KeyFacts, "; ") + "\n")
	}
	if len(dc.ServicesMentioned) > 0 {
		b.WriteString("Упомянутые услуги: " + strings.Join(dc.ServicesMentioned, "; ") + "\n")
	}
	if len(dc.AllContacts) > 0 {
		b.WriteString("Контакты из документов: " + strings.Join(dc.AllContacts, "; ") + "\n")
	}
	if dc.ResearchNotes != "" {
		b.WriteString("Результаты исследования:\n" + dc.ResearchNotes + "\n")
	}
	return b.String()
}
