// Package export renders anketas into their delivery shapes: canonical
// Markdown, a print-ready HTML page, and the on-disk output directory.
// Everything here is a pure function of the anketa.
package export

import (
	"fmt"
	"strings"

	"github.com/konsulhq/konsul/pkg/models"
)

// placeholder marks a section the consultation did not cover.
const placeholder = "_Данные не собраны._"

// RenderMarkdown produces the canonical 18-section anketa document.
// Deterministic: same anketa, same bytes.
func RenderMarkdown(a *models.Anketa, companyName string) string {
	if a == nil {
		a = &models.Anketa{}
	}
	title := companyName
	if a.CompanyName != "" {
		title = a.CompanyName
	}
	if title == "" {
		title = "Без названия"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Анкета голосового агента: %s\n", title)

	section(&b, "1. Компания", kvLines([]kv{
		{"Название", a.CompanyName},
		{"Отрасль", a.Industry},
		{"Сайт", a.Website},
		{"Контактное лицо", a.ContactName},
		{"Телефон", a.ContactPhone},
		{"Email", a.ContactEmail},
	}))

	section(&b, "2. О бизнесе", joinParas(a.BusinessDescription))
	section(&b, "3. Целевая аудитория", joinParas(a.TargetAudience))
	section(&b, "4. Услуги", bulletList(a.Services))
	section(&b, "5. Цены и условия", kvAndText([]kv{
		{"Ценообразование", a.PricingInfo},
		{"Часы работы", a.WorkingHours},
	}))

	section(&b, "6. Голос агента", kvLines([]kv{
		{"Пол голоса", a.VoiceGender},
		{"Тон", a.VoiceTone},
		{"Направление звонков", a.CallDirection},
		{"Язык", a.Language},
		{"Тон коммуникации", a.ToneOfVoice},
	}))

	section(&b, "7. Основные функции агента", functionList(a.MainAgentFunctions))
	section(&b, "8. Дополнительные функции", functionList(a.AdditionalAgentFunctions))
	section(&b, "9. Интеграции", integrationList(a.Integrations))
	section(&b, "10. FAQ", faqList(a.FAQ))
	section(&b, "11. Работа с возражениями", objectionList(a.ObjectionHandlers))
	section(&b, "12. Пример диалога", dialogueList(a.SampleDialogue))
	section(&b, "13. Финансовые показатели", financials(a.FinancialMetrics))
	section(&b, "14. Рынок и конкуренты", marketBlock(a))
	section(&b, "15. Сегменты клиентов", bulletList(a.CustomerSegments))
	section(&b, "16. Эскалация на человека", escalationList(a.EscalationRules))
	section(&b, "17. KPI и чек-лист запуска", kpiBlock(a))
	section(&b, "18. Рекомендации ИИ", recommendationBlock(a))

	if a.ProposedSolution != "" {
		b.WriteString("\n---\n\n**Предлагаемое решение:** " + a.ProposedSolution + "\n")
	}
	if a.ConsultationDurationSeconds > 0 {
		fmt.Fprintf(&b, "\n_Длительность консультации: %s._\n",
			formatDuration(a.ConsultationDurationSeconds))
	}
	return b.String()
}

// RenderInterviewMarkdown is the interview-mode document: Q&A pairs,
// insights and a summary instead of the agent blueprint.
func RenderInterviewMarkdown(ia *models.InterviewAnketa) string {
	if ia == nil {
		ia = &models.InterviewAnketa{}
	}
	title := ia.CompanyName
	if title == "" {
		title = "Интервью"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Итоги интервью: %s\n", title)

	section(&b, "Участник", kvLines([]kv{
		{"Компания", ia.CompanyName},
		{"Имя", ia.ContactName},
		{"Должность", ia.Position},
	}))

	var qa strings.Builder
	for _, pair := range ia.QAPairs {
		fmt.Fprintf(&qa, "**Q: %s**\n\n%s\n\n", pair.Question, pair.Answer)
	}
	section(&b, "Вопросы и ответы", strings.TrimSpace(qa.String()))
	section(&b, "Инсайты", bulletList(ia.Insights))
	section(&b, "Резюме", joinParas(ia.Summary))

	if ia.ConsultationDurationSeconds > 0 {
		fmt.Fprintf(&b, "\n_Длительность интервью: %s._\n",
			formatDuration(ia.ConsultationDurationSeconds))
	}
	return b.String()
}

type kv struct{ key, value string }

func section(b *strings.Builder, heading, body string) {
	fmt.Fprintf(b, "\n## %s\n\n", heading)
	if strings.TrimSpace(body) == "" {
		body = placeholder
	}
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n")
}

func kvLines(pairs []kv) string {
	var b strings.Builder
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		fmt.Fprintf(&b, "- **%s:** %s\n", p.key, p.value)
	}
	return b.String()
}

func kvAndText(pairs []kv) string { return kvLines(pairs) }

func joinParas(s string) string { return strings.TrimSpace(s) }

func bulletList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return b.String()
}

func functionList(fns []models.AgentFunction) string {
	var b strings.Builder
	for _, fn := range fns {
		line := fn.Name
		if fn.Description != "" {
			line += " — " + fn.Description
		}
		if fn.Priority != "" {
			line += fmt.Sprintf(" (приоритет: %s)", fn.Priority)
		}
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return b.String()
}

func integrationList(items []models.Integration) string {
	var b strings.Builder
	for _, in := range items {
		line := in.Name
		if in.Purpose != "" {
			line += " — " + in.Purpose
		}
		if in.Required {
			line += " (обязательно)"
		}
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return b.String()
}

func faqList(items []models.FAQItem) string {
	var b strings.Builder
	for _, f := range items {
		fmt.Fprintf(&b, "**%s**\n\n%s\n\n", f.Question, f.Answer)
	}
	return strings.TrimSpace(b.String())
}

func objectionList(items []models.ObjectionHandler) string {
	var b strings.Builder
	for _, o := range items {
		fmt.Fprintf(&b, "- **%s** → %s\n", o.Objection, o.Response)
	}
	return b.String()
}

func dialogueList(items []models.DialogueExample) string {
	var b strings.Builder
	for _, d := range items {
		label := "Клиент"
		if d.Role == "bot" {
			label = "Агент"
		}
		fmt.Fprintf(&b, "> **%s:** %s\n", label, d.Message)
	}
	return b.String()
}

func financials(m *models.FinancialMetrics) string {
	if m == nil {
		return ""
	}
	body := kvLines([]kv{
		{"Средний чек", withCurrency(m.AverageCheck, m.Currency)},
		{"Лидов в месяц", m.MonthlyLeads},
		{"Конверсия", m.ConversionRate},
		{"Звонков в день", m.CallVolumePerDay},
		{"Ожидаемая экономия", withCurrency(m.EstimatedSavings, m.Currency)},
	})
	if m.AdditionalContext != "" {
		body += "\n" + m.AdditionalContext + "\n"
	}
	return body
}

func withCurrency(value, currency string) string {
	if value == "" || currency == "" {
		return value
	}
	return value + " " + currency
}

func marketBlock(a *models.Anketa) string {
	var b strings.Builder
	if len(a.Competitors) > 0 {
		b.WriteString("**Конкуренты:**\n\n" + bulletList(a.Competitors) + "\n")
	}
	if len(a.MarketInsights) > 0 {
		b.WriteString("**Наблюдения о рынке:**\n\n" + bulletList(a.MarketInsights))
	}
	return b.String()
}

func escalationList(items []models.EscalationRule) string {
	var b strings.Builder
	for _, e := range items {
		line := e.Trigger
		if e.Urgency != "" {
			line += fmt.Sprintf(" (срочность: %s)", e.Urgency)
		}
		if e.Action != "" {
			line += " → " + e.Action
		}
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return b.String()
}

func kpiBlock(a *models.Anketa) string {
	var b strings.Builder
	if len(a.KPIs) > 0 {
		b.WriteString("**KPI:**\n\n" + bulletList(a.KPIs) + "\n")
	}
	if len(a.LaunchChecklist) > 0 {
		b.WriteString("**Чек-лист запуска:**\n\n")
		for i, item := range a.LaunchChecklist {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item)
		}
	}
	return b.String()
}

func recommendationBlock(a *models.Anketa) string {
	var b strings.Builder
	for _, r := range a.AIRecommendations {
		line := r.Recommendation
		var tags []string
		if r.Impact != "" {
			tags = append(tags, "эффект: "+r.Impact)
		}
		if r.Priority != "" {
			tags = append(tags, "приоритет: "+r.Priority)
		}
		if r.Effort != "" {
			tags = append(tags, "трудоёмкость: "+r.Effort)
		}
		if len(tags) > 0 {
			line += " (" + strings.Join(tags, ", ") + ")"
		}
		fmt.Fprintf(&b, "- %s\n", line)
	}
	if len(a.ErrorScripts) > 0 {
		b.WriteString("\n**Скрипты при ошибках:**\n\n" + bulletList(a.ErrorScripts))
	}
	if len(a.FollowUpSequence) > 0 {
		b.WriteString("\n**Последовательность follow-up:**\n\n")
		for i, item := range a.FollowUpSequence {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item)
		}
	}
	return b.String()
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	if total < 60 {
		return fmt.Sprintf("%d сек", total)
	}
	return fmt.Sprintf("%d мин %d сек", total/60, total%60)
}
