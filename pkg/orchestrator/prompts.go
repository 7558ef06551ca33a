package orchestrator

import (
	"fmt"
	"strings"

	"github.com/konsulhq/konsul/pkg/models"
)

// reviewPrompt reformulates the collected anketa into read-back
// instructions for the late-consultation confirmation phase.
func reviewPrompt(a *models.Anketa) string {
	var b strings.Builder
	b.WriteString("Консультация выходит на финишную прямую. Перескажи клиенту собранную анкету и попроси подтвердить или поправить каждый пункт. Говори коротко, по одному блоку за раз.\n\nСобранные данные:\n")

	add := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "- %s: %s\n", label, value)
		}
	}
	add("Компания", a.CompanyName)
	add("Отрасль", a.Industry)
	add("Описание", a.BusinessDescription)
	add("Контакт", a.ContactName)
	add("Телефон", a.ContactPhone)
	add("Сайт", a.Website)
	add("Аудитория", a.TargetAudience)
	add("Часы работы", a.WorkingHours)
	add("Цены", a.PricingInfo)
	if len(a.Services) > 0 {
		add("Услуги", strings.Join(a.Services, ", "))
	}
	if len(a.MainAgentFunctions) > 0 {
		names := make([]string, 0, len(a.MainAgentFunctions))
		for _, fn := range a.MainAgentFunctions {
			names = append(names, fn.Name)
		}
		add("Функции агента", strings.Join(names, ", "))
	}
	if len(a.Integrations) > 0 {
		names := make([]string, 0, len(a.Integrations))
		for _, in := range a.Integrations {
			names = append(names, in.Name)
		}
		add("Интеграции", strings.Join(names, ", "))
	}

	b.WriteString("\nПосле подтверждения поблагодари клиента и скажи, что анкета готова и менеджер свяжется с ним.")
	return b.String()
}
