package knowledge

import "strings"

// industryKeywords maps lower-cased cue substrings to the canonical
// industry slug. Russian cues dominate because most consultations run in
// Russian; English duplicates cover mixed-language transcripts.
var industryKeywords = map[string][]string{
	"flowers": {
		"цвет", "букет", "флорист", "flower", "bouquet",
	},
	"logistics": {
		"логистик", "грузоперевоз", "доставка груз", "перевозк", "склад",
		"logistics", "freight", "shipping",
	},
	"real_estate": {
		"недвижимост", "квартир", "риелтор", "аренда помещ", "застройщик",
		"real estate", "property",
	},
	"medicine": {
		"клиник", "стоматолог", "медицин", "врач", "пациент",
		"clinic", "dental", "medical",
	},
	"beauty": {
		"салон красоты", "маникюр", "парикмахер", "косметолог", "барбершоп",
		"beauty salon", "barber",
	},
	"restaurants": {
		"ресторан", "кафе", "доставка еды", "пиццер", "суши",
		"restaurant", "food delivery",
	},
	"retail": {
		"магазин", "интернет-магазин", "розниц", "маркетплейс",
		"retail", "e-commerce", "online store",
	},
	"education": {
		"школ", "курс", "обучени", "репетитор", "образован",
		"education", "course", "tutor",
	},
	"auto": {
		"автосервис", "автомоб", "шиномонтаж", "автосалон",
		"car service", "auto repair", "dealership",
	},
	"finance": {
		"банк", "кредит", "страхов", "бухгалтер", "инвестиц",
		"insurance", "accounting", "fintech",
	},
	"fitness": {
		"фитнес", "спортзал", "тренажер", "йога", "тренер",
		"fitness", "gym",
	},
	"legal": {
		"юридическ", "юрист", "адвокат", "нотариус",
		"legal", "law firm", "lawyer",
	},
}

// DetectIndustry maps free text (industry answer, company name, services)
// to a canonical industry slug, empty when nothing matches. The longest cue
// hit wins so "доставка груз" beats "доставка".
func DetectIndustry(text string) string {
	lower := strings.ToLower(text)

	best := ""
	bestLen := 0
	for slug, cues := range industryKeywords {
		for _, cue := range cues {
			if strings.Contains(lower, cue) && len(cue) > bestLen {
				best = slug
				bestLen = len(cue)
			}
		}
	}
	return best
}

// DetectIndustryFrom combines the anketa signals used for detection.
func DetectIndustryFrom(industry, companyName string, services []string) string {
	parts := make([]string, 0, 2+len(services))
	if industry != "" {
		parts = append(parts, industry)
	}
	if companyName != "" {
		parts = append(parts, companyName)
	}
	parts = append(parts, services...)
	return DetectIndustry(strings.Join(parts, " "))
}
