// Package knowledge is the industry knowledge base: it detects the client's
// industry from consultation signals, assembles enrichment text for the live
// LLM instructions, and accumulates per-industry learnings and metrics.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/konsulhq/konsul/pkg/models"
	"github.com/konsulhq/konsul/pkg/store"
)

// maxLearningsInEnrichment bounds how many recorded learnings are appended
// to an enrichment blob.
const maxLearningsInEnrichment = 5

// enrichmentBlobs holds the curated per-industry guidance injected into the
// consultant's system instructions once the industry is known.
var enrichmentBlobs = map[string]string{
	"flowers":     "Отрасль: цветочный бизнес. Уточни пиковые даты (8 марта, 14 февраля), долю предзаказов, зону и сроки доставки, работу с корпоративными клиентами.",
	"logistics":   "Отрасль: логистика. Уточни типы грузов, географию перевозок, как клиенты отслеживают заказы, долю звонков о статусе доставки.",
	"real_estate": "Отрасль: недвижимость. Уточни сегмент (аренда/продажа, жилая/коммерческая), источники лидов, скорость ответа на заявку, процесс показов.",
	"medicine":    "Отрасль: медицина. Уточни специализации, процесс записи и переноса приёмов, напоминания пациентам, работу со страховыми.",
	"beauty":      "Отрасль: индустрия красоты. Уточни список услуг и мастеров, процент неявок, систему напоминаний, запись через мессенджеры.",
	"restaurants": "Отрасль: общепит. Уточни каналы заказов, пиковые часы, бронирование столов, типичные вопросы о меню и аллергенах.",
	"retail":      "Отрасль: розничная торговля. Уточни топ-вопросы о наличии и возврате, каналы продаж, интеграцию с CRM и складом.",
	"education":   "Отрасль: образование. Уточни форматы курсов, процесс пробных занятий, возрастную аудиторию, сезонность набора.",
	"auto":        "Отрасль: автобизнес. Уточни виды работ, запись на сервис, согласование стоимости, напоминания о ТО.",
	"finance":     "Отрасль: финансы. Уточни продукты, регуляторные ограничения на консультации, процесс верификации клиента, эскалацию сложных вопросов.",
	"fitness":     "Отрасль: фитнес. Уточни типы абонементов, пробные тренировки, переносы занятий, удержание клиентов.",
	"legal":       "Отрасль: юридические услуги. Уточни практики, процесс первичной консультации, конфиденциальность, срочные обращения.",
}

type industryMetrics struct {
	extractions int
	scoreSum    float64
}

// Base is the knowledge-base service. Safe for concurrent use; a nil *Base
// disables every operation.
type Base struct {
	learnings *store.Store
	logger    *slog.Logger

	group singleflight.Group

	mu      sync.Mutex
	metrics map[string]*industryMetrics
}

// NewBase creates a knowledge base backed by the given store for learnings.
func NewBase(s *store.Store) *Base {
	return &Base{
		learnings: s,
		logger:    slog.With("component", "knowledge"),
		metrics:   make(map[string]*industryMetrics),
	}
}

// Enrichment returns the instruction blob for an industry: the curated
// guidance plus the most recent recorded learnings. Concurrent calls for
// the same industry share one store query.
func (b *Base) Enrichment(ctx context.Context, industry string) (string, error) {
	if b == nil || industry == "" {
		return "", nil
	}

	blob, ok := enrichmentBlobs[industry]
	if !ok {
		return "", nil
	}

	out, err, _ := b.group.Do(industry, func() (any, error) {
		recent, err := b.learnings.ListLearnings(ctx, industry, maxLearningsInEnrichment)
		if err != nil {
			// Curated guidance is still worth injecting.
			b.logger.Warn("Listing learnings failed", "industry", industry, "error", err)
			return blob, nil
		}
		if len(recent) == 0 {
			return blob, nil
		}

		var sb strings.Builder
		sb.WriteString(blob)
		sb.WriteString("\n\nНаблюдения из прошлых консультаций:\n")
		for _, l := range recent {
			fmt.Fprintf(&sb, "- %s\n", l.Message)
		}
		return sb.String(), nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// RecordLearning persists an observation for future enrichments.
func (b *Base) RecordLearning(ctx context.Context, industry, message, source string) error {
	if b == nil || industry == "" || message == "" {
		return nil
	}
	return b.learnings.RecordLearning(ctx, industry, message, source)
}

// UpdateMetrics accumulates extraction quality per industry.
func (b *Base) UpdateMetrics(industry string, score float64) {
	if b == nil || industry == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.metrics[industry]
	if !ok {
		m = &industryMetrics{}
		b.metrics[industry] = m
	}
	m.extractions++
	m.scoreSum += score
}

// Metrics reports extraction count and mean completion score for an
// industry.
func (b *Base) Metrics(industry string) (int, float64) {
	if b == nil {
		return 0, 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.metrics[industry]
	if !ok || m.extractions == 0 {
		return 0, 0
	}
	return m.extractions, m.scoreSum / float64(m.extractions)
}

// BuildForVoice inspects a dialogue for industry cues and returns the
// enrichment blob when one is confidently detected, empty otherwise.
func (b *Base) BuildForVoice(ctx context.Context, dialogue []models.DialogueTurn) string {
	if b == nil || len(dialogue) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, turn := range dialogue {
		if turn.Role == models.RoleUser {
			sb.WriteString(turn.Content)
			sb.WriteString(" ")
		}
	}
	industry := DetectIndustry(sb.String())
	if industry == "" {
		return ""
	}

	blob, err := b.Enrichment(ctx, industry)
	if err != nil {
		return ""
	}
	return blob
}
