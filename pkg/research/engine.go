package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	runBudget       = 30 * time.Second
	maxSearchHits   = 5
	maxSiteTextLen  = 4000
	maxSnippetsUsed = 3
)

// Query describes what the engine should look into.
type Query struct {
	CompanyName string
	Industry    string
	Website     string
}

// Engine combines web search with a guarded fetch of the client's site and
// assembles plain-text research notes.
type Engine struct {
	searcher Searcher
	fetcher  *Fetcher
	logger   *slog.Logger
}

// NewEngine creates a research engine.
func NewEngine(searcher Searcher, fetcher *Fetcher) *Engine {
	return &Engine{
		searcher: searcher,
		fetcher:  fetcher,
		logger:   slog.With("component", "research"),
	}
}

// Run executes the research within a soft 30-second budget and returns the
// assembled notes, empty when nothing useful was found. Partial results are
// kept; individual failures are logged, not propagated.
func (e *Engine) Run(ctx context.Context, q Query) string {
	if q.CompanyName == "" && q.Website == "" {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, runBudget)
	defer cancel()

	var (
		siteText string
		hits     []SearchResult
	)

	g, gctx := errgroup.WithContext(ctx)
	if q.Website != "" {
		g.Go(func() error {
			text, err := e.fetcher.FetchText(gctx, normalizeWebsite(q.Website))
			if err != nil {
				e.logger.Warn("Site fetch failed", "website", q.Website, "error", err)
				return nil
			}
			siteText = text
			return nil
		})
	}
	if q.CompanyName != "" {
		g.Go(func() error {
			query := q.CompanyName
			if q.Industry != "" {
				query += " " + q.Industry
			}
			hits = e.searcher.Search(gctx, query, maxSearchHits)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return composeNotes(q, siteText, hits)
}

func composeNotes(q Query, siteText string, hits []SearchResult) string {
	var b strings.Builder

	if siteText != "" {
		if len([]rune(siteText)) > maxSiteTextLen {
			siteText = string([]rune(siteText)[:maxSiteTextLen])
		}
		fmt.Fprintf(&b, "Содержимое сайта %s:\n%s\n", q.Website, siteText)
	}

	used := 0
	for _, hit := range hits {
		if hit.Snippet == "" || used >= maxSnippetsUsed {
			continue
		}
		if used == 0 {
			b.WriteString("\nУпоминания в сети:\n")
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", hit.Title, hit.Snippet, hit.URL)
		used++
	}

	return strings.TrimSpace(b.String())
}

// normalizeWebsite makes bare domains fetchable.
func normalizeWebsite(site string) string {
	if strings.HasPrefix(site, "http://") || strings.HasPrefix(site, "https://") {
		return site
	}
	return "https://" + site
}
