package research

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// SearchResult is one hit from a web search.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher finds web pages for a query. Implementations never return an
// error: on any failure they log and return an empty slice.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) []SearchResult
}

// DuckDuckGoSearcher scrapes the HTML endpoint, which needs no API key.
type DuckDuckGoSearcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewDuckDuckGoSearcher creates the default Searcher.
func NewDuckDuckGoSearcher() *DuckDuckGoSearcher {
	return &DuckDuckGoSearcher{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.With("component", "research"),
	}
}

var ddgResultRe = regexp.MustCompile(
	`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>.*?(?:<a[^>]+class="result__snippet"[^>]*>(.*?)</a>)?`)

// Search queries DuckDuckGo's HTML endpoint and parses the result list.
func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, maxResults int) []SearchResult {
	if maxResults <= 0 {
		maxResults = 5
	}

	endpoint := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("Web search failed", "query", query, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("Web search failed", "query", query, "status", resp.StatusCode)
		return nil
	}

	buf := make([]byte, 0, 64<<10)
	tmp := make([]byte, 32<<10)
	for len(buf) < maxResponseBytes {
		n, readErr := resp.Body.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if readErr != nil {
			break
		}
	}

	return parseDuckDuckGoResults(string(buf), maxResults)
}

func parseDuckDuckGoResults(page string, maxResults int) []SearchResult {
	matches := ddgResultRe.FindAllStringSubmatch(page, maxResults)
	out := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		result := SearchResult{
			URL:     decodeDDGURL(html.UnescapeString(m[1])),
			Title:   strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(m[2], ""))),
			Snippet: strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(m[3], ""))),
		}
		if result.URL == "" || result.Title == "" {
			continue
		}
		out = append(out, result)
	}
	return out
}

// decodeDDGURL unwraps DuckDuckGo's redirect links (/l/?uddg=<encoded>).
func decodeDDGURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return fmt.Sprintf("https:%s", raw)
	}
	return raw
}
