package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSearcher struct {
	hits      []SearchResult
	lastQuery string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) []SearchResult {
	f.lastQuery = query
	return f.hits
}

func TestRunComposesSearchNotes(t *testing.T) {
	searcher := &fakeSearcher{hits: []SearchResult{
		{Title: "Ромашка", URL: "https://romashka.ru", Snippet: "доставка цветов за час"},
		{Title: "Отзывы", URL: "https://reviews.example", Snippet: "клиенты довольны"},
		{Title: "без сниппета", URL: "https://empty.example"},
	}}
	e := NewEngine(searcher, NewFetcher())

	notes := e.Run(context.Background(), Query{CompanyName: "Ромашка", Industry: "цветы"})

	assert.Equal(t, "Ромашка цветы", searcher.lastQuery)
	assert.Contains(t, notes, "доставка цветов за час")
	assert.Contains(t, notes, "клиенты довольны")
	assert.NotContains(t, notes, "empty.example")
}

func TestRunEmptyQuery(t *testing.T) {
	e := NewEngine(&fakeSearcher{}, NewFetcher())
	assert.Empty(t, e.Run(context.Background(), Query{}))
}

func TestRunSiteFetchFailureIsNotFatal(t *testing.T) {
	searcher := &fakeSearcher{hits: []SearchResult{
		{Title: "Ромашка", URL: "https://romashka.ru", Snippet: "доставка цветов"},
	}}
	e := NewEngine(searcher, NewFetcher())

	// Internal website is rejected by SSRF validation; search still lands.
	notes := e.Run(context.Background(), Query{
		CompanyName: "Ромашка",
		Website:     "http://127.0.0.1/internal",
	})
	assert.Contains(t, notes, "доставка цветов")
	assert.NotContains(t, notes, "127.0.0.1")
}
