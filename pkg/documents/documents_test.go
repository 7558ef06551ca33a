package documents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konsulhq/konsul/pkg/llm"
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		mime     string
		size     int64
		wantErr  error
	}{
		{"pdf ok", "прайс.pdf", "application/pdf", 1024, nil},
		{"txt with charset", "notes.txt", "text/plain; charset=utf-8", 1024, nil},
		{"md as markdown", "readme.md", "text/markdown", 100, nil},
		{"empty mime allowed", "file.docx", "", 100, nil},
		{"exe rejected", "virus.exe", "application/octet-stream", 10, ErrUnsupportedType},
		{"mime mismatch", "doc.pdf", "text/html", 10, ErrUnsupportedType},
		{"oversize", "big.pdf", "application/pdf", MaxFileSize + 1, ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.filename, tt.mime, tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"../../etc/passwd", "passwd"},
		{"..\\..\\boot.ini", "boot.ini"},
		{".hidden.pdf", "hidden.pdf"},
		{"прайс 2026.pdf", "прайс 2026.pdf"},
		{"evil\r\nname.txt", "evilname.txt"},
		{"...", "upload"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), tt.in)
	}
}

func TestStoreCollisionCounter(t *testing.T) {
	base := t.TempDir()

	p1, err := Store(base, "a1b2c3d4", "прайс.txt", strings.NewReader("v1"))
	require.NoError(t, err)
	p2, err := Store(base, "a1b2c3d4", "прайс.txt", strings.NewReader("v2"))
	require.NoError(t, err)

	assert.Equal(t, "прайс.txt", filepath.Base(p1))
	assert.Equal(t, "прайс_1.txt", filepath.Base(p2))

	content, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(content))
}

func TestStoreFileLimit(t *testing.T) {
	base := t.TempDir()

	for i := 0; i < MaxFilesPerSession; i++ {
		_, err := Store(base, "a1b2c3d4", "f.txt", strings.NewReader("x"))
		require.NoError(t, err)
	}
	_, err := Store(base, "a1b2c3d4", "f.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrTooManyFiles)
}

func TestStoreOversizeBody(t *testing.T) {
	base := t.TempDir()

	big := strings.NewReader(strings.Repeat("x", MaxFileSize+10))
	_, err := Store(base, "a1b2c3d4", "big.txt", big)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	entries, readErr := os.ReadDir(filepath.Join(base, "a1b2c3d4"))
	require.NoError(t, readErr)
	assert.Empty(t, entries, "partial file removed")
}

func TestParsePlainAndChunking(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")

	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("Компания Ромашка доставляет букеты по всему городу каждый день.\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	doc := Parse(path)
	require.NotNil(t, doc)
	assert.Equal(t, "notes.txt", doc.Filename)
	assert.Greater(t, len(doc.Chunks), 1, "long text splits into chunks")
	for _, c := range doc.Chunks {
		assert.LessOrEqual(t, len(c), chunkSize+100)
	}
}

func TestParseUnsupportedAndMissing(t *testing.T) {
	assert.Nil(t, Parse("/nonexistent/file.bin"))
	assert.Nil(t, Parse("/nonexistent/file.txt"), "missing file parses to nil, not error")
}

func TestStripDocxTags(t *testing.T) {
	got := stripDocxTags(`<w:p><w:t>Первый абзац</w:t></w:p><w:p><w:t>Второй</w:t></w:p>`)
	assert.Contains(t, got, "Первый абзац")
	assert.Contains(t, got, "Второй")
	assert.NotContains(t, got, "<w:p>")
}

func TestAnalyze(t *testing.T) {
	doc := &ParsedDocument{
		Filename: "прайс.txt",
		Chunks: []string{strings.Join([]string{
			"ООО Ромашка, доставка цветов.",
			"Наши услуги:",
			"- букеты на заказ",
			"- свадебное оформление",
			"Средний чек 3500 руб, более 200 заказов в месяц.",
			"Контакты: +7 912 345-67-89, info@romashka.ru, www.romashka.ru",
		}, "\n")},
	}

	dc := Analyze([]*ParsedDocument{doc, nil})

	require.Len(t, dc.Documents, 1)
	assert.Equal(t, "прайс.txt", dc.Documents[0].Filename)
	assert.Contains(t, dc.Summary, "Загружено файлов: 1")

	assert.Contains(t, dc.ServicesMentioned, "букеты на заказ")
	assert.Contains(t, dc.ServicesMentioned, "свадебное оформление")

	require.NotEmpty(t, dc.KeyFacts)
	assert.Contains(t, dc.KeyFacts[0], "3500 руб")

	assert.Contains(t, dc.AllContacts, "info@romashka.ru")
	assert.Contains(t, dc.AllContacts, "www.romashka.ru")
}

func TestAnalyzeEmpty(t *testing.T) {
	dc := Analyze(nil)
	assert.Empty(t, dc.Summary)
	assert.Empty(t, dc.Documents)
}

type fakeChat struct {
	reply string
	err   error
}

func (f *fakeChat) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	return f.reply, f.err
}

func TestAnalyzeWithLLM(t *testing.T) {
	doc := &ParsedDocument{
		Filename: "прайс.txt",
		Chunks:   []string{"ООО Ромашка, доставка цветов. Средний чек 3500 руб."},
	}
	ctx := context.Background()

	dc := AnalyzeWithLLM(ctx, &fakeChat{reply: "Компания доставляет цветы, средний чек 3500 руб."}, []*ParsedDocument{doc})
	assert.Equal(t, "Компания доставляет цветы, средний чек 3500 руб.", dc.Summary)
	require.Len(t, dc.Documents, 1, "rule-based digests are kept")

	// Model failure keeps the rule-based summary.
	dc = AnalyzeWithLLM(ctx, &fakeChat{err: errors.New("llm down")}, []*ParsedDocument{doc})
	assert.Contains(t, dc.Summary, "Загружено файлов: 1")

	// No client at all behaves like Analyze.
	dc = AnalyzeWithLLM(ctx, nil, []*ParsedDocument{doc})
	assert.Contains(t, dc.Summary, "Загружено файлов: 1")
}
