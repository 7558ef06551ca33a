package documents

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// chunkSize is the target length of one text chunk handed to the analyzer.
const chunkSize = 2000

// maxCellsPerSheet bounds spreadsheet extraction.
const maxCellsPerSheet = 1000

// ParsedDocument is the text form of one uploaded file.
type ParsedDocument struct {
	Filename string
	Chunks   []string
}

// Text joins all chunks.
func (d *ParsedDocument) Text() string {
	return strings.Join(d.Chunks, "\n")
}

// Parse extracts text from a stored upload by extension. Returns nil for
// unparseable files; it never returns an error so one bad file cannot sink
// the batch.
func Parse(path string) *ParsedDocument {
	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text = parsePDF(path)
	case ".docx":
		text = parseDocx(path)
	case ".xlsx", ".xls":
		text = parseSpreadsheet(path)
	case ".txt", ".md":
		text = parsePlain(path)
	default:
		return nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return &ParsedDocument{
		Filename: filepath.Base(path),
		Chunks:   chunk(text),
	}
}

func parsePDF(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		slog.Warn("PDF stat failed", "path", path, "error", err)
		return ""
	}
	file, err := os.Open(path)
	if err != nil {
		slog.Warn("PDF open failed", "path", path, "error", err)
		return ""
	}
	defer file.Close()

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		slog.Warn("PDF parse failed", "path", path, "error", err)
		return ""
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

func parseDocx(path string) string {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		slog.Warn("DOCX parse failed", "path", path, "error", err)
		return ""
	}
	defer doc.Close()
	return stripDocxTags(doc.Editable().GetContent())
}

// stripDocxTags removes the WordprocessingML markup GetContent leaves in.
func stripDocxTags(content string) string {
	var b strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteByte('\n')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseSpreadsheet(path string) string {
	f, err := excelize.OpenFile(path)
	if err != nil {
		slog.Warn("Spreadsheet parse failed", "path", path, "error", err)
		return ""
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "Лист %s:\n", sheet)
		cells := 0
		for _, row := range rows {
			var line []string
			for _, cell := range row {
				if cell = strings.TrimSpace(cell); cell != "" {
					line = append(line, cell)
					cells++
				}
			}
			if len(line) > 0 {
				b.WriteString(strings.Join(line, " | "))
				b.WriteString("\n")
			}
			if cells >= maxCellsPerSheet {
				break
			}
		}
	}
	return b.String()
}

func parsePlain(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Text read failed", "path", path, "error", err)
		return ""
	}
	return string(data)
}

// chunk splits text on paragraph boundaries into pieces of roughly
// chunkSize characters.
func chunk(text string) []string {
	paras := strings.Split(text, "\n")

	var chunks []string
	var current strings.Builder
	for _, para := range paras {
		if current.Len() > 0 && current.Len()+len(para) > chunkSize {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(para)
		current.WriteString("\n")
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}
