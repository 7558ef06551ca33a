package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe = regexp.MustCompile(`(^|[^*_\w])[*_]([^*_\n]+?)[*_]`)
	orderedRe = regexp.MustCompile(`^\d+\.\s+`)
)

// MarkdownToHTML converts the subset of Markdown the renderer emits:
// headings, bold, italic, ordered and unordered lists, blockquotes and
// horizontal rules. Input text is HTML-escaped before tags are introduced.
func MarkdownToHTML(md string) string {
	var out strings.Builder
	var listTag string // "ul", "ol" or ""

	closeList := func() {
		if listTag != "" {
			fmt.Fprintf(&out, "</%s>\n", listTag)
			listTag = ""
		}
	}
	openList := func(tag string) {
		if listTag != tag {
			closeList()
			fmt.Fprintf(&out, "<%s>\n", tag)
			listTag = tag
		}
	}

	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			closeList()
		case trimmed == "---":
			closeList()
			out.WriteString("<hr>\n")
		case strings.HasPrefix(trimmed, "### "):
			closeList()
			fmt.Fprintf(&out, "<h3>%s</h3>\n", inline(trimmed[4:]))
		case strings.HasPrefix(trimmed, "## "):
			closeList()
			fmt.Fprintf(&out, "<h2>%s</h2>\n", inline(trimmed[3:]))
		case strings.HasPrefix(trimmed, "# "):
			closeList()
			fmt.Fprintf(&out, "<h1>%s</h1>\n", inline(trimmed[2:]))
		case strings.HasPrefix(trimmed, "> "):
			closeList()
			fmt.Fprintf(&out, "<blockquote>%s</blockquote>\n", inline(trimmed[2:]))
		case strings.HasPrefix(trimmed, "- "):
			openList("ul")
			fmt.Fprintf(&out, "<li>%s</li>\n", inline(trimmed[2:]))
		case orderedRe.MatchString(trimmed):
			openList("ol")
			fmt.Fprintf(&out, "<li>%s</li>\n", inline(orderedRe.ReplaceAllString(trimmed, "")))
		default:
			closeList()
			fmt.Fprintf(&out, "<p>%s</p>\n", inline(trimmed))
		}
	}
	closeList()
	return out.String()
}

// inline escapes the text and then applies bold/italic spans.
func inline(s string) string {
	s = html.EscapeString(s)
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRe.ReplaceAllString(s, "$1<em>$2</em>")
	return s
}

const printPageTemplate = `<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: "Segoe UI", Arial, sans-serif; max-width: 800px; margin: 2rem auto; padding: 0 1rem; color: #1a1a1a; line-height: 1.55; }
h1 { font-size: 1.6rem; border-bottom: 2px solid #2c5dbb; padding-bottom: .4rem; }
h2 { font-size: 1.2rem; color: #2c5dbb; margin-top: 1.6rem; }
blockquote { border-left: 3px solid #ccc; margin: .4rem 0; padding: .2rem .8rem; color: #444; }
hr { border: none; border-top: 1px solid #ddd; margin: 1.5rem 0; }
.print-button { position: fixed; top: 1rem; right: 1rem; background: #2c5dbb; color: #fff; border: none; border-radius: 6px; padding: .6rem 1.2rem; font-size: 1rem; cursor: pointer; }
@media print { .print-button { display: none; } body { margin: 0; } }
</style>
</head>
<body>
<button class="print-button" onclick="window.print()">Сохранить как PDF</button>
%s
</body>
</html>
`

// RenderPrintHTML wraps the converted Markdown in a standalone page with a
// print button. Served inline; the client saves it as PDF from the browser
// print dialog.
func RenderPrintHTML(md, title string) string {
	return fmt.Sprintf(printPageTemplate, html.EscapeString(title), MarkdownToHTML(md))
}
