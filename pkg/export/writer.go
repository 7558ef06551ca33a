package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/konsulhq/konsul/pkg/models"
)

// maxVersions caps the version suffix probe when the same company is
// exported repeatedly on one day.
const maxVersions = 100

// OutputBundle is everything the output-dir writer persists for one session.
// Anketa may be *models.Anketa or *models.InterviewAnketa; nil skips the
// JSON file, an empty Dialogue skips the dialogue file.
type OutputBundle struct {
	CompanyName string
	Markdown    string
	Anketa      any
	Dialogue    []models.DialogueTurn
}

// SaveToOutputDir writes the bundle under
// <baseDir>/<YYYY-MM-DD>/<slug>_v<n>/ as anketa.md, anketa.json and
// dialogue.md, picking the first unused version number. Returns the
// directory it created.
func SaveToOutputDir(baseDir string, b OutputBundle) (string, error) {
	if baseDir == "" {
		baseDir = "output"
	}
	day := time.Now().Format("2006-01-02")
	slug := Slug(b.CompanyName)

	var dir string
	for v := 1; ; v++ {
		if v > maxVersions {
			return "", fmt.Errorf("output dir: version limit reached for %s", slug)
		}
		dir = filepath.Join(baseDir, day, fmt.Sprintf("%s_v%d", slug, v))
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("output dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "anketa.md"), []byte(b.Markdown), 0o644); err != nil {
		return "", fmt.Errorf("output dir: %w", err)
	}

	if b.Anketa != nil {
		data, err := json.MarshalIndent(b.Anketa, "", "  ")
		if err != nil {
			return "", fmt.Errorf("output dir: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "anketa.json"), data, 0o644); err != nil {
			return "", fmt.Errorf("output dir: %w", err)
		}
	}

	if len(b.Dialogue) > 0 {
		md := RenderDialogueMarkdown(b.Dialogue)
		if err := os.WriteFile(filepath.Join(dir, "dialogue.md"), []byte(md), 0o644); err != nil {
			return "", fmt.Errorf("output dir: %w", err)
		}
	}
	return dir, nil
}

// RenderDialogueMarkdown renders the consultation transcript as Markdown,
// one blockquoted line per turn.
func RenderDialogueMarkdown(turns []models.DialogueTurn) string {
	var sb strings.Builder
	sb.WriteString("# Диалог консультации\n")
	for _, turn := range turns {
		speaker := "Клиент"
		if turn.Role == models.RoleAssistant {
			speaker = "Консультант"
		}
		sb.WriteString(fmt.Sprintf("\n**%s:**\n\n> %s\n", speaker,
			strings.ReplaceAll(turn.Content, "\n", "\n> ")))
	}
	return sb.String()
}
