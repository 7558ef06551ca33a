// Package documents is the upload pipeline: it validates and sanitizes
// client files, parses them into text, and distills the set into the
// DocumentContext the extractor consumes.
package documents

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxFileSize caps one uploaded file.
	MaxFileSize = 10 << 20 // 10 MB

	// MaxFilesPerSession caps the total uploads for one session.
	MaxFilesPerSession = 5

	// maxCollisionSuffix bounds the rename counter for duplicate names.
	maxCollisionSuffix = 100
)

// allowedTypes whitelists extensions and, per extension, the MIME types a
// client may declare for it.
var allowedTypes = map[string][]string{
	".pdf":  {"application/pdf"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	".xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	".xls":  {"application/vnd.ms-excel"},
	".txt":  {"text/plain"},
	".md":   {"text/plain", "text/markdown"},
}

var (
	// ErrTooManyFiles is returned when the per-session upload cap is hit.
	ErrTooManyFiles = errors.New("file limit reached for session")

	// ErrFileTooLarge is returned for uploads over MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedType is returned for a disallowed extension or a MIME
	// type that does not match the extension.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// ValidateUpload checks extension, declared MIME type and size before any
// bytes touch disk.
func ValidateUpload(filename, mimeType string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed, ok := allowedTypes[ext]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	if mimeType != "" {
		// Strip parameters like "; charset=utf-8".
		if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
			mimeType = mimeType[:idx]
		}
		mimeType = strings.TrimSpace(strings.ToLower(mimeType))
		match := false
		for _, m := range allowed {
			if m == mimeType {
				match = true
				break
			}
		}
		if !match {
			return fmt.Errorf("%w: %s declared as %s", ErrUnsupportedType, ext, mimeType)
		}
	}

	if size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}
	return nil
}

// SanitizeName strips directory components, leading dots and control
// characters from a client-supplied filename.
func SanitizeName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	name = strings.TrimLeft(b.String(), ".")
	if name == "" {
		name = "upload"
	}
	return name
}

// Store saves an upload into the session's directory, renaming on
// collision with a bounded counter. Returns the path written.
func Store(baseDir, sessionID, filename string, src io.Reader) (string, error) {
	dir := filepath.Join(baseDir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("upload dir: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("upload dir: %w", err)
	}
	if len(entries) >= MaxFilesPerSession {
		return "", ErrTooManyFiles
	}

	name := SanitizeName(filename)
	path, err := collisionFreePath(dir, name)
	if err != nil {
		return "", err
	}

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("upload create: %w", err)
	}
	defer dst.Close()

	// The +1 read catches clients that lied about Content-Length.
	written, err := io.Copy(dst, io.LimitReader(src, MaxFileSize+1))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("upload write: %w", err)
	}
	if written > MaxFileSize {
		os.Remove(path)
		return "", ErrFileTooLarge
	}
	return path, nil
}

func collisionFreePath(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i <= maxCollisionSuffix; i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", name, maxCollisionSuffix)
}
