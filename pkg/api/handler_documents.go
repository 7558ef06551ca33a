package api

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/konsulhq/konsul/pkg/documents"
	"github.com/konsulhq/konsul/pkg/export"
	"github.com/konsulhq/konsul/pkg/extraction"
	"github.com/konsulhq/konsul/pkg/models"
)

// uploadDocumentsHandler handles POST /api/session/:id/documents/upload.
// Files are validated, stored, parsed and folded into the session's
// document context; the live agent is pinged and a background extraction is
// kicked so the anketa absorbs the new material quickly.
func (s *Server) uploadDocumentsHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	ctx := c.Request().Context()

	sess, err := s.cfg.Store.GetSession(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}

	files, err := multipartFiles(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form with files is required")
	}
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no files provided")
	}

	existing := 0
	if sess.DocumentContext != nil {
		existing = len(sess.DocumentContext.Documents)
	}
	if existing+len(files) > documents.MaxFilesPerSession {
		return echo.NewHTTPError(http.StatusBadRequest, documents.ErrTooManyFiles.Error())
	}

	var parsed []*documents.ParsedDocument
	var uploaded []UploadedFile
	for _, fh := range files {
		if err := documents.ValidateUpload(fh.Filename, fh.Header.Get("Content-Type"), fh.Size); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		src, err := fh.Open()
		if err != nil {
			return mapServiceError(err)
		}
		path, err := documents.Store(s.cfg.UploadsDir, sessionID, fh.Filename, src)
		src.Close()
		if err != nil {
			if errors.Is(err, documents.ErrFileTooLarge) {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			return mapServiceError(err)
		}

		doc := documents.Parse(path)
		if doc == nil {
			s.logger.Warn("Document parse produced no text", "session_id", sessionID, "filename", fh.Filename)
			continue
		}
		parsed = append(parsed, doc)
		uploaded = append(uploaded, UploadedFile{Filename: doc.Filename, Chars: len(doc.Text())})
	}

	if len(parsed) == 0 {
		return c.JSON(http.StatusOK, UploadResponse{Files: uploaded})
	}

	docCtx := documents.AnalyzeWithLLM(ctx, s.cfg.Chat, parsed)
	mergeDocumentContext(docCtx, sess.DocumentContext)

	if err := s.cfg.Store.UpdateDocumentContext(ctx, sessionID, docCtx); err != nil {
		return mapServiceError(err)
	}

	if err := s.cfg.Rooms.PokeDocuments(ctx, sess.RoomName); err != nil {
		s.logger.Warn("Documents ping failed", "room", sess.RoomName, "error", err)
	}

	s.kickExtraction(sessionID)

	s.logger.Info("Documents uploaded", "session_id", sessionID, "count", len(parsed))
	return c.JSON(http.StatusOK, UploadResponse{Files: uploaded, Summary: docCtx.Summary})
}

// multipartFiles collects the uploaded file headers, accepting both the
// "files" and legacy "file" field names.
func multipartFiles(c *echo.Context) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	return files, nil
}

// mergeDocumentContext folds previously known digests and research notes
// into a freshly analyzed context.
func mergeDocumentContext(fresh, prior *models.DocumentContext) {
	if prior == nil {
		return
	}
	fresh.Documents = append(prior.Documents, fresh.Documents...)
	if prior.ResearchNotes != "" {
		fresh.ResearchNotes = prior.ResearchNotes
	}
}

// kickExtraction runs one extraction in the background so the uploaded
// material lands in the anketa without waiting for the next dialogue tick.
func (s *Server) kickExtraction(sessionID string) {
	if s.cfg.Extractor == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()

		sess, err := s.cfg.Store.GetSession(ctx, sessionID)
		if err != nil {
			s.logger.Error("Post-upload extraction: session load failed", "session_id", sessionID, "error", err)
			return
		}

		anketa, err := s.cfg.Extractor.Extract(ctx, extraction.Input{
			Dialogue:        sess.DialogueHistory,
			DurationSeconds: sess.DurationSeconds,
			DocumentContext: sess.DocumentContext,
			Prior:           sess.AnketaData,
		})
		if err != nil {
			s.logger.Error("Post-upload extraction failed", "session_id", sessionID, "error", err)
			return
		}

		markdown := export.RenderMarkdown(anketa, anketa.CompanyName)
		if err := s.cfg.Store.UpdateAnketa(ctx, sessionID, anketa, markdown); err != nil {
			s.logger.Error("Post-upload anketa save failed", "session_id", sessionID, "error", err)
		}
	}()
}
