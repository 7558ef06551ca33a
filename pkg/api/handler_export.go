package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/konsulhq/konsul/pkg/export"
)

// exportHandler handles GET /api/session/:id/export/:format. "md" downloads
// the Markdown anketa; "pdf" serves a print-styled HTML page the browser
// saves as PDF.
func (s *Server) exportHandler(c *echo.Context) error {
	format := c.Param("format")
	if format != "md" && format != "pdf" {
		return echo.NewHTTPError(http.StatusBadRequest, "format must be md or pdf")
	}

	sess, err := s.cfg.Store.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}

	markdown := sess.AnketaMD
	if markdown == "" && sess.AnketaData != nil {
		markdown = export.RenderMarkdown(sess.AnketaData, sess.CompanyName)
	}
	if markdown == "" {
		return echo.NewHTTPError(http.StatusNotFound, "anketa is not ready yet")
	}

	title := sess.CompanyName
	if title == "" {
		title = "Анкета"
	}

	switch format {
	case "md":
		filename := export.SanitizeFilename("anketa_" + title + ".md")
		c.Response().Header().Set(echo.HeaderContentDisposition,
			export.ContentDisposition("attachment", filename))
		return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(markdown))

	default: // pdf
		filename := export.SanitizeFilename("anketa_" + title + ".html")
		c.Response().Header().Set(echo.HeaderContentDisposition,
			export.ContentDisposition("inline", filename))
		return c.HTML(http.StatusOK, export.RenderPrintHTML(markdown, title))
	}
}
