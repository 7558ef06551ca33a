// Package api is the HTTP surface of the consultation server: session
// lifecycle, anketa polling and edits, dialogue sync from the voice agent,
// voice-config updates, exports, document uploads and room administration.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/konsulhq/konsul/pkg/extraction"
	"github.com/konsulhq/konsul/pkg/llm"
	"github.com/konsulhq/konsul/pkg/models"
	"github.com/konsulhq/konsul/pkg/notify"
	"github.com/konsulhq/konsul/pkg/rooms"
	"github.com/konsulhq/konsul/pkg/runtimecache"
	"github.com/konsulhq/konsul/pkg/store"
)

// Extractor is the background extraction hook used after document uploads.
// A nil Extractor disables the kick.
type Extractor interface {
	Extract(ctx context.Context, in extraction.Input) (*models.Anketa, error)
}

// Config carries the server's collaborators and tunables.
type Config struct {
	Store     *store.Store
	Runtime   *runtimecache.Cache
	Rooms     *rooms.Client // nil when LiveKit is not configured
	Notifier  *notify.Service
	Extractor Extractor
	Chat      llm.ChatClient // nil degrades document analysis to rule-based

	UploadsDir string
}

// Server is the HTTP API server.
type Server struct {
	cfg     Config
	echo    *echo.Echo
	httpSrv *http.Server
	logger  *slog.Logger
}

// NewServer creates the API server and registers all routes.
func NewServer(cfg Config) *Server {
	s := &Server{
		cfg:    cfg,
		logger: slog.With("component", "api"),
	}

	e := echo.New()
	e.Use(requestID())
	e.Use(securityHeaders())

	e.GET("/health", s.healthHandler)

	api := e.Group("/api")

	sessions := api.Group("/session")
	sessions.Use(sessionIDValidation())
	sessions.POST("/create", s.createSessionHandler)
	sessions.GET("/by-link/:link", s.getSessionByLinkHandler)
	sessions.GET("/:id", s.getSessionHandler)
	sessions.POST("/:id/pause", s.pauseSessionHandler)
	sessions.POST("/:id/resume", s.resumeSessionHandler)
	sessions.POST("/:id/confirm", s.confirmSessionHandler)
	sessions.POST("/:id/end", s.endSessionHandler)
	sessions.POST("/:id/kill", s.killSessionHandler)
	sessions.GET("/:id/reconnect", s.reconnectHandler)
	sessions.POST("/:id/reconnect", s.resumeReconnectHandler)
	sessions.GET("/:id/anketa", s.getAnketaHandler)
	sessions.PUT("/:id/anketa", s.updateAnketaHandler)
	// POST alias: navigator.sendBeacon cannot issue PUT on tab close.
	sessions.POST("/:id/anketa", s.updateAnketaHandler)
	sessions.PUT("/:id/dialogue", s.updateDialogueHandler)
	sessions.PUT("/:id/runtime-status", s.updateRuntimeStatusHandler)
	sessions.PUT("/:id/voice-config", s.updateVoiceConfigHandler)
	sessions.GET("/:id/export/:format", s.exportHandler)
	sessions.POST("/:id/documents/upload", s.uploadDocumentsHandler)

	api.GET("/sessions", s.listSessionsHandler)
	api.POST("/sessions/delete", s.deleteSessionsHandler)
	// DELETE alias for clients that prefer the verb.
	api.DELETE("/sessions", s.deleteSessionsHandler)
	api.GET("/rooms", s.listRoomsHandler)
	api.DELETE("/rooms", s.deleteRoomsHandler)
	api.GET("/learnings", s.listLearningsHandler)

	s.echo = e
	return s
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves HTTP on addr. Blocking.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := s.cfg.Store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "healthy"})
}
