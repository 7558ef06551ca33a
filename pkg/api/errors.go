package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/konsulhq/konsul/pkg/models"
	"github.com/konsulhq/konsul/pkg/rooms"
	"github.com/konsulhq/konsul/pkg/runtimecache"
	"github.com/konsulhq/konsul/pkg/store"
)

// mapServiceError maps store and collaborator errors to HTTP error
// responses.
func mapServiceError(err error) *echo.HTTPError {
	var validErr *store.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	var transErr *models.InvalidTransitionError
	if errors.As(err, &transErr) {
		return echo.NewHTTPError(http.StatusBadRequest, transErr.Error())
	}
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if errors.Is(err, runtimecache.ErrCacheFull) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "runtime status cache is full")
	}
	if errors.Is(err, rooms.ErrNotConfigured) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "voice rooms are not configured")
	}

	// Unexpected error (includes StorageError): do not leak details.
	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
