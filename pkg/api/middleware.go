package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"regexp"
	"strings"

	echo "github.com/labstack/echo/v5"
)

// sessionIDPattern is the single point of path-traversal defence for
// session identifiers.
var sessionIDPattern = regexp.MustCompile(`^[a-f0-9]{8}$`)

// reservedSegments are route words that occupy the :id position but are not
// session identifiers.
var reservedSegments = map[string]bool{
	"create":  true,
	"by-link": true,
}

// requestID returns middleware that propagates or generates an X-Request-ID.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			id := c.Request().Header.Get("X-Request-ID")
			if id == "" {
				id = newRequestID()
			}
			c.Response().Header().Set("X-Request-ID", id)
			return next(c)
		}
	}
}

func newRequestID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "000000000000"
	}
	return hex.EncodeToString(buf)
}

// sessionIDValidation rejects malformed session identifiers before they
// reach any handler or the filesystem.
func sessionIDValidation() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			segment := firstPathSegment(c)
			if segment == "" || reservedSegments[segment] {
				return next(c)
			}
			if !sessionIDPattern.MatchString(segment) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
			}
			return next(c)
		}
	}
}

// firstPathSegment extracts the :id position from /api/session/<segment>/…
// without relying on route binding order.
func firstPathSegment(c *echo.Context) string {
	path := c.Request().URL.Path
	const prefix = "/api/session/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// securityHeaders returns middleware that sets standard security response
// headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(self), microphone=(self), geolocation=()")
			h.Set("Content-Security-Policy", "default-src 'self'; connect-src 'self' wss:; media-src 'self' blob:")
			return next(c)
		}
	}
}
