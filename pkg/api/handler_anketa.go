package api

import (
	"encoding/json"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/konsulhq/konsul/pkg/models"
)

const (
	maxAnketaKeys     = 200
	maxAnketaMDChars  = 100_000
	maxDialogueTurns  = 500
	maxDurationSecond = 86_400
)

// getAnketaHandler handles GET /api/session/:id/anketa, polled by the
// browser every couple of seconds.
func (s *Server) getAnketaHandler(c *echo.Context) error {
	sess, err := s.cfg.Store.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, AnketaResponse{
		AnketaData:     sess.AnketaData,
		AnketaMD:       sess.AnketaMD,
		Status:         sess.Status,
		RuntimeStatus:  s.cfg.Runtime.Get(sess.SessionID),
		CompanyName:    sess.CompanyName,
		UpdatedAt:      sess.UpdatedAt.Format(time.RFC3339),
		CompletionRate: sess.AnketaData.CompletionRate(),
	})
}

// updateAnketaHandler handles PUT /api/session/:id/anketa and its POST
// alias used by sendBeacon on tab close.
func (s *Server) updateAnketaHandler(c *echo.Context) error {
	var req UpdateAnketaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.AnketaData) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "anketa_data is required")
	}
	if len(req.AnketaData) > maxAnketaKeys {
		return echo.NewHTTPError(http.StatusBadRequest, "anketa_data exceeds 200 keys")
	}
	if len(req.AnketaMD) > maxAnketaMDChars {
		return echo.NewHTTPError(http.StatusBadRequest, "anketa_md exceeds 100000 characters")
	}

	anketa, err := anketaFromMap(req.AnketaData)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "anketa_data does not match the anketa schema")
	}

	sessionID := c.Param("id")
	if err := s.cfg.Store.UpdateAnketa(c.Request().Context(), sessionID, anketa, req.AnketaMD); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, StatusResponse{SessionID: sessionID, Status: "ok"})
}

// updateDialogueHandler handles PUT /api/session/:id/dialogue, the voice
// agent's history sync path.
func (s *Server) updateDialogueHandler(c *echo.Context) error {
	var req UpdateDialogueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.DialogueHistory) > maxDialogueTurns {
		return echo.NewHTTPError(http.StatusBadRequest, "dialogue_history exceeds 500 turns")
	}
	if req.DurationSeconds < 0 || req.DurationSeconds > maxDurationSecond {
		return echo.NewHTTPError(http.StatusBadRequest, "duration_seconds must be between 0 and 86400")
	}
	if req.Status != "" && !models.ValidStatus(req.Status) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status: "+req.Status)
	}

	sessionID := c.Param("id")
	err := s.cfg.Store.UpdateDialogue(c.Request().Context(), sessionID,
		req.DialogueHistory, req.DurationSeconds, req.Status)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, StatusResponse{SessionID: sessionID, Status: "ok"})
}

// updateRuntimeStatusHandler handles PUT /api/session/:id/runtime-status.
func (s *Server) updateRuntimeStatusHandler(c *echo.Context) error {
	var req UpdateRuntimeStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !models.ValidRuntimeStatus(req.RuntimeStatus) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid runtime_status")
	}

	sessionID := c.Param("id")
	if err := s.cfg.Runtime.Set(sessionID, req.RuntimeStatus); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, StatusResponse{SessionID: sessionID, Status: "ok"})
}

// updateVoiceConfigHandler handles PUT /api/session/:id/voice-config: merges
// validated settings and pings the live agent through room metadata.
func (s *Server) updateVoiceConfigHandler(c *echo.Context) error {
	var raw map[string]any
	if err := c.Bind(&raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(raw) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no settings provided")
	}
	if _, err := voiceConfigFromRequest(raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sessionID := c.Param("id")
	ctx := c.Request().Context()
	if err := s.cfg.Store.UpdateVoiceConfig(ctx, sessionID, raw); err != nil {
		return mapServiceError(err)
	}

	if sess, err := s.cfg.Store.GetSession(ctx, sessionID); err == nil {
		if err := s.cfg.Rooms.PokeVoiceConfig(ctx, sess.RoomName); err != nil {
			s.logger.Warn("Voice config ping failed", "room", sess.RoomName, "error", err)
		}
	}
	return c.JSON(http.StatusOK, StatusResponse{SessionID: sessionID, Status: "ok"})
}

// anketaFromMap converts the client's edit payload into the typed anketa.
// Keys outside the schema are dropped; mistyped values fail the conversion.
func anketaFromMap(raw map[string]any) (*models.Anketa, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var a models.Anketa
	if err := json.Unmarshal(buf, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
