package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/konsulhq/konsul/pkg/models"
	"github.com/konsulhq/konsul/pkg/rooms"
)

// createSessionHandler handles POST /api/session/create.
func (s *Server) createSessionHandler(c *echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var voiceConfig *models.VoiceConfig
	if len(req.VoiceSettings) > 0 {
		vc, err := voiceConfigFromRequest(req.VoiceSettings)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		voiceConfig = vc
	}
	// A pattern naming a known consultation type selects the prompt variant.
	switch req.Pattern {
	case models.ConsultationTypeConsultation, models.ConsultationTypeInteraction,
		models.ConsultationTypeManagement, models.ConsultationTypeInterview:
		if voiceConfig == nil {
			voiceConfig = &models.VoiceConfig{}
		}
		voiceConfig.ConsultationType = req.Pattern
	}

	sess, err := s.cfg.Store.CreateSession(c.Request().Context(), voiceConfig)
	if err != nil {
		return mapServiceError(err)
	}

	resp := CreateSessionResponse{
		SessionID:  sess.SessionID,
		UniqueLink: sess.UniqueLink,
		RoomName:   sess.RoomName,
	}
	resp.Token, resp.Warning = s.provisionRoom(c, sess.RoomName, "client-"+sess.SessionID)

	s.logger.Info("Session created", "session_id", sess.SessionID, "room", sess.RoomName)
	return c.JSON(http.StatusOK, resp)
}

// provisionRoom creates the room, dispatches the agent and mints a join
// token. Failures degrade to a warning; the session stays usable over HTTP.
func (s *Server) provisionRoom(c *echo.Context, roomName, identity string) (string, *string) {
	if _, err := s.cfg.Rooms.EnsureRoom(c.Request().Context(), roomName); err != nil {
		s.logger.Warn("Room provisioning failed", "room", roomName, "error", err)
		msg := "voice room unavailable, session runs in API-only mode"
		return "", &msg
	}
	token, err := s.cfg.Rooms.ParticipantToken(roomName, identity)
	if err != nil {
		s.logger.Warn("Token minting failed", "room", roomName, "error", err)
		msg := "voice room unavailable, session runs in API-only mode"
		return "", &msg
	}
	return token, nil
}

// getSessionHandler handles GET /api/session/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	sess, err := s.cfg.Store.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

// getSessionByLinkHandler handles GET /api/session/by-link/:link, the
// resumption path for returning clients.
func (s *Server) getSessionByLinkHandler(c *echo.Context) error {
	link := c.Param("link")
	if _, err := uuid.Parse(link); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "link must be a UUID")
	}

	sess, err := s.cfg.Store.GetSessionByLink(c.Request().Context(), link)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

// pauseSessionHandler handles POST /api/session/:id/pause.
func (s *Server) pauseSessionHandler(c *echo.Context) error {
	return s.transition(c, models.StatusPaused)
}

// resumeSessionHandler handles POST /api/session/:id/resume.
func (s *Server) resumeSessionHandler(c *echo.Context) error {
	return s.transition(c, models.StatusActive)
}

// endSessionHandler handles POST /api/session/:id/end (tab close, "End
// session" button). The session is left resumable.
func (s *Server) endSessionHandler(c *echo.Context) error {
	return s.transition(c, models.StatusPaused)
}

func (s *Server) transition(c *echo.Context, target string) error {
	sessionID := c.Param("id")
	if err := s.cfg.Store.UpdateStatus(c.Request().Context(), sessionID, target, false); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, StatusResponse{SessionID: sessionID, Status: target})
}

// confirmSessionHandler handles POST /api/session/:id/confirm: the client
// accepted the anketa. Confirm closes the review gate in one shot, so
// sessions still mid-conversation are stepped through the intermediate
// statuses; only terminal sessions reject.
func (s *Server) confirmSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	ctx := c.Request().Context()

	sess, err := s.cfg.Store.GetSession(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	if sess.Status == models.StatusConfirmed {
		return c.JSON(http.StatusOK, StatusResponse{SessionID: sessionID, Status: models.StatusConfirmed})
	}

	for _, step := range confirmPath(sess.Status) {
		if err := s.cfg.Store.UpdateStatus(ctx, sessionID, step, false); err != nil {
			return mapServiceError(err)
		}
	}
	s.cfg.Runtime.Delete(sessionID)

	if sess, err := s.cfg.Store.GetSession(ctx, sessionID); err == nil {
		go s.cfg.Notifier.SessionConfirmed(sess)
	}

	s.logger.Info("Session confirmed", "session_id", sessionID)
	return c.JSON(http.StatusOK, StatusResponse{SessionID: sessionID, Status: models.StatusConfirmed})
}

// confirmPath lists the validated transitions that take a status to
// confirmed. Declined sessions get the direct step so the state machine
// produces the rejection.
func confirmPath(from string) []string {
	switch from {
	case models.StatusActive:
		return []string{models.StatusReviewing, models.StatusConfirmed}
	case models.StatusPaused:
		return []string{models.StatusActive, models.StatusReviewing, models.StatusConfirmed}
	default:
		return []string{models.StatusConfirmed}
	}
}

// killSessionHandler handles POST /api/session/:id/kill, the admin force
// stop: room deleted, status forced to declined.
func (s *Server) killSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	ctx := c.Request().Context()

	sess, err := s.cfg.Store.GetSession(ctx, sessionID)
	if err != nil {
		return mapServiceError(err)
	}

	if err := s.cfg.Rooms.DeleteRoom(ctx, sess.RoomName); err != nil {
		s.logger.Warn("Room delete failed on kill", "room", sess.RoomName, "error", err)
	}
	if err := s.cfg.Store.UpdateStatus(ctx, sessionID, models.StatusDeclined, true); err != nil {
		return mapServiceError(err)
	}
	s.cfg.Runtime.Delete(sessionID)

	s.logger.Info("Session killed", "session_id", sessionID)
	return c.JSON(http.StatusOK, StatusResponse{SessionID: sessionID, Status: models.StatusDeclined})
}

// reconnectHandler handles GET /api/session/:id/reconnect. Idempotent: it
// never mutates status, recreates the room if needed, re-signals the voice
// config and returns a fresh token.
func (s *Server) reconnectHandler(c *echo.Context) error {
	sess, err := s.cfg.Store.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}

	resp := ReconnectResponse{
		SessionID: sess.SessionID,
		RoomName:  sess.RoomName,
		Status:    sess.Status,
	}
	resp.Token, resp.Warning = s.provisionRoom(c, sess.RoomName, "client-"+sess.SessionID)
	if resp.Warning == nil {
		if err := s.cfg.Rooms.PokeVoiceConfig(c.Request().Context(), sess.RoomName); err != nil {
			s.logger.Warn("Voice config ping failed", "room", sess.RoomName, "error", err)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// resumeReconnectHandler handles POST /api/session/:id/reconnect: validates
// that the session is resumable and transitions paused sessions back to
// active before minting a token.
func (s *Server) resumeReconnectHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	sess, err := s.cfg.Store.GetSession(ctx, c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}

	switch sess.Status {
	case models.StatusActive:
	case models.StatusPaused:
		if err := s.cfg.Store.UpdateStatus(ctx, sess.SessionID, models.StatusActive, false); err != nil {
			return mapServiceError(err)
		}
		sess.Status = models.StatusActive
	default:
		return echo.NewHTTPError(http.StatusConflict,
			fmt.Sprintf("session in status %q cannot be reconnected", sess.Status))
	}

	resp := ReconnectResponse{
		SessionID: sess.SessionID,
		RoomName:  sess.RoomName,
		Status:    sess.Status,
	}
	resp.Token, resp.Warning = s.provisionRoom(c, sess.RoomName, "client-"+sess.SessionID)
	return c.JSON(http.StatusOK, resp)
}

// listSessionsHandler handles GET /api/sessions.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	limit := 50
	offset := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 200")
		}
		limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "offset must be non-negative")
		}
		offset = n
	}
	status := c.QueryParam("status")
	if status != "" && !models.ValidStatus(status) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status: "+status)
	}

	sessions, total, err := s.cfg.Store.ListSessionsSummary(c.Request().Context(), status, limit, offset)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, ListSessionsResponse{Sessions: sessions, TotalCount: total})
}

// deleteSessionsHandler handles POST /api/sessions/delete (bulk admin
// delete). Rooms and uploaded files go with the records.
func (s *Server) deleteSessionsHandler(c *echo.Context) error {
	ctx := c.Request().Context()

	var req DeleteSessionsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.SessionIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "session_ids is required")
	}
	for _, id := range req.SessionIDs {
		if !sessionIDPattern.MatchString(id) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid session id: "+id)
		}
	}

	// Room names come from the records, so tear rooms down before the rows go.
	for _, id := range req.SessionIDs {
		sess, err := s.cfg.Store.GetSession(ctx, id)
		if err != nil {
			continue
		}
		if err := s.cfg.Rooms.DeleteRoom(ctx, sess.RoomName); err != nil && !errors.Is(err, rooms.ErrNotConfigured) {
			s.logger.Warn("Room delete failed on bulk delete", "room", sess.RoomName, "error", err)
		}
	}

	deleted, err := s.cfg.Store.DeleteSessions(ctx, req.SessionIDs)
	if err != nil {
		return mapServiceError(err)
	}
	for _, id := range req.SessionIDs {
		s.cfg.Runtime.Delete(id)
		if s.cfg.UploadsDir != "" {
			// id already matched the 8-hex pattern above.
			if err := os.RemoveAll(filepath.Join(s.cfg.UploadsDir, id)); err != nil {
				s.logger.Warn("Uploads cleanup failed", "session_id", id, "error", err)
			}
		}
	}

	s.logger.Info("Sessions deleted", "count", deleted)
	return c.JSON(http.StatusOK, map[string]int{"deleted": deleted})
}

// voiceConfigFromRequest validates an incoming settings map and builds a
// config from the recognised keys. Unknown keys and out-of-range values are
// rejected.
func voiceConfigFromRequest(raw map[string]any) (*models.VoiceConfig, error) {
	for key, value := range raw {
		if !models.IsVoiceConfigKey(key) {
			return nil, fmt.Errorf("unknown voice setting %q", key)
		}
		if err := models.ValidateVoiceConfigValue(key, value); err != nil {
			return nil, err
		}
	}
	vc := &models.VoiceConfig{}
	vc.Merge(models.FilterVoiceConfigKeys(raw))
	return vc, nil
}
