package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// listRoomsHandler handles GET /api/rooms.
func (s *Server) listRoomsHandler(c *echo.Context) error {
	roomList, err := s.cfg.Rooms.ListRooms(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}

	type roomInfo struct {
		Name            string `json:"name"`
		NumParticipants uint32 `json:"num_participants"`
		Metadata        string `json:"metadata,omitempty"`
	}
	out := make([]roomInfo, 0, len(roomList))
	for _, r := range roomList {
		out = append(out, roomInfo{
			Name:            r.Name,
			NumParticipants: r.NumParticipants,
			Metadata:        r.Metadata,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"rooms": out})
}

// deleteRoomsHandler handles DELETE /api/rooms (admin sweep).
func (s *Server) deleteRoomsHandler(c *echo.Context) error {
	deleted, err := s.cfg.Rooms.DeleteAllRooms(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	s.logger.Info("Rooms swept", "deleted", deleted)
	return c.JSON(http.StatusOK, map[string]int{"deleted": deleted})
}

// listLearningsHandler handles GET /api/learnings.
func (s *Server) listLearningsHandler(c *echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 200")
		}
		limit = n
	}

	learnings, err := s.cfg.Store.ListLearnings(c.Request().Context(), c.QueryParam("industry"), limit)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"learnings": learnings})
}
