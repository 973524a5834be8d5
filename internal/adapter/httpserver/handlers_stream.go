package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (s *Server) registerStreamRoutes() {
	s.echo.GET("/ws/stream/:id", s.handleStreamSocket)
	s.echo.GET("/ws/stream/:id/", s.handleStreamSocket)
}

// handleStreamSocket admits a connection through the limiters and hands it
// to the stream socket, which blocks until the client is gone.
func (s *Server) handleStreamSocket(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		if s.wsMetrics != nil {
			s.wsMetrics.ConnectionsDenied.WithLabelValues(string(reason)).Inc()
		}
		slog.WarnContext(c.Request().Context(), "Stream connection rejected", "reason", string(reason), "ip", ip)
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many connections")
	}
	defer s.limits.Release(ip)

	if err := s.streams.Serve(c.Response(), c.Request(), strconv.FormatInt(id, 10)); err != nil {
		slog.DebugContext(c.Request().Context(), "Stream connection ended with error", "error", err)
	}
	return nil
}
