package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/streamrelay/internal/app"
	apperrors "github.com/pscheid92/streamrelay/internal/platform/errors"
)

func (s *Server) registerAPIRoutes(api *echo.Group) {
	api.POST("/streams", s.handleCreateStream)
	api.GET("/streams", s.handleListStreams)
	api.GET("/streams/:id", s.handleGetStream)
	api.POST("/streams/:id/start", s.handleStartStream)
	api.POST("/streams/:id/stop", s.handleStopStream)
	api.GET("/streams/:id/viewers", s.handleStreamViewers)
	api.GET("/streams/:id/comments", s.handleListComments)
	api.GET("/streams/:id/donations", s.handleListDonations)

	api.POST("/donations", s.handleCreateDonation)
	api.GET("/donations/:id", s.handleGetDonation)
	api.POST("/donations/:id/confirm", s.handleConfirmDonation)

	api.POST("/comments", s.handleCreateComment)

	api.GET("/users/me", s.handleCurrentUser)
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationError("invalid " + name).WithField(name, raw)
	}
	return id, nil
}

type createStreamRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleCreateStream(c echo.Context) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}

	var req createStreamRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	stream, err := s.app.CreateStream(c.Request().Context(), identity.UserID, req.Title, req.Description)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Stream created", newStreamView(stream))
}

func (s *Server) handleListStreams(c echo.Context) error {
	streams, err := s.app.ListStreams(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "OK", mapViews(streams, newStreamView))
}

func (s *Server) handleGetStream(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	stream, err := s.app.GetStream(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "OK", newStreamView(stream))
}

func (s *Server) handleStartStream(c echo.Context) error {
	return s.toggleStream(c, true)
}

func (s *Server) handleStopStream(c echo.Context) error {
	return s.toggleStream(c, false)
}

func (s *Server) toggleStream(c echo.Context, start bool) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if start {
		stream, err := s.app.StartStream(ctx, identity.UserID, id)
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, "Stream started", newStreamView(stream))
	}

	stream, err := s.app.StopStream(ctx, identity.UserID, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Stream stopped", newStreamView(stream))
}

func (s *Server) handleStreamViewers(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	counts, err := s.app.Viewers(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "OK", counts)
}

func (s *Server) handleListComments(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	comments, err := s.app.ListComments(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "OK", mapViews(comments, newCommentView))
}

func (s *Server) handleListDonations(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	donations, err := s.app.ListDonations(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "OK", mapViews(donations, newDonationView))
}

func (s *Server) handleCurrentUser(c echo.Context) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}

	user, err := s.app.CurrentUser(c.Request().Context(), identity.UserID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "OK", newUserView(user))
}

// Amount accepts a JSON number or a numeric string.
type createDonationRequest struct {
	StreamID      int64       `json:"stream_id"`
	Amount        json.Number `json:"amount"`
	Message       string      `json:"message"`
	PaymentMethod string      `json:"payment_method"`
}

func (s *Server) handleCreateDonation(c echo.Context) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}

	var req createDonationRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	donation, err := s.app.CreateDonation(c.Request().Context(), identity.UserID, app.DonationRequest{
		StreamID:      req.StreamID,
		Amount:        req.Amount.String(),
		Message:       req.Message,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Donation created", newDonationView(donation))
}

func (s *Server) handleGetDonation(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	donation, err := s.app.GetDonation(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "OK", newDonationView(donation))
}

func (s *Server) handleConfirmDonation(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	donation, err := s.app.ConfirmDonation(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Donation confirmed", newDonationView(donation))
}

type createCommentRequest struct {
	StreamID int64  `json:"stream_id"`
	Content  string `json:"content"`
}

func (s *Server) handleCreateComment(c echo.Context) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}

	var req createCommentRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	comment, err := s.app.CreateComment(c.Request().Context(), identity.UserID, req.StreamID, req.Content)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Comment created", newCommentView(comment))
}
