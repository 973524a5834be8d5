package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/streamrelay/internal/app"
	"github.com/pscheid92/streamrelay/internal/domain"
	apperrors "github.com/pscheid92/streamrelay/internal/platform/errors"
)

func (s *Server) registerAuthRoutes(api *echo.Group) {
	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/refresh", s.handleRefresh)
	api.POST("/auth/logout", s.handleLogout, s.requireAuth)
}

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	IsStreamer bool   `json:"is_streamer"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	user, err := s.app.Register(c.Request().Context(), app.RegisterRequest{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		IsStreamer: req.IsStreamer,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "User registered successfully.", newUserView(user))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	pair, err := s.app.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Login successful.", pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	access, err := s.app.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Token refreshed.", map[string]string{"access_token": access})
}

func (s *Server) handleLogout(c echo.Context) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}

	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	err = s.app.Logout(c.Request().Context(), identity.UserID, req.RefreshToken)
	if errors.Is(err, domain.ErrInvalidToken) {
		return apperrors.ValidationError("Invalid token.")
	}
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Logout successful.", nil)
}
