package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/app"
	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/pscheid92/streamrelay/internal/platform/config"
	apperrors "github.com/pscheid92/streamrelay/internal/platform/errors"
)

type appService interface {
	Register(ctx context.Context, req app.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, username, password string) (domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, userID int64, refreshToken string) error
	CurrentUser(ctx context.Context, userID int64) (*domain.User, error)

	CreateStream(ctx context.Context, userID int64, title, description string) (*domain.Stream, error)
	ListStreams(ctx context.Context) ([]*domain.Stream, error)
	GetStream(ctx context.Context, streamID int64) (*domain.Stream, error)
	StartStream(ctx context.Context, userID, streamID int64) (*domain.Stream, error)
	StopStream(ctx context.Context, userID, streamID int64) (*domain.Stream, error)
	Viewers(ctx context.Context, streamID int64) (app.ViewerCounts, error)

	CreateDonation(ctx context.Context, donorID int64, req app.DonationRequest) (*domain.Donation, error)
	GetDonation(ctx context.Context, donationID int64) (*domain.Donation, error)
	ConfirmDonation(ctx context.Context, donationID int64) (*domain.Donation, error)
	ListDonations(ctx context.Context, streamID int64) ([]*domain.Donation, error)

	CreateComment(ctx context.Context, userID, streamID int64, content string) (*domain.Comment, error)
	ListComments(ctx context.Context, streamID int64) ([]*domain.Comment, error)
}

// streamSocket runs one stream connection to completion.
type streamSocket interface {
	Serve(w http.ResponseWriter, r *http.Request, streamID string) error
}

type Dependencies struct {
	App              appService
	Verifier         domain.TokenVerifier
	Streams          streamSocket
	Registry         *prometheus.Registry
	HTTPMetrics      *metrics.HTTPMetrics
	WebSocketMetrics *metrics.WebSocketMetrics
	HealthChecks     []HealthCheck
	Clock            clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app      appService
	verifier domain.TokenVerifier
	streams  streamSocket
	limits   *ConnectionLimits

	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	wsMetrics    *metrics.WebSocketMetrics
	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          deps.App,
		verifier:     deps.Verifier,
		streams:      deps.Streams,
		registry:     deps.Registry,
		httpMetrics:  deps.HTTPMetrics,
		wsMetrics:    deps.WebSocketMetrics,
		healthChecks: deps.HealthChecks,
		clock:        deps.Clock,
		startTime:    deps.Clock.Now(),
		limits: NewConnectionLimits(
			int64(cfg.MaxWebSocketConnections),
			cfg.MaxConnectionsPerIP,
			cfg.ConnectionRatePerIP,
			cfg.ConnectionRateBurst,
			deps.Clock,
		),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// respond writes the {code, message, data} envelope.
func respond(c echo.Context, status int, message string, data any) error {
	if err := c.JSON(status, apperrors.Response{Code: status, Message: message, Data: data}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
