package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/app"
	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/pscheid92/streamrelay/internal/platform/config"
	apperrors "github.com/pscheid92/streamrelay/internal/platform/errors"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockAppService struct {
	registerFn        func(ctx context.Context, req app.RegisterRequest) (*domain.User, error)
	loginFn           func(ctx context.Context, username, password string) (domain.TokenPair, error)
	refreshFn         func(ctx context.Context, refreshToken string) (string, error)
	logoutFn          func(ctx context.Context, userID int64, refreshToken string) error
	createStreamFn    func(ctx context.Context, userID int64, title, description string) (*domain.Stream, error)
	listStreamsFn     func(ctx context.Context) ([]*domain.Stream, error)
	getStreamFn       func(ctx context.Context, streamID int64) (*domain.Stream, error)
	startStreamFn     func(ctx context.Context, userID, streamID int64) (*domain.Stream, error)
	stopStreamFn      func(ctx context.Context, userID, streamID int64) (*domain.Stream, error)
	viewersFn         func(ctx context.Context, streamID int64) (app.ViewerCounts, error)
	createDonationFn  func(ctx context.Context, donorID int64, req app.DonationRequest) (*domain.Donation, error)
	getDonationFn     func(ctx context.Context, donationID int64) (*domain.Donation, error)
	confirmDonationFn func(ctx context.Context, donationID int64) (*domain.Donation, error)
	createCommentFn   func(ctx context.Context, userID, streamID int64, content string) (*domain.Comment, error)
	listCommentsFn    func(ctx context.Context, streamID int64) ([]*domain.Comment, error)
	listDonationsFn   func(ctx context.Context, streamID int64) ([]*domain.Donation, error)
	currentUserFn     func(ctx context.Context, userID int64) (*domain.User, error)
}

var errNotImplemented = errors.New("not implemented")

func (m *mockAppService) Register(ctx context.Context, req app.RegisterRequest) (*domain.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) Login(ctx context.Context, username, password string) (domain.TokenPair, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return domain.TokenPair{}, errNotImplemented
}

func (m *mockAppService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return "", errNotImplemented
}

func (m *mockAppService) Logout(ctx context.Context, userID int64, refreshToken string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, userID, refreshToken)
	}
	return errNotImplemented
}

func (m *mockAppService) CreateStream(ctx context.Context, userID int64, title, description string) (*domain.Stream, error) {
	if m.createStreamFn != nil {
		return m.createStreamFn(ctx, userID, title, description)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) ListStreams(ctx context.Context) ([]*domain.Stream, error) {
	if m.listStreamsFn != nil {
		return m.listStreamsFn(ctx)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) GetStream(ctx context.Context, streamID int64) (*domain.Stream, error) {
	if m.getStreamFn != nil {
		return m.getStreamFn(ctx, streamID)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) StartStream(ctx context.Context, userID, streamID int64) (*domain.Stream, error) {
	if m.startStreamFn != nil {
		return m.startStreamFn(ctx, userID, streamID)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) StopStream(ctx context.Context, userID, streamID int64) (*domain.Stream, error) {
	if m.stopStreamFn != nil {
		return m.stopStreamFn(ctx, userID, streamID)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) Viewers(ctx context.Context, streamID int64) (app.ViewerCounts, error) {
	if m.viewersFn != nil {
		return m.viewersFn(ctx, streamID)
	}
	return app.ViewerCounts{}, errNotImplemented
}

func (m *mockAppService) CreateDonation(ctx context.Context, donorID int64, req app.DonationRequest) (*domain.Donation, error) {
	if m.createDonationFn != nil {
		return m.createDonationFn(ctx, donorID, req)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) GetDonation(ctx context.Context, donationID int64) (*domain.Donation, error) {
	if m.getDonationFn != nil {
		return m.getDonationFn(ctx, donationID)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) ConfirmDonation(ctx context.Context, donationID int64) (*domain.Donation, error) {
	if m.confirmDonationFn != nil {
		return m.confirmDonationFn(ctx, donationID)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) CreateComment(ctx context.Context, userID, streamID int64, content string) (*domain.Comment, error) {
	if m.createCommentFn != nil {
		return m.createCommentFn(ctx, userID, streamID, content)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) ListComments(ctx context.Context, streamID int64) ([]*domain.Comment, error) {
	if m.listCommentsFn != nil {
		return m.listCommentsFn(ctx, streamID)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) ListDonations(ctx context.Context, streamID int64) ([]*domain.Donation, error) {
	if m.listDonationsFn != nil {
		return m.listDonationsFn(ctx, streamID)
	}
	return nil, errNotImplemented
}

func (m *mockAppService) CurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, userID)
	}
	return nil, errNotImplemented
}

const (
	testToken  = "good-token"
	testUserID = int64(7)
)

// mockVerifier accepts testToken as user 7.
type mockVerifier struct {
	verifyFn func(ctx context.Context, token string) (domain.Identity, error)
}

func (m *mockVerifier) Verify(ctx context.Context, token string) (domain.Identity, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, token)
	}
	if token == testToken {
		return domain.Identity{UserID: testUserID, Username: "alice"}, nil
	}
	return domain.Identity{}, fmt.Errorf("%w: bad signature", domain.ErrInvalidToken)
}

type mockStreamSocket struct {
	serveFn func(w http.ResponseWriter, r *http.Request, streamID string) error
}

func (m *mockStreamSocket) Serve(w http.ResponseWriter, r *http.Request, streamID string) error {
	if m.serveFn != nil {
		return m.serveFn(w, r, streamID)
	}
	w.WriteHeader(http.StatusSwitchingProtocols)
	return nil
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		Port:                    "0",
		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     10,
		ConnectionRatePerIP:     1000,
		ConnectionRateBurst:     1000,
		APIRateLimit:            1000,
		APIRateBurst:            1000,
	}
}

type testServerOptions struct {
	cfg  *config.Config
	deps Dependencies
}

func withHealthChecks(checks ...HealthCheck) func(*testServerOptions) {
	return func(o *testServerOptions) { o.deps.HealthChecks = checks }
}

func withStreamSocket(s streamSocket) func(*testServerOptions) {
	return func(o *testServerOptions) { o.deps.Streams = s }
}

func withConfig(modify func(*config.Config)) func(*testServerOptions) {
	return func(o *testServerOptions) { modify(o.cfg) }
}

func withClock(clock clockwork.Clock) func(*testServerOptions) {
	return func(o *testServerOptions) { o.deps.Clock = clock }
}

func newTestServer(t *testing.T, svc appService, opts ...func(*testServerOptions)) *Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	o := &testServerOptions{
		cfg: testConfig(),
		deps: Dependencies{
			App:              svc,
			Verifier:         &mockVerifier{},
			Streams:          &mockStreamSocket{},
			Registry:         reg,
			HTTPMetrics:      metrics.NewHTTPMetrics(reg),
			WebSocketMetrics: metrics.NewWebSocketMetrics(reg),
			Clock:            clockwork.NewFakeClock(),
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return NewServer(o.cfg, o.deps)
}

// do runs a request through the full middleware stack.
func do(t *testing.T, srv *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Type    apperrors.ErrorType `json:"type"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}
