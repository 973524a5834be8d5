package httpserver

import (
	"net/http"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/streamrelay/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSocket_RoutesWithAndWithoutSlash(t *testing.T) {
	var mu sync.Mutex
	var got []string
	socket := &mockStreamSocket{serveFn: func(w http.ResponseWriter, _ *http.Request, streamID string) error {
		mu.Lock()
		got = append(got, streamID)
		mu.Unlock()
		w.WriteHeader(http.StatusSwitchingProtocols)
		return nil
	}}
	srv := newTestServer(t, &mockAppService{}, withStreamSocket(socket))

	do(t, srv, http.MethodGet, "/ws/stream/42/", "", "")
	do(t, srv, http.MethodGet, "/ws/stream/42", "", "")
	do(t, srv, http.MethodGet, "/ws/stream/007/", "", "")

	assert.Equal(t, []string{"42", "42", "7"}, got)
}

func TestStreamSocket_RejectsInvalidStreamID(t *testing.T) {
	socket := &mockStreamSocket{serveFn: func(http.ResponseWriter, *http.Request, string) error {
		t.Fatal("socket must not be served")
		return nil
	}}
	srv := newTestServer(t, &mockAppService{}, withStreamSocket(socket))

	for _, id := range []string{"abc", "0", "-3", "1.5"} {
		rec := do(t, srv, http.MethodGet, "/ws/stream/"+id+"/", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
	}
}

func TestStreamSocket_NoAuthAtUpgrade(t *testing.T) {
	served := false
	socket := &mockStreamSocket{serveFn: func(w http.ResponseWriter, _ *http.Request, _ string) error {
		served = true
		w.WriteHeader(http.StatusSwitchingProtocols)
		return nil
	}}
	srv := newTestServer(t, &mockAppService{}, withStreamSocket(socket))

	do(t, srv, http.MethodGet, "/ws/stream/1/", "", "")
	assert.True(t, served)
}

func TestStreamSocket_PerIPLimit(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 4)
	socket := &mockStreamSocket{serveFn: func(w http.ResponseWriter, _ *http.Request, _ string) error {
		entered <- struct{}{}
		<-release
		return nil
	}}
	srv := newTestServer(t, &mockAppService{}, withStreamSocket(socket), withConfig(func(c *config.Config) {
		c.MaxConnectionsPerIP = 2
	}))

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			do(t, srv, http.MethodGet, "/ws/stream/1/", "", "")
		}()
	}
	<-entered
	<-entered

	rec := do(t, srv, http.MethodGet, "/ws/stream/1/", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.wsMetrics.ConnectionsDenied.WithLabelValues(string(LimitReasonPerIP))))

	close(release)
	wg.Wait()
	require.Zero(t, srv.limits.Active())
}
