package websocket

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countRecorder) record(streamID string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[streamID] = count
}

func (r *countRecorder) get(streamID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.counts[streamID]
	return n, ok
}

func newTestRegistry(t *testing.T, onChange func(string, int)) (*Registry, *metrics.PresenceMetrics) {
	t.Helper()
	m := metrics.NewPresenceMetrics(prometheus.NewRegistry())
	r := NewRegistry(clockwork.NewRealClock(), m, onChange)
	t.Cleanup(r.Stop)
	return r, m
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r, m := newTestRegistry(t, nil)

	assert.True(t, r.Join("42", "conn-1"))
	assert.False(t, r.Join("42", "conn-1"))
	assert.Equal(t, 1, r.Count("42"))
	assert.Equal(t, []string{"conn-1"}, r.Members("42"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LocalViewers))
}

func TestRegistry_LeaveNonMemberIsNoop(t *testing.T) {
	r, _ := newTestRegistry(t, nil)

	assert.False(t, r.Leave("42", "ghost"))

	r.Join("42", "conn-1")
	assert.False(t, r.Leave("42", "ghost"))
	assert.False(t, r.Leave("43", "conn-1"))
	assert.Equal(t, 1, r.Count("42"))

	assert.True(t, r.Leave("42", "conn-1"))
	assert.False(t, r.Leave("42", "conn-1"))
	assert.Zero(t, r.Count("42"))
	assert.Empty(t, r.Members("42"))
}

func TestRegistry_GroupsAreIndependent(t *testing.T) {
	r, m := newTestRegistry(t, nil)

	r.Join("42", "a")
	r.Join("42", "b")
	r.Join("43", "c")

	assert.Equal(t, 2, r.Count("42"))
	assert.Equal(t, 1, r.Count("43"))
	assert.ElementsMatch(t, []string{"a", "b"}, r.Members("42"))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LocalViewers))
}

func TestRegistry_ReportsCountChanges(t *testing.T) {
	rec := &countRecorder{counts: make(map[string]int)}
	r, _ := newTestRegistry(t, rec.record)

	r.Join("42", "a")
	r.Join("42", "b")
	require.Eventually(t, func() bool {
		n, ok := rec.get("42")
		return ok && n == 2
	}, time.Second, 5*time.Millisecond)

	r.Leave("42", "a")
	r.Leave("42", "b")
	require.Eventually(t, func() bool {
		n, ok := rec.get("42")
		return ok && n == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_ConcurrentJoinLeave(t *testing.T) {
	r, _ := newTestRegistry(t, nil)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			r.Join("42", id)
			r.Join("42", id)
			if i%2 == 0 {
				r.Leave("42", id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, r.Count("42"))
}

func TestRegistry_StoppedReturnsZeroValues(t *testing.T) {
	m := metrics.NewPresenceMetrics(prometheus.NewRegistry())
	r := NewRegistry(clockwork.NewRealClock(), m, nil)
	r.Stop()
	r.Stop()

	assert.False(t, r.Join("42", "a"))
	assert.Zero(t, r.Count("42"))
	assert.Nil(t, r.Members("42"))
}

func TestRegistry_StreamsSnapshot(t *testing.T) {
	r, _ := newTestRegistry(t, nil)

	r.Join("1", "a")
	r.Join("1", "b")
	r.Join("2", "c")
	r.Join("3", "d")
	r.Leave("3", "d")

	assert.Equal(t, map[string]int{"1": 2, "2": 1}, r.Streams())
}
