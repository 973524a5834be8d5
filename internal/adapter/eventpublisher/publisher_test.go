package eventpublisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streamrelay/internal/adapter/memory"
	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBus struct {
	mu        sync.Mutex
	publishFn func(ctx context.Context, streamID string, event domain.Event) error
	calls     int
}

func (m *mockBus) Publish(ctx context.Context, streamID string, event domain.Event) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.publishFn(ctx, streamID, event)
}

func (m *mockBus) Subscribe(context.Context, string) (domain.Subscription, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBus) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestDonationMessage(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"50000.00", "New donation: Rp 50000"},
		{"12.50", "New donation: Rp 12.50"},
		{"0.05", "New donation: Rp 0.05"},
		{"100.001", "New donation: Rp 100.001"},
		{"7", "New donation: Rp 7"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DonationMessage(tt.amount), tt.amount)
	}
}

func TestCommentMessage(t *testing.T) {
	assert.Equal(t, "New comment: great stream!", CommentMessage("great stream!"))
}

func TestPublisher_PublishDonationReachesSubscribers(t *testing.T) {
	bus := memory.NewBus()
	sub, err := bus.Subscribe(context.Background(), "42")
	require.NoError(t, err)

	p := New(bus, clockwork.NewRealClock())
	p.PublishDonation(context.Background(), &domain.Donation{StreamID: 42, Amount: "50000.00"})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, domain.Event{StreamID: "42", Kind: domain.EventDonationCreated, Message: "New donation: Rp 50000"}, ev)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestPublisher_PublishComment(t *testing.T) {
	var got domain.Event
	var gotStream string
	bus := &mockBus{publishFn: func(_ context.Context, streamID string, event domain.Event) error {
		gotStream, got = streamID, event
		return nil
	}}

	New(bus, clockwork.NewRealClock()).PublishComment(context.Background(), &domain.Comment{StreamID: 7, Content: "hello"})

	assert.Equal(t, "7", gotStream)
	assert.Equal(t, domain.EventCommentCreated, got.Kind)
	assert.Equal(t, "New comment: hello", got.Message)
}

func TestPublisher_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	bus := &mockBus{publishFn: func(context.Context, string, domain.Event) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	}}

	New(bus, clockwork.NewRealClock()).PublishComment(context.Background(), &domain.Comment{StreamID: 1, Content: "x"})
	assert.Equal(t, 3, bus.callCount())
}

func TestPublisher_FailureIsSwallowed(t *testing.T) {
	bus := &mockBus{publishFn: func(context.Context, string, domain.Event) error {
		return errors.New("redis down")
	}}
	p := New(bus, clockwork.NewRealClock())

	assert.NotPanics(t, func() {
		p.PublishDonation(context.Background(), &domain.Donation{StreamID: 1, Amount: "1.00"})
	})
	assert.Equal(t, 3, bus.callCount())
}

func TestPublisher_BreakerStopsCallingBus(t *testing.T) {
	bus := &mockBus{publishFn: func(context.Context, string, domain.Event) error {
		return errors.New("redis down")
	}}
	p := New(bus, clockwork.NewRealClock())

	// 3 attempts per publish; the breaker trips after 5 consecutive failures.
	p.PublishComment(context.Background(), &domain.Comment{StreamID: 1})
	p.PublishComment(context.Background(), &domain.Comment{StreamID: 1})
	calls := bus.callCount()
	assert.Equal(t, 5, calls)

	p.PublishComment(context.Background(), &domain.Comment{StreamID: 1})
	assert.Equal(t, calls, bus.callCount())
}

func TestPublisher_CancelledCallerStillPublishes(t *testing.T) {
	bus := &mockBus{publishFn: func(ctx context.Context, _ string, _ domain.Event) error {
		return ctx.Err()
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	New(bus, clockwork.NewRealClock()).PublishComment(ctx, &domain.Comment{StreamID: 1})
	assert.Equal(t, 1, bus.callCount())
}
