// Package memory provides in-process implementations of domain ports for
// single-instance runs and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/pscheid92/streamrelay/internal/domain"
)

const defaultBufferSize = 64

var ErrBusClosed = errors.New("bus closed")

// Bus is an in-process domain.Bus. Events from one publisher reach each
// subscriber in publish order; a subscriber whose buffer is full misses events.
type Bus struct {
	mu         sync.RWMutex
	subs       map[string]map[*subscription]struct{}
	bufferSize int
	closed     bool
	onDrop     func(streamID string)
}

var _ domain.Bus = (*Bus)(nil)

type BusOption func(*Bus)

func WithBufferSize(n int) BusOption {
	return func(b *Bus) { b.bufferSize = n }
}

// WithDropHook is called whenever an event is dropped for a slow subscriber.
func WithDropHook(fn func(streamID string)) BusOption {
	return func(b *Bus) { b.onDrop = fn }
}

func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs:       make(map[string]map[*subscription]struct{}),
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, streamID string, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	event.StreamID = streamID

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	for sub := range b.subs[streamID] {
		select {
		case sub.ch <- event:
		default:
			if b.onDrop != nil {
				b.onDrop(streamID)
			}
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, streamID string) (domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	sub := &subscription{
		bus:      b,
		streamID: streamID,
		ch:       make(chan domain.Event, b.bufferSize),
	}
	if b.subs[streamID] == nil {
		b.subs[streamID] = make(map[*subscription]struct{})
	}
	b.subs[streamID][sub] = struct{}{}
	return sub, nil
}

// Subscribers returns the number of live subscriptions for a stream.
func (b *Bus) Subscribers(streamID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[streamID])
}

// Close ends every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, set := range b.subs {
		for sub := range set {
			sub.closeOnce.Do(func() { close(sub.ch) })
		}
	}
	b.subs = make(map[string]map[*subscription]struct{})
}

type subscription struct {
	bus       *Bus
	streamID  string
	ch        chan domain.Event
	closeOnce sync.Once
}

func (s *subscription) Events() <-chan domain.Event {
	return s.ch
}

func (s *subscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if set, ok := s.bus.subs[s.streamID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.bus.subs, s.streamID)
		}
	}
	s.closeOnce.Do(func() { close(s.ch) })
	return nil
}
