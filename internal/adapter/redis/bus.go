package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const subscriptionBuffer = 64

func streamChannel(streamID string) string {
	return "stream:" + streamID
}

// Bus is a domain.Bus over Redis pub/sub. There is no replay: a subscriber
// only sees events published after Subscribe returned.
type Bus struct {
	rdb     *goredis.Client
	metrics *metrics.BusMetrics
}

var _ domain.Bus = (*Bus)(nil)

func NewBus(rdb *goredis.Client, m *metrics.BusMetrics) *Bus {
	return &Bus{rdb: rdb, metrics: m}
}

func (b *Bus) Publish(ctx context.Context, streamID string, event domain.Event) error {
	event.StreamID = streamID
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.rdb.Publish(ctx, streamChannel(streamID), data).Err(); err != nil {
		b.metrics.Published.WithLabelValues(string(event.Kind), "error").Inc()
		return fmt.Errorf("failed to publish to stream %s: %w", streamID, err)
	}
	b.metrics.Published.WithLabelValues(string(event.Kind), "success").Inc()
	return nil
}

// Subscribe blocks until Redis confirms the subscription.
func (b *Bus) Subscribe(ctx context.Context, streamID string) (domain.Subscription, error) {
	ps := b.rdb.Subscribe(ctx, streamChannel(streamID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to stream %s: %w", streamID, err)
	}

	sub := &subscription{
		ps:      ps,
		msgs:    ps.Channel(),
		out:     make(chan domain.Event, subscriptionBuffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		metrics: b.metrics,
		logger:  slog.With("component", "bus", "stream_id", streamID),
	}
	b.metrics.ActiveSubscriptions.Inc()
	go sub.forward()
	return sub, nil
}

type subscription struct {
	ps      *goredis.PubSub
	msgs    <-chan *goredis.Message
	out     chan domain.Event
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	metrics *metrics.BusMetrics
	logger  *slog.Logger
}

func (s *subscription) Events() <-chan domain.Event {
	return s.out
}

// forward decodes pub/sub payloads into the buffered out channel, dropping
// events when the consumer falls behind.
func (s *subscription) forward() {
	defer close(s.stopped)
	defer close(s.out)

	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-s.msgs:
			if !ok {
				return
			}
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warn("Dropping malformed bus payload", "error", err)
				continue
			}
			s.metrics.Received.WithLabelValues(string(event.Kind)).Inc()

			select {
			case s.out <- event:
			default:
				s.metrics.Dropped.Inc()
			}
		}
	}
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
		<-s.stopped
		s.metrics.ActiveSubscriptions.Dec()
	})
	return err
}
