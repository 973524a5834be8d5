// Package eventpublisher turns committed donations and comments into stream
// events on the bus. Publishing is fire-and-forget: failures are retried
// briefly, then logged and dropped.
package eventpublisher

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/pscheid92/streamrelay/internal/platform/retry"
	"github.com/sony/gobreaker"
)

const (
	publishTimeout = 2 * time.Second
	breakerTimeout = 30 * time.Second
	breakerTrips   = 5
)

// Publisher implements domain.EventPublisher on top of a domain.Bus.
type Publisher struct {
	bus    domain.Bus
	cb     *gobreaker.CircuitBreaker
	policy retry.Policy
}

var _ domain.EventPublisher = (*Publisher)(nil)

func New(bus domain.Bus, clock clockwork.Clock) *Publisher {
	return &Publisher{
		bus: bus,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "event-publisher",
			Timeout: breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerTrips
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			},
		}),
		policy: retry.Policy{
			MaxAttempts:    3,
			InitialBackoff: 50 * time.Millisecond,
			MaxBackoff:     200 * time.Millisecond,
			Clock:          clock,
		},
	}
}

func (p *Publisher) PublishDonation(ctx context.Context, donation *domain.Donation) {
	p.publish(ctx, donation.StreamID, domain.Event{
		Kind:    domain.EventDonationCreated,
		Message: DonationMessage(donation.Amount),
	})
}

func (p *Publisher) PublishComment(ctx context.Context, comment *domain.Comment) {
	p.publish(ctx, comment.StreamID, domain.Event{
		Kind:    domain.EventCommentCreated,
		Message: CommentMessage(comment.Content),
	})
}

// DonationMessage renders the broadcast text for a donation amount.
// Whole amounts drop their ".00" suffix.
func DonationMessage(amount string) string {
	return "New donation: Rp " + strings.TrimSuffix(amount, ".00")
}

func CommentMessage(content string) string {
	return "New comment: " + content
}

func (p *Publisher) publish(ctx context.Context, streamID int64, event domain.Event) {
	// The write already committed; a caller hanging up must not drop the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	id := strconv.FormatInt(streamID, 10)
	err := retry.DoVoid(ctx, p.policy, classify, func(ctx context.Context) error {
		_, err := p.cb.Execute(func() (any, error) {
			return nil, p.bus.Publish(ctx, id, event)
		})
		return err
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to publish stream event",
			"stream_id", id,
			"kind", string(event.Kind),
			"error", err,
		)
	}
}

// classify stops retrying while the breaker rejects calls.
func classify(err error) retry.Action {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return retry.Stop
	}
	return retry.Retry
}
