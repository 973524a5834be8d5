package domain

import "context"

// EventKind tags the payload carried by a broadcast event.
type EventKind string

const (
	EventChatMessage     EventKind = "chat_message"
	EventDonationCreated EventKind = "donation_created"
	EventCommentCreated  EventKind = "comment_created"
)

// Event is an immutable broadcast message routed by stream ID.
type Event struct {
	StreamID string    `json:"stream_id"`
	Kind     EventKind `json:"type"`
	Message  string    `json:"message"`
}

// Bus is the cross-process publish/subscribe channel for stream events.
// Publish preserves the order of events from a single caller.
type Bus interface {
	Publish(ctx context.Context, streamID string, event Event) error
	// Subscribe returns once the subscription is live; only events
	// published afterwards are delivered.
	Subscribe(ctx context.Context, streamID string) (Subscription, error)
}

type Subscription interface {
	Events() <-chan Event
	Close() error
}

// EventPublisher is the fire-and-forget notification side used after writes commit.
type EventPublisher interface {
	PublishDonation(ctx context.Context, donation *Donation)
	PublishComment(ctx context.Context, comment *Comment)
}
