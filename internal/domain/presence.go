package domain

import "context"

// GroupRegistry is per-process presence bookkeeping for authenticated connections.
// Join and Leave report whether membership changed.
type GroupRegistry interface {
	Join(streamID, connectionID string) bool
	Leave(streamID, connectionID string) bool
	Count(streamID string) int
}

// PresenceStore aggregates per-instance viewer counts across the deployment.
type PresenceStore interface {
	SetLocalCount(ctx context.Context, streamID string, count int) error
	TotalCount(ctx context.Context, streamID string) (int, error)
}
