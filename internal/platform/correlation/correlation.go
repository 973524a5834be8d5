// Package correlation tags contexts with request and connection identifiers
// and surfaces them on every log record written with that context.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

type (
	idKey         struct{}
	connectionKey struct{}
)

type connectionInfo struct {
	streamID     string
	connectionID string
}

// NewID generates an 8-character hex correlation ID (4 random bytes).
func NewID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithID returns a new context carrying the given correlation ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// ID extracts the correlation ID from ctx, returning ("", false) if not present.
func ID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey{}).(string)
	return id, ok && id != ""
}

// WithConnection marks ctx as belonging to one stream connection.
func WithConnection(ctx context.Context, streamID, connectionID string) context.Context {
	return context.WithValue(ctx, connectionKey{}, connectionInfo{streamID: streamID, connectionID: connectionID})
}

// Connection returns the stream and connection IDs stored by WithConnection.
func Connection(ctx context.Context) (streamID, connectionID string, ok bool) {
	info, ok := ctx.Value(connectionKey{}).(connectionInfo)
	if !ok {
		return "", "", false
	}
	return info.streamID, info.connectionID, true
}

// Handler wraps an existing slog.Handler and injects correlation_id,
// stream_id and connection_id attributes found on the context.
type Handler struct {
	inner slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ID(ctx); ok {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	if streamID, connID, ok := Connection(ctx); ok {
		r.AddAttrs(slog.String("stream_id", streamID), slog.String("connection_id", connID))
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}
