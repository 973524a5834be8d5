package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/pscheid92/streamrelay/internal/domain"
)

const reportTimeout = 2 * time.Second

// ViewerReporter forwards local group size changes to the shared presence
// store. It is the registry's count callback.
type ViewerReporter struct {
	presence domain.PresenceStore
}

func NewViewerReporter(presence domain.PresenceStore) *ViewerReporter {
	return &ViewerReporter{presence: presence}
}

// Report writes the latest local count for a stream. Failures are logged;
// the presence store's periodic sync repairs them.
func (r *ViewerReporter) Report(streamID string, count int) {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	if err := r.presence.SetLocalCount(ctx, streamID, count); err != nil {
		slog.Warn("Failed to report viewer count", "stream_id", streamID, "count", count, "error", err)
	}
}
