package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

func presenceKey(streamID string) string {
	return "presence:" + streamID
}

// PresenceStore publishes this instance's per-stream viewer counts and sums
// the counts of all live instances. Counts of instances that stopped
// heartbeating are excluded from totals.
type PresenceStore struct {
	rdb       *goredis.Client
	instances *InstanceRegistry
	metrics   *metrics.PresenceMetrics
	clock     clockwork.Clock

	mu     sync.Mutex
	counts map[string]int
}

var _ domain.PresenceStore = (*PresenceStore)(nil)

func NewPresenceStore(rdb *goredis.Client, instances *InstanceRegistry, m *metrics.PresenceMetrics, clock clockwork.Clock) *PresenceStore {
	return &PresenceStore{
		rdb:       rdb,
		instances: instances,
		metrics:   m,
		clock:     clock,
		counts:    make(map[string]int),
	}
}

func (p *PresenceStore) SetLocalCount(ctx context.Context, streamID string, count int) error {
	p.mu.Lock()
	if count > 0 {
		p.counts[streamID] = count
	} else {
		delete(p.counts, streamID)
	}
	p.metrics.ActiveStreams.Set(float64(len(p.counts)))
	p.mu.Unlock()

	var err error
	if count > 0 {
		err = p.rdb.HSet(ctx, presenceKey(streamID), p.instances.InstanceID(), count).Err()
	} else {
		err = p.rdb.HDel(ctx, presenceKey(streamID), p.instances.InstanceID()).Err()
	}
	if err != nil {
		p.metrics.SyncErrors.Inc()
		return fmt.Errorf("failed to store presence for stream %s: %w", streamID, err)
	}
	return nil
}

func (p *PresenceStore) TotalCount(ctx context.Context, streamID string) (int, error) {
	entries, err := p.rdb.HGetAll(ctx, presenceKey(streamID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read presence for stream %s: %w", streamID, err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	live, err := p.instances.ActiveInstances(ctx)
	if err != nil {
		return 0, err
	}
	alive := make(map[string]bool, len(live))
	for _, info := range live {
		alive[info.InstanceID] = true
	}

	total := 0
	for instanceID, raw := range entries {
		if !alive[instanceID] {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		total += n
	}
	return total, nil
}

// Sync heartbeats this instance and rewrites every non-zero local count so
// presence recovers after a Redis restart.
func (p *PresenceStore) Sync(ctx context.Context) error {
	if err := p.instances.Register(ctx); err != nil {
		p.metrics.SyncErrors.Inc()
		return fmt.Errorf("failed to heartbeat: %w", err)
	}

	p.mu.Lock()
	snapshot := make(map[string]int, len(p.counts))
	for id, n := range p.counts {
		snapshot[id] = n
	}
	p.mu.Unlock()

	if len(snapshot) > 0 {
		_, err := p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
			for id, n := range snapshot {
				pipe.HSet(ctx, presenceKey(id), p.instances.InstanceID(), n)
			}
			return nil
		})
		if err != nil {
			p.metrics.SyncErrors.Inc()
			return fmt.Errorf("failed to sync presence: %w", err)
		}
	}

	if live, err := p.instances.ActiveInstances(ctx); err == nil {
		p.metrics.ActiveInstances.Set(float64(len(live)))
	}
	return nil
}

// Run syncs immediately and then every interval until ctx is cancelled.
// On exit the instance and its presence entries are removed.
func (p *PresenceStore) Run(ctx context.Context, interval time.Duration) {
	logger := slog.With("component", "presence", "instance_id", p.instances.InstanceID())

	if err := p.Sync(ctx); err != nil {
		logger.Error("Presence sync failed", "error", err)
	}

	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if err := p.Sync(ctx); err != nil {
				logger.Error("Presence sync failed", "error", err)
			}
		case <-ctx.Done():
			p.shutdown(logger)
			return
		}
	}
}

func (p *PresenceStore) shutdown(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p.mu.Lock()
	streams := make([]string, 0, len(p.counts))
	for id := range p.counts {
		streams = append(streams, id)
	}
	p.mu.Unlock()

	for _, id := range streams {
		if err := p.rdb.HDel(ctx, presenceKey(id), p.instances.InstanceID()).Err(); err != nil {
			logger.Warn("Failed to clear presence", "stream_id", id, "error", err)
		}
	}
	if err := p.instances.Unregister(ctx); err != nil {
		logger.Warn("Failed to unregister instance", "error", err)
	}
}
