package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

const instancesKey = "instances"

// InstanceRegistry tracks live streamrelay processes. Each instance writes a
// heartbeat to a shared hash; entries older than staleAfter are ignored.
type InstanceRegistry struct {
	rdb        *goredis.Client
	instanceID string
	version    string
	staleAfter time.Duration
	clock      clockwork.Clock
}

type InstanceInfo struct {
	InstanceID string `json:"instance_id"`
	Timestamp  int64  `json:"timestamp"`
	Version    string `json:"version"`
}

func NewInstanceRegistry(rdb *goredis.Client, instanceID, version string, staleAfter time.Duration, clock clockwork.Clock) *InstanceRegistry {
	return &InstanceRegistry{
		rdb:        rdb,
		instanceID: instanceID,
		version:    version,
		staleAfter: staleAfter,
		clock:      clock,
	}
}

func (r *InstanceRegistry) InstanceID() string {
	return r.instanceID
}

func (r *InstanceRegistry) Register(ctx context.Context) error {
	data, err := json.Marshal(InstanceInfo{
		InstanceID: r.instanceID,
		Timestamp:  r.clock.Now().Unix(),
		Version:    r.version,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal instance info: %w", err)
	}
	return r.rdb.HSet(ctx, instancesKey, r.instanceID, data).Err()
}

func (r *InstanceRegistry) Unregister(ctx context.Context) error {
	return r.rdb.HDel(ctx, instancesKey, r.instanceID).Err()
}

// ActiveInstances returns the registered instances with a fresh heartbeat.
func (r *InstanceRegistry) ActiveInstances(ctx context.Context) ([]InstanceInfo, error) {
	entries, err := r.rdb.HGetAll(ctx, instancesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read instances: %w", err)
	}

	cutoff := r.clock.Now().Add(-r.staleAfter).Unix()
	active := make([]InstanceInfo, 0, len(entries))
	for _, data := range entries {
		var info InstanceInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			continue
		}
		if info.Timestamp >= cutoff {
			active = append(active, info)
		}
	}
	return active, nil
}
