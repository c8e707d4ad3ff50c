package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// InstanceSnapshot is the cached shape of an instance's state, matching the
// GET /instance/{iid}/state response (spec §6).
type InstanceSnapshot struct {
	ID        string                 `json:"id"`
	ModelRef  string                 `json:"model_ref"`
	Status    string                 `json:"status"`
	Variables map[string]interface{} `json:"variables"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// InstanceCache caches instance state snapshots so that the statews
// websocket poll (spec §6, every 3s per connected client) and repeated
// GET /instance/{iid}/state calls don't each retake the registry's
// per-entry lock and recompute a deep variable copy. Entries are
// short-lived: a snapshot is only ever a point-in-time read (§5 "read-only
// snapshots between steps"), never a source of truth for scheduling.
type InstanceCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewInstanceCache creates an instance snapshot cache backed by redis. ttl
// should stay shorter than the statews poll interval so a client never
// observes the same stale snapshot twice in a row.
func NewInstanceCache(redis *RedisCache, ttl time.Duration) *InstanceCache {
	return &InstanceCache{redis: redis, ttl: ttl}
}

func instanceCacheKey(instanceID string) string {
	return "instance:snapshot:" + instanceID
}

// Put stores a snapshot, overwriting any previous entry for this instance.
func (c *InstanceCache) Put(ctx context.Context, snap InstanceSnapshot) error {
	return c.redis.Set(ctx, instanceCacheKey(snap.ID), snap, c.ttl)
}

// Get returns the cached snapshot for instanceID, or ok=false on a cache
// miss (expired, evicted, or never stored).
func (c *InstanceCache) Get(ctx context.Context, instanceID string) (InstanceSnapshot, bool, error) {
	raw, err := c.redis.GetString(ctx, instanceCacheKey(instanceID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return InstanceSnapshot{}, false, nil
		}
		return InstanceSnapshot{}, false, err
	}

	var snap InstanceSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return InstanceSnapshot{}, false, err
	}
	return snap, true, nil
}

// Invalidate drops the cached snapshot for instanceID. The form and receive
// command handlers call it after a successful message delivery so the next
// read reflects the current state instead of a snapshot taken before the
// change; other state changes are not invalidated and wait for the TTL.
func (c *InstanceCache) Invalidate(ctx context.Context, instanceID string) error {
	return c.redis.Delete(ctx, instanceCacheKey(instanceID))
}
