// Package cache provides an optional Redis-backed cache of environmental
// snapshots, keyed by rounded coordinate. It shields the upstream APIs from
// repeated lookups for the same point; it is not domain persistence, and
// every failure reads as a cache miss so the live fetch path always wins.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"emission-risk/metrics"
	"emission-risk/risk"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL keeps snapshots fresh enough for risk assessment while still
// absorbing request bursts for popular coordinates.
const DefaultTTL = 5 * time.Minute

// SnapshotCache stores environmental snapshots in Redis with a TTL.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache connects to Redis and verifies the connection.
func NewSnapshotCache(addr, password string, db int, ttl time.Duration) (*SnapshotCache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &SnapshotCache{client: client, ttl: ttl}, nil
}

// Coordinates are rounded to ~11m so nearby requests share an entry.
func snapshotKey(lat, lng float64) string {
	return fmt.Sprintf("env:%.4f:%.4f", lat, lng)
}

// Get returns a cached snapshot for the coordinate, or ok=false on a miss or
// any cache failure.
func (c *SnapshotCache) Get(ctx context.Context, lat, lng float64) (risk.EnvironmentalSnapshot, bool) {
	data, err := c.client.Get(ctx, snapshotKey(lat, lng)).Bytes()
	if err == redis.Nil {
		metrics.CacheOperations.WithLabelValues("get", "miss").Inc()
		return risk.EnvironmentalSnapshot{}, false
	}
	if err != nil {
		metrics.CacheOperations.WithLabelValues("get", "error").Inc()
		return risk.EnvironmentalSnapshot{}, false
	}

	var snapshot risk.EnvironmentalSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		metrics.CacheOperations.WithLabelValues("get", "error").Inc()
		return risk.EnvironmentalSnapshot{}, false
	}

	metrics.CacheOperations.WithLabelValues("get", "hit").Inc()
	return snapshot, true
}

// Put stores a snapshot for the coordinate. Failures are counted and ignored.
func (c *SnapshotCache) Put(ctx context.Context, lat, lng float64, snapshot risk.EnvironmentalSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		metrics.CacheOperations.WithLabelValues("put", "error").Inc()
		return
	}

	if err := c.client.Set(ctx, snapshotKey(lat, lng), data, c.ttl).Err(); err != nil {
		metrics.CacheOperations.WithLabelValues("put", "error").Inc()
		return
	}
	metrics.CacheOperations.WithLabelValues("put", "success").Inc()
}

// Ping reports whether Redis is reachable.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
