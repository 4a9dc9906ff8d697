package cache

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Client wraps the key-value store with TTL semantics and hit/miss
// instrumentation. Every operation degrades instead of failing: when the
// store is unreachable, reads are misses and writes report false. Callers
// never see a transport error.
type Client struct {
	store Store
	log   *zap.Logger

	connected  atomic.Bool
	hits       atomic.Int64
	misses     atomic.Int64
	operations atomic.Int64
}

// Stats is a point-in-time view of the client. Hits, Misses and Operations
// are process-lifetime counters; Memory, Keys and Uptime come from the store
// and are zero while disconnected.
type Stats struct {
	Connected  bool  `json:"connected"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Operations int64 `json:"operations"`
	Memory     int64 `json:"memory"`
	Keys       int64 `json:"keys"`
	Uptime     int64 `json:"uptime"`
}

func New(store Store, log *zap.Logger) *Client {
	return &Client{
		store: store,
		log:   log,
	}
}

// Connect verifies the store is reachable and flips the connected flag.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		c.connected.Store(false)
		return err
	}
	c.connected.Store(true)
	return nil
}

// Monitor keeps the connected flag honest: it pings the store on an
// interval and, while the store is down, retries with exponential backoff
// until it answers again. Runs until ctx is cancelled.
func (c *Client) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.store.Ping(ctx) == nil {
				if !c.connected.Swap(true) {
					c.log.Info("cache store reconnected")
				}
				continue
			}
			if c.connected.Swap(false) {
				c.log.Warn("cache store unreachable, operations degraded")
			}
			c.reconnect(ctx)
		}
	}
}

func (c *Client) reconnect(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxElapsedTime = 0 // retry until cancelled

	err := backoff.Retry(func() error {
		return c.store.Ping(ctx)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return
	}

	c.connected.Store(true)
	c.log.Info("cache store reconnected")
}

// Connected reports whether the store was reachable at last contact.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Get reads key and unmarshals it into v. Returns false on a miss, on a
// store error, or while disconnected.
func (c *Client) Get(ctx context.Context, key string, v any) bool {
	if !c.connected.Load() {
		c.misses.Add(1)
		return false
	}

	c.operations.Add(1)
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Error("cache get failed", zap.String("key", key), zap.Error(err))
		c.misses.Add(1)
		return false
	}
	if !ok {
		c.misses.Add(1)
		return false
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		c.log.Error("cache entry unmarshal failed", zap.String("key", key), zap.Error(err))
		c.misses.Add(1)
		return false
	}

	c.hits.Add(1)
	return true
}

// Set serializes v and writes it under key with the given TTL. Returns false
// instead of an error on any failure.
func (c *Client) Set(ctx context.Context, key string, v any, ttl time.Duration) bool {
	if !c.connected.Load() {
		return false
	}

	c.operations.Add(1)
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Error("cache entry marshal failed", zap.String("key", key), zap.Error(err))
		return false
	}

	if err := c.store.SetEx(ctx, key, string(raw), ttl); err != nil {
		c.log.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Del removes key. Returns true only if the key existed and was removed.
func (c *Client) Del(ctx context.Context, key string) bool {
	if !c.connected.Load() {
		return false
	}

	c.operations.Add(1)
	n, err := c.store.Del(ctx, key)
	if err != nil {
		c.log.Error("cache delete failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return n > 0
}

// Exists reports whether key is present. False while disconnected.
func (c *Client) Exists(ctx context.Context, key string) bool {
	if !c.connected.Load() {
		return false
	}

	c.operations.Add(1)
	n, err := c.store.Exists(ctx, key)
	if err != nil {
		c.log.Error("cache exists failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return n == 1
}

// Incr atomically increments the counter at key and refreshes its TTL,
// returning the new count. While disconnected it returns (0, false) so
// callers can choose their degraded behavior.
func (c *Client) Incr(ctx context.Context, key string, ttl time.Duration) (int64, bool) {
	if !c.connected.Load() {
		return 0, false
	}

	c.operations.Add(1)
	count, err := c.store.IncrWithTTL(ctx, key, ttl)
	if err != nil {
		c.log.Error("cache increment failed", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	return count, true
}

// Flush clears the whole store. Intended for operational use only.
func (c *Client) Flush(ctx context.Context) bool {
	if !c.connected.Load() {
		return false
	}

	if err := c.store.FlushDB(ctx); err != nil {
		c.log.Error("cache flush failed", zap.Error(err))
		return false
	}
	c.log.Info("cache flushed")
	return true
}

var (
	usedMemoryPattern = regexp.MustCompile(`used_memory:(\d+)`)
	uptimePattern     = regexp.MustCompile(`uptime_in_seconds:(\d+)`)
)

// Stats returns the client counters plus best-effort store introspection.
func (c *Client) Stats(ctx context.Context) Stats {
	stats := Stats{
		Connected:  c.connected.Load(),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Operations: c.operations.Load(),
	}
	if !stats.Connected {
		return stats
	}

	if info, err := c.store.Info(ctx, "memory"); err == nil {
		if m := usedMemoryPattern.FindStringSubmatch(info); m != nil {
			stats.Memory, _ = strconv.ParseInt(m[1], 10, 64)
		}
	} else {
		c.log.Error("cache memory info failed", zap.Error(err))
	}

	if info, err := c.store.Info(ctx, "server"); err == nil {
		if m := uptimePattern.FindStringSubmatch(info); m != nil {
			stats.Uptime, _ = strconv.ParseInt(m[1], 10, 64)
		}
	}

	if keys, err := c.store.DBSize(ctx); err == nil {
		stats.Keys = keys
	}

	return stats
}

// Close releases the underlying store connection.
func (c *Client) Close() error {
	c.connected.Store(false)
	return c.store.Close()
}
