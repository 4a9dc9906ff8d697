package ratelimit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/alexchen/portfolio-backend/internal/cache"
)

// ErrRateLimited is returned when an identity has exhausted its window.
var ErrRateLimited = errors.New("rate limit exceeded")

// Counter is the cache capability the gate needs: an atomic increment that
// refreshes the key's TTL, degrading to ok=false when the store is down.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, bool)
}

// Gate admits a bounded number of submissions per client identity inside a
// rolling window. The counter lives in the shared cache under
// rate:contact:<identity>; each admission atomically increments it and
// refreshes the window TTL, so the window slides with activity until the
// identity goes quiet long enough for the key to expire.
type Gate struct {
	counter   Counter
	threshold int64
	window    time.Duration
	log       *zap.Logger
}

func NewGate(counter Counter, threshold int, window time.Duration, log *zap.Logger) *Gate {
	return &Gate{
		counter:   counter,
		threshold: int64(threshold),
		window:    window,
		log:       log,
	}
}

// Allow admits or rejects one submission from identity. The gate fails open:
// when the cache is unreachable the increment degrades and the submission is
// admitted. Availability over strictness is deliberate here.
func (g *Gate) Allow(ctx context.Context, identity string) error {
	key := cache.ContactRateKey(identity)

	count, ok := g.counter.Incr(ctx, key, g.window)
	if !ok {
		g.log.Warn("rate gate degraded, admitting submission",
			zap.String("identity", identity))
		return nil
	}

	if count > g.threshold {
		g.log.Info("submission rate limited",
			zap.String("identity", identity),
			zap.Int64("count", count))
		return ErrRateLimited
	}
	return nil
}
