package status

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/alexchen/portfolio-backend/internal/cache"
	"github.com/alexchen/portfolio-backend/internal/queue"
)

// Snapshot is the system status payload the status page polls.
type Snapshot struct {
	Timestamp    string           `json:"timestamp"`
	Uptime       int64            `json:"uptime"`
	Memory       Memory           `json:"memory"`
	Redis        CacheStatus      `json:"redis"`
	RabbitMQ     queue.QueueStats `json:"rabbitmq"`
	ResponseTime int64            `json:"responseTime"`
}

// Memory reports process heap usage in whole megabytes.
type Memory struct {
	Used       int64 `json:"used"`
	Total      int64 `json:"total"`
	Percentage int64 `json:"percentage"`
}

type CacheStatus struct {
	Connected bool  `json:"connected"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Keys      int64 `json:"keys"`
	Memory    int64 `json:"memory"`
}

// CacheStats exposes the cache client's instrumentation.
type CacheStats interface {
	Stats(ctx context.Context) cache.Stats
}

// BrokerStats exposes the queue client's introspection.
type BrokerStats interface {
	Stats(ctx context.Context) queue.QueueStats
}

// Reporter assembles status snapshots from the cache and queue clients.
type Reporter struct {
	cache   CacheStats
	queue   BrokerStats
	started time.Time
}

func NewReporter(c CacheStats, q BrokerStats) *Reporter {
	return &Reporter{
		cache:   c,
		queue:   q,
		started: time.Now(),
	}
}

// Snapshot gathers the current system status. Sections for unreachable
// dependencies come back zeroed/disconnected rather than erroring.
func (r *Reporter) Snapshot(ctx context.Context) Snapshot {
	begin := time.Now()

	cacheStats := r.cache.Stats(ctx)
	queueStats := r.queue.Stats(ctx)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	usedMB := int64(math.Round(float64(mem.HeapAlloc) / 1024 / 1024))
	totalMB := int64(math.Round(float64(mem.HeapSys) / 1024 / 1024))
	var pct int64
	if totalMB > 0 {
		pct = int64(math.Round(float64(usedMB) / float64(totalMB) * 100))
	}

	return Snapshot{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    int64(time.Since(r.started).Seconds()),
		Memory: Memory{
			Used:       usedMB,
			Total:      totalMB,
			Percentage: pct,
		},
		Redis: CacheStatus{
			Connected: cacheStats.Connected,
			Hits:      cacheStats.Hits,
			Misses:    cacheStats.Misses,
			Keys:      cacheStats.Keys,
			Memory:    cacheStats.Memory,
		},
		RabbitMQ:     queueStats,
		ResponseTime: time.Since(begin).Milliseconds(),
	}
}
