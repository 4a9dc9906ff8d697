package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alexchen/portfolio-backend/internal/analytics"
	"github.com/alexchen/portfolio-backend/internal/metrics"
	"github.com/alexchen/portfolio-backend/internal/models"
	"github.com/alexchen/portfolio-backend/internal/queue"
)

// Consumer drains one queue with manual acknowledgment.
type Consumer interface {
	Consume(ctx context.Context, q queue.Queue, handler queue.Handler) error
}

// Sender performs the email side effect.
type Sender interface {
	SendWithRetry(ctx context.Context, job models.EmailJob, retries int) error
}

// Recorder applies an analytics event to the daily summary.
type Recorder interface {
	Record(ctx context.Context, event analytics.Event)
}

// Workers owns the queue consumers. Starting them is an explicit lifecycle
// step, not an import-time side effect, so the process can sequence them
// after connections are up and report readiness.
type Workers struct {
	consumer Consumer
	sender   Sender
	recorder Recorder
	limiter  *rate.Limiter
	retries  int
	log      *zap.Logger

	ready atomic.Bool
}

func New(
	consumer Consumer,
	sender Sender,
	recorder Recorder,
	limiter *rate.Limiter,
	retries int,
	log *zap.Logger,
) *Workers {
	return &Workers{
		consumer: consumer,
		sender:   sender,
		recorder: recorder,
		limiter:  limiter,
		retries:  retries,
		log:      log,
	}
}

// Ready reports whether the consumers have been started.
func (w *Workers) Ready() bool {
	return w.ready.Load()
}

// Start launches the email and analytics consumers. Each loop runs until ctx
// is cancelled; when the broker drops mid-consume, the loop waits and
// resubscribes once the connection is back.
func (w *Workers) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(2)

	go func() {
		defer wg.Done()
		w.run(ctx, queue.QueueEmail, w.handleEmail)
	}()

	go func() {
		defer wg.Done()
		w.run(ctx, queue.QueueAnalytics, w.handleAnalytics)
	}()

	w.ready.Store(true)
	w.log.Info("workers started",
		zap.Stringer("email_queue", queue.QueueEmail),
		zap.Stringer("analytics_queue", queue.QueueAnalytics))
}

const resubscribeDelay = 5 * time.Second

func (w *Workers) run(ctx context.Context, q queue.Queue, handler queue.Handler) {
	for {
		err := w.consumer.Consume(ctx, q, handler)
		if ctx.Err() != nil {
			w.log.Info("worker shutting down", zap.Stringer("queue", q))
			return
		}
		if err != nil {
			w.log.Warn("consume interrupted, will resubscribe",
				zap.Stringer("queue", q),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			w.log.Info("worker shutting down", zap.Stringer("queue", q))
			return
		case <-time.After(resubscribeDelay):
		}
	}
}

func (w *Workers) handleEmail(ctx context.Context, body []byte) error {
	var job models.EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode email job: %w", err)
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}

	if err := w.sender.SendWithRetry(ctx, job, w.retries); err != nil {
		metrics.EmailFailures.Inc()
		return fmt.Errorf("send to %s: %w", job.To, err)
	}

	w.log.Info("email sent",
		zap.String("to", job.To),
		zap.String("subject", job.Subject))
	metrics.EmailsSent.Inc()
	return nil
}

func (w *Workers) handleAnalytics(ctx context.Context, body []byte) error {
	var event analytics.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode analytics event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("analytics event: %w", err)
	}

	w.recorder.Record(ctx, event)
	return nil
}
