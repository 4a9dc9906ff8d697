package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alexchen/portfolio-backend/internal/analytics"
	"github.com/alexchen/portfolio-backend/internal/models"
	"github.com/alexchen/portfolio-backend/internal/queue"
)

type fakeConsumer struct {
	mu     sync.Mutex
	queues []queue.Queue
}

func (f *fakeConsumer) Consume(ctx context.Context, q queue.Queue, _ queue.Handler) error {
	f.mu.Lock()
	f.queues = append(f.queues, q)
	f.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

type fakeSender struct {
	sent []models.EmailJob
	err  error
}

func (f *fakeSender) SendWithRetry(_ context.Context, job models.EmailJob, _ int) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, job)
	return nil
}

type fakeRecorder struct {
	events []analytics.Event
}

func (f *fakeRecorder) Record(_ context.Context, event analytics.Event) {
	f.events = append(f.events, event)
}

func newWorkers(consumer Consumer, sender *fakeSender, recorder *fakeRecorder) *Workers {
	return New(consumer, sender, recorder, rate.NewLimiter(rate.Inf, 0), 3, zap.NewNop())
}

func TestStartConsumesBothQueues(t *testing.T) {
	consumer := &fakeConsumer{}
	w := newWorkers(consumer, &fakeSender{}, &fakeRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	assert.False(t, w.Ready())
	w.Start(ctx, &wg)
	assert.True(t, w.Ready())

	// Give both consumer goroutines a moment to subscribe.
	deadline := time.After(time.Second)
	for {
		consumer.mu.Lock()
		n := len(consumer.queues)
		consumer.mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("consumers never subscribed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	wg.Wait()

	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	assert.ElementsMatch(t, []queue.Queue{queue.QueueEmail, queue.QueueAnalytics}, consumer.queues)
}

func TestHandleEmailSendsJob(t *testing.T) {
	sender := &fakeSender{}
	w := newWorkers(&fakeConsumer{}, sender, &fakeRecorder{})

	job := models.EmailJob{To: "alex@example.com", Subject: "Portfolio Contact: hi", HTML: "<p>hi</p>"}
	body, err := json.Marshal(job)
	require.NoError(t, err)

	require.NoError(t, w.handleEmail(context.Background(), body))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, job, sender.sent[0])
}

func TestHandleEmailRejectsMalformedPayload(t *testing.T) {
	sender := &fakeSender{}
	w := newWorkers(&fakeConsumer{}, sender, &fakeRecorder{})

	err := w.handleEmail(context.Background(), []byte("{not json"))
	assert.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestHandleEmailPropagatesSendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp refused")}
	w := newWorkers(&fakeConsumer{}, sender, &fakeRecorder{})

	body, _ := json.Marshal(models.EmailJob{To: "alex@example.com"})
	err := w.handleEmail(context.Background(), body)
	assert.Error(t, err)
}

func TestHandleAnalyticsRecordsEvent(t *testing.T) {
	recorder := &fakeRecorder{}
	w := newWorkers(&fakeConsumer{}, &fakeSender{}, recorder)

	event := analytics.Event{Event: analytics.EventPageView, Timestamp: "2024-01-01T00:00:00Z"}
	body, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, w.handleAnalytics(context.Background(), body))
	require.Len(t, recorder.events, 1)
	assert.Equal(t, analytics.EventPageView, recorder.events[0].Event)
}

func TestHandleAnalyticsRejectsInvalidEvent(t *testing.T) {
	recorder := &fakeRecorder{}
	w := newWorkers(&fakeConsumer{}, &fakeSender{}, recorder)

	body, _ := json.Marshal(analytics.Event{Event: "bogus", Timestamp: "2024-01-01T00:00:00Z"})
	assert.Error(t, w.handleAnalytics(context.Background(), body))
	assert.Empty(t, recorder.events)

	assert.Error(t, w.handleAnalytics(context.Background(), []byte("{not json")))
}
