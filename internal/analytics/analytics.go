package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alexchen/portfolio-backend/internal/cache"
)

// EventName is the closed set of events the site reports.
type EventName string

const (
	EventPageView          EventName = "page_view"
	EventContactFormSubmit EventName = "contact_form_submit"
	EventProjectView       EventName = "project_view"
	EventCodeRun           EventName = "code_run"
)

var validEvents = map[EventName]struct{}{
	EventPageView:          {},
	EventContactFormSubmit: {},
	EventProjectView:       {},
	EventCodeRun:           {},
}

// Valid reports whether n is one of the declared event names.
func (n EventName) Valid() bool {
	_, ok := validEvents[n]
	return ok
}

// Event is one analytics occurrence, published to the analytics queue and
// rolled into the daily summary.
type Event struct {
	Event     EventName      `json:"event"`
	Page      string         `json:"page,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp string         `json:"timestamp"`
	UserAgent string         `json:"userAgent,omitempty"`
	IP        string         `json:"ip,omitempty"`
}

// Validate checks the event name and timestamp format.
func (e Event) Validate() error {
	if !e.Event.Valid() {
		return fmt.Errorf("unknown event name %q", e.Event)
	}
	if _, err := time.Parse(time.RFC3339, e.Timestamp); err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	return nil
}

// Publisher is the queue capability the tracker needs.
type Publisher interface {
	PublishAnalytics(ctx context.Context, event any) bool
}

// Cache is the key-value capability the tracker needs for the daily summary.
type Cache interface {
	Get(ctx context.Context, key string, v any) bool
	Set(ctx context.Context, key string, v any, ttl time.Duration) bool
}

const summaryTTL = 24 * time.Hour

// Tracker queues analytics events and maintains the per-day aggregated
// counters in the cache. The daily summary is incremented twice per event:
// optimistically when the event is tracked, and authoritatively when the
// analytics worker consumes it. Both writes are kept intentionally; the
// summary is a best-effort operational counter, not an exact ledger.
type Tracker struct {
	publisher Publisher
	cache     Cache
	log       *zap.Logger

	// now is swappable in tests to pin the summary date.
	now func() time.Time
}

func NewTracker(publisher Publisher, c Cache, log *zap.Logger) *Tracker {
	return &Tracker{
		publisher: publisher,
		cache:     c,
		log:       log,
		now:       time.Now,
	}
}

// Track queues the event for async processing and optimistically bumps
// today's summary. Analytics is never critical: failures are logged and
// swallowed.
func (t *Tracker) Track(ctx context.Context, event Event) {
	if err := event.Validate(); err != nil {
		t.log.Warn("dropping invalid analytics event", zap.Error(err))
		return
	}

	if !t.publisher.PublishAnalytics(ctx, event) {
		t.log.Warn("analytics event not queued",
			zap.String("event", string(event.Event)))
	}

	t.Record(ctx, event)
}

// Record increments the daily summary for the event's name. Used both on the
// optimistic path and by the analytics worker.
func (t *Tracker) Record(ctx context.Context, event Event) {
	date := t.now().UTC().Format("2006-01-02")
	key := cache.AnalyticsKey(date)

	summary := map[string]int64{}
	t.cache.Get(ctx, key, &summary)
	summary[string(event.Event)]++

	if !t.cache.Set(ctx, key, summary, summaryTTL) {
		t.log.Warn("daily analytics summary not updated",
			zap.String("date", date),
			zap.String("event", string(event.Event)))
	}
}

// Summary returns the aggregated counts for the given UTC date, or an empty
// mapping if nothing was recorded (or the cache is down).
func (t *Tracker) Summary(ctx context.Context, date string) map[string]int64 {
	summary := map[string]int64{}
	t.cache.Get(ctx, cache.AnalyticsKey(date), &summary)
	return summary
}
