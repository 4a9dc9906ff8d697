package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alexchen/portfolio-backend/internal/analytics"
	"github.com/alexchen/portfolio-backend/internal/contact"
	"github.com/alexchen/portfolio-backend/internal/github"
	"github.com/alexchen/portfolio-backend/internal/queue"
	"github.com/alexchen/portfolio-backend/internal/ratelimit"
	"github.com/alexchen/portfolio-backend/internal/status"
)

type fakeSubmitter struct {
	err        error
	identities []string
}

func (f *fakeSubmitter) Submit(_ context.Context, _ contact.Submission, identity string) error {
	f.identities = append(f.identities, identity)
	return f.err
}

type fakeTracker struct {
	events []analytics.Event
}

func (f *fakeTracker) Track(_ context.Context, event analytics.Event) {
	f.events = append(f.events, event)
}

type fakeReporter struct {
	snapshot status.Snapshot
}

func (f *fakeReporter) Snapshot(context.Context) status.Snapshot {
	return f.snapshot
}

type fakeShowcase struct {
	profile github.Profile
	err     error
}

func (f *fakeShowcase) Profile(context.Context) (github.Profile, error) {
	return f.profile, f.err
}

type handlerFixture struct {
	submitter *fakeSubmitter
	tracker   *fakeTracker
	reporter  *fakeReporter
	showcase  *fakeShowcase
	handler   *Handler
}

func newFixture() *handlerFixture {
	f := &handlerFixture{
		submitter: &fakeSubmitter{},
		tracker:   &fakeTracker{},
		reporter:  &fakeReporter{},
		showcase:  &fakeShowcase{},
	}
	f.handler = &Handler{
		Contact:  f.submitter,
		Tracker:  f.tracker,
		Status:   f.reporter,
		Showcase: f.showcase,
		Log:      zap.NewNop(),
	}
	return f
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.RemoteAddr = "1.2.3.4:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func validSubmission() contact.Submission {
	return contact.Submission{
		Name:    "Jamie Rivera",
		Email:   "jamie@example.com",
		Subject: "Project inquiry",
		Message: "I would like to talk about a freelance project.",
	}
}

func TestSubmitContactSuccess(t *testing.T) {
	f := newFixture()

	rec := postJSON(t, f.handler.Routes(), "/api/contact", validSubmission())

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, contact.MsgSent, resp["message"])

	require.Len(t, f.submitter.identities, 1)
	assert.Equal(t, "1.2.3.4", f.submitter.identities[0])
}

func TestSubmitContactValidationError(t *testing.T) {
	f := newFixture()
	f.submitter.err = contact.ErrValidation

	rec := postJSON(t, f.handler.Routes(), "/api/contact", validSubmission())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, contact.MsgValidationError, resp["message"])
}

func TestSubmitContactRateLimited(t *testing.T) {
	f := newFixture()
	f.submitter.err = ratelimit.ErrRateLimited

	rec := postJSON(t, f.handler.Routes(), "/api/contact", validSubmission())

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, contact.MsgRateLimited, resp["message"])
}

func TestSubmitContactUnexpectedError(t *testing.T) {
	f := newFixture()
	f.submitter.err = errors.New("boom")

	rec := postJSON(t, f.handler.Routes(), "/api/contact", validSubmission())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, contact.MsgSubmissionFailed, resp["message"])
}

func TestSubmitContactMalformedBody(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/contact", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	f.handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.submitter.identities)
}

func TestTrackEventFillsIdentityAndUserAgent(t *testing.T) {
	f := newFixture()

	raw, _ := json.Marshal(analytics.Event{
		Event:     analytics.EventPageView,
		Page:      "/projects",
		Timestamp: "2024-01-01T00:00:00Z",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/analytics/events", bytes.NewReader(raw))
	req.RemoteAddr = "5.6.7.8:40000"
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	f.handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.tracker.events, 1)
	assert.Equal(t, "5.6.7.8", f.tracker.events[0].IP)
	assert.Equal(t, "test-agent", f.tracker.events[0].UserAgent)
}

func TestTrackEventRejectsUnknownName(t *testing.T) {
	f := newFixture()

	rec := postJSON(t, f.handler.Routes(), "/api/analytics/events", map[string]string{
		"event":     "made_up",
		"timestamp": "2024-01-01T00:00:00Z",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.tracker.events)
}

func TestSystemStatus(t *testing.T) {
	f := newFixture()
	f.reporter.snapshot = status.Snapshot{
		Timestamp: "2024-01-01T00:00:00Z",
		Uptime:    42,
		Redis:     status.CacheStatus{Connected: true, Hits: 10, Misses: 2, Keys: 7},
		RabbitMQ: queue.QueueStats{
			Connected: true,
			Queues:    []queue.QueueInfo{{Name: "email_queue", Messages: 1, Consumers: 1}},
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/system-status", nil)
	rec := httptest.NewRecorder()
	f.handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, float64(42), resp["uptime"])

	redis, ok := resp["redis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, redis["connected"])
	assert.Equal(t, float64(7), redis["keys"])

	rabbit, ok := resp["rabbitmq"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, rabbit["connected"])
}

func TestGitHubShowcase(t *testing.T) {
	f := newFixture()
	name := "Alex Chen"
	f.showcase.profile = github.Profile{
		User:  github.User{Login: "alexchen", Name: &name, PublicRepos: 42},
		Repos: []github.Repo{{ID: 1, Name: "react-performance-toolkit", Stars: 1240}},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/github", nil)
	rec := httptest.NewRecorder()
	f.handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var profile github.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "alexchen", profile.User.Login)
	require.Len(t, profile.Repos, 1)
}

func TestGitHubShowcaseFailure(t *testing.T) {
	f := newFixture()
	f.showcase.err = errors.New("api limit")

	req := httptest.NewRequest(http.MethodGet, "/api/github", nil)
	rec := httptest.NewRecorder()
	f.handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClientIdentityPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "203.0.113.9", clientIdentity(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.0.0.1", clientIdentity(req))
}
