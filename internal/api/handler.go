package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/alexchen/portfolio-backend/internal/analytics"
	"github.com/alexchen/portfolio-backend/internal/contact"
	"github.com/alexchen/portfolio-backend/internal/github"
	"github.com/alexchen/portfolio-backend/internal/ratelimit"
	"github.com/alexchen/portfolio-backend/internal/status"
)

// Submitter handles one contact form submission.
type Submitter interface {
	Submit(ctx context.Context, sub contact.Submission, identity string) error
}

// Tracker records an analytics event.
type Tracker interface {
	Track(ctx context.Context, event analytics.Event)
}

// StatusReporter assembles the system status snapshot.
type StatusReporter interface {
	Snapshot(ctx context.Context) status.Snapshot
}

// ShowcaseSource provides the GitHub showcase data.
type ShowcaseSource interface {
	Profile(ctx context.Context) (github.Profile, error)
}

type Handler struct {
	Contact  Submitter
	Tracker  Tracker
	Status   StatusReporter
	Showcase ShowcaseSource
	Log      *zap.Logger
}

// Routes wires the API surface onto a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/contact", h.SubmitContact)
	mux.HandleFunc("POST /api/analytics/events", h.TrackEvent)
	mux.HandleFunc("GET /api/system-status", h.SystemStatus)
	mux.HandleFunc("GET /api/github", h.GitHub)
	return mux
}

func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var sub contact.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": contact.MsgValidationError,
		})
		return
	}

	err := h.Contact.Submit(r.Context(), sub, clientIdentity(r))
	switch {
	case errors.Is(err, contact.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": contact.MsgValidationError,
			"detail":  err.Error(),
		})
	case errors.Is(err, ratelimit.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"success": false,
			"message": contact.MsgRateLimited,
		})
	case err != nil:
		h.Log.Error("contact submission failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": contact.MsgSubmissionFailed,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": contact.MsgSent,
		})
	}
}

func (h *Handler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var event analytics.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false})
		return
	}
	if err := event.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false})
		return
	}

	if event.IP == "" {
		event.IP = clientIdentity(r)
	}
	if event.UserAgent == "" {
		event.UserAgent = r.UserAgent()
	}

	h.Tracker.Track(r.Context(), event)
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
}

func (h *Handler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := h.Status.Snapshot(r.Context())
	writeJSON(w, http.StatusOK, struct {
		status.Snapshot
		Status string `json:"status"`
	}{Snapshot: snapshot, Status: "healthy"})
}

func (h *Handler) GitHub(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Showcase.Profile(r.Context())
	if err != nil {
		h.Log.Error("github showcase fetch failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "Failed to fetch GitHub data. Please try again later.",
		})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// clientIdentity derives the rate-limit identity for a request: the first
// X-Forwarded-For hop when present, otherwise the remote address.
func clientIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
