package contact

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"go.uber.org/zap"

	"github.com/alexchen/portfolio-backend/internal/analytics"
	"github.com/alexchen/portfolio-backend/internal/metrics"
	"github.com/alexchen/portfolio-backend/internal/models"
)

const subjectPrefix = "Portfolio Contact: "

// EmailPublisher queues an email job for async delivery.
type EmailPublisher interface {
	PublishEmail(ctx context.Context, job models.EmailJob) bool
}

// EmailSender delivers an email synchronously. Used as the fallback when the
// broker refuses the job.
type EmailSender interface {
	Send(job models.EmailJob) error
}

// Gate admits or rejects a submission for an identity.
type Gate interface {
	Allow(ctx context.Context, identity string) error
}

// Tracker records an analytics event.
type Tracker interface {
	Track(ctx context.Context, event analytics.Event)
}

// Service is the contact submission path: validate, rate-limit, queue the
// notification email, track the event. Infrastructure trouble never fails a
// submission; only validation and the rate gate do.
type Service struct {
	gate      Gate
	publisher EmailPublisher
	sender    EmailSender
	tracker   Tracker
	recipient string
	log       *zap.Logger
}

func NewService(
	gate Gate,
	publisher EmailPublisher,
	sender EmailSender,
	tracker Tracker,
	recipient string,
	log *zap.Logger,
) *Service {
	return &Service{
		gate:      gate,
		publisher: publisher,
		sender:    sender,
		tracker:   tracker,
		recipient: recipient,
		log:       log,
	}
}

// Submit processes one contact form submission from the given client
// identity. Returns ErrValidation or the gate's rate-limited error on
// rejection; nil means the submitter should see the sent confirmation.
func (s *Service) Submit(ctx context.Context, sub Submission, identity string) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	if err := s.gate.Allow(ctx, identity); err != nil {
		metrics.SubmissionsRateLimited.Inc()
		return err
	}
	metrics.SubmissionsAccepted.Inc()

	job, err := s.buildEmailJob(sub)
	if err != nil {
		// Template rendering is static; failure here is a programming error,
		// but the submitter still should not pay for it.
		s.log.Error("email job build failed", zap.Error(err))
	} else if !s.publisher.PublishEmail(ctx, job) {
		s.log.Warn("email not queued, sending synchronously",
			zap.String("subject", job.Subject))
		if sendErr := s.sender.Send(job); sendErr != nil {
			s.log.Error("synchronous email fallback failed",
				zap.String("subject", job.Subject),
				zap.Error(sendErr))
		}
	}

	// Tracked even when the email could not be queued or sent.
	s.tracker.Track(ctx, analytics.Event{
		Event: analytics.EventContactFormSubmit,
		Metadata: map[string]any{
			"subject":    sub.Subject,
			"hasMessage": len(sub.Message) > 0,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		IP:        identity,
	})

	return nil
}

var htmlBody = htmltemplate.Must(htmltemplate.New("contact").Funcs(htmltemplate.FuncMap{
	"nl2br": func(s string) htmltemplate.HTML {
		escaped := htmltemplate.HTMLEscapeString(s)
		return htmltemplate.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
	},
}).Parse(`<h2>New Contact Form Submission</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Subject:</strong> {{.Subject}}</p>
<p><strong>Message:</strong></p>
<p>{{nl2br .Message}}</p>
<hr>
<p><small>Sent from portfolio contact form</small></p>
`))

var textBody = texttemplate.Must(texttemplate.New("contact").Parse(`New Contact Form Submission

Name: {{.Name}}
Email: {{.Email}}
Subject: {{.Subject}}

Message:
{{.Message}}
`))

func (s *Service) buildEmailJob(sub Submission) (models.EmailJob, error) {
	var html bytes.Buffer
	if err := htmlBody.Execute(&html, sub); err != nil {
		return models.EmailJob{}, fmt.Errorf("html template: %w", err)
	}

	var text bytes.Buffer
	if err := textBody.Execute(&text, sub); err != nil {
		return models.EmailJob{}, fmt.Errorf("text template: %w", err)
	}

	return models.EmailJob{
		To:      s.recipient,
		Subject: subjectPrefix + sub.Subject,
		HTML:    html.String(),
		Text:    text.String(),
		ReplyTo: sub.Email,
	}, nil
}
