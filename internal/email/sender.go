package email

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/gomail.v2"

	"github.com/alexchen/portfolio-backend/internal/models"
)

type Sender struct {
	Host string
	Port int
	From string
}

// Send delivers the job over SMTP with the HTML body and a plain-text
// alternative part.
func (s *Sender) Send(job models.EmailJob) error {
	from := job.From
	if from == "" {
		from = s.From
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", job.To)
	m.SetHeader("Subject", job.Subject)
	if job.ReplyTo != "" {
		m.SetHeader("Reply-To", job.ReplyTo)
	}
	if job.Text != "" {
		m.SetBody("text/plain", job.Text)
		m.AddAlternative("text/html", job.HTML)
	} else {
		m.SetBody("text/html", job.HTML)
	}

	d := gomail.NewDialer(s.Host, s.Port, "", "")

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send error: %w", err)
	}

	return nil
}

// SendWithRetry retries the send with exponential backoff.
func (s *Sender) SendWithRetry(
	ctx context.Context,
	job models.EmailJob,
	retries int,
) error {

	operation := func() error {
		return s.Send(job)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = time.Duration(retries) * time.Second

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
