package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contact_submissions_accepted_total",
			Help: "Contact form submissions admitted past the rate gate",
		},
	)

	SubmissionsRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contact_submissions_rate_limited_total",
			Help: "Contact form submissions rejected by the rate gate",
		},
	)

	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total emails sent",
		},
	)

	EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_failures_total",
			Help: "Total failed emails",
		},
	)

	MessagesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_published_total",
			Help: "Messages accepted by the broker, per queue",
		},
		[]string{"queue"},
	)

	PublishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_publish_failures_total",
			Help: "Publishes refused or failed, per queue",
		},
		[]string{"queue"},
	)

	MessagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_messages_processed_total",
			Help: "Messages acknowledged by workers, per queue",
		},
		[]string{"queue"},
	)

	MessagesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_messages_failed_total",
			Help: "Messages nacked to the dead-letter path, per queue",
		},
		[]string{"queue"},
	)
)

func Init() {
	prometheus.MustRegister(
		SubmissionsAccepted,
		SubmissionsRateLimited,
		EmailsSent,
		EmailFailures,
		MessagesPublished,
		PublishFailures,
		MessagesProcessed,
		MessagesFailed,
	)
}
