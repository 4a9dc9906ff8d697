package queue

import amqp "github.com/rabbitmq/amqp091-go"

// Queue identifies one of the declared queues. Using a closed type instead
// of free-form strings means a typo cannot publish into an undeclared queue.
type Queue int

const (
	QueueEmail Queue = iota
	QueueAnalytics
	QueueNotifications
)

// Dead-letter topology: permanently failed messages are routed to
// dead_letter_queue through the dlx exchange.
const (
	DeadLetterExchange   = "dlx"
	DeadLetterQueue      = "dead_letter_queue"
	DeadLetterRoutingKey = "failed"
)

const (
	messageTTLMillis = 24 * 60 * 60 * 1000
	maxRetries       = 3
)

var queueNames = map[Queue]string{
	QueueEmail:         "email_queue",
	QueueAnalytics:     "analytics_queue",
	QueueNotifications: "notifications_queue",
}

func (q Queue) Name() string {
	return queueNames[q]
}

func (q Queue) String() string {
	return q.Name()
}

// All returns every declared queue, in declaration order.
func All() []Queue {
	return []Queue{QueueEmail, QueueAnalytics, QueueNotifications}
}

// declareArgs is the shared per-queue policy: durable storage with a 24h
// message TTL. x-max-retries is advisory metadata carried for operators;
// the consumer side enforces terminal nacks instead of counted redelivery.
func declareArgs() amqp.Table {
	return amqp.Table{
		"x-message-ttl": int64(messageTTLMillis),
		"x-max-retries": int64(maxRetries),
	}
}
