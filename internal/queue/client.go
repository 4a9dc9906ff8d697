package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/alexchen/portfolio-backend/internal/metrics"
	"github.com/alexchen/portfolio-backend/internal/models"
)

var (
	// ErrDeliveriesClosed is returned by Consume when the broker closes the
	// delivery channel underneath a running worker.
	ErrDeliveriesClosed = errors.New("queue: delivery channel closed")

	// ErrNotConnected is returned by Consume while the broker is down.
	ErrNotConnected = errors.New("queue: not connected")
)

// Channel is the slice of the AMQP channel API the client uses.
// *amqp091.Channel satisfies it; tests substitute a fake.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Handler processes one message body. A non-nil error nacks the message
// without requeue, which routes it to the dead-letter path.
type Handler func(ctx context.Context, body []byte) error

// Client wraps the durable message broker. Publishes never surface transport
// errors: when the broker is down they report false and the caller decides
// how to degrade.
type Client struct {
	url string
	log *zap.Logger

	mu        sync.Mutex
	conn      *amqp.Connection
	channel   Channel
	connected atomic.Bool
}

// QueueStats is the best-effort broker introspection payload.
type QueueStats struct {
	Connected bool        `json:"connected"`
	Queues    []QueueInfo `json:"queues"`
}

type QueueInfo struct {
	Name      string `json:"name"`
	Messages  int    `json:"messages"`
	Consumers int    `json:"consumers"`
}

func New(url string, log *zap.Logger) *Client {
	return &Client{
		url: url,
		log: log,
	}
}

// Connect dials the broker, opens a channel and declares the queue topology.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		c.connected.Store(false)
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		c.connected.Store(false)
		return err
	}

	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		c.connected.Store(false)
		return err
	}

	c.conn = conn
	c.channel = ch
	c.connected.Store(true)

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-closed; ok && err != nil {
			c.log.Error("broker connection closed", zap.Error(err))
		}
		c.connected.Store(false)
	}()

	c.log.Info("broker connected",
		zap.Int("queues", len(All())),
		zap.String("dead_letter_queue", DeadLetterQueue))
	return nil
}

func declareTopology(ch Channel) error {
	for _, q := range All() {
		if _, err := ch.QueueDeclare(q.Name(), true, false, false, false, declareArgs()); err != nil {
			return err
		}
	}

	if err := ch.ExchangeDeclare(DeadLetterExchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return err
	}
	return ch.QueueBind(DeadLetterQueue, DeadLetterRoutingKey, DeadLetterExchange, false, nil)
}

// Monitor redials the broker with exponential backoff whenever the
// connection drops. Runs until ctx is cancelled.
func (c *Client) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.connected.Load() {
				continue
			}

			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxElapsedTime = 0

			err := backoff.Retry(func() error {
				c.mu.Lock()
				defer c.mu.Unlock()
				return c.connectLocked()
			}, backoff.WithContext(b, ctx))
			if err == nil {
				c.log.Info("broker reconnected")
			}
		}
	}
}

// Connected reports whether the broker connection is up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// ch snapshots the current channel. Nil while disconnected or closed.
func (c *Client) ch() Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected.Load() {
		return nil
	}
	return c.channel
}

// Publish serializes payload and sends it to q as a persistent, timestamped,
// uniquely identified message. Returns false, never an error, when the
// broker is unreachable or rejects the message.
func (c *Client) Publish(ctx context.Context, q Queue, payload any) bool {
	ch := c.ch()
	if ch == nil {
		c.log.Warn("cannot publish, broker not connected", zap.Stringer("queue", q))
		metrics.PublishFailures.WithLabelValues(q.Name()).Inc()
		return false
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("payload marshal failed", zap.Stringer("queue", q), zap.Error(err))
		metrics.PublishFailures.WithLabelValues(q.Name()).Inc()
		return false
	}

	err = ch.PublishWithContext(ctx, "", q.Name(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		MessageId:    uuid.NewString(),
		Body:         body,
	})
	if err != nil {
		c.log.Error("publish failed", zap.Stringer("queue", q), zap.Error(err))
		metrics.PublishFailures.WithLabelValues(q.Name()).Inc()
		return false
	}

	metrics.MessagesPublished.WithLabelValues(q.Name()).Inc()
	return true
}

// PublishEmail queues an email job for the email worker.
func (c *Client) PublishEmail(ctx context.Context, job models.EmailJob) bool {
	return c.Publish(ctx, QueueEmail, job)
}

// PublishAnalytics queues an analytics event for the analytics worker.
func (c *Client) PublishAnalytics(ctx context.Context, event any) bool {
	return c.Publish(ctx, QueueAnalytics, event)
}

// PublishNotification queues an arbitrary notification payload.
func (c *Client) PublishNotification(ctx context.Context, notification any) bool {
	return c.Publish(ctx, QueueNotifications, notification)
}

// Stats inspects each declared queue passively. When the broker is
// unreachable it reports connected=false with no queue entries.
func (c *Client) Stats(ctx context.Context) QueueStats {
	ch := c.ch()
	if ch == nil {
		return QueueStats{Connected: false, Queues: []QueueInfo{}}
	}

	infos := make([]QueueInfo, 0, len(All()))
	for _, q := range All() {
		state, err := ch.QueueDeclarePassive(q.Name(), true, false, false, false, declareArgs())
		if err != nil {
			c.log.Error("queue inspection failed", zap.Stringer("queue", q), zap.Error(err))
			return QueueStats{Connected: false, Queues: []QueueInfo{}}
		}
		infos = append(infos, QueueInfo{
			Name:      state.Name,
			Messages:  state.Messages,
			Consumers: state.Consumers,
		})
	}

	return QueueStats{Connected: true, Queues: infos}
}

// Consume drains q with manual acknowledgment, invoking handler per message.
// Handler failure (or panic) nacks the message without requeue so it falls
// to the dead-letter path; the loop itself keeps running. Returns when ctx
// is cancelled or the broker closes the delivery channel.
func (c *Client) Consume(ctx context.Context, q Queue, handler Handler) error {
	ch := c.ch()
	if ch == nil {
		return ErrNotConnected
	}

	deliveries, err := ch.Consume(q.Name(), "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				c.connected.Store(false)
				return ErrDeliveriesClosed
			}
			c.handle(ctx, q, d, handler)
		}
	}
}

func (c *Client) handle(ctx context.Context, q Queue, d amqp.Delivery, handler Handler) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.New("handler panic")
				c.log.Error("handler panicked",
					zap.Stringer("queue", q),
					zap.String("message_id", d.MessageId),
					zap.Any("panic", r))
			}
		}()
		return handler(ctx, d.Body)
	}()

	if err != nil {
		c.log.Error("message processing failed",
			zap.Stringer("queue", q),
			zap.String("message_id", d.MessageId),
			zap.Error(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.log.Error("nack failed", zap.Stringer("queue", q), zap.Error(nackErr))
		}
		metrics.MessagesFailed.WithLabelValues(q.Name()).Inc()
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.log.Error("ack failed", zap.Stringer("queue", q), zap.Error(ackErr))
		return
	}
	metrics.MessagesProcessed.WithLabelValues(q.Name()).Inc()
}

// Close shuts the channel then the connection. Idempotent; errors are
// swallowed apart from logging.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.log.Debug("channel close", zap.Error(err))
		}
		c.channel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.log.Debug("connection close", zap.Error(err))
		}
		c.conn = nil
	}
	c.connected.Store(false)
}
