// Package rabbitmq wraps amqp091 with a lazily redialed publisher and a
// reconnecting consumer loop.
package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"parkshare/config"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second

	defaultMaxRetries = 5
	defaultRetryDelay = 2 * time.Second

	// attemptHeader counts how many times a message was handed back for retry.
	attemptHeader = "x-parkshare-attempt"
	// deadLetterSuffix names the queue holding messages whose retries ran out.
	deadLetterSuffix = ".dead"
)

// ErrDisabled is returned when no broker URL is configured.
var ErrDisabled = errors.New("rabbitmq is not configured")

// Handler processes one delivery body. An error wrapped with Drop discards the message.
// Any other error republishes it for a later retry until the retry limit moves it to
// the dead-letter queue.
type Handler func(ctx context.Context, body []byte) error

type dropError struct{ err error }

func (e *dropError) Error() string { return e.err.Error() }

func (e *dropError) Unwrap() error { return e.err }

// Drop marks a handler error as permanent: the message is discarded instead of retried.
func Drop(err error) error {
	if err == nil {
		return nil
	}

	return &dropError{err: err}
}

// IsDrop reports whether err was marked with Drop.
func IsDrop(err error) bool {
	var target *dropError

	return errors.As(err, &target)
}

// publisher is the part of *amqp.Channel used to settle failed deliveries.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Broker holds one publishing connection and spawns consumers.
type Broker struct {
	url        string
	prefetch   int
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
	// declared queues on the current channel
	declared map[string]bool
}

// Params holds dependencies for the broker, injected by Fx.
type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// New returns nil when no broker URL is configured.
func New(params Params) *Broker {
	cfg := params.Config.RabbitMQ
	if cfg == nil || cfg.URL == "" {
		return nil
	}

	broker := NewBroker(cfg.URL, cfg.Prefetch, params.Logger)
	if cfg.MaxRetries > 0 {
		broker.maxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		broker.retryDelay = cfg.RetryDelay
	}
	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return broker.Close()
		},
	})

	return broker
}

// NewBroker creates a Broker. No connection is made until first use.
func NewBroker(url string, prefetch int, logger *slog.Logger) *Broker {
	return &Broker{
		url:        url,
		prefetch:   prefetch,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		logger:     logger,
		declared:   make(map[string]bool),
	}
}

// Publish sends a persistent JSON message to the named durable queue.
func (b *Broker) Publish(ctx context.Context, queue string, body []byte, headers map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.channelLocked(queue)
	if err != nil {
		return err
	}

	table := amqp.Table{}
	for k, v := range headers {
		table[k] = v
	}

	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      table,
		Body:         body,
	})
	if err != nil {
		b.resetLocked()

		return errors.Wrapf(err, "publish to %s", queue)
	}

	return nil
}

func (b *Broker) channelLocked(queue string) (*amqp.Channel, error) {
	if b.conn == nil || b.conn.IsClosed() || b.ch == nil || b.ch.IsClosed() {
		b.resetLocked()

		conn, err := amqp.Dial(b.url)
		if err != nil {
			return nil, errors.Wrap(err, "dial broker")
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()

			return nil, errors.Wrap(err, "open channel")
		}
		b.conn, b.ch = conn, ch
	}

	if !b.declared[queue] {
		if _, err := b.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			b.resetLocked()

			return nil, errors.Wrapf(err, "declare queue %s", queue)
		}
		b.declared[queue] = true
	}

	return b.ch, nil
}

func (b *Broker) resetLocked() {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
	b.conn, b.ch = nil, nil
	b.declared = make(map[string]bool)
}

// Close releases the publishing connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()

	return nil
}

// Consume reads the queue until ctx is cancelled, redialing with exponential backoff.
func (b *Broker) Consume(ctx context.Context, queue string, handler Handler) error {
	backoff := minBackoff
	for {
		err := b.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil //nolint:nilerr // cancellation is a clean shutdown
		}

		b.logger.WarnContext(ctx, "RabbitMQ consumer stopped, reconnecting",
			slog.String("queue", queue),
			slog.Duration("backoff", backoff),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

func nextBackoff(current time.Duration) time.Duration {
	if current >= maxBackoff {
		return maxBackoff
	}

	return min(current*2, maxBackoff)
}

func (b *Broker) consumeOnce(ctx context.Context, queue string, handler Handler) error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return errors.Wrap(err, "dial broker")
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "open channel")
	}
	defer func() { _ = ch.Close() }()

	if b.prefetch > 0 {
		if err := ch.Qos(b.prefetch, 0, false); err != nil {
			b.logger.WarnContext(ctx, "Failed to set QoS", slog.Any("error", err))
		}
	}

	for _, name := range []string{queue, queue + deadLetterSuffix} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return errors.Wrapf(err, "declare queue %s", name)
		}
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "consume %s", queue)
	}

	b.logger.InfoContext(ctx, "RabbitMQ consumer started", slog.String("queue", queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			b.settle(ctx, ch, queue, d, handler(ctx, d.Body))
		}
	}
}

// settle acknowledges a handled delivery. A failed one is dropped, republished with
// its attempt count raised, or moved to the dead-letter queue once retries run out.
// When republishing fails the delivery is requeued so it is never lost.
func (b *Broker) settle(ctx context.Context, pub publisher, queue string, d amqp.Delivery, handleErr error) {
	if handleErr == nil {
		_ = d.Ack(false)

		return
	}

	logger := b.logger.With(slog.String("queue", queue), slog.Any("error", handleErr))
	if IsDrop(handleErr) {
		logger.WarnContext(ctx, "Dropping unprocessable message")
		_ = d.Nack(false, false)

		return
	}

	attempt := deliveryAttempt(d) + 1
	target := queue
	if attempt > b.maxRetries {
		target = queue + deadLetterSuffix
		logger.ErrorContext(ctx, "Message retries exhausted, moving to dead-letter queue", slog.Int("attempt", attempt))
	} else {
		logger.WarnContext(ctx, "Failed to handle message, retrying", slog.Int("attempt", attempt))

		select {
		case <-ctx.Done():
			_ = d.Nack(false, true)

			return
		case <-time.After(b.retryDelay * time.Duration(attempt)):
		}
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[attemptHeader] = int32(attempt)

	err := pub.PublishWithContext(ctx, "", target, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         d.Body,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to republish message, requeueing", slog.Any("publishError", err))
		_ = d.Nack(false, true)

		return
	}
	_ = d.Ack(false)
}

// deliveryAttempt reads the retry count stamped by settle.
func deliveryAttempt(d amqp.Delivery) int {
	switch v := d.Headers[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
