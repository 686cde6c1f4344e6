// Package relay delivers committed order events to the broker at least
// once. The request thread hands the event to a queue and returns; a
// background worker publishes with acknowledged delivery, bounded
// exponential retry and a dead-letter fallback, so broker downtime never
// fails a customer-facing request and never silently drops an event.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/event"
	"github.com/tabletap/tabletap/pkg/metrics"
	"github.com/tabletap/tabletap/pkg/relay/dlq"
)

// Producer is a broker client that performs one acknowledged publish.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

// Topics maps event types to broker topics.
type Topics struct {
	Orders       string `mapstructure:"orders"`
	StatusUpdate string `mapstructure:"statusUpdates"`
	Chat         string `mapstructure:"chat"`
}

// DefaultTopics mirrors the topic names the dashboards consume.
func DefaultTopics() Topics {
	return Topics{
		Orders:       "table-orders",
		StatusUpdate: "order-status-updates",
		Chat:         "table-chat",
	}
}

// All returns every configured topic name.
func (t Topics) All() []string {
	return []string{t.Orders, t.StatusUpdate, t.Chat}
}

// Envelope is one queued publish.
type Envelope struct {
	Topic   string
	Key     string
	Payload []byte
}

// Options tune the publisher's retry and queue behavior.
type Options struct {
	// MaxAttempts is the total number of delivery attempts per event.
	MaxAttempts int
	// BaseBackoff is the initial retry delay; subsequent delays grow
	// exponentially.
	BaseBackoff time.Duration
	// QueueSize bounds the handoff channel between request threads and the
	// publish worker.
	QueueSize int
}

func (o *Options) applyDefaults() {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.BaseBackoff == 0 {
		o.BaseBackoff = 200 * time.Millisecond
	}
	if o.QueueSize == 0 {
		o.QueueSize = 256
	}
}

// Publisher owns the long-lived broker client and the async publish worker.
type Publisher struct {
	producer Producer
	topics   Topics
	deadLog  *dlq.Log
	logger   *zap.Logger
	opts     Options

	queue chan Envelope
	done  chan struct{}
	once  sync.Once
}

// NewPublisher wires a publisher around an existing producer. Call Start to
// launch the worker.
func NewPublisher(producer Producer, topics Topics, deadLog *dlq.Log, logger *zap.Logger, opts Options) *Publisher {
	opts.applyDefaults()
	return &Publisher{
		producer: producer,
		topics:   topics,
		deadLog:  deadLog,
		logger:   logger,
		opts:     opts,
		queue:    make(chan Envelope, opts.QueueSize),
		done:     make(chan struct{}),
	}
}

// Start launches the publish worker. It runs until the context is canceled,
// then drains whatever is already queued before returning.
func (p *Publisher) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case env := <-p.queue:
				p.deliver(ctx, env)
			case <-ctx.Done():
				// Drain: events already accepted must not be lost.
				for {
					select {
					case env := <-p.queue:
						p.deliver(context.Background(), env)
					default:
						return
					}
				}
			}
		}
	}()
}

// Close waits for the worker to finish and releases the broker client.
func (p *Publisher) Close() error {
	<-p.done
	var err error
	p.once.Do(func() {
		err = p.producer.Close()
	})
	return err
}

// PublishOrderEvent queues a committed order event for delivery. It never
// blocks the caller: when the queue is full the event goes straight to the
// dead-letter log.
func (p *Publisher) PublishOrderEvent(evt *event.OrderEvent) error {
	payload, err := evt.Encode()
	if err != nil {
		return fmt.Errorf("relay: encode event: %w", err)
	}
	topic := p.topics.Orders
	if evt.Type == event.TypeStatusChanged {
		topic = p.topics.StatusUpdate
	}
	return p.enqueue(Envelope{Topic: topic, Key: evt.Key(), Payload: payload})
}

// PublishChat queues a chat message for delivery.
func (p *Publisher) PublishChat(msg *event.ChatMessage) error {
	payload, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("relay: encode chat: %w", err)
	}
	return p.enqueue(Envelope{Topic: p.topics.Chat, Key: msg.Key(), Payload: payload})
}

func (p *Publisher) enqueue(env Envelope) error {
	select {
	case p.queue <- env:
		return nil
	default:
		metrics.DeadLettered.WithLabelValues(env.Topic).Inc()
		return p.deadLog.Append(dlq.Entry{
			Topic:     env.Topic,
			Key:       env.Key,
			Payload:   json.RawMessage(env.Payload),
			LastError: "publish queue full",
			FailedAt:  time.Now(),
		})
	}
}

// deliver attempts acknowledged delivery with exponential backoff. After
// the retry budget is spent the envelope lands in the dead-letter log.
func (p *Publisher) deliver(ctx context.Context, env Envelope) {
	timer := prometheus.NewTimer(metrics.PublishDuration.WithLabelValues(env.Topic))
	defer timer.ObserveDuration()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.opts.BaseBackoff
	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(p.opts.MaxAttempts-1)),
		ctx,
	)

	attempts := 0
	op := func() error {
		attempts++
		err := p.producer.Publish(ctx, env.Topic, env.Key, env.Payload)
		if err != nil {
			metrics.PublishErrors.WithLabelValues(env.Topic).Inc()
			p.logger.Warn("publish attempt failed",
				zap.String("topic", env.Topic),
				zap.String("key", env.Key),
				zap.Int("attempt", attempts),
				zap.Error(err))
		}
		return err
	}

	if err := backoff.Retry(op, policy); err != nil {
		metrics.DeadLettered.WithLabelValues(env.Topic).Inc()
		if dlqErr := p.deadLog.Append(dlq.Entry{
			Topic:     env.Topic,
			Key:       env.Key,
			Payload:   json.RawMessage(env.Payload),
			Attempts:  attempts,
			LastError: err.Error(),
			FailedAt:  time.Now(),
		}); dlqErr != nil {
			p.logger.Error("failed to dead-letter event",
				zap.String("topic", env.Topic),
				zap.String("key", env.Key),
				zap.Error(dlqErr))
		}
		return
	}
	metrics.EventsPublished.WithLabelValues(env.Topic).Inc()
}
