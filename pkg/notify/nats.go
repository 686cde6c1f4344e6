package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/event"
	"github.com/tabletap/tabletap/pkg/metrics"
	"github.com/tabletap/tabletap/pkg/relay"
)

// NATSConsumer is the JetStream counterpart of Consumer. A durable pull
// consumer checkpoints delivery the same way a Kafka group offset does.
type NATSConsumer struct {
	cfg     relay.NATSConfig
	durable string
	chat    string
	hub     *Hub
	tracker *seqTracker
	logger  *zap.Logger
}

// NewNATSConsumer creates a subscriber over the stream's full subject space.
func NewNATSConsumer(cfg relay.NATSConfig, durable, chatTopic string, hub *Hub, logger *zap.Logger) *NATSConsumer {
	return &NATSConsumer{
		cfg:     cfg,
		durable: durable,
		chat:    chatTopic,
		hub:     hub,
		tracker: newSeqTracker(),
		logger:  logger,
	}
}

// Run consumes until the context is canceled.
func (c *NATSConsumer) Run(ctx context.Context) error {
	c.cfg.ApplyDefaults()

	var opts []nats.Option
	if c.cfg.Username != "" {
		opts = append(opts, nats.UserInfo(c.cfg.Username, c.cfg.Password))
	}
	opts = append(opts,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)

	var nc *nats.Conn
	var err error
	for _, server := range c.cfg.Servers {
		nc, err = nats.Connect(server, opts...)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("connect to NATS server: %w", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	subject := fmt.Sprintf("%s.>", c.cfg.SubjectPrefix)
	sub, err := js.PullSubscribe(subject, c.durable)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("consumer shutting down")
			return nil
		}
		msgs, err := sub.Fetch(64, nats.Context(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if err == nats.ErrTimeout {
				continue
			}
			c.logger.Warn("fetch failed", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		for _, msg := range msgs {
			c.dispatch(msg)
			if err := msg.Ack(); err != nil {
				c.logger.Warn("ack failed", zap.Error(err))
			}
		}
	}
}

// topicOf extracts the topic token from "<prefix>.<topic>.<key>".
func (c *NATSConsumer) topicOf(subject string) string {
	rest := strings.TrimPrefix(subject, c.cfg.SubjectPrefix+".")
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		return rest[:i]
	}
	return rest
}

func (c *NATSConsumer) dispatch(msg *nats.Msg) {
	topic := c.topicOf(msg.Subject)
	metrics.EventsConsumed.WithLabelValues(topic).Inc()

	if topic == c.chat {
		chat, err := event.DecodeChatMessage(msg.Data)
		if err != nil {
			c.logger.Warn("discarding undecodable chat message", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		data, _ := json.Marshal(chat)
		c.hub.Broadcast(Message{Type: event.TypeChatMessage, Data: data})
		return
	}

	evt, err := event.DecodeOrderEvent(msg.Data)
	if err != nil {
		c.logger.Warn("discarding undecodable event", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	if !c.tracker.fresh(evt) {
		metrics.EventsDeduplicated.Inc()
		return
	}
	data, _ := json.Marshal(evt)
	c.hub.Broadcast(Message{Type: evt.Type, Data: data})
}
