package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/event"
	"github.com/tabletap/tabletap/pkg/kafka"
	"github.com/tabletap/tabletap/pkg/metrics"
)

// Consumer is the long-lived subscriber feeding the hub. It consumes from
// the group's last committed offset, so restarts resume without loss, and
// reconnects with backoff on broker errors rather than exiting.
type Consumer struct {
	cfg     *kafka.Config
	groupID string
	topics  []string
	chat    string
	hub     *Hub
	tracker *seqTracker
	logger  *zap.Logger
}

// NewConsumer creates a consumer for the order topics and the chat topic.
func NewConsumer(cfg *kafka.Config, groupID string, orderTopics []string, chatTopic string, hub *Hub, logger *zap.Logger) *Consumer {
	return &Consumer{
		cfg:     cfg,
		groupID: groupID,
		topics:  append(append([]string{}, orderTopics...), chatTopic),
		chat:    chatTopic,
		hub:     hub,
		tracker: newSeqTracker(),
		logger:  logger,
	}
}

// Run consumes until the context is canceled. Group rebalances and broker
// disconnects restart the session; the committed offsets make resumption
// at-least-once, which the sequence tracker turns into effective
// exactly-once for dashboard state.
func (c *Consumer) Run(ctx context.Context) error {
	conf, err := c.cfg.ToSaramaConfig()
	if err != nil {
		return err
	}

	group, err := sarama.NewConsumerGroup(c.cfg.GetBrokers(), c.groupID, conf)
	if err != nil {
		return err
	}
	defer group.Close()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // keep reconnecting until shutdown

	handler := &groupHandler{hub: c.hub, tracker: c.tracker, chat: c.chat, logger: c.logger}
	for {
		err := group.Consume(ctx, c.topics, handler)
		if ctx.Err() != nil {
			c.logger.Info("consumer shutting down")
			return nil
		}
		if err != nil && !errors.Is(err, sarama.ErrClosedConsumerGroup) {
			wait := bo.NextBackOff()
			c.logger.Warn("consumer session ended, reconnecting",
				zap.Error(err),
				zap.Duration("backoff", wait))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		// Clean rebalance: rejoin immediately.
		bo.Reset()
	}
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	hub     *Hub
	tracker *seqTracker
	chat    string
	logger  *zap.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim dispatches each message to the hub, then marks its offset.
// Marking after dispatch keeps delivery to dashboards at least once: a
// crash between dispatch and commit redelivers, and the sequence tracker
// absorbs the duplicate.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			metrics.EventsConsumed.WithLabelValues(msg.Topic).Inc()
			h.dispatch(msg)
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}

func (h *groupHandler) dispatch(msg *sarama.ConsumerMessage) {
	if msg.Topic == h.chat {
		chat, err := event.DecodeChatMessage(msg.Value)
		if err != nil {
			h.logger.Warn("discarding undecodable chat message",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return
		}
		data, _ := json.Marshal(chat)
		h.hub.Broadcast(Message{Type: event.TypeChatMessage, Data: data})
		return
	}

	evt, err := event.DecodeOrderEvent(msg.Value)
	if err != nil {
		h.logger.Warn("discarding undecodable event",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return
	}
	if !h.tracker.fresh(evt) {
		metrics.EventsDeduplicated.Inc()
		h.logger.Debug("discarding stale event",
			zap.String("order_id", evt.OrderID),
			zap.Int64("sequence", evt.Sequence))
		return
	}
	data, _ := json.Marshal(evt)
	h.hub.Broadcast(Message{Type: evt.Type, Data: data})
}
