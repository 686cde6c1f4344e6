package relay

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/kafka"
)

// KafkaProducer implements Producer on a long-lived sarama SyncProducer.
// Delivery is considered successful only once the broker acknowledges the
// message, not when it is buffered locally.
type KafkaProducer struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
}

// NewKafkaProducer connects a sync producer using the shared client config.
func NewKafkaProducer(cfg *kafka.Config, logger *zap.Logger) (*KafkaProducer, error) {
	conf, err := cfg.ToSaramaConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create sarama config: %w", err)
	}

	producer, err := sarama.NewSyncProducer(cfg.GetBrokers(), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	return &KafkaProducer{producer: producer, logger: logger}, nil
}

// Publish sends one message and waits for broker acknowledgment.
func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	p.logger.Debug("Message produced",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Close releases the producer.
func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}
