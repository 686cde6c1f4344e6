package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// EnsureTopics creates the given topics if they do not exist, using the
// partition count, replication factor and retention from the config.
func EnsureTopics(cfg *Config, logger *zap.Logger, topics ...string) error {
	saramaConfig, err := cfg.ToSaramaConfig()
	if err != nil {
		return fmt.Errorf("failed to create sarama config: %w", err)
	}

	admin, err := sarama.NewClusterAdmin(cfg.GetBrokers(), saramaConfig)
	if err != nil {
		return fmt.Errorf("failed to create cluster admin: %w", err)
	}
	defer admin.Close()

	existing, err := admin.ListTopics()
	if err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}

	retention := fmt.Sprintf("%d", cfg.RetentionMS)
	for _, topic := range topics {
		if _, ok := existing[topic]; ok {
			continue
		}
		detail := &sarama.TopicDetail{
			NumPartitions:     cfg.Partitions,
			ReplicationFactor: cfg.Replicas,
			ConfigEntries: map[string]*string{
				"retention.ms": &retention,
			},
		}
		if err := admin.CreateTopic(topic, detail, false); err != nil {
			return fmt.Errorf("failed to create topic %s: %w", topic, err)
		}
		logger.Info("Topic created", zap.String("topic", topic))
	}
	return nil
}
