package relay

import (
	"cmp"
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSConfig represents the JetStream backend configuration.
type NATSConfig struct {
	Servers       []string `mapstructure:"servers"`
	Stream        string   `mapstructure:"stream"`
	SubjectPrefix string   `mapstructure:"subjectPrefix"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
}

// ApplyDefaults fills in the default server, stream and subject prefix.
func (c *NATSConfig) ApplyDefaults() {
	if len(c.Servers) == 0 {
		c.Servers = []string{nats.DefaultURL}
	}
	c.SubjectPrefix = cmp.Or(c.SubjectPrefix, "tabletap")
	c.Stream = cmp.Or(c.Stream, fmt.Sprintf("%s-stream", c.SubjectPrefix))
}

// Subject maps a topic name onto the stream's subject space. Keys become
// subject tokens so per-key ordering maps onto per-subject ordering.
func (c *NATSConfig) Subject(topic, key string) string {
	return fmt.Sprintf("%s.%s.%s", c.SubjectPrefix, topic, key)
}

// NATSProducer implements Producer on a JetStream publish. JetStream gives
// the same durable, acknowledged, per-subject-ordered semantics that the
// Kafka backend gets from acks=all and partition keys.
type NATSProducer struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config NATSConfig
	logger *zap.Logger
}

// NewNATSProducer connects and ensures the stream exists.
func NewNATSProducer(cfg NATSConfig, logger *zap.Logger) (*NATSProducer, error) {
	cfg.ApplyDefaults()

	var opts []nats.Option
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	var nc *nats.Conn
	var err error
	for _, server := range cfg.Servers {
		nc, err = nats.Connect(server, opts...)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to NATS server: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &NATSProducer{nc: nc, js: js, config: cfg, logger: logger}
	if err := p.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *NATSProducer) ensureStream() error {
	subject := fmt.Sprintf("%s.>", p.config.SubjectPrefix)
	_, err := p.js.StreamInfo(p.config.Stream)
	if err == nil {
		return nil
	}
	if err != nats.ErrStreamNotFound {
		return err
	}
	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:      p.config.Stream,
		Subjects:  []string{subject},
		Retention: nats.LimitsPolicy,
	})
	if err != nil {
		return err
	}
	p.logger.Info("Stream created", zap.String("stream", p.config.Stream))
	return nil
}

// Publish sends one message and waits for the JetStream acknowledgment.
func (p *NATSProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	_, err := p.js.Publish(p.config.Subject(topic, key), value, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close drains and releases the connection.
func (p *NATSProducer) Close() error {
	p.nc.Close()
	return nil
}
