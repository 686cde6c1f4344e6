// Package config loads application configuration from file or environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/tabletap/tabletap/pkg/kafka"
	"github.com/tabletap/tabletap/pkg/relay"
)

// Version is stamped at build time.
var Version = "dev"

// Broker backends.
const (
	BrokerKafka = "kafka"
	BrokerNATS  = "nats"
)

// Config holds application-wide configuration.
type Config struct {
	HTTP      HTTPConfig       `mapstructure:"http"`
	PG        PGConfig         `mapstructure:"pg"`
	Broker    string           `mapstructure:"broker"`
	Kafka     kafka.Config     `mapstructure:"kafka"`
	NATS      relay.NATSConfig `mapstructure:"nats"`
	Topics    relay.Topics     `mapstructure:"topics"`
	Consumer  ConsumerConfig   `mapstructure:"consumer"`
	Publisher PublisherConfig  `mapstructure:"publisher"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
}

type HTTPConfig struct {
	ListenAddr string `mapstructure:"listenAddr"`
}

type PGConfig struct {
	ConnString string `mapstructure:"connString"`
}

type ConsumerConfig struct {
	GroupID   string `mapstructure:"groupID"`
	HubBuffer int    `mapstructure:"hubBuffer"`
}

type PublisherConfig struct {
	MaxAttempts    int    `mapstructure:"maxAttempts"`
	BaseBackoffMS  int    `mapstructure:"baseBackoffMs"`
	QueueSize      int    `mapstructure:"queueSize"`
	DeadLetterPath string `mapstructure:"deadLetterPath"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads config from file or environment.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("tabletap")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("TABLETAP")

	v.SetDefault("http.listenAddr", ":8080")
	v.SetDefault("broker", BrokerKafka)
	v.SetDefault("consumer.groupID", "tabletap-notifier")
	v.SetDefault("consumer.hubBuffer", 64)
	v.SetDefault("publisher.maxAttempts", 3)
	v.SetDefault("publisher.baseBackoffMs", 200)
	v.SetDefault("publisher.queueSize", 256)
	v.SetDefault("publisher.deadLetterPath", "tabletap-deadletter.jsonl")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9100")
	v.SetDefault("topics.orders", "table-orders")
	v.SetDefault("topics.statusUpdates", "order-status-updates")
	v.SetDefault("topics.chat", "table-chat")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}
