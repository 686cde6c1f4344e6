package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/config"
	"github.com/tabletap/tabletap/pkg/kafka"
	"github.com/tabletap/tabletap/pkg/metrics"
	"github.com/tabletap/tabletap/pkg/notify"
	"github.com/tabletap/tabletap/pkg/order"
	"github.com/tabletap/tabletap/pkg/order/memstore"
	"github.com/tabletap/tabletap/pkg/order/pgstore"
	"github.com/tabletap/tabletap/pkg/relay"
	"github.com/tabletap/tabletap/pkg/relay/dlq"
	"github.com/tabletap/tabletap/pkg/rest"
	"github.com/tabletap/tabletap/pkg/seed"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Run the API server, event publisher and dashboard notifier",
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	store, cleanup, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	producer, err := newProducer()
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	deadLog := dlq.New(cfg.Publisher.DeadLetterPath, logger)
	pub := relay.NewPublisher(producer, cfg.Topics, deadLog, logger, relay.Options{
		MaxAttempts: cfg.Publisher.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Publisher.BaseBackoffMS) * time.Millisecond,
		QueueSize:   cfg.Publisher.QueueSize,
	})
	pub.Start(ctx)

	hub := notify.NewHub(cfg.Consumer.HubBuffer, logger)
	startConsumer(ctx, &wg, hub, errChan)

	if cfg.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, logger, &metrics.PromServerOpts{Addr: cfg.Metrics.Addr})
	}

	srv := rest.NewServer(store, pub, hub, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(cfg.HTTP.ListenAddr); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Received termination signal, shutting down gracefully")
	case err := <-errChan:
		logger.Error("Runtime error, shutting down", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	cancel()
	if err := pub.Close(); err != nil {
		logger.Error("Publisher close error", zap.Error(err))
	}

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()
	select {
	case <-doneChan:
		logger.Info("Shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("Shutdown timed out after 10 seconds")
	}

	return nil
}

// openStore picks the Postgres store when a connection string is configured
// and falls back to a seeded in-memory store for local development.
func openStore(ctx context.Context) (order.Store, func(), error) {
	if cfg.PG.ConnString != "" {
		pg, err := pgstore.New(ctx, cfg.PG.ConnString, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
		if err := pg.Seed(ctx, seed.Tables(), seed.MenuItems()); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("failed to seed: %w", err)
		}
		return pg, pg.Close, nil
	}

	logger.Info("No postgres connection configured, using in-memory store")
	mem := memstore.New()
	for _, t := range seed.Tables() {
		mem.AddTable(t)
	}
	for _, mi := range seed.MenuItems() {
		mem.AddMenuItem(mi)
	}
	return mem, func() {}, nil
}

// newProducer builds the broker client for the configured backend.
func newProducer() (relay.Producer, error) {
	switch cfg.Broker {
	case config.BrokerKafka:
		if err := kafka.EnsureTopics(&cfg.Kafka, logger, cfg.Topics.All()...); err != nil {
			return nil, err
		}
		return relay.NewKafkaProducer(&cfg.Kafka, logger)
	case config.BrokerNATS:
		return relay.NewNATSProducer(cfg.NATS, logger)
	default:
		return nil, fmt.Errorf("unsupported broker backend: %s", cfg.Broker)
	}
}

// startConsumer launches the subscriber feeding the dashboard hub.
func startConsumer(ctx context.Context, wg *sync.WaitGroup, hub *notify.Hub, errChan chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		switch cfg.Broker {
		case config.BrokerNATS:
			c := notify.NewNATSConsumer(cfg.NATS, cfg.Consumer.GroupID, cfg.Topics.Chat, hub, logger)
			err = c.Run(ctx)
		default:
			orderTopics := []string{cfg.Topics.Orders, cfg.Topics.StatusUpdate}
			c := notify.NewConsumer(&cfg.Kafka, cfg.Consumer.GroupID, orderTopics, cfg.Topics.Chat, hub, logger)
			err = c.Run(ctx)
		}
		if err != nil {
			select {
			case errChan <- err:
			default:
			}
		}
	}()
}
