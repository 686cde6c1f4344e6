package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/relay/dlq"
)

var replayTimeout time.Duration

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-publish dead-lettered events to the broker",
	Long: `Replay reads the dead-letter log and re-publishes each entry to its
original topic. Entries that publish successfully are removed from the log;
entries that fail again are kept for a later replay.`,
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), replayTimeout)
	defer cancel()

	producer, err := newProducer()
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	defer producer.Close()

	deadLog := dlq.New(cfg.Publisher.DeadLetterPath, logger)
	replayed, err := deadLog.Replay(ctx, producer)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	logger.Info("Replay finished", zap.Int("replayed", replayed))
	fmt.Printf("replayed %d dead-lettered events\n", replayed)
	return nil
}

func init() {
	replayCmd.Flags().DurationVar(&replayTimeout, "timeout", 2*time.Minute, "Abort replay after this duration")
}
