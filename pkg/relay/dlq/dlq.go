// Package dlq is a durable dead-letter log for events that exhausted their
// publish retry budget. Entries are appended as JSON lines so they survive
// restarts and can be inspected with standard tools, then replayed once the
// broker recovers.
package dlq

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry is one failed publish.
type Entry struct {
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error"`
	FailedAt  time.Time       `json:"failed_at"`
}

// Producer is the subset of the publisher's broker client Replay needs.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Log is an append-only JSONL file, safe for concurrent appends.
type Log struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// New opens (or lazily creates) the log at path.
func New(path string, logger *zap.Logger) *Log {
	return &Log{path: path, logger: logger}
}

// Append records a failed publish. Append errors are returned, not
// swallowed: losing a dead letter means losing the event entirely.
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("dlq: open: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(e); err != nil {
		return fmt.Errorf("dlq: write: %w", err)
	}
	l.logger.Warn("event dead-lettered",
		zap.String("topic", e.Topic),
		zap.String("key", e.Key),
		zap.Int("attempts", e.Attempts),
		zap.String("last_error", e.LastError))
	return nil
}

// Entries reads all recorded entries. A missing file is an empty log.
func (l *Log) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAll()
}

func (l *Log) readAll() ([]Entry, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dlq: open: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("dlq: corrupt entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dlq: read: %w", err)
	}
	return entries, nil
}

// Replay re-publishes every recorded entry. Entries that publish
// successfully are removed; any that fail again are kept, so replay is safe
// to run repeatedly until the log drains. Returns the number replayed.
func (l *Log) Replay(ctx context.Context, producer Producer) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readAll()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var remaining []Entry
	replayed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			remaining = append(remaining, e)
			continue
		}
		if err := producer.Publish(ctx, e.Topic, e.Key, e.Payload); err != nil {
			e.Attempts++
			e.LastError = err.Error()
			remaining = append(remaining, e)
			continue
		}
		replayed++
	}

	if err := l.rewrite(remaining); err != nil {
		return replayed, err
	}
	l.logger.Info("dead-letter replay finished",
		zap.Int("replayed", replayed),
		zap.Int("remaining", len(remaining)))
	return replayed, nil
}

// rewrite atomically replaces the log with the given entries.
func (l *Log) rewrite(entries []Entry) error {
	if len(entries) == 0 {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("dlq: remove: %w", err)
		}
		return nil
	}

	tmp := l.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("dlq: rewrite: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			f.Close()
			return fmt.Errorf("dlq: rewrite: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("dlq: rewrite: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("dlq: rewrite: %w", err)
	}
	return nil
}
