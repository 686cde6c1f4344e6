package relay

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/event"
	"github.com/tabletap/tabletap/pkg/relay/dlq"
)

// fakeProducer fails the first failures calls, then succeeds.
type fakeProducer struct {
	mu        sync.Mutex
	failures  int
	calls     int
	published []Envelope
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, Envelope{Topic: topic, Key: key, Payload: value})
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) snapshot() (int, []Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, append([]Envelope(nil), p.published...)
}

func newTestPublisher(t *testing.T, producer Producer, opts Options) (*Publisher, *dlq.Log, context.CancelFunc) {
	t.Helper()
	deadLog := dlq.New(filepath.Join(t.TempDir(), "dead.jsonl"), zap.NewNop())
	p := NewPublisher(producer, DefaultTopics(), deadLog, zap.NewNop(), opts)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = p.Close()
	})
	return p, deadLog, cancel
}

func placedEvent() *event.OrderEvent {
	return &event.OrderEvent{
		Type:      event.TypeOrderPlaced,
		OrderID:   "ORD-000001DEADBEEF",
		TableID:   1,
		Status:    "received",
		Sequence:  1,
		Timestamp: time.Now(),
	}
}

func TestPublishDeliversToTopic(t *testing.T) {
	producer := &fakeProducer{}
	p, _, _ := newTestPublisher(t, producer, Options{})

	require.NoError(t, p.PublishOrderEvent(placedEvent()))

	require.Eventually(t, func() bool {
		_, published := producer.snapshot()
		return len(published) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, published := producer.snapshot()
	assert.Equal(t, "table-orders", published[0].Topic)
	assert.Equal(t, "table-1", published[0].Key)

	evt := placedEvent()
	evt.Type = event.TypeStatusChanged
	evt.Sequence = 2
	require.NoError(t, p.PublishOrderEvent(evt))

	require.Eventually(t, func() bool {
		_, published := producer.snapshot()
		return len(published) == 2
	}, 2*time.Second, 10*time.Millisecond)

	_, published = producer.snapshot()
	assert.Equal(t, "order-status-updates", published[1].Topic)
	assert.Equal(t, evt.OrderID, published[1].Key)
}

func TestPublishRetriesTransientFailure(t *testing.T) {
	producer := &fakeProducer{failures: 2}
	p, deadLog, _ := newTestPublisher(t, producer, Options{MaxAttempts: 3, BaseBackoff: time.Millisecond})

	require.NoError(t, p.PublishOrderEvent(placedEvent()))

	require.Eventually(t, func() bool {
		_, published := producer.snapshot()
		return len(published) == 1
	}, 2*time.Second, 10*time.Millisecond)

	calls, _ := producer.snapshot()
	assert.Equal(t, 3, calls)

	entries, err := deadLog.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPublishDeadLettersAfterRetryBudget(t *testing.T) {
	producer := &fakeProducer{failures: 100}
	p, deadLog, _ := newTestPublisher(t, producer, Options{MaxAttempts: 3, BaseBackoff: time.Millisecond})

	require.NoError(t, p.PublishOrderEvent(placedEvent()))

	require.Eventually(t, func() bool {
		entries, err := deadLog.Entries()
		return err == nil && len(entries) == 1
	}, 2*time.Second, 10*time.Millisecond)

	entries, err := deadLog.Entries()
	require.NoError(t, err)
	assert.Equal(t, "table-orders", entries[0].Topic)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.Contains(t, entries[0].LastError, "broker unavailable")
}

func TestEnqueueFullQueueDeadLetters(t *testing.T) {
	producer := &fakeProducer{}
	deadLog := dlq.New(filepath.Join(t.TempDir(), "dead.jsonl"), zap.NewNop())
	// Worker never started: the queue fills and overflow dead-letters.
	p := NewPublisher(producer, DefaultTopics(), deadLog, zap.NewNop(), Options{QueueSize: 1})

	require.NoError(t, p.PublishOrderEvent(placedEvent()))
	require.NoError(t, p.PublishOrderEvent(placedEvent()))

	entries, err := deadLog.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "publish queue full", entries[0].LastError)
}

func TestChatTopicRouting(t *testing.T) {
	producer := &fakeProducer{}
	p, _, _ := newTestPublisher(t, producer, Options{})

	require.NoError(t, p.PublishChat(&event.ChatMessage{TableID: 5, Sender: event.SenderTable, Text: "water please"}))

	require.Eventually(t, func() bool {
		_, published := producer.snapshot()
		return len(published) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, published := producer.snapshot()
	assert.Equal(t, "table-chat", published[0].Topic)
	assert.Equal(t, "table-5", published[0].Key)
}
