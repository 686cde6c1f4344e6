package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingProducer struct {
	published []string
	failTopic string
}

func (p *recordingProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	if topic == p.failTopic {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, topic+"/"+key)
	return nil
}

func testEntry(topic, key string) Entry {
	return Entry{
		Topic:     topic,
		Key:       key,
		Payload:   json.RawMessage(`{"version":1,"order_id":"ORD-1"}`),
		Attempts:  3,
		LastError: "broker unavailable",
		FailedAt:  time.Now(),
	}
}

func TestAppendAndEntries(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "dead.jsonl"), zap.NewNop())

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries, "missing file reads as empty log")

	require.NoError(t, l.Append(testEntry("table-orders", "table-1")))
	require.NoError(t, l.Append(testEntry("order-status-updates", "ORD-1")))

	entries, err = l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "table-orders", entries[0].Topic)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.JSONEq(t, `{"version":1,"order_id":"ORD-1"}`, string(entries[0].Payload))
}

func TestReplayDrainsLog(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "dead.jsonl"), zap.NewNop())
	require.NoError(t, l.Append(testEntry("table-orders", "table-1")))
	require.NoError(t, l.Append(testEntry("table-orders", "table-2")))

	p := &recordingProducer{}
	n, err := l.Replay(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"table-orders/table-1", "table-orders/table-2"}, p.published)

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReplayKeepsFailures(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "dead.jsonl"), zap.NewNop())
	require.NoError(t, l.Append(testEntry("table-orders", "table-1")))
	require.NoError(t, l.Append(testEntry("table-chat", "table-1")))

	p := &recordingProducer{failTopic: "table-chat"}
	n, err := l.Replay(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "table-chat", entries[0].Topic)
	assert.Equal(t, 4, entries[0].Attempts, "failed replay bumps the attempt count")
}

func TestReplayEmptyLog(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "dead.jsonl"), zap.NewNop())
	n, err := l.Replay(context.Background(), &recordingProducer{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
