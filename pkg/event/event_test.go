package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderEventKey(t *testing.T) {
	placed := &OrderEvent{Type: TypeOrderPlaced, OrderID: "ORD-1", TableID: 7}
	assert.Equal(t, "table-7", placed.Key())

	status := &OrderEvent{Type: TypeStatusChanged, OrderID: "ORD-1", TableID: 7}
	assert.Equal(t, "ORD-1", status.Key())
}

func TestOrderEventRoundTrip(t *testing.T) {
	evt := &OrderEvent{
		Type:      TypeOrderPlaced,
		OrderID:   "ORD-000001ABCDEF12",
		TableID:   3,
		Status:    "received",
		Items:     []OrderItem{{ID: 10, Name: "Margherita Pizza", Quantity: 2, Price: 8.99}},
		Total:     17.98,
		Sequence:  1,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := evt.Encode()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, evt.Version, "Encode stamps the version")

	got, err := DecodeOrderEvent(data)
	require.NoError(t, err)
	assert.Equal(t, evt.OrderID, got.OrderID)
	assert.Equal(t, evt.Sequence, got.Sequence)
	assert.InDelta(t, evt.Total, got.Total, 0.0001)
}

func TestDecodeOrderEventRejectsBadEnvelopes(t *testing.T) {
	_, err := DecodeOrderEvent([]byte(`{not json`))
	assert.Error(t, err)

	// Missing version decodes as 0 and is rejected, as is a future version.
	_, err = DecodeOrderEvent([]byte(`{"type":"order.placed","order_id":"ORD-1"}`))
	assert.ErrorContains(t, err, "schema version")

	future, _ := json.Marshal(map[string]any{"version": SchemaVersion + 1, "order_id": "ORD-1"})
	_, err = DecodeOrderEvent(future)
	assert.ErrorContains(t, err, "schema version")

	_, err = DecodeOrderEvent([]byte(`{"version":1,"type":"order.placed"}`))
	assert.ErrorContains(t, err, "order_id")
}

func TestChatMessageRoundTrip(t *testing.T) {
	msg := &ChatMessage{TableID: 4, Sender: SenderKitchen, Text: "Your order is on its way"}

	data, err := msg.Encode()
	require.NoError(t, err)
	assert.Equal(t, "table-4", msg.Key())
	assert.Equal(t, TypeChatMessage, msg.Type)

	got, err := DecodeChatMessage(data)
	require.NoError(t, err)
	assert.Equal(t, msg.Text, got.Text)
	assert.Equal(t, SenderKitchen, got.Sender)

	_, err = DecodeChatMessage([]byte(`{"version":99,"table_id":4}`))
	assert.ErrorContains(t, err, "schema version")
}
