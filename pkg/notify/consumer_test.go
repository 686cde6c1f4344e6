package notify

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/event"
)

func orderMessage(t *testing.T, topic string, evt *event.OrderEvent) *sarama.ConsumerMessage {
	t.Helper()
	payload, err := evt.Encode()
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: topic, Value: payload}
}

func TestDispatchOrderEvents(t *testing.T) {
	hub := NewHub(8, zap.NewNop())
	ch := hub.Subscribe("dashboard")
	h := &groupHandler{hub: hub, tracker: newSeqTracker(), chat: "table-chat", logger: zap.NewNop()}

	h.dispatch(orderMessage(t, "table-orders", &event.OrderEvent{
		Type: event.TypeOrderPlaced, OrderID: "ORD-1", TableID: 2, Status: "received", Sequence: 1,
	}))

	msg := <-ch
	assert.Equal(t, event.TypeOrderPlaced, msg.Type)
	var got event.OrderEvent
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "ORD-1", got.OrderID)
}

func TestDispatchDeduplicates(t *testing.T) {
	hub := NewHub(8, zap.NewNop())
	ch := hub.Subscribe("dashboard")
	h := &groupHandler{hub: hub, tracker: newSeqTracker(), chat: "table-chat", logger: zap.NewNop()}

	update := &event.OrderEvent{
		Type: event.TypeStatusChanged, OrderID: "ORD-1", TableID: 2, Status: "ready", Sequence: 3,
	}
	h.dispatch(orderMessage(t, "order-status-updates", update))
	h.dispatch(orderMessage(t, "order-status-updates", update)) // redelivery

	stale := &event.OrderEvent{
		Type: event.TypeStatusChanged, OrderID: "ORD-1", TableID: 2, Status: "processing", Sequence: 2,
	}
	h.dispatch(orderMessage(t, "order-status-updates", stale))

	assert.Len(t, ch, 1, "duplicates and stale events are discarded")
}

func TestDispatchChat(t *testing.T) {
	hub := NewHub(8, zap.NewNop())
	ch := hub.Subscribe("dashboard")
	h := &groupHandler{hub: hub, tracker: newSeqTracker(), chat: "table-chat", logger: zap.NewNop()}

	chat := &event.ChatMessage{TableID: 4, Sender: event.SenderKitchen, Text: "on its way"}
	payload, err := chat.Encode()
	require.NoError(t, err)
	h.dispatch(&sarama.ConsumerMessage{Topic: "table-chat", Value: payload})

	msg := <-ch
	assert.Equal(t, event.TypeChatMessage, msg.Type)
}

func TestDispatchDiscardsGarbage(t *testing.T) {
	hub := NewHub(8, zap.NewNop())
	ch := hub.Subscribe("dashboard")
	h := &groupHandler{hub: hub, tracker: newSeqTracker(), chat: "table-chat", logger: zap.NewNop()}

	h.dispatch(&sarama.ConsumerMessage{Topic: "table-orders", Value: []byte("{not json")})
	h.dispatch(&sarama.ConsumerMessage{Topic: "table-chat", Value: []byte("{not json")})
	h.dispatch(&sarama.ConsumerMessage{Topic: "table-orders", Value: []byte(`{"version":99,"order_id":"ORD-1"}`)})

	assert.Empty(t, ch)
}
