package order

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"received", "processing", "ready", "completed"} {
		st, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), st)
	}

	_, err := ParseStatus("cancelled")
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)
}

func TestStatusCanAdvance(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusReceived, StatusProcessing, true},
		{StatusReceived, StatusCompleted, true}, // skipping ahead is allowed
		{StatusProcessing, StatusReady, true},
		{StatusReady, StatusCompleted, true},
		{StatusProcessing, StatusReceived, false},
		{StatusCompleted, StatusReady, false},
		{StatusReady, StatusReady, false}, // repeats are rejected
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanAdvance(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, StatusReceived.Terminal())
	assert.False(t, StatusReady.Terminal())
}

func TestLineItemSubtotal(t *testing.T) {
	li := LineItem{Price: 8.99, Quantity: 3}
	assert.InDelta(t, 26.97, li.Subtotal(), 0.0001)
}

func TestNewOrderID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewOrderID()
		require.True(t, strings.HasPrefix(id, "ORD-"), "id %q", id)
		require.Len(t, id, len("ORD-")+14)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %q", id)
		seen[id] = struct{}{}
	}
}
