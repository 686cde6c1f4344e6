package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/event"
)

func TestSSEStream(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	srv := httptest.NewServer(NewSSEHandler(hub, zap.NewNop(), time.Minute))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readLine := func() string {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		return strings.TrimRight(line, "\n")
	}

	assert.Equal(t, ": connected", readLine())
	assert.Equal(t, "", readLine())
	assert.Equal(t, "retry: 2000", readLine())
	assert.Equal(t, "", readLine())

	// The subscription races the broadcast; wait for it.
	require.Eventually(t, func() bool { return hub.Sessions() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(Message{
		Type: event.TypeStatusChanged,
		Data: json.RawMessage(`{"order_id":"ORD-1","status":"ready","sequence":3}`),
	})

	assert.Equal(t, "event: order.status_changed", readLine())
	data := readLine()
	assert.True(t, strings.HasPrefix(data, "data: "), "got %q", data)
	assert.Contains(t, data, `"status":"ready"`)
	assert.Equal(t, "", readLine())

	cancel()
	require.Eventually(t, func() bool { return hub.Sessions() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSSERequiresFlusher(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	h := NewSSEHandler(hub, zap.NewNop(), time.Minute)

	w := &noFlushWriter{header: make(http.Header)}
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusInternalServerError, w.status)
}

type noFlushWriter struct {
	header http.Header
	status int
}

func (w *noFlushWriter) Header() http.Header         { return w.header }
func (w *noFlushWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *noFlushWriter) WriteHeader(code int)        { w.status = code }
