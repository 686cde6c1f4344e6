package notify

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SSEHandler streams hub messages to a dashboard over Server-Sent Events.
type SSEHandler struct {
	hub       *Hub
	logger    *zap.Logger
	keepalive time.Duration
}

// NewSSEHandler creates the handler. keepalive controls the comment ping
// interval; zero means 30 seconds.
func NewSSEHandler(hub *Hub, logger *zap.Logger, keepalive time.Duration) *SSEHandler {
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	return &SSEHandler{hub: hub, logger: logger, keepalive: keepalive}
}

// ServeHTTP implements http.Handler. The connection lives until the client
// disconnects; teardown releases only this session's channel.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sessionID := uuid.New().String()
	ch := h.hub.Subscribe(sessionID)
	defer h.hub.Unsubscribe(sessionID)

	// Establish the stream and tell the client how fast to reconnect.
	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", zap.String("session_id", sessionID))
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()

		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, msg.Data)
			flusher.Flush()
		}
	}
}
