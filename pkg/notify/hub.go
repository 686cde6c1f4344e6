// Package notify consumes order events from the broker and fans them out
// to connected dashboard sessions. The consume loop and the per-session
// channels are decoupled by bounded buffers so one slow dashboard can never
// stall topic consumption for the others.
package notify

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/metrics"
)

// Message is the envelope pushed to dashboard clients.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Hub distributes messages to subscribed dashboard sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]chan Message
	buffer   int
	logger   *zap.Logger
}

// NewHub creates a hub whose per-session channels hold up to buffer
// messages.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		sessions: make(map[string]chan Message),
		buffer:   buffer,
		logger:   logger,
	}
}

// Subscribe registers a session and returns its receive channel.
func (h *Hub) Subscribe(sessionID string) <-chan Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Message, h.buffer)
	h.sessions[sessionID] = ch
	metrics.DashboardSessions.Set(float64(len(h.sessions)))
	h.logger.Info("dashboard session subscribed", zap.String("session_id", sessionID))
	return ch
}

// Unsubscribe tears down one session without affecting the others or the
// consumption loop.
func (h *Hub) Unsubscribe(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.sessions[sessionID]; ok {
		delete(h.sessions, sessionID)
		close(ch)
		metrics.DashboardSessions.Set(float64(len(h.sessions)))
		h.logger.Info("dashboard session unsubscribed", zap.String("session_id", sessionID))
	}
}

// Broadcast delivers the message to every session. A full session buffer
// drops the message for that session only; dashboards reconcile through
// the orders endpoint, keyed on order id and sequence.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.sessions {
		select {
		case ch <- msg:
		default:
			metrics.FanoutDropped.Inc()
			h.logger.Warn("session buffer full, dropping message",
				zap.String("session_id", id),
				zap.String("type", msg.Type))
		}
	}
}

// Sessions returns the number of connected sessions.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
