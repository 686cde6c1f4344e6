package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Chat senders.
const (
	SenderTable   = "table"
	SenderKitchen = "kitchen"
)

// ChatMessage is a message between a table and the kitchen. Messages are
// relayed through the broker so every dashboard instance sees them; they
// are not persisted.
type ChatMessage struct {
	Version   int       `json:"version"`
	Type      string    `json:"type"`
	TableID   int64     `json:"table_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the partition key so one table's conversation stays ordered.
func (m *ChatMessage) Key() string {
	return fmt.Sprintf("table-%d", m.TableID)
}

// Encode serializes the message, stamping the schema version and type.
func (m *ChatMessage) Encode() ([]byte, error) {
	m.Version = SchemaVersion
	m.Type = TypeChatMessage
	return json.Marshal(m)
}

// DecodeChatMessage parses a chat envelope from the wire.
func DecodeChatMessage(data []byte) (*ChatMessage, error) {
	var m ChatMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode chat message: %w", err)
	}
	if m.Version > SchemaVersion || m.Version < 1 {
		return nil, fmt.Errorf("unsupported event schema version %d", m.Version)
	}
	return &m, nil
}
