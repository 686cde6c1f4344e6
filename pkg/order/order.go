// Package order defines the table-ordering domain model and the Store
// contract implemented by the persistence backends.
package order

import (
	"errors"
	"fmt"
	"time"
)

// Status is the kitchen-facing lifecycle of an order. Transitions are
// forward-only; completed is terminal.
type Status string

const (
	StatusReceived   Status = "received"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusCompleted  Status = "completed"
)

var statusRank = map[Status]int{
	StatusReceived:   0,
	StatusProcessing: 1,
	StatusReady:      2,
	StatusCompleted:  3,
}

// ParseStatus validates a status string received from a client.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := statusRank[st]; !ok {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
	return st, nil
}

// Rank returns the position of the status in the lifecycle.
func (s Status) Rank() int {
	return statusRank[s]
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// CanAdvance reports whether moving from s to next is a strictly forward
// transition. Repeats and backward moves are rejected.
func (s Status) CanAdvance(next Status) bool {
	return next.Rank() > s.Rank()
}

// TableStatus is the occupancy state of a table.
type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
)

// MenuItem is a purchasable dish. Price is the current menu price; orders
// snapshot it at placement time.
type MenuItem struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Available   bool    `json:"available"`
	ImagePath   string  `json:"image_path,omitempty"`
}

// Table is a physical restaurant table customers order from.
type Table struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Capacity int         `json:"capacity"`
	Status   TableStatus `json:"status"`
}

// LineItem is one ordered dish with the unit price snapshotted at the time
// the order was placed.
type LineItem struct {
	MenuItemID int64   `json:"id"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
}

// Subtotal returns price times quantity for this line.
func (li LineItem) Subtotal() float64 {
	return li.Price * float64(li.Quantity)
}

// Order is a customer order against a table. Sequence is a per-order
// monotone counter, bumped on every persisted state change, and is carried
// on every published event for consumer-side deduplication.
type Order struct {
	ID        string     `json:"order_id"`
	TableID   int64      `json:"table_id"`
	Items     []LineItem `json:"items"`
	Status    Status     `json:"status"`
	Total     float64    `json:"total"`
	Sequence  int64      `json:"sequence"`
	CreatedAt time.Time  `json:"timestamp"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ItemRequest is a client request line: a menu item reference and quantity.
// The price is always looked up server-side, never trusted from the client.
type ItemRequest struct {
	MenuItemID int64 `json:"id"`
	Quantity   int   `json:"quantity"`
}

// Statistics summarizes today's kitchen activity.
type Statistics struct {
	ReceivedCount      int     `json:"received_count"`
	ProcessingCount    int     `json:"processing_count"`
	ReadyCount         int     `json:"ready_count"`
	CompletedCount     int     `json:"completed_count"`
	AvgPreparationMins float64 `json:"avg_preparation_time"`
	TotalOrdersToday   int     `json:"total_orders_today"`
}

var (
	// ErrOrderNotFound indicates the requested order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrTableNotFound indicates the requested table does not exist.
	ErrTableNotFound = errors.New("table not found")
)

// ValidationError reports a rejected client input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a backward or repeated status change.
type InvalidTransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: invalid status transition %s -> %s", e.OrderID, e.From, e.To)
}
