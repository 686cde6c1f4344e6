package order

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync/atomic"

	"github.com/tabletap/tabletap/pkg/event"
)

// Store is the single source of truth for orders and tables. Mutations are
// transactional; the returned event describes the committed change and is
// handed to the publisher only after the transaction has committed.
type Store interface {
	// PlaceOrder validates the items, snapshots prices, persists the order
	// and marks the table occupied in one transaction.
	PlaceOrder(ctx context.Context, tableID int64, items []ItemRequest) (*Order, *event.OrderEvent, error)

	// UpdateStatus applies a strictly forward status transition. When the
	// order completes, the table reverts to available only if no other
	// non-terminal order remains against it.
	UpdateStatus(ctx context.Context, orderID string, status Status) (*Order, *event.OrderEvent, error)

	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// ActiveOrders returns orders still in flight plus orders completed
	// within the last 24 hours, newest first.
	ActiveOrders(ctx context.Context) ([]Order, error)

	Tables(ctx context.Context) ([]Table, error)
	GetTable(ctx context.Context, id int64) (*Table, error)
	MenuItems(ctx context.Context) ([]MenuItem, error)
	Statistics(ctx context.Context) (*Statistics, error)
}

var orderCounter atomic.Uint64

// NewOrderID generates an order identifier of the form ORD-XXXXXXXXXXXXXX:
// a process-monotonic counter widened with four random bytes, so ids stay
// collision-resistant well past the birthday bound of a short random suffix.
func NewOrderID() string {
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return fmt.Sprintf("ORD-%06X%08X", orderCounter.Add(1)&0xFFFFFF, suffix)
}
