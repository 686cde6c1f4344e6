// Package memstore is an in-memory order.Store used for tests and demo
// deployments without PostgreSQL. All mutations serialize on one mutex,
// which gives the same single-writer-per-row guarantee the SQL store gets
// from row locks.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tabletap/tabletap/pkg/event"
	"github.com/tabletap/tabletap/pkg/order"
)

// Store implements order.Store in memory.
type Store struct {
	mu     sync.Mutex
	orders map[string]*order.Order
	tables map[int64]*order.Table
	menu   map[int64]*order.MenuItem
	now    func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		orders: make(map[string]*order.Order),
		tables: make(map[int64]*order.Table),
		menu:   make(map[int64]*order.MenuItem),
		now:    time.Now,
	}
}

// SetClock overrides the time source. Test helper.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddTable registers a table.
func (s *Store) AddTable(t order.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Status == "" {
		t.Status = order.TableAvailable
	}
	cp := t
	s.tables[t.ID] = &cp
}

// AddMenuItem registers a menu item.
func (s *Store) AddMenuItem(mi order.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := mi
	s.menu[mi.ID] = &cp
}

// SetMenuItemPrice changes the live menu price. Existing orders keep their
// snapshotted prices.
func (s *Store) SetMenuItemPrice(id int64, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mi, ok := s.menu[id]; ok {
		mi.Price = price
	}
}

// PlaceOrder implements order.Store.
func (s *Store) PlaceOrder(ctx context.Context, tableID int64, items []order.ItemRequest) (*order.Order, *event.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.tables[tableID]
	if !ok {
		return nil, nil, order.ErrTableNotFound
	}
	if len(items) == 0 {
		return nil, nil, &order.ValidationError{Field: "items", Reason: "at least one item is required"}
	}

	lines := make([]order.LineItem, 0, len(items))
	var total float64
	for _, req := range items {
		if req.Quantity < 1 {
			return nil, nil, &order.ValidationError{Field: "quantity", Reason: fmt.Sprintf("item %d: quantity must be at least 1", req.MenuItemID)}
		}
		mi, ok := s.menu[req.MenuItemID]
		if !ok || !mi.Available {
			return nil, nil, &order.ValidationError{Field: "items", Reason: fmt.Sprintf("menu item %d not available", req.MenuItemID)}
		}
		line := order.LineItem{
			MenuItemID: mi.ID,
			Name:       mi.Name,
			Quantity:   req.Quantity,
			Price:      mi.Price,
		}
		total += line.Subtotal()
		lines = append(lines, line)
	}

	now := s.now()
	o := &order.Order{
		ID:        order.NewOrderID(),
		TableID:   tableID,
		Items:     lines,
		Status:    order.StatusReceived,
		Total:     total,
		Sequence:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.orders[o.ID] = o
	table.Status = order.TableOccupied

	cp := *o
	return &cp, placedEvent(o), nil
}

// UpdateStatus implements order.Store.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, *event.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, nil, order.ErrOrderNotFound
	}
	if !o.Status.CanAdvance(status) {
		return nil, nil, &order.InvalidTransitionError{OrderID: orderID, From: o.Status, To: status}
	}

	o.Status = status
	o.Sequence++
	o.UpdatedAt = s.now()

	if status == order.StatusCompleted {
		if table, ok := s.tables[o.TableID]; ok && !s.tableHasOpenOrders(o.TableID) {
			table.Status = order.TableAvailable
		}
	}

	cp := *o
	return &cp, statusEvent(o), nil
}

// tableHasOpenOrders reports whether any non-terminal order remains against
// the table. Caller holds the lock.
func (s *Store) tableHasOpenOrders(tableID int64) bool {
	for _, o := range s.orders {
		if o.TableID == tableID && !o.Status.Terminal() {
			return true
		}
	}
	return false
}

// GetOrder implements order.Store.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

// ActiveOrders implements order.Store.
func (s *Store) ActiveOrders(ctx context.Context) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-24 * time.Hour)
	var out []order.Order
	for _, o := range s.orders {
		if o.Status.Terminal() && o.UpdatedAt.Before(cutoff) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Tables implements order.Store.
func (s *Store) Tables(ctx context.Context) ([]order.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]order.Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetTable implements order.Store.
func (s *Store) GetTable(ctx context.Context, id int64) (*order.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	if !ok {
		return nil, order.ErrTableNotFound
	}
	cp := *t
	return &cp, nil
}

// MenuItems implements order.Store. Only available items are listed.
func (s *Store) MenuItems(ctx context.Context) ([]order.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []order.MenuItem
	for _, mi := range s.menu {
		if mi.Available {
			out = append(out, *mi)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Statistics implements order.Store.
func (s *Store) Statistics(ctx context.Context) (*order.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var stats order.Statistics
	var prepTotal time.Duration
	var prepCount int
	for _, o := range s.orders {
		if o.CreatedAt.Before(dayStart) {
			continue
		}
		switch o.Status {
		case order.StatusReceived:
			stats.ReceivedCount++
		case order.StatusProcessing:
			stats.ProcessingCount++
		case order.StatusReady:
			stats.ReadyCount++
		case order.StatusCompleted:
			stats.CompletedCount++
			prepTotal += o.UpdatedAt.Sub(o.CreatedAt)
			prepCount++
		}
	}
	if prepCount > 0 {
		stats.AvgPreparationMins = prepTotal.Minutes() / float64(prepCount)
	}
	stats.TotalOrdersToday = stats.ReceivedCount + stats.ProcessingCount + stats.ReadyCount + stats.CompletedCount
	return &stats, nil
}

func placedEvent(o *order.Order) *event.OrderEvent {
	items := make([]event.OrderItem, 0, len(o.Items))
	for _, li := range o.Items {
		items = append(items, event.OrderItem{
			ID:       li.MenuItemID,
			Name:     li.Name,
			Quantity: li.Quantity,
			Price:    li.Price,
		})
	}
	return &event.OrderEvent{
		Type:      event.TypeOrderPlaced,
		OrderID:   o.ID,
		TableID:   o.TableID,
		Status:    string(o.Status),
		Items:     items,
		Total:     o.Total,
		Sequence:  o.Sequence,
		Timestamp: o.CreatedAt,
	}
}

func statusEvent(o *order.Order) *event.OrderEvent {
	return &event.OrderEvent{
		Type:      event.TypeStatusChanged,
		OrderID:   o.ID,
		TableID:   o.TableID,
		Status:    string(o.Status),
		Sequence:  o.Sequence,
		Timestamp: o.UpdatedAt,
	}
}
