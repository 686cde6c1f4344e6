// Package pgstore implements order.Store on PostgreSQL via pgx. Concurrent
// status updates on the same order serialize on a row lock, so one of two
// racing transitions wins and the other is rejected as a non-forward move.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tabletap/tabletap/pkg/event"
	"github.com/tabletap/tabletap/pkg/order"
)

// Store implements order.Store on a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New creates a store from a connection string.
func New(ctx context.Context, connString string, logger *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// PlaceOrder implements order.Store.
func (s *Store) PlaceOrder(ctx context.Context, tableID int64, items []order.ItemRequest) (*order.Order, *event.OrderEvent, error) {
	if len(items) == 0 {
		return nil, nil, &order.ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	for _, req := range items {
		if req.Quantity < 1 {
			return nil, nil, &order.ValidationError{Field: "quantity", Reason: fmt.Sprintf("item %d: quantity must be at least 1", req.MenuItemID)}
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("pgstore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var tableStatus string
	err = tx.QueryRow(ctx, `SELECT status FROM tables WHERE id = $1 FOR UPDATE`, tableID).Scan(&tableStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, order.ErrTableNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("pgstore: lock table: %w", err)
	}

	lines := make([]order.LineItem, 0, len(items))
	var total float64
	for _, req := range items {
		var li order.LineItem
		var available bool
		err = tx.QueryRow(ctx,
			`SELECT id, name, price, available FROM menu_items WHERE id = $1`,
			req.MenuItemID,
		).Scan(&li.MenuItemID, &li.Name, &li.Price, &available)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !available) {
			return nil, nil, &order.ValidationError{Field: "items", Reason: fmt.Sprintf("menu item %d not available", req.MenuItemID)}
		}
		if err != nil {
			return nil, nil, fmt.Errorf("pgstore: load menu item: %w", err)
		}
		li.Quantity = req.Quantity
		total += li.Subtotal()
		lines = append(lines, li)
	}

	o := &order.Order{
		ID:       order.NewOrderID(),
		TableID:  tableID,
		Items:    lines,
		Status:   order.StatusReceived,
		Total:    total,
		Sequence: 1,
	}

	var rowID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (order_id, table_id, status, total, sequence)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		o.ID, o.TableID, o.Status, o.Total, o.Sequence,
	).Scan(&rowID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("pgstore: insert order: %w", err)
	}

	for _, li := range lines {
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_items (order_id, menu_item_id, name, quantity, price)
			 VALUES ($1, $2, $3, $4, $5)`,
			rowID, li.MenuItemID, li.Name, li.Quantity, li.Price,
		); err != nil {
			return nil, nil, fmt.Errorf("pgstore: insert order item: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE tables SET status = $1, updated_at = now() WHERE id = $2`,
		order.TableOccupied, tableID,
	); err != nil {
		return nil, nil, fmt.Errorf("pgstore: occupy table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("pgstore: commit: %w", err)
	}

	items2 := make([]event.OrderItem, 0, len(lines))
	for _, li := range lines {
		items2 = append(items2, event.OrderItem{ID: li.MenuItemID, Name: li.Name, Quantity: li.Quantity, Price: li.Price})
	}
	evt := &event.OrderEvent{
		Type:      event.TypeOrderPlaced,
		OrderID:   o.ID,
		TableID:   o.TableID,
		Status:    string(o.Status),
		Items:     items2,
		Total:     o.Total,
		Sequence:  o.Sequence,
		Timestamp: o.CreatedAt,
	}
	return o, evt, nil
}

// UpdateStatus implements order.Store.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, *event.OrderEvent, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("pgstore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var rowID int64
	var o order.Order
	err = tx.QueryRow(ctx,
		`SELECT id, order_id, table_id, status, total, sequence, created_at, updated_at
		 FROM orders WHERE order_id = $1 FOR UPDATE`,
		orderID,
	).Scan(&rowID, &o.ID, &o.TableID, &o.Status, &o.Total, &o.Sequence, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("pgstore: lock order: %w", err)
	}

	if !o.Status.CanAdvance(status) {
		return nil, nil, &order.InvalidTransitionError{OrderID: orderID, From: o.Status, To: status}
	}

	o.Status = status
	o.Sequence++
	err = tx.QueryRow(ctx,
		`UPDATE orders SET status = $1, sequence = $2, updated_at = now()
		 WHERE id = $3 RETURNING updated_at`,
		o.Status, o.Sequence, rowID,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("pgstore: update order: %w", err)
	}

	if status == order.StatusCompleted {
		// The table goes back to available only when this was its last
		// open order.
		var open int
		err = tx.QueryRow(ctx,
			`SELECT count(*) FROM orders WHERE table_id = $1 AND status <> $2`,
			o.TableID, order.StatusCompleted,
		).Scan(&open)
		if err != nil {
			return nil, nil, fmt.Errorf("pgstore: count open orders: %w", err)
		}
		if open == 0 {
			if _, err := tx.Exec(ctx,
				`UPDATE tables SET status = $1, updated_at = now() WHERE id = $2`,
				order.TableAvailable, o.TableID,
			); err != nil {
				return nil, nil, fmt.Errorf("pgstore: release table: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("pgstore: commit: %w", err)
	}

	evt := &event.OrderEvent{
		Type:      event.TypeStatusChanged,
		OrderID:   o.ID,
		TableID:   o.TableID,
		Status:    string(o.Status),
		Sequence:  o.Sequence,
		Timestamp: o.UpdatedAt,
	}
	return &o, evt, nil
}

// GetOrder implements order.Store.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	var rowID int64
	var o order.Order
	err := s.pool.QueryRow(ctx,
		`SELECT id, order_id, table_id, status, total, sequence, created_at, updated_at
		 FROM orders WHERE order_id = $1`,
		orderID,
	).Scan(&rowID, &o.ID, &o.TableID, &o.Status, &o.Total, &o.Sequence, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: get order: %w", err)
	}
	if o.Items, err = s.lineItems(ctx, rowID); err != nil {
		return nil, err
	}
	return &o, nil
}

// ActiveOrders implements order.Store.
func (s *Store) ActiveOrders(ctx context.Context) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, order_id, table_id, status, total, sequence, created_at, updated_at
		 FROM orders
		 WHERE status <> $1 OR updated_at >= now() - interval '24 hours'
		 ORDER BY created_at DESC`,
		order.StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list orders: %w", err)
	}
	defer rows.Close()

	var out []order.Order
	rowIDs := make([]int64, 0)
	for rows.Next() {
		var rowID int64
		var o order.Order
		if err := rows.Scan(&rowID, &o.ID, &o.TableID, &o.Status, &o.Total, &o.Sequence, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgstore: scan order: %w", err)
		}
		out = append(out, o)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: list orders: %w", err)
	}
	for i := range out {
		if out[i].Items, err = s.lineItems(ctx, rowIDs[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) lineItems(ctx context.Context, rowID int64) ([]order.LineItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT menu_item_id, name, quantity, price FROM order_items WHERE order_id = $1 ORDER BY id`,
		rowID,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list items: %w", err)
	}
	defer rows.Close()

	var items []order.LineItem
	for rows.Next() {
		var li order.LineItem
		if err := rows.Scan(&li.MenuItemID, &li.Name, &li.Quantity, &li.Price); err != nil {
			return nil, fmt.Errorf("pgstore: scan item: %w", err)
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

// Tables implements order.Store.
func (s *Store) Tables(ctx context.Context) ([]order.Table, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, capacity, status FROM tables ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list tables: %w", err)
	}
	defer rows.Close()

	var out []order.Table
	for rows.Next() {
		var t order.Table
		if err := rows.Scan(&t.ID, &t.Name, &t.Capacity, &t.Status); err != nil {
			return nil, fmt.Errorf("pgstore: scan table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTable implements order.Store.
func (s *Store) GetTable(ctx context.Context, id int64) (*order.Table, error) {
	var t order.Table
	err := s.pool.QueryRow(ctx, `SELECT id, name, capacity, status FROM tables WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Capacity, &t.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: get table: %w", err)
	}
	return &t, nil
}

// MenuItems implements order.Store.
func (s *Store) MenuItems(ctx context.Context) ([]order.MenuItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, price, category, available, image_path
		 FROM menu_items WHERE available ORDER BY category, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list menu: %w", err)
	}
	defer rows.Close()

	var out []order.MenuItem
	for rows.Next() {
		var mi order.MenuItem
		if err := rows.Scan(&mi.ID, &mi.Name, &mi.Description, &mi.Price, &mi.Category, &mi.Available, &mi.ImagePath); err != nil {
			return nil, fmt.Errorf("pgstore: scan menu item: %w", err)
		}
		out = append(out, mi)
	}
	return out, rows.Err()
}

// Statistics implements order.Store.
func (s *Store) Statistics(ctx context.Context) (*order.Statistics, error) {
	var stats order.Statistics
	err := s.pool.QueryRow(ctx,
		`SELECT
			count(*) FILTER (WHERE status = 'received'),
			count(*) FILTER (WHERE status = 'processing'),
			count(*) FILTER (WHERE status = 'ready'),
			count(*) FILTER (WHERE status = 'completed'),
			coalesce(avg(EXTRACT(EPOCH FROM updated_at - created_at) / 60) FILTER (WHERE status = 'completed'), 0)
		 FROM orders WHERE created_at >= date_trunc('day', now())`,
	).Scan(&stats.ReceivedCount, &stats.ProcessingCount, &stats.ReadyCount, &stats.CompletedCount, &stats.AvgPreparationMins)
	if err != nil {
		return nil, fmt.Errorf("pgstore: statistics: %w", err)
	}
	stats.TotalOrdersToday = stats.ReceivedCount + stats.ProcessingCount + stats.ReadyCount + stats.CompletedCount
	return &stats, nil
}

// Seed inserts the given tables and menu items if the corresponding tables
// are empty. Used by the seed command.
func (s *Store) Seed(ctx context.Context, tables []order.Table, menu []order.MenuItem) error {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM tables`).Scan(&n); err != nil {
		return fmt.Errorf("pgstore: seed: %w", err)
	}
	if n == 0 {
		for _, t := range tables {
			if _, err := s.pool.Exec(ctx,
				`INSERT INTO tables (name, capacity, status) VALUES ($1, $2, $3)`,
				t.Name, t.Capacity, order.TableAvailable,
			); err != nil {
				return fmt.Errorf("pgstore: seed tables: %w", err)
			}
		}
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM menu_items`).Scan(&n); err != nil {
		return fmt.Errorf("pgstore: seed: %w", err)
	}
	if n == 0 {
		for _, mi := range menu {
			if _, err := s.pool.Exec(ctx,
				`INSERT INTO menu_items (name, description, price, category, available, image_path)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				mi.Name, mi.Description, mi.Price, mi.Category, mi.Available, mi.ImagePath,
			); err != nil {
				return fmt.Errorf("pgstore: seed menu: %w", err)
			}
		}
	}
	s.logger.Info("seed complete", zap.Int("tables", len(tables)), zap.Int("menu_items", len(menu)))
	return nil
}
