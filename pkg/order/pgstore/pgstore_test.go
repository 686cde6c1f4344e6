package pgstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tabletap/tabletap/internal/testutil/pgtest"
	"github.com/tabletap/tabletap/pkg/event"
	"github.com/tabletap/tabletap/pkg/order"
	"github.com/tabletap/tabletap/pkg/seed"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	conn := pgtest.Connect(ctx, t)
	pgtest.DropSchema(ctx, t, conn)

	s, err := New(ctx, pgtest.ConnString(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Seed(ctx, seed.Tables(), seed.MenuItems()))
	return s
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o, evt, err := s.PlaceOrder(ctx, 1, []order.ItemRequest{
		{MenuItemID: 1, Quantity: 1},
		{MenuItemID: 9, Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusReceived, o.Status)
	assert.Equal(t, int64(1), o.Sequence)
	assert.InDelta(t, 16.97, o.Total, 0.0001)
	assert.Equal(t, event.TypeOrderPlaced, evt.Type)

	table, err := s.GetTable(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, order.TableOccupied, table.Status)

	for i, st := range []order.Status{order.StatusProcessing, order.StatusReady, order.StatusCompleted} {
		got, evt, err := s.UpdateStatus(ctx, o.ID, st)
		require.NoError(t, err)
		assert.Equal(t, st, got.Status)
		assert.Equal(t, int64(i+2), got.Sequence)
		assert.Equal(t, event.TypeStatusChanged, evt.Type)
	}

	table, err = s.GetTable(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, order.TableAvailable, table.Status)

	_, _, err = s.UpdateStatus(ctx, o.ID, order.StatusReady)
	var terr *order.InvalidTransitionError
	assert.ErrorAs(t, err, &terr)
}

func TestTableStaysOccupiedWithOpenOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, _, err := s.PlaceOrder(ctx, 2, []order.ItemRequest{{MenuItemID: 1, Quantity: 1}})
	require.NoError(t, err)
	_, _, err = s.PlaceOrder(ctx, 2, []order.ItemRequest{{MenuItemID: 2, Quantity: 1}})
	require.NoError(t, err)

	_, _, err = s.UpdateStatus(ctx, first.ID, order.StatusCompleted)
	require.NoError(t, err)

	table, err := s.GetTable(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, order.TableOccupied, table.Status)
}

func TestQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	placed, _, err := s.PlaceOrder(ctx, 3, []order.ItemRequest{{MenuItemID: 4, Quantity: 1}})
	require.NoError(t, err)

	got, err := s.GetOrder(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.ID, got.ID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Caesar Salad", got.Items[0].Name)

	_, err = s.GetOrder(ctx, "ORD-MISSING")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	active, err := s.ActiveOrders(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	menu, err := s.MenuItems(ctx)
	require.NoError(t, err)
	assert.Len(t, menu, 10)

	stats, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ReceivedCount)
	assert.Equal(t, 1, stats.TotalOrdersToday)
}
