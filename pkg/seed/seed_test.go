package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletap/tabletap/pkg/order"
)

func TestMenuItems(t *testing.T) {
	items := MenuItems()
	require.Len(t, items, 10)

	seen := make(map[int64]struct{})
	for _, mi := range items {
		assert.True(t, mi.Available)
		assert.Greater(t, mi.Price, 0.0)
		assert.NotEmpty(t, mi.Name)
		assert.NotEmpty(t, mi.Category)
		_, dup := seen[mi.ID]
		assert.False(t, dup, "duplicate menu id %d", mi.ID)
		seen[mi.ID] = struct{}{}
	}
}

func TestTables(t *testing.T) {
	tables := Tables()
	require.Len(t, tables, 10)
	for i, tb := range tables {
		assert.Equal(t, int64(i+1), tb.ID)
		assert.Equal(t, order.TableAvailable, tb.Status)
		assert.GreaterOrEqual(t, tb.Capacity, 2)
		assert.LessOrEqual(t, tb.Capacity, 8)
	}
}
