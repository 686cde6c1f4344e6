// Package pgtest provides PostgreSQL helpers for integration tests. Tests
// using it skip unless TABLETAP_TEST_DATABASE points at a disposable
// database.
package pgtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

// ConnString returns the test database connection string, skipping the test
// when none is configured.
func ConnString(t testing.TB) string {
	conn := os.Getenv("TABLETAP_TEST_DATABASE")
	if conn == "" {
		t.Skip("TABLETAP_TEST_DATABASE not set")
	}
	return conn
}

// Connect creates a new database connection for testing.
func Connect(ctx context.Context, t testing.TB) *pgx.Conn {
	config, err := pgx.ParseConfig(ConnString(t))
	require.NoError(t, err)

	config.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		t.Logf("PostgreSQL %s: %s", n.Severity, n.Message)
	}

	conn, err := pgx.ConnectConfig(ctx, config)
	require.NoError(t, err)

	t.Cleanup(func() {
		Close(t, conn)
	})

	return conn
}

// Close safely closes a database connection.
func Close(t testing.TB, conn *pgx.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Close(ctx))
}

// DropSchema removes the ordering tables so a test can migrate from
// scratch.
func DropSchema(ctx context.Context, t testing.TB, conn *pgx.Conn) {
	_, err := conn.Exec(ctx, `DROP TABLE IF EXISTS order_items, orders, menu_items, tables CASCADE`)
	require.NoError(t, err)
}
