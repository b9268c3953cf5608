package pg

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// openTestDB opens a client against dsn and closes it when the test ends
func openTestDB(t *testing.T, dsn, appName string, mut func(*pgxpool.Config)) *PG {
	t.Helper()
	client, err := Open(context.Background(), Config{URL: dsn, AppName: appName}, nil, mut)
	if err != nil {
		t.Fatalf("open %s: %v", dsn, err)
	}
	t.Cleanup(client.Close)
	return client
}

// sessionConn pins one pooled connection for the test so temp tables and
// SET commands stay visible
func sessionConn(ctx context.Context, t *testing.T, p *PG) *pgxpool.Conn {
	t.Helper()
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	t.Cleanup(conn.Release)
	return conn
}
