//go:build integration

package pgsqldb_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rickchristie/govner/pgflock/client"
	"github.com/rs/zerolog"

	pgsqldb "github.com/rickchristie/postgres-sqldb"
)

const (
	pgflockLockerPort = 9776
	pgflockPassword   = "pgflock"
)

func acquireTestDB(t *testing.T) string {
	t.Helper()
	connStr, err := client.Lock(pgflockLockerPort, t.Name(), pgflockPassword)
	if err != nil {
		t.Fatalf("Failed to acquire test database: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Unlock(pgflockLockerPort, pgflockPassword, connStr)
	})
	return connStr
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

// setupSchema runs DDL/DML on a separate connection before the DB under test
// is opened, so that New sees the resulting catalog.
func setupSchema(t *testing.T, connStr string, statements ...string) {
	t.Helper()
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		t.Fatalf("setup connect failed: %v", err)
	}
	defer conn.Close(ctx)
	for _, sql := range statements {
		if _, err := conn.Exec(ctx, sql); err != nil {
			t.Fatalf("setup failed: %v\nSQL: %s", err, sql)
		}
	}
}

// openTestDB acquires a database, prepares it with statements and opens a DB.
func openTestDB(t *testing.T, config pgsqldb.Config, statements ...string) (*pgsqldb.DB, string) {
	t.Helper()
	connStr := acquireTestDB(t)
	setupSchema(t, connStr, statements...)
	ctx := context.Background()
	db, err := pgsqldb.Open(ctx, connStr, config, testLogger())
	if err != nil {
		t.Fatalf("Failed to open DB: %v", err)
	}
	t.Cleanup(func() { db.Close(ctx) })
	return db, connStr
}

var usersAndOrders = []string{
	"CREATE TABLE users (id serial PRIMARY KEY, name text, email varchar(200))",
	"CREATE TABLE orders (id bigserial PRIMARY KEY, user_id int REFERENCES users(id), total numeric(10,2))",
	"INSERT INTO users (name, email) VALUES ('Alice', 'alice@example.com'), ('Bob', 'bob@example.com')",
	"INSERT INTO orders (user_id, total) VALUES (1, 12.50)",
}
