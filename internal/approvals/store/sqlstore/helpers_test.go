package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/approvald/internal/approvals/store/sqlstore"
	"github.com/BrandonDHaskell/approvald/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the production
// PRAGMAs and schema. It is closed when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each test gets its own named in-memory database. Shared cache keeps it
	// alive while the pool holds a connection.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}
	if err := db.Migrate(context.Background(), conn, db.DialectSQLite); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestStore wires a Store over conn with its own writer.
func newTestStore(t *testing.T, conn *sql.DB) *sqlstore.Store {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(w.Close)
	return sqlstore.New(conn, w, db.DialectSQLite)
}
