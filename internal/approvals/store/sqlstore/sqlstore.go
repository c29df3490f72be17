// Package sqlstore implements store.Store on database/sql for the sqlite and
// postgres dialects. Every View runs in a read-only transaction so that all
// of its reads see one snapshot; every Update is queued on the
// single-writer db.Worker and runs in one transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	dbpkg "github.com/BrandonDHaskell/approvald/internal/db"
)

var errReadOnly = errors.New("sqlstore: write in read-only transaction")

// querier is the part of *sql.Tx the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db      *sql.DB
	writer  *dbpkg.Worker
	dialect dbpkg.Dialect
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB, writer *dbpkg.Worker, d dbpkg.Dialect) *Store {
	return &Store{db: db, writer: writer, dialect: d, now: time.Now}
}

// WithClock replaces the wall clock used for bookkeeping columns. Tests only.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) View(ctx context.Context, fn store.TxFn) error {
	opts := &sql.TxOptions{ReadOnly: true}
	if s.dialect == dbpkg.DialectPostgres {
		// Read committed would let each statement see newer commits.
		opts.Isolation = sql.LevelRepeatableRead
	}
	sqlTx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin read: %w", err)
	}
	// Nothing to commit.
	defer func() { _ = sqlTx.Rollback() }()

	return fn(ctx, &tx{q: sqlTx, s: s, readOnly: true})
}

func (s *Store) Update(ctx context.Context, fn store.TxFn) error {
	return s.writer.Do(ctx, func(ctx context.Context, sqlTx *sql.Tx) error {
		return fn(ctx, &tx{q: sqlTx, s: s})
	})
}

type tx struct {
	q        querier
	s        *Store
	readOnly bool
}

func (t *tx) Requests() store.RequestStore { return requests{t} }
func (t *tx) History() store.HistoryLedger { return history{t} }
func (t *tx) Archive() store.DeletedArchive { return archive{t} }
func (t *tx) Directory() store.DirectoryStore { return directory{t} }

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.q.ExecContext(ctx, t.s.dialect.Rebind(query), args...)
}

func (t *tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.q.QueryContext(ctx, t.s.dialect.Rebind(query), args...)
}

func (t *tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.q.QueryRowContext(ctx, t.s.dialect.Rebind(query), args...)
}

func (t *tx) nowMs() int64 {
	return t.s.now().UTC().UnixMilli()
}

func toMs(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.UTC().UnixMilli()
}

func fromMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// mustAffect turns a zero-row UPDATE/DELETE into store.ErrNotFound.
func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
