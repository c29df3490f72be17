package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

type Config struct {
	Dialect Dialect
	Path    string // sqlite file, e.g. "./data/approvald.db"
	DSN     string // postgres connection string
	Env     string // "dev" | "prod"
}

func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.Dialect == "" {
		cfg.Dialect = DialectSQLite
	}
	if cfg.Env == "" {
		cfg.Env = "dev"
	}

	var (
		db  *sql.DB
		err error
	)
	switch cfg.Dialect {
	case DialectSQLite:
		db, err = openSQLite(cfg)
	case DialectPostgres:
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("open: unsupported dialect %q", cfg.Dialect)
	}
	if err != nil {
		return nil, err
	}

	// Validate connection early.
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := Migrate(ctx, db, cfg.Dialect); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func openSQLite(cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		cfg.Path = "./data/approvald.db"
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	// WAL plus busy_timeout keeps readers from tripping over the writer.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		cfg.Path,
	)

	db, err := sql.Open(DialectSQLite.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// Single connection: every write already funnels through one Worker.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

func openPostgres(cfg Config) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("open: postgres requires a DSN")
	}
	db, err := sql.Open(DialectPostgres.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
