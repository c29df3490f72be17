package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SeedDevOptions struct {
	// Admins and Approvers are created approved. Existing users are left untouched.
	Admins    []string
	Approvers []string
	Users     []string
}

// SeedDev creates a starter directory so a fresh dev database can be used
// without going through bootstrap and registration.
func SeedDev(ctx context.Context, db *sql.DB, d Dialect, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	seed := func(role string, names []string) error {
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, d.Rebind(`
INSERT INTO users(username, role, approved, created_at_ms, updated_at_ms)
VALUES (?, ?, 1, ?, ?)
ON CONFLICT(username) DO NOTHING;`), name, role, now, now); err != nil {
				return fmt.Errorf("seed %s %s: %w", role, name, err)
			}
		}
		return nil
	}

	if err := seed("admin", opt.Admins); err != nil {
		return err
	}
	if err := seed("approver", opt.Approvers); err != nil {
		return err
	}
	return seed("user", opt.Users)
}
