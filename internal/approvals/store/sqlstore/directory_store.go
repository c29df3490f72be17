package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

type directory struct{ t *tx }

func (d directory) GetUser(ctx context.Context, username string) (types.User, error) {
	var (
		u        types.User
		role     string
		approved int
	)
	err := d.t.queryRow(ctx, `
SELECT username, role, approved FROM users WHERE username = ?;
`, username).Scan(&u.Username, &role, &approved)
	if errors.Is(err, sql.ErrNoRows) {
		return types.User{}, store.ErrNotFound
	}
	if err != nil {
		return types.User{}, fmt.Errorf("GetUser %s: %w", username, err)
	}
	u.Role = types.Role(role)
	u.Approved = approved == 1
	return u, nil
}

func (d directory) InsertUser(ctx context.Context, u types.User) error {
	if err := d.t.writable(); err != nil {
		return err
	}
	now := d.t.nowMs()
	if _, err := d.t.exec(ctx, `
INSERT INTO users(username, role, approved, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?);
`, u.Username, string(u.Role), boolToInt(u.Approved), now, now); err != nil {
		return fmt.Errorf("InsertUser %s: %w", u.Username, err)
	}
	return nil
}

func (d directory) UpdateUser(ctx context.Context, u types.User) error {
	if err := d.t.writable(); err != nil {
		return err
	}
	res, err := d.t.exec(ctx, `
UPDATE users
SET role = ?,
    approved = ?,
    updated_at_ms = ?
WHERE username = ?;
`, string(u.Role), boolToInt(u.Approved), d.t.nowMs(), u.Username)
	if err != nil {
		return fmt.Errorf("UpdateUser %s: %w", u.Username, err)
	}
	return mustAffect(res)
}

func (d directory) ListUsers(ctx context.Context) ([]types.User, error) {
	rows, err := d.t.query(ctx, `SELECT username, role, approved FROM users ORDER BY username;`)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}
	defer rows.Close()

	out := make([]types.User, 0)
	for rows.Next() {
		var (
			u        types.User
			role     string
			approved int
		)
		if err := rows.Scan(&u.Username, &role, &approved); err != nil {
			return nil, fmt.Errorf("ListUsers scan: %w", err)
		}
		u.Role = types.Role(role)
		u.Approved = approved == 1
		out = append(out, u)
	}
	return out, rows.Err()
}

func (d directory) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := d.t.queryRow(ctx, `SELECT COUNT(*) FROM users;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountUsers: %w", err)
	}
	return n, nil
}

func (d directory) GetPending(ctx context.Context, username string) (types.PendingRegistration, error) {
	var (
		p    types.PendingRegistration
		role string
		atMs int64
	)
	err := d.t.queryRow(ctx, `
SELECT username, requested_role, requested_at_ms
FROM pending_registrations
WHERE username = ?;
`, username).Scan(&p.Username, &role, &atMs)
	if errors.Is(err, sql.ErrNoRows) {
		return types.PendingRegistration{}, store.ErrNotFound
	}
	if err != nil {
		return types.PendingRegistration{}, fmt.Errorf("GetPending %s: %w", username, err)
	}
	p.RequestedRole = types.Role(role)
	p.RequestedAt = fromMs(atMs)
	return p, nil
}

func (d directory) InsertPending(ctx context.Context, p types.PendingRegistration) error {
	if err := d.t.writable(); err != nil {
		return err
	}
	role := p.RequestedRole
	if role == "" {
		role = types.RoleUser
	}
	if _, err := d.t.exec(ctx, `
INSERT INTO pending_registrations(username, requested_role, requested_at_ms)
VALUES (?, ?, ?);
`, p.Username, string(role), toMs(p.RequestedAt)); err != nil {
		return fmt.Errorf("InsertPending %s: %w", p.Username, err)
	}
	return nil
}

func (d directory) DeletePending(ctx context.Context, username string) (bool, error) {
	if err := d.t.writable(); err != nil {
		return false, err
	}
	res, err := d.t.exec(ctx, `DELETE FROM pending_registrations WHERE username = ?;`, username)
	if err != nil {
		return false, fmt.Errorf("DeletePending %s: %w", username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("DeletePending %s: %w", username, err)
	}
	return n > 0, nil
}

func (d directory) ListPending(ctx context.Context) ([]types.PendingRegistration, error) {
	rows, err := d.t.query(ctx, `
SELECT username, requested_role, requested_at_ms
FROM pending_registrations
ORDER BY requested_at_ms, username;
`)
	if err != nil {
		return nil, fmt.Errorf("ListPending: %w", err)
	}
	defer rows.Close()

	out := make([]types.PendingRegistration, 0)
	for rows.Next() {
		var (
			p    types.PendingRegistration
			role string
			atMs int64
		)
		if err := rows.Scan(&p.Username, &role, &atMs); err != nil {
			return nil, fmt.Errorf("ListPending scan: %w", err)
		}
		p.RequestedRole = types.Role(role)
		p.RequestedAt = fromMs(atMs)
		out = append(out, p)
	}
	return out, rows.Err()
}
