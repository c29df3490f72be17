package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

const requestColumns = `id, requester, request_type, title, description, status, approver_comment, created_at_ms, updated_at_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(sc rowScanner, extra ...any) (types.Request, error) {
	var (
		r         types.Request
		status    string
		comment   sql.NullString
		createdMs int64
		updatedMs int64
	)
	dest := append([]any{
		&r.ID, &r.User, &r.RequestType, &r.Title, &r.Description,
		&status, &comment, &createdMs, &updatedMs,
	}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return types.Request{}, err
	}
	r.Status = types.Status(status)
	r.ApproverComment = stringPtr(comment)
	r.CreatedAt = fromMs(createdMs)
	r.UpdatedAt = fromMs(updatedMs)
	return r, nil
}

type requests struct{ t *tx }

func (r requests) Get(ctx context.Context, id string) (types.Request, error) {
	req, err := scanRequest(r.t.queryRow(ctx, `
SELECT `+requestColumns+`
FROM requests
WHERE id = ?;
`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Request{}, store.ErrNotFound
	}
	if err != nil {
		return types.Request{}, fmt.Errorf("Get request %s: %w", id, err)
	}
	return req, nil
}

func (r requests) Insert(ctx context.Context, req types.Request) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, err := r.t.exec(ctx, `
INSERT INTO requests(`+requestColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		req.ID, req.User, req.RequestType, req.Title, req.Description,
		string(req.Status), nullString(req.ApproverComment),
		toMs(req.CreatedAt), toMs(req.UpdatedAt),
	); err != nil {
		return fmt.Errorf("Insert request %s: %w", req.ID, err)
	}
	return nil
}

func (r requests) Update(ctx context.Context, req types.Request) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	res, err := r.t.exec(ctx, `
UPDATE requests
SET title = ?,
    description = ?,
    status = ?,
    approver_comment = ?,
    updated_at_ms = ?
WHERE id = ?;
`, req.Title, req.Description, string(req.Status), nullString(req.ApproverComment),
		toMs(req.UpdatedAt), req.ID)
	if err != nil {
		return fmt.Errorf("Update request %s: %w", req.ID, err)
	}
	return mustAffect(res)
}

func (r requests) Delete(ctx context.Context, id string) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	res, err := r.t.exec(ctx, `DELETE FROM requests WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("Delete request %s: %w", id, err)
	}
	return mustAffect(res)
}

func (r requests) List(ctx context.Context, f types.RequestFilter) ([]types.Request, error) {
	var (
		where []string
		args  []any
	)
	if f.User != "" {
		where = append(where, "requester = ?")
		args = append(args, f.User)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	q := `SELECT ` + requestColumns + ` FROM requests`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id;`

	rows, err := r.t.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("List requests: %w", err)
	}
	defer rows.Close()

	out := make([]types.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("List requests scan: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r requests) IDsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return idsWithPrefix(ctx, r.t, "requests", prefix)
}

type archive struct{ t *tx }

func (a archive) Insert(ctx context.Context, d types.DeletedRequest) error {
	if err := a.t.writable(); err != nil {
		return err
	}
	if _, err := a.t.exec(ctx, `
INSERT INTO deleted_requests(`+requestColumns+`, deleted_by, deleted_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		d.ID, d.User, d.RequestType, d.Title, d.Description,
		string(d.Status), nullString(d.ApproverComment),
		toMs(d.CreatedAt), toMs(d.UpdatedAt),
		d.DeletedBy, toMs(d.DeletedAt),
	); err != nil {
		return fmt.Errorf("Insert deleted request %s: %w", d.ID, err)
	}
	return nil
}

func scanDeleted(sc rowScanner) (types.DeletedRequest, error) {
	var (
		d         types.DeletedRequest
		deletedMs int64
	)
	req, err := scanRequest(sc, &d.DeletedBy, &deletedMs)
	if err != nil {
		return types.DeletedRequest{}, err
	}
	d.Request = req
	d.DeletedAt = fromMs(deletedMs)
	return d, nil
}

func (a archive) Get(ctx context.Context, id string) (types.DeletedRequest, error) {
	d, err := scanDeleted(a.t.queryRow(ctx, `
SELECT `+requestColumns+`, deleted_by, deleted_at_ms
FROM deleted_requests
WHERE id = ?;
`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.DeletedRequest{}, store.ErrNotFound
	}
	if err != nil {
		return types.DeletedRequest{}, fmt.Errorf("Get deleted request %s: %w", id, err)
	}
	return d, nil
}

func (a archive) List(ctx context.Context) ([]types.DeletedRequest, error) {
	rows, err := a.t.query(ctx, `
SELECT `+requestColumns+`, deleted_by, deleted_at_ms
FROM deleted_requests
ORDER BY deleted_at_ms, id;
`)
	if err != nil {
		return nil, fmt.Errorf("List deleted requests: %w", err)
	}
	defer rows.Close()

	out := make([]types.DeletedRequest, 0)
	for rows.Next() {
		d, err := scanDeleted(rows)
		if err != nil {
			return nil, fmt.Errorf("List deleted requests scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (a archive) IDsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return idsWithPrefix(ctx, a.t, "deleted_requests", prefix)
}

// idsWithPrefix compares with substr rather than LIKE so request types never
// need wildcard escaping.
func idsWithPrefix(ctx context.Context, t *tx, table, prefix string) ([]string, error) {
	rows, err := t.query(ctx, `
SELECT id FROM `+table+`
WHERE substr(id, 1, ?) = ?
ORDER BY id;
`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("IDsWithPrefix %s %q: %w", table, prefix, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("IDsWithPrefix %s scan: %w", table, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
