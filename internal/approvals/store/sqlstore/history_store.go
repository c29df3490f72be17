package sqlstore

import (
	"context"
	"fmt"

	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

type history struct{ t *tx }

func (h history) Append(ctx context.Context, rec store.HistoryRecord) (types.HistoryEntry, error) {
	if err := h.t.writable(); err != nil {
		return types.HistoryEntry{}, err
	}

	at := rec.At
	if at.IsZero() {
		at = h.t.s.now()
	}
	atMs := at.UTC().UnixMilli()

	// Appends are serialized by the writer, so the max read here cannot
	// move before our insert lands.
	var lastMs int64
	if err := h.t.queryRow(ctx, `SELECT COALESCE(MAX(ts_ms), 0) FROM request_history;`).Scan(&lastMs); err != nil {
		return types.HistoryEntry{}, fmt.Errorf("Append read last timestamp: %w", err)
	}
	if atMs < lastMs {
		atMs = lastMs
	}

	details, err := types.EncodeDetails(rec.Details)
	if err != nil {
		return types.HistoryEntry{}, fmt.Errorf("Append encode details: %w", err)
	}

	var seq int64
	if err := h.t.queryRow(ctx, `
INSERT INTO request_history(request_id, ts_ms, action, actor, details)
VALUES (?, ?, ?, ?, ?)
RETURNING seq;
`, rec.RequestID, atMs, string(rec.Action), rec.User, string(details)).Scan(&seq); err != nil {
		return types.HistoryEntry{}, fmt.Errorf("Append insert %s %s: %w", rec.RequestID, rec.Action, err)
	}

	return types.HistoryEntry{
		Seq:       seq,
		RequestID: rec.RequestID,
		Timestamp: fromMs(atMs),
		Action:    rec.Action,
		User:      rec.User,
		Details:   rec.Details,
	}, nil
}

func (h history) Query(ctx context.Context, requestID string) ([]types.HistoryEntry, error) {
	return h.list(ctx, `
SELECT seq, request_id, ts_ms, action, actor, details
FROM request_history
WHERE request_id = ?
ORDER BY ts_ms DESC, seq DESC;
`, requestID)
}

func (h history) All(ctx context.Context) ([]types.HistoryEntry, error) {
	return h.list(ctx, `
SELECT seq, request_id, ts_ms, action, actor, details
FROM request_history
ORDER BY seq;
`)
}

func (h history) list(ctx context.Context, q string, args ...any) ([]types.HistoryEntry, error) {
	rows, err := h.t.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history query: %w", err)
	}
	defer rows.Close()

	out := make([]types.HistoryEntry, 0)
	for rows.Next() {
		var (
			e       types.HistoryEntry
			tsMs    int64
			action  string
			details string
		)
		if err := rows.Scan(&e.Seq, &e.RequestID, &tsMs, &action, &e.User, &details); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		e.Timestamp = fromMs(tsMs)
		e.Action = types.Action(action)
		if e.Details, err = types.DecodeDetails(e.Action, []byte(details)); err != nil {
			return nil, fmt.Errorf("history entry %d: %w", e.Seq, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
