package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

// HistoryRecord is an entry about to be appended. Seq and the final
// timestamp are assigned by the ledger.
type HistoryRecord struct {
	RequestID string
	Action    types.Action
	User      string
	Details   types.Details
	// At is the caller's wall-clock reading. The ledger never stores a
	// timestamp earlier than the latest one it already holds.
	At time.Time
}

// HistoryLedger is the append-only audit log of request actions.
type HistoryLedger interface {
	Append(ctx context.Context, rec HistoryRecord) (types.HistoryEntry, error)
	// Query returns every entry for requestID, newest first. Entries with
	// equal timestamps are ordered by descending Seq.
	Query(ctx context.Context, requestID string) ([]types.HistoryEntry, error)
	// All returns the full ledger in insertion order.
	All(ctx context.Context) ([]types.HistoryEntry, error)
}
