// Package store defines the persistence contracts of the approval core.
//
// All reads and writes happen inside a transaction obtained from Store.View
// or Store.Update. A request mutation and the ledger entries describing it
// are written in the same Update call and therefore commit or roll back
// together.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get-style lookups that match no row. The
// service layer turns it into a types.NotFound with a specific message.
var ErrNotFound = errors.New("store: not found")

// TxFn runs against a transaction. Returning an error aborts an Update.
type TxFn func(ctx context.Context, tx Tx) error

// Store opens transactions.
type Store interface {
	// View runs fn against a read-only snapshot.
	View(ctx context.Context, fn TxFn) error
	// Update runs fn in a read-write transaction that commits only if fn
	// returns nil.
	Update(ctx context.Context, fn TxFn) error
}

// Tx exposes the repositories bound to a single transaction.
type Tx interface {
	Requests() RequestStore
	History() HistoryLedger
	Archive() DeletedArchive
	Directory() DirectoryStore
}
