package store

import (
	"context"

	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

// RequestStore is the live mapping of request ID to request record.
type RequestStore interface {
	Get(ctx context.Context, id string) (types.Request, error)
	Insert(ctx context.Context, r types.Request) error
	// Update overwrites every mutable field of an existing request.
	Update(ctx context.Context, r types.Request) error
	Delete(ctx context.Context, id string) error
	// List returns matching requests ordered by ID.
	List(ctx context.Context, f types.RequestFilter) ([]types.Request, error)
	IDsWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// DeletedArchive holds removed requests. Rows are written once and never
// changed.
type DeletedArchive interface {
	Insert(ctx context.Context, d types.DeletedRequest) error
	Get(ctx context.Context, id string) (types.DeletedRequest, error)
	// List returns archived requests ordered by deletion time, oldest first.
	List(ctx context.Context) ([]types.DeletedRequest, error)
	IDsWithPrefix(ctx context.Context, prefix string) ([]string, error)
}
