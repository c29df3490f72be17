package store

import (
	"context"

	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

// DirectoryStore persists users and pending registrations.
type DirectoryStore interface {
	GetUser(ctx context.Context, username string) (types.User, error)
	InsertUser(ctx context.Context, u types.User) error
	UpdateUser(ctx context.Context, u types.User) error
	// ListUsers returns users ordered by username.
	ListUsers(ctx context.Context) ([]types.User, error)
	CountUsers(ctx context.Context) (int, error)

	GetPending(ctx context.Context, username string) (types.PendingRegistration, error)
	InsertPending(ctx context.Context, p types.PendingRegistration) error
	// DeletePending reports whether a row was removed.
	DeletePending(ctx context.Context, username string) (bool, error)
	// ListPending returns registrations oldest first.
	ListPending(ctx context.Context) ([]types.PendingRegistration, error)
}
