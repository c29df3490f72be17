package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
	"github.com/BrandonDHaskell/approvald/internal/observability"
)

// Directory answers the identity questions the lifecycle controller needs.
// DirectoryService is the production implementation.
type Directory interface {
	// IsApproved is false for unknown users.
	IsApproved(ctx context.Context, username string) (bool, error)
	// RoleOf returns a NotFound error for unknown users.
	RoleOf(ctx context.Context, username string) (types.Role, error)
	AllUsernames(ctx context.Context) ([]string, error)
}

var (
	anyRole    = types.Roles
	deciders   = []types.Role{types.RoleApprover, types.RoleAdmin}
	adminsOnly = []types.Role{types.RoleAdmin}

	// DefaultRequestTypes is used when no request types are configured.
	DefaultRequestTypes = []string{"A", "B", "C", "D", "E", "F"}
)

// authorize resolves actor's role from dir and checks it against allowed.
// Every call reads the directory again; nothing is cached between calls.
// The returned actor carries the username exactly as the directory stores
// it, and callers record that one.
func authorize(ctx context.Context, dir Directory, actor types.Actor, action string, allowed ...types.Role) (types.Actor, types.Role, error) {
	name := strings.TrimSpace(actor.Username)
	if name == "" {
		return types.Actor{}, "", types.PermissionDenied("%s requires a signed-in user", action)
	}
	ok, err := dir.IsApproved(ctx, name)
	if err != nil {
		return types.Actor{}, "", types.Storage(err, "look up user %s", name)
	}
	if !ok {
		return types.Actor{}, "", types.PermissionDenied("user %s is not an approved user", name)
	}
	role, err := dir.RoleOf(ctx, name)
	if err != nil {
		return types.Actor{}, "", types.Storage(err, "look up role of %s", name)
	}
	if !role.In(allowed...) {
		return types.Actor{}, "", types.PermissionDenied("%s requires role %s; %s is %s", action, roleList(allowed), name, role)
	}
	return types.Actor{Username: name}, role, nil
}

func roleList(roles []types.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, " or ")
}

// storageErr maps a store error onto the domain taxonomy.
func storageErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return types.NotFound(format+": not found", args...)
	}
	return types.Storage(err, format, args...)
}

// resultLabel buckets an operation outcome for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, types.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, types.ErrPermission):
		return "permission_denied"
	case errors.Is(err, types.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, types.ErrValidation):
		return "invalid"
	case errors.Is(err, types.ErrStorage):
		return "storage"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}

// observe is deferred by every public operation.
func observe(op string, start time.Time, errp *error) {
	observability.ObserveOperation(op, resultLabel(*errp), start)
}
