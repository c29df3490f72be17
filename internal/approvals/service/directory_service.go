package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

// DirectoryService manages users, roles and self-service registrations.
type DirectoryService struct {
	store store.Store
	now   func() time.Time
	log   *slog.Logger
}

var _ Directory = (*DirectoryService)(nil)

func NewDirectoryService(st store.Store, log *slog.Logger) *DirectoryService {
	return &DirectoryService{store: st, now: time.Now, log: log}
}

// WithClock replaces the wall clock. Tests only.
func (s *DirectoryService) WithClock(now func() time.Time) *DirectoryService {
	s.now = now
	return s
}

func normalizeUsername(v string) (string, error) {
	name := strings.TrimSpace(v)
	if name == "" {
		return "", types.Invalid("username is required")
	}
	if strings.ContainsAny(name, " \t\r\n/") {
		return "", types.Invalid("username %q must not contain whitespace or '/'", name)
	}
	return name, nil
}

// BootstrapAdmin creates the first administrator. It only succeeds while the
// directory is empty.
func (s *DirectoryService) BootstrapAdmin(ctx context.Context, username string) (u types.User, err error) {
	defer observe("bootstrap_admin", time.Now(), &err)

	name, err := normalizeUsername(username)
	if err != nil {
		return types.User{}, err
	}
	u = types.User{Username: name, Role: types.RoleAdmin, Approved: true}

	err = s.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		n, err := tx.Directory().CountUsers(ctx)
		if err != nil {
			return types.Storage(err, "count users")
		}
		if n > 0 {
			return types.Duplicate("directory already has %d users; bootstrap is only allowed on an empty directory", n)
		}
		return types.Storage(tx.Directory().InsertUser(ctx, u), "create admin %s", name)
	})
	if err != nil {
		return types.User{}, err
	}
	s.log.InfoContext(ctx, "bootstrap admin created", "username", name)
	return u, nil
}

// Register files a pending registration with the default user role.
func (s *DirectoryService) Register(ctx context.Context, username string) (p types.PendingRegistration, err error) {
	defer observe("register", time.Now(), &err)

	name, err := normalizeUsername(username)
	if err != nil {
		return types.PendingRegistration{}, err
	}
	p = types.PendingRegistration{
		Username:      name,
		RequestedRole: types.RoleUser,
		RequestedAt:   s.now().UTC().Truncate(time.Millisecond),
	}

	err = s.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		d := tx.Directory()
		if _, err := d.GetUser(ctx, name); err == nil {
			return types.Duplicate("username %s is already registered", name)
		} else if !errors.Is(err, store.ErrNotFound) {
			return types.Storage(err, "look up user %s", name)
		}
		if _, err := d.GetPending(ctx, name); err == nil {
			return types.Duplicate("username %s already has a pending registration", name)
		} else if !errors.Is(err, store.ErrNotFound) {
			return types.Storage(err, "look up registration %s", name)
		}
		return types.Storage(d.InsertPending(ctx, p), "create registration %s", name)
	})
	if err != nil {
		return types.PendingRegistration{}, err
	}
	s.log.InfoContext(ctx, "registration submitted", "username", name)
	return p, nil
}

// ApproveRegistration turns a pending registration into an approved user.
// An empty role grants the role that was requested at registration.
func (s *DirectoryService) ApproveRegistration(ctx context.Context, actor types.Actor, username string, role types.Role) (u types.User, err error) {
	defer observe("approve_registration", time.Now(), &err)

	if actor, _, err = authorize(ctx, s, actor, "approving registrations", adminsOnly...); err != nil {
		return types.User{}, err
	}
	username = strings.TrimSpace(username)
	if role != "" && !role.Valid() {
		return types.User{}, types.Invalid("unknown role %q", role)
	}

	err = s.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		d := tx.Directory()
		p, err := d.GetPending(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return types.NotFound("no pending registration for %s", username)
		}
		if err != nil {
			return types.Storage(err, "look up registration %s", username)
		}
		if _, err := d.GetUser(ctx, username); err == nil {
			return types.Duplicate("username %s is already registered", username)
		} else if !errors.Is(err, store.ErrNotFound) {
			return types.Storage(err, "look up user %s", username)
		}

		grant := role
		if grant == "" {
			grant = p.RequestedRole
		}
		if grant == "" {
			grant = types.RoleUser
		}
		u = types.User{Username: username, Role: grant, Approved: true}
		if err := d.InsertUser(ctx, u); err != nil {
			return types.Storage(err, "create user %s", username)
		}
		removed, err := d.DeletePending(ctx, username)
		if err != nil {
			return types.Storage(err, "remove registration %s", username)
		}
		if !removed {
			return types.NotFound("no pending registration for %s", username)
		}
		return nil
	})
	if err != nil {
		return types.User{}, err
	}
	s.log.InfoContext(ctx, "registration approved", "username", username, "role", u.Role, "by", actor.Username)
	return u, nil
}

func (s *DirectoryService) RejectRegistration(ctx context.Context, actor types.Actor, username string) (err error) {
	defer observe("reject_registration", time.Now(), &err)

	if actor, _, err = authorize(ctx, s, actor, "rejecting registrations", adminsOnly...); err != nil {
		return err
	}
	username = strings.TrimSpace(username)
	err = s.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		removed, err := tx.Directory().DeletePending(ctx, username)
		if err != nil {
			return types.Storage(err, "remove registration %s", username)
		}
		if !removed {
			return types.NotFound("no pending registration for %s", username)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "registration rejected", "username", username, "by", actor.Username)
	return nil
}

func (s *DirectoryService) ChangeRole(ctx context.Context, actor types.Actor, username string, role types.Role) (u types.User, err error) {
	defer observe("change_role", time.Now(), &err)

	if actor, _, err = authorize(ctx, s, actor, "changing roles", adminsOnly...); err != nil {
		return types.User{}, err
	}
	username = strings.TrimSpace(username)
	if !role.Valid() {
		return types.User{}, types.Invalid("unknown role %q", role)
	}

	err = s.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.Directory().GetUser(ctx, username)
		if err != nil {
			return storageErr(err, "user %s", username)
		}
		cur.Role = role
		u = cur
		return storageErr(tx.Directory().UpdateUser(ctx, cur), "user %s", username)
	})
	if err != nil {
		return types.User{}, err
	}
	s.log.InfoContext(ctx, "role changed", "username", username, "role", role, "by", actor.Username)
	return u, nil
}

// Login checks that username may use the system and returns its session.
func (s *DirectoryService) Login(ctx context.Context, username string) (sess types.Session, err error) {
	defer observe("login", time.Now(), &err)

	name := strings.TrimSpace(username)
	var u types.User
	err = s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		u, err = tx.Directory().GetUser(ctx, name)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return types.Session{}, types.NotFound("user %s not found; please register", name)
	}
	if err != nil {
		return types.Session{}, types.Storage(err, "look up user %s", name)
	}
	if !u.Approved {
		return types.Session{}, types.PermissionDenied("user %s is pending admin approval", name)
	}
	return types.Session{Username: u.Username, Role: u.Role}, nil
}

func (s *DirectoryService) ListUsers(ctx context.Context, actor types.Actor) (out []types.User, err error) {
	defer observe("list_users", time.Now(), &err)

	if _, _, err = authorize(ctx, s, actor, "listing users", adminsOnly...); err != nil {
		return nil, err
	}
	err = s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Directory().ListUsers(ctx)
		return err
	})
	return out, types.Storage(err, "list users")
}

func (s *DirectoryService) ListPending(ctx context.Context, actor types.Actor) (out []types.PendingRegistration, err error) {
	defer observe("list_pending", time.Now(), &err)

	if _, _, err = authorize(ctx, s, actor, "listing registrations", adminsOnly...); err != nil {
		return nil, err
	}
	err = s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Directory().ListPending(ctx)
		return err
	})
	return out, types.Storage(err, "list registrations")
}

func (s *DirectoryService) IsApproved(ctx context.Context, username string) (bool, error) {
	u, err := s.lookup(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Approved, nil
}

func (s *DirectoryService) RoleOf(ctx context.Context, username string) (types.Role, error) {
	u, err := s.lookup(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return "", types.NotFound("user %s not found", username)
	}
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (s *DirectoryService) AllUsernames(ctx context.Context) ([]string, error) {
	var users []types.User
	err := s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		users, err = tx.Directory().ListUsers(ctx)
		return err
	})
	if err != nil {
		return nil, types.Storage(err, "list users")
	}
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.Username
	}
	return out, nil
}

func (s *DirectoryService) lookup(ctx context.Context, username string) (types.User, error) {
	var u types.User
	err := s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		u, err = tx.Directory().GetUser(ctx, username)
		return err
	})
	return u, err
}
