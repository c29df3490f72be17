package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

type directory struct{ t *tx }

func (d directory) GetUser(_ context.Context, username string) (types.User, error) {
	u, ok := d.t.st.users[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (d directory) InsertUser(_ context.Context, u types.User) error {
	if err := d.t.writable(); err != nil {
		return err
	}
	if _, ok := d.t.st.users[u.Username]; ok {
		return fmt.Errorf("memory: user %s already exists", u.Username)
	}
	d.t.st.users[u.Username] = u
	return nil
}

func (d directory) UpdateUser(_ context.Context, u types.User) error {
	if err := d.t.writable(); err != nil {
		return err
	}
	if _, ok := d.t.st.users[u.Username]; !ok {
		return store.ErrNotFound
	}
	d.t.st.users[u.Username] = u
	return nil
}

func (d directory) ListUsers(_ context.Context) ([]types.User, error) {
	out := make([]types.User, 0, len(d.t.st.users))
	for _, name := range sortedKeys(d.t.st.users) {
		out = append(out, d.t.st.users[name])
	}
	return out, nil
}

func (d directory) CountUsers(_ context.Context) (int, error) {
	return len(d.t.st.users), nil
}

func (d directory) GetPending(_ context.Context, username string) (types.PendingRegistration, error) {
	p, ok := d.t.st.pending[username]
	if !ok {
		return types.PendingRegistration{}, store.ErrNotFound
	}
	return p, nil
}

func (d directory) InsertPending(_ context.Context, p types.PendingRegistration) error {
	if err := d.t.writable(); err != nil {
		return err
	}
	if _, ok := d.t.st.pending[p.Username]; ok {
		return fmt.Errorf("memory: registration %s already pending", p.Username)
	}
	d.t.st.pending[p.Username] = p
	return nil
}

func (d directory) DeletePending(_ context.Context, username string) (bool, error) {
	if err := d.t.writable(); err != nil {
		return false, err
	}
	if _, ok := d.t.st.pending[username]; !ok {
		return false, nil
	}
	delete(d.t.st.pending, username)
	return true, nil
}

func (d directory) ListPending(_ context.Context) ([]types.PendingRegistration, error) {
	out := make([]types.PendingRegistration, 0, len(d.t.st.pending))
	for _, p := range d.t.st.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}
