package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/approvald/internal/approvals/events"
	"github.com/BrandonDHaskell/approvald/internal/approvals/service"
	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/approvals/store/memory"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
	"github.com/BrandonDHaskell/approvald/internal/logging"
)

// may14 falls in month '5'.
var may14 = time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC)

var (
	root  = types.Actor{Username: "root"}
	ann   = types.Actor{Username: "ann"}
	bob   = types.Actor{Username: "bob"}
	carol = types.Actor{Username: "carol"}
)

type harness struct {
	store     store.Store
	mem       *memory.Store
	dir       *service.DirectoryService
	lifecycle *service.LifecycleService
	events    *events.Recorder
}

// newHarness seeds an admin (root), an approver (ann) and two users (bob,
// carol) in a memory store, with the clock fixed at may14.
func newHarness(t *testing.T, opts ...func(*service.LifecycleConfig)) *harness {
	t.Helper()
	ms := memory.New()
	h := newHarnessOn(t, ms, opts...)
	h.mem = ms
	return h
}

func newHarnessOn(t *testing.T, ms store.Store, opts ...func(*service.LifecycleConfig)) *harness {
	t.Helper()
	require.NoError(t, ms.Update(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for _, u := range []types.User{
			{Username: "root", Role: types.RoleAdmin, Approved: true},
			{Username: "ann", Role: types.RoleApprover, Approved: true},
			{Username: "bob", Role: types.RoleUser, Approved: true},
			{Username: "carol", Role: types.RoleUser, Approved: true},
		} {
			if err := tx.Directory().InsertUser(ctx, u); err != nil {
				return err
			}
		}
		return nil
	}))

	clock := func() time.Time { return may14 }
	dir := service.NewDirectoryService(ms, logging.Discard()).WithClock(clock)
	rec := &events.Recorder{}
	cfg := service.LifecycleConfig{Publisher: rec, Now: clock}
	for _, o := range opts {
		o(&cfg)
	}
	return &harness{
		store:     ms,
		dir:       dir,
		lifecycle: service.NewLifecycleService(ms, dir, cfg, logging.Discard()),
		events:    rec,
	}
}

func (h *harness) create(t *testing.T, actor types.Actor, typ, title string) types.Request {
	t.Helper()
	r, err := h.lifecycle.Create(context.Background(), actor, types.NewRequest{
		RequestType: typ, Title: title, Description: "desc of " + title,
	})
	require.NoError(t, err)
	return r
}

func (h *harness) history(t *testing.T, id string) []types.HistoryEntry {
	t.Helper()
	var out []types.HistoryEntry
	require.NoError(t, h.store.View(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.History().Query(ctx, id)
		return err
	}))
	return out
}

func (h *harness) ledgerSize(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, h.store.View(context.Background(), func(ctx context.Context, tx store.Tx) error {
		all, err := tx.History().All(ctx)
		n = len(all)
		return err
	}))
	return n
}

func actions(entries []types.HistoryEntry) []types.Action {
	out := make([]types.Action, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}
