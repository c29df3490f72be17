// Package memory is an in-process implementation of store.Store.
// It is intended for tests and the "memory" driver in dev.
//
// Update works on a private copy of the whole dataset and swaps it in only
// when the transaction function succeeds, so a failed Update leaves nothing
// behind.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

var errReadOnly = errors.New("memory: write in read-only transaction")

type state struct {
	requests map[string]types.Request
	deleted  map[string]types.DeletedRequest
	history  []types.HistoryEntry
	users    map[string]types.User
	pending  map[string]types.PendingRegistration
	nextSeq  int64
	lastTS   time.Time
}

func newState() *state {
	return &state{
		requests: make(map[string]types.Request),
		deleted:  make(map[string]types.DeletedRequest),
		users:    make(map[string]types.User),
		pending:  make(map[string]types.PendingRegistration),
		nextSeq:  1,
	}
}

func (s *state) clone() *state {
	out := &state{
		requests: make(map[string]types.Request, len(s.requests)),
		deleted:  make(map[string]types.DeletedRequest, len(s.deleted)),
		history:  make([]types.HistoryEntry, len(s.history), len(s.history)+4),
		users:    make(map[string]types.User, len(s.users)),
		pending:  make(map[string]types.PendingRegistration, len(s.pending)),
		nextSeq:  s.nextSeq,
		lastTS:   s.lastTS,
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	for k, v := range s.deleted {
		out.deleted[k] = v
	}
	copy(out.history, s.history)
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.pending {
		out.pending[k] = v
	}
	return out
}

// Store holds the whole dataset behind one lock.
type Store struct {
	mu sync.RWMutex
	st *state

	hookMu     sync.Mutex
	appendFail error
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) View(ctx context.Context, fn store.TxFn) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &tx{st: s.st, readOnly: true, owner: s})
}

func (s *Store) Update(ctx context.Context, fn store.TxFn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &tx{st: work, owner: s}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// FailAppendsWith makes every following history append fail with err until
// it is called again with nil. Test-only helper.
func (s *Store) FailAppendsWith(err error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.appendFail = err
}

func (s *Store) appendHook() error {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	return s.appendFail
}

type tx struct {
	st       *state
	readOnly bool
	owner    *Store
}

func (t *tx) Requests() store.RequestStore { return requests{t} }
func (t *tx) History() store.HistoryLedger { return history{t} }
func (t *tx) Archive() store.DeletedArchive { return archive{t} }
func (t *tx) Directory() store.DirectoryStore { return directory{t} }

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
