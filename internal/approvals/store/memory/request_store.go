package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

type requests struct{ t *tx }

func (r requests) Get(_ context.Context, id string) (types.Request, error) {
	req, ok := r.t.st.requests[id]
	if !ok {
		return types.Request{}, store.ErrNotFound
	}
	return req, nil
}

func (r requests) Insert(_ context.Context, req types.Request) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.st.requests[req.ID]; ok {
		return fmt.Errorf("memory: request %s already exists", req.ID)
	}
	r.t.st.requests[req.ID] = req
	return nil
}

func (r requests) Update(_ context.Context, req types.Request) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.st.requests[req.ID]; !ok {
		return store.ErrNotFound
	}
	r.t.st.requests[req.ID] = req
	return nil
}

func (r requests) Delete(_ context.Context, id string) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.st.requests[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.t.st.requests, id)
	return nil
}

func (r requests) List(_ context.Context, f types.RequestFilter) ([]types.Request, error) {
	out := make([]types.Request, 0)
	for _, id := range sortedKeys(r.t.st.requests) {
		if req := r.t.st.requests[id]; f.Match(req) {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r requests) IDsWithPrefix(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for _, id := range sortedKeys(r.t.st.requests) {
		if strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out, nil
}

type archive struct{ t *tx }

func (a archive) Insert(_ context.Context, d types.DeletedRequest) error {
	if err := a.t.writable(); err != nil {
		return err
	}
	if _, ok := a.t.st.deleted[d.ID]; ok {
		return fmt.Errorf("memory: deleted request %s already archived", d.ID)
	}
	a.t.st.deleted[d.ID] = d
	return nil
}

func (a archive) Get(_ context.Context, id string) (types.DeletedRequest, error) {
	d, ok := a.t.st.deleted[id]
	if !ok {
		return types.DeletedRequest{}, store.ErrNotFound
	}
	return d, nil
}

func (a archive) List(_ context.Context) ([]types.DeletedRequest, error) {
	out := make([]types.DeletedRequest, 0, len(a.t.st.deleted))
	for _, d := range a.t.st.deleted {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DeletedAt.Equal(out[j].DeletedAt) {
			return out[i].DeletedAt.Before(out[j].DeletedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (a archive) IDsWithPrefix(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for _, id := range sortedKeys(a.t.st.deleted) {
		if strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out, nil
}
