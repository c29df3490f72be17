package memory

import (
	"context"
	"sort"
	"time"

	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

type history struct{ t *tx }

func (h history) Append(_ context.Context, rec store.HistoryRecord) (types.HistoryEntry, error) {
	if err := h.t.writable(); err != nil {
		return types.HistoryEntry{}, err
	}
	if err := h.t.owner.appendHook(); err != nil {
		return types.HistoryEntry{}, err
	}

	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC().Truncate(time.Millisecond)
	if at.Before(h.t.st.lastTS) {
		at = h.t.st.lastTS
	}

	e := types.HistoryEntry{
		Seq:       h.t.st.nextSeq,
		RequestID: rec.RequestID,
		Timestamp: at,
		Action:    rec.Action,
		User:      rec.User,
		Details:   rec.Details,
	}
	h.t.st.nextSeq++
	h.t.st.lastTS = at
	h.t.st.history = append(h.t.st.history, e)
	return e, nil
}

func (h history) Query(_ context.Context, requestID string) ([]types.HistoryEntry, error) {
	out := make([]types.HistoryEntry, 0)
	for _, e := range h.t.st.history {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

func (h history) All(_ context.Context) ([]types.HistoryEntry, error) {
	out := make([]types.HistoryEntry, len(h.t.st.history))
	copy(out, h.t.st.history)
	return out, nil
}
