package types_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

func TestTransitions_PermissiveAllowsRedecision(t *testing.T) {
	tbl := types.PermissiveTransitions()

	assert.True(t, tbl.Allows(types.StatusPending, types.StatusApproved))
	assert.True(t, tbl.Allows(types.StatusApproved, types.StatusDenied))
	assert.True(t, tbl.Allows(types.StatusDenied, types.StatusReturned))
	assert.False(t, tbl.Allows(types.StatusReturned, types.StatusPending))
	assert.False(t, tbl.Allows(types.StatusApproved, types.StatusPending))
}

func TestTransitions_StrictMakesDecisionsTerminal(t *testing.T) {
	tbl := types.StrictTransitions()

	assert.True(t, tbl.Allows(types.StatusPending, types.StatusReturned))
	assert.False(t, tbl.Allows(types.StatusApproved, types.StatusDenied))
	assert.True(t, tbl.Terminal(types.StatusApproved))
	assert.True(t, tbl.Terminal(types.StatusDenied))
	assert.False(t, tbl.Terminal(types.StatusPending))
}

func TestError_IsMatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("delete: %w", types.NotFound("request %s not found", "A110"))

	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.False(t, errors.Is(err, types.ErrPermission))
	assert.Contains(t, err.Error(), "request A110 not found")
}

func TestStorage_NilCauseIsNil(t *testing.T) {
	assert.NoError(t, types.Storage(nil, "load"))

	err := types.Storage(errors.New("disk full"), "save requests")
	assert.ErrorIs(t, err, types.ErrStorage)
	assert.Contains(t, err.Error(), "disk full")
}

func TestStorage_KeepsDomainErrors(t *testing.T) {
	nf := types.NotFound("user bob not found")
	err := types.Storage(nf, "lookup")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NotErrorIs(t, err, types.ErrStorage)
}

func TestDetails_DecodeByAction(t *testing.T) {
	comment := "needs a cost centre"
	cases := []types.Details{
		types.CreatedDetails{RequestType: "A", Title: "Laptop", Description: "14in"},
		types.DecisionDetails{Decision: types.ActionReturned, Comment: &comment},
		types.DecisionDetails{Decision: types.ActionApproved},
		types.EditedDetails{
			OldDetails: types.DescriptionSnapshot{Description: "old"},
			NewDetails: types.DescriptionSnapshot{Description: "new"},
		},
		types.ResubmittedDetails{},
	}
	for _, want := range cases {
		t.Run(string(want.Action()), func(t *testing.T) {
			b, err := types.EncodeDetails(want)
			require.NoError(t, err)
			got, err := types.DecodeDetails(want.Action(), b)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDetails_DecisionWithoutCommentIsEmptyObject(t *testing.T) {
	b, err := types.EncodeDetails(types.DecisionDetails{Decision: types.ActionApproved})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))
}

func TestDetails_UnknownAction(t *testing.T) {
	_, err := types.DecodeDetails("Exploded", []byte(`{}`))
	assert.Error(t, err)
}

func TestHistoryEntry_UnmarshalJSONPicksConcreteDetails(t *testing.T) {
	ts := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	in := types.HistoryEntry{
		Seq:       7,
		RequestID: "A510",
		Timestamp: ts,
		Action:    types.ActionDeleted,
		User:      "root",
		Details: types.DeletedDetails{OriginalDetails: types.DeletedRequest{
			Request:   types.Request{ID: "A510", User: "alice", Status: types.StatusDenied},
			DeletedBy: "root",
			DeletedAt: ts,
		}},
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out types.HistoryEntry
	require.NoError(t, json.Unmarshal(b, &out))

	assert.Equal(t, int64(7), out.Seq)
	assert.Equal(t, types.ActionDeleted, out.Action)
	dd, ok := out.Details.(types.DeletedDetails)
	require.True(t, ok, "details type %T", out.Details)
	assert.Equal(t, "alice", dd.OriginalDetails.User)
	assert.Equal(t, "root", dd.OriginalDetails.DeletedBy)
}

func TestParseStatusAndRole(t *testing.T) {
	s, ok := types.ParseStatus(" returned ")
	assert.True(t, ok)
	assert.Equal(t, types.StatusReturned, s)

	_, ok = types.ParseStatus("archived")
	assert.False(t, ok)

	r, ok := types.ParseRole("Approver")
	assert.True(t, ok)
	assert.Equal(t, types.RoleApprover, r)
	assert.True(t, r.In(types.RoleApprover, types.RoleAdmin))
}
