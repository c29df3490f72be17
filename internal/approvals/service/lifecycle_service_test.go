package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/approvald/internal/approvals/ident"
	"github.com/BrandonDHaskell/approvald/internal/approvals/service"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
)

// ═══════════════════════════════════════════════════════════════════════════
// Create and identifiers
// ═══════════════════════════════════════════════════════════════════════════

func TestCreate_ThenListAllFindsPendingRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.lifecycle.Create(ctx, bob, types.NewRequest{
		RequestType: "C", Title: "Standing desk", Description: "for the back",
	})
	require.NoError(t, err)

	all, err := h.lifecycle.ListAll(ctx, ann)
	require.NoError(t, err)
	require.Len(t, all, 1)

	got := all[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "bob", got.User)
	assert.Equal(t, "C", got.RequestType)
	assert.Equal(t, "Standing desk", got.Title)
	assert.Equal(t, "for the back", got.Description)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Nil(t, got.ApproverComment)

	hist := h.history(t, created.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, types.ActionCreated, hist[0].Action)
	assert.Equal(t, types.CreatedDetails{RequestType: "C", Title: "Standing desk", Description: "for the back"}, hist[0].Details)
}

func TestCreate_ThirdRequestOfTypeAInMayIsA530(t *testing.T) {
	h := newHarness(t)

	h.create(t, bob, "A", "first")
	h.create(t, carol, "B", "other bucket")
	h.create(t, bob, "A", "second")
	third := h.create(t, ann, "A", "third")

	assert.Equal(t, "A530", third.ID)
}

func TestCreate_IDsDistinctUpToBucketCapacity(t *testing.T) {
	h := newHarness(t)

	seen := make(map[string]bool)
	var last types.Request
	for i := 0; i < ident.MaxPerBucket; i++ {
		last = h.create(t, bob, "A", "req")
		require.False(t, seen[last.ID], "duplicate id %s at #%d", last.ID, i+1)
		seen[last.ID] = true
	}
	assert.Len(t, seen, ident.MaxPerBucket)
	assert.Equal(t, "A5Z0", last.ID)
}

func TestCreate_36thInBucketCollidesWith35th(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < ident.MaxPerBucket; i++ {
		h.create(t, bob, "A", "req")
	}
	before := h.ledgerSize(t)

	_, err := h.lifecycle.Create(context.Background(), bob, types.NewRequest{RequestType: "A", Title: "one too many"})
	require.ErrorIs(t, err, types.ErrDuplicate)
	assert.Contains(t, err.Error(), "A5Z0")
	assert.Contains(t, err.Error(), "bucket A5")

	assert.Equal(t, before, h.ledgerSize(t))
	all, err := h.lifecycle.ListAll(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, all, ident.MaxPerBucket)

	// Other buckets are unaffected.
	other := h.create(t, bob, "B", "fine")
	assert.Equal(t, "B510", other.ID)
}

func TestCreate_DeletedIDsAreNeverReused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.create(t, bob, "A", "first")
	require.Equal(t, "A510", first.ID)
	_, err := h.lifecycle.Delete(ctx, root, first.ID)
	require.NoError(t, err)

	second := h.create(t, bob, "A", "second")
	assert.Equal(t, "A520", second.ID)
}

func TestCreate_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.lifecycle.Create(ctx, bob, types.NewRequest{RequestType: "Z", Title: "x"})
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Contains(t, err.Error(), `"Z"`)

	_, err = h.lifecycle.Create(ctx, bob, types.NewRequest{RequestType: "A", Title: "   "})
	assert.ErrorIs(t, err, types.ErrValidation)

	assert.Equal(t, 0, h.ledgerSize(t))
}

func TestCreate_ConfiguredRequestTypes(t *testing.T) {
	h := newHarness(t, func(c *service.LifecycleConfig) {
		c.RequestTypes = []string{"HW", "SW"}
	})

	r := h.create(t, bob, "HW", "monitor")
	assert.Equal(t, "HW510", r.ID)

	_, err := h.lifecycle.Create(context.Background(), bob, types.NewRequest{RequestType: "A", Title: "x"})
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, []string{"HW", "SW"}, h.lifecycle.RequestTypes())
}

func TestCreate_RejectsUnknownAndUnapprovedActors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.lifecycle.Create(ctx, types.Actor{Username: "mallory"}, types.NewRequest{RequestType: "A", Title: "x"})
	assert.ErrorIs(t, err, types.ErrPermission)

	_, err = h.lifecycle.Create(ctx, types.Actor{}, types.NewRequest{RequestType: "A", Title: "x"})
	assert.ErrorIs(t, err, types.ErrPermission)

	_, err = h.dir.Register(ctx, "newbie")
	require.NoError(t, err)
	_, err = h.lifecycle.Create(ctx, types.Actor{Username: "newbie"}, types.NewRequest{RequestType: "A", Title: "x"})
	assert.ErrorIs(t, err, types.ErrPermission)
}

// ═══════════════════════════════════════════════════════════════════════════
// Transitions
// ═══════════════════════════════════════════════════════════════════════════

func TestTransition_OverwritesComment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.create(t, bob, "A", "laptop")

	_, err := h.lifecycle.Transition(ctx, ann, r.ID, types.StatusReturned, "add a cost centre")
	require.NoError(t, err)
	_, err = h.lifecycle.Transition(ctx, root, r.ID, types.StatusApproved, "ok now")
	require.NoError(t, err)

	got, err := h.lifecycle.Get(ctx, bob, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ApproverComment)
	assert.Equal(t, "ok now", *got.ApproverComment)
	assert.Equal(t, types.StatusApproved, got.Status)

	hist := h.history(t, r.ID)
	assert.Equal(t, []types.Action{types.ActionApproved, types.ActionReturned, types.ActionCreated}, actions(hist))
	assert.Equal(t, "ann", hist[1].User)
	assert.Equal(t, "root", hist[0].User)
}

func TestTransition_EmptyCommentClears(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.create(t, bob, "A", "laptop")

	_, err := h.lifecycle.Transition(ctx, ann, r.ID, types.StatusDenied, "no budget")
	require.NoError(t, err)
	got, err := h.lifecycle.Transition(ctx, ann, r.ID, types.StatusApproved, "")
	require.NoError(t, err)
	assert.Nil(t, got.ApproverComment)
}

func TestTransition_RequiresDecider(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.create(t, bob, "A", "laptop")

	_, err := h.lifecycle.Transition(ctx, bob, r.ID, types.StatusApproved, "self-approve")
	require.ErrorIs(t, err, types.ErrPermission)
	assert.Contains(t, err.Error(), "approver or admin")

	got, err := h.lifecycle.Get(ctx, bob, r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Len(t, h.history(t, r.ID), 1)
}

func TestTransition_ToPendingIsRejected(t *testing.T) {
	h := newHarness(t)
	r := h.create(t, bob, "A", "laptop")

	_, err := h.lifecycle.Transition(context.Background(), ann, r.ID, types.StatusPending, "")
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	_, err = h.lifecycle.Transition(context.Background(), ann, r.ID, types.Status("Lost"), "")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestTransition_UnknownRequest(t *testing.T) {
	h := newHarness(t)

	_, err := h.lifecycle.Transition(context.Background(), ann, "Q990", types.StatusApproved, "")
	require.ErrorIs(t, err, types.ErrNotFound)
	assert.Contains(t, err.Error(), "Q990")
}

func TestTransition_PermissiveAllowsRedecision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.create(t, bob, "A", "laptop")

	_, err := h.lifecycle.Transition(ctx, ann, r.ID, types.StatusApproved, "")
	require.NoError(t, err)
	got, err := h.lifecycle.Transition(ctx, ann, r.ID, types.StatusDenied, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDenied, got.Status)
}

func TestTransition_StrictMakesDecisionsTerminal(t *testing.T) {
	h := newHarness(t, func(c *service.LifecycleConfig) {
		c.Transitions = types.StrictTransitions()
	})
	ctx := context.Background()
	r := h.create(t, bob, "A", "laptop")

	_, err := h.lifecycle.Transition(ctx, ann, r.ID, types.StatusApproved, "")
	require.NoError(t, err)
	_, err = h.lifecycle.Transition(ctx, ann, r.ID, types.StatusDenied, "")
	require.ErrorIs(t, err, types.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "is Approved and cannot move to Denied")
}

// ═══════════════════════════════════════════════════════════════════════════
// Resubmit
// ═══════════════════════════════════════════════════════════════════════════

func TestResubmit_ReturnedGoesPendingWithTwoEntries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.create(t, bob, "A", "laptop")
	_, err := h.lifecycle.Transition(ctx, ann, r.ID, types.StatusReturned, "which model?")
	require.NoError(t, err)
	before := len(h.history(t, r.ID))

	got, err := h.lifecycle.Resubmit(ctx, bob, r.ID, "14 inch, 32GB")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Nil(t, got.ApproverComment)
	assert.Equal(t, "14 inch, 32GB", got.Description)

	hist := h.history(t, r.ID)
	require.Len(t, hist, before+2)
	// Newest first: Resubmitted was appended after Edited.
	assert.Equal(t, types.ActionResubmitted, hist[0].Action)
	assert.Equal(t, types.ActionEdited, hist[1].Action)
	assert.Greater(t, hist[0].Seq, hist[1].Seq)

	edit, ok := hist[1].Details.(types.EditedDetails)
	require.True(t, ok)
	assert.Equal(t, "desc of laptop", edit.OldDetails.Description)
	assert.Equal(t, "14 inch, 32GB", edit.NewDetails.Description)
	assert.Contains(t, edit.Diff, "-desc of laptop")
	assert.Contains(t, edit.Diff, "+14 inch, 32GB")

	stored, err := h.lifecycle.Get(ctx, bob, r.ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestResubmit_OnlyReturnedRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.create(t, bob, "A", "laptop")
	_, err := h.lifecycle.Transition(ctx, ann, r.ID, types.StatusApproved, "")
	require.NoError(t, err)

	_, err = h.lifecycle.Resubmit(ctx, bob, r.ID, "new")
	require.ErrorIs(t, err, types.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "request A510 is Approved; only Returned requests can be resubmitted")
}

func TestResubmit_OnlyCreator(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.create(t, bob, "A", "laptop")
	_, err := h.lifecycle.Transition(ctx, ann, r.ID, types.StatusReturned, "")
	require.NoError(t, err)

	_, err = h.lifecycle.Resubmit(ctx, carol, r.ID, "hijack")
	assert.ErrorIs(t, err, types.ErrPermission)
	_, err = h.lifecycle.Resubmit(ctx, root, r.ID, "even admins")
	assert.ErrorIs(t, err, types.ErrPermission)
}

func TestPaddedActorIsRecordedByDirectoryName(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	paddedBob := types.Actor{Username: " bob "}

	r, err := h.lifecycle.Create(ctx, paddedBob, types.NewRequest{RequestType: "A", Title: "laptop"})
	require.NoError(t, err)
	assert.Equal(t, "bob", r.User)

	_, err = h.lifecycle.Transition(ctx, types.Actor{Username: " ann"}, r.ID, types.StatusReturned, "why")
	require.NoError(t, err)
	_, err = h.lifecycle.Resubmit(ctx, paddedBob, r.ID, "because")
	require.NoError(t, err)

	own, err := h.lifecycle.Get(ctx, paddedBob, r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, own.Status)
	mine, err := h.lifecycle.ListByUser(ctx, paddedBob, " bob")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	del, err := h.lifecycle.Delete(ctx, types.Actor{Username: "root\t"}, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "root", del.DeletedBy)

	users := map[string]bool{"root": true, "ann": true, "bob": true, "carol": true}
	for _, e := range h.history(t, r.ID) {
		assert.True(t, users[e.User], "%s entry recorded unknown user %q", e.Action, e.User)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Delete
// ═══════════════════════════════════════════════════════════════════════════

func TestDelete_HistorySurvives(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.create(t, bob, "A", "laptop")
	_, err := h.lifecycle.Transition(ctx, ann, r.ID, types.StatusDenied, "no")
	require.NoError(t, err)
	prior := h.history(t, r.ID)

	del, err := h.lifecycle.Delete(ctx, root, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "root", del.DeletedBy)
	assert.Equal(t, types.StatusDenied, del.Status)

	hist, err := h.lifecycle.History(ctx, bob, r.ID)
	require.NoError(t, err)
	require.Len(t, hist, len(prior)+1)
	assert.Equal(t, types.ActionDeleted, hist[0].Action)
	assert.Equal(t, prior, hist[1:])

	dd, ok := hist[0].Details.(types.DeletedDetails)
	require.True(t, ok)
	assert.Equal(t, r.ID, dd.OriginalDetails.ID)

	_, err = h.lifecycle.Get(ctx, root, r.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	archived, err := h.lifecycle.ListDeleted(ctx, root)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, r.ID, archived[0].ID)
}

func TestDelete_NonAdminRejectedAndNothingChanges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.create(t, bob, "A", "laptop")
	ledger := h.ledgerSize(t)

	for _, actor := range []types.Actor{bob, ann} {
		_, err := h.lifecycle.Delete(ctx, actor, r.ID)
		require.ErrorIs(t, err, types.ErrPermission, actor.Username)
	}

	got, err := h.lifecycle.Get(ctx, root, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)
	assert.Equal(t, ledger, h.ledgerSize(t))

	archived, err := h.lifecycle.ListDeleted(ctx, root)
	require.NoError(t, err)
	assert.Empty(t, archived)
}

func TestDelete_Unknown(t *testing.T) {
	h := newHarness(t)
	_, err := h.lifecycle.Delete(context.Background(), root, "A990")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

// ═══════════════════════════════════════════════════════════════════════════
// Reads and role gating
// ═══════════════════════════════════════════════════════════════════════════

func TestReads_RoleGating(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mine := h.create(t, bob, "A", "bob's")
	h.create(t, carol, "B", "carol's")

	own, err := h.lifecycle.ListByUser(ctx, bob, "bob")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)

	_, err = h.lifecycle.ListByUser(ctx, bob, "carol")
	assert.ErrorIs(t, err, types.ErrPermission)
	theirs, err := h.lifecycle.ListByUser(ctx, ann, "carol")
	require.NoError(t, err)
	assert.Len(t, theirs, 1)

	_, err = h.lifecycle.ListAll(ctx, bob)
	assert.ErrorIs(t, err, types.ErrPermission)
	_, err = h.lifecycle.ListByStatus(ctx, carol, types.StatusPending)
	assert.ErrorIs(t, err, types.ErrPermission)

	pending, err := h.lifecycle.ListByStatus(ctx, ann, types.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = h.lifecycle.Get(ctx, carol, mine.ID)
	assert.ErrorIs(t, err, types.ErrPermission)

	_, err = h.lifecycle.ListDeleted(ctx, ann)
	assert.ErrorIs(t, err, types.ErrPermission)
}

func TestReads_HistoryFollowsGetGating(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.create(t, bob, "A", "bob's")

	_, err := h.lifecycle.History(ctx, carol, r.ID)
	assert.ErrorIs(t, err, types.ErrPermission)
	hist, err := h.lifecycle.History(ctx, ann, r.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	_, err = h.lifecycle.Delete(ctx, root, r.ID)
	require.NoError(t, err)

	// The Deleted entry carries the full record, so archived requests stay
	// gated by their creator.
	_, err = h.lifecycle.History(ctx, carol, r.ID)
	assert.ErrorIs(t, err, types.ErrPermission)
	hist, err = h.lifecycle.History(ctx, bob, r.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 2)

	none, err := h.lifecycle.History(ctx, carol, "Z990")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReads_RoleIsResolvedOnEveryCall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t, bob, "A", "x")

	_, err := h.lifecycle.ListAll(ctx, bob)
	require.ErrorIs(t, err, types.ErrPermission)

	_, err = h.dir.ChangeRole(ctx, root, "bob", types.RoleApprover)
	require.NoError(t, err)

	all, err := h.lifecycle.ListAll(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// ═══════════════════════════════════════════════════════════════════════════
// Atomicity and events
// ═══════════════════════════════════════════════════════════════════════════

func TestLedgerFailureRollsBackMutation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.create(t, bob, "A", "laptop")

	h.mem.FailAppendsWith(errors.New("disk full"))
	_, err := h.lifecycle.Transition(ctx, ann, r.ID, types.StatusApproved, "fine")
	require.ErrorIs(t, err, types.ErrStorage)
	assert.Contains(t, err.Error(), "disk full")

	_, err = h.lifecycle.Create(ctx, bob, types.NewRequest{RequestType: "A", Title: "second"})
	require.ErrorIs(t, err, types.ErrStorage)
	h.mem.FailAppendsWith(nil)

	got, err := h.lifecycle.Get(ctx, bob, r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Nil(t, got.ApproverComment)

	own, err := h.lifecycle.ListByUser(ctx, bob, "bob")
	require.NoError(t, err)
	assert.Len(t, own, 1)
	assert.Equal(t, 1, h.ledgerSize(t))
	assert.Len(t, h.events.Entries(), 1)
}

func TestEvents_PublishedAfterCommitInOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.create(t, bob, "A", "laptop")
	_, err := h.lifecycle.Transition(ctx, ann, r.ID, types.StatusReturned, "more info")
	require.NoError(t, err)
	_, err = h.lifecycle.Resubmit(ctx, bob, r.ID, "more info here")
	require.NoError(t, err)

	got := h.events.Entries()
	assert.Equal(t, []types.Action{
		types.ActionCreated, types.ActionReturned, types.ActionEdited, types.ActionResubmitted,
	}, actions(got))
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Seq, got[i-1].Seq)
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, types.HistoryEntry) error {
	return errors.New("broker down")
}

func TestEvents_PublishFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t, func(c *service.LifecycleConfig) {
		c.Publisher = failingPublisher{}
	})

	r := h.create(t, bob, "A", "laptop")
	assert.Len(t, h.history(t, r.ID), 1)
}
