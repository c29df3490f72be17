package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/BrandonDHaskell/approvald/internal/approvals/events"
	"github.com/BrandonDHaskell/approvald/internal/approvals/ident"
	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
	"github.com/BrandonDHaskell/approvald/internal/observability"
)

type LifecycleConfig struct {
	// RequestTypes is the closed set of accepted types. Empty means
	// DefaultRequestTypes.
	RequestTypes []string
	// Transitions guards decisions. Nil means PermissiveTransitions.
	Transitions types.TransitionTable
	Publisher   events.Publisher
	Now         func() time.Time
}

// LifecycleService is the single entry point for request mutations. Each
// mutation and the ledger entries describing it are written in one store
// transaction.
type LifecycleService struct {
	store        store.Store
	dir          Directory
	requestTypes []string
	transitions  types.TransitionTable
	publisher    events.Publisher
	now          func() time.Time
	log          *slog.Logger
}

func NewLifecycleService(st store.Store, dir Directory, cfg LifecycleConfig, log *slog.Logger) *LifecycleService {
	s := &LifecycleService{
		store:        st,
		dir:          dir,
		requestTypes: cfg.RequestTypes,
		transitions:  cfg.Transitions,
		publisher:    cfg.Publisher,
		now:          cfg.Now,
		log:          log,
	}
	if len(s.requestTypes) == 0 {
		s.requestTypes = DefaultRequestTypes
	}
	if s.transitions == nil {
		s.transitions = types.PermissiveTransitions()
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// RequestTypes lists the accepted request types.
func (s *LifecycleService) RequestTypes() []string {
	return slices.Clone(s.requestTypes)
}

// Create submits a new Pending request on behalf of actor.
func (s *LifecycleService) Create(ctx context.Context, actor types.Actor, in types.NewRequest) (req types.Request, err error) {
	defer observe("create", time.Now(), &err)

	if actor, _, err = authorize(ctx, s.dir, actor, "creating requests", anyRole...); err != nil {
		return types.Request{}, err
	}
	in.RequestType = strings.TrimSpace(in.RequestType)
	in.Title = strings.TrimSpace(in.Title)
	if !slices.Contains(s.requestTypes, in.RequestType) {
		return types.Request{}, types.Invalid("request type %q is not one of %s", in.RequestType, strings.Join(s.requestTypes, ", "))
	}
	if in.Title == "" {
		return types.Request{}, types.Invalid("title is required")
	}

	wall := s.now()
	now := wall.UTC().Truncate(time.Millisecond)

	var entries []types.HistoryEntry
	err = s.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		prefix := ident.Prefix(in.RequestType, wall.Month())
		live, err := tx.Requests().IDsWithPrefix(ctx, prefix)
		if err != nil {
			return types.Storage(err, "list ids in bucket %s", prefix)
		}
		archived, err := tx.Archive().IDsWithPrefix(ctx, prefix)
		if err != nil {
			return types.Storage(err, "list archived ids in bucket %s", prefix)
		}
		used := append(live, archived...)

		id := ident.Generate(in.RequestType, wall.Month(), used)
		if slices.Contains(used, id) {
			return types.Duplicate("request id bucket %s is exhausted: all %d ids are taken and %s already exists",
				prefix, ident.MaxPerBucket, id)
		}

		req = types.Request{
			ID:          id,
			User:        actor.Username,
			RequestType: in.RequestType,
			Title:       in.Title,
			Description: in.Description,
			Status:      types.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Requests().Insert(ctx, req); err != nil {
			return types.Storage(err, "save request %s", id)
		}
		e, err := s.append(ctx, tx, req.ID, types.CreatedDetails{
			RequestType: req.RequestType,
			Title:       req.Title,
			Description: req.Description,
		}, req.User, now)
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return types.Request{}, err
	}

	s.log.InfoContext(ctx, "request created", "id", req.ID, "type", req.RequestType, "user", req.User)
	s.publish(ctx, entries)
	return req, nil
}

// Transition records an approver decision. The new status must be a decision
// status (Approved, Denied or Returned) reachable under the transition table.
// The comment replaces any previous approver comment; empty clears it.
func (s *LifecycleService) Transition(ctx context.Context, actor types.Actor, id string, to types.Status, comment string) (req types.Request, err error) {
	defer observe("transition", time.Now(), &err)

	if actor, _, err = authorize(ctx, s.dir, actor, "deciding requests", deciders...); err != nil {
		return types.Request{}, err
	}
	action, ok := types.DecisionAction(to)
	if !ok {
		if to.Valid() {
			return types.Request{}, types.InvalidTransition("requests cannot be moved to %s directly; only a resubmission returns a request to Pending", to)
		}
		return types.Request{}, types.Invalid("unknown status %q", to)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	var entries []types.HistoryEntry
	err = s.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.Requests().Get(ctx, id)
		if err != nil {
			return storageErr(err, "request %s", id)
		}
		if !s.transitions.Allows(cur.Status, to) {
			return types.InvalidTransition("request %s is %s and cannot move to %s", id, cur.Status, to)
		}

		cur.Status = to
		cur.ApproverComment = types.StringPtr(comment)
		cur.UpdatedAt = now
		if err := tx.Requests().Update(ctx, cur); err != nil {
			return storageErr(err, "request %s", id)
		}
		e, err := s.append(ctx, tx, id, types.DecisionDetails{
			Decision: action,
			Comment:  cur.ApproverComment,
		}, actor.Username, now)
		if err != nil {
			return err
		}
		entries = append(entries, e)
		req = cur
		return nil
	})
	if err != nil {
		return types.Request{}, err
	}

	s.log.InfoContext(ctx, "request decided", "id", id, "status", to, "by", actor.Username)
	s.publish(ctx, entries)
	return req, nil
}

// Resubmit replaces the description of a Returned request and puts it back
// to Pending. Only the creator may resubmit. Two ledger entries are written:
// Edited, then Resubmitted.
func (s *LifecycleService) Resubmit(ctx context.Context, actor types.Actor, id, description string) (req types.Request, err error) {
	defer observe("resubmit", time.Now(), &err)

	if actor, _, err = authorize(ctx, s.dir, actor, "resubmitting requests", anyRole...); err != nil {
		return types.Request{}, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	var entries []types.HistoryEntry
	err = s.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.Requests().Get(ctx, id)
		if err != nil {
			return storageErr(err, "request %s", id)
		}
		if cur.User != actor.Username {
			return types.PermissionDenied("only %s, who created request %s, can resubmit it", cur.User, id)
		}
		if cur.Status != types.StatusReturned {
			return types.InvalidTransition("request %s is %s; only Returned requests can be resubmitted", id, cur.Status)
		}

		old := cur.Description
		cur.Description = description
		cur.Status = types.StatusPending
		cur.ApproverComment = nil
		cur.UpdatedAt = now
		if err := tx.Requests().Update(ctx, cur); err != nil {
			return storageErr(err, "request %s", id)
		}

		edited, err := s.append(ctx, tx, id, types.EditedDetails{
			OldDetails: types.DescriptionSnapshot{Description: old},
			NewDetails: types.DescriptionSnapshot{Description: description},
			Diff:       descriptionDiff(old, description),
		}, actor.Username, now)
		if err != nil {
			return err
		}
		resubmitted, err := s.append(ctx, tx, id, types.ResubmittedDetails{}, actor.Username, now)
		if err != nil {
			return err
		}
		entries = append(entries, edited, resubmitted)
		req = cur
		return nil
	})
	if err != nil {
		return types.Request{}, err
	}

	s.log.InfoContext(ctx, "request resubmitted", "id", id, "by", actor.Username)
	s.publish(ctx, entries)
	return req, nil
}

// Delete archives a request and removes it from the live set. The ledger
// keeps every entry about it.
func (s *LifecycleService) Delete(ctx context.Context, actor types.Actor, id string) (del types.DeletedRequest, err error) {
	defer observe("delete", time.Now(), &err)

	if actor, _, err = authorize(ctx, s.dir, actor, "deleting requests", adminsOnly...); err != nil {
		return types.DeletedRequest{}, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	var entries []types.HistoryEntry
	err = s.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.Requests().Get(ctx, id)
		if err != nil {
			return storageErr(err, "request %s", id)
		}
		del = types.DeletedRequest{Request: cur, DeletedBy: actor.Username, DeletedAt: now}

		if err := tx.Archive().Insert(ctx, del); err != nil {
			return types.Storage(err, "archive request %s", id)
		}
		if err := tx.Requests().Delete(ctx, id); err != nil {
			return storageErr(err, "request %s", id)
		}
		e, err := s.append(ctx, tx, id, types.DeletedDetails{OriginalDetails: del}, actor.Username, now)
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return types.DeletedRequest{}, err
	}

	s.log.InfoContext(ctx, "request deleted", "id", id, "by", actor.Username)
	s.publish(ctx, entries)
	return del, nil
}

// Get returns a live request. Regular users only see their own requests.
func (s *LifecycleService) Get(ctx context.Context, actor types.Actor, id string) (req types.Request, err error) {
	defer observe("get", time.Now(), &err)

	actor, role, err := authorize(ctx, s.dir, actor, "reading requests", anyRole...)
	if err != nil {
		return types.Request{}, err
	}
	err = s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		req, err = tx.Requests().Get(ctx, id)
		return storageErr(err, "request %s", id)
	})
	if err != nil {
		return types.Request{}, err
	}
	if role == types.RoleUser && req.User != actor.Username {
		return types.Request{}, types.PermissionDenied("request %s belongs to another user", id)
	}
	return req, nil
}

// ListByUser returns the requests created by user, ordered by ID. Users may
// list their own requests; approvers and admins may list anyone's.
func (s *LifecycleService) ListByUser(ctx context.Context, actor types.Actor, user string) (out []types.Request, err error) {
	defer observe("list_by_user", time.Now(), &err)

	actor, role, err := authorize(ctx, s.dir, actor, "listing requests", anyRole...)
	if err != nil {
		return nil, err
	}
	user = strings.TrimSpace(user)
	if role == types.RoleUser && user != actor.Username {
		return nil, types.PermissionDenied("listing requests of %s requires role approver or admin", user)
	}
	return s.list(ctx, types.RequestFilter{User: user})
}

// ListByStatus returns every request with the given status, ordered by ID.
func (s *LifecycleService) ListByStatus(ctx context.Context, actor types.Actor, status types.Status) (out []types.Request, err error) {
	defer observe("list_by_status", time.Now(), &err)

	if _, _, err = authorize(ctx, s.dir, actor, "listing requests by status", deciders...); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, types.Invalid("unknown status %q", status)
	}
	return s.list(ctx, types.RequestFilter{Status: status})
}

// ListAll returns every live request, ordered by ID.
func (s *LifecycleService) ListAll(ctx context.Context, actor types.Actor) (out []types.Request, err error) {
	defer observe("list_all", time.Now(), &err)

	if _, _, err = authorize(ctx, s.dir, actor, "listing all requests", deciders...); err != nil {
		return nil, err
	}
	return s.list(ctx, types.RequestFilter{})
}

// History returns the ledger of a request, newest first. It also works for
// deleted requests. Regular users only see the ledger of requests they
// created, matching Get.
func (s *LifecycleService) History(ctx context.Context, actor types.Actor, id string) (out []types.HistoryEntry, err error) {
	defer observe("history", time.Now(), &err)

	actor, role, err := authorize(ctx, s.dir, actor, "reading history", anyRole...)
	if err != nil {
		return nil, err
	}
	var creator string
	err = s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if out, err = tx.History().Query(ctx, id); err != nil {
			return err
		}
		if role != types.RoleUser {
			return nil
		}
		creator, err = creatorOf(ctx, tx, id, out)
		return err
	})
	if err != nil {
		return nil, types.Storage(err, "query history of %s", id)
	}
	if role == types.RoleUser && len(out) > 0 && creator != actor.Username {
		return nil, types.PermissionDenied("history of request %s belongs to another user", id)
	}
	return out, nil
}

// creatorOf finds who created id, whether it is live or archived. The
// Created entry is the last resort.
func creatorOf(ctx context.Context, tx store.Tx, id string, entries []types.HistoryEntry) (string, error) {
	req, err := tx.Requests().Get(ctx, id)
	if err == nil {
		return req.User, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	del, err := tx.Archive().Get(ctx, id)
	if err == nil {
		return del.User, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	for _, e := range entries {
		if e.Action == types.ActionCreated {
			return e.User, nil
		}
	}
	return "", nil
}

// ListDeleted returns the archive, oldest deletion first.
func (s *LifecycleService) ListDeleted(ctx context.Context, actor types.Actor) (out []types.DeletedRequest, err error) {
	defer observe("list_deleted", time.Now(), &err)

	if _, _, err = authorize(ctx, s.dir, actor, "listing deleted requests", adminsOnly...); err != nil {
		return nil, err
	}
	err = s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Archive().List(ctx)
		return err
	})
	return out, types.Storage(err, "list deleted requests")
}

func (s *LifecycleService) list(ctx context.Context, f types.RequestFilter) ([]types.Request, error) {
	var out []types.Request
	err := s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Requests().List(ctx, f)
		return err
	})
	return out, types.Storage(err, "list requests")
}

func (s *LifecycleService) append(ctx context.Context, tx store.Tx, id string, d types.Details, user string, at time.Time) (types.HistoryEntry, error) {
	e, err := tx.History().Append(ctx, store.HistoryRecord{
		RequestID: id,
		Action:    d.Action(),
		User:      user,
		Details:   d,
		At:        at,
	})
	if err != nil {
		return types.HistoryEntry{}, types.Storage(err, "record %s history for %s", d.Action(), id)
	}
	return e, nil
}

// publish runs after commit. A failed publish is logged and counted; the
// ledger already holds the entry.
func (s *LifecycleService) publish(ctx context.Context, entries []types.HistoryEntry) {
	for _, e := range entries {
		observability.HistoryEntriesTotal.WithLabelValues(string(e.Action)).Inc()
		if err := s.publisher.Publish(ctx, e); err != nil {
			observability.EventPublishFailures.Inc()
			s.log.WarnContext(ctx, "history event publish failed",
				"request_id", e.RequestID, "action", e.Action, "seq", e.Seq, "err", err)
		}
	}
}

func descriptionDiff(old, new string) string {
	if old == new {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(old),
		B:        difflib.SplitLines(new),
		FromFile: "old",
		ToFile:   "new",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}
