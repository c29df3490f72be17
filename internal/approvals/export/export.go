// Package export renders the approval data as the five flat CSV tables
// (requests, users, pending registrations, deleted requests and request
// history) and writes them to a blob store.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path"
	"time"

	"github.com/BrandonDHaskell/approvald/internal/approvals/store"
	"github.com/BrandonDHaskell/approvald/internal/approvals/types"
	"github.com/BrandonDHaskell/approvald/internal/blob"
)

// TimestampLayout matches the textual form the tables have always used.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Table file names, in the order they are written.
const (
	RequestsFile        = "requests.csv"
	UsersFile           = "users.csv"
	PendingFile         = "pending_registrations.csv"
	DeletedRequestsFile = "deleted_requests.csv"
	HistoryFile         = "request_history.csv"
)

var Files = []string{RequestsFile, UsersFile, PendingFile, DeletedRequestsFile, HistoryFile}

// Snapshot is a consistent copy of every table.
type Snapshot struct {
	TakenAt  time.Time
	Requests []types.Request
	Users    []types.User
	Pending  []types.PendingRegistration
	Deleted  []types.DeletedRequest
	History  []types.HistoryEntry
}

// Collect reads all tables inside a single View.
func Collect(ctx context.Context, s store.Store, now time.Time) (Snapshot, error) {
	snap := Snapshot{TakenAt: now.UTC()}
	err := s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if snap.Requests, err = tx.Requests().List(ctx, types.RequestFilter{}); err != nil {
			return err
		}
		if snap.Users, err = tx.Directory().ListUsers(ctx); err != nil {
			return err
		}
		if snap.Pending, err = tx.Directory().ListPending(ctx); err != nil {
			return err
		}
		if snap.Deleted, err = tx.Archive().List(ctx); err != nil {
			return err
		}
		snap.History, err = tx.History().All(ctx)
		return err
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("collect snapshot: %w", err)
	}
	return snap, nil
}

// Render encodes every table. The map is keyed by file name.
func Render(snap Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Files))

	requests := [][]string{{"id", "user", "request_type", "title", "description", "status", "approver_comment"}}
	for _, r := range snap.Requests {
		requests = append(requests, requestRow(r))
	}

	users := [][]string{{"username", "role", "approved"}}
	for _, u := range snap.Users {
		users = append(users, []string{u.Username, string(u.Role), pyBool(u.Approved)})
	}

	pending := [][]string{{"username", "requested_role"}}
	for _, p := range snap.Pending {
		pending = append(pending, []string{p.Username, string(p.RequestedRole)})
	}

	deleted := [][]string{{"id", "user", "request_type", "title", "description", "status", "approver_comment", "deleted_by", "deleted_at"}}
	for _, d := range snap.Deleted {
		deleted = append(deleted, append(requestRow(d.Request), d.DeletedBy, formatTime(d.DeletedAt)))
	}

	history := [][]string{{"request_id", "timestamp", "action", "user", "details"}}
	for _, e := range snap.History {
		details, err := types.EncodeDetails(e.Details)
		if err != nil {
			return nil, fmt.Errorf("history entry %d: %w", e.Seq, err)
		}
		history = append(history, []string{e.RequestID, formatTime(e.Timestamp), string(e.Action), e.User, string(details)})
	}

	for name, rows := range map[string][][]string{
		RequestsFile:        requests,
		UsersFile:           users,
		PendingFile:         pending,
		DeletedRequestsFile: deleted,
		HistoryFile:         history,
	} {
		b, err := encode(rows)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		out[name] = b
	}
	return out, nil
}

// Write renders snap and stores every table under prefix.
func Write(ctx context.Context, snap Snapshot, dst blob.Store, prefix string) ([]blob.Info, error) {
	tables, err := Render(snap)
	if err != nil {
		return nil, err
	}
	infos := make([]blob.Info, 0, len(Files))
	for _, name := range Files {
		info, err := dst.Put(ctx, path.Join(prefix, name), tables[name], "text/csv")
		if err != nil {
			return infos, fmt.Errorf("write %s: %w", name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Prefix is the default key prefix for a snapshot taken at t.
func Prefix(t time.Time) string {
	return "snapshots/" + t.UTC().Format("20060102T150405Z")
}

func requestRow(r types.Request) []string {
	return []string{r.ID, r.User, r.RequestType, r.Title, r.Description, string(r.Status), r.Comment()}
}

func encode(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
