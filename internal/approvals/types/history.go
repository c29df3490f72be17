package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action names a ledger event.
type Action string

const (
	ActionCreated     Action = "Created"
	ActionApproved    Action = "Approved"
	ActionDenied      Action = "Denied"
	ActionReturned    Action = "Returned"
	ActionEdited      Action = "Edited"
	ActionResubmitted Action = "Resubmitted"
	ActionDeleted     Action = "Deleted"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionApproved, ActionDenied, ActionReturned,
		ActionEdited, ActionResubmitted, ActionDeleted:
		return true
	}
	return false
}

// DecisionAction maps a decision status to the action it is logged under.
func DecisionAction(s Status) (Action, bool) {
	switch s {
	case StatusApproved:
		return ActionApproved, true
	case StatusDenied:
		return ActionDenied, true
	case StatusReturned:
		return ActionReturned, true
	}
	return "", false
}

// Details is the action-specific payload of a history entry.
type Details interface {
	Action() Action
}

// CreatedDetails records the fields a request was submitted with.
type CreatedDetails struct {
	RequestType string `json:"request_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (CreatedDetails) Action() Action { return ActionCreated }

// DecisionDetails records an approve, deny or return decision.
type DecisionDetails struct {
	Decision Action  `json:"-"`
	Comment  *string `json:"comment,omitempty"`
}

func (d DecisionDetails) Action() Action { return d.Decision }

// DescriptionSnapshot mirrors the nested {"description": ...} shape of the
// edit payload.
type DescriptionSnapshot struct {
	Description string `json:"description"`
}

// EditedDetails records a description change made before resubmission.
type EditedDetails struct {
	OldDetails DescriptionSnapshot `json:"old_details"`
	NewDetails DescriptionSnapshot `json:"new_details"`
	Diff       string              `json:"diff,omitempty"`
}

func (EditedDetails) Action() Action { return ActionEdited }

type ResubmittedDetails struct{}

func (ResubmittedDetails) Action() Action { return ActionResubmitted }

// DeletedDetails keeps the full record as it was when removed.
type DeletedDetails struct {
	OriginalDetails DeletedRequest `json:"original_details"`
}

func (DeletedDetails) Action() Action { return ActionDeleted }

// HistoryEntry is one immutable line of the ledger.
//
// Seq is assigned by the store in insertion order and breaks ties between
// entries that share a timestamp.
type HistoryEntry struct {
	Seq       int64     `json:"seq"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	User      string    `json:"user"`
	Details   Details   `json:"details"`
}

// UnmarshalJSON decodes Details into the concrete type selected by Action.
func (e *HistoryEntry) UnmarshalJSON(b []byte) error {
	type alias HistoryEntry
	var raw struct {
		alias
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d, err := DecodeDetails(raw.Action, raw.Details)
	if err != nil {
		return err
	}
	*e = HistoryEntry(raw.alias)
	e.Details = d
	return nil
}

// EncodeDetails serializes d for storage. A nil payload encodes as "{}".
func EncodeDetails(d Details) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// DecodeDetails is the inverse of EncodeDetails for the given action.
func DecodeDetails(a Action, b []byte) (Details, error) {
	if len(b) == 0 || string(b) == "null" {
		b = []byte("{}")
	}
	var (
		d   Details
		err error
	)
	switch a {
	case ActionCreated:
		var v CreatedDetails
		err = json.Unmarshal(b, &v)
		d = v
	case ActionApproved, ActionDenied, ActionReturned:
		v := DecisionDetails{Decision: a}
		err = json.Unmarshal(b, &v)
		d = v
	case ActionEdited:
		var v EditedDetails
		err = json.Unmarshal(b, &v)
		d = v
	case ActionResubmitted:
		d = ResubmittedDetails{}
	case ActionDeleted:
		var v DeletedDetails
		err = json.Unmarshal(b, &v)
		d = v
	default:
		return nil, fmt.Errorf("unknown history action %q", a)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", a, err)
	}
	return d, nil
}
