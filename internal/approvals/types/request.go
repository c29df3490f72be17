package types

import (
	"strings"
	"time"
)

// Status is a request's position in its lifecycle.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusDenied   Status = "Denied"
	StatusReturned Status = "Returned"
)

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied, StatusReturned:
		return true
	}
	return false
}

// ParseStatus accepts the canonical spelling or any case variant of it.
func ParseStatus(v string) (Status, bool) {
	for _, s := range []Status{StatusPending, StatusApproved, StatusDenied, StatusReturned} {
		if strings.EqualFold(string(s), strings.TrimSpace(v)) {
			return s, true
		}
	}
	return "", false
}

// Request is a unit of work submitted for approval.
//
// ID, User and RequestType never change once the request exists.
// ApproverComment is nil until an approver sets one and is cleared again
// when the creator resubmits.
type Request struct {
	ID              string    `json:"id"`
	User            string    `json:"user"`
	RequestType     string    `json:"request_type"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Status          Status    `json:"status"`
	ApproverComment *string   `json:"approver_comment"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Comment returns the approver comment or "" when none is set.
func (r Request) Comment() string {
	if r.ApproverComment == nil {
		return ""
	}
	return *r.ApproverComment
}

// DeletedRequest is the archived copy of a removed request.
type DeletedRequest struct {
	Request
	DeletedBy string    `json:"deleted_by"`
	DeletedAt time.Time `json:"deleted_at"`
}

// NewRequest carries the caller-supplied fields of a request being created.
type NewRequest struct {
	RequestType string `json:"request_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RequestFilter narrows a request listing. Zero fields match everything.
type RequestFilter struct {
	User   string
	Status Status
}

// Match reports whether r satisfies the filter.
func (f RequestFilter) Match(r Request) bool {
	if f.User != "" && r.User != f.User {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// StringPtr returns nil for an empty string, otherwise a pointer to a copy.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
