package types

import (
	"strings"
	"time"
)

// Role is an access tier. Each tier includes the permissions of the ones below it.
type Role string

const (
	RoleUser     Role = "user"
	RoleApprover Role = "approver"
	RoleAdmin    Role = "admin"
)

// Roles lists every role from least to most privileged.
var Roles = []Role{RoleUser, RoleApprover, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleApprover, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalizes case and surrounding space.
func ParseRole(v string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(v)))
	return r, r.Valid()
}

// In reports whether r is one of allowed.
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

// User is a directory entry. Only approved users may act on requests.
type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Approved bool   `json:"approved"`
}

// PendingRegistration is a sign-up waiting for an admin decision.
// RequestedRole is the role granted when the admin does not pick one.
type PendingRegistration struct {
	Username      string    `json:"username"`
	RequestedRole Role      `json:"requested_role"`
	RequestedAt   time.Time `json:"requested_at"`
}

// Actor identifies who is calling into the lifecycle and directory services.
// The role is never carried here; it is looked up on every call.
type Actor struct {
	Username string `json:"username"`
}

// Session is the result of a successful login.
type Session struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}
