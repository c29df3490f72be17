package types

// TransitionTable lists the decision statuses reachable from each status.
// Pending is deliberately absent as a target: the only way back to Pending
// is a resubmission of a Returned request.
type TransitionTable map[Status]map[Status]struct{}

// PermissiveTransitions lets any status move to any decision status.
// Approved and Denied requests can still be re-decided.
func PermissiveTransitions() TransitionTable {
	decisions := []Status{StatusApproved, StatusDenied, StatusReturned}
	return TransitionTable{
		StatusPending:  toSet(decisions...),
		StatusApproved: toSet(decisions...),
		StatusDenied:   toSet(decisions...),
		StatusReturned: toSet(decisions...),
	}
}

// StrictTransitions only allows decisions on Pending requests.
func StrictTransitions() TransitionTable {
	return TransitionTable{
		StatusPending:  toSet(StatusApproved, StatusDenied, StatusReturned),
		StatusApproved: {},
		StatusDenied:   {},
		StatusReturned: {},
	}
}

// Allows reports whether from -> to is a legal decision.
func (t TransitionTable) Allows(from, to Status) bool {
	next, ok := t[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Terminal reports whether no decision can leave s.
func (t TransitionTable) Terminal(s Status) bool {
	return len(t[s]) == 0
}

func toSet(items ...Status) map[Status]struct{} {
	out := make(map[Status]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}
