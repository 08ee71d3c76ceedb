package workflow

import "fmt"

// Rule lists the destinations reachable from one source state and the
// identities allowed to move a workflow out of it.
type Rule struct {
	Destinations []State    `json:"destinations"`
	Approvers    []Identity `json:"approvers"`
}

// Definition pairs a source state with its rule.
type Definition struct {
	State State `json:"state"`
	Rule
}

// NewRule builds a rule with duplicate destinations and approvers removed.
// First-seen order is kept.
func NewRule(destinations []State, approvers []Identity) Rule {
	return Rule{
		Destinations: dedupe(destinations),
		Approvers:    dedupe(approvers),
	}
}

// Permits reports whether to is an allowed destination
func (r Rule) Permits(to State) bool {
	for _, d := range r.Destinations {
		if d == to {
			return true
		}
	}
	return false
}

// Authorizes reports whether caller is an approver
func (r Rule) Authorizes(caller Identity) bool {
	for _, a := range r.Approvers {
		if a == caller {
			return true
		}
	}
	return false
}

// Check validates a transition out of from. The destination is checked
// before the caller, so an undeclared destination is always ErrInvalidState
// regardless of who asks.
func (r *Rule) Check(from, to State, caller Identity) error {
	if r == nil {
		return fmt.Errorf("%w: no transitions defined from state %s", ErrInvalidState, from)
	}
	if !r.Permits(to) {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, from, to)
	}
	if !r.Authorizes(caller) {
		return fmt.Errorf("%w: %s is not an approver for state %s", ErrUnauthorized, caller, from)
	}
	return nil
}

func dedupe[T comparable](in []T) []T {
	out := make([]T, 0, len(in))
	seen := make(map[T]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
