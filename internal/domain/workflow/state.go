package workflow

// MaxStateLength bounds a state token.
const MaxStateLength = 32

// State is an opaque, caller-defined label for a workflow's position.
// There is no fixed alphabet: a state only means something relative to
// the transition rules declared for a workflow.
type State string

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}
