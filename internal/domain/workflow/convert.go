package workflow

// ParseStates converts raw tokens into states, keeping order
func ParseStates(values []string) []State {
	return convert[State](values)
}

// ParseIdentities converts raw tokens into identities, keeping order
func ParseIdentities(values []string) []Identity {
	return convert[Identity](values)
}

// Strings returns the raw tokens of a state or identity list.
// The result is never nil.
func Strings[T ~string](values []T) []string {
	return convert[string](values)
}

func convert[To ~string, From ~string](values []From) []To {
	out := make([]To, len(values))
	for i, v := range values {
		out[i] = To(v)
	}
	return out
}
