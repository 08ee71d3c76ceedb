package workflow

import "errors"

// Code is the stable numeric error identifier exposed to callers.
type Code uint32

const (
	CodeNotFound     Code = 100
	CodeUnauthorized Code = 101
	// CodeInvalidState is relied on by existing integrations; do not renumber.
	CodeInvalidState Code = 102
)

var (
	// ErrNotFound is returned when a workflow or template does not exist
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the caller may not perform the operation
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState is returned when the requested transition is not declared
	ErrInvalidState = errors.New("invalid state")
)

// CodeOf maps an error to its stable code. The second result is false for
// errors that are not engine error kinds (storage failures and the like).
func CodeOf(err error) (Code, bool) {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound, true
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized, true
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState, true
	default:
		return 0, false
	}
}
