package workflow

// MaxIdentityLength bounds an identity value.
const MaxIdentityLength = 128

// Identity is an already-authenticated caller identifier.
type Identity string

// String returns the string representation of the identity
func (i Identity) String() string {
	return string(i)
}
