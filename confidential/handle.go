package confidential

import (
	"fmt"

	"github.com/google/uuid"
)

// HandleSize is the size of a handle in bytes.
const HandleSize = 16

// Handle is an opaque reference to a ciphertext held by a Registry.
// Handles are immutable; every combining operation yields a new one.
type Handle [HandleSize]byte

// NewHandle returns a fresh random handle.
func NewHandle() Handle {
	return Handle(uuid.New())
}

// ParseHandle parses the canonical text form of a handle.
func ParseHandle(s string) (Handle, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Handle{}, fmt.Errorf("confidential: parse handle %q: %w", s, err)
	}
	return Handle(u), nil
}

// String returns the canonical text form of h.
func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// IsZero reports whether h is the zero handle, which never refers to a
// live ciphertext.
func (h Handle) IsZero() bool {
	return h == Handle{}
}
