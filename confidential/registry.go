package confidential

import (
	"context"
	"errors"

	"github.com/vaultsandbox/fundvault/authority"
)

var (
	// ErrUnknownHandle is returned for handles the registry does not hold.
	ErrUnknownHandle = errors.New("confidential: unknown handle")

	// ErrAccessDenied is returned when a principal has no access to a handle.
	ErrAccessDenied = errors.New("confidential: access denied")

	// ErrInvalidCiphertext is returned when imported bytes are not a
	// ciphertext the registry can accept.
	ErrInvalidCiphertext = errors.New("confidential: invalid ciphertext")
)

// Registry is the homomorphic-encryption engine. The principal named by
// the credential passed to Constant, Import, Add and Sub becomes the sole
// holder of access on the result; Add and Sub additionally require that
// principal to hold access on both inputs.
type Registry interface {
	// Constant returns a handle to an encryption of value.
	Constant(ctx context.Context, value uint64, owner authority.Credential) (Handle, error)
	// Import registers an externally produced ciphertext.
	Import(ctx context.Context, ciphertext []byte, owner authority.Credential) (Handle, error)
	// Add returns a handle to a+b.
	Add(ctx context.Context, a, b Handle, owner authority.Credential) (Handle, error)
	// Sub returns a handle to a-b.
	Sub(ctx context.Context, a, b Handle, owner authority.Credential) (Handle, error)
	// Grant gives grantee access to h, or revokes it when canRead is
	// false. The granter must already hold access on h.
	Grant(ctx context.Context, h Handle, grantee authority.Address, canRead bool, granter authority.Credential) error
}
