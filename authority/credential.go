package authority

import "fmt"

// Kind distinguishes how a credential proves its principal.
type Kind uint8

const (
	// KindSignature is an ML-DSA-65 signature by a user principal.
	KindSignature Kind = iota + 1
	// KindDerivation is a derivation proof for a key-less address.
	KindDerivation
)

func (k Kind) String() string {
	switch k {
	case KindSignature:
		return "signature"
	case KindDerivation:
		return "derivation"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Credential is the evidence attached to an action that the principal
// consented to it. Credentials are plain values and are checked by a
// Runtime; holding one grants nothing until it verifies.
//
// For KindSignature, Signature is an ML-DSA-65 signature by PublicKey.
// For KindDerivation, Signature is the issuing program's tag over Proof
// and the intent.
type Credential struct {
	Kind      Kind             `cbor:"1,keyasint"`
	Principal Address          `cbor:"2,keyasint"`
	PublicKey []byte           `cbor:"3,keyasint,omitempty"`
	Signature []byte           `cbor:"4,keyasint,omitempty"`
	Proof     *DerivationProof `cbor:"5,keyasint,omitempty"`
}

// Authorizer produces credentials for a single principal.
type Authorizer interface {
	// Address returns the principal this authorizer speaks for.
	Address() Address
	// Authorize returns a credential over intent.
	Authorize(intent Intent) (Credential, error)
}

var (
	_ Authorizer = (*KeySigner)(nil)
	_ Authorizer = (*Authority)(nil)
)
