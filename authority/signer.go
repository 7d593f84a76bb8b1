package authority

import (
	"fmt"

	"github.com/vaultsandbox/fundvault/internal/crypto"
)

// KeySigner is a user principal backed by an ML-DSA-65 key.
type KeySigner struct {
	keys    *crypto.SigningKeypair
	address Address
}

// GenerateKeySigner creates a signer with a fresh random key.
func GenerateKeySigner() (*KeySigner, error) {
	kp, err := crypto.GenerateSigningKeypair()
	if err != nil {
		return nil, fmt.Errorf("authority: generate key: %w", err)
	}
	return newKeySigner(kp), nil
}

// KeySignerFromSeed deterministically expands a 32-byte seed into a signer.
func KeySignerFromSeed(seed []byte) (*KeySigner, error) {
	kp, err := crypto.SigningKeypairFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("authority: key from seed: %w", err)
	}
	return newKeySigner(kp), nil
}

func newKeySigner(kp *crypto.SigningKeypair) *KeySigner {
	return &KeySigner{keys: kp, address: AddressFromPublicKey(kp.PublicKey)}
}

// Address returns the signer's address.
func (s *KeySigner) Address() Address { return s.address }

// PublicKey returns a copy of the packed public key.
func (s *KeySigner) PublicKey() []byte {
	return append([]byte(nil), s.keys.PublicKey...)
}

// Authorize signs intent.
func (s *KeySigner) Authorize(intent Intent) (Credential, error) {
	msg, err := intent.Bytes()
	if err != nil {
		return Credential{}, fmt.Errorf("authority: encode intent: %w", err)
	}
	sig, err := s.keys.Sign(msg)
	if err != nil {
		return Credential{}, fmt.Errorf("authority: sign intent: %w", err)
	}
	return Credential{
		Kind:      KindSignature,
		Principal: s.address,
		PublicKey: s.PublicKey(),
		Signature: sig,
	}, nil
}
