package crypto

import (
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// SigningKeypair is an ML-DSA-65 keypair held by a user principal.
type SigningKeypair struct {
	// PublicKey is the packed ML-DSA-65 public key.
	PublicKey []byte
	// SecretKey is the packed ML-DSA-65 private key.
	SecretKey []byte
}

// GenerateSigningKeypair creates a new ML-DSA-65 keypair.
func GenerateSigningKeypair() (*SigningKeypair, error) {
	pub, priv, err := mldsa65.GenerateKey(randReader)
	if err != nil {
		return nil, err
	}
	return packSigningKeypair(pub, priv)
}

// SigningKeypairFromSeed expands a 32-byte seed into an ML-DSA-65 keypair.
// The same seed always yields the same keys.
func SigningKeypairFromSeed(seed []byte) (*SigningKeypair, error) {
	if len(seed) != MLDSASeedSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(seed), MLDSASeedSize)
	}
	var s [mldsa65.SeedSize]byte
	copy(s[:], seed)
	pub, priv := mldsa65.NewKeyFromSeed(&s)
	return packSigningKeypair(pub, priv)
}

func packSigningKeypair(pub *mldsa65.PublicKey, priv *mldsa65.PrivateKey) (*SigningKeypair, error) {
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	return &SigningKeypair{PublicKey: pubBytes, SecretKey: privBytes}, nil
}

// Sign produces a deterministic ML-DSA-65 signature over message.
func (k *SigningKeypair) Sign(message []byte) ([]byte, error) {
	var sk mldsa65.PrivateKey
	if err := sk.UnmarshalBinary(k.SecretKey); err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	sig := make([]byte, mldsa65.SignatureSize)
	if err := mldsa65.SignTo(&sk, message, nil, false, sig); err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// Verify verifies an ML-DSA-65 signature (low-level function).
func Verify(publicKey, message, signature []byte) error {
	if len(publicKey) != MLDSAPublicKeySize {
		return ErrInvalidPublicKeySize
	}

	pk := &mldsa65.PublicKey{}
	if err := pk.UnmarshalBinary(publicKey); err != nil {
		return fmt.Errorf("failed to parse public key: %w", err)
	}

	if !mldsa65.Verify(pk, message, nil, signature) {
		return ErrSignatureVerificationFailed
	}

	return nil
}
