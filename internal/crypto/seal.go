package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SealAmount encrypts amount to the holder of the ML-KEM secret key that
// matches publicKey.
//
// The sealing process:
//  1. ML-KEM-768 encapsulation to a fresh shared secret
//  2. HKDF-SHA-512 key derivation from the shared secret and KEM ciphertext
//  3. AES-256-GCM encryption of the 8-byte big-endian amount
//
// The result is version || ct_kem || nonce || ciphertext || tag.
func SealAmount(publicKey []byte, amount uint64) ([]byte, error) {
	ctKem, sharedSecret, err := Encapsulate(publicKey)
	if err != nil {
		return nil, fmt.Errorf("encapsulate: %w", err)
	}

	aesKey, err := deriveKey(sharedSecret, ctKem)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	nonce := make([]byte, AESNonceSize)
	if _, err := io.ReadFull(nonceReader(), nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	plaintext := make([]byte, AmountSize)
	binary.BigEndian.PutUint64(plaintext, amount)

	ciphertext, err := encryptAESGCM(aesKey, nonce, sealAAD(), plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	sealed := make([]byte, 0, SealedAmountSize)
	sealed = append(sealed, SealVersion)
	sealed = append(sealed, ctKem...)
	sealed = append(sealed, nonce...)
	sealed = append(sealed, ciphertext...)
	return sealed, nil
}

// OpenAmount decrypts a sealed amount with keypair.
func OpenAmount(sealed []byte, keypair *Keypair) (uint64, error) {
	if len(sealed) != SealedAmountSize {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrInvalidCiphertextSize, len(sealed), SealedAmountSize)
	}
	if sealed[0] != SealVersion {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, sealed[0])
	}

	rest := sealed[1:]
	ctKem := rest[:MLKEMCiphertextSize]
	rest = rest[MLKEMCiphertextSize:]
	nonce := rest[:AESNonceSize]
	ciphertext := rest[AESNonceSize:]

	// 1. KEM Decapsulation
	sharedSecret, err := keypair.Decapsulate(ctKem)
	if err != nil {
		return 0, fmt.Errorf("decapsulate: %w", err)
	}

	// 2. Key Derivation (HKDF-SHA-512)
	aesKey, err := deriveKey(sharedSecret, ctKem)
	if err != nil {
		return 0, fmt.Errorf("derive key: %w", err)
	}

	// 3. AES-256-GCM Decryption
	plaintext, err := decryptAESGCM(aesKey, nonce, sealAAD(), ciphertext)
	if err != nil {
		return 0, fmt.Errorf("decrypt: %w", err)
	}

	return binary.BigEndian.Uint64(plaintext), nil
}

// deriveKey performs HKDF-SHA-512 key derivation for the sealing scheme.
//
//   - IKM: the KEM shared secret
//   - Salt: SHA-256 hash of the KEM ciphertext
//   - Info: context string || version
func deriveKey(sharedSecret, ctKem []byte) ([]byte, error) {
	saltHash := sha256.Sum256(ctKem)

	info := append([]byte(HKDFContext), SealVersion)

	reader := hkdf.New(sha512.New, sharedSecret, saltHash[:], info)
	key := make([]byte, AESKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}

	return key, nil
}

func sealAAD() []byte {
	return []byte(AlgsCiphersuite)
}

func nonceReader() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}
