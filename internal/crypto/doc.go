// Package crypto provides the cryptographic primitives behind sealed
// contribution amounts and principal signatures.
//
// # Algorithm Suite
//
//   - ML-KEM-768 (NIST FIPS 203): key encapsulation. Contributors seal an
//     amount to the encryption engine's public key; only the engine can
//     open it.
//
//   - ML-DSA-65 (NIST FIPS 204): signatures of user principals over the
//     intents they authorize.
//
//   - AES-256-GCM: authenticated encryption of the 8-byte amount.
//
//   - HKDF-SHA-512 (RFC 5869): derives the AES key from the KEM shared
//     secret, salted with the hash of the KEM ciphertext.
//
// # Sealed Amount Format
//
//	version (1) || ct_kem (1088) || nonce (12) || ciphertext (8) || tag (16)
//
// Every seal uses a fresh encapsulation, so two seals of the same amount
// never share bytes beyond the version.
package crypto
