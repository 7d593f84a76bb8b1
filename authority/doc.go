// Package authority derives key-less program addresses and verifies the
// credentials that authorize actions on behalf of an address.
//
// Two kinds of principal exist. User principals hold an ML-DSA-65 key and
// their address is a hash of the public key. Derived principals have no
// key at all: their address is a pure function of a program id and a seed
// chain, and a [DerivationProof] that re-derives the address is accepted
// by a [Runtime] in place of a signature. Only the [Program] registered
// with the runtime can issue such proofs for its addresses, so knowing the
// seeds is not enough to act for a vault. The two address spaces are
// hashed under different domain keys, so a derived address never has a
// private key and a signature never speaks for a derived address.
//
// Vault addresses use the seed layouts
//
//	["vault", creator]            (or ["vault", creator, salt])
//	["vault-ata", vault, mint]
//
// which makes the vault asset account a second-level derivation rooted at
// the creator.
package authority
