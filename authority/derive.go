package authority

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	// MaxSeeds is the maximum number of seeds in one derivation.
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of a single seed in bytes.
	MaxSeedLen = 32
)

var (
	// ErrTooManySeeds is returned when a derivation has more than MaxSeeds seeds.
	ErrTooManySeeds = errors.New("authority: too many seeds")

	// ErrSeedTooLong is returned when a seed exceeds MaxSeedLen bytes.
	ErrSeedTooLong = errors.New("authority: seed too long")
)

// ProgramID identifies the program a derived address belongs to.
type ProgramID [32]byte

// ProgramIDFromName hashes a human-readable program name into a ProgramID.
func ProgramIDFromName(name string) ProgramID {
	return ProgramID(keyedHash(programDomainKey, []byte(name)))
}

// String returns the base58 form of p.
func (p ProgramID) String() string {
	return base58.Encode(p[:])
}

// Derive computes the address owned by program for the given seed chain.
// It is a pure function: identical inputs always give the identical
// address, in any process.
func Derive(program ProgramID, seeds ...[]byte) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, fmt.Errorf("%w: %d > %d", ErrTooManySeeds, len(seeds), MaxSeeds)
	}

	// Each seed is length-prefixed so ["ab","c"] and ["a","bc"] differ.
	parts := make([][]byte, 0, 2*len(seeds)+2)
	parts = append(parts, []byte{byte(len(seeds))})
	for i, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return Address{}, fmt.Errorf("%w: seed %d has %d bytes", ErrSeedTooLong, i, len(seed))
		}
		parts = append(parts, []byte{byte(len(seed))}, seed)
	}
	parts = append(parts, program[:])

	return Address(keyedHash(derivationDomainKey, parts...)), nil
}

// DerivationProof is the seed chain that re-derives a program address.
// A Runtime that trusts Program accepts it in place of a signature.
type DerivationProof struct {
	Program ProgramID `cbor:"1,keyasint"`
	Seeds   [][]byte  `cbor:"2,keyasint"`
}

// Address re-derives the address the proof speaks for.
func (p DerivationProof) Address() (Address, error) {
	return Derive(p.Program, p.Seeds...)
}

// Authority is a derived principal together with the seed chain that
// produced it and the program entitled to act for it. It is a value
// carried explicitly to every call that needs it; there is no ambient
// signer.
type Authority struct {
	program *Program
	seeds   [][]byte
	address Address
}

// Address returns the derived address.
func (a *Authority) Address() Address { return a.address }

// Program returns the owning program id.
func (a *Authority) Program() ProgramID { return a.program.id }

// Seeds returns a copy of the seed chain.
func (a *Authority) Seeds() [][]byte { return cloneSeeds(a.seeds) }

// Proof returns the derivation proof for this authority.
func (a *Authority) Proof() DerivationProof {
	return DerivationProof{Program: a.program.id, Seeds: cloneSeeds(a.seeds)}
}

// Authorize returns a derivation credential over intent, tagged with the
// program key so only the owning program can produce it.
func (a *Authority) Authorize(intent Intent) (Credential, error) {
	proof := a.Proof()
	tag, err := a.program.tag(proof, intent)
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		Kind:      KindDerivation,
		Principal: a.address,
		Signature: tag,
		Proof:     &proof,
	}, nil
}

func cloneSeeds(seeds [][]byte) [][]byte {
	out := make([][]byte, len(seeds))
	for i, s := range seeds {
		out[i] = append([]byte(nil), s...)
	}
	return out
}
