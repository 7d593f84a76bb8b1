package authority

import (
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

// AddressSize is the size of an address in bytes.
const AddressSize = 32

// Address identifies a principal, account, mint or vault.
type Address [AddressSize]byte

// domainKey is a 32-byte BLAKE3 key. Each hashing purpose uses its own
// key so inputs from one domain can never collide with another.
type domainKey [32]byte

var (
	principalDomainKey = domainKey{
		'f', 'u', 'n', 'd', 'v', 'a', 'u', 'l', 't', '.', 'p', 'r', 'i', 'n', 'c', 'i',
		'p', 'a', 'l', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	derivationDomainKey = domainKey{
		'f', 'u', 'n', 'd', 'v', 'a', 'u', 'l', 't', '.', 'd', 'e', 'r', 'i', 'v', 'e',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	programDomainKey = domainKey{
		'f', 'u', 'n', 'd', 'v', 'a', 'u', 'l', 't', '.', 'p', 'r', 'o', 'g', 'r', 'a',
		'm', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

func keyedHash(key domainKey, parts ...[]byte) [32]byte {
	// NewKeyed only fails for keys that are not 32 bytes long.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("authority: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	for _, p := range parts {
		hasher.Write(p)
	}
	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return sum
}

// AddressFromPublicKey returns the address of the user principal holding
// the ML-DSA public key.
func AddressFromPublicKey(publicKey []byte) Address {
	return Address(keyedHash(principalDomainKey, publicKey))
}

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("authority: decode address %q: %w", s, err)
	}
	if len(raw) != AddressSize {
		return Address{}, fmt.Errorf("authority: address %q has %d bytes, want %d", s, len(raw), AddressSize)
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// String returns the base58 form of a.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

// IsZero reports whether a is the all-zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
