package fundvault

import (
	"fmt"
	"time"

	"github.com/vaultsandbox/fundvault/authority"
	"github.com/vaultsandbox/fundvault/confidential"
	"github.com/vaultsandbox/fundvault/internal/codec"
)

// Seed namespaces for vault derivation.
const (
	vaultSeed        = "vault"
	vaultAccountSeed = "vault-ata"
)

const vaultKeyPrefix = "vault/"

// Vault is a snapshot of a vault's state.
type Vault struct {
	// Address is the vault's derived address and its identity.
	Address authority.Address
	// Creator is the principal that initialized the vault.
	Creator authority.Address
	// Salt is the optional extra derivation seed.
	Salt []byte
	// VaultAccount is the derived confidential account holding deposits.
	VaultAccount authority.Address
	// Mint is the asset the vault accepts.
	Mint authority.Address
	// EncryptedTotal is the running total. It is replaced, never mutated,
	// by every deposit and withdrawal.
	EncryptedTotal confidential.Handle
	// ContributorCount is the number of successful deposits.
	ContributorCount uint64
	// CreatedAt has one-second precision.
	CreatedAt time.Time
	// IsFinalized is set by Finalize and never cleared.
	IsFinalized bool
	// Version is the store version this snapshot was read at.
	Version uint64
}

func (v *Vault) clone() *Vault {
	out := *v
	out.Salt = append([]byte(nil), v.Salt...)
	return &out
}

// VaultAddresses are the addresses derived for a vault.
type VaultAddresses struct {
	Vault        authority.Address
	VaultAccount authority.Address
}

// ProgramID returns the id of the default vault program.
func ProgramID() authority.ProgramID {
	return authority.ProgramIDFromName(ProgramName)
}

// DeriveVault returns the addresses of the vault creator would get for
// mint and salt under the default program. It touches no state.
func DeriveVault(creator, mint authority.Address, salt []byte) (VaultAddresses, error) {
	return deriveAddresses(ProgramID(), creator, mint, salt)
}

func vaultSeeds(creator authority.Address, salt []byte) [][]byte {
	seeds := [][]byte{[]byte(vaultSeed), creator[:]}
	if len(salt) > 0 {
		seeds = append(seeds, salt)
	}
	return seeds
}

func vaultAccountSeeds(vault, mint authority.Address) [][]byte {
	return [][]byte{[]byte(vaultAccountSeed), vault[:], mint[:]}
}

func deriveAddresses(program authority.ProgramID, creator, mint authority.Address, salt []byte) (VaultAddresses, error) {
	vault, err := authority.Derive(program, vaultSeeds(creator, salt)...)
	if err != nil {
		return VaultAddresses{}, fmt.Errorf("derive vault: %w", err)
	}
	account, err := authority.Derive(program, vaultAccountSeeds(vault, mint)...)
	if err != nil {
		return VaultAddresses{}, fmt.Errorf("derive vault account: %w", err)
	}
	return VaultAddresses{Vault: vault, VaultAccount: account}, nil
}

func vaultKey(addr authority.Address) []byte {
	key := make([]byte, 0, len(vaultKeyPrefix)+authority.AddressSize)
	key = append(key, vaultKeyPrefix...)
	return append(key, addr[:]...)
}

// vaultRecord is the persisted form of a Vault.
type vaultRecord struct {
	Address          authority.Address   `cbor:"1,keyasint"`
	Creator          authority.Address   `cbor:"2,keyasint"`
	Salt             []byte              `cbor:"3,keyasint,omitempty"`
	VaultAccount     authority.Address   `cbor:"4,keyasint"`
	Mint             authority.Address   `cbor:"5,keyasint"`
	EncryptedTotal   confidential.Handle `cbor:"6,keyasint"`
	ContributorCount uint64              `cbor:"7,keyasint"`
	CreatedAt        int64               `cbor:"8,keyasint"`
	IsFinalized      bool                `cbor:"9,keyasint"`
}

func encodeVault(v *Vault) ([]byte, error) {
	return codec.Marshal(vaultRecord{
		Address:          v.Address,
		Creator:          v.Creator,
		Salt:             v.Salt,
		VaultAccount:     v.VaultAccount,
		Mint:             v.Mint,
		EncryptedTotal:   v.EncryptedTotal,
		ContributorCount: v.ContributorCount,
		CreatedAt:        v.CreatedAt.Unix(),
		IsFinalized:      v.IsFinalized,
	})
}

func decodeVault(addr authority.Address, data []byte, version uint64) (*Vault, error) {
	var rec vaultRecord
	if err := codec.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode vault %s: %w", addr, err)
	}
	if rec.Address != addr {
		return nil, fmt.Errorf("decode vault %s: record is for %s", addr, rec.Address)
	}
	if rec.EncryptedTotal.IsZero() {
		return nil, fmt.Errorf("decode vault %s: no encrypted total", addr)
	}
	return &Vault{
		Address:          rec.Address,
		Creator:          rec.Creator,
		Salt:             rec.Salt,
		VaultAccount:     rec.VaultAccount,
		Mint:             rec.Mint,
		EncryptedTotal:   rec.EncryptedTotal,
		ContributorCount: rec.ContributorCount,
		CreatedAt:        time.Unix(rec.CreatedAt, 0).UTC(),
		IsFinalized:      rec.IsFinalized,
		Version:          version,
	}, nil
}

// Intents a creator signs.
const (
	actionInitialize = "vault.initialize"
	actionWithdraw   = "vault.withdraw"
	actionFinalize   = "vault.finalize"
)

// InitializeIntent is what a creator signs to initialize a vault.
func InitializeIntent(vault, mint authority.Address, salt []byte) authority.Intent {
	return authority.NewIntent(actionInitialize, vault[:], mint[:], salt)
}

// WithdrawIntent is what the creator signs to withdraw from a vault.
func WithdrawIntent(vault, destination authority.Address, amount []byte) authority.Intent {
	return authority.NewIntent(actionWithdraw, vault[:], destination[:], amount)
}

// FinalizeIntent is what the creator signs to finalize a vault.
func FinalizeIntent(vault authority.Address) authority.Intent {
	return authority.NewIntent(actionFinalize, vault[:])
}
