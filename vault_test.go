package fundvault

import (
	"bytes"
	"testing"
	"time"

	"github.com/vaultsandbox/fundvault/authority"
	"github.com/vaultsandbox/fundvault/confidential"
)

func TestDeriveVault(t *testing.T) {
	creator := authority.AddressFromPublicKey([]byte("creator"))
	mint := authority.AddressFromPublicKey([]byte("mint"))

	a, err := DeriveVault(creator, mint, nil)
	if err != nil {
		t.Fatalf("DeriveVault() error = %v", err)
	}
	b, err := DeriveVault(creator, mint, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("DeriveVault() not deterministic: %+v != %+v", a, b)
	}

	// The vault address ignores the mint; its account does not.
	otherMint, _ := DeriveVault(creator, authority.AddressFromPublicKey([]byte("other")), nil)
	if otherMint.Vault != a.Vault {
		t.Error("vault address depends on mint")
	}
	if otherMint.VaultAccount == a.VaultAccount {
		t.Error("vault account ignores mint")
	}

	salted, _ := DeriveVault(creator, mint, []byte("2"))
	if salted.Vault == a.Vault {
		t.Error("salt does not change the vault address")
	}

	// Empty salt is no salt.
	empty, _ := DeriveVault(creator, mint, []byte{})
	if empty != a {
		t.Error("empty salt changed the vault address")
	}

	chain, err := authority.Derive(ProgramID(), vaultAccountSeeds(a.Vault, mint)...)
	if err != nil {
		t.Fatal(err)
	}
	if chain != a.VaultAccount {
		t.Error("vault account is not derived from the vault address")
	}
}

func TestVaultRecord(t *testing.T) {
	v := &Vault{
		Address:          authority.Address{1},
		Creator:          authority.Address{2},
		Salt:             []byte("s"),
		VaultAccount:     authority.Address{3},
		Mint:             authority.Address{4},
		EncryptedTotal:   confidential.NewHandle(),
		ContributorCount: 7,
		CreatedAt:        time.Unix(1700000000, 0).UTC(),
		IsFinalized:      true,
	}

	data, err := encodeVault(v)
	if err != nil {
		t.Fatalf("encodeVault() error = %v", err)
	}
	again, _ := encodeVault(v.clone())
	if !bytes.Equal(data, again) {
		t.Error("encodeVault() is not deterministic")
	}

	got, err := decodeVault(v.Address, data, 9)
	if err != nil {
		t.Fatalf("decodeVault() error = %v", err)
	}
	if got.Version != 9 || got.ContributorCount != 7 || !got.IsFinalized || !got.CreatedAt.Equal(v.CreatedAt) {
		t.Errorf("decodeVault() = %+v", got)
	}

	if _, err := decodeVault(authority.Address{9}, data, 1); err == nil {
		t.Error("decodeVault() accepted a record stored under another address")
	}

	v.EncryptedTotal = confidential.Handle{}
	noTotal, _ := encodeVault(v)
	if _, err := decodeVault(v.Address, noTotal, 1); err == nil {
		t.Error("decodeVault() accepted a record without a total")
	}
}

func TestVault_CloneIsolatesSalt(t *testing.T) {
	v := &Vault{Salt: []byte("abc")}
	c := v.clone()
	c.Salt[0] = 'X'
	if string(v.Salt) != "abc" {
		t.Errorf("clone shares salt: %q", v.Salt)
	}
}
