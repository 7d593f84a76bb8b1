// Package fundvault implements confidential-contribution vaults.
//
// A creator opens a vault for one mint. Contributors deposit encrypted
// amounts through a confidential ledger, and the vault keeps an encrypted
// running total that only principals granted access can decrypt. The vault
// never sees a plaintext amount; it threads opaque handles through a
// homomorphic registry.
//
// The vault and its asset account have no private keys. Their addresses
// are derived from the creator, the mint and an optional salt, and the
// manager acts for them with derivation proofs only it can issue:
//
//	vault         = derive("vault", creator[, salt])
//	vault account = derive("vault-ata", vault, mint)
//
// Basic usage:
//
//	rt := authority.NewRuntime()
//	mgr, err := fundvault.New(rt, store.NewMemory(), registry, ledger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	vault, err := mgr.Initialize(ctx, creator, mint)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Deposit a ciphertext and let the creator read the new total.
//	vault, err = mgr.Deposit(ctx, vault.Address, depositor, account, ciphertext,
//	    fundvault.WithGrants(fundvault.GrantRequest{
//	        Scope:   fundvault.ScopeVaultTotal,
//	        Grantee: creator.Address(),
//	    }))
//
// Concurrent operations on one vault serialize through compare-and-commit
// on the store: each reads the vault, computes the next record and commits
// only if nothing else committed in between, retrying from a fresh read
// otherwise. A deposit's transfer is always confirmed before its accounting
// update, and the total and contributor count commit together.
package fundvault
