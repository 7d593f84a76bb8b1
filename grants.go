package fundvault

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vaultsandbox/fundvault/authority"
	"github.com/vaultsandbox/fundvault/confidential"
)

// Scope selects which handle a grant applies to.
type Scope int

const (
	// ScopeTransactingAccount is the balance of the caller's account: the
	// depositor account on deposit, the destination on withdraw. The
	// caller authorizes it with its own credential.
	ScopeTransactingAccount Scope = iota + 1
	// ScopeVaultAccount is the balance of the vault's asset account,
	// authorized by the vault authority.
	ScopeVaultAccount
	// ScopeVaultTotal is the vault's new encrypted total, authorized by
	// the vault authority.
	ScopeVaultTotal
)

func (s Scope) String() string {
	switch s {
	case ScopeTransactingAccount:
		return "transacting-account"
	case ScopeVaultAccount:
		return "vault-account"
	case ScopeVaultTotal:
		return "vault-total"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// GrantRequest asks for Grantee to be able to decrypt the handle named by Scope.
type GrantRequest struct {
	Scope   Scope
	Grantee authority.Address
}

func validateGrants(requests []GrantRequest) error {
	seen := make(map[GrantRequest]struct{}, len(requests))
	for i, r := range requests {
		switch r.Scope {
		case ScopeTransactingAccount, ScopeVaultAccount, ScopeVaultTotal:
		default:
			return fmt.Errorf("%w: request %d: unknown scope %s", ErrInvalidGrantRequest, i, r.Scope)
		}
		if r.Grantee.IsZero() {
			return fmt.Errorf("%w: request %d: zero grantee", ErrInvalidGrantRequest, i)
		}
		if _, dup := seen[r]; dup {
			return fmt.Errorf("%w: request %d: duplicate of an earlier request", ErrInvalidGrantRequest, i)
		}
		seen[r] = struct{}{}
	}
	return nil
}

// issueGrants applies requests against the committed vault v. Every
// request is attempted; failures are collected into a *GrantError.
func (m *Manager) issueGrants(ctx context.Context, v *Vault, caller authority.Authorizer, account authority.Address, requests []GrantRequest) error {
	if len(requests) == 0 {
		return nil
	}

	var failures []GrantFailure
	for _, req := range requests {
		if err := m.grant(ctx, v, caller, account, req); err != nil {
			failures = append(failures, GrantFailure{Request: req, Err: err})
			m.metrics.grantFailed(req.Scope)
			m.logger.Warn("grant failed",
				zap.Stringer("vault", v.Address),
				zap.Stringer("scope", req.Scope),
				zap.Stringer("grantee", req.Grantee),
				zap.Error(err))
		}
	}
	if len(failures) > 0 {
		return &GrantError{Vault: v.Address, Failures: failures}
	}
	return nil
}

func (m *Manager) grant(ctx context.Context, v *Vault, caller authority.Authorizer, account authority.Address, req GrantRequest) error {
	var (
		handle  confidential.Handle
		granter authority.Authorizer
	)
	switch req.Scope {
	case ScopeTransactingAccount:
		acct, err := m.ledger.Account(ctx, account)
		if err != nil {
			return fmt.Errorf("read account %s: %w", account, err)
		}
		handle, granter = acct.Balance, caller
	case ScopeVaultAccount:
		acct, err := m.ledger.Account(ctx, v.VaultAccount)
		if err != nil {
			return fmt.Errorf("read vault account: %w", err)
		}
		vaultAuth, err := m.vaultAuthority(v)
		if err != nil {
			return err
		}
		handle, granter = acct.Balance, vaultAuth
	case ScopeVaultTotal:
		vaultAuth, err := m.vaultAuthority(v)
		if err != nil {
			return err
		}
		handle, granter = v.EncryptedTotal, vaultAuth
	default:
		return fmt.Errorf("%w: unknown scope %s", ErrInvalidGrantRequest, req.Scope)
	}

	cred, err := granter.Authorize(confidential.GrantIntent(handle, req.Grantee, true))
	if err != nil {
		return fmt.Errorf("authorize grant: %w", err)
	}
	return m.registry.Grant(ctx, handle, req.Grantee, true, cred)
}
