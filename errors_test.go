package fundvault

import (
	"errors"
	"strings"
	"testing"

	"github.com/vaultsandbox/fundvault/authority"
)

func TestSentinelErrors(t *testing.T) {
	sentinels := []struct {
		name string
		err  error
	}{
		{"ErrAlreadyInUse", ErrAlreadyInUse},
		{"ErrOwnerMismatch", ErrOwnerMismatch},
		{"ErrInvalidMint", ErrInvalidMint},
		{"ErrMintMismatch", ErrMintMismatch},
		{"ErrUninitializedState", ErrUninitializedState},
		{"ErrOverflow", ErrOverflow},
		{"ErrInvalidState", ErrInvalidState},
		{"ErrInvalidDestination", ErrInvalidDestination},
		{"ErrInvalidGrantRequest", ErrInvalidGrantRequest},
		{"ErrCollaborator", ErrCollaborator},
		{"ErrGrantFailed", ErrGrantFailed},
		{"ErrMissingDependency", ErrMissingDependency},
	}

	for _, s := range sentinels {
		t.Run(s.name, func(t *testing.T) {
			if s.err == nil {
				t.Fatal("sentinel error is nil")
			}
			if s.err.Error() == "" {
				t.Error("sentinel error has empty message")
			}
			for _, other := range sentinels {
				if other.name != s.name && errors.Is(s.err, other.err) {
					t.Errorf("%s matches %s", s.name, other.name)
				}
			}
		})
	}
}

func TestCollaboratorError(t *testing.T) {
	inner := errors.New("connection reset")
	err := &CollaboratorError{Collaborator: CollaboratorLedger, Stage: StageTransfer, Op: "transfer", Err: inner}

	if got, want := err.Error(), "ledger transfer failed at transfer: connection reset"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrCollaborator) {
		t.Error("errors.Is(err, ErrCollaborator) = false")
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is(err, inner) = false")
	}
	if errors.Is(err, ErrGrantFailed) {
		t.Error("CollaboratorError matches ErrGrantFailed")
	}

	var ve VaultError = err
	_ = ve
}

func TestGrantError(t *testing.T) {
	first := errors.New("denied")
	second := errors.New("unknown handle")
	grantee := authority.Address{1}
	err := &GrantError{
		Vault: authority.Address{2},
		Failures: []GrantFailure{
			{Request: GrantRequest{Scope: ScopeVaultTotal, Grantee: grantee}, Err: first},
			{Request: GrantRequest{Scope: ScopeVaultAccount, Grantee: grantee}, Err: second},
		},
	}

	if !errors.Is(err, ErrGrantFailed) {
		t.Error("errors.Is(err, ErrGrantFailed) = false")
	}
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Error("GrantError does not unwrap to its failures")
	}
	msg := err.Error()
	for _, want := range []string{"2 grant(s) failed", "vault-total", "vault-account", "denied"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}

	var ve VaultError = err
	_ = ve
}

func TestScope_String(t *testing.T) {
	tests := []struct {
		scope Scope
		want  string
	}{
		{ScopeTransactingAccount, "transacting-account"},
		{ScopeVaultAccount, "vault-account"},
		{ScopeVaultTotal, "vault-total"},
		{Scope(0), "Scope(0)"},
	}
	for _, tt := range tests {
		if got := tt.scope.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
