package fundvault

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vaultsandbox/fundvault/authority"
	"github.com/vaultsandbox/fundvault/confidential"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrAlreadyInUse is returned when a vault already exists at the derived address.
	ErrAlreadyInUse = errors.New("vault already in use")

	// ErrOwnerMismatch is returned when the caller is not the vault creator.
	ErrOwnerMismatch = errors.New("caller is not the vault creator")

	// ErrInvalidMint is returned for a zero or unknown mint.
	ErrInvalidMint = errors.New("invalid mint")

	// ErrMintMismatch is returned when an account holds a different asset than the vault.
	ErrMintMismatch = errors.New("account mint does not match vault mint")

	// ErrUninitializedState is returned when no vault exists at the address.
	ErrUninitializedState = errors.New("vault not initialized")

	// ErrOverflow is returned when the contributor counter would wrap.
	ErrOverflow = errors.New("contributor count overflow")

	// ErrInvalidState is returned for operations on a finalized vault.
	ErrInvalidState = errors.New("vault is finalized")

	// ErrInvalidDestination is returned when a withdrawal targets the vault
	// account itself.
	ErrInvalidDestination = errors.New("withdrawal destination is the vault account")

	// ErrInvalidGrantRequest is returned for malformed grant requests.
	ErrInvalidGrantRequest = errors.New("invalid grant request")

	// ErrCollaborator is matched by every *CollaboratorError.
	ErrCollaborator = errors.New("collaborator failure")

	// ErrGrantFailed is matched by every *GrantError.
	ErrGrantFailed = errors.New("grant failed")

	// ErrMissingDependency is returned by New when a collaborator is nil.
	ErrMissingDependency = errors.New("runtime, store, registry and ledger are required")
)

// VaultError is implemented by all typed errors of this package.
type VaultError interface {
	error
	VaultError() // marker method
}

// Stages at which a collaborator call can fail.
const (
	StageSetup      = "setup"
	StageLookup     = "lookup"
	StageTransfer   = "transfer"
	StageAccounting = "accounting"
	StageCommit     = "commit"
)

// Collaborators named in CollaboratorError.
const (
	CollaboratorLedger   = "ledger"
	CollaboratorRegistry = "registry"
	CollaboratorStore    = "store"
)

// CollaboratorError reports a failed call into the ledger, the registry or
// the store. No vault field was committed by the failing operation.
type CollaboratorError struct {
	Collaborator string
	Stage        string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s failed at %s: %v", e.Collaborator, e.Op, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaborator
}

// VaultError implements the VaultError interface.
func (e *CollaboratorError) VaultError() {}

// GrantFailure is one grant that could not be issued.
type GrantFailure struct {
	Request GrantRequest
	Err     error
}

// GrantError reports grants that failed after the accounting update was
// committed. The value moved and the vault reflects it; only visibility
// is missing.
type GrantError struct {
	Vault    authority.Address
	Failures []GrantFailure
}

func (e *GrantError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s to %s: %v", f.Request.Scope, f.Request.Grantee, f.Err)
	}
	return fmt.Sprintf("vault %s: %d grant(s) failed: %s", e.Vault, len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap returns the underlying grant errors.
func (e *GrantError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Is implements errors.Is for sentinel error matching.
func (e *GrantError) Is(target error) bool {
	return target == ErrGrantFailed
}

// VaultError implements the VaultError interface.
func (e *GrantError) VaultError() {}

func ledgerError(stage, op string, err error) error {
	return &CollaboratorError{Collaborator: CollaboratorLedger, Stage: stage, Op: op, Err: err}
}

func registryError(stage, op string, err error) error {
	return &CollaboratorError{Collaborator: CollaboratorRegistry, Stage: stage, Op: op, Err: err}
}

func storeError(stage, op string, err error) error {
	return &CollaboratorError{Collaborator: CollaboratorStore, Stage: stage, Op: op, Err: err}
}

// accountError maps ledger account lookups onto the vault taxonomy. An
// account the ledger does not hold is uninitialized state.
func accountError(account authority.Address, err error) error {
	if errors.Is(err, confidential.ErrUnknownAccount) {
		return fmt.Errorf("%w: account %s: %w", ErrUninitializedState, account, err)
	}
	return ledgerError(StageLookup, "account", err)
}
