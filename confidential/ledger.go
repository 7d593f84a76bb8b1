package confidential

import (
	"context"
	"errors"

	"github.com/vaultsandbox/fundvault/authority"
)

var (
	// ErrUnknownAccount is returned for accounts the ledger does not hold.
	ErrUnknownAccount = errors.New("confidential: unknown account")

	// ErrAccountExists is returned when initializing an existing account.
	ErrAccountExists = errors.New("confidential: account already exists")

	// ErrUnknownMint is returned for mints the ledger does not hold.
	ErrUnknownMint = errors.New("confidential: unknown mint")

	// ErrMintMismatch is returned when a transfer crosses asset types.
	ErrMintMismatch = errors.New("confidential: mint mismatch")

	// ErrInsufficientFunds is returned when the source balance is below
	// the transfer amount.
	ErrInsufficientFunds = errors.New("confidential: insufficient funds")

	// ErrSameAccount is returned for a transfer whose source is its destination.
	ErrSameAccount = errors.New("confidential: source and destination are the same account")
)

// Account is a confidential token account.
type Account struct {
	Address authority.Address
	Owner   authority.Address
	Mint    authority.Address
	// Balance is the current encrypted balance. It is replaced on every
	// transfer touching the account.
	Balance Handle
}

// Ledger moves encrypted value between accounts.
type Ledger interface {
	// InitializeAccount creates account for owner holding mint. The
	// credential must be the owner's.
	InitializeAccount(ctx context.Context, account, owner, mint authority.Address, cred authority.Credential) error
	// Transfer moves the encrypted amount from source to destination. The
	// credential must be the source owner's. It moves exactly the amount or
	// fails; a nil error means the full amount is durably applied.
	Transfer(ctx context.Context, source, destination authority.Address, ciphertext []byte, cred authority.Credential) error
	// Account returns the current state of an account.
	Account(ctx context.Context, address authority.Address) (Account, error)
}
