// Package ledger is an in-process confidential.Ledger built on an engine
// registry. Balances are encrypted handles held by the ledger program and
// shared with each account's owner. A transfer of more than the source
// balance fails with confidential.ErrInsufficientFunds and moves nothing.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vaultsandbox/fundvault/authority"
	"github.com/vaultsandbox/fundvault/confidential"
)

// ProgramName is the name the ledger registers with the runtime.
const ProgramName = "fundvault.ledger"

// Engine is the registry the ledger computes balances with.
type Engine interface {
	confidential.Registry
	Ge(ctx context.Context, a, b confidential.Handle, owner authority.Credential) (confidential.Handle, error)
	Reveal(ctx context.Context, h confidential.Handle, reader authority.Credential) (uint64, error)
}

type mint struct {
	authority authority.Address
	name      string
}

// Ledger is a reference confidential ledger.
type Ledger struct {
	engine  Engine
	runtime *authority.Runtime
	program *authority.Program
	self    *authority.Authority
	logger  *zap.Logger

	// mu serializes all mutations so balance updates apply in one order.
	mu       sync.Mutex
	mints    map[authority.Address]mint
	accounts map[authority.Address]confidential.Account
}

var _ confidential.Ledger = (*Ledger)(nil)

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New registers the ledger program with runtime and returns the ledger.
func New(engine Engine, runtime *authority.Runtime, opts ...Option) (*Ledger, error) {
	program, err := runtime.Register(ProgramName)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	self, err := program.Authority([]byte("ledger"))
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	l := &Ledger{
		engine:   engine,
		runtime:  runtime,
		program:  program,
		self:     self,
		logger:   zap.NewNop(),
		mints:    make(map[authority.Address]mint),
		accounts: make(map[authority.Address]confidential.Account),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Authority returns the ledger program's own address.
func (l *Ledger) Authority() authority.Address { return l.self.Address() }

// MintAddress returns the address of the mint named name under mintAuthority.
func (l *Ledger) MintAddress(mintAuthority authority.Address, name string) (authority.Address, error) {
	return authority.Derive(l.program.ID(), []byte("mint"), mintAuthority[:], []byte(name))
}

// AccountAddress returns the canonical token account of owner for mint.
func (l *Ledger) AccountAddress(owner, mintAddr authority.Address) (authority.Address, error) {
	return authority.Derive(l.program.ID(), []byte("account"), owner[:], mintAddr[:])
}

// CreateMint creates a mint controlled by mintAuthority.
func (l *Ledger) CreateMint(ctx context.Context, mintAuthority authority.Address, name string) (authority.Address, error) {
	if err := ctx.Err(); err != nil {
		return authority.Address{}, err
	}
	addr, err := l.MintAddress(mintAuthority, name)
	if err != nil {
		return authority.Address{}, fmt.Errorf("ledger: mint address: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.mints[addr]; ok {
		return addr, nil
	}
	l.mints[addr] = mint{authority: mintAuthority, name: name}
	l.logger.Info("mint created", zap.Stringer("mint", addr), zap.String("name", name))
	return addr, nil
}

// OpenAccount initializes the canonical account of owner for mint.
func (l *Ledger) OpenAccount(ctx context.Context, owner authority.Authorizer, mintAddr authority.Address) (authority.Address, error) {
	addr, err := l.AccountAddress(owner.Address(), mintAddr)
	if err != nil {
		return authority.Address{}, fmt.Errorf("ledger: account address: %w", err)
	}
	cred, err := owner.Authorize(confidential.InitAccountIntent(addr, owner.Address(), mintAddr))
	if err != nil {
		return authority.Address{}, err
	}
	if err := l.InitializeAccount(ctx, addr, owner.Address(), mintAddr, cred); err != nil {
		return authority.Address{}, err
	}
	return addr, nil
}

// InitializeAccount implements confidential.Ledger.
func (l *Ledger) InitializeAccount(ctx context.Context, account, owner, mintAddr authority.Address, cred authority.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.runtime.VerifyPrincipal(cred, confidential.InitAccountIntent(account, owner, mintAddr), owner); err != nil {
		return fmt.Errorf("ledger: initialize account: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.mints[mintAddr]; !ok {
		return fmt.Errorf("%w: %s", confidential.ErrUnknownMint, mintAddr)
	}
	if _, ok := l.accounts[account]; ok {
		return fmt.Errorf("%w: %s", confidential.ErrAccountExists, account)
	}

	balance, err := l.engine.Constant(ctx, 0, l.credential(confidential.ConstantIntent(0)))
	if err != nil {
		return fmt.Errorf("ledger: zero balance: %w", err)
	}
	if err := l.share(ctx, balance, owner); err != nil {
		return err
	}

	l.accounts[account] = confidential.Account{
		Address: account,
		Owner:   owner,
		Mint:    mintAddr,
		Balance: balance,
	}
	l.logger.Debug("account initialized",
		zap.Stringer("account", account),
		zap.Stringer("owner", owner),
		zap.Stringer("mint", mintAddr))
	return nil
}

// MintTo adds an encrypted amount to account. The credential must be the
// mint authority's.
func (l *Ledger) MintTo(ctx context.Context, account authority.Address, ct []byte, cred authority.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[account]
	if !ok {
		return fmt.Errorf("%w: %s", confidential.ErrUnknownAccount, account)
	}
	m, ok := l.mints[acct.Mint]
	if !ok {
		return fmt.Errorf("%w: %s", confidential.ErrUnknownMint, acct.Mint)
	}
	if err := l.runtime.VerifyPrincipal(cred, confidential.MintToIntent(acct.Mint, account, ct), m.authority); err != nil {
		return fmt.Errorf("ledger: mint to: %w", err)
	}

	amount, err := l.engine.Import(ctx, ct, l.credential(confidential.ImportIntent(ct)))
	if err != nil {
		return fmt.Errorf("ledger: import amount: %w", err)
	}
	balance, err := l.engine.Add(ctx, acct.Balance, amount, l.credential(confidential.BinaryIntent(confidential.ActionAdd, acct.Balance, amount)))
	if err != nil {
		return fmt.Errorf("ledger: credit: %w", err)
	}
	if err := l.share(ctx, balance, acct.Owner); err != nil {
		return err
	}
	acct.Balance = balance
	l.accounts[account] = acct
	return nil
}

// Transfer implements confidential.Ledger.
func (l *Ledger) Transfer(ctx context.Context, source, destination authority.Address, ct []byte, cred authority.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if source == destination {
		return fmt.Errorf("%w: %s", confidential.ErrSameAccount, source)
	}
	src, ok := l.accounts[source]
	if !ok {
		return fmt.Errorf("%w: source %s", confidential.ErrUnknownAccount, source)
	}
	dst, ok := l.accounts[destination]
	if !ok {
		return fmt.Errorf("%w: destination %s", confidential.ErrUnknownAccount, destination)
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("%w: %s != %s", confidential.ErrMintMismatch, src.Mint, dst.Mint)
	}
	if err := l.runtime.VerifyPrincipal(cred, confidential.TransferIntent(source, destination, ct), src.Owner); err != nil {
		return fmt.Errorf("ledger: transfer: %w", err)
	}

	amount, err := l.engine.Import(ctx, ct, l.credential(confidential.ImportIntent(ct)))
	if err != nil {
		return fmt.Errorf("ledger: import amount: %w", err)
	}
	if err := l.covers(ctx, src.Balance, amount); err != nil {
		return fmt.Errorf("ledger: transfer from %s: %w", source, err)
	}
	srcBalance, err := l.engine.Sub(ctx, src.Balance, amount, l.credential(confidential.BinaryIntent(confidential.ActionSub, src.Balance, amount)))
	if err != nil {
		return fmt.Errorf("ledger: debit: %w", err)
	}
	dstBalance, err := l.engine.Add(ctx, dst.Balance, amount, l.credential(confidential.BinaryIntent(confidential.ActionAdd, dst.Balance, amount)))
	if err != nil {
		return fmt.Errorf("ledger: credit: %w", err)
	}
	if err := l.share(ctx, srcBalance, src.Owner); err != nil {
		return err
	}
	if err := l.share(ctx, dstBalance, dst.Owner); err != nil {
		return err
	}

	src.Balance = srcBalance
	dst.Balance = dstBalance
	l.accounts[source] = src
	l.accounts[destination] = dst
	l.logger.Debug("transfer applied",
		zap.Stringer("source", source),
		zap.Stringer("destination", destination))
	return nil
}

// Account implements confidential.Ledger.
func (l *Ledger) Account(ctx context.Context, address authority.Address) (confidential.Account, error) {
	if err := ctx.Err(); err != nil {
		return confidential.Account{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[address]
	if !ok {
		return confidential.Account{}, fmt.Errorf("%w: %s", confidential.ErrUnknownAccount, address)
	}
	return acct, nil
}

// covers fails with confidential.ErrInsufficientFunds unless
// balance >= amount.
func (l *Ledger) covers(ctx context.Context, balance, amount confidential.Handle) error {
	ok, err := l.engine.Ge(ctx, balance, amount, l.credential(confidential.BinaryIntent(confidential.ActionGe, balance, amount)))
	if err != nil {
		return fmt.Errorf("ledger: compare balance: %w", err)
	}
	sufficient, err := l.engine.Reveal(ctx, ok, l.credential(confidential.RevealIntent(ok)))
	if err != nil {
		return fmt.Errorf("ledger: compare balance: %w", err)
	}
	if sufficient == 0 {
		return confidential.ErrInsufficientFunds
	}
	return nil
}

func (l *Ledger) share(ctx context.Context, h confidential.Handle, owner authority.Address) error {
	if err := l.engine.Grant(ctx, h, owner, true, l.credential(confidential.GrantIntent(h, owner, true))); err != nil {
		return fmt.Errorf("ledger: share balance with owner: %w", err)
	}
	return nil
}

// credential authorizes an engine call as the ledger program. Deriving
// for a fixed seed cannot fail.
func (l *Ledger) credential(intent authority.Intent) authority.Credential {
	cred, err := l.self.Authorize(intent)
	if err != nil {
		panic("ledger: authorize: " + err.Error())
	}
	return cred
}
