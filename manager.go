package fundvault

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/vaultsandbox/fundvault/authority"
	"github.com/vaultsandbox/fundvault/confidential"
	"github.com/vaultsandbox/fundvault/internal/retry"
	"github.com/vaultsandbox/fundvault/store"
)

// Manager runs the vault lifecycle: initialize, deposit, withdraw and
// finalize. It is safe for concurrent use; operations on the same vault
// serialize through compare-and-commit on the store.
type Manager struct {
	runtime  *authority.Runtime
	program  *authority.Program
	store    store.Store
	registry confidential.Registry
	ledger   confidential.Ledger

	cfg     managerConfig
	logger  *zap.Logger
	metrics *metrics
	retry   *retry.Config
}

// New registers the vault program with rt and returns a manager.
func New(rt *authority.Runtime, st store.Store, registry confidential.Registry, ledger confidential.Ledger, opts ...Option) (*Manager, error) {
	if rt == nil || st == nil || registry == nil || ledger == nil {
		return nil, ErrMissingDependency
	}

	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	program, err := rt.Register(cfg.programName)
	if err != nil {
		return nil, fmt.Errorf("register vault program: %w", err)
	}
	m, err := newMetrics(cfg.registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	r := cfg.retryConfig()
	r.RetryableOn = func(err error) bool {
		return errors.Is(err, store.ErrVersionMismatch)
	}

	return &Manager{
		runtime:  rt,
		program:  program,
		store:    st,
		registry: registry,
		ledger:   ledger,
		cfg:      cfg,
		logger:   cfg.logger,
		metrics:  m,
		retry:    r,
	}, nil
}

// Program returns the id vault addresses are derived under.
func (m *Manager) Program() authority.ProgramID {
	return m.program.ID()
}

// DeriveVault returns the addresses creator's vault for mint and salt
// would have. It touches no state.
func (m *Manager) DeriveVault(creator, mint authority.Address, salt []byte) (VaultAddresses, error) {
	return deriveAddresses(m.program.ID(), creator, mint, salt)
}

// Vault returns the current state of the vault at addr.
func (m *Manager) Vault(ctx context.Context, addr authority.Address) (*Vault, error) {
	return m.load(ctx, addr)
}

// Initialize creates the vault of creator for mint. The creator's own
// credential authorizes it; the vault's asset account is created under the
// vault's derived authority and the total starts as an encryption of zero.
func (m *Manager) Initialize(ctx context.Context, creator authority.Authorizer, mint authority.Address, opts ...InitOption) (v *Vault, err error) {
	defer func() { m.metrics.observe(opInitialize, err) }()

	var cfg initConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if mint.IsZero() {
		return nil, fmt.Errorf("%w: zero mint", ErrInvalidMint)
	}

	addrs, err := m.DeriveVault(creator.Address(), mint, cfg.salt)
	if err != nil {
		return nil, err
	}
	intent := InitializeIntent(addrs.Vault, mint, cfg.salt)
	if err := m.verifyCaller(creator, intent, creator.Address()); err != nil {
		return nil, err
	}

	key := vaultKey(addrs.Vault)
	if _, err := m.store.Get(ctx, key); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInUse, addrs.Vault)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, storeError(StageLookup, "get", err)
	}

	vaultAuth, err := m.program.Authority(vaultSeeds(creator.Address(), cfg.salt)...)
	if err != nil {
		return nil, err
	}
	if err := m.initVaultAccount(ctx, vaultAuth, addrs, mint); err != nil {
		return nil, err
	}

	cred, err := vaultAuth.Authorize(confidential.ConstantIntent(0))
	if err != nil {
		return nil, err
	}
	zero, err := m.registry.Constant(ctx, 0, cred)
	if err != nil {
		return nil, registryError(StageSetup, "constant", err)
	}

	v = &Vault{
		Address:        addrs.Vault,
		Creator:        creator.Address(),
		Salt:           cfg.salt,
		VaultAccount:   addrs.VaultAccount,
		Mint:           mint,
		EncryptedTotal: zero,
		CreatedAt:      m.cfg.now().UTC().Truncate(time.Second),
	}
	data, err := encodeVault(v)
	if err != nil {
		return nil, err
	}
	version, err := m.store.Create(ctx, key, data)
	if errors.Is(err, store.ErrExists) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInUse, addrs.Vault)
	}
	if err != nil {
		return nil, storeError(StageCommit, "create", err)
	}
	v.Version = version

	m.logger.Info("vault initialized",
		zap.Stringer("vault", v.Address),
		zap.Stringer("creator", v.Creator),
		zap.Stringer("mint", v.Mint),
		zap.Stringer("vault_account", v.VaultAccount))
	return v.clone(), nil
}

// initVaultAccount creates the vault's asset account. An account left
// behind by an earlier attempt that failed before the vault record was
// written is adopted when it already has the right owner and mint.
func (m *Manager) initVaultAccount(ctx context.Context, vaultAuth *authority.Authority, addrs VaultAddresses, mint authority.Address) error {
	cred, err := vaultAuth.Authorize(confidential.InitAccountIntent(addrs.VaultAccount, addrs.Vault, mint))
	if err != nil {
		return err
	}
	err = m.ledger.InitializeAccount(ctx, addrs.VaultAccount, addrs.Vault, mint, cred)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, confidential.ErrUnknownMint):
		return fmt.Errorf("%w: %v", ErrInvalidMint, err)
	case errors.Is(err, confidential.ErrAccountExists):
		acct, lerr := m.ledger.Account(ctx, addrs.VaultAccount)
		if lerr == nil && acct.Owner == addrs.Vault && acct.Mint == mint {
			m.logger.Debug("adopting existing vault account", zap.Stringer("account", addrs.VaultAccount))
			return nil
		}
		return fmt.Errorf("%w: vault account %s: %v", ErrAlreadyInUse, addrs.VaultAccount, err)
	default:
		return ledgerError(StageSetup, "initialize_account", err)
	}
}

// Deposit moves amount from the depositor's account into the vault and
// adds it to the encrypted total. The ledger transfer is confirmed before
// any accounting; once it is, the accounting update runs to completion
// even if ctx is canceled.
//
// An account the ledger does not hold fails with ErrUninitializedState. A
// transfer the ledger refuses, for instance with
// confidential.ErrInsufficientFunds, fails with a *CollaboratorError at
// StageTransfer and leaves the vault unchanged.
//
// When grants fail the returned vault is the committed state and the
// error is a *GrantError.
func (m *Manager) Deposit(ctx context.Context, vaultAddr authority.Address, depositor authority.Authorizer, account authority.Address, amount []byte, opts ...OpOption) (v *Vault, err error) {
	defer func() { m.metrics.observe(opDeposit, err) }()

	var cfg opConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	cur, err := m.load(ctx, vaultAddr)
	if err != nil {
		return nil, err
	}
	if cur.IsFinalized {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, vaultAddr)
	}
	if cur.ContributorCount == math.MaxUint64 {
		return nil, ErrOverflow
	}
	if err := validateGrants(cfg.grants); err != nil {
		return nil, err
	}
	if err := m.checkMint(ctx, cur, account); err != nil {
		return nil, err
	}
	vaultAuth, err := m.vaultAuthority(cur)
	if err != nil {
		return nil, err
	}

	cred, err := depositor.Authorize(confidential.TransferIntent(account, cur.VaultAccount, amount))
	if err != nil {
		return nil, fmt.Errorf("authorize transfer: %w", err)
	}
	if err := m.ledger.Transfer(ctx, account, cur.VaultAccount, amount, cred); err != nil {
		return nil, ledgerError(StageTransfer, "transfer", err)
	}

	// The value has moved. From here on, only a collaborator failure may
	// stop the accounting update.
	ctx = context.WithoutCancel(ctx)

	added, err := m.importAmount(ctx, vaultAuth, amount)
	if err != nil {
		return nil, err
	}
	v, err = m.commit(ctx, vaultAddr, opDeposit, func(cur *Vault) (*Vault, error) {
		if cur.ContributorCount == math.MaxUint64 {
			return nil, ErrOverflow
		}
		total, err := m.combine(ctx, vaultAuth, confidential.ActionAdd, cur.EncryptedTotal, added)
		if err != nil {
			return nil, err
		}
		next := cur.clone()
		next.EncryptedTotal = total
		next.ContributorCount++
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("deposit committed",
		zap.Stringer("vault", v.Address),
		zap.Stringer("account", account),
		zap.Uint64("contributors", v.ContributorCount),
		zap.Uint64("version", v.Version))

	if err := m.issueGrants(ctx, v, depositor, account, cfg.grants); err != nil {
		return v, err
	}
	return v, nil
}

// Withdraw moves amount from the vault to destination and subtracts it
// from the encrypted total. Only the creator may withdraw. Whether the
// vault holds enough is decided by the ledger; a refused transfer changes
// nothing. The vault account itself is not a valid destination.
func (m *Manager) Withdraw(ctx context.Context, vaultAddr authority.Address, caller authority.Authorizer, destination authority.Address, amount []byte, opts ...OpOption) (v *Vault, err error) {
	defer func() { m.metrics.observe(opWithdraw, err) }()

	var cfg opConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	cur, err := m.load(ctx, vaultAddr)
	if err != nil {
		return nil, err
	}
	if err := m.verifyCaller(caller, WithdrawIntent(vaultAddr, destination, amount), cur.Creator); err != nil {
		return nil, err
	}
	if cur.IsFinalized {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, vaultAddr)
	}
	if destination == cur.VaultAccount {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDestination, destination)
	}
	if err := validateGrants(cfg.grants); err != nil {
		return nil, err
	}
	if err := m.checkMint(ctx, cur, destination); err != nil {
		return nil, err
	}
	vaultAuth, err := m.vaultAuthority(cur)
	if err != nil {
		return nil, err
	}

	cred, err := vaultAuth.Authorize(confidential.TransferIntent(cur.VaultAccount, destination, amount))
	if err != nil {
		return nil, err
	}
	if err := m.ledger.Transfer(ctx, cur.VaultAccount, destination, amount, cred); err != nil {
		return nil, ledgerError(StageTransfer, "transfer", err)
	}

	ctx = context.WithoutCancel(ctx)

	removed, err := m.importAmount(ctx, vaultAuth, amount)
	if err != nil {
		return nil, err
	}
	v, err = m.commit(ctx, vaultAddr, opWithdraw, func(cur *Vault) (*Vault, error) {
		total, err := m.combine(ctx, vaultAuth, confidential.ActionSub, cur.EncryptedTotal, removed)
		if err != nil {
			return nil, err
		}
		next := cur.clone()
		next.EncryptedTotal = total
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("withdrawal committed",
		zap.Stringer("vault", v.Address),
		zap.Stringer("destination", destination),
		zap.Uint64("version", v.Version))

	if err := m.issueGrants(ctx, v, caller, destination, cfg.grants); err != nil {
		return v, err
	}
	return v, nil
}

// Finalize retires the vault. Deposits and withdrawals admitted after it
// commits fail with ErrInvalidState. Only the creator may finalize, and
// only once.
func (m *Manager) Finalize(ctx context.Context, vaultAddr authority.Address, caller authority.Authorizer) (v *Vault, err error) {
	defer func() { m.metrics.observe(opFinalize, err) }()

	cur, err := m.load(ctx, vaultAddr)
	if err != nil {
		return nil, err
	}
	if err := m.verifyCaller(caller, FinalizeIntent(vaultAddr), cur.Creator); err != nil {
		return nil, err
	}

	v, err = m.commit(ctx, vaultAddr, opFinalize, func(cur *Vault) (*Vault, error) {
		if cur.IsFinalized {
			return nil, fmt.Errorf("%w: %s", ErrInvalidState, vaultAddr)
		}
		next := cur.clone()
		next.IsFinalized = true
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("vault finalized", zap.Stringer("vault", v.Address))
	return v, nil
}

// commit applies mutate to a fresh read of the vault and writes the result
// if no other writer committed in between; otherwise it rereads and tries
// again. Handles mutate computed for a lost attempt are left unreferenced.
func (m *Manager) commit(ctx context.Context, addr authority.Address, op string, mutate func(*Vault) (*Vault, error)) (*Vault, error) {
	key := vaultKey(addr)
	var out *Vault

	err := m.retry.Do(ctx, func(int) error {
		cur, err := m.load(ctx, addr)
		if err != nil {
			return err
		}
		next, err := mutate(cur)
		if err != nil {
			return err
		}
		data, err := encodeVault(next)
		if err != nil {
			return err
		}
		version, err := m.store.CompareAndCommit(ctx, key, cur.Version, data)
		if err != nil {
			if errors.Is(err, store.ErrVersionMismatch) {
				m.metrics.conflict(op)
				return err
			}
			return storeError(StageCommit, "compare_and_commit", err)
		}
		next.Version = version
		out = next
		return nil
	}, func(attempt int, err error) {
		m.logger.Debug("commit conflict, retrying",
			zap.String("op", op),
			zap.Stringer("vault", addr),
			zap.Int("attempt", attempt+1))
	})
	if errors.Is(err, store.ErrVersionMismatch) {
		return nil, storeError(StageCommit, "compare_and_commit", err)
	}
	if err != nil {
		return nil, err
	}
	return out.clone(), nil
}

func (m *Manager) load(ctx context.Context, addr authority.Address) (*Vault, error) {
	entry, err := m.store.Get(ctx, vaultKey(addr))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUninitializedState, addr)
	}
	if err != nil {
		return nil, storeError(StageLookup, "get", err)
	}
	v, err := decodeVault(addr, entry.Value, entry.Version)
	if err != nil {
		return nil, storeError(StageLookup, "decode", err)
	}
	return v, nil
}

// verifyCaller checks that caller is principal and proves it for intent.
func (m *Manager) verifyCaller(caller authority.Authorizer, intent authority.Intent, principal authority.Address) error {
	if caller.Address() != principal {
		return fmt.Errorf("%w: %s is not %s", ErrOwnerMismatch, caller.Address(), principal)
	}
	cred, err := caller.Authorize(intent)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOwnerMismatch, err)
	}
	if err := m.runtime.VerifyPrincipal(cred, intent, principal); err != nil {
		return fmt.Errorf("%w: %v", ErrOwnerMismatch, err)
	}
	return nil
}

func (m *Manager) checkMint(ctx context.Context, v *Vault, account authority.Address) error {
	acct, err := m.ledger.Account(ctx, account)
	if err != nil {
		return accountError(account, err)
	}
	if acct.Mint != v.Mint {
		return fmt.Errorf("%w: account %s holds %s, vault accepts %s", ErrMintMismatch, account, acct.Mint, v.Mint)
	}
	return nil
}

func (m *Manager) vaultAuthority(v *Vault) (*authority.Authority, error) {
	auth, err := m.program.Authority(vaultSeeds(v.Creator, v.Salt)...)
	if err != nil {
		return nil, err
	}
	if auth.Address() != v.Address {
		return nil, fmt.Errorf("vault %s was not derived under program %s", v.Address, m.program.Name())
	}
	return auth, nil
}

func (m *Manager) importAmount(ctx context.Context, vaultAuth *authority.Authority, amount []byte) (confidential.Handle, error) {
	cred, err := vaultAuth.Authorize(confidential.ImportIntent(amount))
	if err != nil {
		return confidential.Handle{}, err
	}
	h, err := m.registry.Import(ctx, amount, cred)
	if err != nil {
		return confidential.Handle{}, registryError(StageAccounting, "import", err)
	}
	return h, nil
}

func (m *Manager) combine(ctx context.Context, vaultAuth *authority.Authority, action string, a, b confidential.Handle) (confidential.Handle, error) {
	cred, err := vaultAuth.Authorize(confidential.BinaryIntent(action, a, b))
	if err != nil {
		return confidential.Handle{}, err
	}
	var h confidential.Handle
	switch action {
	case confidential.ActionAdd:
		h, err = m.registry.Add(ctx, a, b, cred)
	case confidential.ActionSub:
		h, err = m.registry.Sub(ctx, a, b, cred)
	default:
		return confidential.Handle{}, fmt.Errorf("unsupported combine %q", action)
	}
	if err != nil {
		return confidential.Handle{}, registryError(StageAccounting, action, err)
	}
	return h, nil
}
