package fundvault

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vaultsandbox/fundvault/authority"
	"github.com/vaultsandbox/fundvault/confidential"
	"github.com/vaultsandbox/fundvault/internal/engine"
	"github.com/vaultsandbox/fundvault/internal/ledger"
	"github.com/vaultsandbox/fundvault/store"
)

var testClock = time.Date(2026, 3, 14, 15, 9, 26, 535897932, time.UTC)

// harness wires a manager to the reference engine and ledger.
type harness struct {
	t      *testing.T
	rt     *authority.Runtime
	engine *engine.Engine
	ledger *ledger.Ledger
	store  store.Store
	mgr    *Manager
	issuer *authority.KeySigner
	mint   authority.Address
}

type harnessConfig struct {
	wrapLedger   func(confidential.Ledger) confidential.Ledger
	wrapRegistry func(confidential.Registry) confidential.Registry
	wrapStore    func(store.Store) store.Store
	opts         []Option
}

func newHarness(t *testing.T, configure ...func(*harnessConfig)) *harness {
	t.Helper()
	var cfg harnessConfig
	for _, c := range configure {
		c(&cfg)
	}

	rt := authority.NewRuntime()
	eng, err := engine.New(rt)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	led, err := ledger.New(eng, rt)
	if err != nil {
		t.Fatalf("ledger.New() error = %v", err)
	}

	var (
		reg confidential.Registry = eng
		l   confidential.Ledger   = led
		st  store.Store           = store.NewMemory()
	)
	if cfg.wrapRegistry != nil {
		reg = cfg.wrapRegistry(reg)
	}
	if cfg.wrapLedger != nil {
		l = cfg.wrapLedger(l)
	}
	if cfg.wrapStore != nil {
		st = cfg.wrapStore(st)
	}

	opts := append([]Option{
		WithClock(func() time.Time { return testClock }),
		WithCommitBackoff(time.Microsecond, time.Millisecond),
	}, cfg.opts...)
	mgr, err := New(rt, st, reg, l, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	h := &harness{t: t, rt: rt, engine: eng, ledger: led, store: st, mgr: mgr}
	h.issuer = h.user(0xEE)
	h.mint, err = led.CreateMint(context.Background(), h.issuer.Address(), "usd")
	if err != nil {
		t.Fatalf("CreateMint() error = %v", err)
	}
	return h
}

func (h *harness) user(seed byte) *authority.KeySigner {
	h.t.Helper()
	s, err := authority.KeySignerFromSeed(bytes.Repeat([]byte{seed}, 32))
	if err != nil {
		h.t.Fatalf("KeySignerFromSeed() error = %v", err)
	}
	return s
}

// account opens owner's account for the harness mint and funds it.
func (h *harness) account(owner authority.Authorizer, funds uint64) authority.Address {
	h.t.Helper()
	addr, err := h.ledger.OpenAccount(context.Background(), owner, h.mint)
	if err != nil {
		h.t.Fatalf("OpenAccount() error = %v", err)
	}
	if funds > 0 {
		ct := h.encrypt(funds)
		cred, err := h.issuer.Authorize(confidential.MintToIntent(h.mint, addr, ct))
		if err != nil {
			h.t.Fatal(err)
		}
		if err := h.ledger.MintTo(context.Background(), addr, ct, cred); err != nil {
			h.t.Fatalf("MintTo() error = %v", err)
		}
	}
	return addr
}

func (h *harness) encrypt(amount uint64) []byte {
	h.t.Helper()
	ct, err := h.engine.Encrypt(amount)
	if err != nil {
		h.t.Fatalf("Encrypt() error = %v", err)
	}
	return ct
}

func (h *harness) decrypt(handle confidential.Handle) uint64 {
	h.t.Helper()
	v, err := h.engine.Decrypt(handle)
	if err != nil {
		h.t.Fatalf("Decrypt() error = %v", err)
	}
	return v
}

func (h *harness) balance(account authority.Address) uint64 {
	h.t.Helper()
	acct, err := h.ledger.Account(context.Background(), account)
	if err != nil {
		h.t.Fatalf("Account() error = %v", err)
	}
	return h.decrypt(acct.Balance)
}

func (h *harness) initialize(creator authority.Authorizer, opts ...InitOption) *Vault {
	h.t.Helper()
	v, err := h.mgr.Initialize(context.Background(), creator, h.mint, opts...)
	if err != nil {
		h.t.Fatalf("Initialize() error = %v", err)
	}
	return v
}

func (h *harness) deposit(v *Vault, depositor authority.Authorizer, account authority.Address, amount uint64, opts ...OpOption) (*Vault, error) {
	h.t.Helper()
	return h.mgr.Deposit(context.Background(), v.Address, depositor, account, h.encrypt(amount), opts...)
}

func (h *harness) withdraw(v *Vault, caller authority.Authorizer, destination authority.Address, amount uint64, opts ...OpOption) (*Vault, error) {
	h.t.Helper()
	return h.mgr.Withdraw(context.Background(), v.Address, caller, destination, h.encrypt(amount), opts...)
}

func (h *harness) snapshot(addr authority.Address) *Vault {
	h.t.Helper()
	v, err := h.mgr.Vault(context.Background(), addr)
	if err != nil {
		h.t.Fatalf("Vault() error = %v", err)
	}
	return v
}

// failingLedger fails transfers with err.
type failingLedger struct {
	confidential.Ledger
	err error
}

func (l *failingLedger) Transfer(context.Context, authority.Address, authority.Address, []byte, authority.Credential) error {
	return l.err
}

// cancelingLedger cancels the caller's context right after a successful transfer.
type cancelingLedger struct {
	confidential.Ledger
	cancel context.CancelFunc
}

func (l *cancelingLedger) Transfer(ctx context.Context, src, dst authority.Address, ct []byte, cred authority.Credential) error {
	if err := l.Ledger.Transfer(ctx, src, dst, ct, cred); err != nil {
		return err
	}
	l.cancel()
	return nil
}

// failingRegistry fails the selected operations with err.
type failingRegistry struct {
	confidential.Registry
	failAdd   bool
	failGrant bool
	err       error
}

func (r *failingRegistry) Add(ctx context.Context, a, b confidential.Handle, owner authority.Credential) (confidential.Handle, error) {
	if r.failAdd {
		return confidential.Handle{}, r.err
	}
	return r.Registry.Add(ctx, a, b, owner)
}

func (r *failingRegistry) Grant(ctx context.Context, h confidential.Handle, grantee authority.Address, canRead bool, granter authority.Credential) error {
	if r.failGrant {
		return r.err
	}
	return r.Registry.Grant(ctx, h, grantee, canRead, granter)
}

// racingStore runs beforeCommit once, just before the first
// CompareAndCommit, so a competing writer can slip in between the read and
// the commit.
type racingStore struct {
	store.Store
	beforeCommit func()
	fired        atomic.Bool
	commits      atomic.Int64
}

func (s *racingStore) CompareAndCommit(ctx context.Context, key []byte, expected uint64, value []byte) (uint64, error) {
	if s.beforeCommit != nil && s.fired.CompareAndSwap(false, true) {
		s.beforeCommit()
	}
	s.commits.Add(1)
	return s.Store.CompareAndCommit(ctx, key, expected, value)
}

// impostor claims another principal's address but signs with its own key.
type impostor struct {
	claims authority.Address
	signer *authority.KeySigner
}

func (i *impostor) Address() authority.Address { return i.claims }

func (i *impostor) Authorize(intent authority.Intent) (authority.Credential, error) {
	cred, err := i.signer.Authorize(intent)
	cred.Principal = i.claims
	return cred, err
}
