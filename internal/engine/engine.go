// Package engine is an in-process confidential.Registry. Ciphertexts are
// ML-KEM sealed amounts (see internal/crypto); once imported, values are
// held behind opaque handles with a per-handle access list.
//
// Arithmetic is modulo 2^64, as in the homomorphic schemes it stands in
// for; callers that must not underflow compare first with Ge and Select.
package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vaultsandbox/fundvault/authority"
	"github.com/vaultsandbox/fundvault/confidential"
	"github.com/vaultsandbox/fundvault/internal/crypto"
)

type ciphertext struct {
	value uint64
	acl   map[authority.Address]struct{}
}

// Engine is a reference homomorphic registry.
type Engine struct {
	keys    *crypto.Keypair
	runtime *authority.Runtime
	logger  *zap.Logger

	mu      sync.RWMutex
	handles map[confidential.Handle]*ciphertext
}

var _ confidential.Registry = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithKeypair sets the decryption keypair instead of generating one.
func WithKeypair(kp *crypto.Keypair) Option {
	return func(e *Engine) { e.keys = kp }
}

// New returns an engine that verifies credentials against runtime.
func New(runtime *authority.Runtime, opts ...Option) (*Engine, error) {
	e := &Engine{
		runtime: runtime,
		logger:  zap.NewNop(),
		handles: make(map[confidential.Handle]*ciphertext),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.keys == nil {
		kp, err := crypto.GenerateKeypair()
		if err != nil {
			return nil, fmt.Errorf("engine: generate keypair: %w", err)
		}
		e.keys = kp
	}
	return e, nil
}

// PublicKey returns the key amounts must be sealed to before import.
func (e *Engine) PublicKey() []byte {
	return append([]byte(nil), e.keys.PublicKey...)
}

// Encrypt seals amount so the engine can import it.
func (e *Engine) Encrypt(amount uint64) ([]byte, error) {
	return crypto.SealAmount(e.keys.PublicKey, amount)
}

// Constant implements confidential.Registry.
func (e *Engine) Constant(ctx context.Context, value uint64, owner authority.Credential) (confidential.Handle, error) {
	if err := e.authorize(ctx, owner, confidential.ConstantIntent(value)); err != nil {
		return confidential.Handle{}, err
	}
	return e.put(value, owner.Principal), nil
}

// Import implements confidential.Registry.
func (e *Engine) Import(ctx context.Context, ct []byte, owner authority.Credential) (confidential.Handle, error) {
	if err := e.authorize(ctx, owner, confidential.ImportIntent(ct)); err != nil {
		return confidential.Handle{}, err
	}
	value, err := crypto.OpenAmount(ct, e.keys)
	if err != nil {
		return confidential.Handle{}, fmt.Errorf("%w: %v", confidential.ErrInvalidCiphertext, err)
	}
	return e.put(value, owner.Principal), nil
}

// Add implements confidential.Registry.
func (e *Engine) Add(ctx context.Context, a, b confidential.Handle, owner authority.Credential) (confidential.Handle, error) {
	return e.binary(ctx, confidential.ActionAdd, a, b, owner, func(x, y uint64) uint64 { return x + y })
}

// Sub implements confidential.Registry.
func (e *Engine) Sub(ctx context.Context, a, b confidential.Handle, owner authority.Credential) (confidential.Handle, error) {
	return e.binary(ctx, confidential.ActionSub, a, b, owner, func(x, y uint64) uint64 { return x - y })
}

// Ge returns an encrypted boolean (1 or 0) for a >= b.
func (e *Engine) Ge(ctx context.Context, a, b confidential.Handle, owner authority.Credential) (confidential.Handle, error) {
	return e.binary(ctx, confidential.ActionGe, a, b, owner, func(x, y uint64) uint64 {
		if x >= y {
			return 1
		}
		return 0
	})
}

// Select returns ifTrue when cond is non-zero and ifFalse otherwise.
func (e *Engine) Select(ctx context.Context, cond, ifTrue, ifFalse confidential.Handle, owner authority.Credential) (confidential.Handle, error) {
	if err := e.authorize(ctx, owner, confidential.SelectIntent(cond, ifTrue, ifFalse)); err != nil {
		return confidential.Handle{}, err
	}
	values, err := e.read(owner.Principal, cond, ifTrue, ifFalse)
	if err != nil {
		return confidential.Handle{}, err
	}
	out := values[2]
	if values[0] != 0 {
		out = values[1]
	}
	return e.put(out, owner.Principal), nil
}

// Grant implements confidential.Registry.
func (e *Engine) Grant(ctx context.Context, h confidential.Handle, grantee authority.Address, canRead bool, granter authority.Credential) error {
	if err := e.authorize(ctx, granter, confidential.GrantIntent(h, grantee, canRead)); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.handles[h]
	if !ok {
		return fmt.Errorf("%w: %s", confidential.ErrUnknownHandle, h)
	}
	if _, ok := c.acl[granter.Principal]; !ok {
		return fmt.Errorf("%w: %s may not grant on %s", confidential.ErrAccessDenied, granter.Principal, h)
	}
	if canRead {
		c.acl[grantee] = struct{}{}
	} else {
		delete(c.acl, grantee)
	}
	e.logger.Debug("grant",
		zap.Stringer("handle", h),
		zap.Stringer("grantee", grantee),
		zap.Bool("can_read", canRead))
	return nil
}

// Reveal decrypts h for a principal holding access on it.
func (e *Engine) Reveal(ctx context.Context, h confidential.Handle, reader authority.Credential) (uint64, error) {
	if err := e.authorize(ctx, reader, confidential.RevealIntent(h)); err != nil {
		return 0, err
	}
	values, err := e.read(reader.Principal, h)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// HasAccess reports whether principal holds access on h.
func (e *Engine) HasAccess(h confidential.Handle, principal authority.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.handles[h]
	if !ok {
		return false
	}
	_, ok = c.acl[principal]
	return ok
}

// Decrypt returns the plaintext behind h without any access check. It
// exists for test harnesses and the simulator, which play the part of
// the key holder.
func (e *Engine) Decrypt(h confidential.Handle) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.handles[h]
	if !ok {
		return 0, fmt.Errorf("%w: %s", confidential.ErrUnknownHandle, h)
	}
	return c.value, nil
}

// Len returns the number of live handles.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handles)
}

func (e *Engine) binary(ctx context.Context, action string, a, b confidential.Handle, owner authority.Credential, op func(x, y uint64) uint64) (confidential.Handle, error) {
	if err := e.authorize(ctx, owner, confidential.BinaryIntent(action, a, b)); err != nil {
		return confidential.Handle{}, err
	}
	values, err := e.read(owner.Principal, a, b)
	if err != nil {
		return confidential.Handle{}, err
	}
	return e.put(op(values[0], values[1]), owner.Principal), nil
}

func (e *Engine) authorize(ctx context.Context, cred authority.Credential, intent authority.Intent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.runtime.Verify(cred, intent); err != nil {
		return fmt.Errorf("engine: %s: %w", intent.Action, err)
	}
	return nil
}

func (e *Engine) read(principal authority.Address, handles ...confidential.Handle) ([]uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	values := make([]uint64, len(handles))
	for i, h := range handles {
		c, ok := e.handles[h]
		if !ok {
			return nil, fmt.Errorf("%w: %s", confidential.ErrUnknownHandle, h)
		}
		if _, ok := c.acl[principal]; !ok {
			return nil, fmt.Errorf("%w: %s on %s", confidential.ErrAccessDenied, principal, h)
		}
		values[i] = c.value
	}
	return values, nil
}

func (e *Engine) put(value uint64, owner authority.Address) confidential.Handle {
	h := confidential.NewHandle()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.handles[h] = &ciphertext{
		value: value,
		acl:   map[authority.Address]struct{}{owner: {}},
	}
	return h
}
