package authority

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"github.com/vaultsandbox/fundvault/internal/crypto"
)

var (
	// ErrUnauthorized is returned when a credential does not prove its principal.
	ErrUnauthorized = errors.New("authority: unauthorized")

	// ErrInvalidCredential is returned for malformed credentials.
	ErrInvalidCredential = errors.New("authority: invalid credential")

	// ErrUntrustedProgram is returned when a derivation proof names a
	// program the runtime does not host.
	ErrUntrustedProgram = errors.New("authority: untrusted program")

	// ErrProgramExists is returned when registering a name twice.
	ErrProgramExists = errors.New("authority: program already registered")
)

// Runtime hosts programs and verifies credentials. A derivation proof is
// accepted only when it was produced by the registered program it names.
type Runtime struct {
	mu       sync.RWMutex
	programs map[ProgramID]*Program
}

// NewRuntime returns a runtime with no programs.
func NewRuntime() *Runtime {
	return &Runtime{programs: make(map[ProgramID]*Program)}
}

// Register hosts a new program under name and returns its capability.
func (r *Runtime) Register(name string) (*Program, error) {
	p, err := newProgram(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.programs[p.id]; ok {
		return nil, fmt.Errorf("%w: %q", ErrProgramExists, name)
	}
	r.programs[p.id] = p
	return p, nil
}

// Hosts reports whether program is registered.
func (r *Runtime) Hosts(program ProgramID) bool {
	_, ok := r.program(program)
	return ok
}

func (r *Runtime) program(id ProgramID) (*Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[id]
	return p, ok
}

// Verify checks that cred proves its principal consented to intent.
func (r *Runtime) Verify(cred Credential, intent Intent) error {
	switch cred.Kind {
	case KindSignature:
		if len(cred.PublicKey) == 0 || len(cred.Signature) == 0 {
			return fmt.Errorf("%w: signature credential without key or signature", ErrInvalidCredential)
		}
		if cred.Proof != nil {
			return fmt.Errorf("%w: signature credential carries a derivation proof", ErrInvalidCredential)
		}
		if AddressFromPublicKey(cred.PublicKey) != cred.Principal {
			return fmt.Errorf("%w: key does not match principal %s", ErrUnauthorized, cred.Principal)
		}
		msg, err := intent.Bytes()
		if err != nil {
			return fmt.Errorf("%w: encode intent: %v", ErrInvalidCredential, err)
		}
		if err := crypto.Verify(cred.PublicKey, msg, cred.Signature); err != nil {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil

	case KindDerivation:
		if cred.Proof == nil {
			return fmt.Errorf("%w: derivation credential without proof", ErrInvalidCredential)
		}
		if len(cred.PublicKey) != 0 {
			return fmt.Errorf("%w: derivation credential carries a public key", ErrInvalidCredential)
		}
		p, ok := r.program(cred.Proof.Program)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUntrustedProgram, cred.Proof.Program)
		}
		addr, err := cred.Proof.Address()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
		}
		if addr != cred.Principal {
			return fmt.Errorf("%w: proof derives %s, not %s", ErrUnauthorized, addr, cred.Principal)
		}
		want, err := p.tag(*cred.Proof, intent)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
		}
		if subtle.ConstantTimeCompare(want, cred.Signature) != 1 {
			return fmt.Errorf("%w: proof not issued by program %q", ErrUnauthorized, p.name)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidCredential, cred.Kind)
	}
}

// VerifyPrincipal is Verify plus a check that cred speaks for principal.
func (r *Runtime) VerifyPrincipal(cred Credential, intent Intent, principal Address) error {
	if cred.Principal != principal {
		return fmt.Errorf("%w: credential for %s, need %s", ErrUnauthorized, cred.Principal, principal)
	}
	return r.Verify(cred, intent)
}
