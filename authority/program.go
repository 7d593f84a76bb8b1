package authority

import (
	"crypto/rand"
	"fmt"

	"github.com/vaultsandbox/fundvault/internal/codec"
)

// Program is the capability to act for addresses derived under one
// program id. It is handed out once by Runtime.Register and cannot be
// reconstructed from public data.
type Program struct {
	id   ProgramID
	name string
	key  domainKey
}

// ID returns the program id.
func (p *Program) ID() ProgramID { return p.id }

// Name returns the name the program was registered under.
func (p *Program) Name() string { return p.name }

// Authority derives the authority for seeds under this program.
func (p *Program) Authority(seeds ...[]byte) (*Authority, error) {
	addr, err := Derive(p.id, seeds...)
	if err != nil {
		return nil, err
	}
	return &Authority{
		program: p,
		seeds:   cloneSeeds(seeds),
		address: addr,
	}, nil
}

func (p *Program) tag(proof DerivationProof, intent Intent) ([]byte, error) {
	encodedProof, err := codec.Marshal(proof)
	if err != nil {
		return nil, fmt.Errorf("authority: encode proof: %w", err)
	}
	msg, err := intent.Bytes()
	if err != nil {
		return nil, fmt.Errorf("authority: encode intent: %w", err)
	}
	sum := keyedHash(p.key, encodedProof, msg)
	return sum[:], nil
}

func newProgram(name string) (*Program, error) {
	p := &Program{id: ProgramIDFromName(name), name: name}
	if _, err := rand.Read(p.key[:]); err != nil {
		return nil, fmt.Errorf("authority: program key: %w", err)
	}
	return p, nil
}
