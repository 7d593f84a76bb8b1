package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/vaultsandbox/fundvault"
	"github.com/vaultsandbox/fundvault/authority"
	"github.com/vaultsandbox/fundvault/confidential"
)

// Scenario is a scripted simulation.
//
//	mint: usd
//	participants:
//	  - {name: alice}
//	  - {name: bob, funds: 500}
//	steps:
//	  - {op: initialize, actor: alice, vault: fund}
//	  - op: deposit
//	    actor: bob
//	    vault: fund
//	    amount: 100
//	    grants: [{scope: vault-total, grantee: alice}]
//	  - {op: reveal, actor: alice, vault: fund, target: total}
type Scenario struct {
	// Mint names the asset. The issuer participant is its authority.
	Mint         string        `yaml:"mint"`
	Issuer       string        `yaml:"issuer"`
	Participants []Participant `yaml:"participants"`
	Steps        []Step        `yaml:"steps"`
}

// Participant is a key holder with an account for the scenario mint.
type Participant struct {
	Name  string `yaml:"name"`
	Funds uint64 `yaml:"funds"`
}

// Step is one operation.
type Step struct {
	Op    string `yaml:"op"`
	Actor string `yaml:"actor"`
	Vault string `yaml:"vault"`

	// Salt is used by initialize.
	Salt string `yaml:"salt,omitempty"`

	// Amount is used by deposit and withdraw.
	Amount uint64 `yaml:"amount,omitempty"`

	// Destination names the participant whose account receives a
	// withdrawal. Defaults to the actor.
	Destination string `yaml:"destination,omitempty"`

	// Target selects what reveal decrypts: total, vault-account or
	// account (the actor's own balance).
	Target string `yaml:"target,omitempty"`

	Grants []StepGrant `yaml:"grants,omitempty"`

	// Expect names the error the step must fail with, e.g. owner_mismatch.
	Expect string `yaml:"expect,omitempty"`
}

// StepGrant requests read access for a participant.
type StepGrant struct {
	Scope   string `yaml:"scope"`
	Grantee string `yaml:"grantee"`
}

var expectations = map[string]error{
	"already_in_use":        fundvault.ErrAlreadyInUse,
	"owner_mismatch":        fundvault.ErrOwnerMismatch,
	"invalid_mint":          fundvault.ErrInvalidMint,
	"mint_mismatch":         fundvault.ErrMintMismatch,
	"uninitialized":         fundvault.ErrUninitializedState,
	"overflow":              fundvault.ErrOverflow,
	"invalid_state":         fundvault.ErrInvalidState,
	"invalid_destination":   fundvault.ErrInvalidDestination,
	"invalid_grant_request": fundvault.ErrInvalidGrantRequest,
	"collaborator":          fundvault.ErrCollaborator,
	"grant_failed":          fundvault.ErrGrantFailed,
	"access_denied":         confidential.ErrAccessDenied,
	"insufficient_funds":    confidential.ErrInsufficientFunds,
}

var scopes = map[string]fundvault.Scope{
	fundvault.ScopeTransactingAccount.String(): fundvault.ScopeTransactingAccount,
	fundvault.ScopeVaultAccount.String():       fundvault.ScopeVaultAccount,
	fundvault.ScopeVaultTotal.String():         fundvault.ScopeVaultTotal,
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario. Unknown fields are
// rejected so typos do not silently change a step.
func ParseScenario(data []byte) (*Scenario, error) {
	sc := &Scenario{Mint: "usd", Issuer: "issuer"}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *Scenario) validate() error {
	names := map[string]bool{sc.Issuer: true}
	for _, p := range sc.Participants {
		if p.Name == "" {
			return errors.New("participant without name")
		}
		if names[p.Name] {
			return fmt.Errorf("participant %q declared twice", p.Name)
		}
		names[p.Name] = true
	}
	for i, st := range sc.Steps {
		if err := st.validate(names); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func (st Step) validate(names map[string]bool) error {
	switch st.Op {
	case "initialize", "deposit", "withdraw", "finalize", "reveal":
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	if !names[st.Actor] {
		return fmt.Errorf("unknown actor %q", st.Actor)
	}
	if st.Vault == "" {
		return errors.New("vault name required")
	}
	if st.Destination != "" && !names[st.Destination] {
		return fmt.Errorf("unknown destination %q", st.Destination)
	}
	if st.Op == "reveal" {
		switch st.Target {
		case "total", "vault-account", "account":
		default:
			return fmt.Errorf("unknown reveal target %q", st.Target)
		}
	}
	for _, g := range st.Grants {
		if _, ok := scopes[g.Scope]; !ok {
			return fmt.Errorf("unknown grant scope %q", g.Scope)
		}
		if !names[g.Grantee] {
			return fmt.Errorf("unknown grantee %q", g.Grantee)
		}
	}
	if st.Expect != "" {
		if _, ok := expectations[st.Expect]; !ok {
			return fmt.Errorf("unknown expected error %q", st.Expect)
		}
	}
	return nil
}

// simulation is the state of a running scenario.
type simulation struct {
	env      *environment
	out      io.Writer
	mint     authority.Address
	signers  map[string]*authority.KeySigner
	accounts map[string]authority.Address
	vaults   map[string]authority.Address
}

// Execute runs the scenario and writes one line per step to out.
func (sc *Scenario) Execute(ctx context.Context, env *environment, out io.Writer) error {
	sim := &simulation{
		env:      env,
		out:      out,
		signers:  make(map[string]*authority.KeySigner),
		accounts: make(map[string]authority.Address),
		vaults:   make(map[string]authority.Address),
	}
	if err := sim.setup(ctx, sc); err != nil {
		return err
	}
	for _, name := range sc.participantNames() {
		fmt.Fprintf(out, "participant %s: %s\n", name, sim.signers[name].Address())
	}
	for i, st := range sc.Steps {
		err := sim.step(ctx, st)
		if st.Expect != "" {
			if !errors.Is(err, expectations[st.Expect]) {
				return fmt.Errorf("step %d (%s): expected %s, got %v", i+1, st.Op, st.Expect, err)
			}
			fmt.Fprintf(out, "%s %s by %s: failed as expected: %v\n", st.Op, st.Vault, st.Actor, err)
			continue
		}
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
	}
	return nil
}

func (sim *simulation) setup(ctx context.Context, sc *Scenario) error {
	issuer, err := signerFor(sc.Issuer)
	if err != nil {
		return err
	}
	sim.signers[sc.Issuer] = issuer
	if sim.mint, err = sim.env.ledger.CreateMint(ctx, issuer.Address(), sc.Mint); err != nil {
		return fmt.Errorf("create mint %s: %w", sc.Mint, err)
	}

	// Issuer first so that it can be an actor as well.
	participants := append([]Participant{{Name: sc.Issuer}}, sc.Participants...)
	for _, p := range participants {
		s, err := signerFor(p.Name)
		if err != nil {
			return err
		}
		sim.signers[p.Name] = s
		acct, err := sim.env.ledger.OpenAccount(ctx, s, sim.mint)
		if err != nil {
			return fmt.Errorf("open account for %s: %w", p.Name, err)
		}
		sim.accounts[p.Name] = acct
		if p.Funds == 0 {
			continue
		}
		ct, err := sim.env.engine.Encrypt(p.Funds)
		if err != nil {
			return err
		}
		cred, err := issuer.Authorize(confidential.MintToIntent(sim.mint, acct, ct))
		if err != nil {
			return err
		}
		if err := sim.env.ledger.MintTo(ctx, acct, ct, cred); err != nil {
			return fmt.Errorf("fund %s: %w", p.Name, err)
		}
	}
	return nil
}

func (sim *simulation) step(ctx context.Context, st Step) error {
	actor := sim.signers[st.Actor]
	mgr := sim.env.manager

	if st.Op == "initialize" {
		var opts []fundvault.InitOption
		if st.Salt != "" {
			opts = append(opts, fundvault.WithSalt([]byte(st.Salt)))
		}
		v, err := mgr.Initialize(ctx, actor, sim.mint, opts...)
		if err != nil {
			return err
		}
		sim.vaults[st.Vault] = v.Address
		fmt.Fprintf(sim.out, "initialize %s by %s: vault=%s account=%s\n", st.Vault, st.Actor, v.Address, v.VaultAccount)
		return nil
	}

	addr, ok := sim.vaults[st.Vault]
	if !ok {
		return fmt.Errorf("%w: %s was never initialized", fundvault.ErrUninitializedState, st.Vault)
	}

	switch st.Op {
	case "deposit":
		ct, err := sim.env.engine.Encrypt(st.Amount)
		if err != nil {
			return err
		}
		v, err := mgr.Deposit(ctx, addr, actor, sim.accounts[st.Actor], ct, fundvault.WithGrants(sim.grants(st)...))
		if err != nil {
			return err
		}
		fmt.Fprintf(sim.out, "deposit %s by %s: contributors=%d version=%d\n", st.Vault, st.Actor, v.ContributorCount, v.Version)
	case "withdraw":
		dest := st.Destination
		if dest == "" {
			dest = st.Actor
		}
		ct, err := sim.env.engine.Encrypt(st.Amount)
		if err != nil {
			return err
		}
		v, err := mgr.Withdraw(ctx, addr, actor, sim.accounts[dest], ct, fundvault.WithGrants(sim.grants(st)...))
		if err != nil {
			return err
		}
		fmt.Fprintf(sim.out, "withdraw %s by %s to %s: version=%d\n", st.Vault, st.Actor, dest, v.Version)
	case "finalize":
		v, err := mgr.Finalize(ctx, addr, actor)
		if err != nil {
			return err
		}
		fmt.Fprintf(sim.out, "finalize %s by %s: contributors=%d\n", st.Vault, st.Actor, v.ContributorCount)
	case "reveal":
		value, err := sim.reveal(ctx, addr, st)
		if err != nil {
			return err
		}
		fmt.Fprintf(sim.out, "reveal %s %s by %s: %d\n", st.Vault, st.Target, st.Actor, value)
	}
	return nil
}

func (sim *simulation) reveal(ctx context.Context, addr authority.Address, st Step) (uint64, error) {
	v, err := sim.env.manager.Vault(ctx, addr)
	if err != nil {
		return 0, err
	}
	var h confidential.Handle
	switch st.Target {
	case "total":
		h = v.EncryptedTotal
	case "vault-account":
		acct, err := sim.env.ledger.Account(ctx, v.VaultAccount)
		if err != nil {
			return 0, err
		}
		h = acct.Balance
	case "account":
		acct, err := sim.env.ledger.Account(ctx, sim.accounts[st.Actor])
		if err != nil {
			return 0, err
		}
		h = acct.Balance
	}
	return sim.env.reveal(ctx, h, sim.signers[st.Actor])
}

func (sim *simulation) grants(st Step) []fundvault.GrantRequest {
	requests := make([]fundvault.GrantRequest, 0, len(st.Grants))
	for _, g := range st.Grants {
		requests = append(requests, fundvault.GrantRequest{
			Scope:   scopes[g.Scope],
			Grantee: sim.signers[g.Grantee].Address(),
		})
	}
	return requests
}

// participantNames returns the scenario's names in a stable order.
func (sc *Scenario) participantNames() []string {
	names := []string{sc.Issuer}
	for _, p := range sc.Participants {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
