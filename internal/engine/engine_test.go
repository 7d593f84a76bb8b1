package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/vaultsandbox/fundvault/authority"
	"github.com/vaultsandbox/fundvault/confidential"
)

type fixture struct {
	engine *Engine
	alice  *authority.KeySigner
	bob    *authority.KeySigner
	vault  *authority.Authority
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rt := authority.NewRuntime()
	program, err := rt.Register("fundvault")
	if err != nil {
		t.Fatal(err)
	}
	vault, err := program.Authority([]byte("vault"))
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(rt)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	alice, err := authority.GenerateKeySigner()
	if err != nil {
		t.Fatal(err)
	}
	bob, err := authority.GenerateKeySigner()
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{engine: e, alice: alice, bob: bob, vault: vault}
}

func authorize(t *testing.T, a authority.Authorizer, intent authority.Intent) authority.Credential {
	t.Helper()
	cred, err := a.Authorize(intent)
	if err != nil {
		t.Fatalf("Authorize(%s) error = %v", intent.Action, err)
	}
	return cred
}

func (f *fixture) importAmount(t *testing.T, owner authority.Authorizer, amount uint64) confidential.Handle {
	t.Helper()
	ct, err := f.engine.Encrypt(amount)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	h, err := f.engine.Import(context.Background(), ct, authorize(t, owner, confidential.ImportIntent(ct)))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	return h
}

func TestEngine_Arithmetic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.importAmount(t, f.vault, 100)
	b := f.importAmount(t, f.vault, 40)

	sum, err := f.engine.Add(ctx, a, b, authorize(t, f.vault, confidential.BinaryIntent(confidential.ActionAdd, a, b)))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	diff, err := f.engine.Sub(ctx, a, b, authorize(t, f.vault, confidential.BinaryIntent(confidential.ActionSub, a, b)))
	if err != nil {
		t.Fatalf("Sub() error = %v", err)
	}
	ge, err := f.engine.Ge(ctx, b, a, authorize(t, f.vault, confidential.BinaryIntent(confidential.ActionGe, b, a)))
	if err != nil {
		t.Fatalf("Ge() error = %v", err)
	}
	sel, err := f.engine.Select(ctx, ge, a, b, authorize(t, f.vault, confidential.SelectIntent(ge, a, b)))
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	tests := []struct {
		name string
		h    confidential.Handle
		want uint64
	}{
		{"add", sum, 140},
		{"sub", diff, 60},
		{"ge false", ge, 0},
		{"select false branch", sel, 40},
	}
	for _, tt := range tests {
		got, err := f.engine.Decrypt(tt.h)
		if err != nil {
			t.Fatalf("%s: Decrypt() error = %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}

	if sum == a || diff == a {
		t.Error("combining returned an input handle")
	}
}

func TestEngine_SubWraps(t *testing.T) {
	f := newFixture(t)
	a := f.importAmount(t, f.vault, 1)
	b := f.importAmount(t, f.vault, 2)

	h, err := f.engine.Sub(context.Background(), a, b, authorize(t, f.vault, confidential.BinaryIntent(confidential.ActionSub, a, b)))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := f.engine.Decrypt(h); got != ^uint64(0) {
		t.Errorf("1-2 = %d, want %d", got, ^uint64(0))
	}
}

func TestEngine_AccessControl(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	mine := f.importAmount(t, f.alice, 5)
	theirs := f.importAmount(t, f.vault, 7)

	if _, err := f.engine.Add(ctx, mine, theirs, authorize(t, f.alice, confidential.BinaryIntent(confidential.ActionAdd, mine, theirs))); !errors.Is(err, confidential.ErrAccessDenied) {
		t.Errorf("Add() without access error = %v, want ErrAccessDenied", err)
	}

	if _, err := f.engine.Reveal(ctx, theirs, authorize(t, f.alice, confidential.RevealIntent(theirs))); !errors.Is(err, confidential.ErrAccessDenied) {
		t.Errorf("Reveal() without access error = %v, want ErrAccessDenied", err)
	}

	// Only a holder may grant.
	err := f.engine.Grant(ctx, theirs, f.bob.Address(), true, authorize(t, f.alice, confidential.GrantIntent(theirs, f.bob.Address(), true)))
	if !errors.Is(err, confidential.ErrAccessDenied) {
		t.Errorf("Grant() by non-holder error = %v, want ErrAccessDenied", err)
	}

	err = f.engine.Grant(ctx, theirs, f.alice.Address(), true, authorize(t, f.vault, confidential.GrantIntent(theirs, f.alice.Address(), true)))
	if err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	got, err := f.engine.Reveal(ctx, theirs, authorize(t, f.alice, confidential.RevealIntent(theirs)))
	if err != nil {
		t.Fatalf("Reveal() after grant error = %v", err)
	}
	if got != 7 {
		t.Errorf("Reveal() = %d, want 7", got)
	}

	err = f.engine.Grant(ctx, theirs, f.alice.Address(), false, authorize(t, f.vault, confidential.GrantIntent(theirs, f.alice.Address(), false)))
	if err != nil {
		t.Fatalf("revoke Grant() error = %v", err)
	}
	if f.engine.HasAccess(theirs, f.alice.Address()) {
		t.Error("HasAccess() = true after revoke")
	}
}

func TestEngine_RejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := f.importAmount(t, f.vault, 1)

	// A credential over a different intent does not authorize this call.
	cred := authorize(t, f.alice, confidential.RevealIntent(h))
	if _, err := f.engine.Constant(ctx, 0, cred); !errors.Is(err, authority.ErrUnauthorized) {
		t.Errorf("Constant() error = %v, want ErrUnauthorized", err)
	}

	// A derivation proof minted by another runtime is rejected.
	other, _ := authority.NewRuntime().Register("fundvault")
	impostor, _ := other.Authority([]byte("vault"))
	grant := confidential.GrantIntent(h, f.alice.Address(), true)
	if err := f.engine.Grant(ctx, h, f.alice.Address(), true, authorize(t, impostor, grant)); !errors.Is(err, authority.ErrUnauthorized) {
		t.Errorf("Grant() with foreign proof error = %v, want ErrUnauthorized", err)
	}
}

func TestEngine_ImportRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	ct := []byte("not a ciphertext")
	_, err := f.engine.Import(context.Background(), ct, authorize(t, f.alice, confidential.ImportIntent(ct)))
	if !errors.Is(err, confidential.ErrInvalidCiphertext) {
		t.Errorf("Import() error = %v, want ErrInvalidCiphertext", err)
	}
}

func TestEngine_UnknownHandle(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Decrypt(confidential.NewHandle()); !errors.Is(err, confidential.ErrUnknownHandle) {
		t.Errorf("Decrypt() error = %v, want ErrUnknownHandle", err)
	}
}

func TestEngine_CanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.engine.Constant(ctx, 0, authorize(t, f.vault, confidential.ConstantIntent(0))); !errors.Is(err, context.Canceled) {
		t.Errorf("Constant() error = %v, want context.Canceled", err)
	}
}
