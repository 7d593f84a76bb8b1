package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestSigningKeypair_SignVerify(t *testing.T) {
	kp, err := GenerateSigningKeypair()
	if err != nil {
		t.Fatalf("GenerateSigningKeypair() error = %v", err)
	}
	if len(kp.PublicKey) != MLDSAPublicKeySize {
		t.Errorf("public key length = %d, want %d", len(kp.PublicKey), MLDSAPublicKeySize)
	}

	msg := []byte("vault.withdraw")
	sig, err := kp.Sign(msg)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if len(sig) != MLDSASignatureSize {
		t.Errorf("signature length = %d, want %d", len(sig), MLDSASignatureSize)
	}

	if err := Verify(kp.PublicKey, msg, sig); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestVerify_Rejects(t *testing.T) {
	kp, err := GenerateSigningKeypair()
	if err != nil {
		t.Fatal(err)
	}
	other, err := GenerateSigningKeypair()
	if err != nil {
		t.Fatal(err)
	}

	msg := []byte("vault.deposit")
	sig, err := kp.Sign(msg)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		pub  []byte
		msg  []byte
		sig  []byte
		want error
	}{
		{"other message", kp.PublicKey, []byte("vault.withdraw"), sig, ErrSignatureVerificationFailed},
		{"other key", other.PublicKey, msg, sig, ErrSignatureVerificationFailed},
		{"truncated signature", kp.PublicKey, msg, sig[:100], ErrSignatureVerificationFailed},
		{"short key", kp.PublicKey[:10], msg, sig, ErrInvalidPublicKeySize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.pub, tt.msg, tt.sig)
			if !errors.Is(err, tt.want) {
				t.Errorf("Verify() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSigningKeypairFromSeed_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, MLDSASeedSize)

	a, err := SigningKeypairFromSeed(seed)
	if err != nil {
		t.Fatalf("SigningKeypairFromSeed() error = %v", err)
	}
	b, err := SigningKeypairFromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.PublicKey, b.PublicKey) {
		t.Error("same seed produced different public keys")
	}

	if _, err := SigningKeypairFromSeed(seed[:5]); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestDecodeBase64_Variants(t *testing.T) {
	want := []byte{0xfb, 0xff, 0x3f, 0xff, 0x01}
	for _, s := range []string{
		ToBase64URL(want),
		"-_8__wE=",
		"+/8//wE",
		"+/8//wE=",
	} {
		got, err := DecodeBase64(s)
		if err != nil {
			t.Errorf("DecodeBase64(%q) error = %v", s, err)
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("DecodeBase64(%q) = %x, want %x", s, got, want)
		}
	}

	if _, err := DecodeBase64("!!!"); err == nil {
		t.Error("DecodeBase64() accepted invalid input")
	}
}
