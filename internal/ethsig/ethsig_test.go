package ethsig

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// personalSign mimics what a browser wallet returns for personal_sign.
func personalSign(t *testing.T, message string) (address, sig string) {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	raw, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw[crypto.RecoveryIDOffset] += 27

	return crypto.PubkeyToAddress(key.PublicKey).Hex(), hexutil.Encode(raw)
}

func TestIsAddress(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0x9dbe33e61ca2f65118fbcaf182ac2cdd2cab4a42", true},
		{"0x31B39c6F5E83FC03B7dd5A98047A3C75fD1dE487", true},
		{"9dbe33e61ca2f65118fbcaf182ac2cdd2cab4a42", false},
		{"0x9dbe33e61ca2f65118fbcaf182ac2cdd2cab4a4", false},
		{"0xZZbe33e61ca2f65118fbcaf182ac2cdd2cab4a42", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsAddress(tt.in); got != tt.want {
			t.Fatalf("IsAddress(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestChecksum(t *testing.T) {
	addr, _ := personalSign(t, "checksum")

	got, err := Checksum(strings.ToLower(addr))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != addr {
		t.Fatalf("checksum mismatch: got %s want %s", got, addr)
	}

	if _, err := Checksum("nope"); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestVerifySigner_MerkleRootMessage(t *testing.T) {
	msg := MerkleRootMessage("0x" + strings.Repeat("ab", 32))
	addr, sig := personalSign(t, msg)

	if err := VerifySigner(strings.ToLower(addr), msg, sig); err != nil {
		t.Fatalf("expected signature to verify, got %v", err)
	}
}

func TestVerifySigner_WrongMessage(t *testing.T) {
	addr, sig := personalSign(t, IssuerRegistrationMessage("0xabc", "Uni"))

	err := VerifySigner(addr, IssuerRegistrationMessage("0xabc", "Other Uni"), sig)
	if !errors.Is(err, ErrSignerMismatch) {
		t.Fatalf("expected ErrSignerMismatch, got %v", err)
	}
}

func TestVerifySigner_MalformedSignature(t *testing.T) {
	addr, _ := personalSign(t, "x")

	for _, sig := range []string{"", "0x1234", "not-hex"} {
		if err := VerifySigner(addr, "x", sig); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("sig %q: expected ErrInvalidSignature, got %v", sig, err)
		}
	}
}

func TestMessages(t *testing.T) {
	if got := MerkleRootMessage("0x01"); got != "Update Merkle Root: 0x01" {
		t.Fatalf("unexpected merkle message %q", got)
	}
	if got := IssuerRegistrationMessage("0xabc", "Uni"); got != "0xabc,Uni" {
		t.Fatalf("unexpected issuer message %q", got)
	}
}
