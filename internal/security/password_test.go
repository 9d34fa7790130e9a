package security

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestAccountSecret_RoundTrip(t *testing.T) {
	secret, err := NewAccountSecret("hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := CheckPasswordHex(secret.PasshashHex, "hunter2"); err != nil {
		t.Fatalf("expected password to match: %v", err)
	}
	if err := CheckPasswordHex(secret.PasshashHex, "wrong"); err == nil {
		t.Fatalf("expected mismatch")
	}
}

func TestAccountSecret_SaltIsHashPrefix(t *testing.T) {
	secret, err := NewAccountSecret("pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	salt, _ := hex.DecodeString(secret.SaltHex)
	hash, _ := hex.DecodeString(secret.PasshashHex)

	if len(salt) != 29 || !strings.HasPrefix(string(hash), string(salt)) {
		t.Fatalf("salt %q is not the prefix of %q", salt, hash)
	}
	if !strings.HasPrefix(string(salt), "$2a$") {
		t.Fatalf("unexpected bcrypt prefix %q", salt)
	}
}

func TestCheckPasswordHex_Malformed(t *testing.T) {
	if err := CheckPasswordHex("zz", "pw"); err != ErrMalformedHash {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}
