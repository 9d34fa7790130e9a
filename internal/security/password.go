package security

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt hashes start with "$2a$NN$" followed by the 22 char salt
const saltPrefixLen = 29

var ErrMalformedHash = errors.New("malformed bcrypt hash")

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// AccountSecret is how the backend's accounts table stores a password: both
// the bcrypt salt and the full hash, hex-encoded.
type AccountSecret struct {
	SaltHex     string
	PasshashHex string
}

func NewAccountSecret(plain string) (AccountSecret, error) {
	hash, err := HashPassword(plain)
	if err != nil {
		return AccountSecret{}, err
	}

	if len(hash) < saltPrefixLen {
		return AccountSecret{}, ErrMalformedHash
	}

	return AccountSecret{
		SaltHex:     hex.EncodeToString([]byte(hash[:saltPrefixLen])),
		PasshashHex: hex.EncodeToString([]byte(hash)),
	}, nil
}

// CheckPasswordHex verifies plain against a hex-encoded bcrypt hash.
func CheckPasswordHex(passhashHex, plain string) error {
	raw, err := hex.DecodeString(passhashHex)
	if err != nil {
		return ErrMalformedHash
	}
	return CheckPassword(string(raw), plain)
}
