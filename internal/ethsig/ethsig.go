// Package ethsig validates wallet addresses and checks personal-sign (EIP-191)
// signatures produced by the browser wallet before they are sent to the backend.
package ethsig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressLength is the textual length of a 0x-prefixed address.
const AddressLength = 42

var (
	ErrInvalidAddress   = errors.New("invalid ethereum address")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrSignerMismatch   = errors.New("signature does not match address")
)

// IsAddress reports whether s is a 0x-prefixed, 40 hex digit address.
func IsAddress(s string) bool {
	return len(s) == AddressLength && strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// Checksum returns the EIP-55 form of addr.
func Checksum(addr string) (string, error) {
	if !IsAddress(addr) {
		return "", ErrInvalidAddress
	}
	return common.HexToAddress(addr).Hex(), nil
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// MerkleRootMessage is the text each admin signs to approve a root update.
func MerkleRootMessage(root string) string {
	return "Update Merkle Root: " + root
}

// IssuerRegistrationMessage is the text an issuer signs when registering.
func IssuerRegistrationMessage(address, name string) string {
	return address + "," + name
}

// RecoverSigner returns the address that produced sig over the personal-sign
// hash of message.
func RecoverSigner(message, sig string) (string, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(sig))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(raw) != crypto.SignatureLength {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(raw))
	}

	// wallets emit V as 27/28
	if raw[crypto.RecoveryIDOffset] >= 27 {
		raw[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// VerifySigner checks that sig over message was produced by address.
func VerifySigner(address, message, sig string) error {
	if !IsAddress(address) {
		return ErrInvalidAddress
	}

	signer, err := RecoverSigner(message, sig)
	if err != nil {
		return err
	}

	if !SameAddress(signer, address) {
		return ErrSignerMismatch
	}
	return nil
}
