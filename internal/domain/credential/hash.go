package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Hash binds a document to its issuer: "0x" + hex(SHA-256(document || entropy)).
// The entropy is the issuer-specific secret handed out by the backend, so the
// same PDF hashes differently per issuer.
func Hash(document io.Reader, entropy string) (string, error) {
	if entropy == "" {
		return "", ErrMissingEntropy
	}

	h := sha256.New()

	n, err := io.Copy(h, document)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrEmptyDocument
	}

	if _, err := io.WriteString(h, entropy); err != nil {
		return "", err
	}

	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}
