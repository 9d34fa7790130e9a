// Package cache keeps recent credential lookups so that repeated holder and
// verifier page loads do not each hit the chain through the backend.
package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/gradtrust/portal/internal/domain/credential"
)

var ErrNotFound = errors.New("cache miss")

// Store holds credential lists keyed by holder address.
type Store interface {
	Find(ctx context.Context, address string) ([]credential.Credential, error)
	Save(ctx context.Context, address string, creds []credential.Credential) error
	Delete(ctx context.Context, address string) error
}

// addresses are case-insensitive on chain
func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
