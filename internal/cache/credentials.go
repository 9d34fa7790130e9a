package cache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gradtrust/portal/internal/domain/credential"
)

// Loader fetches the authoritative credential list.
type Loader interface {
	PullCredentials(ctx context.Context, holderAddress string) ([]credential.Credential, error)
}

// Recorder counts hits and misses. result is "hit", "miss" or "error".
type Recorder interface {
	CacheResult(result string)
}

// Credentials is a read-through cache in front of the backend lookup. A broken
// store never fails the lookup, it only costs a backend round trip.
type Credentials struct {
	store    Store
	loader   Loader
	recorder Recorder
	log      *slog.Logger
}

func NewCredentials(store Store, loader Loader, recorder Recorder, log *slog.Logger) *Credentials {
	if log == nil {
		log = slog.Default()
	}
	return &Credentials{
		store:    store,
		loader:   loader,
		recorder: recorder,
		log:      log,
	}
}

func (c *Credentials) Lookup(ctx context.Context, holderAddress string) ([]credential.Credential, error) {
	creds, err := c.store.Find(ctx, holderAddress)
	switch {
	case err == nil:
		c.record("hit")
		return creds, nil
	case errors.Is(err, ErrNotFound):
		c.record("miss")
	default:
		c.record("error")
		c.log.WarnContext(ctx, "credential_cache_find_failed",
			"address", holderAddress,
			"err", err,
		)
	}

	creds, err = c.loader.PullCredentials(ctx, holderAddress)
	if err != nil {
		return nil, err
	}

	if err := c.store.Save(ctx, holderAddress, creds); err != nil {
		c.log.WarnContext(ctx, "credential_cache_save_failed",
			"address", holderAddress,
			"err", err,
		)
	}
	return creds, nil
}

// Invalidate drops the cached list after a new credential is issued.
func (c *Credentials) Invalidate(ctx context.Context, holderAddress string) {
	if err := c.store.Delete(ctx, holderAddress); err != nil {
		c.log.WarnContext(ctx, "credential_cache_delete_failed",
			"address", holderAddress,
			"err", err,
		)
	}
}

func (c *Credentials) record(result string) {
	if c.recorder != nil {
		c.recorder.CacheResult(result)
	}
}
