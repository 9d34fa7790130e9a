package cache

import (
	"context"
	"sync"
	"time"

	"github.com/gradtrust/portal/internal/domain/credential"
)

type Memory struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
	now func() time.Time
}

type entry struct {
	creds []credential.Credential
	exp   time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &Memory{
		ttl: ttl,
		m:   make(map[string]entry),
		now: time.Now,
	}
}

func (c *Memory) Find(_ context.Context, address string) ([]credential.Credential, error) {
	key := normalize(address)
	now := c.now()

	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	if now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, ErrNotFound
	}

	out := make([]credential.Credential, len(e.creds))
	copy(out, e.creds)
	return out, nil
}

func (c *Memory) Save(_ context.Context, address string, creds []credential.Credential) error {
	stored := make([]credential.Credential, len(creds))
	copy(stored, creds)

	c.mu.Lock()
	c.m[normalize(address)] = entry{creds: stored, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *Memory) Delete(_ context.Context, address string) error {
	c.mu.Lock()
	delete(c.m, normalize(address))
	c.mu.Unlock()
	return nil
}

func (c *Memory) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry)
	c.mu.Unlock()
}
