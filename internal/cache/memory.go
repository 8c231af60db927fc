package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient backs Client with github.com/patrickmn/go-cache.
// Single-process only; use the redis driver when running more than
// one instance behind a load balancer. takeMu serializes Take, which
// go-cache cannot do in one step.
type memoryClient struct {
	c      *gocache.Cache
	prefix string
	takeMu sync.Mutex
}

// NewMemory builds an in-process cache. Expired entries are purged
// every minute.
func NewMemory(prefix string) Client {
	return &memoryClient{
		c:      gocache.New(gocache.NoExpiration, time.Minute),
		prefix: prefix,
	}
}

func (m *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.c.Get(prefixed(m.prefix, key))
	if !ok {
		return "", ErrNotFound
	}
	return v.(string), nil
}

func (m *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(prefixed(m.prefix, key), value, ttl)
	return nil
}

func (m *memoryClient) Delete(ctx context.Context, key string) error {
	m.c.Delete(prefixed(m.prefix, key))
	return nil
}

func (m *memoryClient) Take(ctx context.Context, key string) (string, error) {
	m.takeMu.Lock()
	defer m.takeMu.Unlock()
	k := prefixed(m.prefix, key)
	v, ok := m.c.Get(k)
	if !ok {
		return "", ErrNotFound
	}
	m.c.Delete(k)
	return v.(string), nil
}

func (m *memoryClient) Ping(ctx context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}
