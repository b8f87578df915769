package httpserver

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/grasdvirus/double-words-sub000/internal/session"
)

const (
	sessionCacheSize = 10000
	sessionIdle      = 30 * time.Minute
)

// sessionCache keeps one loaded session.Store per active player so concurrent
// requests and live rounds share the same state. Players idle for longer than
// the TTL, or pushed out by newer ones, are reloaded from the KV on return.
type sessionCache struct {
	kv session.KV

	mu     sync.Mutex
	stores *expirable.LRU[string, *session.Store]
}

func newSessionCache(kv session.KV, size int, idle time.Duration) *sessionCache {
	return &sessionCache{kv: kv, stores: expirable.NewLRU[string, *session.Store](size, nil, idle)}
}

// Get returns the loaded store of uid.
func (c *sessionCache) Get(ctx context.Context, uid string) (*session.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.stores.Get(uid); ok {
		c.stores.Add(uid, st) // refresh the idle timer
		return st, nil
	}
	st := session.New(c.kv, uid)
	if err := st.Load(ctx); err != nil {
		return nil, err
	}
	c.stores.Add(uid, st)
	return st, nil
}

// Len is the number of cached stores.
func (c *sessionCache) Len() int { return c.stores.Len() }

// Claim moves a guest's progress to an account that has none yet.
func (c *sessionCache) Claim(ctx context.Context, guest, uid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok, err := c.kv.Get(ctx, session.Key(uid)); err != nil || ok {
		return err
	}
	raw, ok, err := c.kv.Get(ctx, session.Key(guest))
	if err != nil || !ok {
		return err
	}
	if err := c.kv.Set(ctx, session.Key(uid), raw); err != nil {
		return err
	}
	c.stores.Remove(uid)
	c.stores.Remove(guest)
	return c.kv.Clear(ctx, session.Key(guest))
}
