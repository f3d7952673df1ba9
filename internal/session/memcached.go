package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "session:"

// MemcachedStore implements Store using memcached.
type MemcachedStore struct {
	client *memcache.Client
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int) *MemcachedStore {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func key(id string) string {
	return keyPrefix + id
}

// expiration converts ttl to memcached's relative expiration in seconds.
func expiration(ttl time.Duration) int32 {
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	sec := int32(ttl.Seconds())
	if sec <= 0 || sec > maxRelativeExp {
		sec = maxRelativeExp
	}
	return sec
}

// Get implements Store.Get. Returns false, nil on miss.
func (c *MemcachedStore) Get(ctx context.Context, id string) (*Session, bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	item, err := c.client.Get(key(id))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var s Session
	if err := json.Unmarshal(item.Value, &s); err != nil {
		return nil, false, err
	}
	return &s, true, nil
}

// Set implements Store.Set.
func (c *MemcachedStore) Set(ctx context.Context, s *Session, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        key(s.ID),
		Value:      raw,
		Expiration: expiration(ttl),
	})
}

// Delete implements Store.Delete. A missing key is not an error.
func (c *MemcachedStore) Delete(ctx context.Context, id string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := c.client.Delete(key(id))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedStore) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedStore) Close() error {
	return c.client.Close()
}
