package session

import (
	"context"
	"time"

	"github.com/kjstillabower/project-tracker-service/internal/circuitbreaker"
)

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping() error
}

// GuardedStore routes every call to a remote Store through a circuit breaker,
// so an unreachable backend fails fast instead of holding each request for the
// full network timeout.
type GuardedStore struct {
	inner   Store
	breaker *circuitbreaker.Breaker
}

// NewGuardedStore wraps inner with breaker.
func NewGuardedStore(inner Store, breaker *circuitbreaker.Breaker) *GuardedStore {
	return &GuardedStore{inner: inner, breaker: breaker}
}

func (g *GuardedStore) Get(ctx context.Context, id string) (*Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var (
		s  *Session
		ok bool
	)
	err := g.breaker.Call(func() error {
		var err error
		s, ok, err = g.inner.Get(ctx, id)
		return err
	})
	return s, ok, err
}

func (g *GuardedStore) Set(ctx context.Context, s *Session, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.breaker.Call(func() error { return g.inner.Set(ctx, s, ttl) })
}

func (g *GuardedStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.breaker.Call(func() error { return g.inner.Delete(ctx, id) })
}

// Ping reports circuitbreaker.ErrOpen while the circuit is open, otherwise
// the wrapped backend's Ping result. Pings do not move the breaker.
func (g *GuardedStore) Ping() error {
	if g.breaker.State() == circuitbreaker.StateOpen {
		return circuitbreaker.ErrOpen
	}
	if p, ok := g.inner.(Pinger); ok {
		return p.Ping()
	}
	return nil
}
