// Package circuitbreaker stops calls to a failing backend for a cool-down
// period and lets a few probes through before trusting it again.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Call while the circuit is open.
var ErrOpen = errors.New("circuit breaker open")

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// State is the breaker state. Its integer value is exported as a gauge.
type State int

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds breaker parameters. Zero values select the defaults
// (5 failures, 2 successes, 30s).
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	OnStateChange    func(from, to State)
	Now              func() time.Time
}

// Breaker opens after FailureThreshold consecutive failures, rejects calls for
// Timeout, then closes again after SuccessThreshold successful probes.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	cfg       Config
}

// New returns a closed Breaker.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg}
}

// Call runs fn unless the circuit is open. An error from fn counts as a failure.
func (b *Breaker) Call(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	if b.state != StateOpen {
		b.mu.Unlock()
		return nil
	}
	if b.cfg.Now().Sub(b.openedAt) < b.cfg.Timeout {
		b.mu.Unlock()
		return ErrOpen
	}
	b.successes = 0
	notify := b.setLocked(StateHalfOpen)
	b.mu.Unlock()
	notify()
	return nil
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	notify := func() {}
	if ok {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				b.successes = 0
				notify = b.setLocked(StateClosed)
			}
		}
	} else {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
			b.failures = 0
			b.openedAt = b.cfg.Now()
			notify = b.setLocked(StateOpen)
		}
	}
	b.mu.Unlock()
	notify()
}

// setLocked changes state and returns the callback to run after unlocking.
func (b *Breaker) setLocked(to State) func() {
	from := b.state
	b.state = to
	if from == to || b.cfg.OnStateChange == nil {
		return func() {}
	}
	return func() { b.cfg.OnStateChange(from, to) }
}

// State returns the current state. An open breaker whose timeout elapsed
// still reports open until the next call probes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
