// Package traffic keeps sliding windows of operation outcomes. The file store
// records every read and write here and the health handler derives the storage
// error rate from it; the login rate limiter records its denials.
package traffic

import (
	"sync"
	"time"
)

// DefaultRetention bounds how long outcomes are kept when New is given zero.
const DefaultRetention = 5 * time.Minute

// Tracker maintains sliding windows of outcome timestamps. Safe for concurrent use.
type Tracker struct {
	mu           sync.Mutex
	retention    time.Duration
	now          func() time.Time
	successTimes []time.Time
	errorTimes   []time.Time
	deniedTimes  []time.Time
}

// New returns a Tracker that forgets outcomes older than retention.
func New(retention time.Duration) *Tracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Tracker{retention: retention, now: time.Now}
}

// RecordSuccess records a successful operation.
func (t *Tracker) RecordSuccess() {
	t.recordOutcome(func(t *Tracker) *[]time.Time { return &t.successTimes })
}

// RecordError records a failed operation.
func (t *Tracker) RecordError() {
	t.recordOutcome(func(t *Tracker) *[]time.Time { return &t.errorTimes })
}

// RecordDenied records a rate-limit denial (429).
func (t *Tracker) RecordDenied() {
	t.recordOutcome(func(t *Tracker) *[]time.Time { return &t.deniedTimes })
}

// Record records success when err is nil and an error otherwise.
func (t *Tracker) Record(err error) {
	if err != nil {
		t.RecordError()
		return
	}
	t.RecordSuccess()
}

// recordOutcome appends now to the window chosen by field. A nil tracker is a no-op.
func (t *Tracker) recordOutcome(field func(*Tracker) *[]time.Time) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	slice := field(t)
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// DenialCount returns the number of rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.deniedTimes, t.now().Add(-window))
}

// ErrorRate returns (errorCount, totalCount) within the window.
// totalCount includes successes and errors only; denials are excluded.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	if t == nil {
		return 0, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errCount := countInWindow(t.errorTimes, cutoff)
	successCount := countInWindow(t.successTimes, cutoff)
	return errCount, errCount + successCount
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
	t.deniedTimes = nil
}

func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than the retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
	prune(&t.deniedTimes)
}
