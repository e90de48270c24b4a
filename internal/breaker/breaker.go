// Package breaker implements the circuit-breaker state machine and the
// confirmation wrapper that gates order confirmation on it: CLOSED lets
// everything through, OPEN blocks production flow (with a narrow
// high-frequency exemption), and HALF_OPEN lets traffic through but
// demands one extra tier of scrutiny while the system proves itself
// recovered.
package breaker

import (
	"sync"
	"time"
)

// State is one of the breaker's three states.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Config tunes trip/recovery behavior.
type Config struct {
	// FailureThreshold is how many Trigger() calls within TriggerWindow
	// flip the breaker from CLOSED to OPEN.
	FailureThreshold int
	TriggerWindow    time.Duration
	// OpenDuration is how long the breaker stays OPEN before probing
	// HALF_OPEN.
	OpenDuration time.Duration
	// HalfOpenSuccessesToClose is how many consecutive successful
	// confirmations while HALF_OPEN are needed to fully close again.
	HalfOpenSuccessesToClose int
}

// DefaultConfig mirrors the reference implementation's defaults.
var DefaultConfig = Config{
	FailureThreshold:         3,
	TriggerWindow:            5 * time.Minute,
	OpenDuration:             60 * time.Second,
	HalfOpenSuccessesToClose: 3,
}

// Breaker is a thread-safe circuit-breaker state machine. It is triggered
// externally (GuardedManager calls Trigger for every confirmation that is
// not APPROVED) and consulted before every confirmation attempt.
type Breaker struct {
	mu sync.Mutex
	cfg Config

	state          State
	failures       []time.Time
	openedAt       time.Time
	halfOpenOK     int
}

// New creates a breaker starting CLOSED.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: StateClosed}
}

// State returns the current state, first resolving an expired OPEN
// window into HALF_OPEN as a side effect (lazy transition, no background
// timer needed).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolveLocked()
	return b.state
}

func (b *Breaker) resolveLocked() {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.OpenDuration {
		b.state = StateHalfOpen
		b.halfOpenOK = 0
	}
}

// Trigger records a failure (a confirmation that was not APPROVED, as
// wired by GuardedManager). Enough failures within TriggerWindow trip the breaker
// OPEN. A failure while HALF_OPEN re-opens it immediately.
func (b *Breaker) Trigger(now time.Time) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolveLocked()

	if b.state == StateHalfOpen {
		b.open(now)
		return b.state
	}

	cutoff := now.Add(-b.cfg.TriggerWindow)
	kept := b.failures[:0]
	for _, f := range b.failures {
		if f.After(cutoff) {
			kept = append(kept, f)
		}
	}
	kept = append(kept, now)
	b.failures = kept

	if b.state == StateClosed && len(b.failures) >= b.cfg.FailureThreshold {
		b.open(now)
	}
	return b.state
}

func (b *Breaker) open(now time.Time) {
	b.state = StateOpen
	b.openedAt = now
	b.failures = nil
	b.halfOpenOK = 0
}

// RecordSuccess tells the breaker a confirmation completed normally.
// While HALF_OPEN, enough consecutive successes fully close the breaker;
// a success while CLOSED or OPEN is a no-op.
func (b *Breaker) RecordSuccess() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolveLocked()
	if b.state != StateHalfOpen {
		return b.state
	}
	b.halfOpenOK++
	if b.halfOpenOK >= b.cfg.HalfOpenSuccessesToClose {
		b.state = StateClosed
		b.failures = nil
		b.halfOpenOK = 0
	}
	return b.state
}

// Reset forces the breaker back to CLOSED, clearing all history. Intended
// for operator intervention, not normal traffic flow.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = nil
	b.halfOpenOK = 0
}
