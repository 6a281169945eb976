// Package resilience provides a small circuit breaker guarding calls to the
// remote classifier.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker refuses a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State of the breaker.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures breaker behavior.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
}

// Breaker trips after consecutive failures and probes again after a
// cooldown. Unlike a hard dependency, a tripped classifier only degrades
// verdicts to the fallback, so the breaker errs toward probing.
type Breaker struct {
	settings Settings

	mu           sync.Mutex
	state        State
	consecutive  int
	openedAt     time.Time
	probeInFlight bool
}

// New creates a breaker, applying defaults for zero settings.
func New(settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	return &Breaker{settings: settings}
}

// State returns the current state, accounting for cooldown expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// Allow reports whether a call may proceed. In half-open state only one
// probe is admitted at a time.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probeInFlight {
			return ErrCircuitOpen
		}
		b.probeInFlight = true
	}
	return nil
}

// Record reports the outcome of an admitted call.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.currentState()
	b.probeInFlight = false

	if err == nil {
		b.consecutive = 0
		b.state = StateClosed
		return
	}

	b.consecutive++
	if state == StateHalfOpen || b.consecutive >= b.settings.FailureThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
	}
}

func (b *Breaker) currentState() State {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.settings.Cooldown {
		b.state = StateHalfOpen
		b.probeInFlight = false
	}
	return b.state
}
