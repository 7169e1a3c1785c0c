package retry

import (
	"fmt"
	"sync"
	"time"

	ncerr "fahstat/internal/errors"
)

// State is a Breaker's position.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls are rejected until the cooldown ends
	StateHalfOpen              // a single probe call is in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker rejects calls after Threshold consecutive failures.  Once
// Cooldown has passed it lets one probe through: success closes the
// circuit, failure opens it for another Cooldown.  The zero value is
// ready to use.
type Breaker struct {
	Threshold int           // default 3
	Cooldown  time.Duration // default 30s

	// OnChange observes transitions.  It runs with the lock held.
	OnChange func(from, to State)
	// Now overrides the clock.
	Now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

func (b *Breaker) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Breaker) threshold() int {
	if b.Threshold > 0 {
		return b.Threshold
	}
	return 3
}

func (b *Breaker) cooldown() time.Duration {
	if b.Cooldown > 0 {
		return b.Cooldown
	}
	return 30 * time.Second
}

// Call runs fn unless the circuit is open.  A rejected call returns an
// error wrapping [ncerr.ErrCircuitOpen] without invoking fn.
func (b *Breaker) Call(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		left := b.cooldown() - b.now().Sub(b.openedAt)
		if left > 0 {
			return fmt.Errorf("%w after %d failures, next probe in %v",
				ncerr.ErrCircuitOpen, b.failures, left.Round(time.Second))
		}
		b.move(StateHalfOpen)
	case StateHalfOpen:
		return fmt.Errorf("%w: probe in flight", ncerr.ErrCircuitOpen)
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.move(StateClosed)
		return
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold() {
		b.openedAt = b.now()
		b.move(StateOpen)
	}
}

func (b *Breaker) move(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.OnChange != nil {
		b.OnChange(from, to)
	}
}
