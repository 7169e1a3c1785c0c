// Package retry paces repeated attempts.  A Backoff spaces the
// session's reconnects and retries SSH tunnel establishment; a Breaker
// stops dialing a gateway that keeps failing.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// PermanentError marks a failure that another attempt cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so [Backoff.Do] returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was wrapped with [Permanent].
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Backoff grows a delay geometrically from Initial up to Max.
type Backoff struct {
	Initial time.Duration // first delay (default 1s)
	Max     time.Duration // cap (default 60s)
	Factor  float64       // growth per attempt (default 2)

	// Attempts bounds Do, counting the first try.  Zero retries until
	// the context ends.
	Attempts int

	// Jitter spreads Do's waits by ±25%.  Delay is never jittered.
	Jitter bool
}

// Constant never grows: every delay is d.
func Constant(d time.Duration) *Backoff {
	return &Backoff{Initial: d, Max: d, Factor: 1}
}

// Exponential doubles from initial up to ceiling.
func Exponential(initial, ceiling time.Duration) *Backoff {
	return &Backoff{Initial: initial, Max: ceiling, Factor: 2}
}

// ForTunnel is the policy for bringing up an SSH gateway: attempts
// tries, one second apart at first, jittered.
func ForTunnel(attempts int) *Backoff {
	return &Backoff{
		Initial:  time.Second,
		Max:      30 * time.Second,
		Factor:   2,
		Attempts: attempts,
		Jitter:   true,
	}
}

func (b *Backoff) limits() (lo, hi time.Duration, factor float64) {
	lo, hi, factor = b.Initial, b.Max, b.Factor
	if lo <= 0 {
		lo = time.Second
	}
	if hi <= 0 {
		hi = 60 * time.Second
	}
	if factor <= 0 {
		factor = 2
	}
	return lo, hi, factor
}

// Delay is the wait after the n-th consecutive failure (1-based).
func (b *Backoff) Delay(n int) time.Duration {
	lo, hi, factor := b.limits()
	if n < 1 {
		n = 1
	}
	d := float64(lo) * math.Pow(factor, float64(n-1))
	if d >= float64(hi) {
		return hi
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, returns a [Permanent] error, runs out
// of attempts, or ctx ends.  fn receives the 1-based attempt number.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}
		if b.Attempts > 0 && attempt >= b.Attempts {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		wait := b.Delay(attempt)
		if b.Jitter {
			wait = jitter(wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-t.C:
		}
	}
}

func jitter(d time.Duration) time.Duration {
	spread := (rand.Float64()*0.5 - 0.25) * float64(d)
	return max(d+time.Duration(spread), time.Millisecond)
}
