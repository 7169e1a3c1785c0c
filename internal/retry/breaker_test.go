package retry

import (
	"errors"
	"testing"
	"time"

	ncerr "fahstat/internal/errors"
)

// fakeClock is advanced by hand so cooldowns need no sleeps.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newBreaker(threshold int) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	return &Breaker{Threshold: threshold, Cooldown: 10 * time.Second, Now: clock.Now}, clock
}

var errGateway = errors.New("gateway unreachable")

func fail() error    { return errGateway }
func succeed() error { return nil }

func TestBreaker_ZeroValue(t *testing.T) {
	var b Breaker
	if err := b.Call(succeed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b, _ := newBreaker(2)

	if err := b.Call(fail); err != errGateway {
		t.Fatalf("err = %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("one failure should not open, state = %s", b.State())
	}
	b.Call(fail) //nolint:errcheck
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}

	called := false
	err := b.Call(func() error { called = true; return nil })
	if !ncerr.Is(err, ncerr.ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn must not run while open")
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newBreaker(3)
	b.Call(fail)    //nolint:errcheck
	b.Call(fail)    //nolint:errcheck
	b.Call(succeed) //nolint:errcheck
	b.Call(fail)    //nolint:errcheck
	if b.Failures() != 1 || b.State() != StateClosed {
		t.Errorf("failures = %d, state = %s", b.Failures(), b.State())
	}
}

func TestBreaker_ProbeRecovers(t *testing.T) {
	b, clock := newBreaker(1)
	b.Call(fail) //nolint:errcheck

	clock.Advance(9 * time.Second)
	if err := b.Call(succeed); !ncerr.Is(err, ncerr.ErrCircuitOpen) {
		t.Fatalf("still cooling down, err = %v", err)
	}

	clock.Advance(time.Second)
	if err := b.Call(succeed); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != StateClosed || b.Failures() != 0 {
		t.Errorf("state = %s, failures = %d", b.State(), b.Failures())
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b, clock := newBreaker(5)
	for i := 0; i < 5; i++ {
		b.Call(fail) //nolint:errcheck
	}
	clock.Advance(10 * time.Second)

	if err := b.Call(fail); err != errGateway {
		t.Fatalf("probe should run, err = %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}
	if err := b.Call(succeed); !ncerr.Is(err, ncerr.ErrCircuitOpen) {
		t.Errorf("cooldown restarts after a failed probe, err = %v", err)
	}
}

func TestBreaker_SingleProbe(t *testing.T) {
	b, clock := newBreaker(1)
	b.Call(fail) //nolint:errcheck
	clock.Advance(10 * time.Second)

	err := b.Call(func() error {
		if inner := b.Call(succeed); !ncerr.Is(inner, ncerr.ErrCircuitOpen) {
			t.Errorf("second caller during probe: %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBreaker_OnChange(t *testing.T) {
	b, clock := newBreaker(1)
	var got []string
	b.OnChange = func(from, to State) { got = append(got, from.String()+">"+to.String()) }

	b.Call(fail) //nolint:errcheck
	clock.Advance(10 * time.Second)
	b.Call(succeed) //nolint:errcheck

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
