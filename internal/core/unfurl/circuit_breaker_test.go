package unfurl

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move the breaker through its open window without sleeping
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker() (*circuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	cb := newCircuitBreaker(nil, 0)
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreaker_Basic(t *testing.T) {
	cb, _ := newTestBreaker()
	host := "example.com"

	// Should start closed (allow attempts)
	canAttempt, err := cb.canAttempt(host)
	assert.True(t, canAttempt)
	assert.NoError(t, err)

	cb.recordSuccess(host)
	canAttempt, _ = cb.canAttempt(host)
	assert.True(t, canAttempt, "circuit should remain closed after success")
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb, _ := newTestBreaker()
	host := "failing.example"

	for i := 0; i < cb.failureThreshold; i++ {
		cb.recordFailure(host, fmt.Errorf("test error %d", i))
	}

	canAttempt, err := cb.canAttempt(host)
	assert.False(t, canAttempt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Contains(t, err.Error(), host)
}

func TestCircuitBreaker_FailureThresholdExact(t *testing.T) {
	cb, _ := newTestBreaker()
	host := "exact.example"

	for i := 0; i < cb.failureThreshold-1; i++ {
		cb.recordFailure(host, fmt.Errorf("error %d", i))
	}

	canAttempt, err := cb.canAttempt(host)
	assert.True(t, canAttempt, "circuit should be closed below threshold: %v", err)

	cb.recordFailure(host, fmt.Errorf("final error"))

	canAttempt, _ = cb.canAttempt(host)
	assert.False(t, canAttempt, "circuit should be open at threshold")
}

func TestCircuitBreaker_RecoveryAfterSuccess(t *testing.T) {
	cb, _ := newTestBreaker()
	host := "recovery.example"

	cb.recordFailure(host, fmt.Errorf("error 1"))
	cb.recordFailure(host, fmt.Errorf("error 2"))
	cb.recordSuccess(host)

	canAttempt, err := cb.canAttempt(host)
	assert.True(t, canAttempt, "circuit should be closed after success: %v", err)
	assert.Zero(t, cb.tracked(), "healthy hosts leave no state behind")

	// The failure count starts over
	cb.recordFailure(host, fmt.Errorf("error 3"))
	cb.recordFailure(host, fmt.Errorf("error 4"))
	canAttempt, _ = cb.canAttempt(host)
	assert.True(t, canAttempt)
}

func TestCircuitBreaker_HalfOpenTransition(t *testing.T) {
	cb, clock := newTestBreaker()
	host := "half-open.example"

	for i := 0; i < cb.failureThreshold; i++ {
		cb.recordFailure(host, fmt.Errorf("error %d", i))
	}

	canAttempt, _ := cb.canAttempt(host)
	require.False(t, canAttempt)

	clock.advance(cb.openDuration + time.Second)

	canAttempt, err := cb.canAttempt(host)
	assert.True(t, canAttempt, "circuit should go half-open after the open window: %v", err)
	assert.Equal(t, stateHalfOpen, cb.getState(host))
}

func TestCircuitBreaker_FailedTrialReopens(t *testing.T) {
	cb, clock := newTestBreaker()
	host := "flaky.example"

	for i := 0; i < cb.failureThreshold; i++ {
		cb.recordFailure(host, fmt.Errorf("error %d", i))
	}
	clock.advance(cb.openDuration + time.Second)

	canAttempt, _ := cb.canAttempt(host)
	require.True(t, canAttempt)

	cb.recordFailure(host, fmt.Errorf("trial fetch failed"))

	assert.Equal(t, stateOpen, cb.getState(host))
	canAttempt, _ = cb.canAttempt(host)
	assert.False(t, canAttempt)
}

func TestCircuitBreaker_SuccessfulTrialCloses(t *testing.T) {
	cb, clock := newTestBreaker()
	host := "back.example"

	for i := 0; i < cb.failureThreshold; i++ {
		cb.recordFailure(host, fmt.Errorf("error %d", i))
	}
	clock.advance(cb.openDuration + time.Second)

	canAttempt, _ := cb.canAttempt(host)
	require.True(t, canAttempt)

	cb.recordSuccess(host)

	assert.Equal(t, stateClosed, cb.getState(host))
	assert.Zero(t, cb.tracked())
}

func TestCircuitBreaker_HalfOpenAllowsOneTrial(t *testing.T) {
	cb, clock := newTestBreaker()
	host := "single-trial.example"

	for i := 0; i < cb.failureThreshold; i++ {
		cb.recordFailure(host, fmt.Errorf("error %d", i))
	}
	clock.advance(cb.openDuration + time.Second)

	canAttempt, _ := cb.canAttempt(host)
	require.True(t, canAttempt, "first caller after the open window is let through")

	canAttempt, err := cb.canAttempt(host)
	assert.False(t, canAttempt, "a second caller must wait for the trial fetch")
	assert.True(t, errors.Is(err, ErrCircuitOpen))

	// A trial that never reports back is replaced after another window
	clock.advance(cb.openDuration + time.Second)
	canAttempt, _ = cb.canAttempt(host)
	assert.True(t, canAttempt)
}

func TestCircuitBreaker_SuccessfulHostsAreNotTracked(t *testing.T) {
	cb, _ := newTestBreaker()

	for i := 0; i < 1000; i++ {
		host := fmt.Sprintf("healthy-%d.example", i)
		ok, _ := cb.canAttempt(host)
		require.True(t, ok)
		cb.recordSuccess(host)
	}

	assert.Zero(t, cb.tracked())
}

func TestCircuitBreaker_FailingHostsStayBounded(t *testing.T) {
	const limit = 100
	cb := newCircuitBreaker(nil, limit)

	for i := 0; i < limit*20; i++ {
		cb.recordFailure(fmt.Sprintf("junk-%d.example", i), fmt.Errorf("no such host"))
	}

	assert.Equal(t, limit, cb.tracked())

	// The most recent failures are the ones remembered
	for i := 0; i < cb.failureThreshold-1; i++ {
		cb.recordFailure("junk-1999.example", fmt.Errorf("no such host"))
	}
	assert.Equal(t, stateOpen, cb.getState("junk-1999.example"))
	assert.Equal(t, stateClosed, cb.getState("junk-0.example"))
}

func TestCircuitBreaker_IndependentHosts(t *testing.T) {
	cb, _ := newTestBreaker()

	for i := 0; i < cb.failureThreshold; i++ {
		cb.recordFailure("a.example", fmt.Errorf("error"))
	}

	canAttemptA, _ := cb.canAttempt("a.example")
	assert.False(t, canAttemptA)

	canAttemptB, err := cb.canAttempt("b.example")
	assert.True(t, canAttemptB, "b.example should be unaffected: %v", err)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "CLOSED (recovered)", stateClosed.String())
	assert.Equal(t, "OPEN (failing)", stateOpen.String())
	assert.Equal(t, "HALF-OPEN (testing)", stateHalfOpen.String())
}
