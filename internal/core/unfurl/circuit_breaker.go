package unfurl

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// defaultMaxTrackedHosts bounds how many failing hosts the breaker remembers.
// Hosts are user supplied, so the least recently failing ones are forgotten
// first.
const defaultMaxTrackedHosts = 10000

// circuitState represents the state of a circuit breaker
type circuitState int

const (
	stateClosed   circuitState = iota // Normal operation
	stateOpen                         // Host is failing, fetches are skipped
	stateHalfOpen                     // One trial fetch is in flight
)

func (s circuitState) String() string {
	switch s {
	case stateOpen:
		return "OPEN (failing)"
	case stateHalfOpen:
		return "HALF-OPEN (testing)"
	default:
		return "CLOSED (recovered)"
	}
}

// hostCircuit is the breaker state of one failing host. Healthy hosts have
// no entry.
type hostCircuit struct {
	lastFailure  time.Time
	trialStarted time.Time
	lastStateLog time.Time
	failures     int
	state        circuitState
}

// circuitBreaker tracks consecutive fetch failures per host and stops
// fetching from hosts that keep failing
type circuitBreaker struct {
	hosts            *lru.Cache[string, *hostCircuit]
	logger           *zap.Logger
	now              func() time.Time
	failureThreshold int
	openDuration     time.Duration
	mu               sync.Mutex
}

// newCircuitBreaker creates a circuit breaker with default settings that
// tracks at most maxHosts failing hosts
func newCircuitBreaker(logger *zap.Logger, maxHosts int) *circuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxHosts <= 0 {
		maxHosts = defaultMaxTrackedHosts
	}
	// lru.New only fails for a non-positive size
	hosts, _ := lru.New[string, *hostCircuit](maxHosts)

	return &circuitBreaker{
		hosts:            hosts,
		failureThreshold: 3,               // Open after 3 consecutive failures
		openDuration:     5 * time.Minute, // Keep open for 5 minutes
		logger:           logger,
		now:              time.Now,
	}
}

// canAttempt checks if we should fetch from this host.
// Once the open window has passed, exactly one caller is let through as a
// trial; others are refused until that trial records its outcome.
func (cb *circuitBreaker) canAttempt(host string) (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	hc, ok := cb.hosts.Peek(host)
	if !ok {
		return true, nil
	}

	now := cb.now()
	switch hc.state {
	case stateOpen:
		if now.Sub(hc.lastFailure) > cb.openDuration {
			hc.state = stateHalfOpen
			hc.trialStarted = now
			cb.logStateChange(host, hc)
			return true, nil
		}
		return false, cb.openError(host, hc, hc.lastFailure.Add(cb.openDuration))
	case stateHalfOpen:
		// A trial that never reported back does not block the host forever
		if now.Sub(hc.trialStarted) > cb.openDuration {
			hc.trialStarted = now
			return true, nil
		}
		return false, cb.openError(host, hc, hc.trialStarted.Add(cb.openDuration))
	default:
		return true, nil
	}
}

// recordSuccess forgets the host entirely
func (cb *circuitBreaker) recordSuccess(host string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	hc, ok := cb.hosts.Peek(host)
	if !ok {
		return
	}
	cb.hosts.Remove(host)

	if hc.state != stateClosed {
		cb.logger.Info("[UNFURL-CIRCUIT] circuit state changed",
			zap.String("host", host),
			zap.Stringer("state", stateClosed),
		)
	}
}

// recordFailure records a failed fetch
func (cb *circuitBreaker) recordFailure(host string, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	hc, ok := cb.hosts.Get(host)
	if !ok {
		hc = &hostCircuit{}
		cb.hosts.Add(host, hc)
	}

	hc.failures++
	hc.lastFailure = cb.now()

	// A failed half-open trial reopens immediately
	if hc.failures >= cb.failureThreshold || hc.state == stateHalfOpen {
		oldState := hc.state
		hc.state = stateOpen
		if oldState != stateOpen {
			cb.logger.Warn("[UNFURL-CIRCUIT] opening circuit",
				zap.String("host", host),
				zap.Int("failures", hc.failures),
				zap.Error(err),
			)
			hc.lastStateLog = cb.now()
		}
		return
	}

	cb.logger.Debug("[UNFURL-CIRCUIT] fetch failure",
		zap.String("host", host),
		zap.Int("failures", hc.failures),
		zap.Int("threshold", cb.failureThreshold),
		zap.Error(err),
	)
}

// getState returns the current state of a host
func (cb *circuitBreaker) getState(host string) circuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if hc, ok := cb.hosts.Peek(host); ok {
		return hc.state
	}
	return stateClosed
}

// tracked returns how many hosts currently have breaker state
func (cb *circuitBreaker) tracked() int {
	return cb.hosts.Len()
}

func (cb *circuitBreaker) openError(host string, hc *hostCircuit, nextRetry time.Time) error {
	return fmt.Errorf("%w for host '%s' (failures: %d, next retry: %s)",
		ErrCircuitOpen,
		host,
		hc.failures,
		nextRetry.Format("15:04:05"),
	)
}

// logStateChange logs state transitions (must be called with lock held).
// Debounced to once per minute per host.
func (cb *circuitBreaker) logStateChange(host string, hc *hostCircuit) {
	if !hc.lastStateLog.IsZero() && cb.now().Sub(hc.lastStateLog) < time.Minute {
		return
	}

	cb.logger.Info("[UNFURL-CIRCUIT] circuit state changed",
		zap.String("host", host),
		zap.Stringer("state", hc.state),
	)
	hc.lastStateLog = cb.now()
}
