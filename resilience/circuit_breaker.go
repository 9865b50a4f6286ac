package resilience

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vertice-labs/agentcore/core"
)

// CircuitState is one of the three states a CircuitBreaker can be in.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
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

// CircuitBreakerConfig configures a CircuitBreaker per spec §4.1.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int           // consecutive/windowed failures that open the circuit
	SuccessThreshold int           // consecutive half-open successes that close it
	OpenTimeout      time.Duration // time in OPEN before a probe is allowed
	WindowSeconds    int           // width of the rolling failure window

	Logger  core.Logger
	Metrics MetricsCollector
}

// MetricsCollector receives circuit breaker lifecycle events.
type MetricsCollector interface {
	RecordSuccess(name string)
	RecordFailure(name string)
	RecordStateChange(name string, from, to CircuitState)
	RecordRejection(name string)
}

type noopMetrics struct{}

func (noopMetrics) RecordSuccess(string)                       {}
func (noopMetrics) RecordFailure(string)                       {}
func (noopMetrics) RecordStateChange(string, CircuitState, CircuitState) {}
func (noopMetrics) RecordRejection(string)                     {}

// DefaultCircuitBreakerConfig returns sane production defaults.
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		WindowSeconds:    60,
		Logger:           &core.NoOpLogger{},
		Metrics:          noopMetrics{},
	}
}

func (c *CircuitBreakerConfig) applyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = 60
	}
	if c.Logger == nil {
		c.Logger = &core.NoOpLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = noopMetrics{}
	}
}

// Stats mirrors the spec's §3 CircuitStats record.
type Stats struct {
	Failures             int64
	Successes            int64
	ConsecutiveFailures   int64
	ConsecutiveSuccesses  int64
	LastFailureAt         time.Time
	LastSuccessAt         time.Time
	StateEnteredAt        time.Time
	Total                 int64
	Blocked               int64
}

const failureWindowCapacity = 100

// CircuitBreaker is a three-state (closed/open/half-open) gate protecting a
// single downstream. One instance per provider name; created lazily and
// shared by every concurrent caller.
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	mu    sync.Mutex // guards state transitions and the failure window
	state CircuitState

	stateEnteredAt atomic.Value // time.Time
	lastFailureAt  atomic.Value // time.Time
	lastSuccessAt  atomic.Value // time.Time

	failures             atomic.Int64
	successes            atomic.Int64
	consecutiveFailures  atomic.Int64
	consecutiveSuccesses atomic.Int64
	total                atomic.Int64
	blocked              atomic.Int64

	failureWindow []time.Time // bounded ring, guarded by mu

	halfOpenInFlight atomic.Bool // at most one probe in flight at a time

	listeners []func(name string, from, to CircuitState)
}

// NewCircuitBreaker constructs a circuit breaker. A nil config uses
// DefaultCircuitBreakerConfig("unnamed").
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig("unnamed")
	}
	config.applyDefaults()

	cb := &CircuitBreaker{
		config:        config,
		state:         StateClosed,
		failureWindow: make([]time.Time, 0, failureWindowCapacity),
	}
	now := time.Now()
	cb.stateEnteredAt.Store(now)
	cb.lastFailureAt.Store(time.Time{})
	cb.lastSuccessAt.Store(time.Time{})
	return cb
}

// OnStateChange registers a listener invoked synchronously on every
// transition. Intended for tests and metrics wiring, not hot-path logic.
func (cb *CircuitBreaker) OnStateChange(fn func(name string, from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listeners = append(cb.listeners, fn)
}

// Execute runs fn under circuit protection. It returns a *core.CircuitOpenError
// (wrapping core.ErrCircuitBreakerOpen) without calling fn when the circuit
// is open, or fails fast if a half-open probe is already in flight.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	probing, err := cb.admit()
	if err != nil {
		cb.blocked.Add(1)
		cb.config.Metrics.RecordRejection(cb.config.Name)
		return err
	}

	cb.total.Add(1)

	runErr := cb.runProtected(ctx, fn)

	if probing {
		cb.halfOpenInFlight.Store(false)
	}

	if runErr != nil {
		cb.recordFailure(probing)
		return runErr
	}
	cb.recordSuccess(probing)
	return nil
}

func (cb *CircuitBreaker) runProtected(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			cb.config.Logger.Error("circuit breaker caught panic", map[string]interface{}{
				"name":  cb.config.Name,
				"panic": fmt.Sprintf("%v", r),
				"stack": string(stack),
			})
			err = fmt.Errorf("panic recovered in circuit %q: %v", cb.config.Name, r)
		}
	}()
	return fn(ctx)
}

// admit decides whether a call may proceed, transitioning OPEN→HALF_OPEN
// when the sleep window has elapsed. Returns probing=true if this call is
// the single admitted half-open probe.
func (cb *CircuitBreaker) admit() (probing bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		enteredAt := cb.stateEnteredAt.Load().(time.Time)
		if time.Since(enteredAt) < cb.config.OpenTimeout {
			return false, &core.CircuitOpenError{
				Name:          cb.config.Name,
				ResetEstimate: enteredAt.Add(cb.config.OpenTimeout),
			}
		}
		// Timeout elapsed: allow exactly one probe through by entering HALF_OPEN.
		cb.transitionLocked(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if !cb.halfOpenInFlight.CompareAndSwap(false, true) {
			return false, &core.CircuitOpenError{
				Name:          cb.config.Name,
				ResetEstimate: time.Now().Add(cb.config.OpenTimeout),
			}
		}
		return true, nil
	default:
		return false, nil
	}
}

func (cb *CircuitBreaker) recordSuccess(wasProbe bool) {
	now := time.Now()
	cb.successes.Add(1)
	cb.consecutiveSuccesses.Add(1)
	cb.consecutiveFailures.Store(0)
	cb.lastSuccessAt.Store(now)
	cb.config.Metrics.RecordSuccess(cb.config.Name)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		if cb.consecutiveSuccesses.Load() >= int64(cb.config.SuccessThreshold) {
			cb.resetCountersLocked()
			cb.transitionLocked(StateClosed)
		}
	case StateOpen:
		// A success arriving concurrently with a forced transition; ignore.
	}
}

func (cb *CircuitBreaker) recordFailure(wasProbe bool) {
	now := time.Now()
	cb.failures.Add(1)
	cb.consecutiveFailures.Add(1)
	cb.consecutiveSuccesses.Store(0)
	cb.lastFailureAt.Store(now)
	cb.config.Metrics.RecordFailure(cb.config.Name)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.pushFailureLocked(now)

	switch cb.state {
	case StateHalfOpen:
		cb.transitionLocked(StateOpen)
	case StateClosed:
		if cb.windowedFailureCountLocked(now) >= cb.config.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	}
}

// pushFailureLocked appends a failure timestamp to the bounded window,
// dropping the oldest entry once capacity 100 is reached.
func (cb *CircuitBreaker) pushFailureLocked(t time.Time) {
	if len(cb.failureWindow) >= failureWindowCapacity {
		cb.failureWindow = cb.failureWindow[1:]
	}
	cb.failureWindow = append(cb.failureWindow, t)
}

func (cb *CircuitBreaker) windowedFailureCountLocked(now time.Time) int {
	cutoff := now.Add(-time.Duration(cb.config.WindowSeconds) * time.Second)
	count := 0
	for _, t := range cb.failureWindow {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

func (cb *CircuitBreaker) resetCountersLocked() {
	cb.consecutiveFailures.Store(0)
	cb.consecutiveSuccesses.Store(0)
	cb.failureWindow = cb.failureWindow[:0]
}

func (cb *CircuitBreaker) transitionLocked(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.stateEnteredAt.Store(time.Now())
	cb.config.Metrics.RecordStateChange(cb.config.Name, from, to)
	cb.config.Logger.Info("circuit breaker state change", map[string]interface{}{
		"name": cb.config.Name,
		"from": from.String(),
		"to":   to.String(),
	})
	for _, fn := range cb.listeners {
		fn(cb.config.Name, from, to)
	}
}

// State returns the current state. Safe for concurrent use; the caller
// should not use it for correctness decisions, only for reporting.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the circuit back to CLOSED and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.resetCountersLocked()
	cb.failures.Store(0)
	cb.successes.Store(0)
	cb.total.Store(0)
	cb.blocked.Store(0)
	cb.transitionLocked(StateClosed)
}

// StatsSnapshot returns a point-in-time copy of the breaker's counters.
func (cb *CircuitBreaker) StatsSnapshot() Stats {
	return Stats{
		Failures:             cb.failures.Load(),
		Successes:            cb.successes.Load(),
		ConsecutiveFailures:  cb.consecutiveFailures.Load(),
		ConsecutiveSuccesses: cb.consecutiveSuccesses.Load(),
		LastFailureAt:        cb.lastFailureAt.Load().(time.Time),
		LastSuccessAt:        cb.lastSuccessAt.Load().(time.Time),
		StateEnteredAt:       cb.stateEnteredAt.Load().(time.Time),
		Total:                cb.total.Load(),
		Blocked:              cb.blocked.Load(),
	}
}
