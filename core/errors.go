package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for comparison using errors.Is().
// These identify the error taxonomy the resilience and routing layers key
// their decisions on: retry, circuit, fallback and the router all classify
// against these rather than inspecting provider-specific error strings.
var (
	// ErrCircuitBreakerOpen is returned when a circuit breaker fails fast.
	// Some call sites historically spelled this CircuitOpenError; both name
	// the same condition and should be compared with errors.Is.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded is returned when the retry budget is exhausted.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// ErrAllProvidersExhausted is returned by the router when every eligible
	// provider in the priority list has been tried and failed.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")

	// ErrNoEligibleProviders is returned when the priority list has no
	// provider whose credentials are present and whose circuit is closed.
	ErrNoEligibleProviders = errors.New("no eligible providers")

	// ErrCancelled marks a caller-requested abort of an in-flight operation.
	ErrCancelled = errors.New("operation cancelled")

	// ErrRateLimitDeadlineExceeded is returned when Acquire's context
	// expires before tokens become available.
	ErrRateLimitDeadlineExceeded = errors.New("rate limiter deadline exceeded")

	// ErrInvalidConfiguration marks a construction-time configuration error.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrCacheMiss is the generic miss sentinel; callers that need the
	// specific reason should inspect a *CacheMissError via errors.As.
	ErrCacheMiss = errors.New("cache miss")

	// ErrRouteNotFound is returned when executeViaMesh is called for a
	// taskId with no prior routeTask call.
	ErrRouteNotFound = errors.New("no route found for task")
)

// ErrorKind enumerates the error taxonomy of §7: each is a classification
// outcome, not a concrete Go type, so a single FrameworkError can carry any
// of them and every layer (retry, circuit, fallback, router) switches on
// Kind rather than on string matching.
type ErrorKind string

const (
	KindTransient   ErrorKind = "transient"
	KindPermanent   ErrorKind = "permanent"
	KindRateLimit   ErrorKind = "rate_limit"
	KindCircuitOpen ErrorKind = "circuit_open"
	KindExhausted   ErrorKind = "all_providers_exhausted"
	KindCancelled   ErrorKind = "cancelled"
	KindUnknown     ErrorKind = "unknown"
)

// FrameworkError is a structured, wrapped error carrying the classification
// the resilience layer needs plus enough context for logging.
type FrameworkError struct {
	Op         string    // operation that failed, e.g. "router.StreamChat"
	Kind       ErrorKind // classification driving retry/circuit behavior
	Provider   string    // provider name involved, if any
	Message    string
	RetryAfter time.Duration // server-suggested delay, for KindRateLimit
	Err        error
}

func (e *FrameworkError) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		if e.Provider != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.Provider, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s error", e.Kind)
	}
}

func (e *FrameworkError) Unwrap() error { return e.Err }

// NewFrameworkError creates a classified, wrapped error.
func NewFrameworkError(op string, kind ErrorKind, err error) *FrameworkError {
	return &FrameworkError{Op: op, Kind: kind, Err: err}
}

// WrapCancelled wraps ctx.Err() (or ErrCancelled if ctx carries no error) as
// a KindCancelled FrameworkError, the single call every provider adapter,
// the router, and the resilience layer use to surface a caller-requested
// abort instead of letting it masquerade as a clean success or an
// unclassified failure.
func WrapCancelled(op string, ctx context.Context) error {
	err := error(ErrCancelled)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return &FrameworkError{Op: op, Kind: KindCancelled, Err: err}
}

// IsContextErr reports whether err is (or wraps) context.Canceled or
// context.DeadlineExceeded, the two stdlib sentinels a provider's own
// transport can hand back directly instead of producing ErrCancelled.
func IsContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Classify inspects err and returns its ErrorKind. Unrecognised errors are
// conservatively classified KindUnknown, which the retry handler retries
// like KindTransient, up to its MaxRetries.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var fe *FrameworkError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	switch {
	case errors.Is(err, ErrCancelled), IsContextErr(err):
		return KindCancelled
	case errors.Is(err, ErrCircuitBreakerOpen):
		return KindCircuitOpen
	case errors.Is(err, ErrAllProvidersExhausted):
		return KindExhausted
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether the retry handler should attempt err again.
// Transient and Unknown are retryable; RateLimit is retryable after a delay
// (callers should honour RetryAfter via AsRetryAfter); everything else is not.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case KindTransient, KindRateLimit, KindUnknown:
		return true
	default:
		return false
	}
}

// AsRetryAfter extracts a server-suggested retry delay, if the error carries
// one (rate-limit responses). ok is false when no delay was supplied.
func AsRetryAfter(err error) (delay time.Duration, ok bool) {
	var fe *FrameworkError
	if errors.As(err, &fe) && fe.Kind == KindRateLimit && fe.RetryAfter > 0 {
		return fe.RetryAfter, true
	}
	return 0, false
}

// AllProvidersExhaustedError carries the ordered tried-list and the
// per-provider error map, as required by §4.3 / §7.
type AllProvidersExhaustedError struct {
	Tried  []string
	Errors map[string]string
}

func (e *AllProvidersExhaustedError) Error() string {
	return fmt.Sprintf("all providers exhausted, tried=%v: %v", e.Tried, ErrAllProvidersExhausted)
}

func (e *AllProvidersExhaustedError) Unwrap() error { return ErrAllProvidersExhausted }

// CircuitOpenError carries the estimated time the circuit will re-probe.
type CircuitOpenError struct {
	Name          string
	ResetEstimate time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q open, estimated reset at %s: %v", e.Name, e.ResetEstimate.Format(time.RFC3339), ErrCircuitBreakerOpen)
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitBreakerOpen }

// CacheMissError names why a cache lookup missed, per §4.4.
type CacheMissError struct {
	Reason string // not_found | expired | low_similarity
}

func (e *CacheMissError) Error() string { return fmt.Sprintf("cache miss: %s", e.Reason) }
func (e *CacheMissError) Unwrap() error { return ErrCacheMiss }

// RouteNotFoundError names the taskId that executeViaMesh could not resolve.
type RouteNotFoundError struct {
	TaskID string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route for task %q: %v", e.TaskID, ErrRouteNotFound)
}

func (e *RouteNotFoundError) Unwrap() error { return ErrRouteNotFound }
