package anthropic

import (
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/vertice-labs/agentcore/core"
)

// classifyAnthropicError maps the SDK's *anthropic.Error into the framework's
// ErrorKind taxonomy so retry, circuit breaker and fallback can all reason
// about it uniformly per §7.
func classifyAnthropicError(err error) error {
	if core.IsContextErr(err) {
		return core.NewFrameworkError("anthropic", core.KindCancelled, err)
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return core.NewFrameworkError("anthropic", core.KindUnknown, err)
	}

	switch apiErr.StatusCode {
	case 429:
		fe := core.NewFrameworkError("anthropic", core.KindRateLimit, err)
		if retryAfter := apiErr.Response.Header.Get("retry-after"); retryAfter != "" {
			if secs, parseErr := time.ParseDuration(retryAfter + "s"); parseErr == nil {
				fe.RetryAfter = secs
			}
		}
		return fe
	case 408, 500, 502, 503, 504:
		return core.NewFrameworkError("anthropic", core.KindTransient, err)
	case 401, 403, 404, 400:
		return core.NewFrameworkError("anthropic", core.KindPermanent, err)
	default:
		return core.NewFrameworkError("anthropic", core.KindUnknown, err)
	}
}
