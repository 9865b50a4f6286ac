package openai

import (
	"fmt"
	"net/http"

	"github.com/vertice-labs/agentcore/core"
)

// classifyHTTPError maps an HTTP status code from an OpenAI-compatible
// endpoint into the framework's ErrorKind taxonomy.
func classifyHTTPError(providerName string, status int, body []byte) error {
	op := providerName + ".request"
	msg := fmt.Errorf("status %d: %s", status, truncate(string(body), 500))

	switch status {
	case http.StatusTooManyRequests:
		return core.NewFrameworkError(op, core.KindRateLimit, msg)
	case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return core.NewFrameworkError(op, core.KindTransient, msg)
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusBadRequest:
		return core.NewFrameworkError(op, core.KindPermanent, msg)
	default:
		return core.NewFrameworkError(op, core.KindUnknown, msg)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
