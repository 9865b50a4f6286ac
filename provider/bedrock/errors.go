package bedrock

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/vertice-labs/agentcore/core"
)

// classifyBedrockError maps Bedrock's typed API errors into the framework's
// ErrorKind taxonomy, mirroring provider/anthropic's status-based mapping.
func classifyBedrockError(err error) error {
	if core.IsContextErr(err) {
		return core.NewFrameworkError("bedrock", core.KindCancelled, err)
	}

	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return core.NewFrameworkError("bedrock", core.KindRateLimit, err)
	}
	var serviceUnavailable *types.ServiceUnavailableException
	if errors.As(err, &serviceUnavailable) {
		return core.NewFrameworkError("bedrock", core.KindTransient, err)
	}
	var internalFailure *types.InternalServerException
	if errors.As(err, &internalFailure) {
		return core.NewFrameworkError("bedrock", core.KindTransient, err)
	}
	var modelTimeout *types.ModelTimeoutException
	if errors.As(err, &modelTimeout) {
		return core.NewFrameworkError("bedrock", core.KindTransient, err)
	}
	var accessDenied *types.AccessDeniedException
	if errors.As(err, &accessDenied) {
		return core.NewFrameworkError("bedrock", core.KindPermanent, err)
	}
	var validation *types.ValidationException
	if errors.As(err, &validation) {
		return core.NewFrameworkError("bedrock", core.KindPermanent, err)
	}
	return core.NewFrameworkError("bedrock", core.KindUnknown, err)
}
