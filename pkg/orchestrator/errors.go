package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/capability"
)

var (
	// ErrEmptyConversation is returned when no turn of the request survives
	// conversation building. The backend is not called.
	ErrEmptyConversation = errors.New("conversation has no valid turns")

	// ErrEmptyBackendResponse is returned when the backend answered without
	// producing a single turn.
	ErrEmptyBackendResponse = errors.New("backend returned an empty response")
)

// Stage names the step of a completion that failed.
type Stage string

const (
	StagePolicy       Stage = "policy"
	StageBuild        Stage = "build"
	StageCapabilities Stage = "capabilities"
	StageBackend      Stage = "backend"
	StageResponse     Stage = "response"
)

// OrchestrationError wraps the cause of a failed completion. errors.Is and
// errors.As see through it to the cause.
type OrchestrationError struct {
	Stage Stage
	Err   error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("orchestrator: %s: %v", e.Stage, e.Err)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

func failed(stage Stage, err error) *OrchestrationError {
	return &OrchestrationError{Stage: stage, Err: err}
}

// APIErrorFor converts a completion error into the error reported to API
// callers. Errors that already carry an *api.APIError keep it.
func APIErrorFor(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var unknown *capability.UnknownCapabilityError
	switch {
	case errors.Is(err, ErrEmptyConversation):
		return api.NewInvalidRequestError("messages", ErrEmptyConversation.Error())
	case errors.As(err, &unknown):
		return api.NewInvalidRequestError("capabilities", unknown.Error())
	case errors.Is(err, ErrEmptyBackendResponse):
		return api.NewBackendError(ErrEmptyBackendResponse.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return api.NewTimeoutError("completion timed out")
	}

	var oe *OrchestrationError
	if errors.As(err, &oe) && oe.Stage == StagePolicy {
		return api.NewInvalidRequestError("policy", oe.Err.Error())
	}
	return api.NewServerError(err.Error())
}
