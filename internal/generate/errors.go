package generate

import (
	"errors"
	"fmt"

	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
)

// ErrorKind classifies orchestrator failures.
type ErrorKind string

const (
	ProviderCallFailed ErrorKind = "provider-call-failed"
	Cancelled          ErrorKind = "cancelled"
	EmptyResponse      ErrorKind = "empty-response"
)

// Sentinels matched by errors.Is against an *ArtifactError.
var (
	ErrCancelled     = errors.New("generation cancelled")
	ErrEmptyResponse = errors.New("empty response")
)

// ArtifactError reports which artifact failed and why. The message always
// includes the cause's message.
type ArtifactError struct {
	Kind     ErrorKind
	Artifact string
	Cause    error
}

func (e *ArtifactError) Error() string {
	switch e.Kind {
	case Cancelled:
		return fmt.Sprintf("generation of %s was cancelled", e.Artifact)
	case EmptyResponse:
		return fmt.Sprintf("provider returned an empty response for %s", e.Artifact)
	default:
		if e.Cause == nil {
			return fmt.Sprintf("failed to generate %s", e.Artifact)
		}
		return fmt.Sprintf("failed to generate %s: %v", e.Artifact, e.Cause)
	}
}

func (e *ArtifactError) Unwrap() error { return e.Cause }

// Is matches ErrCancelled and ErrEmptyResponse by kind.
func (e *ArtifactError) Is(target error) bool {
	switch target {
	case ErrCancelled:
		return e.Kind == Cancelled
	case ErrEmptyResponse:
		return e.Kind == EmptyResponse
	}
	return false
}

// Code maps the kind to its stable error code.
func (e *ArtifactError) Code() berrors.ErrorCode {
	switch e.Kind {
	case Cancelled:
		return berrors.ErrCodeGenCancelled
	case EmptyResponse:
		return berrors.ErrCodeGenEmptyResponse
	default:
		return berrors.ErrCodeGenProviderCallFailed
	}
}

// Coded converts e into the user-facing error type.
func (e *ArtifactError) Coded() *berrors.Error {
	coded := berrors.Wrap(e.Code(), "AI generation failed", e)
	switch e.Kind {
	case ProviderCallFailed:
		coded.WithSuggestion("Check the API key, model id, and provider status, then retry")
	case EmptyResponse:
		coded.WithSuggestion("Retry, or try a different model")
	}
	return coded
}

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
