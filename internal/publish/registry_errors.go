package publish

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"

	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
)

// RegistryErrorType categorizes registry failures.
type RegistryErrorType string

const (
	ErrTypeAuthentication  RegistryErrorType = "AUTHENTICATION"
	ErrTypeNotFound        RegistryErrorType = "NOT_FOUND"
	ErrTypeNetwork         RegistryErrorType = "NETWORK"
	ErrTypePermission      RegistryErrorType = "PERMISSION"
	ErrTypeInvalidRef      RegistryErrorType = "INVALID_REFERENCE"
	ErrTypeInvalidArtifact RegistryErrorType = "INVALID_ARTIFACT"
	ErrTypeUnknown         RegistryErrorType = "UNKNOWN"
)

// RegistryError wraps a registry failure with a suggestion.
type RegistryError struct {
	Type       RegistryErrorType
	Message    string
	Suggestion string
	Cause      error
	Reference  string
}

func (e *RegistryError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Suggestion != "" {
		msg += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf("\n\nCause: %v", e.Cause)
	}
	return msg
}

func (e *RegistryError) Unwrap() error {
	return e.Cause
}

// Coded converts e into the user-facing error type.
func (e *RegistryError) Coded() *berrors.Error {
	coded := berrors.Wrap(berrors.ErrCodePublishFailed, e.Message, e.Cause)
	if e.Suggestion != "" {
		coded.WithSuggestion(e.Suggestion)
	}
	return coded
}

// ClassifyRegistryError maps err to a RegistryError. operation is "push" or "pull".
func ClassifyRegistryError(err error, ref string, operation string) error {
	if err == nil {
		return nil
	}

	var transportErr *transport.Error
	if errors.As(err, &transportErr) {
		return classifyTransportError(transportErr, ref)
	}

	var nameErr *name.ErrBadName
	if errors.As(err, &nameErr) {
		return &RegistryError{
			Type:       ErrTypeInvalidRef,
			Message:    fmt.Sprintf("invalid registry reference: %s", ref),
			Suggestion: "Use registry/org/repo:tag, for example ghcr.io/acme/shop-blueprint:v1",
			Cause:      err,
			Reference:  ref,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return classifyNetworkError(netErr, ref)
	}

	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "unauthorized") || strings.Contains(errMsg, "authentication required"):
		return authError(err, ref)
	case strings.Contains(errMsg, "forbidden") || strings.Contains(errMsg, "denied"):
		return permissionError(err, ref)
	case strings.Contains(errMsg, "not found") || strings.Contains(errMsg, "manifest unknown"):
		return notFoundError(err, ref)
	}

	return &RegistryError{
		Type:       ErrTypeUnknown,
		Message:    fmt.Sprintf("registry %s failed", operation),
		Suggestion: "Check your network connection and registry credentials",
		Cause:      err,
		Reference:  ref,
	}
}

func authError(err error, ref string) *RegistryError {
	return &RegistryError{
		Type:       ErrTypeAuthentication,
		Message:    fmt.Sprintf("authentication required for %s", ref),
		Suggestion: "Log in with 'docker login <registry>'; credentials are read from ~/.docker/config.json",
		Cause:      err,
		Reference:  ref,
	}
}

func permissionError(err error, ref string) *RegistryError {
	return &RegistryError{
		Type:       ErrTypePermission,
		Message:    fmt.Sprintf("access forbidden: %s", ref),
		Suggestion: "Verify you have write access to the repository (GitHub needs the 'write:packages' scope)",
		Cause:      err,
		Reference:  ref,
	}
}

func notFoundError(err error, ref string) *RegistryError {
	return &RegistryError{
		Type:       ErrTypeNotFound,
		Message:    fmt.Sprintf("repository or tag not found: %s", ref),
		Suggestion: "Check the repository name and tag",
		Cause:      err,
		Reference:  ref,
	}
}

func classifyTransportError(err *transport.Error, ref string) error {
	switch err.StatusCode {
	case http.StatusUnauthorized:
		return authError(err, ref)
	case http.StatusForbidden:
		return permissionError(err, ref)
	case http.StatusNotFound:
		return notFoundError(err, ref)
	case http.StatusTooManyRequests:
		return &RegistryError{
			Type:       ErrTypeNetwork,
			Message:    "registry rate limit exceeded",
			Suggestion: "Wait a few minutes, or authenticate to raise the limit",
			Cause:      err,
			Reference:  ref,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &RegistryError{
			Type:       ErrTypeNetwork,
			Message:    "registry server error",
			Suggestion: "Retry later or check the registry status page",
			Cause:      err,
			Reference:  ref,
		}
	default:
		return &RegistryError{
			Type:      ErrTypeUnknown,
			Message:   fmt.Sprintf("registry HTTP error %d", err.StatusCode),
			Cause:     err,
			Reference: ref,
		}
	}
}

func classifyNetworkError(err net.Error, ref string) error {
	if err.Timeout() {
		return &RegistryError{
			Type:       ErrTypeNetwork,
			Message:    fmt.Sprintf("connection timeout to registry for %s", ref),
			Suggestion: "Check the registry URL and proxy settings; local registries need --insecure",
			Cause:      err,
			Reference:  ref,
		}
	}
	return &RegistryError{
		Type:       ErrTypeNetwork,
		Message:    fmt.Sprintf("network error accessing %s", ref),
		Suggestion: "Check the registry URL and that the registry is running",
		Cause:      err,
		Reference:  ref,
	}
}

// WrapRegistryError classifies err unless it already is a RegistryError.
func WrapRegistryError(err error, ref string, operation string) error {
	if err == nil {
		return nil
	}
	var regErr *RegistryError
	if errors.As(err, &regErr) {
		return err
	}
	return ClassifyRegistryError(err, ref, operation)
}
