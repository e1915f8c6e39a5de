package provider

import (
	"fmt"
	"net/http"

	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
)

// APIError is a non-success answer from a provider endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error (status %d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap exposes the coded form so callers can match on error codes.
func (e *APIError) Unwrap() error {
	if e.IsAuth() {
		return berrors.NewProviderAuthError(e.Provider)
	}
	return berrors.New(berrors.ErrCodeProviderAPI, fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode))
}

// IsAuth reports whether the provider rejected the credentials.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Retryable reports whether repeating the call could succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
