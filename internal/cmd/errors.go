package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/client"
)

// ErrorWithSuggestion wraps an error with actionable recovery suggestions
type ErrorWithSuggestion struct {
	Message     string
	Suggestions []string
	err         error
}

func (e *ErrorWithSuggestion) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, s := range e.Suggestions {
			b.WriteString("\n  • ")
			b.WriteString(s)
		}
	}

	if e.err != nil {
		b.WriteString("\n\nDetails: ")
		b.WriteString(e.err.Error())
	}

	return b.String()
}

func (e *ErrorWithSuggestion) Unwrap() error {
	return e.err
}

// NewErrorWithSuggestions creates an error with recovery suggestions
func NewErrorWithSuggestions(msg string, err error, suggestions ...string) error {
	return &ErrorWithSuggestion{
		Message:     msg,
		Suggestions: suggestions,
		err:         err,
	}
}

// ProviderLoadError creates a helpful error for provider loading failures
func ProviderLoadError(configPath string, err error) error {
	return NewErrorWithSuggestions(
		fmt.Sprintf("Failed to load provider configuration from %q", configPath),
		err,
		"Create one: blueprint provider init",
		"Verify API keys are set in environment variables",
		"Run health check: blueprint provider doctor",
	)
}

// ServerError creates a helpful error when a remote blueprint server cannot
// be reached.
func ServerError(url string, err error) error {
	return NewErrorWithSuggestions(
		fmt.Sprintf("Blueprint server at %s is unreachable", url),
		err,
		"Start a server: blueprint serve",
		"Check the address passed to --server",
		"Export locally by dropping --server",
	)
}

// remoteError classifies a failed call to --server: answers from the server
// keep their codes, anything else means the server was not reached.
func remoteError(url string, err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return fromAPIError(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return ServerError(url, err)
}

// fromAPIError turns a coded server answer back into a local coded error so
// that exit codes match a local run.
func fromAPIError(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	code := berrors.ErrorCode(apiErr.Code)
	if apiErr.Cancelled && code == "" {
		code = berrors.ErrCodeExportCancelled
	}
	if code == "" {
		return err
	}

	out := berrors.New(code, apiErr.Message).WithSuggestions(apiErr.Suggestions...)
	for _, issue := range apiErr.Issues {
		out.WithSuggestion(fmt.Sprintf("%s: %s", issue.Code, issue.Message))
	}
	return out
}
