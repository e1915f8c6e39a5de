package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Diagram errors (DIAGRAM-001 to DIAGRAM-099)
	ErrCodeDiagramInvalid      ErrorCode = "DIAGRAM-001"
	ErrCodeDiagramUnknownType  ErrorCode = "DIAGRAM-002"
	ErrCodeDiagramDanglingEdge ErrorCode = "DIAGRAM-003"
	ErrCodeDiagramSelfLoop     ErrorCode = "DIAGRAM-004"

	// Export errors (EXPORT-001 to EXPORT-099)
	ErrCodeExportNoComponents    ErrorCode = "EXPORT-001"
	ErrCodeExportTooManyNodes    ErrorCode = "EXPORT-002"
	ErrCodeExportPackaging       ErrorCode = "EXPORT-003"
	ErrCodeExportGeneration      ErrorCode = "EXPORT-004"
	ErrCodeExportCancelled       ErrorCode = "EXPORT-005"
	ErrCodeExportUnexpectedPanic ErrorCode = "EXPORT-006"

	// AI generation errors (GEN-001 to GEN-099)
	ErrCodeGenProviderCallFailed ErrorCode = "GEN-001"
	ErrCodeGenCancelled          ErrorCode = "GEN-002"
	ErrCodeGenEmptyResponse      ErrorCode = "GEN-003"

	// Provider errors (PROVIDER-001 to PROVIDER-099)
	ErrCodeProviderNotFound ErrorCode = "PROVIDER-001"
	ErrCodeProviderConfig   ErrorCode = "PROVIDER-002"
	ErrCodeProviderAuth     ErrorCode = "PROVIDER-003"
	ErrCodeProviderAPI      ErrorCode = "PROVIDER-004"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"

	// Publishing errors (PUBLISH-001 to PUBLISH-099)
	ErrCodePublishFailed ErrorCode = "PUBLISH-001"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
)

// Error is a user-facing error with a stable code, suggestions, and an optional cause.
type Error struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new Error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// HasCode reports whether err's chain contains an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if coded, ok := err.(*Error); ok && coded.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Category returns the prefix of an error code (e.g. "EXPORT" for "EXPORT-002").
func (c ErrorCode) Category() string {
	s := string(c)
	if idx := strings.Index(s, "-"); idx > 0 {
		return s[:idx]
	}
	return s
}

// Common error constructors for frequently used errors

// NewNoComponentsError is returned when an export is requested for an empty diagram.
func NewNoComponentsError() *Error {
	return New(ErrCodeExportNoComponents, "Add at least one component to your diagram before exporting.").
		WithSuggestion("Drag a frontend, backend, or storage component onto the canvas")
}

// NewTooManyComponentsError is returned when the diagram exceeds the export ceiling.
func NewTooManyComponentsError(limit, actual int) *Error {
	return New(ErrCodeExportTooManyNodes,
		fmt.Sprintf("Too many components: the limit is %d but the diagram has %d.", limit, actual)).
		WithSuggestion("Merge closely related components").
		WithSuggestion("Split the system into several blueprints")
}

// NewDiagramInvalidError creates a diagram schema validation error
func NewDiagramInvalidError(details string) *Error {
	return New(ErrCodeDiagramInvalid, fmt.Sprintf("invalid diagram: %s", details)).
		WithSuggestion("Run 'blueprint validate <file>' to list every problem").
		WithSuggestion("Re-export the diagram from the editor to obtain a clean diagram.json")
}

// NewProviderAuthError creates a provider authentication error
func NewProviderAuthError(provider string) *Error {
	return New(ErrCodeProviderAuth, fmt.Sprintf("authentication failed for provider: %s", provider)).
		WithSuggestion("Set the BLUEPRINT_API_KEY environment variable or pass --api-key").
		WithSuggestion("Check if your API key is valid and not expired")
}

// NewProviderNotFoundError creates an unknown provider error
func NewProviderNotFoundError(provider string) *Error {
	return New(ErrCodeProviderNotFound, fmt.Sprintf("unknown provider: %s", provider)).
		WithSuggestion("Use one of: openai, gemini")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *Error {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileWriteError creates a file write error
func NewFileWriteError(path string, cause error) *Error {
	return Wrap(ErrCodeFileWriteFailed, fmt.Sprintf("failed to write file: %s", path), cause).
		WithSuggestion("Check that the output directory exists and is writable")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Compare your blueprint.yaml with the documented defaults")
}
