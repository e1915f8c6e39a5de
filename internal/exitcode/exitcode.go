package exitcode

import (
	"context"
	"errors"
	"os"
	"strings"

	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// InvalidDiagram indicates the diagram failed validation or cannot be exported
	InvalidDiagram = 3

	// ProviderError indicates the AI provider was misconfigured or failed
	ProviderError = 4

	// Cancelled indicates the run was interrupted before it finished
	Cancelled = 5

	// NetworkError indicates a network connectivity issue
	NetworkError = 6
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps err to an exit code. Coded errors are classified by
// their code; anything else falls back to matching the message.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if code := berrors.CodeOf(err); code != "" {
		return fromCode(code)
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}

	errMsg := strings.ToLower(err.Error())

	// Usage errors as reported by cobra
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts ") {
		return UsageError
	}

	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NetworkError
	}
	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "unreachable") {
		return NetworkError
	}

	return GeneralError
}

func fromCode(code berrors.ErrorCode) int {
	switch {
	case code == berrors.ErrCodeExportCancelled, code == berrors.ErrCodeGenCancelled:
		return Cancelled
	case code.Category() == "DIAGRAM",
		code == berrors.ErrCodeExportNoComponents,
		code == berrors.ErrCodeExportTooManyNodes:
		return InvalidDiagram
	case code.Category() == "PROVIDER",
		code.Category() == "GEN",
		code == berrors.ErrCodeExportGeneration:
		return ProviderError
	case code.Category() == "CONFIG":
		return UsageError
	case code == berrors.ErrCodePublishFailed:
		return NetworkError
	default:
		return GeneralError
	}
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments, or configuration)"
	case InvalidDiagram:
		return "Invalid diagram"
	case ProviderError:
		return "AI provider error"
	case Cancelled:
		return "Cancelled"
	case NetworkError:
		return "Network error"
	default:
		return "Unknown error"
	}
}
