package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeDiagramInvalid, "test error message")

	if err.Code != ErrCodeDiagramInvalid {
		t.Errorf("expected code %s, got %s", ErrCodeDiagramInvalid, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeFileReadFailed, "failed to read file", cause)

	if err.Code != ErrCodeFileReadFailed {
		t.Errorf("expected code %s, got %s", ErrCodeFileReadFailed, err.Code)
	}

	if err.Cause != cause {
		t.Errorf("expected cause to be set")
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		wantCode string
		wantMsg  string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeDiagramUnknownType, "unknown component type"),
			wantCode: "DIAGRAM-002",
			wantMsg:  "unknown component type",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeFileReadFailed, "read failed", fmt.Errorf("permission denied")),
			wantCode: "IO-002",
			wantMsg:  "permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()

			if !strings.Contains(errStr, tt.wantCode) {
				t.Errorf("error string should contain code %s, got: %s", tt.wantCode, errStr)
			}

			if !strings.Contains(errStr, tt.wantMsg) {
				t.Errorf("error string should contain message '%s', got: %s", tt.wantMsg, errStr)
			}
		})
	}
}

func TestWithSuggestion(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "bad config").
		WithSuggestion("first").
		WithSuggestions("second", "third")

	if len(err.Suggestions) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(err.Suggestions))
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "Suggestions:") {
		t.Errorf("error string should list suggestions, got: %s", errStr)
	}
	for _, s := range []string{"first", "second", "third"} {
		if !strings.Contains(errStr, s) {
			t.Errorf("error string should contain suggestion %q", s)
		}
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"plain", fmt.Errorf("boom"), ""},
		{"direct", New(ErrCodeExportPackaging, "zip"), ErrCodeExportPackaging},
		{"wrapped", fmt.Errorf("outer: %w", New(ErrCodeGenCancelled, "stop")), ErrCodeGenCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	inner := New(ErrCodeGenEmptyResponse, "empty")
	outer := Wrap(ErrCodeExportGeneration, "generation failed", fmt.Errorf("ctx: %w", inner))

	if !HasCode(outer, ErrCodeExportGeneration) {
		t.Error("expected outer code to match")
	}
	if !HasCode(outer, ErrCodeGenEmptyResponse) {
		t.Error("expected nested code to match")
	}
	if HasCode(outer, ErrCodeConfigInvalid) {
		t.Error("unexpected match for unrelated code")
	}
}

func TestCategory(t *testing.T) {
	if got := ErrCodeExportTooManyNodes.Category(); got != "EXPORT" {
		t.Errorf("Category() = %q, want EXPORT", got)
	}
	if got := ErrorCode("PLAIN").Category(); got != "PLAIN" {
		t.Errorf("Category() = %q, want PLAIN", got)
	}
}

func TestCommonConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		wantCode ErrorCode
		contains []string
	}{
		{"no components", NewNoComponentsError(), ErrCodeExportNoComponents, []string{"Add at least one component"}},
		{"too many", NewTooManyComponentsError(8, 9), ErrCodeExportTooManyNodes, []string{"8", "9"}},
		{"diagram invalid", NewDiagramInvalidError("nodes missing"), ErrCodeDiagramInvalid, []string{"nodes missing"}},
		{"provider auth", NewProviderAuthError("openai"), ErrCodeProviderAuth, []string{"openai"}},
		{"provider unknown", NewProviderNotFoundError("bogus"), ErrCodeProviderNotFound, []string{"bogus"}},
		{"file not found", NewFileNotFoundError("/tmp/x"), ErrCodeFileNotFound, []string{"/tmp/x"}},
		{"file write", NewFileWriteError("/tmp/y", fmt.Errorf("disk full")), ErrCodeFileWriteFailed, []string{"/tmp/y", "disk full"}},
		{"config", NewConfigInvalidError("bad port"), ErrCodeConfigInvalid, []string{"bad port"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if len(tt.err.Suggestions) == 0 {
				t.Error("expected at least one suggestion")
			}
			msg := tt.err.Error()
			for _, c := range tt.contains {
				if !strings.Contains(msg, c) {
					t.Errorf("error %q should contain %q", msg, c)
				}
			}
		})
	}
}
