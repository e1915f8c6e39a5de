package tui

import (
	"errors"
	"testing"
)

func TestInCI(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    bool
	}{
		{name: "GitHub Actions", envVars: map[string]string{"GITHUB_ACTIONS": "true"}, want: true},
		{name: "GitLab CI", envVars: map[string]string{"GITLAB_CI": "true"}, want: true},
		{name: "Jenkins", envVars: map[string]string{"JENKINS_URL": "http://jenkins.local"}, want: true},
		{name: "Generic CI", envVars: map[string]string{"CI": "true"}, want: true},
		{name: "none", envVars: map[string]string{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range ciEnvVars {
				t.Setenv(key, "")
			}
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			if got := InCI(); got != tt.want {
				t.Errorf("InCI() = %v, want %v (with env: %v)", got, tt.want, tt.envVars)
			}
			if tt.want && ShouldPrompt() {
				t.Error("ShouldPrompt() must be false in CI")
			}
		})
	}
}

func TestPromptForSelect_NoOptions(t *testing.T) {
	_, err := PromptForSelect("Choose:", nil)
	if !errors.Is(err, ErrNoOptions) {
		t.Errorf("expected ErrNoOptions, got %v", err)
	}
}

func TestPromptForMultiSelect_NoOptions(t *testing.T) {
	_, err := PromptForMultiSelect("Choose:", []string{})
	if !errors.Is(err, ErrNoOptions) {
		t.Errorf("expected ErrNoOptions, got %v", err)
	}
}

func TestRequireText(t *testing.T) {
	if err := requireText("  "); err == nil {
		t.Error("expected blank input to be rejected")
	}
	if err := requireText("Shop"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
