package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantCode berrors.ErrorCode
		wantType string
	}{
		{"openai", Settings{Name: "openai", APIKey: "k"}, "", "openai"},
		{"case insensitive", Settings{Name: " OpenAI ", APIKey: "k"}, "", "openai"},
		{"gemini", Settings{Name: "gemini", APIKey: "k"}, "", "gemini"},
		{"unknown", Settings{Name: "bogus", APIKey: "k"}, berrors.ErrCodeProviderNotFound, ""},
		{"missing key", Settings{Name: "openai"}, berrors.ErrCodeProviderConfig, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(context.Background(), tt.settings)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, berrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, client.GetInfo().Name)
		})
	}
}

func TestSettingsConfig(t *testing.T) {
	cfg := Settings{
		Name:    "openai",
		APIKey:  "k",
		Model:   "gpt-test",
		BaseURL: "http://localhost:9999/v1",
		Timeout: 45 * time.Second,
	}.Config()

	assert.Equal(t, "gpt-test", cfg.stringValue("model"))
	assert.Equal(t, "http://localhost:9999/v1", cfg.stringValue("base_url"))
	assert.Equal(t, 45*time.Second, cfg.timeout(time.Second))
	assert.True(t, cfg.Enabled)
}
