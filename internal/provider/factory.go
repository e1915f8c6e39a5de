package provider

import (
	"context"
	"strings"
	"time"

	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
)

// Known provider names.
const (
	NameOpenAI = "openai"
	NameGemini = "gemini"
)

// Names lists the providers New can build.
func Names() []string {
	return []string{NameOpenAI, NameGemini}
}

// Settings is the flat form of a provider selection as it arrives from flags,
// environment, or an export request.
type Settings struct {
	Name    string
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Config converts s into the map-based form used by providers.yaml.
func (s Settings) Config() *ProviderConfig {
	cfg := map[string]interface{}{
		"api_key": s.APIKey,
	}
	if s.Model != "" {
		cfg["model"] = s.Model
	}
	if s.BaseURL != "" {
		cfg["base_url"] = s.BaseURL
	}
	if s.Timeout > 0 {
		cfg["timeout_seconds"] = int(s.Timeout / time.Second)
	}
	return &ProviderConfig{
		Name:    strings.ToLower(strings.TrimSpace(s.Name)),
		Type:    ProviderTypeAPI,
		Enabled: true,
		Config:  cfg,
	}
}

// New builds a single provider client from settings.
func New(ctx context.Context, s Settings) (ProviderClient, error) {
	cfg := s.Config()
	switch cfg.Name {
	case NameOpenAI, NameGemini:
	default:
		return nil, berrors.NewProviderNotFoundError(s.Name)
	}

	if strings.TrimSpace(s.APIKey) == "" {
		return nil, berrors.New(berrors.ErrCodeProviderConfig, "an API key is required for AI generation").
			WithSuggestion("Set BLUEPRINT_API_KEY or pass --api-key").
			WithSuggestion("Export without --ai to use the templates only")
	}

	if cfg.Name == NameGemini {
		return NewGeminiProvider(ctx, cfg)
	}
	return NewOpenAIProvider(cfg)
}

// Factory builds provider clients. Export and server code depend on this
// instead of New so tests can substitute fakes.
type Factory func(ctx context.Context, s Settings) (ProviderClient, error)

// DefaultFactory is New.
var DefaultFactory Factory = New
