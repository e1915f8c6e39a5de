package provider

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/blueprint/internal/log"
)

// ProvidersConfig represents the complete providers.yaml configuration
type ProvidersConfig struct {
	Providers []ProviderConfig `yaml:"providers"`

	// Default names the provider used when a request does not pick one.
	Default string `yaml:"default,omitempty"`
}

// LoadProvidersConfig loads provider configuration from a YAML file.
// ${VAR} references are expanded from the environment before parsing.
func LoadProvidersConfig(path string) (*ProvidersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	configStr := os.ExpandEnv(string(data))

	var config ProvidersConfig
	if err := yaml.Unmarshal([]byte(configStr), &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := ValidateProvidersConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// ValidateProvidersConfig validates a providers configuration
func ValidateProvidersConfig(config *ProvidersConfig) error {
	if len(config.Providers) == 0 {
		return fmt.Errorf("no providers configured")
	}

	hasEnabled := false
	seen := make(map[string]bool, len(config.Providers))
	for i := range config.Providers {
		p := &config.Providers[i]
		if err := ValidateProviderConfig(p); err != nil {
			return fmt.Errorf("provider %d (%s): %w", i, p.Name, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %s configured twice", p.Name)
		}
		seen[p.Name] = true
		if p.Enabled {
			hasEnabled = true
		}
	}

	if !hasEnabled {
		return fmt.Errorf("at least one provider must be enabled")
	}

	if config.Default != "" && !seen[config.Default] {
		return fmt.Errorf("default provider %s is not configured", config.Default)
	}

	return nil
}

// ValidateProviderConfig validates a single provider configuration
func ValidateProviderConfig(config *ProviderConfig) error {
	if config.Name == "" {
		return fmt.Errorf("name is required")
	}

	switch config.Name {
	case NameOpenAI, NameGemini:
	default:
		return fmt.Errorf("unknown provider: %s (must be openai or gemini)", config.Name)
	}

	if config.Type != "" && config.Type != ProviderTypeAPI {
		return fmt.Errorf("invalid provider type: %s (must be api)", config.Type)
	}

	if config.Enabled && config.stringValue("api_key") == "" {
		return fmt.Errorf("enabled provider requires 'api_key' in config")
	}

	return nil
}

// SaveProvidersConfig saves provider configuration to a YAML file
func SaveProvidersConfig(config *ProvidersConfig, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// DefaultProvidersConfig returns a configuration with both providers wired to
// their usual environment variables. Only OpenAI is enabled.
func DefaultProvidersConfig() *ProvidersConfig {
	return &ProvidersConfig{
		Default: NameOpenAI,
		Providers: []ProviderConfig{
			{
				Name:    NameOpenAI,
				Type:    ProviderTypeAPI,
				Enabled: true,
				Version: "1.0.0",
				Config: map[string]interface{}{
					"api_key":  "${OPENAI_API_KEY}",
					"base_url": OpenAIDefaultBaseURL,
					"model":    openAIDefaultModel,
				},
			},
			{
				Name:    NameGemini,
				Type:    ProviderTypeAPI,
				Enabled: false,
				Version: "1.0.0",
				Config: map[string]interface{}{
					"api_key": "${GEMINI_API_KEY}",
					"model":   geminiDefaultModel,
				},
			},
		},
	}
}

// LoadRegistryFromConfig loads providers into a registry from configuration
func LoadRegistryFromConfig(ctx context.Context, configPath string) (*Registry, error) {
	config, err := LoadProvidersConfig(configPath)
	if err != nil {
		return nil, err
	}

	return LoadRegistryFromProvidersConfig(ctx, config)
}

// LoadRegistryFromProvidersConfig loads the enabled providers into a registry.
// A provider that fails to build is logged and skipped.
func LoadRegistryFromProvidersConfig(ctx context.Context, config *ProvidersConfig) (*Registry, error) {
	registry := NewRegistry()
	logger := log.DefaultLogger()

	for i := range config.Providers {
		providerConfig := &config.Providers[i]
		if !providerConfig.Enabled {
			continue
		}

		if err := registry.LoadFromConfig(ctx, providerConfig); err != nil {
			logger.Warn("failed to load provider", "provider", providerConfig.Name, "error", err)
			continue
		}
	}

	if len(registry.List()) == 0 {
		return nil, fmt.Errorf("no providers loaded successfully")
	}

	return registry, nil
}
