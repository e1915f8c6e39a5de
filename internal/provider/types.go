package provider

import "time"

// GenerateRequest contains all parameters for generating a response
type GenerateRequest struct {
	// Prompt is the main input text for the model
	Prompt string `json:"prompt"`

	// SystemPrompt sets the system-level instructions
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Model overrides the provider's default model
	Model string `json:"model,omitempty"`

	// MaxTokens limits the maximum response length
	// Set to 0 to use provider default
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 = deterministic, 1.0+ = creative)
	Temperature float64 `json:"temperature,omitempty"`

	// Metadata for tracking and debugging
	Metadata map[string]string `json:"metadata,omitempty"`
}

// GenerateResponse contains the model's response
type GenerateResponse struct {
	// Content is the generated text
	Content string `json:"content"`

	// TokensUsed is the total tokens consumed (input + output)
	TokensUsed int `json:"tokens_used"`

	// InputTokens is tokens in the prompt
	InputTokens int `json:"input_tokens,omitempty"`

	// OutputTokens is tokens in the response
	OutputTokens int `json:"output_tokens,omitempty"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// Latency is how long the generation took
	Latency time.Duration `json:"latency"`

	// FinishReason explains why generation stopped
	FinishReason string `json:"finish_reason"`

	// Provider is the name of the provider that handled this request
	Provider string `json:"provider"`
}

// ProviderConfig is a provider entry in providers.yaml
type ProviderConfig struct {
	// Name is the provider identifier
	Name string `yaml:"name" json:"name"`

	// Type is the provider implementation type
	Type ProviderType `yaml:"type" json:"type"`

	// Enabled controls if this provider is active
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Config contains provider-specific configuration:
	// api_key, base_url, model, max_tokens, timeout_seconds
	Config map[string]interface{} `yaml:"config" json:"config"`

	// Version is informational
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

func (c *ProviderConfig) stringValue(key string) string {
	if c == nil || c.Config == nil {
		return ""
	}
	s, _ := c.Config[key].(string)
	return s
}

func (c *ProviderConfig) intValue(key string) int {
	if c == nil || c.Config == nil {
		return 0
	}
	switch v := c.Config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (c *ProviderConfig) timeout(def time.Duration) time.Duration {
	if secs := c.intValue("timeout_seconds"); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}
