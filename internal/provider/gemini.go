package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-2.0-flash"

// GeminiProvider calls the Gemini API through the genai SDK. It has no
// token-level streaming; Stream delivers the full response as one chunk.
type GeminiProvider struct {
	cli       *genai.Client
	config    *ProviderConfig
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
}

// NewGeminiProvider creates a Gemini provider. ctx only bounds client setup.
func NewGeminiProvider(ctx context.Context, config *ProviderConfig) (*GeminiProvider, error) {
	apiKey := config.stringValue("api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("api_key not found in provider config")
	}

	model := config.stringValue("model")
	if model == "" {
		model = geminiDefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Timeout:   config.timeout(defaultTimeout),
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	baseURL := config.stringValue("base_url")
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiProvider{
		cli:       cli,
		config:    config,
		apiKey:    apiKey,
		baseURL:   baseURL,
		model:     model,
		maxTokens: config.intValue("max_tokens"),
	}, nil
}

// Generate implements ProviderClient.Generate
func (p *GeminiProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()

	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		cfg.Temperature = &t
	}
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}

	resp, err := p.cli.Models.GenerateContent(ctx, model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Prompt}}}},
		cfg,
	)
	if err != nil {
		return nil, p.mapError(err)
	}

	out := &GenerateResponse{
		Content:  resp.Text(),
		Model:    model,
		Latency:  time.Since(start),
		Provider: p.config.Name,
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
		out.TokensUsed = int(u.TotalTokenCount)
	}
	return out, nil
}

// Stream implements ProviderClient.Stream with a single final chunk.
func (p *GeminiProvider) Stream(ctx context.Context, req *GenerateRequest) (<-chan StreamChunk, error) {
	resp, err := p.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Content: resp.Content, Delta: resp.Content, Done: true, Timestamp: time.Now()}
	close(ch)
	return ch, nil
}

func (p *GeminiProvider) mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{Provider: p.config.Name, StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &APIError{Provider: p.config.Name, StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini generate: %w", err)
}

// GetCapabilities implements ProviderClient.GetCapabilities
func (p *GeminiProvider) GetCapabilities() *ProviderCapabilities {
	return &ProviderCapabilities{
		SupportsStreaming: false,
		MaxContextTokens:  1000000,
	}
}

// GetInfo implements ProviderClient.GetInfo
func (p *GeminiProvider) GetInfo() *ProviderInfo {
	return &ProviderInfo{
		Name:        p.config.Name,
		Model:       p.model,
		BaseURL:     p.baseURL,
		Type:        ProviderTypeAPI,
		Description: "Google Gemini API provider",
	}
}

// IsAvailable implements ProviderClient.IsAvailable
func (p *GeminiProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// Health fetches the configured model's metadata.
func (p *GeminiProvider) Health(ctx context.Context) error {
	if _, err := p.cli.Models.Get(ctx, p.model, nil); err != nil {
		return fmt.Errorf("health check failed: %w", p.mapError(err))
	}
	return nil
}

// Close implements ProviderClient.Close
func (p *GeminiProvider) Close() error {
	return nil
}
