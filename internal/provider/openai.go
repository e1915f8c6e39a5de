package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// OpenAIDefaultBaseURL is used when no base URL is configured.
	OpenAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIDefaultModel   = "gpt-4o-mini"
	defaultTimeout       = 120 * time.Second
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint and
// streams tokens over server-sent events.
type OpenAIProvider struct {
	apiKey    string
	baseURL   string
	client    *http.Client
	config    *ProviderConfig
	model     string
	maxTokens int
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message,omitempty"`
	Delta        openAIMessage `json:"delta,omitempty"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider(config *ProviderConfig) (*OpenAIProvider, error) {
	apiKey := config.stringValue("api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("api_key not found in provider config")
	}

	baseURL := strings.TrimRight(config.stringValue("base_url"), "/")
	if baseURL == "" {
		baseURL = OpenAIDefaultBaseURL
	}

	model := config.stringValue("model")
	if model == "" {
		model = openAIDefaultModel
	}

	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   config.timeout(defaultTimeout),
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		config:    config,
		model:     model,
		maxTokens: config.intValue("max_tokens"),
	}, nil
}

// Generate implements ProviderClient.Generate
func (p *OpenAIProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	startTime := time.Now()

	httpResp, err := p.send(ctx, p.buildRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var oaiResp openAIResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if oaiResp.Error != nil {
		return nil, &APIError{Provider: p.config.Name, StatusCode: httpResp.StatusCode, Message: oaiResp.Error.Message}
	}

	content := ""
	finishReason := ""
	if len(oaiResp.Choices) > 0 {
		content = oaiResp.Choices[0].Message.Content
		finishReason = oaiResp.Choices[0].FinishReason
	}

	return &GenerateResponse{
		Content:      content,
		TokensUsed:   oaiResp.Usage.TotalTokens,
		InputTokens:  oaiResp.Usage.PromptTokens,
		OutputTokens: oaiResp.Usage.CompletionTokens,
		Model:        oaiResp.Model,
		Latency:      time.Since(startTime),
		FinishReason: finishReason,
		Provider:     p.config.Name,
	}, nil
}

// Stream implements ProviderClient.Stream
func (p *OpenAIProvider) Stream(ctx context.Context, req *GenerateRequest) (<-chan StreamChunk, error) {
	httpResp, err := p.send(ctx, p.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	chunkChan := make(chan StreamChunk, 16)
	go p.readStream(ctx, httpResp, chunkChan)
	return chunkChan, nil
}

// send posts a chat completion request and returns the response when the
// status is 200. Any other status is turned into an *APIError.
func (p *OpenAIProvider) send(ctx context.Context, oaiReq *openAIRequest) (*http.Response, error) {
	reqBody, err := json.Marshal(oaiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if oaiReq.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64<<10))
		message := strings.TrimSpace(string(body))
		var errResp openAIResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
			message = errResp.Error.Message
		}
		return nil, &APIError{Provider: p.config.Name, StatusCode: httpResp.StatusCode, Message: message}
	}
	return httpResp, nil
}

// readStream reads the SSE stream. Every send also watches ctx so a consumer
// that stops reading after cancellation never strands this goroutine.
func (p *OpenAIProvider) readStream(ctx context.Context, resp *http.Response, chunkChan chan<- StreamChunk) {
	defer close(chunkChan)
	defer resp.Body.Close()

	emit := func(chunk StreamChunk) bool {
		select {
		case chunkChan <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var full strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		// SSE format: "data: {...}"
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		if data == "[DONE]" {
			emit(StreamChunk{Content: full.String(), Done: true, Timestamp: time.Now()})
			return
		}

		var oaiResp openAIResponse
		if err := json.Unmarshal([]byte(data), &oaiResp); err != nil {
			emit(StreamChunk{Error: fmt.Errorf("unmarshal chunk: %w", err), Done: true, Timestamp: time.Now()})
			return
		}
		if oaiResp.Error != nil {
			emit(StreamChunk{Error: &APIError{Provider: p.config.Name, StatusCode: http.StatusOK, Message: oaiResp.Error.Message}, Done: true, Timestamp: time.Now()})
			return
		}

		if len(oaiResp.Choices) == 0 || oaiResp.Choices[0].Delta.Content == "" {
			continue
		}
		delta := oaiResp.Choices[0].Delta.Content
		full.WriteString(delta)
		if !emit(StreamChunk{Content: full.String(), Delta: delta, Timestamp: time.Now()}) {
			return
		}
	}

	err := scanner.Err()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		emit(StreamChunk{Content: full.String(), Error: fmt.Errorf("read stream: %w", err), Done: true, Timestamp: time.Now()})
		return
	}
	// Stream ended without [DONE]; treat what we have as final.
	emit(StreamChunk{Content: full.String(), Done: true, Timestamp: time.Now()})
}

// buildRequest constructs an OpenAI API request from our GenerateRequest
func (p *OpenAIProvider) buildRequest(req *GenerateRequest, stream bool) *openAIRequest {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	var messages []openAIMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	temperature := 0.7
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	return &openAIRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}
}

// GetCapabilities implements ProviderClient.GetCapabilities
func (p *OpenAIProvider) GetCapabilities() *ProviderCapabilities {
	return &ProviderCapabilities{
		SupportsStreaming: true,
		MaxContextTokens:  128000,
	}
}

// GetInfo implements ProviderClient.GetInfo
func (p *OpenAIProvider) GetInfo() *ProviderInfo {
	return &ProviderInfo{
		Name:        p.config.Name,
		Model:       p.model,
		BaseURL:     p.baseURL,
		Type:        ProviderTypeAPI,
		Description: fmt.Sprintf("OpenAI-compatible API provider: %s", p.baseURL),
	}
}

// IsAvailable implements ProviderClient.IsAvailable
func (p *OpenAIProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// Health lists models as a cheap authenticated round trip.
func (p *OpenAIProvider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Provider: p.config.Name, StatusCode: resp.StatusCode, Message: "health check failed"}
	}
	return nil
}

// Close implements ProviderClient.Close
func (p *OpenAIProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
