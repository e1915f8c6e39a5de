// Package client talks to a running blueprint service.
//
// Usage:
//
//	c := client.New("http://localhost:8080")
//	archive, err := c.Export(ctx, &types.ExportRequest{Diagram: data, ProjectName: "Shop"})
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/blueprint/internal/version"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/types"
)

// Client is a client for the blueprint HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// Config holds client configuration.
type Config struct {
	// MaxRetries is the number of retries after the first attempt for
	// transient failures (429, 503, 504, and transport errors).
	MaxRetries int

	// RetryDelay is the delay before the first retry. It doubles on each
	// further retry.
	RetryDelay time.Duration

	// Timeout bounds each HTTP request. AI exports can take minutes.
	Timeout time.Duration
}

// DefaultConfig returns the configuration New uses.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries: 3,
		RetryDelay: time.Second,
		Timeout:    5 * time.Minute,
	}
}

// New creates a client with DefaultConfig.
func New(baseURL string) *Client {
	return NewWithConfig(baseURL, nil)
}

// NewWithConfig creates a client. A nil cfg uses DefaultConfig.
func NewWithConfig(baseURL string, cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode  int
	Code        string
	Message     string
	RequestID   string
	Cancelled   bool
	Suggestions []string
	Issues      []types.Issue
}

func (e *APIError) Error() string {
	var meta []string
	if e.StatusCode != 0 {
		meta = append(meta, fmt.Sprintf("status %d", e.StatusCode))
	}
	if e.Code != "" {
		meta = append(meta, "code "+e.Code)
	}
	if e.RequestID != "" {
		meta = append(meta, "request_id "+e.RequestID)
	}
	if len(meta) == 0 {
		return "blueprint API error: " + e.Message
	}
	return fmt.Sprintf("blueprint API error (%s): %s", strings.Join(meta, ", "), e.Message)
}

func apiErrorFrom(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-ID"),
	}
	var er types.ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		apiErr.Message = er.Error
		apiErr.Code = er.Code
		apiErr.Cancelled = er.Cancelled
		apiErr.Suggestions = er.Suggestions
		apiErr.Issues = er.Issues
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// do sends a request, retrying transient failures. accept lists the statuses
// that count as an answer rather than an error.
func (c *Client) do(ctx context.Context, method, path string, body []byte, accept ...int) (*http.Response, []byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", version.GetInfo().UserAgent())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, fmt.Errorf("request failed: %w", err)
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode/100 == 2 || containsStatus(accept, resp.StatusCode) {
			return resp, data, nil
		}
		apiErr := apiErrorFrom(resp, data)
		if !retryable(resp.StatusCode) {
			return nil, nil, apiErr
		}
		lastErr = apiErr
	}

	return nil, nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func containsStatus(list []int, status int) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

// Health queries the readiness endpoint. A degraded service is healthy
// enough to serve template exports and returns no error.
func (c *Client) Health(ctx context.Context) (*types.HealthResponse, error) {
	_, data, err := c.do(ctx, http.MethodGet, types.PathHealth, nil, http.StatusServiceUnavailable)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	var hr types.HealthResponse
	if err := json.Unmarshal(data, &hr); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	if hr.Status != "healthy" && hr.Status != "degraded" {
		return &hr, fmt.Errorf("unhealthy status: %s", hr.Status)
	}
	return &hr, nil
}

// Validate checks a diagram.json document. An invalid diagram is reported
// through the response, not as an error.
func (c *Client) Validate(ctx context.Context, diagramJSON []byte) (*types.ValidateResponse, error) {
	_, data, err := c.do(ctx, http.MethodPost, types.PathValidate, diagramJSON, http.StatusUnprocessableEntity)
	if err != nil {
		return nil, err
	}
	var vr types.ValidateResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, fmt.Errorf("failed to decode validate response: %w", err)
	}
	return &vr, nil
}

// AutoEdges returns diagramJSON with the default edges added.
func (c *Client) AutoEdges(ctx context.Context, diagramJSON []byte) (*types.AutoEdgesResponse, error) {
	_, data, err := c.do(ctx, http.MethodPost, types.PathAutoEdges, diagramJSON)
	if err != nil {
		return nil, err
	}
	var ar types.AutoEdgesResponse
	if err := json.Unmarshal(data, &ar); err != nil {
		return nil, fmt.Errorf("failed to decode auto-edges response: %w", err)
	}
	return &ar, nil
}

// Archive is an exported blueprint.
type Archive struct {
	Filename string
	Mode     string
	Data     []byte
}

// Export runs a bulk export.
func (c *Client) Export(ctx context.Context, req *types.ExportRequest) (*Archive, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode export request: %w", err)
	}
	resp, data, err := c.do(ctx, http.MethodPost, types.PathExport, body)
	if err != nil {
		return nil, err
	}
	return &Archive{
		Filename: attachmentName(resp.Header.Get("Content-Disposition")),
		Mode:     resp.Header.Get(types.HeaderMode),
		Data:     data,
	}, nil
}

func attachmentName(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// ErrStreamClosed is returned when the service closes a streaming export
// without reporting its outcome.
var ErrStreamClosed = errors.New("stream closed before the export finished")
