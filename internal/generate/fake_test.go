package generate

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
	"github.com/felixgeelhaar/blueprint/internal/provider"
	"github.com/felixgeelhaar/blueprint/internal/template"
)

// fakeClient answers every prompt with respond. When streaming is set it
// splits the answer into word tokens.
type fakeClient struct {
	streaming bool
	respond   func(ctx context.Context, prompt string) (string, error)
	delay     time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu      sync.Mutex
	prompts []string
}

func (f *fakeClient) enter() func() {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	for {
		cur := f.maxSeen.Load()
		if n <= cur || f.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeClient) answer(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.respond == nil {
		return "generated " + firstLine(prompt), nil
	}
	return f.respond(ctx, prompt)
}

func (f *fakeClient) Generate(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	defer f.enter()()
	content, err := f.answer(ctx, req.Prompt)
	if err != nil {
		return nil, err
	}
	return &provider.GenerateResponse{Content: content, Provider: "fake"}, nil
}

func (f *fakeClient) Stream(ctx context.Context, req *provider.GenerateRequest) (<-chan provider.StreamChunk, error) {
	done := f.enter()
	ch := make(chan provider.StreamChunk)
	go func() {
		defer close(ch)
		defer done()
		content, err := f.answer(ctx, req.Prompt)
		if err != nil {
			ch <- provider.StreamChunk{Error: err, Done: true}
			return
		}
		var acc strings.Builder
		for _, tok := range strings.SplitAfter(content, " ") {
			acc.WriteString(tok)
			select {
			case ch <- provider.StreamChunk{Content: acc.String(), Delta: tok}:
			case <-ctx.Done():
				return
			}
		}
		ch <- provider.StreamChunk{Content: acc.String(), Done: true}
	}()
	return ch, nil
}

func (f *fakeClient) GetCapabilities() *provider.ProviderCapabilities {
	return &provider.ProviderCapabilities{SupportsStreaming: f.streaming}
}

func (f *fakeClient) GetInfo() *provider.ProviderInfo {
	return &provider.ProviderInfo{Name: "fake", Model: "fake-model"}
}

func (f *fakeClient) IsAvailable() bool                { return true }
func (f *fakeClient) Health(ctx context.Context) error { return nil }
func (f *fakeClient) Close() error                     { return nil }

func firstLine(prompt string) string {
	if i := strings.IndexByte(prompt, '\n'); i >= 0 {
		return prompt[:i]
	}
	return prompt
}

func sampleInput() template.Input {
	return template.Input{
		ProjectName: "Shop",
		Nodes: []diagram.Node{
			{ID: "n1", Type: diagram.Frontend, Label: "Web", Meta: diagram.Meta{TechStack: []string{"React"}}},
			{ID: "n2", Type: diagram.Backend, Label: "API", Meta: diagram.Meta{TechStack: []string{"Go"}}},
			{ID: "n3", Type: diagram.Storage, Label: "DB", Meta: diagram.Meta{TechStack: []string{"PostgreSQL"}}},
			{ID: "n4", Type: diagram.Auth, Label: "Auth"},
		},
		OutOfScope: []string{"payments"},
	}
}
