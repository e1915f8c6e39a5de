package generate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
	"github.com/felixgeelhaar/blueprint/internal/log"
	"github.com/felixgeelhaar/blueprint/internal/metrics"
	"github.com/felixgeelhaar/blueprint/internal/progress"
	"github.com/felixgeelhaar/blueprint/internal/template"
)

func TestArtifactsOrder(t *testing.T) {
	in := sampleInput()
	in.Nodes = append(in.Nodes, in.Nodes[1])
	in.Nodes[4].ID = "n5"

	arts := Artifacts(in)
	require.Len(t, arts, 7)

	assert.Equal(t, KindProjectRules, arts[0].Kind)
	assert.Equal(t, ProjectRulesPath, arts[0].Path)
	assert.Equal(t, KindAgentProtocol, arts[1].Kind)
	assert.Equal(t, AgentProtocolPath, arts[1].Path)

	wantPaths := []string{"specs/web.md", "specs/api.md", "specs/db.md", "specs/auth.md", "specs/api-2.md"}
	for i, p := range wantPaths {
		assert.Equal(t, KindComponentSpec, arts[i+2].Kind)
		assert.Equal(t, in.Nodes[i].ID, arts[i+2].NodeID)
		assert.Equal(t, p, arts[i+2].Path)
	}

	assert.Equal(t, progress.PhaseProjectRules, arts[0].Phase())
	assert.Equal(t, progress.PhaseAgentProtocol, arts[1].Phase())
	assert.Equal(t, progress.PhaseComponentSpecs, arts[2].Phase())
}

func TestCallAI(t *testing.T) {
	boom := errors.New("upstream 500: overloaded")

	tests := []struct {
		name      string
		respond   func(ctx context.Context, prompt string) (string, error)
		cancelled bool
		want      string
		wantKind  ErrorKind
		wantInMsg string
	}{
		{
			name:    "trims output",
			respond: func(context.Context, string) (string, error) { return "\n  # Rules \n\n", nil },
			want:    "# Rules",
		},
		{
			name:      "empty response",
			respond:   func(context.Context, string) (string, error) { return "   \n", nil },
			wantKind:  EmptyResponse,
			wantInMsg: "PROJECT_RULES.md",
		},
		{
			name:      "provider failure keeps cause",
			respond:   func(context.Context, string) (string, error) { return "", boom },
			wantKind:  ProviderCallFailed,
			wantInMsg: "overloaded",
		},
		{
			name:      "cancelled before call",
			cancelled: true,
			wantKind:  Cancelled,
			wantInMsg: "cancelled",
		},
		{
			name:      "context canceled from provider",
			respond:   func(context.Context, string) (string, error) { return "", context.Canceled },
			wantKind:  Cancelled,
			wantInMsg: "PROJECT_RULES.md",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{respond: tt.respond}
			ctx, cancel := context.WithCancel(context.Background())
			if tt.cancelled {
				cancel()
			} else {
				defer cancel()
			}

			got, err := CallAI(ctx, client, "prompt", "model", ProjectRulesPath)
			if tt.wantKind == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			var ae *ArtifactError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.wantKind, ae.Kind)
			assert.Equal(t, ProjectRulesPath, ae.Artifact)
			assert.Contains(t, err.Error(), tt.wantInMsg)
			assert.Equal(t, tt.wantKind == Cancelled, errors.Is(err, ErrCancelled))
			assert.Equal(t, tt.wantKind == EmptyResponse, errors.Is(err, ErrEmptyResponse))
			if tt.cancelled {
				assert.Zero(t, client.calls.Load(), "no request should be sent once cancelled")
			}
		})
	}
}

func TestCallAIStream(t *testing.T) {
	client := &fakeClient{
		streaming: true,
		respond:   func(context.Context, string) (string, error) { return "one two three ", nil },
	}

	var tokens []string
	got, err := CallAIStream(context.Background(), client, "p", "m", "API", func(tok string) {
		tokens = append(tokens, tok)
	})
	require.NoError(t, err)
	assert.Equal(t, "one two three", got)
	assert.Equal(t, []string{"one ", "two ", "three "}, tokens)
}

func TestCallAIStreamError(t *testing.T) {
	client := &fakeClient{
		streaming: true,
		respond:   func(context.Context, string) (string, error) { return "", errors.New("stream reset") },
	}
	_, err := CallAIStream(context.Background(), client, "p", "m", "API", nil)

	var ae *ArtifactError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ProviderCallFailed, ae.Kind)
	assert.Contains(t, err.Error(), "stream reset")
}

func TestArtifactErrorCoded(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		code berrors.ErrorCode
	}{
		{ProviderCallFailed, berrors.ErrCodeGenProviderCallFailed},
		{Cancelled, berrors.ErrCodeGenCancelled},
		{EmptyResponse, berrors.ErrCodeGenEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := &ArtifactError{Kind: tt.kind, Artifact: "API", Cause: errors.New("x")}
			assert.Equal(t, tt.code, e.Code())
			coded := e.Coded()
			assert.Equal(t, tt.code, berrors.CodeOf(coded))
			assert.ErrorIs(t, coded, e)
		})
	}
}

func TestGenerateBulk(t *testing.T) {
	client := &fakeClient{delay: 20 * time.Millisecond}
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	o := New(client, "fake-model", WithLogger(log.Nop()), WithMetrics(m))

	in := sampleInput()
	var mu sync.Mutex
	completed := map[string]bool{}
	res, err := o.Generate(context.Background(), in, func(a Artifact, content string) {
		mu.Lock()
		defer mu.Unlock()
		completed[a.Path] = true
		assert.NotEmpty(t, content)
	})
	require.NoError(t, err)

	assert.Len(t, completed, 6)
	assert.Contains(t, res.ProjectRules, "PROJECT_RULES.md")
	assert.Contains(t, res.AgentProtocol, "AGENT_PROTOCOL.md")
	require.Len(t, res.ComponentSpecs, 4)
	assert.Contains(t, res.ComponentSpecs["n2"], `"API"`)

	assert.EqualValues(t, 6, client.calls.Load())
	assert.LessOrEqual(t, client.maxSeen.Load(), int32(MaxConcurrentRequests))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("fake", "fake-model", "true")))
}

func TestGenerateBulkFailFast(t *testing.T) {
	client := &fakeClient{
		respond: func(ctx context.Context, prompt string) (string, error) {
			if strings.Contains(firstLine(prompt), `"DB"`) {
				return "", errors.New("quota exceeded")
			}
			select {
			case <-time.After(50 * time.Millisecond):
				return "ok", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}
	o := New(client, "m", WithLogger(log.Nop()))

	res, err := o.Generate(context.Background(), sampleInput(), nil)
	assert.Nil(t, res)

	var ae *ArtifactError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ProviderCallFailed, ae.Kind)
	assert.Equal(t, "DB", ae.Artifact)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.False(t, IsCancelled(err))
}

func TestGenerateBulkCancelled(t *testing.T) {
	client := &fakeClient{delay: time.Second}
	o := New(client, "m", WithLogger(log.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := o.Generate(ctx, sampleInput(), nil)
	assert.True(t, IsCancelled(err), "got %v", err)
	assert.Less(t, time.Since(start), 900*time.Millisecond, "cancellation must not wait for the provider")
}

func TestGenerateBulkAlreadyCancelled(t *testing.T) {
	client := &fakeClient{}
	o := New(client, "m", WithLogger(log.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Generate(ctx, sampleInput(), nil)
	assert.True(t, IsCancelled(err))
	assert.Zero(t, client.calls.Load())
}

type streamEvents struct {
	mu       sync.Mutex
	order    []string
	tokens   int
	progress []progress.Progress
}

func (e *streamEvents) callbacks() Callbacks {
	return Callbacks{
		OnFileStart: func(a Artifact) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.order = append(e.order, "start:"+a.Path)
		},
		OnToken: func(a Artifact, tok string) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.tokens++
		},
		OnFileComplete: func(a Artifact, content string) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.order = append(e.order, "done:"+a.Path)
		},
		OnProgress: func(p progress.Progress) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.progress = append(e.progress, p)
		},
	}
}

func expectedOrder() []string {
	var out []string
	for _, a := range Artifacts(sampleInput()) {
		out = append(out, "start:"+a.Path, "done:"+a.Path)
	}
	return out
}

func assertPhasesMonotonic(t *testing.T, events []progress.Progress) {
	t.Helper()
	prevRank, prevDone := progress.PhaseIdle.Rank(), 0
	for _, p := range events {
		assert.GreaterOrEqual(t, p.Phase.Rank(), prevRank)
		assert.GreaterOrEqual(t, p.FilesCompleted, prevDone)
		if p.Phase != progress.PhaseError {
			assert.LessOrEqual(t, p.Phase.Rank()-prevRank, 1, "phases must not be skipped")
		}
		prevRank, prevDone = p.Phase.Rank(), p.FilesCompleted
	}
}

func TestGenerateStreaming(t *testing.T) {
	client := &fakeClient{streaming: true}
	o := New(client, "m", WithLogger(log.Nop()))
	ev := &streamEvents{}

	res, err := o.GenerateStreaming(context.Background(), sampleInput(), ev.callbacks())
	require.NoError(t, err)
	require.Len(t, res.ComponentSpecs, 4)

	assert.Equal(t, expectedOrder(), ev.order)
	assert.Greater(t, ev.tokens, 6, "streaming providers should emit token events")

	final := ev.progress[len(ev.progress)-1]
	assert.Equal(t, progress.PhaseComplete, final.Phase)
	assert.Equal(t, 6, final.FilesCompleted)
	assert.Equal(t, 6, final.TotalFiles)
	assertPhasesMonotonic(t, ev.progress)
}

func TestGenerateStreamingSimulated(t *testing.T) {
	client := &fakeClient{streaming: false}
	o := New(client, "m", WithLogger(log.Nop()))
	ev := &streamEvents{}

	res, err := o.GenerateStreaming(context.Background(), sampleInput(), ev.callbacks())
	require.NoError(t, err)
	require.Len(t, res.ComponentSpecs, 4)

	assert.Equal(t, expectedOrder(), ev.order)
	assert.Zero(t, ev.tokens, "non-streaming providers emit no token events")

	final := ev.progress[len(ev.progress)-1]
	assert.Equal(t, progress.PhaseComplete, final.Phase)
	assert.Equal(t, final.TotalFiles, final.FilesCompleted)
	assertPhasesMonotonic(t, ev.progress)
}

func TestGenerateStreamingFailureKeepsPartialResult(t *testing.T) {
	client := &fakeClient{
		streaming: true,
		respond: func(ctx context.Context, prompt string) (string, error) {
			if strings.Contains(firstLine(prompt), `"API"`) {
				return "", errors.New("model not found")
			}
			return "content ", nil
		},
	}
	o := New(client, "m", WithLogger(log.Nop()))
	ev := &streamEvents{}

	res, err := o.GenerateStreaming(context.Background(), sampleInput(), ev.callbacks())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API")
	assert.Contains(t, err.Error(), "model not found")

	require.NotNil(t, res)
	assert.Equal(t, "content", res.ProjectRules)
	assert.Equal(t, "content", res.AgentProtocol)
	assert.Equal(t, "content", res.ComponentSpecs["n1"])
	assert.NotContains(t, res.ComponentSpecs, "n2")

	final := ev.progress[len(ev.progress)-1]
	assert.Equal(t, progress.PhaseError, final.Phase)
	assert.Equal(t, 3, final.FilesCompleted)
	assertPhasesMonotonic(t, ev.progress)
}

func TestGenerateStreamingCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeClient{
		streaming: true,
		respond: func(c context.Context, prompt string) (string, error) {
			if strings.Contains(firstLine(prompt), "AGENT_PROTOCOL") {
				cancel()
				<-c.Done()
				return "", c.Err()
			}
			return "done ", nil
		},
	}
	o := New(client, "m", WithLogger(log.Nop()))
	ev := &streamEvents{}

	res, err := o.GenerateStreaming(ctx, sampleInput(), ev.callbacks())
	require.Error(t, err)
	assert.True(t, IsCancelled(err))

	var ae *ArtifactError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AgentProtocolPath, ae.Artifact)
	assert.Equal(t, "done", res.ProjectRules)
	assert.Equal(t, progress.PhaseError, ev.progress[len(ev.progress)-1].Phase)
}

func TestGenerateStreamingNoNodes(t *testing.T) {
	client := &fakeClient{streaming: true}
	o := New(client, "m", WithLogger(log.Nop()))
	ev := &streamEvents{}

	_, err := o.GenerateStreaming(context.Background(), sampleInputWithoutNodes(), ev.callbacks())
	require.NoError(t, err)
	final := ev.progress[len(ev.progress)-1]
	assert.Equal(t, progress.PhaseComplete, final.Phase)
	assert.Equal(t, 2, final.FilesCompleted)
}

func sampleInputWithoutNodes() template.Input {
	in := sampleInput()
	in.Nodes = nil
	return in
}

func TestCacheAvoidsRepeatCalls(t *testing.T) {
	cache, err := NewCache(16)
	require.NoError(t, err)

	client := &fakeClient{}
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	o := New(client, "m", WithCache(cache), WithLogger(log.Nop()), WithMetrics(m))

	first, err := o.Generate(context.Background(), sampleInput(), nil)
	require.NoError(t, err)
	second, err := o.Generate(context.Background(), sampleInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 6, client.calls.Load())
	assert.Equal(t, 6, cache.Len())
	assert.Equal(t, 6.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("ai")))
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("m", "p"), CacheKey("m", "p"))
	assert.NotEqual(t, CacheKey("m", "p"), CacheKey("m2", "p"))
	assert.NotEqual(t, CacheKey("mp", ""), CacheKey("m", "p"))
	assert.Len(t, CacheKey("m", "p"), 64)

	var nilCache *Cache
	_, ok := nilCache.Get("m", "p")
	assert.False(t, ok)
	nilCache.Add("m", "p", "c")
	assert.Zero(t, nilCache.Len())
}

func TestRateLimitOption(t *testing.T) {
	o := New(&fakeClient{}, "m", WithRateLimit(2))
	require.NotNil(t, o.limiter)
	assert.Equal(t, 2, o.limiter.Burst())

	o = New(&fakeClient{}, "m", WithRateLimit(0))
	assert.Nil(t, o.limiter)
}

func TestPromptsEmbedSkeleton(t *testing.T) {
	in := sampleInput()

	rules := ProjectRulesPrompt(in)
	assert.Contains(t, rules, "# Project Rules: Shop")
	assert.Contains(t, rules, "Web -> API (HTTP REST/GraphQL)")
	assert.Contains(t, rules, "Payments")

	protocol := AgentProtocolPrompt(in)
	assert.Contains(t, protocol, "<<<SKELETON")

	spec := ComponentSpecPrompt(in.Nodes[1], in)
	assert.Contains(t, spec, `"API" (Backend)`)
	assert.Contains(t, spec, "Component tech stack: Go")

	assert.Equal(t, spec, PromptFor(Artifact{Kind: KindComponentSpec, NodeID: "n2"}, in))
	assert.Empty(t, PromptFor(Artifact{Kind: KindComponentSpec, NodeID: "missing"}, in))
}

func TestGenerateRateLimitPastDeadlineIsNotACancel(t *testing.T) {
	client := &fakeClient{}
	o := New(client, "m", WithLogger(log.Nop()), WithRateLimit(0.1))

	// One token is available; the next arrives 10s later, after the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	_, err := o.Generate(ctx, sampleInput(), nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "the limiter should fail without waiting for the deadline")
	assert.NoError(t, ctx.Err())
	assert.False(t, IsCancelled(err), "got %v", err)

	var ae *ArtifactError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ProviderCallFailed, ae.Kind)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestCachedArtifactsStillHonourCancellation(t *testing.T) {
	cache, err := NewCache(16)
	require.NoError(t, err)
	client := &fakeClient{streaming: true}
	o := New(client, "m", WithCache(cache), WithLogger(log.Nop()))

	_, err = o.Generate(context.Background(), sampleInput(), nil)
	require.NoError(t, err)
	require.Equal(t, 6, cache.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev := &streamEvents{}
	_, err = o.GenerateStreaming(ctx, sampleInput(), ev.callbacks())
	require.Error(t, err)
	assert.True(t, IsCancelled(err), "got %v", err)
	assert.Equal(t, []string{"start:" + ProjectRulesPath}, ev.order, "no document may complete")
	assert.Equal(t, progress.PhaseError, ev.progress[len(ev.progress)-1].Phase)

	_, err = o.Generate(ctx, sampleInput(), nil)
	assert.True(t, IsCancelled(err), "got %v", err)
	assert.EqualValues(t, 6, client.calls.Load())
}

func TestGenerateBulkCancelAfterLastArtifactSucceeds(t *testing.T) {
	client := &fakeClient{}
	o := New(client, "m", WithLogger(log.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	total := len(Artifacts(sampleInput()))
	done := 0
	res, err := o.Generate(ctx, sampleInput(), func(Artifact, string) {
		done++
		if done == total {
			cancel()
		}
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Len(t, res.ComponentSpecs, 4)
}

func TestGenerateBulkRecoversProviderPanic(t *testing.T) {
	client := &fakeClient{
		respond: func(ctx context.Context, prompt string) (string, error) {
			if strings.Contains(firstLine(prompt), `"API"`) {
				panic("nil map write")
			}
			return "content", nil
		},
	}
	o := New(client, "m", WithLogger(log.Nop()))

	_, err := o.Generate(context.Background(), sampleInput(), nil)
	require.Error(t, err)

	var ae *ArtifactError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ProviderCallFailed, ae.Kind)
	assert.Contains(t, err.Error(), "panic: nil map write")
}
