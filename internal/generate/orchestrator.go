// Package generate produces the AI-written blueprint documents. It asks a
// provider to fill the same skeletons the template package renders, either
// all at once under a concurrency bound or one at a time with progress events.
package generate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/blueprint/internal/log"
	"github.com/felixgeelhaar/blueprint/internal/metrics"
	"github.com/felixgeelhaar/blueprint/internal/progress"
	"github.com/felixgeelhaar/blueprint/internal/provider"
	"github.com/felixgeelhaar/blueprint/internal/telemetry"
	"github.com/felixgeelhaar/blueprint/internal/template"
)

// MaxConcurrentRequests bounds in-flight provider calls in bulk mode.
const MaxConcurrentRequests = 3

// Callbacks receive streaming-mode events. Any of them may be nil. OnToken
// can be called at high frequency and must return quickly.
type Callbacks struct {
	OnFileStart    func(a Artifact)
	OnToken        func(a Artifact, token string)
	OnFileComplete func(a Artifact, content string)
	OnProgress     func(p progress.Progress)
}

// Orchestrator drives one provider client.
type Orchestrator struct {
	client   provider.ProviderClient
	model    string
	provider string
	cache    *Cache
	limiter  *rate.Limiter
	logger   *log.Logger
	metrics  *metrics.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache reuses responses for identical prompts.
func WithCache(c *Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithRateLimit paces provider calls to rps requests per second. A
// non-positive rps disables pacing.
func WithRateLimit(rps float64) Option {
	return func(o *Orchestrator) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records provider and artifact metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator that asks client for model.
func New(client provider.ProviderClient, model string, opts ...Option) *Orchestrator {
	o := &Orchestrator{client: client, model: model}
	if info := client.GetInfo(); info != nil {
		o.provider = info.Name
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.DefaultLogger()
	}
	return o
}

// Generate requests every artifact concurrently, at most
// MaxConcurrentRequests at a time. The first failure cancels the rest and is
// returned. onComplete, if set, fires once per finished artifact and is
// never called concurrently.
func (o *Orchestrator) Generate(ctx context.Context, in template.Input, onComplete func(Artifact, string)) (*template.Result, error) {
	rb := newResultBuilder(len(in.Nodes))
	if err := o.generateAll(ctx, in, rb, onComplete); err != nil {
		return nil, err
	}
	return rb.res, nil
}

func (o *Orchestrator) generateAll(ctx context.Context, in template.Input, rb *resultBuilder, onComplete func(Artifact, string)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentRequests)

	var mu sync.Mutex
	arts := Artifacts(in)
	scheduled := 0
	for _, a := range arts {
		if gctx.Err() != nil {
			break
		}
		scheduled++
		a := a
		prompt := PromptFor(a, in)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("artifact generation panicked", "artifact", a.Name, "panic", fmt.Sprint(r))
					err = &ArtifactError{Kind: ProviderCallFailed, Artifact: a.Name, Cause: fmt.Errorf("panic: %v", r)}
				}
			}()
			content, err := o.call(gctx, a, prompt, false, nil)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			rb.set(a, content)
			if onComplete != nil {
				onComplete(a, content)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil && scheduled < len(arts) {
		// Cancelled before every artifact was scheduled.
		err = &ArtifactError{Kind: Cancelled, Artifact: arts[scheduled].Name, Cause: ctx.Err()}
	}
	return err
}

// GenerateStreaming generates artifacts one at a time in Artifacts order and
// reports progress through cb. Providers without token streaming are driven
// through Generate and the per-file events are replayed in order afterwards.
// On failure the documents finished so far are returned with the error.
func (o *Orchestrator) GenerateStreaming(ctx context.Context, in template.Input, cb Callbacks) (*template.Result, error) {
	arts := Artifacts(in)
	rb := newResultBuilder(len(in.Nodes))
	tracker := progress.NewTracker(cb.OnProgress)
	if err := tracker.Start(len(arts)); err != nil {
		return rb.res, err
	}

	fail := func(err error) (*template.Result, error) {
		tracker.Fail(err)
		if IsCancelled(err) {
			o.logger.Info("generation cancelled", "provider", o.provider, "reason", err.Error())
		} else {
			o.logger.WithError(err).Error("generation failed", "provider", o.provider, "model", o.model)
		}
		return rb.res, err
	}

	caps := o.client.GetCapabilities()
	if caps == nil || !caps.SupportsStreaming {
		if err := tracker.BeginPhase(progress.PhaseProjectRules); err != nil {
			return fail(err)
		}
		if err := o.generateAll(ctx, in, rb, nil); err != nil {
			return fail(err)
		}
		for _, a := range arts {
			if err := replay(tracker, a, contentOf(rb.res, a), cb); err != nil {
				return fail(err)
			}
		}
		return o.finish(tracker, rb, fail)
	}

	for _, a := range arts {
		if err := tracker.BeginPhase(a.Phase()); err != nil {
			return fail(err)
		}
		if err := tracker.BeginFile(a.Path); err != nil {
			return fail(err)
		}
		if cb.OnFileStart != nil {
			cb.OnFileStart(a)
		}

		var onToken func(string)
		if cb.OnToken != nil {
			a := a
			onToken = func(tok string) { cb.OnToken(a, tok) }
		}
		content, err := o.call(ctx, a, PromptFor(a, in), true, onToken)
		if err != nil {
			return fail(err)
		}

		rb.set(a, content)
		if cb.OnFileComplete != nil {
			cb.OnFileComplete(a, content)
		}
		if err := tracker.CompleteFile(); err != nil {
			return fail(err)
		}
	}
	return o.finish(tracker, rb, fail)
}

func replay(tracker *progress.Tracker, a Artifact, content string, cb Callbacks) error {
	if err := tracker.BeginPhase(a.Phase()); err != nil {
		return err
	}
	if err := tracker.BeginFile(a.Path); err != nil {
		return err
	}
	if cb.OnFileStart != nil {
		cb.OnFileStart(a)
	}
	if cb.OnFileComplete != nil {
		cb.OnFileComplete(a, content)
	}
	return tracker.CompleteFile()
}

func (o *Orchestrator) finish(tracker *progress.Tracker, rb *resultBuilder, fail func(error) (*template.Result, error)) (*template.Result, error) {
	// A diagram without nodes has no component specs but still passes through
	// the phase.
	if err := tracker.BeginPhase(progress.PhaseComponentSpecs); err != nil {
		return fail(err)
	}
	if err := tracker.Complete(); err != nil {
		return fail(err)
	}
	return rb.res, nil
}

// Replay reports an already generated result through cb as if it had been
// produced file by file. Template exports use it to drive streaming UIs.
func Replay(in template.Input, res *template.Result, cb Callbacks) error {
	arts := Artifacts(in)
	tracker := progress.NewTracker(cb.OnProgress)
	if err := tracker.Start(len(arts)); err != nil {
		return err
	}
	for _, a := range arts {
		if err := replay(tracker, a, contentOf(res, a), cb); err != nil {
			tracker.Fail(err)
			return err
		}
	}
	if err := tracker.BeginPhase(progress.PhaseComponentSpecs); err != nil {
		return err
	}
	return tracker.Complete()
}

func contentOf(res *template.Result, a Artifact) string {
	switch a.Kind {
	case KindProjectRules:
		return res.ProjectRules
	case KindAgentProtocol:
		return res.AgentProtocol
	default:
		return res.ComponentSpecs[a.NodeID]
	}
}

// call produces one artifact, consulting the cache and limiter first.
func (o *Orchestrator) call(ctx context.Context, a Artifact, prompt string, stream bool, onToken func(string)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ArtifactError{Kind: Cancelled, Artifact: a.Name, Cause: err}
	}
	if content, ok := o.cache.Get(o.model, prompt); ok {
		if o.metrics != nil {
			o.metrics.CacheHits.WithLabelValues("ai").Inc()
		}
		o.logger.Debug("artifact served from cache", "artifact", a.Name, "kind", a.Kind)
		if onToken != nil {
			onToken(content)
		}
		o.metrics.RecordArtifact(string(a.Kind), "cache", 0, len(content), nil)
		return content, nil
	}
	if o.cache != nil && o.metrics != nil {
		o.metrics.CacheMisses.WithLabelValues("ai").Inc()
	}

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			// Wait also fails when the deadline comes before the next token.
			if ctx.Err() != nil {
				return "", &ArtifactError{Kind: Cancelled, Artifact: a.Name, Cause: ctx.Err()}
			}
			return "", &ArtifactError{Kind: ProviderCallFailed, Artifact: a.Name, Cause: fmt.Errorf("rate limit: %w", err)}
		}
	}

	ctx, span := telemetry.StartArtifactSpan(ctx, string(a.Kind), a.Name)
	defer span.End()
	ctx, pspan := telemetry.StartProviderSpan(ctx, o.provider, operation(stream))
	pspan.SetAttributes(attribute.String("model", o.model))

	if o.metrics != nil {
		o.metrics.ProviderInFlight.Inc()
		defer o.metrics.ProviderInFlight.Dec()
	}

	start := time.Now()
	var content string
	var err error
	if stream {
		content, err = CallAIStream(ctx, o.client, prompt, o.model, a.Name, onToken)
	} else {
		content, err = CallAI(ctx, o.client, prompt, o.model, a.Name)
	}
	elapsed := time.Since(start)

	o.metrics.RecordProviderCall(o.provider, o.model, elapsed, err)
	o.metrics.RecordArtifact(string(a.Kind), "ai", elapsed, len(content), err)

	if err != nil {
		telemetry.RecordError(pspan, err)
		telemetry.RecordError(span, err)
		pspan.End()
		if o.metrics != nil {
			var ae *ArtifactError
			if errors.As(err, &ae) {
				o.metrics.ProviderErrors.WithLabelValues(o.provider, o.model, string(ae.Kind)).Inc()
			}
		}
		return "", err
	}

	telemetry.RecordSuccess(pspan, attribute.Int("bytes", len(content)))
	telemetry.RecordDuration(pspan, "call", elapsed)
	pspan.End()
	telemetry.RecordSuccess(span)

	o.cache.Add(o.model, prompt, content)
	o.logger.Debug("artifact generated",
		"artifact", a.Name,
		"kind", a.Kind,
		"source", "ai",
		"bytes", len(content),
		"duration", elapsed,
	)
	return content, nil
}

func operation(stream bool) string {
	if stream {
		return "stream"
	}
	return "generate"
}
