package events

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/blueprint/internal/generate"
	"github.com/felixgeelhaar/blueprint/internal/log"
	"github.com/felixgeelhaar/blueprint/internal/progress"
)

// Forwarder turns generation callbacks into events for one run. Tokens are
// batched per file before they are published. Publish failures are logged and
// never interrupt generation.
type Forwarder struct {
	ctx    context.Context
	sink   Sink
	runID  string
	logger *log.Logger
	now    func() time.Time

	batcher *progress.TokenBatcher

	mu      sync.Mutex
	current generate.Artifact
}

// NewForwarder creates a forwarder that publishes to sink under runID.
func NewForwarder(ctx context.Context, sink Sink, runID string, logger *log.Logger) *Forwarder {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	f := &Forwarder{
		ctx:    ctx,
		sink:   sink,
		runID:  runID,
		logger: logger,
		now:    time.Now,
	}
	f.batcher = progress.NewTokenBatcher(progress.DefaultFlushInterval, f.flushTokens)
	return f
}

func (f *Forwarder) publish(e Event) {
	e.RunID = f.runID
	e.Time = f.now()
	if err := f.sink.Publish(f.ctx, e); err != nil {
		f.logger.WithError(err).Warn("failed to publish event", "run_id", f.runID, "type", e.Type)
	}
}

func (f *Forwarder) flushTokens(tokens string) {
	f.mu.Lock()
	a := f.current
	f.mu.Unlock()
	f.publish(Event{Type: TypeTokens, Kind: string(a.Kind), Path: a.Path, Tokens: tokens})
}

// Callbacks wraps next so that every event also reaches the sink. next's
// callbacks run first.
func (f *Forwarder) Callbacks(next generate.Callbacks) generate.Callbacks {
	return generate.Callbacks{
		OnFileStart: func(a generate.Artifact) {
			if next.OnFileStart != nil {
				next.OnFileStart(a)
			}
			f.mu.Lock()
			f.current = a
			f.mu.Unlock()
			f.publish(Event{Type: TypeFileStart, Kind: string(a.Kind), Path: a.Path})
		},
		OnToken: func(a generate.Artifact, token string) {
			if next.OnToken != nil {
				next.OnToken(a, token)
			}
			f.batcher.Add(token)
		},
		OnFileComplete: func(a generate.Artifact, content string) {
			if next.OnFileComplete != nil {
				next.OnFileComplete(a, content)
			}
			f.batcher.Flush()
			f.publish(Event{Type: TypeFileComplete, Kind: string(a.Kind), Path: a.Path, Content: content})
		},
		OnProgress: func(p progress.Progress) {
			if next.OnProgress != nil {
				next.OnProgress(p)
			}
			f.publish(Event{Type: TypeProgress, Progress: &p})
		},
	}
}

// Outcome is the final state of a run.
type Outcome struct {
	OK        bool
	Filename  string
	Error     string
	Code      string
	Cancelled bool
	Mode      string
}

// Finish flushes pending tokens and publishes the run's outcome.
func (f *Forwarder) Finish(o Outcome) {
	f.batcher.Stop()
	f.publish(Event{
		Type:      TypeFinished,
		OK:        o.OK,
		Path:      o.Filename,
		Error:     o.Error,
		Code:      o.Code,
		Cancelled: o.Cancelled,
		Mode:      o.Mode,
	})
}
