// Package export packages a diagram into the blueprint archive. It checks the
// export preconditions, produces the documents from templates or through the
// AI orchestrator, and zips them in memory. Export never panics past itself:
// every failure comes back as a Result.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
	"github.com/felixgeelhaar/blueprint/internal/generate"
	"github.com/felixgeelhaar/blueprint/internal/log"
	"github.com/felixgeelhaar/blueprint/internal/metrics"
	"github.com/felixgeelhaar/blueprint/internal/provider"
	"github.com/felixgeelhaar/blueprint/internal/telemetry"
	"github.com/felixgeelhaar/blueprint/internal/template"
)

// MaxNodes is the largest diagram that can be exported.
const MaxNodes = 8

const genericFailure = "Export failed. Please try again."

// Mode is how the replaceable documents were produced.
type Mode string

const (
	ModeTemplate Mode = "template"
	ModeAI       Mode = "ai"
)

// AIOptions select a provider for AI generation.
type AIOptions struct {
	UseAI    bool
	Provider string
	APIKey   string
	ModelID  string
	BaseURL  string
}

// Complete reports whether AI generation can run. Anything partial falls
// back to templates.
func (a *AIOptions) Complete() bool {
	if a == nil || !a.UseAI {
		return false
	}
	return strings.TrimSpace(a.Provider) != "" &&
		strings.TrimSpace(a.APIKey) != "" &&
		strings.TrimSpace(a.ModelID) != ""
}

func (a *AIOptions) settings() provider.Settings {
	return provider.Settings{
		Name:    a.Provider,
		APIKey:  a.APIKey,
		Model:   a.ModelID,
		BaseURL: a.BaseURL,
	}
}

// Options describe one export.
type Options struct {
	ProjectName string
	OutOfScope  []string
	AI          *AIOptions
	// Now stamps diagram.json and the archive entries. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) mode() Mode {
	if o.AI.Complete() {
		return ModeAI
	}
	return ModeTemplate
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Result is the outcome of an export. On success Archive and Filename are
// set; otherwise Error holds one human-readable sentence. Cancelled marks a
// user-initiated stop, which callers should not render as a failure.
type Result struct {
	OK        bool
	Archive   []byte
	Filename  string
	Error     string
	Code      berrors.ErrorCode
	Cancelled bool
	Mode      Mode
}

func (r Result) outcome() string {
	switch {
	case r.OK:
		return "ok"
	case r.Cancelled:
		return "cancelled"
	default:
		return "error"
	}
}

// Exporter builds blueprint archives.
type Exporter struct {
	providerFactory provider.Factory
	logger          *log.Logger
	metrics         *metrics.Metrics
	cache           *generate.Cache
	rps             float64
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithProviderFactory replaces the function that builds provider clients.
func WithProviderFactory(f provider.Factory) Option {
	return func(e *Exporter) { e.providerFactory = f }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// WithMetrics records export metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Exporter) { e.metrics = m }
}

// WithCache shares an AI response cache across exports.
func WithCache(c *generate.Cache) Option {
	return func(e *Exporter) { e.cache = c }
}

// WithRateLimit paces provider requests. Zero disables pacing.
func WithRateLimit(rps float64) Option {
	return func(e *Exporter) { e.rps = rps }
}

// New creates an Exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{providerFactory: provider.DefaultFactory}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.DefaultLogger()
	}
	return e
}

// CheckPreconditions rejects diagrams that cannot be exported. It runs before
// any generation or network work.
func CheckPreconditions(nodes []diagram.Node) error {
	switch {
	case len(nodes) == 0:
		return berrors.NewNoComponentsError()
	case len(nodes) > MaxNodes:
		return berrors.NewTooManyComponentsError(MaxNodes, len(nodes))
	}
	return nil
}

// Export generates every document and returns the archive.
func (e *Exporter) Export(ctx context.Context, nodes []diagram.Node, edges []diagram.Edge, opts Options) Result {
	return e.run(ctx, nodes, edges, opts, nil)
}

// ExportStreaming is Export with progress reported through cb. AI documents
// are generated one at a time; template documents are replayed through cb.
func (e *Exporter) ExportStreaming(ctx context.Context, nodes []diagram.Node, edges []diagram.Edge, opts Options, cb generate.Callbacks) Result {
	return e.run(ctx, nodes, edges, opts, &cb)
}

func (e *Exporter) run(ctx context.Context, nodes []diagram.Node, edges []diagram.Edge, opts Options, cb *generate.Callbacks) (res Result) {
	start := time.Now()
	mode := opts.mode()
	ctx, span := telemetry.StartExportSpan(ctx, string(mode), len(nodes))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("export panicked", "panic", fmt.Sprint(r), "mode", mode)
			res = e.fail(mode, berrors.New(berrors.ErrCodeExportUnexpectedPanic, ""))
		}
		if res.OK {
			telemetry.RecordSuccess(span)
		} else {
			telemetry.RecordError(span, errors.New(res.Error))
			e.metrics.RecordError(string(res.Code))
		}
		e.metrics.RecordExport(string(mode), res.outcome(), time.Since(start), len(nodes), len(res.Archive))
	}()

	if err := CheckPreconditions(nodes); err != nil {
		return e.fail(mode, err)
	}
	if err := diagram.ValidateGraph(nodes, edges); err != nil {
		return e.fail(mode, err)
	}

	in := template.Input{
		Nodes:       nodes,
		Edges:       edges,
		ProjectName: opts.ProjectName,
		OutOfScope:  opts.OutOfScope,
	}
	e.logger.Info("export started",
		"project", template.ProjectTitle(opts.ProjectName),
		"mode", mode,
		"nodes", len(nodes),
		"edges", len(edges),
	)

	docs, err := e.documents(ctx, in, opts, mode, cb)
	if err != nil {
		return e.fail(mode, err)
	}

	now := opts.now()
	entries, err := Entries(in, docs, now)
	if err != nil {
		return e.fail(mode, packagingError(err))
	}
	archive, err := WriteArchive(entries, now)
	if err != nil {
		return e.fail(mode, packagingError(err))
	}

	e.logger.Info("export finished",
		"mode", mode,
		"nodes", len(nodes),
		"bytes", len(archive),
		"duration", time.Since(start),
	)
	return Result{
		OK:       true,
		Archive:  archive,
		Filename: ArchiveFilename(opts.ProjectName),
		Mode:     mode,
	}
}

func (e *Exporter) documents(ctx context.Context, in template.Input, opts Options, mode Mode, cb *generate.Callbacks) (*template.Result, error) {
	if mode == ModeTemplate {
		docs := template.Generate(in)
		if cb != nil {
			if err := generate.Replay(in, docs, *cb); err != nil {
				return nil, err
			}
		}
		return docs, nil
	}

	client, err := e.providerFactory(ctx, opts.AI.settings())
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			e.logger.WithError(closeErr).Warn("failed to close provider client")
		}
	}()

	orch := generate.New(client, opts.AI.ModelID,
		generate.WithLogger(e.logger),
		generate.WithMetrics(e.metrics),
		generate.WithCache(e.cache),
		generate.WithRateLimit(e.rps),
	)
	if cb != nil {
		// A partial result is never packaged.
		return orch.GenerateStreaming(ctx, in, *cb)
	}
	return orch.Generate(ctx, in, nil)
}

func packagingError(err error) error {
	return berrors.Wrap(berrors.ErrCodeExportPackaging, "Failed to package the blueprint archive.", err)
}

// fail converts err into a failed Result and logs it. Cancellations are
// logged at Info.
func (e *Exporter) fail(mode Mode, err error) Result {
	msg, code, cancelled := describe(err)
	if cancelled {
		e.logger.Info("export cancelled", "mode", mode)
	} else {
		e.logger.WithError(err).Error("export failed", "mode", mode, "error_code", code)
	}
	return Result{
		Error:     msg,
		Code:      code,
		Cancelled: cancelled,
		Mode:      mode,
	}
}

func describe(err error) (string, berrors.ErrorCode, bool) {
	var ae *generate.ArtifactError
	if errors.As(err, &ae) {
		if ae.Kind == generate.Cancelled {
			return "Export cancelled.", berrors.ErrCodeExportCancelled, true
		}
		return "AI generation failed: " + ae.Error(), berrors.ErrCodeExportGeneration, false
	}

	var ve *diagram.ValidationError
	if errors.As(err, &ve) {
		return ve.Error(), berrors.CodeOf(ve), false
	}

	var coded *berrors.Error
	if errors.As(err, &coded) {
		msg := coded.Message
		if msg == "" {
			msg = genericFailure
		}
		return msg, coded.Code, false
	}

	if err.Error() != "" {
		return err.Error(), berrors.ErrCodeExportGeneration, false
	}
	return genericFailure, berrors.ErrCodeExportGeneration, false
}
