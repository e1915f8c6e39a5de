package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/blueprint/internal/config"
	"github.com/felixgeelhaar/blueprint/internal/diagram"
	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
	"github.com/felixgeelhaar/blueprint/internal/events"
	"github.com/felixgeelhaar/blueprint/internal/export"
	"github.com/felixgeelhaar/blueprint/internal/generate"
	"github.com/felixgeelhaar/blueprint/internal/provider"
	"github.com/felixgeelhaar/blueprint/internal/publish"
	"github.com/felixgeelhaar/blueprint/internal/telemetry"
	"github.com/felixgeelhaar/blueprint/internal/template"
	"github.com/felixgeelhaar/blueprint/internal/tui"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/client"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/types"
)

var exportCmd = &cobra.Command{
	Use:   "export [diagram.json]",
	Short: "Package a diagram into a blueprint archive",
	Long: `Package a diagram into <project>-blueprint.zip: a quick-start guide, project
rules, an agent protocol, one spec per component, and the diagram itself.

By default the documents come from templates. With --ai they are written by
the configured provider; a provider, model and API key must all be set, or
the export falls back to templates.

--stream reports progress file by file, --tui shows it in a full-screen view.
Press q or ctrl+c in the view to cancel.

Example:
  blueprint export --in diagram.json --project "Shop"
  blueprint export --in diagram.json --project "Shop" --ai --tui
  blueprint export --in diagram.json --project "Shop" --exclude caching,payments
  blueprint export --in diagram.json --project "Shop" --publish-oci ghcr.io/acme/shop-blueprint:v1
  blueprint export --in diagram.json --project "Shop" --server http://localhost:8080 --stream`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var (
	exportIn         string
	exportProject    string
	exportOut        string
	exportExclude    []string
	exportForce      bool
	exportAI         bool
	exportProvider   string
	exportModel      string
	exportAPIKey     string
	exportBaseURL    string
	exportStream     bool
	exportTUI        bool
	exportPublishOCI string
	exportPublishS3  bool
	exportNATS       string
	exportServer     string
)

func init() {
	exportCmd.Flags().StringVarP(&exportIn, "in", "i", "diagram.json", `diagram.json to export ("-" reads stdin)`)
	exportCmd.Flags().StringVarP(&exportProject, "project", "p", "", "project name (prompted for in a terminal when missing)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "directory the archive is written to")
	exportCmd.Flags().StringSliceVar(&exportExclude, "exclude", nil, "out-of-scope concern ids (see 'blueprint scope')")
	exportCmd.Flags().BoolVarP(&exportForce, "force", "f", false, "overwrite an existing archive without asking")
	exportCmd.Flags().BoolVar(&exportAI, "ai", false, "write the documents with an AI provider")
	exportCmd.Flags().StringVar(&exportProvider, "provider", "", "AI provider: "+strings.Join(provider.Names(), ", "))
	exportCmd.Flags().StringVar(&exportModel, "model", "", "AI model id")
	exportCmd.Flags().StringVar(&exportAPIKey, "api-key", "", "AI provider API key (prefer BLUEPRINT_API_KEY)")
	exportCmd.Flags().StringVar(&exportBaseURL, "base-url", "", "AI provider base URL")
	exportCmd.Flags().BoolVar(&exportStream, "stream", false, "report progress file by file")
	exportCmd.Flags().BoolVar(&exportTUI, "tui", false, "show progress in a terminal UI")
	exportCmd.Flags().StringVar(&exportPublishOCI, "publish-oci", "", "also push the archive to this OCI reference")
	exportCmd.Flags().BoolVar(&exportPublishS3, "publish-s3", false, "also upload the archive to the configured object store")
	exportCmd.Flags().StringVar(&exportNATS, "nats", "", "publish progress events to this NATS server")
	exportCmd.Flags().StringVar(&exportServer, "server", "", "run the export on a blueprint server at this URL")

	rootCmd.AddCommand(exportCmd)
}

// exportOutcome is the result of a local or remote export.
type exportOutcome struct {
	OK        bool
	Archive   []byte
	Filename  string
	Mode      string
	Error     string
	Code      berrors.ErrorCode
	Cancelled bool
}

func (o exportOutcome) err() error {
	if o.OK {
		return nil
	}
	code := o.Code
	if code == "" {
		code = berrors.ErrCodeExportGeneration
		if o.Cancelled {
			code = berrors.ErrCodeExportCancelled
		}
	}
	return berrors.New(code, o.Error)
}

// exportRunner performs the export. cb is nil for a bulk export.
type exportRunner func(ctx context.Context, cb *generate.Callbacks) exportOutcome

func runExport(cmd *cobra.Command, args []string) error {
	cfg := currentConfig()
	in := exportIn
	if len(args) == 1 {
		in = args[0]
	}

	data, nodes, edges, err := loadDiagram(cmd, in)
	if err != nil {
		return err
	}
	if err := export.CheckPreconditions(nodes); err != nil {
		return err
	}

	guided := strings.TrimSpace(exportProject) == "" && tui.ShouldPrompt()
	project, err := resolveProject(in)
	if err != nil {
		return err
	}
	exclude, err := resolveExclude(guided)
	if err != nil {
		return err
	}
	ai, err := resolveAI(cfg)
	if err != nil {
		return err
	}
	opts := export.Options{
		ProjectName: project,
		OutOfScope:  exclude,
		AI:          ai,
	}

	filename := export.ArchiveFilename(project)
	if ok, err := confirmOverwrite(filepath.Join(exportOut, filename)); err != nil || !ok {
		if err != nil {
			return err
		}
		return berrors.New(berrors.ErrCodeExportCancelled, "Export cancelled.")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	ctx, span := telemetry.StartCommandSpan(ctx, "export")
	defer span.End()

	runID := uuid.NewString()
	logger := appLogger.With("run_id", runID)

	var run exportRunner
	if exportServer != "" {
		run = remoteExport(exportServer, data, opts)
	} else {
		run, err = localExport(cfg, nodes, edges, opts)
		if err != nil {
			return err
		}
	}

	sink, err := eventSink(cfg)
	if err != nil {
		return err
	}
	defer sink.Close() //nolint:errcheck
	if _, nop := sink.(events.NopSink); !nop {
		fmt.Fprintf(cmd.ErrOrStderr(), "Publishing progress as run %s (blueprint watch %s)\n", runID, runID)
	}
	fwd := events.NewForwarder(ctx, sink, runID, logger)

	mode := string(export.ModeTemplate)
	if ai != nil && (ai.Complete() || exportServer != "") {
		mode = string(export.ModeAI)
	}
	disp := newDisplay(cmd, project, mode, nodes, edges, opts, cancel)

	var cb *generate.Callbacks
	if _, nop := sink.(events.NopSink); disp != nil || !nop {
		c := fwd.Callbacks(generate.Callbacks{})
		if disp != nil {
			c = disp.callbacks(c)
		}
		cb = &c
	}
	outcome := run(ctx, cb)
	fwd.Finish(events.Outcome{
		OK:        outcome.OK,
		Filename:  outcome.Filename,
		Error:     outcome.Error,
		Code:      string(outcome.Code),
		Cancelled: outcome.Cancelled,
		Mode:      outcome.Mode,
	})
	if disp != nil {
		if err := disp.finish(outcome); err != nil {
			logger.Warn("progress display failed", "error", err)
		}
	}

	if !outcome.OK {
		telemetry.RecordError(span, outcome.err())
		return outcome.err()
	}

	publishers, err := exportPublishers(cfg)
	if err != nil {
		return err
	}
	results, err := publish.All(ctx, publishers, outcome.Filename, outcome.Archive, logger, appMetrics)
	for _, r := range results {
		if r.Err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %s\n", r.Target, r.Location)
		}
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)
	fmt.Fprintf(cmd.OutOrStdout(), "\nExported %d components (%s mode, %d bytes)\n", len(nodes), outcome.Mode, len(outcome.Archive))
	return nil
}

// resolveProject returns --project, prompting for it in a terminal.
func resolveProject(in string) (string, error) {
	if strings.TrimSpace(exportProject) != "" {
		return strings.TrimSpace(exportProject), nil
	}
	if !tui.ShouldPrompt() {
		return "", NewErrorWithSuggestions(
			`required flag "project" not set`,
			nil,
			`Pass a name: blueprint export --in `+in+` --project "My App"`,
		)
	}
	return tui.PromptForString(tui.Prompt{
		Message:     "Project name",
		Placeholder: "My App",
		Required:    true,
	})
}

// resolveExclude offers the out-of-scope catalog when the export is guided
// by prompts and --exclude was not given.
func resolveExclude(guided bool) ([]string, error) {
	if !guided || len(exportExclude) > 0 {
		return exportExclude, nil
	}
	items := template.OutOfScopeItems()
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return tui.PromptForMultiSelect("Concerns agents should not build (space to select, enter to skip)", ids)
}

// resolveAI merges the AI flags over the configured provider. It returns
// nil when --ai is not set.
func resolveAI(cfg *config.Config) (*export.AIOptions, error) {
	if !exportAI {
		return nil, nil
	}

	name := exportProvider
	if name == "" && tui.ShouldPrompt() && cfg.Provider.Name == "" {
		selected, err := tui.PromptForSelect("AI provider", provider.Names())
		if err != nil {
			return nil, err
		}
		name = selected
	}

	ai := &export.AIOptions{
		UseAI:    true,
		Provider: firstNonEmpty(name, cfg.Provider.Name),
		APIKey:   firstNonEmpty(exportAPIKey, cfg.Provider.APIKey),
		ModelID:  firstNonEmpty(exportModel, cfg.Provider.Model),
		BaseURL:  firstNonEmpty(exportBaseURL, cfg.Provider.BaseURL),
	}
	if exportServer == "" && !ai.Complete() {
		appLogger.Warn("AI options incomplete, using templates",
			"provider_set", ai.Provider != "",
			"model_set", ai.ModelID != "",
			"api_key_set", ai.APIKey != "",
		)
	}
	return ai, nil
}

// confirmOverwrite asks before replacing an existing archive in a terminal.
func confirmOverwrite(path string) (bool, error) {
	if exportForce {
		return true, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if !tui.ShouldPrompt() {
		return true, nil
	}
	return tui.PromptForConfirmation(fmt.Sprintf("%s exists. Overwrite?", path), false)
}

func localExport(cfg *config.Config, nodes []diagram.Node, edges []diagram.Edge, opts export.Options) (exportRunner, error) {
	exOpts := []export.Option{
		export.WithLogger(appLogger),
		export.WithMetrics(appMetrics),
		export.WithRateLimit(cfg.Provider.RequestsPerSecond),
	}
	if cfg.Cache.Enabled {
		cache, err := generate.NewCache(cfg.Cache.Size)
		if err != nil {
			return nil, berrors.NewConfigInvalidError(err.Error())
		}
		exOpts = append(exOpts, export.WithCache(cache))
	}
	if opts.AI != nil && opts.AI.Complete() {
		timeout := cfg.Provider.Timeout
		exOpts = append(exOpts, export.WithProviderFactory(func(ctx context.Context, s provider.Settings) (provider.ProviderClient, error) {
			if s.Timeout == 0 {
				s.Timeout = timeout
			}
			return provider.New(ctx, s)
		}))
	}
	exporter := export.New(exOpts...)

	return func(ctx context.Context, cb *generate.Callbacks) exportOutcome {
		var res export.Result
		if cb != nil {
			res = exporter.ExportStreaming(ctx, nodes, edges, opts, *cb)
		} else {
			res = exporter.Export(ctx, nodes, edges, opts)
		}
		return exportOutcome{
			OK:        res.OK,
			Archive:   res.Archive,
			Filename:  res.Filename,
			Mode:      string(res.Mode),
			Error:     res.Error,
			Code:      res.Code,
			Cancelled: res.Cancelled,
		}
	}, nil
}

func remoteExport(url string, data []byte, opts export.Options) exportRunner {
	req := &types.ExportRequest{
		Diagram:     data,
		ProjectName: opts.ProjectName,
		OutOfScope:  opts.OutOfScope,
	}
	if opts.AI != nil {
		req.AI = &types.AIOptions{
			Provider: opts.AI.Provider,
			Model:    opts.AI.ModelID,
			APIKey:   opts.AI.APIKey,
			BaseURL:  opts.AI.BaseURL,
		}
	}
	c := client.New(url)

	return func(ctx context.Context, cb *generate.Callbacks) exportOutcome {
		var (
			archive *client.Archive
			err     error
		)
		if cb != nil {
			archive, err = c.ExportStream(ctx, req, newEventReplayer(*cb).handle)
		} else {
			archive, err = c.Export(ctx, req)
		}
		if err == nil {
			return exportOutcome{OK: true, Archive: archive.Data, Filename: archive.Filename, Mode: archive.Mode}
		}

		var out exportOutcome
		err = remoteError(url, err)
		var coded *berrors.Error
		if errors.As(err, &coded) {
			out.Error, out.Code = coded.Message, coded.Code
		} else {
			out.Error = err.Error()
		}
		out.Cancelled = out.Code == berrors.ErrCodeExportCancelled || errors.Is(err, context.Canceled)
		return out
	}
}

// eventSink connects to NATS when --nats or events.nats_url is set.
func eventSink(cfg *config.Config) (events.Sink, error) {
	url := firstNonEmpty(exportNATS, cfg.Events.NATSURL)
	if url == "" {
		return events.NopSink{}, nil
	}
	sink, err := events.NewNATSSink(url, cfg.Events.SubjectPrefix)
	if err != nil {
		return nil, NewErrorWithSuggestions(
			fmt.Sprintf("Failed to connect to NATS at %s", url),
			err,
			"Check that the NATS server is running",
			"Drop --nats to export without progress events",
		)
	}
	return sink, nil
}

// exportPublishers always writes to --out, and adds the configured remote
// destinations.
func exportPublishers(cfg *config.Config) ([]publish.Publisher, error) {
	pubs := []publish.Publisher{&publish.FilePublisher{Dir: exportOut}}

	if ref := firstNonEmpty(exportPublishOCI, cfg.Publish.OCI.Reference); ref != "" {
		pubs = append(pubs, publish.NewOCIPublisher(publish.OCIOptions{
			Reference: ref,
			Insecure:  cfg.Publish.OCI.Insecure,
		}))
	}

	if exportPublishS3 {
		store := cfg.Publish.ObjectStore
		if store.Endpoint == "" {
			return nil, berrors.NewConfigInvalidError("--publish-s3 needs publish.object_store.endpoint in the config")
		}
		p, err := publish.NewObjectStorePublisher(publish.ObjectStoreConfig{
			Endpoint:  store.Endpoint,
			Bucket:    store.Bucket,
			AccessKey: store.AccessKey,
			SecretKey: store.SecretKey,
			Region:    store.Region,
			UseSSL:    store.UseSSL,
			Prefix:    store.Prefix,
		})
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	return pubs, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
