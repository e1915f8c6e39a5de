package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
	"github.com/felixgeelhaar/blueprint/internal/export"
	"github.com/felixgeelhaar/blueprint/internal/generate"
	"github.com/felixgeelhaar/blueprint/internal/progress"
	"github.com/felixgeelhaar/blueprint/internal/template"
	"github.com/felixgeelhaar/blueprint/internal/tui"
	"github.com/felixgeelhaar/blueprint/pkg/blueprint/types"
)

// display renders a streaming export.
type display interface {
	callbacks(next generate.Callbacks) generate.Callbacks
	finish(o exportOutcome) error
}

// newDisplay picks the progress display for the export flags. It returns nil
// for a bulk export.
func newDisplay(cmd *cobra.Command, project, mode string, nodes []diagram.Node, edges []diagram.Edge, opts export.Options, cancel func()) display {
	if exportTUI {
		if tui.IsInteractive() {
			in := template.Input{Nodes: nodes, Edges: edges, ProjectName: project, OutOfScope: opts.OutOfScope}
			var files []string
			for _, a := range generate.Artifacts(in) {
				files = append(files, a.Path)
			}
			adapter := tui.NewAdapter(tui.NewModel(project, mode, files, cancel))
			adapter.Start()
			return &tuiDisplay{adapter: adapter}
		}
		appLogger.Warn("not a terminal, falling back to line progress")
	}
	if exportTUI || exportStream {
		ind := progress.NewIndicator(progress.Config{
			Writer:      cmd.ErrOrStderr(),
			ShowSpinner: tui.IsInteractive(),
		})
		ind.Start()
		return &indicatorDisplay{ind: ind}
	}
	return nil
}

type tuiDisplay struct {
	adapter *tui.Adapter
}

func (d *tuiDisplay) callbacks(next generate.Callbacks) generate.Callbacks {
	return d.adapter.Callbacks(next)
}

func (d *tuiDisplay) finish(o exportOutcome) error {
	msg := tui.FinishedMsg{
		OK:        o.OK,
		Size:      len(o.Archive),
		Error:     o.Error,
		Cancelled: o.Cancelled,
	}
	if o.OK {
		msg.Path = filepath.Join(exportOut, o.Filename)
	}
	_, err := d.adapter.Finish(msg)
	return err
}

type indicatorDisplay struct {
	ind *progress.Indicator
}

func (d *indicatorDisplay) callbacks(next generate.Callbacks) generate.Callbacks {
	onProgress := next.OnProgress
	next.OnProgress = func(p progress.Progress) {
		if onProgress != nil {
			onProgress(p)
		}
		d.ind.Update(p)
	}
	return next
}

func (d *indicatorDisplay) finish(exportOutcome) error {
	d.ind.Stop()
	d.ind.PrintSummary()
	return nil
}

// eventReplayer feeds the events of a remote streaming export into local
// callbacks, so remote and local runs share one display.
type eventReplayer struct {
	cb      generate.Callbacks
	current generate.Artifact
}

func newEventReplayer(cb generate.Callbacks) *eventReplayer {
	return &eventReplayer{cb: cb}
}

func (r *eventReplayer) handle(e types.StreamEvent) {
	switch e.Type {
	case types.EventFileStart:
		r.current = generate.Artifact{Kind: generate.Kind(e.Kind), Name: e.Path, Path: e.Path}
		if r.cb.OnFileStart != nil {
			r.cb.OnFileStart(r.current)
		}
	case types.EventTokens:
		if r.cb.OnToken != nil {
			r.cb.OnToken(r.current, e.Tokens)
		}
	case types.EventFileComplete:
		a := r.current
		if e.Path != "" {
			a.Path, a.Name = e.Path, e.Path
		}
		if r.cb.OnFileComplete != nil {
			r.cb.OnFileComplete(a, e.Content)
		}
	case types.EventProgress:
		if e.Progress != nil && r.cb.OnProgress != nil {
			r.cb.OnProgress(progress.Progress{
				Phase:          progress.Phase(e.Progress.Phase),
				CurrentFile:    e.Progress.CurrentFile,
				FilesCompleted: e.Progress.FilesCompleted,
				TotalFiles:     e.Progress.TotalFiles,
				Error:          e.Progress.Error,
			})
		}
	}
}
