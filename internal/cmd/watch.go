package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
	"github.com/felixgeelhaar/blueprint/internal/events"
)

var watchCmd = &cobra.Command{
	Use:   "watch [run-id]",
	Short: "Follow export progress published on NATS",
	Long: `Print the progress events of exports started with --nats, or of a server
started with 'blueprint serve --nats'. With a run id the command exits when
that run finishes, with the run's exit code. Without one it follows every run
until interrupted.

Example:
  blueprint watch --nats nats://localhost:4222
  blueprint watch 3f6c0a6e-3b9e-4f0e-9a55-6f1b2f1e4a10 --nats nats://localhost:4222`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var (
	watchNATS   string
	watchTokens bool
)

func init() {
	watchCmd.Flags().StringVar(&watchNATS, "nats", "", "NATS server to subscribe to (default from config)")
	watchCmd.Flags().BoolVar(&watchTokens, "tokens", false, "also print generated text as it arrives")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := currentConfig()
	url := firstNonEmpty(watchNATS, cfg.Events.NATSURL)
	if url == "" {
		return berrors.NewConfigInvalidError("no NATS server: pass --nats or set events.nats_url")
	}

	nc, err := nats.Connect(url, nats.Name("blueprint-watch"))
	if err != nil {
		return ServerError(url, err)
	}
	defer nc.Drain() //nolint:errcheck

	runID := "*"
	if len(args) == 1 {
		runID = args[0]
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	w := &eventPrinter{out: cmd.OutOrStdout(), tokens: watchTokens, single: runID != "*"}
	sub, err := events.SubscribeRun(nc, cfg.Events.SubjectPrefix, runID, func(_ context.Context, e events.Event) {
		if w.print(e) {
			cancel()
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	if err := nc.Flush(); err != nil {
		return ServerError(url, err)
	}

	appLogger.Info("watching export events", "nats", url, "run_id", runID)
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s on %s (Ctrl+C to stop)\n", runID, url)

	<-ctx.Done()
	if err := w.result(); err != nil {
		return err
	}
	if cmd.Context().Err() != nil && runID != "*" {
		return cmd.Context().Err()
	}
	return nil
}

// eventPrinter renders events one line each. With single set, the first
// finished event ends the watch.
type eventPrinter struct {
	out    io.Writer
	tokens bool
	single bool

	mu       sync.Mutex
	finished *events.Event
}

// print writes e and reports whether the watch is over.
func (p *eventPrinter) print(e events.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	prefix := ""
	if !p.single {
		prefix = shortRunID(e.RunID) + " "
	}
	switch e.Type {
	case events.TypeFileStart:
		fmt.Fprintf(p.out, "%s▶ %s\n", prefix, e.Path)
	case events.TypeTokens:
		if p.tokens {
			fmt.Fprint(p.out, e.Tokens)
		}
	case events.TypeFileComplete:
		if p.tokens {
			fmt.Fprintln(p.out)
		}
		fmt.Fprintf(p.out, "%s✓ %s (%d bytes)\n", prefix, e.Path, len(e.Content))
	case events.TypeProgress:
		if e.Progress != nil && e.Progress.Error != "" {
			fmt.Fprintf(p.out, "%s✗ %s\n", prefix, e.Progress.Error)
		}
	case events.TypeFinished:
		switch {
		case e.OK:
			fmt.Fprintf(p.out, "%s✓ finished: %s (%s mode)\n", prefix, e.Path, e.Mode)
		case e.Cancelled:
			fmt.Fprintf(p.out, "%s⚠ cancelled\n", prefix)
		default:
			fmt.Fprintf(p.out, "%s✗ failed: %s\n", prefix, e.Error)
		}
		if p.single {
			p.finished = &e
			return true
		}
	}
	return false
}

// result converts the finished event of a single run into an error.
func (p *eventPrinter) result() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished == nil || p.finished.OK {
		return nil
	}
	return exportOutcome{
		Error:     p.finished.Error,
		Code:      berrors.ErrorCode(p.finished.Code),
		Cancelled: p.finished.Cancelled,
	}.err()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
