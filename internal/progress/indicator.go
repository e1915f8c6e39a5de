package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Indicator renders generation progress to a terminal. In CI mode it prints
// one line per event instead of redrawing a spinner line.
type Indicator struct {
	writer      io.Writer
	state       Progress
	haveState   bool
	lastPhase   Phase
	lastDone    int
	startTime   time.Time
	mu          sync.Mutex
	showSpinner bool
	spinnerIdx  int
	stopChan    chan struct{}
	stopOnce    sync.Once
	isCI        bool
}

// Config holds configuration for progress indicator
type Config struct {
	Writer      io.Writer
	ShowSpinner bool
	IsCI        bool // Set to true in CI/CD environments to disable fancy output
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewIndicator creates a new progress indicator
func NewIndicator(cfg Config) *Indicator {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}

	if !cfg.IsCI {
		cfg.IsCI = os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
	}

	return &Indicator{
		writer:      cfg.Writer,
		startTime:   time.Now(),
		lastPhase:   PhaseIdle,
		showSpinner: cfg.ShowSpinner && !cfg.IsCI,
		stopChan:    make(chan struct{}),
		isCI:        cfg.IsCI,
	}
}

// Start begins the spinner animation when enabled.
func (p *Indicator) Start() {
	if p.showSpinner {
		go p.spinnerLoop()
	}
}

// Stop stops the progress indicator
func (p *Indicator) Stop() {
	p.stopOnce.Do(func() {
		if p.showSpinner {
			close(p.stopChan)
			fmt.Fprintf(p.writer, "\r%s\r", strings.Repeat(" ", 80))
		}
	})
}

func (p *Indicator) spinnerLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.mu.Lock()
			if p.haveState {
				p.renderProgress()
			}
			p.spinnerIdx = (p.spinnerIdx + 1) % len(spinnerFrames)
			p.mu.Unlock()
		}
	}
}

// Update records a new snapshot. It has the signature of a Tracker listener.
func (p *Indicator) Update(state Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = state.clone()
	p.haveState = true

	if p.isCI {
		if state.Phase != p.lastPhase {
			p.printPhase(state)
		}
		if state.FilesCompleted > p.lastDone {
			fmt.Fprintf(p.writer, "✓ %d/%d files\n", state.FilesCompleted, state.TotalFiles)
		}
	}
	p.lastPhase = state.Phase
	p.lastDone = state.FilesCompleted
}

func (p *Indicator) printPhase(state Progress) {
	switch state.Phase {
	case PhaseError:
		fmt.Fprintf(p.writer, "✗ %s: %s\n", state.Phase, state.Error)
	case PhaseComplete:
		fmt.Fprintf(p.writer, "✓ %s\n", state.Phase)
	default:
		fmt.Fprintf(p.writer, "▶ %s\n", state.Phase)
	}
}

func (p *Indicator) renderProgress() {
	fraction := p.state.Fraction()
	elapsed := time.Since(p.startTime)

	var eta string
	if fraction > 0 && fraction < 1.0 {
		totalEstimated := time.Duration(float64(elapsed) / fraction)
		eta = fmt.Sprintf(" | ETA: %s", formatDuration(totalEstimated-elapsed))
	}

	barWidth := 30
	filled := int(float64(barWidth) * fraction)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	current := ""
	if p.state.CurrentFile != nil {
		current = " | " + *p.state.CurrentFile
	}

	fmt.Fprintf(p.writer, "\r%s [%s] %d/%d files | %s%s | %s%s",
		spinnerFrames[p.spinnerIdx],
		bar,
		p.state.FilesCompleted,
		p.state.TotalFiles,
		p.state.Phase,
		current,
		formatDuration(elapsed),
		eta,
	)
}

// PrintSummary prints the final outcome of the run.
func (p *Indicator) PrintSummary() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.haveState {
		return
	}

	fmt.Fprintln(p.writer)
	fmt.Fprintln(p.writer, "═══════════════════════════════════════════════════════════")
	fmt.Fprintln(p.writer, "Generation Summary")
	fmt.Fprintln(p.writer, "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(p.writer, "Status:          %s\n", p.state.Phase)
	fmt.Fprintf(p.writer, "Files:           %d/%d\n", p.state.FilesCompleted, p.state.TotalFiles)
	fmt.Fprintf(p.writer, "Total Time:      %s\n", formatDuration(time.Since(p.startTime)))
	if p.state.Error != "" {
		fmt.Fprintf(p.writer, "Error:           %s\n", p.state.Error)
	}
	fmt.Fprintln(p.writer, "═══════════════════════════════════════════════════════════")
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
