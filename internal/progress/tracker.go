// Package progress models the lifecycle of a streaming blueprint generation
// run and renders it for terminals.
package progress

import (
	"errors"
	"fmt"
	"sync"
)

// Phase is the coarse stage of a generation run.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseProjectRules   Phase = "generating-project-rules"
	PhaseAgentProtocol  Phase = "generating-agent-protocol"
	PhaseComponentSpecs Phase = "generating-component-specs"
	PhaseComplete       Phase = "complete"
	PhaseError          Phase = "error"
)

var phaseOrder = []Phase{PhaseIdle, PhaseProjectRules, PhaseAgentProtocol, PhaseComponentSpecs, PhaseComplete}

// Rank returns the position of p in the forward sequence. PhaseError ranks
// after everything so it is reachable from any state.
func (p Phase) Rank() int {
	for i, ph := range phaseOrder {
		if ph == p {
			return i
		}
	}
	if p == PhaseError {
		return len(phaseOrder)
	}
	return -1
}

// Terminal reports whether no further transitions are allowed.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// Phases returns the forward sequence, idle through complete.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// Progress is a point-in-time view of a run.
type Progress struct {
	Phase          Phase   `json:"phase"`
	CurrentFile    *string `json:"currentFile,omitempty"`
	FilesCompleted int     `json:"filesCompleted"`
	TotalFiles     int     `json:"totalFiles"`
	Error          string  `json:"error,omitempty"`
}

// Fraction returns completion in [0, 1].
func (p Progress) Fraction() float64 {
	if p.TotalFiles <= 0 {
		if p.Phase == PhaseComplete {
			return 1
		}
		return 0
	}
	return float64(p.FilesCompleted) / float64(p.TotalFiles)
}

func (p Progress) clone() Progress {
	if p.CurrentFile != nil {
		name := *p.CurrentFile
		p.CurrentFile = &name
	}
	return p
}

// ErrInvalidTransition is returned for any transition the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid progress transition")

// Tracker owns the Progress of one run. Phases only move forward one step at
// a time, FilesCompleted never decreases, and complete and error are terminal.
// Every accepted change is reported to the listener with a snapshot.
type Tracker struct {
	notify   sync.Mutex // orders listener calls
	mu       sync.Mutex
	p        Progress
	listener func(Progress)
}

// NewTracker returns an idle tracker. listener may be nil.
func NewTracker(listener func(Progress)) *Tracker {
	return &Tracker{p: Progress{Phase: PhaseIdle}, listener: listener}
}

// Start sets the number of files the run will produce.
func (t *Tracker) Start(total int) error {
	if total < 0 {
		return fmt.Errorf("%w: negative total %d", ErrInvalidTransition, total)
	}
	return t.update(func(p *Progress) error {
		if p.Phase != PhaseIdle {
			return fmt.Errorf("%w: start from %s", ErrInvalidTransition, p.Phase)
		}
		p.TotalFiles = total
		return nil
	})
}

// BeginPhase advances to next, which must directly follow the current phase.
// Re-entering the current phase is a no-op.
func (t *Tracker) BeginPhase(next Phase) error {
	if next == PhaseComplete || next == PhaseError {
		return fmt.Errorf("%w: use Complete or Fail for %s", ErrInvalidTransition, next)
	}
	t.mu.Lock()
	if t.p.Phase == next {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	return t.update(func(p *Progress) error {
		if p.Phase.Terminal() || next.Rank() != p.Phase.Rank()+1 {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Phase, next)
		}
		p.Phase = next
		p.CurrentFile = nil
		return nil
	})
}

// BeginFile marks name as the file in flight.
func (t *Tracker) BeginFile(name string) error {
	return t.update(func(p *Progress) error {
		if p.Phase == PhaseIdle || p.Phase.Terminal() {
			return fmt.Errorf("%w: begin file in %s", ErrInvalidTransition, p.Phase)
		}
		p.CurrentFile = &name
		return nil
	})
}

// CompleteFile counts the file in flight as done.
func (t *Tracker) CompleteFile() error {
	return t.update(func(p *Progress) error {
		if p.Phase == PhaseIdle || p.Phase.Terminal() {
			return fmt.Errorf("%w: complete file in %s", ErrInvalidTransition, p.Phase)
		}
		if p.FilesCompleted >= p.TotalFiles {
			return fmt.Errorf("%w: %d of %d files already complete", ErrInvalidTransition, p.FilesCompleted, p.TotalFiles)
		}
		p.FilesCompleted++
		p.CurrentFile = nil
		return nil
	})
}

// Complete ends the run successfully. All files must be accounted for.
func (t *Tracker) Complete() error {
	return t.update(func(p *Progress) error {
		if p.Phase != PhaseComponentSpecs {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Phase, PhaseComplete)
		}
		if p.FilesCompleted != p.TotalFiles {
			return fmt.Errorf("%w: %d of %d files complete", ErrInvalidTransition, p.FilesCompleted, p.TotalFiles)
		}
		p.Phase = PhaseComplete
		p.CurrentFile = nil
		return nil
	})
}

// Fail moves the run to the error phase. It is a no-op once terminal.
func (t *Tracker) Fail(err error) {
	_ = t.update(func(p *Progress) error {
		if p.Phase.Terminal() {
			return errTerminal
		}
		p.Phase = PhaseError
		if err != nil {
			p.Error = err.Error()
		} else {
			p.Error = "unknown error"
		}
		return nil
	})
}

var errTerminal = errors.New("terminal")

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.p.clone()
}

func (t *Tracker) update(fn func(p *Progress) error) error {
	t.notify.Lock()
	defer t.notify.Unlock()

	t.mu.Lock()
	if err := fn(&t.p); err != nil {
		t.mu.Unlock()
		if errors.Is(err, errTerminal) {
			return nil
		}
		return err
	}
	snap := t.p.clone()
	t.mu.Unlock()

	if t.listener != nil {
		t.listener(snap)
	}
	return nil
}
