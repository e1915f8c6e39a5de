package tui

import (
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/blueprint/internal/generate"
	"github.com/felixgeelhaar/blueprint/internal/progress"
)

// Adapter bridges between a streaming export and the TUI
type Adapter struct {
	program *tea.Program
	batcher *progress.TokenBatcher

	mu      sync.Mutex
	current string

	done  chan struct{}
	final Model
	err   error
}

// NewAdapter creates the program for an export. opts are passed to
// tea.NewProgram, for example to redirect input and output in tests.
func NewAdapter(model Model, opts ...tea.ProgramOption) *Adapter {
	a := &Adapter{
		program: tea.NewProgram(model, opts...),
		done:    make(chan struct{}),
		final:   model,
	}
	a.batcher = progress.NewTokenBatcher(progress.DefaultFlushInterval, a.flushTokens)
	return a
}

// Start runs the program in the background.
func (a *Adapter) Start() {
	go func() {
		defer close(a.done)
		m, err := a.program.Run()
		if fm, ok := m.(Model); ok {
			a.final = fm
		}
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			a.err = err
		}
	}()
}

func (a *Adapter) flushTokens(tokens string) {
	a.mu.Lock()
	path := a.current
	a.mu.Unlock()
	a.program.Send(TokensMsg{Path: path, Tokens: tokens})
}

// Callbacks wraps next so that every generation event also reaches the
// program. next's callbacks run first.
func (a *Adapter) Callbacks(next generate.Callbacks) generate.Callbacks {
	return generate.Callbacks{
		OnFileStart: func(art generate.Artifact) {
			if next.OnFileStart != nil {
				next.OnFileStart(art)
			}
			a.mu.Lock()
			a.current = art.Path
			a.mu.Unlock()
			a.program.Send(FileStartMsg{Path: art.Path})
		},
		OnToken: func(art generate.Artifact, token string) {
			if next.OnToken != nil {
				next.OnToken(art, token)
			}
			a.batcher.Add(token)
		},
		OnFileComplete: func(art generate.Artifact, content string) {
			if next.OnFileComplete != nil {
				next.OnFileComplete(art, content)
			}
			a.batcher.Flush()
			a.program.Send(FileCompleteMsg{Path: art.Path, Content: content})
		},
		OnProgress: func(p progress.Progress) {
			if next.OnProgress != nil {
				next.OnProgress(p)
			}
			a.program.Send(ProgressMsg{Progress: p})
		},
	}
}

// Finish reports the outcome and waits for the program to exit.
func (a *Adapter) Finish(msg FinishedMsg) (Model, error) {
	a.batcher.Stop()
	a.program.Send(msg)
	return a.Wait()
}

// Wait blocks until the program has exited and returns its final model.
func (a *Adapter) Wait() (Model, error) {
	<-a.done
	return a.final, a.err
}
