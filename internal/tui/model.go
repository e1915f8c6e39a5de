// Package tui renders a live view of a streaming blueprint export.
package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/blueprint/internal/progress"
)

// ViewType represents the current view being displayed
type ViewType int

const (
	// ViewMain shows progress and the document being written
	ViewMain ViewType = iota
	// ViewFiles lists every document of the archive
	ViewFiles
	// ViewHelp is the help screen
	ViewHelp
)

// FileStatus is the state of one document in the run.
type FileStatus int

const (
	FilePending FileStatus = iota
	FileWriting
	FileDone
	FileFailed
)

// previewLines bounds the tail of streamed text shown on the main view.
const previewLines = 8

type fileRow struct {
	path   string
	status FileStatus
}

// Model represents the TUI application state
type Model struct {
	project string
	mode    string
	files   []fileRow
	index   map[string]int

	current  string
	preview  string
	state    progress.Progress
	started  time.Time
	finished *FinishedMsg

	// cancel asks the export to stop. It is called at most once.
	cancel     func()
	cancelling bool

	currentView ViewType
	width       int
	height      int
	quitting    bool

	bar     progressbar.Model
	spinner spinner.Model
	keys    keyMap
	styles  Styles
}

type keyMap struct {
	Cancel key.Binding
	Quit   key.Binding
	Files  key.Binding
	Help   key.Binding
	Back   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Files: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "files"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
	}
}

// Styles contains lipgloss styles for the TUI
type Styles struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Status      lipgloss.Style
	Error       lipgloss.Style
	Success     lipgloss.Style
	Warning     lipgloss.Style
	Muted       lipgloss.Style
	Border      lipgloss.Style
	Preview     lipgloss.Style
	Highlighted lipgloss.Style
	Help        lipgloss.Style
	Key         lipgloss.Style
	KeyDesc     lipgloss.Style
}

// NewModel creates a model for an export of project producing files, in
// archive order. cancel may be nil.
func NewModel(project, mode string, files []string, cancel func()) Model {
	m := Model{
		project:     project,
		mode:        mode,
		index:       make(map[string]int, len(files)),
		cancel:      cancel,
		currentView: ViewMain,
		started:     time.Now(),
		state:       progress.Progress{Phase: progress.PhaseIdle, TotalFiles: len(files)},
		width:       80,
		bar: progressbar.New(
			progressbar.WithDefaultGradient(),
			progressbar.WithWidth(40),
			progressbar.WithoutPercentage(),
		),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		keys:    defaultKeys(),
		styles:  DefaultStyles(),
	}
	for i, f := range files {
		m.files = append(m.files, fileRow{path: f})
		m.index[f] = i
	}
	return m
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")). // Purple
			MarginBottom(1),
		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Status: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")), // Cyan
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226")), // Yellow
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		Preview: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("241")).
			PaddingLeft(1),
		Highlighted: lipgloss.NewStyle().
			Background(lipgloss.Color("63")).
			Foreground(lipgloss.Color("230")).
			Bold(true).
			Padding(0, 1),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1),
		Key: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")),
		KeyDesc: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}

// Init starts the spinner (required by Bubble Tea)
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model state (required by Bubble Tea)
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(60, max(10, msg.Width-20))
		return m, nil

	case spinner.TickMsg:
		if m.finished != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case FileStartMsg:
		m.current = msg.Path
		m.preview = ""
		m.setStatus(msg.Path, FileWriting)
		return m, nil

	case TokensMsg:
		if msg.Path == m.current {
			m.preview += msg.Tokens
		}
		return m, nil

	case FileCompleteMsg:
		m.setStatus(msg.Path, FileDone)
		if msg.Path == m.current && m.preview == "" {
			m.preview = msg.Content
		}
		return m, nil

	case ProgressMsg:
		m.state = msg.Progress
		return m, nil

	case FinishedMsg:
		m.finished = &msg
		if !msg.OK && m.current != "" {
			if i, ok := m.index[m.current]; ok && m.files[i].status == FileWriting {
				m.files[i].status = FileFailed
			}
		}
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI (required by Bubble Tea)
func (m Model) View() string {
	if m.quitting {
		return m.renderComplete()
	}

	switch m.currentView {
	case ViewFiles:
		return m.renderFiles()
	case ViewHelp:
		return m.renderHelp()
	default:
		return m.renderMain()
	}
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Quit):
		// The export owns the program's lifetime; quitting early only asks
		// it to stop. A second ctrl+c leaves without waiting.
		if m.cancelling && key.Matches(msg, m.keys.Cancel) {
			m.quitting = true
			return m, tea.Quit
		}
		m.requestCancel()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.currentView = toggle(m.currentView, ViewHelp)

	case key.Matches(msg, m.keys.Files):
		m.currentView = toggle(m.currentView, ViewFiles)

	case key.Matches(msg, m.keys.Back):
		m.currentView = ViewMain
	}

	return m, nil
}

func toggle(current, target ViewType) ViewType {
	if current == target {
		return ViewMain
	}
	return target
}

func (m *Model) requestCancel() {
	if m.cancelling {
		return
	}
	m.cancelling = true
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Model) setStatus(path string, s FileStatus) {
	if i, ok := m.index[path]; ok {
		m.files[i].status = s
		return
	}
	m.index[path] = len(m.files)
	m.files = append(m.files, fileRow{path: path, status: s})
}

// Finished returns the outcome the model was given, or nil while running.
func (m Model) Finished() *FinishedMsg {
	return m.finished
}

// Status returns the state of the document at path.
func (m Model) Status(path string) FileStatus {
	if i, ok := m.index[path]; ok {
		return m.files[i].status
	}
	return FilePending
}

// FileStartMsg indicates a document has started
type FileStartMsg struct {
	Path string
}

// TokensMsg carries streamed text for the document at Path.
type TokensMsg struct {
	Path   string
	Tokens string
}

// FileCompleteMsg indicates a document is final.
type FileCompleteMsg struct {
	Path    string
	Content string
}

// ProgressMsg carries a progress snapshot.
type ProgressMsg struct {
	Progress progress.Progress
}

// FinishedMsg ends the program with the export's outcome.
type FinishedMsg struct {
	OK        bool
	Path      string
	Size      int
	Error     string
	Cancelled bool
}

func (m Model) elapsed() time.Duration {
	return time.Since(m.started)
}

func (m Model) completed() int {
	n := 0
	for _, f := range m.files {
		if f.status == FileDone {
			n++
		}
	}
	return n
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
