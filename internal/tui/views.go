package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/blueprint/internal/progress"
)

// renderMain renders the main view showing progress and the live document
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Blueprint Export"))
	b.WriteString("\n")

	b.WriteString(m.styles.Muted.Render("Project: ") + m.styles.Subtitle.Render(m.project))
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render("Mode:    ") + m.styles.Subtitle.Render(m.mode))
	b.WriteString("\n\n")

	b.WriteString(m.renderProgressBox())
	b.WriteString("\n\n")

	if m.current != "" {
		b.WriteString(m.spinner.View() + " " + m.styles.Status.Render(m.current))
		b.WriteString("\n")
		if m.preview != "" {
			width := max(20, m.width-4)
			b.WriteString(m.styles.Preview.Width(width).Render(tail(m.preview, previewLines)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.cancelling {
		b.WriteString(m.styles.Warning.Render("Cancelling export..."))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderHelpLine())
	return b.String()
}

// renderProgressBox renders the phase, bar, and counters
func (m Model) renderProgressBox() string {
	var b strings.Builder

	b.WriteString(m.styles.Status.Render(phaseLabel(m.state.Phase)))
	b.WriteString("\n")

	done := m.completed()
	total := len(m.files)
	fraction := 0.0
	if total > 0 {
		fraction = float64(done) / float64(total)
	}
	b.WriteString(m.bar.ViewAs(fraction))
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf(" %d/%d (%.0f%%)", done, total, fraction*100)))
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render("Elapsed: " + formatDuration(m.elapsed())))

	return m.styles.Border.Render(b.String())
}

func phaseLabel(p progress.Phase) string {
	switch p {
	case progress.PhaseIdle:
		return "Starting"
	case progress.PhaseProjectRules:
		return "Writing project rules"
	case progress.PhaseAgentProtocol:
		return "Writing agent protocol"
	case progress.PhaseComponentSpecs:
		return "Writing component specs"
	case progress.PhaseComplete:
		return "Packaging"
	case progress.PhaseError:
		return "Failed"
	default:
		return string(p)
	}
}

// renderFiles renders the document list view
func (m Model) renderFiles() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Documents"))
	b.WriteString("\n")

	if len(m.files) == 0 {
		b.WriteString(m.styles.Muted.Render("No documents yet"))
		b.WriteString("\n")
	}
	for _, f := range m.files {
		b.WriteString(m.renderFileLine(f))
		b.WriteString("\n")
	}

	b.WriteString(m.renderHelpLine())
	return b.String()
}

func (m Model) renderFileLine(f fileRow) string {
	var icon string
	var style lipgloss.Style
	switch f.status {
	case FileDone:
		icon, style = "✓", m.styles.Success
	case FileWriting:
		icon, style = "⟳", m.styles.Status
	case FileFailed:
		icon, style = "✗", m.styles.Error
	default:
		icon, style = "○", m.styles.Muted
	}

	if f.path == m.current && f.status == FileWriting {
		return m.styles.Highlighted.Render(icon) + " " + m.styles.Status.Render(f.path)
	}
	return style.Render(icon) + " " + style.Render(f.path)
}

// renderHelp renders the help view
func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Help"))
	b.WriteString("\n")

	for _, binding := range []struct{ key, desc string }{
		{m.keys.Files.Help().Key, "Toggle document list"},
		{m.keys.Help.Help().Key, "Toggle help"},
		{m.keys.Back.Help().Key, "Return to main view"},
		{m.keys.Quit.Help().Key, "Cancel the export"},
		{m.keys.Cancel.Help().Key, "Cancel, press again to leave immediately"},
	} {
		b.WriteString(m.styles.Key.Render(fmt.Sprintf("%-10s", binding.key)) + " " + m.styles.KeyDesc.Render(binding.desc))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render("Press ? or Esc to return to main view"))
	return b.String()
}

// renderComplete renders the final screen, which stays in the scrollback
func (m Model) renderComplete() string {
	var b strings.Builder

	switch f := m.finished; {
	case f == nil:
		b.WriteString(m.styles.Warning.Render("Export abandoned"))
	case f.OK:
		b.WriteString(m.styles.Success.Render("✓ Blueprint exported"))
		b.WriteString("\n\n")
		b.WriteString(strings.Join([]string{
			fmt.Sprintf("Archive:   %s", f.Path),
			fmt.Sprintf("Size:      %d bytes", f.Size),
			fmt.Sprintf("Documents: %d", m.completed()),
			fmt.Sprintf("Duration:  %s", formatDuration(m.elapsed())),
		}, "\n"))
	case f.Cancelled:
		b.WriteString(m.styles.Warning.Render("Export cancelled"))
		b.WriteString("\n\n")
		b.WriteString(m.styles.Muted.Render("Nothing was written."))
	default:
		b.WriteString(m.styles.Error.Render("✗ Export failed"))
		b.WriteString("\n\n")
		b.WriteString(m.styles.Muted.Render("Error: ") + f.Error)
	}

	b.WriteString("\n")
	return b.String()
}

// renderHelpLine renders the help line at the bottom
func (m Model) renderHelpLine() string {
	items := []string{
		m.styles.Key.Render(m.keys.Help.Help().Key) + " help",
		m.styles.Key.Render(m.keys.Files.Help().Key) + " files",
		m.styles.Key.Render(m.keys.Cancel.Help().Key) + " cancel",
	}
	return m.styles.Help.Render(strings.Join(items, " • "))
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
