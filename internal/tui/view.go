package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/bnema/pgman/internal/config"
)

const timeFormat = "2006-01-02 15:04:05"

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#54baff"))
	paneStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	focusedPane   = paneStyle.BorderForeground(lipgloss.Color("#54baff"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("238")).Bold(true)
	focusedField  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	popupStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#54baff")).Padding(1, 2)
)

// View is a pure function of the model: no I/O, no mutation. Secrets are
// rendered as fixed-width masks and never in the clear.
func (m Model) View() string {
	width := m.width
	if width == 0 {
		width = 100
	}
	height := m.height
	if height == 0 {
		height = 30
	}

	title := titleStyle.Render("pgman: PostgreSQL S3 Backup Browser")

	if overlay := m.overlay(); overlay != "" {
		body := lipgloss.Place(width, height-4, lipgloss.Center, lipgloss.Center, overlay)
		return lipgloss.JoinVertical(lipgloss.Left, title, body, m.footer(width))
	}

	listWidth := width * 3 / 5
	confWidth := width - listWidth - 6
	paneHeight := height - 6

	left := m.renderList(listWidth, paneHeight)
	right := m.renderConfig(confWidth, paneHeight)

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return lipgloss.JoinVertical(lipgloss.Left, title, body, m.footer(width))
}

func (m Model) renderList(width, height int) string {
	var b strings.Builder
	switch {
	case m.listing:
		b.WriteString(m.spin.View() + " loading backups...")
	case len(m.entries) == 0:
		b.WriteString(helpStyle.Render("no backups found"))
	default:
		visible := height - 2
		if visible < 1 {
			visible = 1
		}
		start := 0
		if m.selected >= visible {
			start = m.selected - visible + 1
		}
		for i := start; i < len(m.entries) && i < start+visible; i++ {
			e := m.entries[i]
			row := fmt.Sprintf("%-*s %10s  %s",
				width-34, truncate(e.Key, width-34),
				humanize.Bytes(uint64(e.Size)),
				e.LastModified.Format(timeFormat))
			if i == m.selected {
				row = selectedStyle.Render("> " + row)
			} else {
				row = "  " + row
			}
			b.WriteString(row)
			if i < len(m.entries)-1 && i < start+visible-1 {
				b.WriteByte('\n')
			}
		}
	}

	style := paneStyle
	if m.focus == FocusList {
		style = focusedPane
	}
	return style.Width(width).Height(height).Render(b.String())
}

func (m Model) renderConfig(width, height int) string {
	var b strings.Builder
	b.WriteString("S3 Settings\n")
	for _, f := range config.S3Fields {
		b.WriteString(m.renderField(f))
		b.WriteByte('\n')
	}
	b.WriteString("\nPostgreSQL Settings\n")
	for i, f := range config.PgFields {
		b.WriteString(m.renderField(f))
		if i < len(config.PgFields)-1 {
			b.WriteByte('\n')
		}
	}

	style := paneStyle
	if m.focus == FocusConfig {
		style = focusedPane
	}
	return style.Width(width).Height(height).Render(b.String())
}

func (m Model) renderField(f config.Field) string {
	value := m.store.ValueOf(f)
	if f.Secret() && value != "" {
		value = config.Mask
	}
	line := fmt.Sprintf("%-14s %s", f.Label()+":", value)
	if m.focus == FocusConfig && editableFields[m.fieldIdx] == f {
		return focusedField.Render(line)
	}
	return line
}

func (m Model) overlay() string {
	switch m.mode {
	case ModeConfirmingRestore:
		entry, ok := m.Selected()
		if !ok {
			return ""
		}
		target := m.store.Get().Postgres.DBName
		return popupStyle.Render(fmt.Sprintf(
			"Restore %q (%s)\ninto database %q?\n\n%s",
			entry.Key, humanize.Bytes(uint64(entry.Size)), target,
			helpStyle.Render("y: confirm • n/esc: cancel")))

	case ModeDownloading:
		var pct float64
		var detail string
		if m.download != nil && m.download.total > 0 {
			pct = float64(m.download.done) / float64(m.download.total)
			detail = fmt.Sprintf("%s / %s",
				humanize.Bytes(uint64(m.download.done)),
				humanize.Bytes(uint64(m.download.total)))
			if m.download.rate > 0 {
				detail += fmt.Sprintf("  %s/s", humanize.Bytes(uint64(m.download.rate)))
			}
		}
		return popupStyle.Render(fmt.Sprintf(
			"Downloading...\n\n%s\n%s\n\n%s",
			m.bar.ViewAs(pct), detail,
			helpStyle.Render("esc: cancel download")))

	case ModeRestoring:
		target := ""
		if m.restoreTask != nil {
			target = m.restoreTask.TargetDB
		}
		return popupStyle.Render(fmt.Sprintf(
			"%s Restoring into %q...\n\n%s",
			m.spin.View(), target,
			helpStyle.Render("pg_restore is running, please wait")))

	case ModeShowingError:
		return popupStyle.Render(
			errStyle.Render("Error") + "\n\n" + truncateLines(m.lastErr, 12) + "\n\n" +
				helpStyle.Render("press any key to continue"))

	case ModeTestingConnections:
		return popupStyle.Render(m.spin.View() + " Testing connections...")

	case ModeShowingTestResult:
		if m.connTest == nil {
			return ""
		}
		return popupStyle.Render(fmt.Sprintf(
			"Connection test\n\nS3:         %s\nPostgreSQL: %s\n\n%s",
			connTestLine(m.connTest.s3Err),
			connTestLine(m.connTest.pgErr),
			helpStyle.Render("press any key to continue")))

	case ModeEditingConfig:
		field := editableFields[m.fieldIdx]
		return popupStyle.Render(fmt.Sprintf(
			"Edit %s\n\n%s\n\n%s",
			field.Label(), m.input.View(),
			helpStyle.Render("enter: commit • esc: discard")))
	}
	return ""
}

func connTestLine(err error) string {
	if err != nil {
		return errStyle.Render(truncate(err.Error(), 60))
	}
	return "ok"
}

func (m Model) footer(width int) string {
	help := "↑/↓: navigate • tab: switch pane • enter: restore/edit • r: refresh • t: test • q: quit"
	status := m.status
	if m.listing {
		status = "refreshing..."
	}
	line := helpStyle.Render(help)
	if status != "" {
		line = status + "  " + line
	}
	return lipgloss.NewStyle().Width(width).Render(line)
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func truncateLines(s string, max int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= max {
		return s
	}
	return strings.Join(lines[:max], "\n") + "\n..."
}
