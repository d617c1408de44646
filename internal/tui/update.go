package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/pgman/internal/config"
	"github.com/bnema/pgman/internal/s3"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(msg.Width-10, 60)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		barModel, cmd := m.bar.Update(msg)
		m.bar = barModel.(progress.Model)
		return m, cmd

	case listResultMsg:
		return m.applyListResult(msg)

	case connTestMsg:
		return m.applyConnTest(msg)

	case downloadEventMsg:
		return m.applyDownloadEvent(msg)

	case restoreEventMsg:
		return m.applyRestoreEvent(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) applyListResult(msg listResultMsg) (tea.Model, tea.Cmd) {
	m.listing = false

	// A listing that resolves after the user moved on (confirm popup open,
	// download or restore underway) is dropped: replacing entries would
	// change what a visible confirmation refers to, and a listing failure
	// must not displace the mode of a live task.
	if m.mode != ModeBrowsing {
		return m, nil
	}

	if msg.err != nil {
		return m.fail(msg.err.Error()), nil
	}

	m.entries = msg.entries
	switch {
	case len(m.entries) == 0:
		m.selected = 0
	case !msg.refresh || !m.loaded:
		// Initial load resets to the newest entry.
		m.selected = 0
	case m.selected >= len(m.entries):
		// Refresh preserves the selection when still valid, clamps otherwise.
		m.selected = len(m.entries) - 1
	}
	m.loaded = true
	m.status = fmt.Sprintf("%d backups listed", len(m.entries))
	return m, nil
}

func (m Model) applyDownloadEvent(msg downloadEventMsg) (tea.Model, tea.Cmd) {
	// Always re-arm the channel wait, even for discarded events.
	rearm := waitForDownloadEvent(m.backend.DownloadEvents())

	// Events from a superseded task carry a stale id and are dropped.
	if m.download == nil || msg.TaskID != m.download.task.ID {
		return m, rearm
	}

	switch msg.Status {
	case s3.DownloadInProgress:
		if msg.BytesDone > m.download.done {
			m.download.done = msg.BytesDone
		}
		if msg.BytesTotal > 0 {
			m.download.total = msg.BytesTotal
		}
		if elapsed := time.Since(m.download.rateAt); elapsed >= rateInterval {
			m.download.rate = int64(float64(m.download.done-m.download.rateDone) / elapsed.Seconds())
			m.download.rateDone = m.download.done
			m.download.rateAt = time.Now()
		}
		return m, rearm

	case s3.DownloadCompleted:
		task := m.download.task
		m.download = nil
		m.cachedDump = task.LocalPath
		m.cachedKey = task.Entry.Key
		m.cachedMod = task.Entry.LastModified
		return m.startRestore(task.LocalPath, rearm)

	case s3.DownloadCancelled:
		m.download = nil
		m.mode = ModeBrowsing
		m.status = "Download cancelled"
		return m, rearm

	default: // failed
		m.download = nil
		reason := "download failed"
		if msg.Err != nil {
			reason = msg.Err.Error()
		}
		return m.fail(reason), rearm
	}
}

// rateInterval paces transfer-rate recomputation so the displayed figure
// does not jitter with every progress tick.
const rateInterval = 500 * time.Millisecond

func (m Model) applyConnTest(msg connTestMsg) (tea.Model, tea.Cmd) {
	if m.mode != ModeTestingConnections {
		return m, nil
	}
	m.connTest = &msg
	m.mode = ModeShowingTestResult
	return m, nil
}

func (m Model) startRestore(dumpPath string, rearm tea.Cmd) (tea.Model, tea.Cmd) {
	target := m.store.Get().Postgres.DBName
	if target == "" {
		return m.fail("no target database configured (set PG Database first)"), rearm
	}
	task, err := m.backend.StartRestore(dumpPath, target)
	if err != nil {
		return m.fail(err.Error()), rearm
	}
	m.restoreTask = task
	m.mode = ModeRestoring
	return m, tea.Batch(rearm, m.spin.Tick)
}

func (m Model) applyRestoreEvent(msg restoreEventMsg) (tea.Model, tea.Cmd) {
	rearm := waitForRestoreEvent(m.backend.RestoreEvents())

	if m.restoreTask == nil || msg.TaskID != m.restoreTask.ID {
		return m, rearm
	}

	target := m.restoreTask.TargetDB
	m.restoreTask = nil
	if msg.Err != nil {
		// The downloaded file stays on disk so the operator can retry
		// without re-transferring.
		reason := msg.Err.Error()
		if out := strings.TrimSpace(msg.Output); out != "" {
			reason += "\n" + out
		}
		return m.fail(reason), rearm
	}

	m.mode = ModeBrowsing
	m.status = fmt.Sprintf("Restore into %q completed", target)
	return m, rearm
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		if m.mode == ModeDownloading {
			m.backend.CancelDownload()
		}
		return m, tea.Quit
	}

	switch m.mode {
	case ModeShowingError:
		// Any key acknowledges the error.
		m.lastErr = ""
		m.mode = ModeBrowsing
		return m, nil

	case ModeShowingTestResult:
		m.connTest = nil
		m.mode = ModeBrowsing
		return m, nil

	case ModeTestingConnections:
		// Probes run to their timeout; nothing to cancel.
		return m, nil

	case ModeConfirmingRestore:
		switch msg.String() {
		case "y":
			return m.startDownload()
		case "n", "esc":
			m.mode = ModeBrowsing
			return m, nil
		}
		return m, nil

	case ModeDownloading:
		if msg.String() == "esc" {
			// Cooperative cancel; the terminal event moves us out of
			// Downloading once the coordinator has cleaned up.
			m.backend.CancelDownload()
		}
		return m, nil

	case ModeRestoring:
		// No cancellation once pg_restore is running.
		return m, nil

	case ModeEditingConfig:
		return m.handleEditKey(msg)

	default:
		return m.handleBrowsingKey(msg)
	}
}

func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.mode = ModeBrowsing
		return m, nil
	case "enter":
		field := editableFields[m.fieldIdx]
		value := m.input.Value()
		m.input.Blur()
		if err := m.store.SetField(field, value); err != nil {
			return m.fail(err.Error()), nil
		}
		m.mode = ModeBrowsing
		if isS3Field(field) {
			m.listing = true
			return m, m.listCmd(true)
		}
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) handleBrowsingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "tab":
		if m.focus == FocusList {
			m.focus = FocusConfig
		} else {
			m.focus = FocusList
		}
		return m, nil

	case "up", "k":
		if m.focus == FocusList {
			if m.selected > 0 {
				m.selected--
			}
		} else if m.fieldIdx > 0 {
			m.fieldIdx--
		}
		return m, nil

	case "down", "j":
		if m.focus == FocusList {
			if m.selected < len(m.entries)-1 {
				m.selected++
			}
		} else if m.fieldIdx < len(editableFields)-1 {
			m.fieldIdx++
		}
		return m, nil

	case "enter":
		if m.focus == FocusList {
			if _, ok := m.Selected(); ok {
				m.mode = ModeConfirmingRestore
			}
			return m, nil
		}
		return m.enterEdit(m.fieldIdx), nil

	case "e":
		if m.focus == FocusConfig {
			return m.enterEdit(m.fieldIdx), nil
		}
		return m, nil

	case "r":
		m.listing = true
		return m, tea.Batch(m.listCmd(true), m.spin.Tick)

	case "t":
		m.mode = ModeTestingConnections
		return m, tea.Batch(m.connTestCmd(), m.spin.Tick)
	}

	if m.focus == FocusConfig {
		if idx, ok := fieldShortcuts[msg.String()]; ok {
			return m.enterEdit(idx), nil
		}
	}
	return m, nil
}

// fieldShortcuts maps single-letter keys to editableFields indices while
// the config pane has focus.
var fieldShortcuts = buildFieldShortcuts()

func buildFieldShortcuts() map[string]int {
	byField := map[string]config.Field{
		"b": config.FieldBucket,
		"R": config.FieldRegion,
		"x": config.FieldPrefix,
		"E": config.FieldEndpointURL,
		"a": config.FieldAccessKeyID,
		"s": config.FieldSecretAccessKey,
		"P": config.FieldPathStyle,
		"h": config.FieldPgHost,
		"p": config.FieldPgPort,
		"u": config.FieldPgUsername,
		"f": config.FieldPgPassword,
		"l": config.FieldPgSSL,
		"d": config.FieldPgDBName,
	}
	out := make(map[string]int, len(byField))
	for key, f := range byField {
		for i, ef := range editableFields {
			if ef == f {
				out[key] = i
			}
		}
	}
	return out
}

func (m Model) enterEdit(fieldIdx int) Model {
	m.fieldIdx = fieldIdx
	field := editableFields[fieldIdx]
	m.input.SetValue(m.store.ValueOf(field))
	m.input.CursorEnd()
	if field.Secret() {
		m.input.EchoMode = textinput.EchoPassword
	} else {
		m.input.EchoMode = textinput.EchoNormal
	}
	m.input.Focus()
	m.mode = ModeEditingConfig
	return m
}

func (m Model) startDownload() (tea.Model, tea.Cmd) {
	entry, ok := m.Selected()
	if !ok {
		m.mode = ModeBrowsing
		return m, nil
	}

	// A failed restore leaves its dump behind; reuse it instead of
	// re-transferring the same object. The modification time must match:
	// a key overwritten in place (a rolling latest.dump) gets
	// re-downloaded rather than restored from stale bytes.
	if m.cachedDump != "" && m.cachedKey == entry.Key && m.cachedMod.Equal(entry.LastModified) {
		return m.startRestore(m.cachedDump, nil)
	}

	dest := filepath.Join(m.downloadDir, filepath.Base(entry.Key))
	task, err := m.backend.StartDownload(entry, dest)
	if err != nil {
		return m.fail(err.Error()), nil
	}
	m.download = &downloadState{task: task, total: entry.Size, rateAt: time.Now()}
	m.mode = ModeDownloading
	return m, nil
}

func (m Model) fail(reason string) Model {
	m.lastErr = reason
	m.mode = ModeShowingError
	return m
}

func isS3Field(f config.Field) bool {
	for _, sf := range config.S3Fields {
		if f == sf {
			return true
		}
	}
	return false
}
