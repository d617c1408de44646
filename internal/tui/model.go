// Package tui implements the interactive backup browser: a two-pane
// terminal UI over the object-store listing/download path and the local
// restore pipeline. All state lives in the Model and is only mutated by
// Update; slow work runs behind commands and comes back as tagged
// messages, so the render loop never blocks on network or disk I/O.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/pgman/internal/config"
	"github.com/bnema/pgman/internal/restore"
	"github.com/bnema/pgman/internal/s3"
)

// Mode is the current UI mode. Mode and the presence of an active task are
// kept mutually consistent by Update.
type Mode int

const (
	ModeBrowsing Mode = iota
	ModeConfirmingRestore
	ModeDownloading
	ModeRestoring
	ModeEditingConfig
	ModeShowingError
	ModeTestingConnections
	ModeShowingTestResult
)

// Focus selects which pane receives navigation keys.
type Focus int

const (
	FocusList Focus = iota
	FocusConfig
)

// Backend bundles the slow collaborators the browser coordinates. Each
// call snapshots the configuration at the moment it starts, so an
// in-flight operation is unaffected by a concurrent config edit.
type Backend interface {
	List(ctx context.Context) ([]s3.BackupEntry, error)
	StartDownload(entry s3.BackupEntry, dest string) (*s3.DownloadTask, error)
	CancelDownload()
	DownloadEvents() <-chan s3.DownloadEvent
	StartRestore(sourcePath, targetDB string) (*restore.Task, error)
	RestoreEvents() <-chan restore.Event
	TestS3(ctx context.Context) error
	TestPostgres(ctx context.Context) error
}

type listResultMsg struct {
	entries []s3.BackupEntry
	err     error
	refresh bool
}

type downloadEventMsg s3.DownloadEvent

type restoreEventMsg restore.Event

type connTestMsg struct {
	s3Err error
	pgErr error
}

type downloadState struct {
	task  *s3.DownloadTask
	done  int64
	total int64

	// Transfer rate recomputed on a fixed interval, as bytes per second.
	rate     int64
	rateDone int64
	rateAt   time.Time
}

// Model is the browser state machine.
type Model struct {
	store   *config.Store
	backend Backend

	entries  []s3.BackupEntry
	selected int
	focus    Focus
	fieldIdx int // index into editableFields while focus is on the config pane
	mode     Mode

	download    *downloadState
	restoreTask *restore.Task
	lastErr     string
	status      string
	listing     bool
	loaded      bool
	connTest    *connTestMsg

	// Completed download kept on disk so a failed restore can be retried
	// without re-transferring. The modification time distinguishes an
	// object overwritten in place under the same key.
	cachedDump string
	cachedKey  string
	cachedMod  time.Time

	downloadDir string

	input textinput.Model
	bar   progress.Model
	spin  spinner.Model

	width  int
	height int
}

var editableFields = append(append([]config.Field{}, config.S3Fields...), config.PgFields...)

// NewModel builds the initial browser state. Entries stay empty until the
// first listing completes.
func NewModel(store *config.Store, backend Backend, downloadDir string) Model {
	in := textinput.New()
	in.CharLimit = 256

	bar := progress.New(progress.WithGradient("#007BC0", "#011E5C"))
	bar.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#54baff"))

	return Model{
		store:       store,
		backend:     backend,
		downloadDir: downloadDir,
		mode:        ModeBrowsing,
		focus:       FocusList,
		listing:     true,
		input:       in,
		bar:         bar,
		spin:        sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		m.listCmd(false),
		waitForDownloadEvent(m.backend.DownloadEvents()),
		waitForRestoreEvent(m.backend.RestoreEvents()),
	)
}

// Mode exposes the current mode for tests and the command layer.
func (m Model) Mode() Mode { return m.mode }

// Selected returns the currently selected entry, if any.
func (m Model) Selected() (s3.BackupEntry, bool) {
	if len(m.entries) == 0 || m.selected < 0 || m.selected >= len(m.entries) {
		return s3.BackupEntry{}, false
	}
	return m.entries[m.selected], true
}

func (m Model) listCmd(refresh bool) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		entries, err := backend.List(context.Background())
		return listResultMsg{entries: entries, err: err, refresh: refresh}
	}
}

const connTestTimeout = 10 * time.Second

// connTestCmd probes both collaborators with the current configuration.
// Neither probe mutates anything: the bucket is headed, the Postgres
// connection opened and closed.
func (m Model) connTestCmd() tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connTestTimeout)
		defer cancel()
		return connTestMsg{
			s3Err: backend.TestS3(ctx),
			pgErr: backend.TestPostgres(ctx),
		}
	}
}

// waitForDownloadEvent blocks on the coordinator channel inside a command,
// off the render loop, and is re-armed after every received event.
func waitForDownloadEvent(ch <-chan s3.DownloadEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return downloadEventMsg(ev)
	}
}

func waitForRestoreEvent(ch <-chan restore.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return restoreEventMsg(ev)
	}
}
