package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/pgman/internal/config"
	"github.com/bnema/pgman/internal/restore"
	"github.com/bnema/pgman/internal/s3"
)

type fakeBackend struct {
	entries    []s3.BackupEntry
	listErr    error
	dlEvents   chan s3.DownloadEvent
	rsEvents   chan restore.Event
	downloads  []s3.BackupEntry
	cancels    int
	restores   [][2]string // source, target
	restoreErr error
	s3TestErr  error
	pgTestErr  error
	nextDl     uint64
	nextRs     uint64
}

func newFakeBackend(entries []s3.BackupEntry) *fakeBackend {
	return &fakeBackend{
		entries:  entries,
		dlEvents: make(chan s3.DownloadEvent, 16),
		rsEvents: make(chan restore.Event, 16),
	}
}

func (f *fakeBackend) List(ctx context.Context) ([]s3.BackupEntry, error) {
	return f.entries, f.listErr
}

func (f *fakeBackend) StartDownload(entry s3.BackupEntry, dest string) (*s3.DownloadTask, error) {
	f.nextDl++
	f.downloads = append(f.downloads, entry)
	return &s3.DownloadTask{ID: f.nextDl, Entry: entry, LocalPath: dest}, nil
}

func (f *fakeBackend) CancelDownload() { f.cancels++ }

func (f *fakeBackend) DownloadEvents() <-chan s3.DownloadEvent { return f.dlEvents }

func (f *fakeBackend) StartRestore(sourcePath, targetDB string) (*restore.Task, error) {
	if f.restoreErr != nil {
		return nil, f.restoreErr
	}
	f.nextRs++
	f.restores = append(f.restores, [2]string{sourcePath, targetDB})
	return &restore.Task{ID: f.nextRs, SourcePath: sourcePath, TargetDB: targetDB}, nil
}

func (f *fakeBackend) RestoreEvents() <-chan restore.Event { return f.rsEvents }

func (f *fakeBackend) TestS3(ctx context.Context) error { return f.s3TestErr }

func (f *fakeBackend) TestPostgres(ctx context.Context) error { return f.pgTestErr }

func testEntries() []s3.BackupEntry {
	t2 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	t1 := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	return []s3.BackupEntry{
		{Key: "2024-backup", Size: 100 << 20, LastModified: t2},
		{Key: "2023-backup", Size: 50 << 20, LastModified: t1},
	}
}

func newTestModel(t *testing.T, entries []s3.BackupEntry) (Model, *fakeBackend) {
	t.Helper()
	store := config.NewStore(config.Config{
		S3: config.S3Config{
			Bucket:          "backups",
			Region:          "us-east-1",
			AccessKeyID:     "AKIAEXAMPLE",
			SecretAccessKey: "topsecretkey",
		},
		Postgres: config.PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Password: "hunter2",
			DBName:   "app",
		},
	})
	backend := newFakeBackend(entries)
	m := NewModel(store, backend, t.TempDir())
	m = apply(t, m, listResultMsg{entries: entries})
	return m, backend
}

func apply(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestRestoreFlow(t *testing.T) {
	m, backend := newTestModel(t, testEntries())
	require.Equal(t, ModeBrowsing, m.Mode())
	require.Equal(t, 0, m.selected)

	m = apply(t, m, key("enter"))
	assert.Equal(t, ModeConfirmingRestore, m.Mode())

	m = apply(t, m, key("y"))
	assert.Equal(t, ModeDownloading, m.Mode())
	require.Len(t, backend.downloads, 1)
	assert.Equal(t, "2024-backup", backend.downloads[0].Key)

	m = apply(t, m, downloadEventMsg(s3.DownloadEvent{
		TaskID: 1, BytesDone: 10 << 20, BytesTotal: 100 << 20, Status: s3.DownloadInProgress,
	}))
	assert.Equal(t, ModeDownloading, m.Mode())
	assert.Equal(t, int64(10<<20), m.download.done)

	m = apply(t, m, downloadEventMsg(s3.DownloadEvent{
		TaskID: 1, BytesDone: 100 << 20, BytesTotal: 100 << 20, Status: s3.DownloadCompleted,
	}))
	assert.Equal(t, ModeRestoring, m.Mode())
	require.Len(t, backend.restores, 1)
	assert.Equal(t, "app", backend.restores[0][1])

	m = apply(t, m, restoreEventMsg(restore.Event{TaskID: 1}))
	assert.Equal(t, ModeBrowsing, m.Mode())
	assert.Nil(t, m.restoreTask)
}

func TestSelectionClamped(t *testing.T) {
	m, _ := newTestModel(t, testEntries())

	for i := 0; i < 10; i++ {
		m = apply(t, m, key("up"))
	}
	assert.Equal(t, 0, m.selected)

	for i := 0; i < 10; i++ {
		m = apply(t, m, key("down"))
	}
	assert.Equal(t, 1, m.selected)

	empty, _ := newTestModel(t, nil)
	for i := 0; i < 5; i++ {
		empty = apply(t, empty, key("down"))
		empty = apply(t, empty, key("up"))
	}
	assert.Equal(t, 0, empty.selected)
}

func TestTabTogglesFocus(t *testing.T) {
	m, _ := newTestModel(t, testEntries())
	assert.Equal(t, FocusList, m.focus)

	m = apply(t, m, key("tab"))
	assert.Equal(t, FocusConfig, m.focus)

	// Arrows now move the field cursor, not the list selection.
	m = apply(t, m, key("down"))
	assert.Equal(t, 0, m.selected)
	assert.Equal(t, 1, m.fieldIdx)

	m = apply(t, m, key("tab"))
	assert.Equal(t, FocusList, m.focus)
}

func TestEnterOnEmptyListDoesNothing(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m = apply(t, m, key("enter"))
	assert.Equal(t, ModeBrowsing, m.Mode())
}

func TestConfirmDeclined(t *testing.T) {
	m, backend := newTestModel(t, testEntries())

	m = apply(t, m, key("enter"))
	m = apply(t, m, key("n"))
	assert.Equal(t, ModeBrowsing, m.Mode())

	m = apply(t, m, key("enter"))
	m = apply(t, m, key("esc"))
	assert.Equal(t, ModeBrowsing, m.Mode())

	assert.Empty(t, backend.downloads)
}

func TestEscDuringDownloadRequestsCancel(t *testing.T) {
	m, backend := newTestModel(t, testEntries())
	m = apply(t, m, key("enter"))
	m = apply(t, m, key("y"))

	m = apply(t, m, key("esc"))
	assert.Equal(t, 1, backend.cancels)
	// Still downloading until the coordinator delivers the terminal event.
	assert.Equal(t, ModeDownloading, m.Mode())

	m = apply(t, m, downloadEventMsg(s3.DownloadEvent{TaskID: 1, Status: s3.DownloadCancelled}))
	assert.Equal(t, ModeBrowsing, m.Mode())
	assert.Empty(t, m.lastErr, "cancellation is not an error")
}

func TestStaleDownloadEventDiscarded(t *testing.T) {
	m, _ := newTestModel(t, testEntries())
	m = apply(t, m, key("enter"))
	m = apply(t, m, key("y"))

	m = apply(t, m, downloadEventMsg(s3.DownloadEvent{
		TaskID: 99, BytesDone: 5, BytesTotal: 10, Status: s3.DownloadInProgress,
	}))
	assert.Equal(t, int64(0), m.download.done)

	m = apply(t, m, downloadEventMsg(s3.DownloadEvent{TaskID: 99, Status: s3.DownloadFailed}))
	assert.Equal(t, ModeDownloading, m.Mode(), "stale terminal event must not change mode")
}

func TestDownloadFailureShowsError(t *testing.T) {
	m, _ := newTestModel(t, testEntries())
	m = apply(t, m, key("enter"))
	m = apply(t, m, key("y"))

	m = apply(t, m, downloadEventMsg(s3.DownloadEvent{
		TaskID: 1, Status: s3.DownloadFailed,
		Err: &s3.DownloadError{Kind: s3.DownloadNetworkError, Err: errors.New("connection reset")},
	}))
	assert.Equal(t, ModeShowingError, m.Mode())
	assert.Contains(t, m.lastErr, "connection reset")

	m = apply(t, m, key("x"))
	assert.Equal(t, ModeBrowsing, m.Mode())
	assert.Empty(t, m.lastErr)
}

func TestRestoreFailureKeepsDumpForRetry(t *testing.T) {
	m, backend := newTestModel(t, testEntries())
	m = apply(t, m, key("enter"))
	m = apply(t, m, key("y"))
	m = apply(t, m, downloadEventMsg(s3.DownloadEvent{
		TaskID: 1, BytesDone: 100 << 20, BytesTotal: 100 << 20, Status: s3.DownloadCompleted,
	}))
	require.Equal(t, ModeRestoring, m.Mode())

	m = apply(t, m, restoreEventMsg(restore.Event{
		TaskID: 1,
		Output: "pg_restore: error: could not connect",
		Err:    errors.New("pg_restore failed: exit status 1"),
	}))
	assert.Equal(t, ModeShowingError, m.Mode())
	assert.Contains(t, m.lastErr, "could not connect")

	// Retrying the same entry reuses the downloaded file instead of
	// transferring it again.
	m = apply(t, m, key("x"))
	m = apply(t, m, key("enter"))
	m = apply(t, m, key("y"))
	assert.Equal(t, ModeRestoring, m.Mode())
	assert.Len(t, backend.downloads, 1, "no second download for a kept dump")
	require.Len(t, backend.restores, 2)
	assert.Equal(t, backend.restores[0][0], backend.restores[1][0])
}

func TestKeysInertWhileRestoring(t *testing.T) {
	m, backend := newTestModel(t, testEntries())
	m = apply(t, m, key("enter"))
	m = apply(t, m, key("y"))
	m = apply(t, m, downloadEventMsg(s3.DownloadEvent{
		TaskID: 1, BytesDone: 1, BytesTotal: 1, Status: s3.DownloadCompleted,
	}))
	require.Equal(t, ModeRestoring, m.Mode())

	// No cancellation once pg_restore is running; navigation and selection
	// keys are swallowed until the terminal event arrives.
	for _, k := range []string{"enter", "esc", "down", "y", "q"} {
		m = apply(t, m, key(k))
	}
	assert.Equal(t, ModeRestoring, m.Mode())
	assert.Len(t, backend.restores, 1)
	assert.Equal(t, 0, backend.cancels)
}

func TestRestoreRejectedWhenBusy(t *testing.T) {
	m, backend := newTestModel(t, testEntries())
	backend.restoreErr = restore.ErrAlreadyInProgress

	m = apply(t, m, key("enter"))
	m = apply(t, m, key("y"))
	m = apply(t, m, downloadEventMsg(s3.DownloadEvent{
		TaskID: 1, BytesDone: 1, BytesTotal: 1, Status: s3.DownloadCompleted,
	}))
	assert.Equal(t, ModeShowingError, m.Mode())
	assert.Contains(t, m.lastErr, restore.ErrAlreadyInProgress.Error())
}

func TestListResultDroppedWhileDownloading(t *testing.T) {
	m, backend := newTestModel(t, testEntries())
	m = apply(t, m, key("enter"))
	m = apply(t, m, key("y"))
	require.Equal(t, ModeDownloading, m.Mode())

	// A relist failure arriving mid-transfer must not displace the
	// download's mode or strand the task behind another screen.
	m = apply(t, m, listResultMsg{err: errors.New("object store unreachable"), refresh: true})
	assert.Equal(t, ModeDownloading, m.Mode())
	require.NotNil(t, m.download)
	assert.Empty(t, m.lastErr)

	// Esc still reaches the coordinator.
	m = apply(t, m, key("esc"))
	assert.Equal(t, 1, backend.cancels)
}

func TestListResultDroppedUnderConfirmPopup(t *testing.T) {
	entries := testEntries()
	m, backend := newTestModel(t, entries)
	m = apply(t, m, key("down"))
	m = apply(t, m, key("enter"))
	require.Equal(t, ModeConfirmingRestore, m.Mode())

	// A shrunk refresh landing under the popup must not swap entries, or
	// 'y' would start a different backup than the one confirmed.
	m = apply(t, m, listResultMsg{entries: entries[:1], refresh: true})
	m = apply(t, m, key("y"))
	require.Len(t, backend.downloads, 1)
	assert.Equal(t, "2023-backup", backend.downloads[0].Key)
}

func TestListFailureShowsError(t *testing.T) {
	m, _ := newTestModel(t, testEntries())
	m = apply(t, m, listResultMsg{err: errors.New("object store unreachable"), refresh: true})
	assert.Equal(t, ModeShowingError, m.Mode())
	assert.Contains(t, m.lastErr, "unreachable")
}

func TestEmptyListingIsNotAnError(t *testing.T) {
	// A missing bucket/prefix surfaces as an empty listing by policy.
	m, _ := newTestModel(t, nil)
	assert.Equal(t, ModeBrowsing, m.Mode())
	assert.Empty(t, m.entries)
	assert.Empty(t, m.lastErr)
}

func TestRefreshPreservesValidSelection(t *testing.T) {
	entries := testEntries()
	m, _ := newTestModel(t, entries)
	m = apply(t, m, key("down"))
	require.Equal(t, 1, m.selected)

	m = apply(t, m, listResultMsg{entries: entries, refresh: true})
	assert.Equal(t, 1, m.selected, "refresh keeps a still-valid selection")

	m = apply(t, m, listResultMsg{entries: entries[:1], refresh: true})
	assert.Equal(t, 0, m.selected, "refresh clamps a now-invalid selection")
}

func TestEditConfig_CommitAndValidation(t *testing.T) {
	m, _ := newTestModel(t, testEntries())
	m = apply(t, m, key("tab"))

	// 'd' jumps straight into editing the target database field.
	m = apply(t, m, key("d"))
	require.Equal(t, ModeEditingConfig, m.Mode())
	assert.Equal(t, "app", m.input.Value())

	m = apply(t, m, key("2"))
	m = apply(t, m, key("enter"))
	assert.Equal(t, ModeBrowsing, m.Mode())
	assert.Equal(t, "app2", m.store.Get().Postgres.DBName)

	// Invalid port edit leaves the prior value untouched.
	m = apply(t, m, key("p"))
	require.Equal(t, ModeEditingConfig, m.Mode())
	m.input.SetValue("abc")
	m = apply(t, m, key("enter"))
	assert.Equal(t, ModeShowingError, m.Mode())
	assert.Equal(t, 5432, m.store.Get().Postgres.Port)
}

func TestEditConfig_EscDiscards(t *testing.T) {
	m, _ := newTestModel(t, testEntries())
	m = apply(t, m, key("tab"))
	m = apply(t, m, key("b"))
	require.Equal(t, ModeEditingConfig, m.Mode())

	m.input.SetValue("scratch")
	m = apply(t, m, key("esc"))
	assert.Equal(t, ModeBrowsing, m.Mode())
	assert.Equal(t, "backups", m.store.Get().S3.Bucket)
}

func TestEditS3FieldTriggersRelist(t *testing.T) {
	m, _ := newTestModel(t, testEntries())
	m = apply(t, m, key("tab"))
	m = apply(t, m, key("b"))
	m.input.SetValue("other-bucket")

	next, cmd := m.Update(key("enter"))
	m = next.(Model)
	assert.Equal(t, "other-bucket", m.store.Get().S3.Bucket)
	assert.True(t, m.listing)
	assert.NotNil(t, cmd, "committing an S3 field re-lists the bucket")
}

func TestConnectionTestFlow(t *testing.T) {
	m, backend := newTestModel(t, testEntries())
	backend.pgTestErr = errors.New("connection refused")

	m = apply(t, m, key("t"))
	require.Equal(t, ModeTestingConnections, m.Mode())

	m = apply(t, m, connTestMsg{s3Err: backend.s3TestErr, pgErr: backend.pgTestErr})
	require.Equal(t, ModeShowingTestResult, m.Mode())

	out := m.View()
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "connection refused")

	m = apply(t, m, key("x"))
	assert.Equal(t, ModeBrowsing, m.Mode())
	assert.Nil(t, m.connTest)
}

func TestConnTestResultIgnoredOutsideTestMode(t *testing.T) {
	m, _ := newTestModel(t, testEntries())
	m = apply(t, m, connTestMsg{})
	assert.Equal(t, ModeBrowsing, m.Mode())
	assert.Nil(t, m.connTest)
}

func TestDownloadRateShown(t *testing.T) {
	m, _ := newTestModel(t, testEntries())
	m = apply(t, m, key("enter"))
	m = apply(t, m, key("y"))
	require.NotNil(t, m.download)

	m.download.rateAt = time.Now().Add(-time.Second)
	m = apply(t, m, downloadEventMsg(s3.DownloadEvent{
		TaskID: 1, BytesDone: 2 << 20, BytesTotal: 100 << 20, Status: s3.DownloadInProgress,
	}))
	require.NotNil(t, m.download)
	assert.Greater(t, m.download.rate, int64(0))
	assert.Contains(t, m.View(), "/s")
}

func TestOverwrittenKeyNotRestoredFromCache(t *testing.T) {
	entries := testEntries()
	m, backend := newTestModel(t, entries)
	m = apply(t, m, key("enter"))
	m = apply(t, m, key("y"))
	m = apply(t, m, downloadEventMsg(s3.DownloadEvent{
		TaskID: 1, BytesDone: 1, BytesTotal: 1, Status: s3.DownloadCompleted,
	}))
	m = apply(t, m, restoreEventMsg(restore.Event{TaskID: 1, Err: errors.New("pg_restore failed")}))
	m = apply(t, m, key("x"))
	require.Equal(t, ModeBrowsing, m.Mode())

	// The object was overwritten in place between listings: same key,
	// newer modification time. The kept dump is stale and must not be fed
	// to pg_restore.
	overwritten := append([]s3.BackupEntry{}, entries...)
	overwritten[0].LastModified = overwritten[0].LastModified.Add(time.Hour)
	m = apply(t, m, listResultMsg{entries: overwritten, refresh: true})

	m = apply(t, m, key("enter"))
	m = apply(t, m, key("y"))
	assert.Equal(t, ModeDownloading, m.Mode())
	assert.Len(t, backend.downloads, 2, "overwritten object is transferred again")
}

func TestViewMasksSecrets(t *testing.T) {
	m, _ := newTestModel(t, testEntries())
	out := m.View()

	assert.NotContains(t, out, "topsecretkey")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "AKIAEXAMPLE")
	assert.Contains(t, out, config.Mask)
}

func TestViewListsEntriesNewestFirst(t *testing.T) {
	m, _ := newTestModel(t, testEntries())
	out := m.View()
	assert.Contains(t, out, "2024-backup")
	assert.Contains(t, out, "2023-backup")
}
