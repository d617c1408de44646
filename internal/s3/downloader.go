package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/charmbracelet/log"
)

// ObjectFetcher is the slice of the S3 API the downloader needs. *s3.Client
// satisfies it; tests substitute a fake.
type ObjectFetcher interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// DownloadStatus is the lifecycle of a single download task.
type DownloadStatus int

const (
	DownloadInProgress DownloadStatus = iota
	DownloadCompleted
	DownloadFailed
	DownloadCancelled
)

// DownloadErrorKind classifies download failures.
type DownloadErrorKind int

const (
	DownloadNetworkError DownloadErrorKind = iota
	DownloadAuthError
	DownloadDiskWriteError
	DownloadInterrupted
)

type DownloadError struct {
	Kind DownloadErrorKind
	Err  error
}

func (e *DownloadError) Error() string {
	switch e.Kind {
	case DownloadAuthError:
		return fmt.Sprintf("authentication failed: %v", e.Err)
	case DownloadDiskWriteError:
		return fmt.Sprintf("disk write failed: %v", e.Err)
	case DownloadInterrupted:
		return fmt.Sprintf("transfer interrupted: %v", e.Err)
	default:
		return fmt.Sprintf("network error: %v", e.Err)
	}
}

func (e *DownloadError) Unwrap() error { return e.Err }

// DownloadEvent is one progress tick or the terminal result of a task.
// Every event carries the task id so consumers can discard events from a
// superseded task.
type DownloadEvent struct {
	TaskID     uint64
	BytesDone  int64
	BytesTotal int64
	Status     DownloadStatus
	Err        error
}

// Terminal reports whether this is the last event for the task.
func (e DownloadEvent) Terminal() bool { return e.Status != DownloadInProgress }

// DownloadTask is one in-flight transfer handle.
type DownloadTask struct {
	ID        uint64
	Entry     BackupEntry
	LocalPath string

	cancel context.CancelFunc
	done   chan struct{}
}

// Downloader runs at most one object download at a time. Progress and the
// single terminal event are delivered on Events; the channel is buffered
// and progress ticks are dropped rather than ever blocking the producer,
// so the consuming event loop is never required to keep up.
type Downloader struct {
	mu     sync.Mutex
	active *DownloadTask
	nextID uint64
	events chan DownloadEvent
}

const progressInterval = 100 * time.Millisecond

func NewDownloader() *Downloader {
	return &Downloader{events: make(chan DownloadEvent, 64)}
}

// Events delivers progress and terminal events for all tasks, tagged by id.
func (d *Downloader) Events() <-chan DownloadEvent { return d.events }

// Start begins downloading entry to dest using a fetcher built from a
// config snapshot. A still-running prior task is cancelled first and its
// partial file removed before the new transfer begins; two downloads never
// run concurrently.
func (d *Downloader) Start(fetcher ObjectFetcher, bucket string, entry BackupEntry, dest string) *DownloadTask {
	d.mu.Lock()
	prior := d.active
	d.mu.Unlock()

	if prior != nil {
		prior.cancel()
		<-prior.done
	}

	ctx, cancel := context.WithCancel(context.Background())

	d.mu.Lock()
	d.nextID++
	task := &DownloadTask{
		ID:        d.nextID,
		Entry:     entry,
		LocalPath: dest,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	d.active = task
	d.mu.Unlock()

	go d.run(ctx, fetcher, bucket, task)
	return task
}

// Cancel requests cooperative cancellation of the active task, if any. The
// task's terminal Cancelled event arrives on Events once it has stopped
// and cleaned up its partial file.
func (d *Downloader) Cancel() {
	d.mu.Lock()
	task := d.active
	d.mu.Unlock()
	if task != nil {
		task.cancel()
	}
}

func (d *Downloader) run(ctx context.Context, fetcher ObjectFetcher, bucket string, task *DownloadTask) {
	defer close(task.done)
	defer func() {
		d.mu.Lock()
		if d.active == task {
			d.active = nil
		}
		d.mu.Unlock()
	}()

	done, total, err := d.transfer(ctx, fetcher, bucket, task)
	switch {
	case err == nil:
		log.Info("download completed", "key", task.Entry.Key, "path", task.LocalPath)
		d.emit(DownloadEvent{TaskID: task.ID, BytesDone: done, BytesTotal: total, Status: DownloadCompleted})
	case errors.Is(err, context.Canceled):
		log.Debug("download cancelled", "key", task.Entry.Key)
		d.removePartial(task.LocalPath)
		d.emit(DownloadEvent{TaskID: task.ID, Status: DownloadCancelled})
	default:
		log.Error("download failed", "key", task.Entry.Key, "error", err)
		d.removePartial(task.LocalPath)
		d.emit(DownloadEvent{TaskID: task.ID, Status: DownloadFailed, Err: err})
	}
}

func (d *Downloader) transfer(ctx context.Context, fetcher ObjectFetcher, bucket string, task *DownloadTask) (int64, int64, error) {
	resp, err := fetcher.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(task.Entry.Key),
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, context.Canceled
		}
		return 0, 0, classifyDownloadError(err)
	}
	defer resp.Body.Close()

	total := task.Entry.Size
	if resp.ContentLength != nil {
		total = aws.ToInt64(resp.ContentLength)
	}

	file, err := os.Create(task.LocalPath)
	if err != nil {
		return 0, total, &DownloadError{Kind: DownloadDiskWriteError, Err: err}
	}
	defer file.Close()

	var done int64
	lastEmit := time.Now()
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return done, total, context.Canceled
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return done, total, &DownloadError{Kind: DownloadDiskWriteError, Err: writeErr}
			}
			done += int64(n)
			if time.Since(lastEmit) >= progressInterval {
				lastEmit = time.Now()
				d.emit(DownloadEvent{TaskID: task.ID, BytesDone: done, BytesTotal: total, Status: DownloadInProgress})
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return done, total, context.Canceled
			}
			return done, total, &DownloadError{Kind: DownloadInterrupted, Err: readErr}
		}
	}

	if err := file.Sync(); err != nil {
		return done, total, &DownloadError{Kind: DownloadDiskWriteError, Err: err}
	}
	return done, total, nil
}

// emit delivers an event without ever blocking. Terminal events displace a
// queued progress tick when the buffer is full so they are never lost.
func (d *Downloader) emit(ev DownloadEvent) {
	if !ev.Terminal() {
		select {
		case d.events <- ev:
		default:
		}
		return
	}
	for {
		select {
		case d.events <- ev:
			return
		default:
			select {
			case <-d.events:
			default:
			}
		}
	}
}

func (d *Downloader) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("could not remove partial download", "path", path, "error", err)
	}
}

func classifyDownloadError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return &DownloadError{Kind: DownloadAuthError, Err: err}
		}
	}
	return &DownloadError{Kind: DownloadNetworkError, Err: err}
}
