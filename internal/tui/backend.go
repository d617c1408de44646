package tui

import (
	"context"
	"errors"

	"github.com/bnema/pgman/internal/config"
	"github.com/bnema/pgman/internal/pgadmin"
	"github.com/bnema/pgman/internal/restore"
	"github.com/bnema/pgman/internal/s3"
)

// liveBackend wires the browser to the real collaborators. Every
// operation builds its clients from a fresh config snapshot, so edits
// apply to the next operation started, never to one in flight.
type liveBackend struct {
	store     *config.Store
	downloads *s3.Downloader
	restores  *restore.Coordinator
}

// NewBackend builds the production Backend over the given store.
func NewBackend(store *config.Store) Backend {
	return &liveBackend{
		store:     store,
		downloads: s3.NewDownloader(),
		restores: restore.NewCoordinator(func(ctx context.Context, targetDB, dumpPath string) (string, error) {
			return pgadmin.Restore(ctx, store.Get().Postgres, targetDB, dumpPath)
		}),
	}
}

func (b *liveBackend) List(ctx context.Context) ([]s3.BackupEntry, error) {
	cfg := b.store.Get().S3
	if cfg.Bucket == "" {
		// Nothing to list until a bucket is configured; not an error.
		return nil, nil
	}
	client, err := s3.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s3.List(ctx, client, cfg)
}

func (b *liveBackend) StartDownload(entry s3.BackupEntry, dest string) (*s3.DownloadTask, error) {
	cfg := b.store.Get().S3
	client, err := s3.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return b.downloads.Start(client, cfg.Bucket, entry, dest), nil
}

func (b *liveBackend) CancelDownload() { b.downloads.Cancel() }

func (b *liveBackend) DownloadEvents() <-chan s3.DownloadEvent { return b.downloads.Events() }

func (b *liveBackend) StartRestore(sourcePath, targetDB string) (*restore.Task, error) {
	return b.restores.Start(sourcePath, targetDB)
}

func (b *liveBackend) RestoreEvents() <-chan restore.Event { return b.restores.Events() }

// TestS3 heads the configured bucket to verify reachability and
// credentials without transferring any object.
func (b *liveBackend) TestS3(ctx context.Context) error {
	cfg := b.store.Get().S3
	if cfg.Bucket == "" {
		return errors.New("no bucket configured")
	}
	client, err := s3.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	return s3.CheckBucket(ctx, client, cfg)
}

// TestPostgres opens and immediately closes an admin connection.
func (b *liveBackend) TestPostgres(ctx context.Context) error {
	client, err := pgadmin.Connect(ctx, b.store.Get().Postgres)
	if err != nil {
		return err
	}
	return client.Close(ctx)
}
