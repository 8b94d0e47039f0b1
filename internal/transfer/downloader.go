// Package transfer streams the data files listed in an entity's manifest rows
// from the object store into the staging area.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/retry"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/staging"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/validation"
)

// Parse hints written onto an entity after its files are downloaded.
const (
	ColumnSeparator = "|"
	FileFormat      = "gzip"
	SkipRows        = 0
)

// Option configures a Downloader.
type Option func(*Downloader)

// WithConcurrency bounds the number of files of one entity fetched at once.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithRetryPolicy retries each file according to p.
func WithRetryPolicy(p retry.Policy) Option {
	return func(d *Downloader) {
		d.retry = p
	}
}

// WithReadTimeout bounds how long a single file read may take. Zero disables the deadline.
func WithReadTimeout(timeout time.Duration) Option {
	return func(d *Downloader) {
		d.readTimeout = timeout
	}
}

// WithLogger sets the logger used for transfer diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Downloader copies manifest-listed files into <staging root>/<entity id>/.
type Downloader struct {
	store       feedtypes.ObjectStore
	area        *staging.Area
	feeds       string
	buffers     *pool.BufferPool
	concurrency int
	retry       retry.Policy
	readTimeout time.Duration
	logger      *slog.Logger
}

// New creates a Downloader. Remote keys are formed as feeds + basename(remote path).
func New(store feedtypes.ObjectStore, area *staging.Area, feeds string, opts ...Option) *Downloader {
	d := &Downloader{
		store:       store,
		area:        area,
		feeds:       feeds,
		buffers:     pool.NewBufferPool(),
		concurrency: 1,
		retry:       retry.Disabled,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// KeyFor returns the remote key a manifest row is fetched from.
func (d *Downloader) KeyFor(entry feedtypes.FileManifestEntry) string {
	return d.feeds + path.Base(entry.RemotePath)
}

// DownloadEntity fetches every file in state.FileManifests and records the local
// paths in state.ParsedFilenames, in manifest order. ParsedFilenames is reset
// first; on failure it holds the leading files that completed. Parse hints are
// set on entity only when every file succeeded.
func (d *Downloader) DownloadEntity(
	ctx context.Context,
	entity *feedtypes.Entity,
	state *feedtypes.SyncState,
) (*feedtypes.DownloadResult, error) {
	if entity == nil || state == nil {
		return nil, ferrors.NewError("download", ferrors.ErrInvalidInput).
			WithMessage("entity and state are required")
	}

	start := time.Now()
	state.ParsedFilenames = []string{}

	if err := d.area.EnsureDir(entity.ID); err != nil {
		return nil, ferrors.NewEntityError("download", entity.ID, fmt.Errorf("%w: %w", ferrors.ErrTransfer, err))
	}

	entries := state.FileManifests
	files := make([]feedtypes.DownloadedFile, len(entries))
	done := make([]bool, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, entry := range entries {
		g.Go(func() error {
			file, err := d.downloadFile(gctx, entity.ID, entry)
			if err != nil {
				return err
			}
			files[i] = file
			done[i] = true
			return nil
		})
	}

	err := g.Wait()

	for i := range entries {
		if !done[i] {
			break
		}
		state.ParsedFilenames = append(state.ParsedFilenames, files[i].LocalPath)
	}

	if err != nil {
		var ferr *ferrors.Error
		if errors.As(err, &ferr) && ferr.Entity == "" {
			return nil, ferr.WithEntity(entity.ID)
		}
		return nil, ferrors.NewEntityError("download", entity.ID, err)
	}

	entity.SetCustom(feedtypes.HintColumnSeparator, ColumnSeparator)
	entity.SetCustom(feedtypes.HintFileFormat, FileFormat)
	entity.SetCustom(feedtypes.HintSkipRows, SkipRows)

	result := &feedtypes.DownloadResult{
		EntityID: entity.ID,
		Files:    files,
		Duration: time.Since(start),
	}
	d.logger.Info("entity downloaded",
		"entity", entity.ID,
		"files", len(files),
		"duration", result.Duration,
	)
	return result, nil
}

func (d *Downloader) downloadFile(
	ctx context.Context,
	entityID string,
	entry feedtypes.FileManifestEntry,
) (feedtypes.DownloadedFile, error) {
	name := path.Base(entry.RemotePath)
	key := d.feeds + name
	if err := validation.ValidateLocalName(name); err != nil {
		return feedtypes.DownloadedFile{}, ferrors.NewError("download", err).WithKey(entry.RemotePath)
	}

	rel := filepath.Join(entityID, name)
	sizeHint, _ := strconv.ParseInt(entry.Size, 10, 64)

	var written int64
	err := retry.Do(ctx, d.retry, d.logger.With("entity", entityID, "key", key), func(attempt int) error {
		n, err := d.fetch(ctx, key, rel, sizeHint)
		if err != nil {
			d.logger.Debug("file transfer failed",
				"entity", entityID,
				"key", key,
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		written = n
		return nil
	})
	if err != nil {
		return feedtypes.DownloadedFile{}, ferrors.NewError("download", err).WithKey(key)
	}

	file := feedtypes.DownloadedFile{
		Key:       key,
		LocalPath: d.area.Path(rel),
		Size:      written,
	}
	d.logger.Info("file downloaded",
		"entity", entityID,
		"key", key,
		"path", file.LocalPath,
		"bytes", written,
	)
	return file, nil
}

// fetch performs one attempt: it opens the object and streams it into a
// freshly truncated local file.
func (d *Downloader) fetch(ctx context.Context, key, rel string, sizeHint int64) (int64, error) {
	if d.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.readTimeout)
		defer cancel()
	}

	body, err := d.store.Open(ctx, key)
	if err != nil {
		return 0, transferError(err)
	}
	defer body.Close()

	f, err := d.area.Create(rel)
	if err != nil {
		return 0, transferError(err)
	}

	n, copyErr := d.buffers.Copy(f, body, sizeHint)
	closeErr := f.Close()
	if copyErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return n, fmt.Errorf("%w: %w: %w", ferrors.ErrTransfer, ctxErr, copyErr)
		}
		return n, transferError(copyErr)
	}
	if closeErr != nil {
		return n, transferError(closeErr)
	}
	return n, nil
}

func transferError(err error) error {
	if errors.Is(err, ferrors.ErrTransfer) {
		return err
	}
	return fmt.Errorf("%w: %w", ferrors.ErrTransfer, err)
}
