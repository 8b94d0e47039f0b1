package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/retry"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/staging"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/testutil"
)

func manifestRows(paths ...string) []feedtypes.FileManifestEntry {
	out := make([]feedtypes.FileManifestEntry, len(paths))
	for i, p := range paths {
		out[i] = feedtypes.FileManifestEntry{RemotePath: p, EntityName: "orders", EntityVersion: "1.0"}
	}
	return out
}

func TestDownloader_KeyFor(t *testing.T) {
	d := New(testutil.NewMemoryStore(), staging.NewInMemory(), "feeds/")
	assert.Equal(t, "feeds/a.gz", d.KeyFor(feedtypes.FileManifestEntry{RemotePath: "s3://other/x/y/a.gz"}))
	assert.Equal(t, "feeds/b.gz", d.KeyFor(feedtypes.FileManifestEntry{RemotePath: "b.gz"}))
}

func TestDownloader_DownloadEntity(t *testing.T) {
	store := testutil.NewMemoryStore().
		PutString("feeds/a.gz", "first").
		PutString("feeds/b.gz", "second")
	area := staging.NewInMemory()
	entity := &feedtypes.Entity{ID: "orders"}
	state := &feedtypes.SyncState{FileManifests: manifestRows("x/y/a.gz", "x/b.gz")}

	result, err := New(store, area, "feeds/").DownloadEntity(context.Background(), entity, state)
	require.NoError(t, err)

	assert.Equal(t, []string{area.Path("orders/a.gz"), area.Path("orders/b.gz")}, state.ParsedFilenames)
	require.Len(t, result.Files, 2)
	assert.Equal(t, "feeds/a.gz", result.Files[0].Key)
	assert.Equal(t, int64(6), result.Files[1].Size)
	assert.Equal(t, "orders", result.EntityID)

	data, err := area.ReadFile("orders/b.gz")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	assert.Equal(t, "|", entity.Custom[feedtypes.HintColumnSeparator])
	assert.Equal(t, "gzip", entity.Custom[feedtypes.HintFileFormat])
	assert.Equal(t, 0, entity.Custom[feedtypes.HintSkipRows])
}

func TestDownloader_ResetsParsedFilenames(t *testing.T) {
	store := testutil.NewMemoryStore().PutString("feeds/a.gz", "a")
	state := &feedtypes.SyncState{
		FileManifests:   manifestRows("a.gz"),
		ParsedFilenames: []string{"/stale/one", "/stale/two"},
	}
	d := New(store, staging.NewInMemory(), "feeds/")

	for i := 0; i < 2; i++ {
		_, err := d.DownloadEntity(context.Background(), &feedtypes.Entity{ID: "orders"}, state)
		require.NoError(t, err)
		assert.Len(t, state.ParsedFilenames, 1)
	}
}

func TestDownloader_OverwritesExistingFiles(t *testing.T) {
	store := testutil.NewMemoryStore().PutString("feeds/a.gz", "new")
	area := staging.NewInMemory()
	require.NoError(t, area.EnsureDir("orders"))
	require.NoError(t, area.WriteFile("orders/a.gz", []byte(strings.Repeat("old", 1000))))

	_, err := New(store, area, "feeds/").DownloadEntity(context.Background(),
		&feedtypes.Entity{ID: "orders"},
		&feedtypes.SyncState{FileManifests: manifestRows("a.gz")},
	)
	require.NoError(t, err)

	data, err := area.ReadFile("orders/a.gz")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestDownloader_EmptyManifest(t *testing.T) {
	area := staging.NewInMemory()
	entity := &feedtypes.Entity{ID: "orders"}
	state := &feedtypes.SyncState{FileManifests: []feedtypes.FileManifestEntry{}}

	result, err := New(testutil.NewMemoryStore(), area, "feeds/").DownloadEntity(context.Background(), entity, state)
	require.NoError(t, err)

	assert.NotNil(t, state.ParsedFilenames)
	assert.Empty(t, state.ParsedFilenames)
	assert.Empty(t, result.Files)
	assert.Equal(t, "gzip", entity.Custom[feedtypes.HintFileFormat])

	exists, err := area.Exists("orders")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDownloader_MissingObject(t *testing.T) {
	store := testutil.NewMemoryStore().PutString("feeds/a.gz", "a")
	entity := &feedtypes.Entity{ID: "orders"}
	state := &feedtypes.SyncState{FileManifests: manifestRows("a.gz", "missing.gz", "c.gz")}
	area := staging.NewInMemory()

	_, err := New(store, area, "feeds/").DownloadEntity(context.Background(), entity, state)
	require.Error(t, err)

	assert.True(t, ferrors.IsTransfer(err))
	assert.True(t, ferrors.IsObjectNotFound(err))
	assert.False(t, ferrors.IsFatal(err))
	assert.Contains(t, err.Error(), "entity orders")
	assert.Contains(t, err.Error(), "feeds/missing.gz")

	assert.Equal(t, []string{area.Path("orders/a.gz")}, state.ParsedFilenames)
	assert.NotContains(t, entity.Custom, feedtypes.HintFileFormat)
}

func TestDownloader_MidStreamFailure(t *testing.T) {
	store := testutil.NewMemoryStore().PutString("feeds/a.gz", "partial")
	store.FailRead("feeds/a.gz", io.ErrUnexpectedEOF)

	_, err := New(store, staging.NewInMemory(), "feeds/").DownloadEntity(context.Background(),
		&feedtypes.Entity{ID: "orders"},
		&feedtypes.SyncState{FileManifests: manifestRows("a.gz")},
	)
	require.Error(t, err)
	assert.True(t, ferrors.IsTransfer(err))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestDownloader_ParallelKeepsManifestOrder(t *testing.T) {
	store := testutil.NewMemoryStore()
	area := staging.NewInMemory()

	var paths, want []string
	for i := 0; i < 25; i++ {
		name := fmt.Sprintf("part-%02d.gz", i)
		store.PutString("feeds/"+name, name)
		paths = append(paths, "remote/"+name)
		want = append(want, area.Path("orders/"+name))
	}
	state := &feedtypes.SyncState{FileManifests: manifestRows(paths...)}

	result, err := New(store, area, "feeds/", WithConcurrency(6)).
		DownloadEntity(context.Background(), &feedtypes.Entity{ID: "orders"}, state)
	require.NoError(t, err)

	assert.Equal(t, want, state.ParsedFilenames)
	for i, f := range result.Files {
		assert.Equal(t, want[i], f.LocalPath)
	}
}

func TestDownloader_RetriesTransientFailures(t *testing.T) {
	store := testutil.NewMemoryStore().PutString("feeds/a.gz", "payload")
	store.FailOpen("feeds/a.gz",
		&smithy.GenericAPIError{Code: "SlowDown"},
		&smithy.GenericAPIError{Code: "InternalError"},
	)
	area := staging.NewInMemory()
	policy := retry.Policy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	_, err := New(store, area, "feeds/", WithRetryPolicy(policy)).DownloadEntity(context.Background(),
		&feedtypes.Entity{ID: "orders"},
		&feedtypes.SyncState{FileManifests: manifestRows("a.gz")},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Opens("feeds/a.gz"))

	data, err := area.ReadFile("orders/a.gz")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestDownloader_NoRetryByDefault(t *testing.T) {
	store := testutil.NewMemoryStore().PutString("feeds/a.gz", "payload")
	store.FailOpen("feeds/a.gz", &smithy.GenericAPIError{Code: "SlowDown"})

	_, err := New(store, staging.NewInMemory(), "feeds/").DownloadEntity(context.Background(),
		&feedtypes.Entity{ID: "orders"},
		&feedtypes.SyncState{FileManifests: manifestRows("a.gz")},
	)
	require.Error(t, err)
	assert.Equal(t, 1, store.Opens("feeds/a.gz"))
}

// stallingStore blocks every Open until the context ends.
type stallingStore struct {
	*testutil.MemoryStore
}

func (s stallingStore) Open(ctx context.Context, _ string) (io.ReadCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestDownloader_ReadTimeout(t *testing.T) {
	store := stallingStore{testutil.NewMemoryStore()}

	_, err := New(store, staging.NewInMemory(), "feeds/", WithReadTimeout(10*time.Millisecond)).
		DownloadEntity(context.Background(),
			&feedtypes.Entity{ID: "orders"},
			&feedtypes.SyncState{FileManifests: manifestRows("a.gz")},
		)
	require.Error(t, err)
	assert.True(t, ferrors.IsTransfer(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDownloader_RejectsUnusableNames(t *testing.T) {
	_, err := New(testutil.NewMemoryStore(), staging.NewInMemory(), "feeds/").DownloadEntity(context.Background(),
		&feedtypes.Entity{ID: "orders"},
		&feedtypes.SyncState{FileManifests: manifestRows("dir/..")},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.ErrInvalidInput))
}

func TestDownloader_RequiresEntityAndState(t *testing.T) {
	d := New(testutil.NewMemoryStore(), staging.NewInMemory(), "feeds/")

	_, err := d.DownloadEntity(context.Background(), nil, &feedtypes.SyncState{})
	assert.ErrorIs(t, err, ferrors.ErrInvalidInput)

	_, err = d.DownloadEntity(context.Background(), &feedtypes.Entity{ID: "orders"}, nil)
	assert.ErrorIs(t, err, ferrors.ErrInvalidInput)
}
