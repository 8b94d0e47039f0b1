package manifest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/staging"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/testutil"
)

const manifestKey = "m/20230101.000000"

func rows(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func entities(ids ...string) []*feedtypes.Entity {
	out := make([]*feedtypes.Entity, len(ids))
	for i, id := range ids {
		out[i] = &feedtypes.Entity{ID: id}
	}
	return out
}

func newLoader(t *testing.T, content string) (*Loader, *staging.Area) {
	t.Helper()
	store := testutil.NewMemoryStore().PutString(manifestKey, content)
	area := staging.NewInMemory()
	return NewLoader(store, area, nil), area
}

func TestParse(t *testing.T) {
	entries, err := Parse([]byte(rows(
		"feeds/a.gz|x|2023-01-01|orders|1.0|120|abc",
		"feeds/b.gz|x|2023-01-02|items|1.0|64|def",
	)))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, feedtypes.FileManifestEntry{
		RemotePath:    "feeds/a.gz",
		Date:          "2023-01-01",
		EntityName:    "orders",
		EntityVersion: "1.0",
		Size:          "120",
		Hash:          "abc",
	}, entries[0])
}

func TestParse_WrongColumnCount(t *testing.T) {
	_, err := Parse([]byte("feeds/a.gz|x|2023-01-01|orders\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.ErrMalformedRow))
}

func TestLoader_DistributesRows(t *testing.T) {
	loader, area := newLoader(t, rows(
		"feeds/a.gz|x|2023-01-01|orders|1.0|120|abc",
		"feeds/c.gz|x|2023-01-01|items|1.0|10|ghi",
		"feeds/b.gz|x|2023-01-02|orders|1.0|64|def",
	))
	states := feedtypes.States{}
	desc := feedtypes.ManifestDescriptor{Key: manifestKey}

	result, err := loader.Load(context.Background(), desc, entities("orders", "items", "idle"), states)
	require.NoError(t, err)

	orders := states.Get("orders").FileManifests
	require.Len(t, orders, 2)
	assert.Equal(t, "feeds/a.gz", orders[0].RemotePath)
	assert.Equal(t, "feeds/b.gz", orders[1].RemotePath)
	assert.Len(t, states.Get("items").FileManifests, 1)

	idle := states.Get("idle").FileManifests
	assert.NotNil(t, idle)
	assert.Empty(t, idle)

	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, map[string]int{"orders": 2, "items": 1, "idle": 0}, result.PerEntity)

	local, err := area.ReadFile("20230101.000000")
	require.NoError(t, err)
	assert.Contains(t, string(local), "feeds/a.gz")
}

func TestLoader_ReplacesPreviousRows(t *testing.T) {
	loader, _ := newLoader(t, rows("feeds/new.gz|x|2023-01-01|orders|1.0|1|h"))
	states := feedtypes.States{}
	states.Get("orders").FileManifests = []feedtypes.FileManifestEntry{
		{RemotePath: "feeds/old.gz", EntityName: "orders"},
	}

	_, err := loader.Load(context.Background(), feedtypes.ManifestDescriptor{Key: manifestKey}, entities("orders"), states)
	require.NoError(t, err)

	got := states.Get("orders").FileManifests
	require.Len(t, got, 1)
	assert.Equal(t, "feeds/new.gz", got[0].RemotePath)
}

func TestLoader_UnknownEntityLeavesStateUntouched(t *testing.T) {
	loader, _ := newLoader(t, rows(
		"feeds/a.gz|x|2023-01-01|orders|1.0|1|h",
		"feeds/g.gz|x|2023-01-01|ghost|1.0|1|h",
	))
	previous := []feedtypes.FileManifestEntry{{RemotePath: "feeds/old.gz", EntityName: "orders"}}
	states := feedtypes.States{}
	states.Get("orders").FileManifests = previous

	_, err := loader.Load(context.Background(), feedtypes.ManifestDescriptor{Key: manifestKey}, entities("orders"), states)
	require.Error(t, err)
	assert.True(t, ferrors.IsManifestIntegrity(err))
	assert.True(t, ferrors.IsFatal(err))
	assert.Contains(t, err.Error(), "ghost")

	assert.Equal(t, previous, states.Get("orders").FileManifests)
}

func TestLoader_DisabledEntitiesAreTracked(t *testing.T) {
	loader, _ := newLoader(t, rows("feeds/a.gz|x|2023-01-01|paused|1.0|1|h"))
	list := []*feedtypes.Entity{{ID: "paused", Disabled: true}}
	states := feedtypes.States{}

	_, err := loader.Load(context.Background(), feedtypes.ManifestDescriptor{Key: manifestKey}, list, states)
	require.NoError(t, err)
	assert.Len(t, states.Get("paused").FileManifests, 1)
}

func TestLoader_MissingObject(t *testing.T) {
	loader := NewLoader(testutil.NewMemoryStore(), staging.NewInMemory(), nil)

	_, err := loader.Load(context.Background(), feedtypes.ManifestDescriptor{Key: manifestKey}, entities("orders"), feedtypes.States{})
	require.Error(t, err)
	assert.True(t, ferrors.IsObjectNotFound(err))
	assert.Contains(t, err.Error(), manifestKey)
}

func TestLoader_OverwritesLocalCopy(t *testing.T) {
	store := testutil.NewMemoryStore().PutString(manifestKey, rows("feeds/a.gz|x|2023-01-01|orders|1.0|1|h"))
	area := staging.NewInMemory()
	require.NoError(t, area.WriteFile("20230101.000000", []byte(strings.Repeat("stale", 100))))

	loader := NewLoader(store, area, nil)
	_, err := loader.Load(context.Background(), feedtypes.ManifestDescriptor{Key: manifestKey}, entities("orders"), feedtypes.States{})
	require.NoError(t, err)

	local, err := area.ReadFile("20230101.000000")
	require.NoError(t, err)
	assert.NotContains(t, string(local), "stale")
}
