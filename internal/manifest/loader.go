package manifest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/delimited"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/staging"
)

// Column positions within a manifest row. Column 1 is not used.
const (
	colPath = iota
	_
	colDate
	colEntityName
	colEntityVersion
	colSize
	colHash

	columns
)

// Parse reads manifest rows in file order.
func Parse(data []byte) ([]feedtypes.FileManifestEntry, error) {
	var entries []feedtypes.FileManifestEntry
	err := delimited.NewReader(bytes.NewReader(data), columns).Each(func(row []string, _ int) error {
		entries = append(entries, feedtypes.FileManifestEntry{
			RemotePath:    row[colPath],
			Date:          row[colDate],
			EntityName:    row[colEntityName],
			EntityVersion: row[colEntityVersion],
			Size:          row[colSize],
			Hash:          row[colHash],
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadResult summarizes a loaded manifest.
type LoadResult struct {
	Manifest  feedtypes.ManifestDescriptor
	LocalPath string
	Rows      int
	PerEntity map[string]int
}

// Loader fetches one manifest, keeps a local copy and distributes its rows to entities.
type Loader struct {
	store  feedtypes.ObjectStore
	area   *staging.Area
	logger *slog.Logger
}

// NewLoader creates a Loader writing local manifest copies into area.
func NewLoader(store feedtypes.ObjectStore, area *staging.Area, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{store: store, area: area, logger: logger}
}

// Load fetches the manifest, overwrites its local copy and replaces the
// FileManifests of every entity in states. Rows are validated before any state
// is touched: a row naming an entity that is not tracked fails the load with
// ErrManifestIntegrity and leaves all states unchanged.
func (l *Loader) Load(
	ctx context.Context,
	desc feedtypes.ManifestDescriptor,
	entities []*feedtypes.Entity,
	states feedtypes.States,
) (*LoadResult, error) {
	data, err := l.store.Get(ctx, desc.Key)
	if err != nil {
		return nil, ferrors.NewError("loadManifest", err).WithKey(desc.Key)
	}

	localName := path.Base(desc.Key)
	if err := l.area.WriteFile(localName, data); err != nil {
		return nil, ferrors.NewError("loadManifest", fmt.Errorf("%w: %w", ferrors.ErrTransfer, err)).WithKey(desc.Key)
	}

	entries, err := Parse(data)
	if err != nil {
		return nil, ferrors.NewError("loadManifest", err).WithKey(desc.Key)
	}

	tracked := make(map[string]bool, len(entities))
	for _, e := range entities {
		tracked[e.ID] = true
	}

	grouped := make(map[string][]feedtypes.FileManifestEntry, len(entities))
	for _, entry := range entries {
		if !tracked[entry.EntityName] {
			return nil, ferrors.NewError("loadManifest", ferrors.ErrManifestIntegrity).
				WithEntity(entry.EntityName).
				WithKey(desc.Key).
				WithMessage(fmt.Sprintf("entity %s is not in the entity configuration", entry.EntityName))
		}
		grouped[entry.EntityName] = append(grouped[entry.EntityName], entry)
	}

	result := &LoadResult{
		Manifest:  desc,
		LocalPath: l.area.Path(localName),
		Rows:      len(entries),
		PerEntity: make(map[string]int, len(entities)),
	}
	for _, e := range entities {
		rows := grouped[e.ID]
		if rows == nil {
			rows = []feedtypes.FileManifestEntry{}
		}
		states.Get(e.ID).FileManifests = rows
		result.PerEntity[e.ID] = len(rows)
	}

	l.logger.Info("manifest loaded",
		"key", desc.Key,
		"timestamp", desc.Timestamp,
		"rows", len(entries),
		"local_path", result.LocalPath,
	)
	return result, nil
}
