package feedsync

import (
	"context"
	"fmt"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/metadata"
)

// LoadResult reports a loaded manifest.
type LoadResult struct {
	Manifest  feedtypes.ManifestDescriptor `json:"manifest"`
	Index     int                          `json:"index"`
	LocalPath string                       `json:"local_path"`
	Rows      int                          `json:"rows"`

	// PerEntity counts the rows assigned to each tracked entity
	PerEntity map[string]int `json:"per_entity"`
}

// Checkpointer records processed manifests. metadata.SQLiteStore and
// metadata.MemoryStore implement it; when the entity store does, RunCycle
// skips manifests that were already processed.
type Checkpointer interface {
	MarkManifestProcessed(ctx context.Context, cp metadata.Checkpoint) error
	ProcessedManifests(ctx context.Context) ([]metadata.Checkpoint, error)
}

// IndexManifests lists the manifests under the configured prefix, oldest first.
// It may be called from any phase; a loaded manifest is discarded.
func (c *Client) IndexManifests(ctx context.Context) ([]feedtypes.ManifestDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	descriptors, err := c.indexer.Index(ctx, c.paths.Manifests)
	if err != nil {
		return nil, err
	}

	c.manifests = descriptors
	c.current = nil
	c.tracked = nil
	c.states = nil
	c.phase = PhaseManifestIndexed

	out := make([]feedtypes.ManifestDescriptor, len(descriptors))
	copy(out, descriptors)
	return out, nil
}

// NextManifest returns the index of the oldest indexed manifest that has not
// been checkpointed. Without a Checkpointer it is always 0. ok is false when
// every manifest was processed or none exist.
func (c *Client) NextManifest(ctx context.Context) (index int, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireLocked("nextManifest", PhaseManifestIndexed); err != nil {
		return 0, false, err
	}
	if len(c.manifests) == 0 {
		return 0, false, nil
	}

	cp, isCheckpointer := c.entities.(Checkpointer)
	if !isCheckpointer {
		return 0, true, nil
	}

	processed, err := cp.ProcessedManifests(ctx)
	if err != nil {
		return 0, false, ferrors.NewError("nextManifest", err)
	}
	done := make(map[string]bool, len(processed))
	for _, p := range processed {
		done[p.Key] = true
	}
	for i, m := range c.manifests {
		if !done[m.Key] {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// LoadManifest loads the manifest at index (0 is the oldest) and replaces the
// file list of every tracked entity, disabled ones included. A row naming an
// untracked entity fails with ErrManifestIntegrity and no state is changed.
func (c *Client) LoadManifest(ctx context.Context, index int) (*LoadResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireLocked("loadManifest", PhaseManifestIndexed); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(c.manifests) {
		return nil, ferrors.NewError("loadManifest", ferrors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("manifest index %d out of range [0, %d)", index, len(c.manifests)))
	}

	entities, err := c.entities.ListEntities(ctx)
	if err != nil {
		return nil, ferrors.NewError("loadManifest", err)
	}

	desc := c.manifests[index]
	states := c.states
	if states == nil {
		states = feedtypes.States{}
	}

	res, err := c.loader.Load(ctx, desc, entities, states)
	if err != nil {
		return nil, err
	}

	c.current = &desc
	c.tracked = entities
	c.states = states
	c.phase = PhaseManifestLoaded

	c.log(ctx).Debug("manifest selected", "index", index, "key", desc.Key)
	return &LoadResult{
		Manifest:  res.Manifest,
		Index:     index,
		LocalPath: res.LocalPath,
		Rows:      res.Rows,
		PerEntity: res.PerEntity,
	}, nil
}

// State returns a copy of the synchronization state of entity id for the
// loaded manifest. Downloaded paths are published when an entity download
// finishes, so State is safe to call while downloads run.
func (c *Client) State(id string) (feedtypes.SyncState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[id]
	if !ok {
		return feedtypes.SyncState{}, false
	}
	return feedtypes.SyncState{
		FileManifests:   append([]feedtypes.FileManifestEntry(nil), st.FileManifests...),
		ParsedFilenames: append([]string(nil), st.ParsedFilenames...),
	}, true
}
