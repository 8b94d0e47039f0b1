package feedsync

import (
	"bytes"
	"context"
	"fmt"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/feed"
)

// LocalFeedName is the staging file the feed description is written to.
const LocalFeedName = "feed.csv"

// DiscoveryResult reports a schema discovery run.
type DiscoveryResult struct {
	// Tree is the parsed feed description
	Tree feedtypes.SchemaTree `json:"tree"`

	// LocalPath is the staged copy of the feed description
	LocalPath string `json:"local_path"`

	// Merged lists the enabled entities the schema was merged into
	Merged []string `json:"merged"`

	// Skipped lists disabled entities
	Skipped []string `json:"skipped"`

	// Added maps entity id to the fields appended by the merge
	Added map[string][]string `json:"added"`

	// Unmerged maps entity id to the other schema versions the feed offers
	Unmerged map[string][]string `json:"unmerged_versions,omitempty"`
}

// DiscoverSchema downloads and parses the feed description and merges schema
// version 1.0 into every enabled tracked entity. It starts a new cycle: any
// state from a previous cycle is discarded.
//
// A tracked entity without a 1.0 bucket fails with ErrSchemaMismatch and no
// entity is saved.
func (c *Client) DiscoverSchema(ctx context.Context) (*DiscoveryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()

	logger := c.log(ctx)

	data, err := c.objects.Get(ctx, c.paths.Feed)
	if err != nil {
		return nil, ferrors.NewError("discoverSchema", err).WithKey(c.paths.Feed)
	}
	if err := c.area.WriteFile(LocalFeedName, data); err != nil {
		return nil, ferrors.NewError("discoverSchema", fmt.Errorf("%w: %w", ferrors.ErrTransfer, err)).
			WithKey(c.area.Path(LocalFeedName))
	}

	tree, err := feed.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, ferrors.NewError("discoverSchema", err).WithKey(c.paths.Feed)
	}
	c.phase = PhaseFeedDiscovered
	logger.Info("feed discovered", "key", c.paths.Feed, "entities", len(tree))

	entities, err := c.entities.ListEntities(ctx)
	if err != nil {
		return nil, ferrors.NewError("discoverSchema", err)
	}

	report, err := c.reconciler.Reconcile(tree, entities)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*feedtypes.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}
	for _, id := range report.Merged {
		if err := c.entities.SaveEntity(ctx, byID[id]); err != nil {
			return nil, ferrors.NewEntityError("discoverSchema", id, err)
		}
	}
	c.phase = PhaseSchemaReconciled

	logger.Info("schema reconciled",
		"merged", len(report.Merged),
		"skipped", len(report.Skipped),
	)
	return &DiscoveryResult{
		Tree:      tree,
		LocalPath: c.area.Path(LocalFeedName),
		Merged:    report.Merged,
		Skipped:   report.Skipped,
		Added:     report.Added,
		Unmerged:  report.Unmerged,
	}, nil
}
