package feedsync

import (
	"context"
	"time"

	"github.com/google/uuid"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/logging"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/metadata"
)

// CycleResult reports a RunCycle invocation.
type CycleResult struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Discovery *DiscoveryResult `json:"discovery,omitempty"`

	// Manifests is the indexed manifest sequence, oldest first
	Manifests []feedtypes.ManifestDescriptor `json:"manifests"`

	// Load is nil when no manifest was pending
	Load *LoadResult `json:"load,omitempty"`

	// Download is nil when no manifest was pending
	Download *DownloadSummary `json:"download,omitempty"`

	// Checkpointed reports whether the manifest was recorded as processed
	Checkpointed bool `json:"checkpointed"`
}

// Pending reports whether the cycle found a manifest to process.
func (r *CycleResult) Pending() bool {
	return r.Load != nil
}

// RunCycle runs a full synchronization cycle: schema discovery, manifest
// indexing, loading of the oldest unprocessed manifest and download of every
// enabled entity. When the entity store is a Checkpointer and every entity
// succeeded, the manifest is recorded as processed. The client is returned to
// PhaseIdle whether or not the cycle succeeded.
func (c *Client) RunCycle(ctx context.Context) (*CycleResult, error) {
	result := &CycleResult{
		RunID:     uuid.NewString(),
		StartedAt: c.now(),
	}
	ctx = logging.WithRunID(ctx, result.RunID)
	logger := c.log(ctx)
	defer c.Reset()

	logger.Info("cycle started")

	discovery, err := c.DiscoverSchema(ctx)
	if err != nil {
		return result, err
	}
	result.Discovery = discovery

	manifests, err := c.IndexManifests(ctx)
	if err != nil {
		return result, err
	}
	result.Manifests = manifests

	index, ok, err := c.NextManifest(ctx)
	if err != nil {
		return result, err
	}
	if !ok {
		result.FinishedAt = c.now()
		logger.Info("no pending manifest", "indexed", len(manifests))
		return result, nil
	}

	load, err := c.LoadManifest(ctx, index)
	if err != nil {
		return result, err
	}
	result.Load = load

	summary, err := c.DownloadAll(ctx)
	result.Download = summary
	if err != nil {
		return result, err
	}

	if len(summary.Failed) == 0 {
		if err := c.checkpoint(ctx, result.RunID, load.Manifest); err != nil {
			return result, err
		}
		result.Checkpointed = c.isCheckpointer()
	}

	result.FinishedAt = c.now()
	logger.Info("cycle finished",
		"manifest", load.Manifest.Key,
		"downloaded", len(summary.Downloads),
		"failed", len(summary.Failed),
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)
	return result, nil
}

func (c *Client) isCheckpointer() bool {
	_, ok := c.entities.(Checkpointer)
	return ok
}

func (c *Client) checkpoint(ctx context.Context, runID string, desc feedtypes.ManifestDescriptor) error {
	cp, ok := c.entities.(Checkpointer)
	if !ok {
		return nil
	}
	err := cp.MarkManifestProcessed(ctx, metadata.Checkpoint{
		RunID:       runID,
		Key:         desc.Key,
		Timestamp:   desc.Timestamp,
		ProcessedAt: c.now(),
	})
	if err != nil {
		return ferrors.NewError("runCycle", err).WithKey(desc.Key)
	}
	return nil
}
