package feedsync

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/errgroup"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
)

// DownloadEntity downloads the files the loaded manifest lists for entity id into
// <local_path>/<id>/, then persists the parse hints on the entity. It must not
// run concurrently for the same entity.
func (c *Client) DownloadEntity(ctx context.Context, id string) (*feedtypes.DownloadResult, error) {
	entity, state, err := c.target("downloadEntity", id)
	if err != nil {
		return nil, err
	}
	return c.download(ctx, entity, state)
}

func (c *Client) target(op, id string) (*feedtypes.Entity, *feedtypes.SyncState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireLocked(op, PhaseManifestLoaded); err != nil {
		return nil, nil, err
	}
	for _, e := range c.tracked {
		if e.ID == id {
			return e, c.states.Get(id), nil
		}
	}
	return nil, nil, ferrors.NewEntityError(op, id, ferrors.ErrEntityNotFound)
}

func (c *Client) download(
	ctx context.Context,
	entity *feedtypes.Entity,
	state *feedtypes.SyncState,
) (*feedtypes.DownloadResult, error) {
	work := &feedtypes.SyncState{FileManifests: state.FileManifests}
	result, err := c.downloader.DownloadEntity(ctx, entity, work)

	c.mu.Lock()
	state.ParsedFilenames = work.ParsedFilenames
	c.mu.Unlock()

	if err != nil {
		c.log(ctx).Error("entity download failed", "entity", entity.ID, "error", err)
		return nil, err
	}
	if err := c.entities.SaveEntity(ctx, entity); err != nil {
		return nil, ferrors.NewEntityError("downloadEntity", entity.ID, err)
	}

	c.mu.Lock()
	c.phase = PhaseEntityDataDownloaded
	c.mu.Unlock()
	return result, nil
}

// DownloadSummary reports a DownloadAll run.
type DownloadSummary struct {
	// Downloads holds the result of every entity that completed
	Downloads map[string]*feedtypes.DownloadResult `json:"downloads"`

	// Failed holds the error of every entity that failed
	Failed map[string]error `json:"-"`

	// Skipped lists disabled entities
	Skipped []string `json:"skipped"`
}

// MarshalJSON renders failures as their messages.
func (s *DownloadSummary) MarshalJSON() ([]byte, error) {
	type plain DownloadSummary
	failed := make(map[string]string, len(s.Failed))
	for id, err := range s.Failed {
		failed[id] = err.Error()
	}
	return json.Marshal(struct {
		*plain
		Failed map[string]string `json:"failed"`
	}{(*plain)(s), failed})
}

// DownloadAll downloads every enabled tracked entity. Up to the configured
// concurrency entities run at once. The first failure cancels the remaining
// entities and is returned, unless WithContinueOnEntityError is set, in which
// case failures are collected in the summary and DownloadAll returns no error.
func (c *Client) DownloadAll(ctx context.Context) (*DownloadSummary, error) {
	c.mu.Lock()
	if err := c.requireLocked("downloadAll", PhaseManifestLoaded); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	type job struct {
		entity *feedtypes.Entity
		state  *feedtypes.SyncState
	}
	summary := &DownloadSummary{
		Downloads: make(map[string]*feedtypes.DownloadResult),
		Failed:    make(map[string]error),
	}
	var jobs []job
	for _, e := range c.tracked {
		if e.Disabled {
			summary.Skipped = append(summary.Skipped, e.ID)
			continue
		}
		jobs = append(jobs, job{entity: e, state: c.states.Get(e.ID)})
	}
	c.mu.Unlock()

	var (
		mu      sync.Mutex
		g, gctx = errgroup.WithContext(ctx)
	)
	g.SetLimit(c.opts.concurrency)

	for _, j := range jobs {
		g.Go(func() error {
			res, err := c.download(gctx, j.entity, j.state)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed[j.entity.ID] = err
				if c.opts.continueOnError && !ferrors.IsFatal(err) {
					return nil
				}
				return err
			}
			summary.Downloads[j.entity.ID] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	c.log(ctx).Info("entities downloaded",
		"downloaded", len(summary.Downloads),
		"failed", len(summary.Failed),
		"skipped", len(summary.Skipped),
	)
	return summary, nil
}
