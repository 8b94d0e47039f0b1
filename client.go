package feedsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/feedsync/config"
	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/logging"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/manifest"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/objectstore"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/reconcile"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/retry"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/staging"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/transfer"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/metadata"
)

// Paths locates the feed description, manifests and data files in the object store.
type Paths struct {
	// Feed is the key of the feed description
	Feed string

	// Manifests is the prefix manifests are listed under
	Manifests string

	// Feeds is the prefix data files are fetched from
	Feeds string

	// LocalPath is the staging root on the local filesystem
	LocalPath string
}

// Client drives synchronization cycles. It is safe for concurrent use, but
// cycle phases are expected to be invoked in order.
type Client struct {
	objects  feedtypes.ObjectStore
	entities feedtypes.EntityStore
	area     *staging.Area
	paths    Paths
	opts     options
	logger   *slog.Logger

	reconciler *reconcile.Reconciler
	indexer    *manifest.Indexer
	loader     *manifest.Loader
	downloader *transfer.Downloader

	mu        sync.Mutex
	phase     Phase
	manifests []feedtypes.ManifestDescriptor
	current   *feedtypes.ManifestDescriptor
	tracked   []*feedtypes.Entity
	states    feedtypes.States
}

// New creates a Client from a validated configuration. The object store is built
// from the configured backend; entities default to an in-memory store seeded
// from cfg.Entities. Secret references must already be resolved.
//
// Example:
//
//	client, err := feedsync.New(ctx, cfg,
//	    feedsync.WithLogger(logger),
//	    feedsync.WithEntityStore(store),
//	)
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ferrors.NewError("new", ferrors.ErrMissingConfig)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := objectstore.New(ctx, objectstore.Options{
		Backend:        cfg.Backend,
		Bucket:         cfg.Bucket,
		Region:         cfg.Region,
		Endpoint:       cfg.Endpoint,
		AccessKey:      cfg.Key,
		SecretKey:      cfg.Secret,
		ForcePathStyle: cfg.ForcePathStyle,
		Timeout:        cfg.ReadTimeout(),
	})
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithConcurrency(cfg.Concurrency),
		WithMaxRetries(cfg.MaxRetries),
		WithReadTimeout(cfg.ReadTimeout()),
	}
	o := buildOptions(append(base, opts...))

	if o.entities == nil {
		mem := metadata.NewMemoryStore()
		if err := mem.Seed(ctx, cfg.SeedEntities()); err != nil {
			return nil, err
		}
		o.entities = mem
	}

	paths := Paths{
		Feed:      cfg.FeedKey(),
		Manifests: cfg.Manifests,
		Feeds:     cfg.Feeds,
		LocalPath: cfg.LocalPath,
	}
	return newClient(store, o.entities, paths, o)
}

// NewWithStore creates a Client over existing stores. It is primarily used for
// testing and for embedding feedsync with custom storage backends.
func NewWithStore(
	objects feedtypes.ObjectStore,
	entities feedtypes.EntityStore,
	paths Paths,
	opts ...Option,
) (*Client, error) {
	o := buildOptions(opts)
	if o.entities != nil {
		entities = o.entities
	}
	return newClient(objects, entities, paths, o)
}

func buildOptions(opts []Option) options {
	o := options{
		clock:          feedtypes.SystemClock(),
		concurrency:    config.DefaultConcurrency,
		retryBaseDelay: retry.DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrDiscard(o.logger)
	return o
}

func newClient(
	objects feedtypes.ObjectStore,
	entities feedtypes.EntityStore,
	paths Paths,
	o options,
) (*Client, error) {
	if objects == nil || entities == nil {
		return nil, ferrors.NewError("new", ferrors.ErrInvalidInput).
			WithMessage("object store and entity store are required")
	}
	if err := validation.ValidateKey(paths.Feed); err != nil {
		return nil, ferrors.NewError("new", err).WithMessage("feed key")
	}
	if err := validation.ValidatePrefix(paths.Manifests); err != nil {
		return nil, ferrors.NewError("new", err).WithMessage("manifests prefix")
	}
	if err := validation.ValidatePrefix(paths.Feeds); err != nil {
		return nil, ferrors.NewError("new", err).WithMessage("feeds prefix")
	}

	var area *staging.Area
	switch {
	case o.staging != nil:
		area = staging.New(o.staging)
	case paths.LocalPath != "":
		area = staging.NewOS(paths.LocalPath)
	default:
		return nil, ferrors.NewError("new", ferrors.ErrMissingConfig).WithMessage("local_path")
	}

	policy := retry.Policy{
		MaxRetries: o.maxRetries,
		BaseDelay:  o.retryBaseDelay,
		MaxDelay:   retry.DefaultMaxDelay,
	}

	return &Client{
		objects:    objects,
		entities:   entities,
		area:       area,
		paths:      paths,
		opts:       o,
		logger:     o.logger,
		reconciler: reconcile.New(o.logger),
		indexer:    manifest.NewIndexer(objects, o.logger),
		loader:     manifest.NewLoader(objects, area, o.logger),
		downloader: transfer.New(objects, area, paths.Feeds,
			transfer.WithConcurrency(o.concurrency),
			transfer.WithRetryPolicy(policy),
			transfer.WithReadTimeout(o.readTimeout),
			transfer.WithLogger(o.logger),
		),
	}, nil
}

// StagingRoot returns the root of the local staging area.
func (c *Client) StagingRoot() string {
	return c.area.Root()
}

// Entities returns the entity store used by the client.
func (c *Client) Entities() feedtypes.EntityStore {
	return c.entities
}

// Close releases the entity store when it owns resources.
func (c *Client) Close() error {
	if closer, ok := c.entities.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (c *Client) now() time.Time {
	return c.opts.clock.Now()
}

func (c *Client) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, c.logger)
}
