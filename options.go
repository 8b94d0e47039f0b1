package feedsync

import (
	"log/slog"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	clock           feedtypes.Clock
	staging         billy.Filesystem
	entities        feedtypes.EntityStore
	concurrency     int
	maxRetries      int
	retryBaseDelay  time.Duration
	readTimeout     time.Duration
	continueOnError bool
}

// WithLogger sets the structured logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the clock used to stamp cycles and checkpoints.
func WithClock(clock feedtypes.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithStagingFS writes the staging area into fsys instead of the configured local path.
func WithStagingFS(fsys billy.Filesystem) Option {
	return func(o *options) {
		o.staging = fsys
	}
}

// WithEntityStore sets the metadata store holding tracked entities.
// New defaults to an in-memory store seeded from the configuration.
func WithEntityStore(store feedtypes.EntityStore) Option {
	return func(o *options) {
		o.entities = store
	}
}

// WithConcurrency bounds parallel transfers within one entity and the number of
// entities downloaded at once by DownloadAll. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithMaxRetries retries transient read failures up to n times. Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithRetryBaseDelay sets the initial backoff between retries.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryBaseDelay = d
		}
	}
}

// WithReadTimeout bounds a single object read. Zero disables the deadline.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.readTimeout = d
		}
	}
}

// WithContinueOnEntityError lets DownloadAll carry on with the remaining
// entities when one entity fails. Failures are reported in the result.
func WithContinueOnEntityError(enabled bool) Option {
	return func(o *options) {
		o.continueOnError = enabled
	}
}
