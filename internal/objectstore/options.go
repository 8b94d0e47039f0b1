package objectstore

import (
	"context"
	"fmt"
	"time"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
)

// Supported backends.
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// Options describes how to reach the remote bucket.
type Options struct {
	Backend        string
	Bucket         string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
	Timeout        time.Duration
}

// transportAttempts disables SDK level retries; retrying is owned by the caller.
const transportAttempts = 1

func (o Options) region() string {
	if o.Region == "" {
		return DefaultRegion
	}
	return o.Region
}

// New creates the object store selected by opts.Backend. An empty backend selects S3.
//
//nolint:ireturn // the backend is chosen at runtime.
func New(ctx context.Context, opts Options) (feedtypes.ObjectStore, error) {
	switch opts.Backend {
	case "", BackendS3:
		return NewS3(ctx, opts)
	case BackendMinio:
		return NewMinio(opts)
	default:
		return nil, ferrors.NewError("objectstore", ferrors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("unsupported backend %q", opts.Backend))
	}
}
