package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/validation"
)

// MinioStore reads objects from one bucket on an S3 compatible server.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinio connects to the server at opts.Endpoint. The endpoint may carry an
// http or https scheme; without one TLS is used.
func NewMinio(opts Options) (*MinioStore, error) {
	if err := validation.ValidateBucketName(opts.Bucket); err != nil {
		return nil, ferrors.NewError("objectstore", err)
	}
	if opts.Endpoint == "" {
		return nil, ferrors.NewError("objectstore", ferrors.ErrInvalidInput).
			WithMessage("minio backend requires an endpoint")
	}

	host, secure, err := splitEndpoint(opts.Endpoint)
	if err != nil {
		return nil, ferrors.NewError("objectstore", err)
	}

	lookup := minio.BucketLookupAuto
	if opts.ForcePathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       secure,
		Region:       opts.region(),
		BucketLookup: lookup,
		MaxRetries:   transportAttempts,
	})
	if err != nil {
		return nil, ferrors.NewError("objectstore", err)
	}

	return &MinioStore{client: client, bucket: opts.Bucket}, nil
}

func splitEndpoint(endpoint string) (host string, secure bool, err error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		// bare host:port
		return endpoint, true, nil //nolint:nilerr // not a URL
	}

	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("%w: unsupported endpoint scheme %q", ferrors.ErrInvalidInput, u.Scheme)
	}
}

// Bucket returns the bucket the store reads from.
func (s *MinioStore) Bucket() string {
	return s.bucket
}

// List returns every object under prefix.
func (s *MinioStore) List(ctx context.Context, prefix string) ([]feedtypes.ObjectInfo, error) {
	if err := validation.ValidatePrefix(prefix); err != nil {
		return nil, err
	}

	var out []feedtypes.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, translateError(obj.Err)
		}
		out = append(out, feedtypes.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
		})
	}
	return out, nil
}

// Get reads the object at key into memory.
func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, translateError(err)
	}
	return buf.Bytes(), nil
}

// Open returns a stream over the object at key. The object is stat'ed first so
// a missing key is reported here rather than on the first read.
func (s *MinioStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validation.ValidateKey(key); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateError(err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, translateError(err)
	}
	return obj, nil
}

// translateError maps minio error responses onto sentinel errors.
func translateError(err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: %w", ferrors.ErrObjectNotFound, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %w", ferrors.ErrAccessDenied, err)
		}
	}
	return fmt.Errorf("%w: %w", ferrors.ErrTransfer, err)
}

var _ feedtypes.ObjectStore = (*MinioStore)(nil)
