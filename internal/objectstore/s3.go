package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/validation"
)

// maxPageSize is the largest page S3 returns for ListObjectsV2.
const maxPageSize int32 = 1000

// S3Store reads objects from one S3 bucket.
type S3Store struct {
	client   s3api.S3API
	bucket   string
	pageSize int32
}

// NewS3Store creates an S3Store over an existing client.
func NewS3Store(client s3api.S3API, bucket string) *S3Store {
	return &S3Store{
		client:   client,
		bucket:   bucket,
		pageSize: maxPageSize,
	}
}

// NewS3 builds an AWS S3 client from opts and wraps it in an S3Store.
func NewS3(ctx context.Context, opts Options) (*S3Store, error) {
	if err := validation.ValidateBucketName(opts.Bucket); err != nil {
		return nil, ferrors.NewError("objectstore", err)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(opts.region()),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		),
		config.WithRetryMaxAttempts(transportAttempts),
	)
	if err != nil {
		return nil, ferrors.NewError("objectstore", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		})
	}
	if opts.Timeout > 0 {
		httpClient := &http.Client{Timeout: opts.Timeout}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return NewS3Store(s3.NewFromConfig(cfg, s3Opts...), opts.Bucket), nil
}

// Bucket returns the bucket the store reads from.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// List returns every object under prefix, following continuation tokens.
func (s *S3Store) List(ctx context.Context, prefix string) ([]feedtypes.ObjectInfo, error) {
	if err := validation.ValidatePrefix(prefix); err != nil {
		return nil, err
	}

	var out []feedtypes.ObjectInfo
	paginator := newPaginator(s.client, s.bucket, prefix, s.pageSize)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classifyError(err)
		}
		out = append(out, page...)
	}
	return out, nil
}

// Get reads the object at key into memory.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ferrors.ErrTransfer, key, err)
	}
	return buf.Bytes(), nil
}

// Open returns a stream over the object at key.
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validation.ValidateKey(key); err != nil {
		return nil, err
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return output.Body, nil
}

// paginator walks ListObjectsV2 pages using continuation tokens.
type paginator struct {
	client            s3api.S3API
	bucket            string
	prefix            string
	pageSize          int32
	continuationToken *string
	hasMorePages      bool
	firstPage         bool
}

func newPaginator(client s3api.S3API, bucket, prefix string, pageSize int32) *paginator {
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return &paginator{
		client:    client,
		bucket:    bucket,
		prefix:    prefix,
		pageSize:  pageSize,
		firstPage: true,
	}
}

// HasMorePages returns true if there are more pages to fetch.
func (p *paginator) HasMorePages() bool {
	return p.firstPage || p.hasMorePages
}

// NextPage fetches the next page of results.
func (p *paginator) NextPage(ctx context.Context) ([]feedtypes.ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		Prefix:  aws.String(p.prefix),
		MaxKeys: aws.Int32(p.pageSize),
	}
	if !p.firstPage && p.continuationToken != nil {
		input.ContinuationToken = p.continuationToken
	}

	output, err := p.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("list objects page: %w", err)
	}

	p.firstPage = false
	p.hasMorePages = aws.ToBool(output.IsTruncated)
	p.continuationToken = output.NextContinuationToken

	objects := make([]feedtypes.ObjectInfo, 0, len(output.Contents))
	for _, obj := range output.Contents {
		objects = append(objects, feedtypes.ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         aws.ToString(obj.ETag),
		})
	}
	return objects, nil
}

// classifyError maps AWS SDK errors onto sentinel errors, keeping the original in the chain.
func classifyError(err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return fmt.Errorf("%w: %w", ferrors.ErrObjectNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%w: %w", ferrors.ErrObjectNotFound, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %w", ferrors.ErrAccessDenied, err)
		}
	}
	return fmt.Errorf("%w: %w", ferrors.ErrTransfer, err)
}

var _ feedtypes.ObjectStore = (*S3Store)(nil)
