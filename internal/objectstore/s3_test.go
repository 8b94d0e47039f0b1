package objectstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/testutil"
)

func TestNewS3_DisablesSDKRetries(t *testing.T) {
	store, err := NewS3(context.Background(), Options{
		Bucket:    "feed-bucket",
		Endpoint:  "http://localhost:4566",
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)

	client, ok := store.client.(*s3.Client)
	require.True(t, ok)
	assert.Equal(t, 1, client.Options().RetryMaxAttempts)
	assert.Equal(t, 1, client.Options().Retryer.MaxAttempts())
}

func TestS3Store_ListFollowsContinuationTokens(t *testing.T) {
	modified := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	var tokens []string

	mock := &testutil.MockS3Client{
		ListObjectsV2Func: func(
			_ context.Context,
			params *s3.ListObjectsV2Input,
			_ ...func(*s3.Options),
		) (*s3.ListObjectsV2Output, error) {
			assert.Equal(t, "feed-bucket", aws.ToString(params.Bucket))
			assert.Equal(t, "manifests/", aws.ToString(params.Prefix))
			tokens = append(tokens, aws.ToString(params.ContinuationToken))

			if params.ContinuationToken == nil {
				return &s3.ListObjectsV2Output{
					Contents: []types.Object{
						{Key: aws.String("manifests/20230101.000000"), Size: aws.Int64(10), LastModified: &modified},
					},
					IsTruncated:           aws.Bool(true),
					NextContinuationToken: aws.String("page-2"),
				}, nil
			}
			return &s3.ListObjectsV2Output{
				Contents: []types.Object{
					{Key: aws.String("manifests/20230102.000000"), Size: aws.Int64(20), ETag: aws.String(`"abc"`)},
				},
				IsTruncated: aws.Bool(false),
			}, nil
		},
	}

	objects, err := NewS3Store(mock, "feed-bucket").List(context.Background(), "manifests/")
	require.NoError(t, err)

	assert.Equal(t, []string{"", "page-2"}, tokens)
	require.Len(t, objects, 2)
	assert.Equal(t, "manifests/20230101.000000", objects[0].Key)
	assert.Equal(t, int64(10), objects[0].Size)
	assert.Equal(t, modified, objects[0].LastModified)
	assert.Equal(t, `"abc"`, objects[1].ETag)
}

func TestS3Store_GetDefaultMock(t *testing.T) {
	data, err := NewS3Store(&testutil.MockS3Client{}, "feed-bucket").Get(context.Background(), "feeds/feed.csv")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestS3Store_ListFailure(t *testing.T) {
	mock := &testutil.MockS3Client{
		ListObjectsV2Func: func(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
		},
	}

	_, err := NewS3Store(mock, "feed-bucket").List(context.Background(), "manifests/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.ErrAccessDenied))
}

func TestS3Store_Get(t *testing.T) {
	mock := &testutil.MockS3Client{
		GetObjectFunc: func(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			assert.Equal(t, "feeds/feed.csv", aws.ToString(params.Key))
			return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("A|1.0|f1|Varchar|1\n"))}, nil
		},
	}

	data, err := NewS3Store(mock, "feed-bucket").Get(context.Background(), "feeds/feed.csv")
	require.NoError(t, err)
	assert.Equal(t, "A|1.0|f1|Varchar|1\n", string(data))
}

func TestS3Store_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"typed no such key", &types.NoSuchKey{}, ferrors.ErrObjectNotFound},
		{"generic not found", &smithy.GenericAPIError{Code: "NotFound"}, ferrors.ErrObjectNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, ferrors.ErrAccessDenied},
		{"throttled", &smithy.GenericAPIError{Code: "SlowDown"}, ferrors.ErrTransfer},
		{"network", io.ErrUnexpectedEOF, ferrors.ErrTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &testutil.MockS3Client{
				GetObjectFunc: func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
					return nil, tt.err
				},
			}

			_, err := NewS3Store(mock, "feed-bucket").Open(context.Background(), "feeds/a.gz")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}

func TestS3Store_RejectsInvalidKeys(t *testing.T) {
	called := false
	mock := &testutil.MockS3Client{
		GetObjectFunc: func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			called = true
			return &s3.GetObjectOutput{}, nil
		},
	}

	_, err := NewS3Store(mock, "feed-bucket").Open(context.Background(), "feeds/../../etc/passwd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.ErrInvalidInput))
	assert.False(t, called)
}
