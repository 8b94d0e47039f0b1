// Package retry runs object store operations with exponential backoff.
// Only transient failures are retried; missing objects, denied access and
// caller cancellation end the loop immediately.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
)

// Default backoff bounds.
const (
	DefaultBaseDelay = 100 * time.Millisecond
	DefaultMaxDelay  = 30 * time.Second
)

// Policy configures how an operation is retried.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt. Zero disables retrying.
	MaxRetries int

	// BaseDelay is the initial backoff interval
	BaseDelay time.Duration

	// MaxDelay caps a single backoff interval
	MaxDelay time.Duration
}

// Disabled is a policy that runs an operation exactly once.
var Disabled = Policy{}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	if p.MaxRetries <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = DefaultBaseDelay
	}
	exp.MaxInterval = p.MaxDelay
	if exp.MaxInterval <= 0 {
		exp.MaxInterval = DefaultMaxDelay
	}
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxRetries)), ctx)
}

// Do runs op until it succeeds, returns a non-retryable error, or the policy
// is exhausted. attempt starts at 1. The last error is returned.
func Do(ctx context.Context, p Policy, logger *slog.Logger, op func(attempt int) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := op(attempt)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		if logger != nil {
			logger.Warn("retrying after transient failure",
				"attempt", attempt,
				"next_delay", next,
				"error", err,
			)
		}
	}

	//nolint:wrapcheck // callers wrap with operation context
	return backoff.RetryNotify(operation, p.backOff(ctx), notify)
}

// Error codes returned by S3 compatible stores for transient conditions.
var transientCodes = map[string]bool{
	"ThrottlingException":        true,
	"Throttling":                 true,
	"SlowDown":                   true,
	"RequestLimitExceeded":       true,
	"TooManyRequestsException":   true,
	"RequestTimeout":             true,
	"RequestTimeTooSkewed":       true,
	"InternalError":              true,
	"ServiceUnavailable":         true,
	"XMinioServerNotInitialized": true,
}

// Error codes that never succeed on retry.
var permanentCodes = map[string]bool{
	"NoSuchKey":                 true,
	"NoSuchBucket":              true,
	"NotFound":                  true,
	"AccessDenied":              true,
	"AccessDeniedException":     true,
	"InvalidAccessKeyId":        true,
	"SignatureDoesNotMatch":     true,
	"InvalidParameterException": true,
	"ValidationException":       true,
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ferrors.ErrObjectNotFound) ||
		errors.Is(err, ferrors.ErrAccessDenied) ||
		errors.Is(err, ferrors.ErrInvalidInput) {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if permanentCodes[code] {
			return false
		}
		if transientCodes[code] {
			return true
		}
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		if permanentCodes[minioErr.Code] {
			return false
		}
		if transientCodes[minioErr.Code] {
			return true
		}
	}

	// Stream and local write failures are transient unless classified above.
	return errors.Is(err, ferrors.ErrTransfer) || errors.Is(err, context.DeadlineExceeded)
}
