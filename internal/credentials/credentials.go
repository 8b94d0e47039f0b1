// Package credentials resolves configuration values that reference AWS Secrets Manager.
//
// A value of the form "secretsmanager://<name>" is replaced by the secret's string
// value. "secretsmanager://<name>#<field>" selects one field of a JSON secret.
// Secret values are never logged; only secret names are.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
)

// Scheme prefixes configuration values resolved through Secrets Manager.
const Scheme = "secretsmanager://"

// AWS error code constants
const (
	ResourceNotFoundException = "ResourceNotFoundException"
	AccessDeniedException     = "AccessDeniedException"
)

// ManagerAPI is the Secrets Manager operation used for resolution.
type ManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver resolves secret references. Each secret is fetched at most once.
//
// Resolver is safe for concurrent use.
type Resolver struct {
	api    ManagerAPI
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver creates a Resolver over api. A nil logger disables logging.
func NewResolver(api ManagerAPI, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		api:    api,
		logger: logger,
		cache:  make(map[string]string),
	}
}

// NewAWSResolver creates a Resolver using the default AWS credential chain.
// A non-empty endpoint overrides the service endpoint.
func NewAWSResolver(ctx context.Context, region, endpoint string, logger *slog.Logger) (*Resolver, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewResolver(api, logger), nil
}

// IsReference reports whether value names a secret.
func IsReference(value string) bool {
	return strings.HasPrefix(value, Scheme)
}

// Resolve returns value unchanged unless it is a secret reference, in which
// case the referenced secret (or JSON field) is returned.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}

	name, field, _ := strings.Cut(strings.TrimPrefix(value, Scheme), "#")
	if name == "" {
		return "", ferrors.NewError("resolveSecret", ferrors.ErrMissingConfig).
			WithMessage("secret reference has no name")
	}

	secret, err := r.fetch(ctx, name)
	if err != nil {
		return "", err
	}
	if field == "" {
		return secret, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(secret), &fields); err != nil {
		return "", ferrors.NewError("resolveSecret", ferrors.ErrMissingConfig).
			WithKey(name).
			WithMessage("secret is not a JSON object")
	}
	v, ok := fields[field].(string)
	if !ok || v == "" {
		return "", ferrors.NewError("resolveSecret", ferrors.ErrMissingConfig).
			WithKey(name).
			WithMessage(fmt.Sprintf("secret has no string field %q", field))
	}
	return v, nil
}

func (r *Resolver) fetch(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache[name]; ok {
		return v, nil
	}

	r.logger.InfoContext(ctx, "retrieving secret", "secret_name", name)

	output, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", r.handleError(ctx, name, err)
	}

	value := aws.ToString(output.SecretString)
	if value == "" && len(output.SecretBinary) > 0 {
		value = string(output.SecretBinary)
	}
	if value == "" {
		return "", ferrors.NewError("resolveSecret", ferrors.ErrMissingConfig).
			WithKey(name).
			WithMessage("secret value is empty")
	}

	r.cache[name] = value
	return value, nil
}

func (r *Resolver) handleError(ctx context.Context, name string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case ResourceNotFoundException:
			return ferrors.NewError("resolveSecret", ferrors.ErrMissingConfig).
				WithKey(name).
				WithMessage("secret not found")
		case AccessDeniedException:
			return ferrors.NewError("resolveSecret", ferrors.ErrAccessDenied).WithKey(name)
		}
	}

	r.logger.ErrorContext(ctx, "failed to retrieve secret",
		"secret_name", name,
		"error", err)
	return ferrors.NewError("resolveSecret", err).WithKey(name)
}
