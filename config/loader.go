package config

import (
	"context"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
)

// SecretResolver replaces secret references with their values.
type SecretResolver interface {
	Resolve(ctx context.Context, value string) (string, error)
}

// Load compiles CUE source, decodes it into a Config, applies defaults and
// validates the result. filename is used in CUE error positions.
func Load(data []byte, filename string) (*Config, error) {
	cueCtx := cuecontext.New()

	value := cueCtx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, ferrors.NewError("loadConfig", err).
			WithKey(filename).
			WithCode(ferrors.CodeInvalidConfig).
			WithMessage("failed to compile configuration")
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, ferrors.NewError("loadConfig", err).
			WithKey(filename).
			WithCode(ferrors.CodeInvalidConfig).
			WithMessage("failed to decode configuration")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads and loads the configuration at path on filesystem.
func LoadFile(filesystem billy.Filesystem, path string) (*Config, error) {
	data, err := util.ReadFile(filesystem, path)
	if err != nil {
		return nil, ferrors.NewError("loadConfig", fmt.Errorf("%w: %w", ferrors.ErrMissingConfig, err)).
			WithKey(path)
	}
	return Load(data, path)
}

// ResolveSecrets replaces secret references in the credential keys.
func (c *Config) ResolveSecrets(ctx context.Context, resolver SecretResolver) error {
	for _, field := range []*string{&c.Key, &c.Secret} {
		v, err := resolver.Resolve(ctx, *field)
		if err != nil {
			return err
		}
		*field = v
	}
	return nil
}
