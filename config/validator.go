package config

import (
	"fmt"
	"time"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks mandatory keys and the shape of optional ones. Every
// problem is collected into a single *errors.ConfigError.
func (c *Config) Validate() error {
	cerr := &ferrors.ConfigError{}

	mandatory := []struct {
		name  string
		value string
	}{
		{"key", c.Key},
		{"secret", c.Secret},
		{"bucket", c.Bucket},
		{"local_path", c.LocalPath},
		{"manifests", c.Manifests},
		{"feeds", c.Feeds},
	}
	for _, m := range mandatory {
		if m.value == "" {
			cerr.Missing = append(cerr.Missing, m.name)
		}
	}

	invalid := func(key, msg string) {
		if cerr.Invalid == nil {
			cerr.Invalid = make(map[string]string)
		}
		cerr.Invalid[key] = msg
	}

	switch c.Backend {
	case "", "s3":
	case "minio":
		if c.Endpoint == "" {
			invalid("endpoint", "required when backend is minio")
		}
	default:
		invalid("backend", fmt.Sprintf("unsupported value %q", c.Backend))
	}

	if c.Concurrency < 0 {
		invalid("concurrency", "must not be negative")
	}
	if c.MaxRetries < 0 {
		invalid("max_retries", "must not be negative")
	}
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err != nil || d < 0 {
			invalid("timeout", fmt.Sprintf("invalid duration %q", c.Timeout))
		}
	}
	if c.LogLevel != "" && !validLogLevels[c.LogLevel] {
		invalid("log_level", fmt.Sprintf("unsupported value %q", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		invalid("log_format", fmt.Sprintf("unsupported value %q", c.LogFormat))
	}

	seen := make(map[string]bool, len(c.Entities))
	for i, e := range c.Entities {
		switch {
		case e.ID == "":
			invalid(fmt.Sprintf("entities[%d].id", i), "must not be empty")
		case seen[e.ID]:
			invalid(fmt.Sprintf("entities[%d].id", i), fmt.Sprintf("duplicate entity %q", e.ID))
		}
		seen[e.ID] = true
	}

	if len(cerr.Missing) > 0 || len(cerr.Invalid) > 0 {
		return cerr
	}
	return nil
}
