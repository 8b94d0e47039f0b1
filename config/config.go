// Package config provides loading and validation of feedsync configuration
// written in CUE.
//
// # Basic Usage
//
//	fs := osfs.New("/etc/feedsync")
//	cfg, err := config.LoadFile(fs, "feedsync.cue")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bucket, cfg.FeedKey())
//
// A minimal configuration:
//
//	key:        "secretsmanager://feedsync/s3#key"
//	secret:     "secretsmanager://feedsync/s3#secret"
//	bucket:     "partner-feeds"
//	local_path: "/var/lib/feedsync/"
//	manifests:  "manifests/"
//	feeds:      "feeds/"
//
// Every mandatory key missing from a file is reported at once in a single
// errors.ConfigError.
package config

import (
	"log/slog"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
)

// Defaults applied to optional keys.
const (
	DefaultFeedName    = "feed.csv"
	DefaultRegion      = "us-east-1"
	DefaultBackend     = "s3"
	DefaultConcurrency = 1
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Config is the decoded feedsync configuration.
type Config struct {
	// Mandatory keys.
	Key       string `json:"key"`
	Secret    string `json:"secret"`
	Bucket    string `json:"bucket"`
	LocalPath string `json:"local_path"`
	Manifests string `json:"manifests"`
	Feeds     string `json:"feeds"`

	// Feed is the key of the feed description. Defaults to Feeds + "feed.csv".
	Feed string `json:"feed,omitempty"`

	Region         string `json:"region,omitempty"`
	Endpoint       string `json:"endpoint,omitempty"`
	Backend        string `json:"backend,omitempty"`
	ForcePathStyle bool   `json:"force_path_style,omitempty"`

	// Concurrency bounds parallel file transfers within one entity and across entities.
	Concurrency int `json:"concurrency,omitempty"`

	// MaxRetries enables retrying transient read failures. Zero disables retries.
	MaxRetries int `json:"max_retries,omitempty"`

	// Timeout is a Go duration string bounding a single object read.
	Timeout string `json:"timeout,omitempty"`

	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`

	// Entities seeds the metadata store with tracked entities.
	Entities []EntityConfig `json:"entities,omitempty"`
}

// EntityConfig declares a tracked entity.
type EntityConfig struct {
	ID       string         `json:"id"`
	Name     string         `json:"name,omitempty"`
	Disabled bool           `json:"disabled,omitempty"`
	Custom   map[string]any `json:"custom,omitempty"`
	Fields   []FieldConfig  `json:"fields,omitempty"`
}

// FieldConfig declares a pre-existing field of a tracked entity.
type FieldConfig struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

// FeedKey returns the key of the feed description object.
func (c *Config) FeedKey() string {
	if c.Feed != "" {
		return c.Feed
	}
	return c.Feeds + DefaultFeedName
}

// ReadTimeout returns the parsed Timeout, or zero when unset or invalid.
func (c *Config) ReadTimeout() time.Duration {
	if c.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// ApplyDefaults fills optional keys that were left empty.
func (c *Config) ApplyDefaults() {
	if c.Feed == "" && c.Feeds != "" {
		c.Feed = c.Feeds + DefaultFeedName
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
}

// SeedEntities converts the configured entities into tracked entities.
func (c *Config) SeedEntities() []*feedtypes.Entity {
	out := make([]*feedtypes.Entity, 0, len(c.Entities))
	for _, ec := range c.Entities {
		e := &feedtypes.Entity{
			ID:       ec.ID,
			Name:     ec.Name,
			Disabled: ec.Disabled,
			Custom:   ec.Custom,
		}
		if e.Name == "" {
			e.Name = ec.ID
		}
		for _, fc := range ec.Fields {
			name := fc.Name
			if name == "" {
				name = fc.ID
			}
			e.AddField(&feedtypes.Field{ID: fc.ID, Name: name, Type: fc.Type})
		}
		out = append(out, e)
	}
	return out
}

// LogValue implements slog.LogValuer. Credentials are never logged.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bucket", c.Bucket),
		slog.String("backend", c.Backend),
		slog.String("region", c.Region),
		slog.String("endpoint", c.Endpoint),
		slog.String("local_path", c.LocalPath),
		slog.String("manifests", c.Manifests),
		slog.String("feeds", c.Feeds),
		slog.String("feed", c.FeedKey()),
		slog.Int("concurrency", c.Concurrency),
		slog.Int("max_retries", c.MaxRetries),
		slog.Int("entities", len(c.Entities)),
	)
}
