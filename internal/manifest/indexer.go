// Package manifest indexes manifest objects chronologically and loads manifest
// rows into per-entity synchronization state.
package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
)

// TimestampLayout is the layout of the timestamp embedded at the end of manifest keys.
const TimestampLayout = "20060102.150405"

var timestampPattern = regexp.MustCompile(`\d+\.\d+$`)

// ParseTimestamp extracts and parses the trailing YYYYMMDD.HHMMSS timestamp of key.
func ParseTimestamp(key string) (time.Time, error) {
	raw := timestampPattern.FindString(key)
	if raw == "" {
		return time.Time{}, ferrors.NewError("parseTimestamp", ferrors.ErrTimestampParse).
			WithKey(key).
			WithMessage("no trailing timestamp")
	}

	ts, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		return time.Time{}, ferrors.NewError("parseTimestamp", fmt.Errorf("%w: %w", ferrors.ErrTimestampParse, err)).
			WithKey(key)
	}
	return ts, nil
}

// Index builds descriptors for keys and sorts them by timestamp. Ties keep
// their listing order. Keys ending in "/" are directory markers and are skipped.
func Index(keys []string) ([]feedtypes.ManifestDescriptor, error) {
	out := make([]feedtypes.ManifestDescriptor, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, "/") {
			continue
		}
		ts, err := ParseTimestamp(key)
		if err != nil {
			return nil, err
		}
		out = append(out, feedtypes.ManifestDescriptor{Key: key, Timestamp: ts})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Indexer lists manifests from an object store.
type Indexer struct {
	store  feedtypes.ObjectStore
	logger *slog.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(store feedtypes.ObjectStore, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Indexer{store: store, logger: logger}
}

// Index lists every object under prefix and returns them oldest first.
func (i *Indexer) Index(ctx context.Context, prefix string) ([]feedtypes.ManifestDescriptor, error) {
	objects, err := i.store.List(ctx, prefix)
	if err != nil {
		return nil, ferrors.NewError("indexManifests", err).WithKey(prefix)
	}

	keys := make([]string, len(objects))
	for n, obj := range objects {
		keys[n] = obj.Key
	}

	descriptors, err := Index(keys)
	if err != nil {
		return nil, err
	}

	i.logger.Info("manifests indexed", "prefix", prefix, "count", len(descriptors))
	return descriptors, nil
}
