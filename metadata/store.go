// Package metadata provides the entity metadata capability used by feedsync:
// tracked entities with their fields and custom attributes, plus a record of
// the manifests that completed a synchronization cycle.
//
// MemoryStore keeps everything in process. SQLiteStore persists to a SQLite
// database so the CLI can resume from the oldest unprocessed manifest.
package metadata

import (
	"context"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
)

// Checkpoint records a manifest that was fully processed by a cycle.
type Checkpoint struct {
	RunID       string    `json:"run_id"`
	Key         string    `json:"key"`
	Timestamp   time.Time `json:"timestamp"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Store is the full metadata capability.
type Store interface {
	feedtypes.EntityStore

	// Seed inserts entities that are not tracked yet. Existing entities are left as they are.
	Seed(ctx context.Context, entities []*feedtypes.Entity) error

	// MarkManifestProcessed records cp. Marking the same key again replaces the record.
	MarkManifestProcessed(ctx context.Context, cp Checkpoint) error

	// ProcessedManifests returns every checkpoint ordered by manifest timestamp.
	ProcessedManifests(ctx context.Context) ([]Checkpoint, error)

	// Close releases the store's resources.
	Close() error
}

// CloneEntity returns a deep copy of e. Custom values are copied shallowly.
func CloneEntity(e *feedtypes.Entity) *feedtypes.Entity {
	if e == nil {
		return nil
	}
	out := &feedtypes.Entity{
		ID:       e.ID,
		Name:     e.Name,
		Disabled: e.Disabled,
		Custom:   cloneMap(e.Custom),
	}
	if e.Fields != nil {
		out.Fields = make([]*feedtypes.Field, len(e.Fields))
		for i, f := range e.Fields {
			out.Fields[i] = &feedtypes.Field{
				ID:     f.ID,
				Name:   f.Name,
				Type:   f.Type,
				Custom: cloneMap(f.Custom),
			}
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
