package metadata

import (
	"context"
	"sort"
	"sync"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
)

// MemoryStore is an in-process Store. Entities are returned as copies in
// insertion order.
type MemoryStore struct {
	mu          sync.RWMutex
	order       []string
	entities    map[string]*feedtypes.Entity
	checkpoints map[string]Checkpoint
}

// NewMemoryStore creates a MemoryStore holding entities.
func NewMemoryStore(entities ...*feedtypes.Entity) *MemoryStore {
	s := &MemoryStore{
		entities:    make(map[string]*feedtypes.Entity),
		checkpoints: make(map[string]Checkpoint),
	}
	for _, e := range entities {
		s.put(e)
	}
	return s
}

func (s *MemoryStore) put(e *feedtypes.Entity) {
	if _, ok := s.entities[e.ID]; !ok {
		s.order = append(s.order, e.ID)
	}
	s.entities[e.ID] = CloneEntity(e)
}

// ListEntities implements feedtypes.EntityStore.
func (s *MemoryStore) ListEntities(ctx context.Context) ([]*feedtypes.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*feedtypes.Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, CloneEntity(s.entities[id]))
	}
	return out, nil
}

// GetEntity implements feedtypes.EntityStore.
func (s *MemoryStore) GetEntity(ctx context.Context, id string) (*feedtypes.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, ferrors.NewEntityError("getEntity", id, ferrors.ErrEntityNotFound)
	}
	return CloneEntity(e), nil
}

// SaveEntity implements feedtypes.EntityStore.
func (s *MemoryStore) SaveEntity(ctx context.Context, entity *feedtypes.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entity == nil || entity.ID == "" {
		return ferrors.NewError("saveEntity", ferrors.ErrInvalidInput).WithMessage("entity id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(entity)
	return nil
}

// Seed implements Store.
func (s *MemoryStore) Seed(ctx context.Context, entities []*feedtypes.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		if _, ok := s.entities[e.ID]; !ok {
			s.put(e)
		}
	}
	return nil
}

// MarkManifestProcessed implements Store.
func (s *MemoryStore) MarkManifestProcessed(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.Key] = cp
	return nil
}

// ProcessedManifests implements Store.
func (s *MemoryStore) ProcessedManifests(ctx context.Context) ([]Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Checkpoint, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Key < out[j].Key
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
