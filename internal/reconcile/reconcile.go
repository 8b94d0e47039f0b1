// Package reconcile merges a discovered schema into tracked entity metadata.
package reconcile

import (
	"fmt"
	"log/slog"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/typemap"
)

// Report summarizes a reconciliation run.
type Report struct {
	// Merged lists the enabled entities that were reconciled, in input order
	Merged []string

	// Skipped lists disabled entities
	Skipped []string

	// Added maps entity id to the field ids appended during the merge
	Added map[string][]string

	// Unmerged maps entity id to the other schema versions the feed offers for
	// it, semantic versions first in ascending order
	Unmerged map[string][]string
}

// Reconciler merges schema version feedtypes.SchemaVersion into tracked entities.
type Reconciler struct {
	mapper *typemap.Mapper
	logger *slog.Logger
}

// New creates a Reconciler. A nil logger disables diagnostics.
func New(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		mapper: typemap.New(logger),
		logger: logger,
	}
}

// Reconcile merges the tree into every enabled entity. Every enabled entity must
// have a bucket for feedtypes.SchemaVersion; if one is missing no entity is modified
// and an ErrSchemaMismatch error naming it is returned.
func (r *Reconciler) Reconcile(tree feedtypes.SchemaTree, entities []*feedtypes.Entity) (*Report, error) {
	for _, entity := range entities {
		if entity.Disabled {
			continue
		}
		if _, ok := tree.Bucket(entity.ID, feedtypes.SchemaVersion); !ok {
			return nil, ferrors.NewEntityError("reconcile", entity.ID, ferrors.ErrSchemaMismatch).
				WithMessage(fmt.Sprintf("version %s", feedtypes.SchemaVersion))
		}
	}

	report := &Report{
		Added:    make(map[string][]string),
		Unmerged: make(map[string][]string),
	}
	for _, entity := range entities {
		if entity.Disabled {
			report.Skipped = append(report.Skipped, entity.ID)
			continue
		}

		discovered, _ := tree.Bucket(entity.ID, feedtypes.SchemaVersion)
		shell := r.shell(entity, discovered)

		before := len(entity.Fields)
		entity.Merge(shell, entity.LoadFieldsFromSource())
		for _, f := range entity.Fields[before:] {
			report.Added[entity.ID] = append(report.Added[entity.ID], f.ID)
		}
		report.Merged = append(report.Merged, entity.ID)

		for _, v := range tree.Versions(entity.ID) {
			if v != feedtypes.SchemaVersion {
				report.Unmerged[entity.ID] = append(report.Unmerged[entity.ID], v)
			}
		}
		if other := report.Unmerged[entity.ID]; len(other) > 0 {
			r.logger.Info("feed offers unmerged schema versions",
				"entity", entity.ID,
				"merged", feedtypes.SchemaVersion,
				"versions", other,
			)
		}

		r.logger.Debug("entity reconciled",
			"entity", entity.ID,
			"discovered", len(discovered),
			"added", len(entity.Fields)-before,
			"load_fields_from_source", entity.LoadFieldsFromSource(),
		)
	}

	return report, nil
}

// shell builds a temporary entity holding exactly the discovered fields.
func (r *Reconciler) shell(entity *feedtypes.Entity, fields []feedtypes.FieldSpec) *feedtypes.Entity {
	shell := &feedtypes.Entity{ID: entity.ID, Name: entity.Name}
	for _, fs := range fields {
		shell.AddField(&feedtypes.Field{
			ID:     fs.Name,
			Name:   fs.Name,
			Type:   r.mapper.Map(fs.SourceType),
			Custom: map[string]any{feedtypes.CustomOrder: fs.Order},
		})
	}
	return shell
}
