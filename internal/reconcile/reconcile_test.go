package reconcile

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
	"github.com/input-output-hk/catalyst-forge-libs/feedsync/internal/feed"
)

func parse(t *testing.T, rows ...string) feedtypes.SchemaTree {
	t.Helper()
	tree, err := feed.Parse(strings.NewReader(strings.Join(rows, "\n")))
	require.NoError(t, err)
	return tree
}

func fieldIDs(e *feedtypes.Entity) []string {
	ids := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		ids[i] = f.ID
	}
	return ids
}

func TestReconcile_DiscoveryOrderAndTypes(t *testing.T) {
	tree := parse(t, "A|1.0|f1|Varchar|2", "A|1.0|f2|Integer|1")
	entity := &feedtypes.Entity{
		ID:     "A",
		Custom: map[string]any{feedtypes.CustomLoadFieldsFromSource: true},
	}

	report, err := New(nil).Reconcile(tree, []*feedtypes.Entity{entity})
	require.NoError(t, err)

	assert.Equal(t, []string{"f2", "f1"}, fieldIDs(entity))
	assert.Equal(t, "decimal-16-4", entity.Fields[0].Type)
	assert.Equal(t, "string-255", entity.Fields[1].Type)
	assert.Equal(t, 1, entity.Fields[0].Custom[feedtypes.CustomOrder])
	assert.Equal(t, 2, entity.Fields[1].Custom[feedtypes.CustomOrder])
	assert.Equal(t, []string{"A"}, report.Merged)
	assert.Equal(t, []string{"f2", "f1"}, report.Added["A"])
}

func TestReconcile_ReportsUnmergedVersions(t *testing.T) {
	tree := parse(t,
		"A|1.0|f1|Varchar|1",
		"A|1.10|f1|Varchar|1",
		"A|1.2|f1|Varchar|1",
		"A|draft|f1|Varchar|1",
		"B|1.0|id|Bigint|1",
	)
	a := &feedtypes.Entity{ID: "A"}
	b := &feedtypes.Entity{ID: "B"}

	report, err := New(nil).Reconcile(tree, []*feedtypes.Entity{a, b})
	require.NoError(t, err)

	assert.Equal(t, []string{"1.2", "1.10", "draft"}, report.Unmerged["A"])
	assert.NotContains(t, report.Unmerged, "B")
}

func TestReconcile_PolicyFalseKeepsFieldSet(t *testing.T) {
	tree := parse(t, "A|1.0|new|Varchar|1", "A|1.0|id|Varchar|2")

	for _, custom := range []map[string]any{
		nil,
		{feedtypes.CustomLoadFieldsFromSource: false},
	} {
		entity := &feedtypes.Entity{
			ID:     "A",
			Custom: custom,
			Fields: []*feedtypes.Field{{ID: "id", Name: "id", Type: "decimal-16-4"}},
		}

		_, err := New(nil).Reconcile(tree, []*feedtypes.Entity{entity})
		require.NoError(t, err)

		assert.Len(t, entity.Fields, 1)
		assert.Equal(t, "decimal-16-4", entity.Fields[0].Type)
	}
}

func TestReconcile_PolicyTrueNeverRemovesOrDuplicates(t *testing.T) {
	tree := parse(t, "A|1.0|id|Varchar|1", "A|1.0|name|Varchar|2")
	entity := &feedtypes.Entity{
		ID:     "A",
		Custom: map[string]any{feedtypes.CustomLoadFieldsFromSource: true},
		Fields: []*feedtypes.Field{
			{ID: "id", Name: "id", Type: "decimal-16-4"},
			{ID: "manual", Name: "manual", Type: "date-true"},
		},
	}

	reconciler := New(nil)
	for i := 0; i < 3; i++ {
		_, err := reconciler.Reconcile(tree, []*feedtypes.Entity{entity})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"id", "manual", "name"}, fieldIDs(entity))
	assert.Equal(t, "decimal-16-4", entity.Field("id").Type)
}

func TestReconcile_DisabledEntitySkipped(t *testing.T) {
	tree := parse(t, "A|1.0|f|Varchar|1")
	disabled := &feedtypes.Entity{
		ID:       "B",
		Disabled: true,
		Custom:   map[string]any{feedtypes.CustomLoadFieldsFromSource: true},
	}

	report, err := New(nil).Reconcile(tree, []*feedtypes.Entity{disabled})
	require.NoError(t, err)

	assert.Empty(t, disabled.Fields)
	assert.Equal(t, []string{"B"}, report.Skipped)
}

func TestReconcile_MissingBucketIsFatalAndAtomic(t *testing.T) {
	tree := parse(t, "A|1.0|f|Varchar|1", "B|2.0|g|Varchar|1")
	a := &feedtypes.Entity{ID: "A", Custom: map[string]any{feedtypes.CustomLoadFieldsFromSource: true}}
	b := &feedtypes.Entity{ID: "B", Custom: map[string]any{feedtypes.CustomLoadFieldsFromSource: true}}

	report, err := New(nil).Reconcile(tree, []*feedtypes.Entity{a, b})

	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, ferrors.IsSchemaMismatch(err))
	assert.True(t, ferrors.IsFatal(err))
	assert.Contains(t, err.Error(), "entity B")
	assert.Empty(t, a.Fields)
}

func TestReconcile_UnknownTypeLogsDiagnostic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	tree := parse(t, "A|1.0|geo|Geometry|1")
	entity := &feedtypes.Entity{ID: "A", Custom: map[string]any{feedtypes.CustomLoadFieldsFromSource: true}}

	_, err := New(logger).Reconcile(tree, []*feedtypes.Entity{entity})
	require.NoError(t, err)

	assert.Equal(t, "string-255", entity.Field("geo").Type)
	assert.Contains(t, buf.String(), "source_type=Geometry")
}
