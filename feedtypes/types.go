// Package feedtypes provides shared type definitions for feed synchronization.
package feedtypes

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Canonical field type tokens understood by downstream loaders.
const (
	TypeString  = "string-255"
	TypeDecimal = "decimal-16-4"
	TypeDate    = "date-true"
)

// SchemaVersion is the only feed schema version merged into tracked entities.
const SchemaVersion = "1.0"

// Keys read from and written to Entity.Custom.
const (
	// CustomLoadFieldsFromSource enables adding newly discovered fields during reconciliation.
	CustomLoadFieldsFromSource = "load_fields_from_source_system"

	// CustomOrder carries the feed field order on Field.Custom.
	CustomOrder = "order"

	// HintColumnSeparator is the field delimiter of downloaded files.
	HintColumnSeparator = "column_separator"

	// HintFileFormat is the container format of downloaded files.
	HintFileFormat = "file_format"

	// HintSkipRows is the number of header rows to skip in downloaded files.
	HintSkipRows = "skip_rows"
)

// FieldSpec is a single field description read from the feed.
type FieldSpec struct {
	Name       string `json:"name"`
	SourceType string `json:"source_type"`
	Order      int    `json:"order"`
}

// SchemaTree maps entity name to schema version to the ordered field list.
type SchemaTree map[string]map[string][]FieldSpec

// Bucket returns the field list for an entity and version.
func (t SchemaTree) Bucket(entity, version string) ([]FieldSpec, bool) {
	versions, ok := t[entity]
	if !ok {
		return nil, false
	}
	fields, ok := versions[version]
	return fields, ok
}

// Versions returns the schema versions known for entity. Versions that parse as
// semantic versions come first in ascending order; the rest follow lexically.
func (t SchemaTree) Versions(entity string) []string {
	var (
		parsed semver.Collection
		raw    = make(map[*semver.Version]string)
		other  []string
	)

	for v := range t[entity] {
		sv, err := semver.NewVersion(v)
		if err != nil {
			other = append(other, v)
			continue
		}
		parsed = append(parsed, sv)
		raw[sv] = v
	}

	sort.Sort(parsed)
	sort.Strings(other)

	out := make([]string, 0, len(parsed)+len(other))
	for _, sv := range parsed {
		out = append(out, raw[sv])
	}
	return append(out, other...)
}

// Field is a tracked entity field with a canonical type.
type Field struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Custom map[string]any `json:"custom,omitempty"`
}

// Entity is a tracked logical dataset. ID is the join key against the feed and manifests.
type Entity struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Disabled bool           `json:"disabled"`
	Custom   map[string]any `json:"custom,omitempty"`
	Fields   []*Field       `json:"fields,omitempty"`
}

// Field returns the field with the given identifier, or nil.
func (e *Entity) Field(id string) *Field {
	for _, f := range e.Fields {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// AddField appends f unless a field with the same identifier exists.
// It reports whether the field was added.
func (e *Entity) AddField(f *Field) bool {
	if e.Field(f.ID) != nil {
		return false
	}
	e.Fields = append(e.Fields, f)
	return true
}

// Merge folds the fields of shell into e. With addNew set, fields missing from e
// are appended in shell order; existing fields are never modified or removed.
// Without addNew the field set is left as it is. Merge returns the number of
// fields added.
func (e *Entity) Merge(shell *Entity, addNew bool) int {
	if shell == nil || !addNew {
		return 0
	}

	added := 0
	for _, f := range shell.Fields {
		if e.AddField(f) {
			added++
		}
	}
	return added
}

// LoadFieldsFromSource reports whether the entity allows new fields from discovery.
func (e *Entity) LoadFieldsFromSource() bool {
	switch v := e.Custom[CustomLoadFieldsFromSource].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// SetCustom sets a custom attribute, allocating the map when needed.
func (e *Entity) SetCustom(key string, value any) {
	if e.Custom == nil {
		e.Custom = make(map[string]any)
	}
	e.Custom[key] = value
}

// ManifestDescriptor identifies one manifest object and its embedded timestamp.
type ManifestDescriptor struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
}

// FileManifestEntry is one manifest row describing a remote data file.
// Size and Hash are carried verbatim from the manifest.
type FileManifestEntry struct {
	RemotePath    string `json:"remote_path"`
	Date          string `json:"date"`
	EntityName    string `json:"entity_name"`
	EntityVersion string `json:"entity_version"`
	Size          string `json:"size"`
	Hash          string `json:"hash"`
}

// SyncState is the per-entity synchronization record for the current cycle.
type SyncState struct {
	// FileManifests is replaced wholesale each time a manifest is loaded
	FileManifests []FileManifestEntry

	// ParsedFilenames lists local files written by the last download, in manifest order
	ParsedFilenames []string
}

// States holds synchronization records keyed by entity identifier.
type States map[string]*SyncState

// Get returns the state for id, creating it if absent.
func (s States) Get(id string) *SyncState {
	st, ok := s[id]
	if !ok {
		st = &SyncState{}
		s[id] = st
	}
	return st
}

// DownloadedFile describes one file written to the staging area.
type DownloadedFile struct {
	Key       string `json:"key"`
	LocalPath string `json:"local_path"`
	Size      int64  `json:"size"`
}

// DownloadResult contains the outcome of downloading one entity's files.
type DownloadResult struct {
	EntityID string           `json:"entity_id"`
	Files    []DownloadedFile `json:"files"`
	Duration time.Duration    `json:"duration"`
}

// ObjectInfo describes an object returned by a listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// ObjectStore is the remote object store capability used by synchronization.
type ObjectStore interface {
	// List returns every object under prefix, in listing order.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Get reads an object fully into memory.
	Get(ctx context.Context, key string) ([]byte, error)

	// Open returns a stream over the object body. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// EntityStore is the metadata capability holding tracked entities.
type EntityStore interface {
	// ListEntities returns every configured entity.
	ListEntities(ctx context.Context) ([]*Entity, error)

	// GetEntity returns the entity with the given id or an ErrEntityNotFound error.
	GetEntity(ctx context.Context, id string) (*Entity, error)

	// SaveEntity persists the entity's fields and custom attributes.
	SaveEntity(ctx context.Context, entity *Entity) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return ClockFunc(time.Now) }
