// Package typemap maps source-system field types to canonical field types.
package typemap

import (
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/feedsync/feedtypes"
)

// DefaultType is used for any source type without an explicit mapping.
const DefaultType = feedtypes.TypeString

var table = map[string]string{
	"Varchar":                     feedtypes.TypeString,
	"Integer":                     feedtypes.TypeDecimal,
	"Numeric":                     feedtypes.TypeDecimal,
	"Bigint":                      feedtypes.TypeDecimal,
	"Timestamp Without Time Zone": feedtypes.TypeDate,
}

// Lookup returns the canonical type for sourceType. Matching is exact and
// case-sensitive; unknown types return DefaultType and false.
func Lookup(sourceType string) (string, bool) {
	canonical, ok := table[sourceType]
	if !ok {
		return DefaultType, false
	}
	return canonical, true
}

// Mapper maps source types and reports unmapped ones to a logger.
type Mapper struct {
	logger *slog.Logger
}

// New creates a Mapper. A nil logger disables diagnostics.
func New(logger *slog.Logger) *Mapper {
	return &Mapper{logger: logger}
}

// Map returns the canonical type for sourceType. It never fails.
func (m *Mapper) Map(sourceType string) string {
	canonical, ok := Lookup(sourceType)
	if !ok && m.logger != nil {
		m.logger.Warn("unsupported source type, using default",
			"source_type", sourceType,
			"canonical_type", canonical,
		)
	}
	return canonical
}
