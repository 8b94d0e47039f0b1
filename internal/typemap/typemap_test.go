package typemap

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		source string
		want   string
		known  bool
	}{
		{"Varchar", "string-255", true},
		{"Integer", "decimal-16-4", true},
		{"Numeric", "decimal-16-4", true},
		{"Bigint", "decimal-16-4", true},
		{"Timestamp Without Time Zone", "date-true", true},
		{"varchar", "string-255", false},
		{"Boolean", "string-255", false},
		{"", "string-255", false},
		{"Timestamp With Time Zone", "string-255", false},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			got, known := Lookup(tt.source)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestLookup_Deterministic(t *testing.T) {
	for _, in := range []string{"Varchar", "Bigint", "Unknown", "x"} {
		first, _ := Lookup(in)
		for i := 0; i < 10; i++ {
			again, _ := Lookup(in)
			assert.Equal(t, first, again)
		}
	}
}

func TestMapper_Map(t *testing.T) {
	var buf bytes.Buffer
	m := New(slog.New(slog.NewTextHandler(&buf, nil)))

	assert.Equal(t, "decimal-16-4", m.Map("Integer"))
	assert.Empty(t, buf.String())

	assert.Equal(t, "string-255", m.Map("Boolean"))
	assert.Contains(t, buf.String(), "unsupported source type")
	assert.Contains(t, buf.String(), "source_type=Boolean")
}

func TestMapper_NilLogger(t *testing.T) {
	m := New(nil)
	assert.Equal(t, "string-255", m.Map("Geometry"))
}
