package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
)

func TestValidateBucketName(t *testing.T) {
	tests := []struct {
		name    string
		bucket  string
		wantErr bool
	}{
		{"valid", "feed-bucket", false},
		{"with dots", "feeds.example.com", false},
		{"leading digit", "1feeds", false},
		{"empty", "", true},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", 64), true},
		{"uppercase", "Feeds", true},
		{"underscore", "feed_bucket", true},
		{"leading hyphen", "-feeds", true},
		{"trailing dot", "feeds.", true},
		{"ip address", "192.168.1.1", true},
		{"adjacent dots", "feeds..bucket", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBucketName(tt.bucket)
			if tt.wantErr {
				assert.ErrorIs(t, err, ferrors.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"manifest", "manifests/20230101.000000", false},
		{"data file", "feeds/orders.20230101.gz", false},
		{"dots inside name", "feeds/a..b.gz", false},
		{"empty", "", true},
		{"traversal", "feeds/../secret", true},
		{"absolute", "/etc/passwd", true},
		{"control character", "feeds/a\x00.gz", true},
		{"too long", strings.Repeat("k", 1025), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ferrors.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePrefix(t *testing.T) {
	assert.NoError(t, ValidatePrefix(""))
	assert.NoError(t, ValidatePrefix("manifests/"))
	assert.ErrorIs(t, ValidatePrefix("../manifests/"), ferrors.ErrInvalidInput)
}

func TestValidateLocalName(t *testing.T) {
	assert.NoError(t, ValidateLocalName("orders.20230101.gz"))

	for _, name := range []string{"", ".", "..", "/", "a/b", `a\b`, "a\tb"} {
		assert.ErrorIs(t, ValidateLocalName(name), ferrors.ErrInvalidInput, "name %q", name)
	}
}
