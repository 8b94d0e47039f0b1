package feedsync

import (
	"bytes"
	"compress/gzip"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/input-output-hk/catalyst-forge-libs/feedsync/errors"
)

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestClient_InspectStaging(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.objects.
		Put("feeds/a1.gz", gzipped(t, "id|name\n1|one\n")).
		PutString("feeds/a2.gz", "plain text rows\n")
	loaded(t, f, twoRowManifest)

	_, err := f.client.DownloadEntity(ctx, "A")
	require.NoError(t, err)

	files, err := f.client.InspectStaging(ctx, "A")
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "a1.gz", files[0].Name)
	assert.Equal(t, "application/gzip", files[0].MIME)
	assert.True(t, files[0].Gzip)
	assert.Equal(t, f.client.area.Path("A/a1.gz"), files[0].Path)

	assert.Equal(t, "a2.gz", files[1].Name)
	assert.False(t, files[1].Gzip)
	assert.Contains(t, files[1].MIME, "text/plain")
}

func TestClient_InspectStagingEmpty(t *testing.T) {
	f := newFixture(t)

	files, err := f.client.InspectStaging(context.Background(), "A")
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = f.client.InspectStaging(context.Background(), "../etc")
	assert.ErrorIs(t, err, ferrors.ErrInvalidInput)
}
