package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	blobs := NewBlobStore()
	payload := []byte("<html>content</html>")
	uri, err := blobs.PutObject(context.Background(), "job-1/abc.html", "text/html", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://job-1/abc.html", uri)

	payload[0] = 'X'
	stored, contentType, ok := blobs.Get("job-1/abc.html")
	require.True(t, ok)
	require.Equal(t, "<html>content</html>", string(stored))
	require.Equal(t, "text/html", contentType)

	stored[0] = 'Y'
	again, _, _ := blobs.Get("job-1/abc.html")
	require.Equal(t, byte('<'), again[0])
	require.Equal(t, 1, blobs.Len())
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), "", "text/html", bytes.NewReader(nil))
	require.Error(t, err)

	_, _, ok := NewBlobStore().Get("missing")
	require.False(t, ok)
}
