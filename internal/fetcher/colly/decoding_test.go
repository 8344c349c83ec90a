package collyfetcher

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeBody_Deflate(t *testing.T) {
	t.Parallel()

	payload := []byte("<p>deflated</p>")

	var wrapped bytes.Buffer
	zw := zlib.NewWriter(&wrapped)
	_, _ = zw.Write(payload)
	require.NoError(t, zw.Close())

	var raw bytes.Buffer
	fw, err := flate.NewWriter(&raw, flate.DefaultCompression)
	require.NoError(t, err)
	_, _ = fw.Write(payload)
	require.NoError(t, fw.Close())

	for name, body := range map[string][]byte{"zlib": wrapped.Bytes(), "raw": raw.Bytes()} {
		decoded, err := decodeBody("deflate", body, 1<<20)
		require.NoError(t, err, name)
		require.Equal(t, payload, decoded, name)
	}
}

func TestDecodeBody_UnknownEncodingPassesThrough(t *testing.T) {
	t.Parallel()

	decoded, err := decodeBody("compress", []byte("as-is"), 1<<20)
	require.NoError(t, err)
	require.Equal(t, []byte("as-is"), decoded)
}

func TestDecodeBody_CorruptGzip(t *testing.T) {
	t.Parallel()

	_, err := decodeBody("gzip", []byte("not gzip"), 1<<20)
	require.Error(t, err)
}
