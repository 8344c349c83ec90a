package collyfetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

const acceptEncoding = "gzip, deflate, br"

// decodingTransport advertises gzip, deflate and brotli and hands colly a
// decoded body. Setting Accept-Encoding disables net/http's own gzip
// handling, so every encoding is decoded here.
type decodingTransport struct {
	base     http.RoundTripper
	maxBytes int64
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err //nolint:wrapcheck // RoundTrippers must pass errors through unchanged.
	}
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if encoding == "" || encoding == "identity" {
		return resp, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes))
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read encoded body: %w", err)
	}
	decoded, err := decodeBody(encoding, raw, t.maxBytes)
	if err != nil {
		return nil, err
	}

	resp.Body = io.NopCloser(bytes.NewReader(decoded))
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = int64(len(decoded))
	resp.Uncompressed = true
	return resp, nil
}

func decodeBody(encoding string, raw []byte, limit int64) ([]byte, error) {
	var (
		reader io.Reader
		err    error
	)
	switch encoding {
	case "gzip", "x-gzip":
		reader, err = gzip.NewReader(bytes.NewReader(raw))
	case "br":
		reader = brotli.NewReader(bytes.NewReader(raw))
	case "deflate":
		// Most servers send zlib-wrapped deflate; a few send the raw stream.
		reader, err = zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			reader, err = flate.NewReader(bytes.NewReader(raw)), nil
		}
	default:
		return raw, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s body: %w", encoding, err)
	}
	decoded, err := io.ReadAll(io.LimitReader(reader, limit))
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", encoding, err)
	}
	return decoded, nil
}
