// Package canon normalizes, resolves and filters crawl URLs.
package canon

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"path"
	"sort"
	"strings"
)

// InfiniteDepth is the depth assigned to URLs outside a base URL's origin.
const InfiniteDepth = math.MaxInt

// ErrNotAbsolute reports a URL without a scheme or host.
var ErrNotAbsolute = errors.New("url is not absolute")

var skippedExtensions = map[string]struct{}{
	// documents
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {}, ".odt": {}, ".rtf": {},
	// archives
	".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {}, ".tgz": {}, ".bz2": {},
	// images
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {}, ".bmp": {}, ".tiff": {},
	// audio and video
	".mp3": {}, ".mp4": {}, ".wav": {}, ".avi": {}, ".mov": {}, ".webm": {}, ".ogg": {}, ".flac": {}, ".mkv": {},
	// fonts
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {}, ".otf": {},
	// assets and data
	".css": {}, ".js": {}, ".json": {}, ".xml": {}, ".txt": {},
	// binaries
	".exe": {}, ".dmg": {}, ".apk": {}, ".iso": {}, ".bin": {},
}

var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:", "ftp:"}

// Normalize standardizes a URL so equivalent spellings dedupe to one key.
// It lowercases the scheme and host, removes default ports and the fragment,
// sorts query parameters and drops a non-root trailing slash.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrNotAbsolute, rawURL)
	}
	normalizeInPlace(u)
	return u.String(), nil
}

func normalizeInPlace(u *url.URL) {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	if u.RawQuery != "" {
		if q, err := url.ParseQuery(u.RawQuery); err == nil {
			u.RawQuery = sortedQuery(q)
		}
	}
	u.ForceQuery = false

	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
		u.RawPath = strings.TrimRight(u.RawPath, "/")
	}
}

// sortedQuery encodes q with keys, and the values of each key, in lexical order.
func sortedQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		values := append([]string(nil), q[k]...)
		sort.Strings(values)
		for _, v := range values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// Resolve resolves href against base and normalizes the result. It reports
// false for anything that cannot become an absolute URL; it never errors.
func Resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme == "" || abs.Host == "" {
		return "", false
	}
	normalizeInPlace(abs)
	return abs.String(), true
}

// IsCrawlable reports whether rawURL is an http(s) URL whose path does not end
// in a non-HTML extension.
func IsCrawlable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	if u.Hostname() == "" {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return true
	}
	_, skip := skippedExtensions[ext]
	return !skip
}

// Origin returns scheme://host[:port] for u, lowercased.
func Origin(u *url.URL) string {
	if u == nil {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// OriginOf parses rawURL and returns its origin.
func OriginOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrNotAbsolute, rawURL)
	}
	return Origin(u), nil
}

// PathDepth counts the path segments of u beyond those it shares with base.
// URLs on a different origin than base get InfiniteDepth.
func PathDepth(u, base *url.URL) int {
	if u == nil || base == nil || Origin(u) != Origin(base) {
		return InfiniteDepth
	}
	target := segments(u.Path)
	root := segments(base.Path)
	common := 0
	for common < len(target) && common < len(root) && target[common] == root[common] {
		common++
	}
	return len(target) - common
}

func segments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
