// Package extract turns raw HTML into the structured fields stored on a
// crawled page.
package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/seo-crawler/internal/canon"
)

// Caps bounding the size of a Document.
const (
	MaxHeadingsPerLevel = 20
	MaxLinks            = 500
	MaxAssetsPerKind    = 100
)

// HeadingLevels lists the heading keys present in Document.Headings.
var HeadingLevels = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

// metaFields maps <meta name|property> values to Document.Meta keys.
var metaFields = map[string]string{
	"description":         "description",
	"keywords":            "keywords",
	"robots":              "robots",
	"viewport":            "viewport",
	"author":              "author",
	"og:title":            "ogTitle",
	"og:description":      "ogDescription",
	"og:image":            "ogImage",
	"og:url":              "ogUrl",
	"og:type":             "ogType",
	"og:site_name":        "ogSiteName",
	"twitter:card":        "twitterCard",
	"twitter:title":       "twitterTitle",
	"twitter:description": "twitterDescription",
	"twitter:image":       "twitterImage",
	"twitter:site":        "twitterSite",
}

// Document is the structured view of one HTML page.
type Document struct {
	Title       string              `json:"title"`
	Canonical   string              `json:"canonical,omitempty"`
	Meta        map[string]string   `json:"meta"`
	Headings    map[string][]string `json:"headings"`
	Links       []string            `json:"links"`
	Images      []string            `json:"images"`
	Scripts     []string            `json:"scripts"`
	Stylesheets []string            `json:"stylesheets"`
}

// Extract parses body and collects the page fields. Malformed markup never
// fails extraction; missing elements or attributes leave their field empty.
// Links are resolved against pageURL (or a <base href>), normalized,
// filtered to crawlable URLs, deduplicated and capped.
func Extract(body []byte, pageURL string) Document {
	doc := Document{
		Meta:     make(map[string]string),
		Headings: make(map[string][]string, len(HeadingLevels)),
	}
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return doc
	}
	sel := goquery.NewDocumentFromNode(root)
	base := baseURL(sel, pageURL)

	doc.Title = cleanText(sel.Find("title").First().Text())
	doc.Meta = extractMeta(sel)
	for _, level := range HeadingLevels {
		doc.Headings[level] = collectText(sel.Find(level), MaxHeadingsPerLevel)
	}
	if base != nil {
		if href, ok := sel.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
			if resolved, ok := canon.Resolve(base, href); ok {
				doc.Canonical = resolved
			}
		}
		doc.Links = collectURLs(sel.Find("a[href]"), "href", base, MaxLinks, canon.IsCrawlable)
		doc.Images = collectURLs(sel.Find("img[src]"), "src", base, MaxAssetsPerKind, nil)
		doc.Scripts = collectURLs(sel.Find("script[src]"), "src", base, MaxAssetsPerKind, nil)
		doc.Stylesheets = collectURLs(sel.Find(`link[rel~="stylesheet"][href]`), "href", base, MaxAssetsPerKind, nil)
	}
	return doc
}

func baseURL(sel *goquery.Document, pageURL string) *url.URL {
	page, err := url.Parse(pageURL)
	if err != nil || page.Scheme == "" || page.Host == "" {
		return nil
	}
	if href, ok := sel.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			return page.ResolveReference(ref)
		}
	}
	return page
}

func extractMeta(sel *goquery.Document) map[string]string {
	meta := make(map[string]string)
	sel.Find("meta").Each(func(_ int, s *goquery.Selection) {
		if charset, ok := s.Attr("charset"); ok {
			if _, seen := meta["charset"]; !seen && strings.TrimSpace(charset) != "" {
				meta["charset"] = strings.ToLower(strings.TrimSpace(charset))
			}
			return
		}
		name := s.AttrOr("name", "")
		if name == "" {
			name = s.AttrOr("property", "")
		}
		field, ok := metaFields[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return
		}
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		if _, seen := meta[field]; !seen {
			meta[field] = cleanText(content)
		}
	})
	return meta
}

func collectText(sel *goquery.Selection, limit int) []string {
	out := make([]string, 0)
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := cleanText(s.Text()); text != "" {
			out = append(out, text)
		}
		return len(out) < limit
	})
	return out
}

func collectURLs(
	sel *goquery.Selection,
	attr string,
	base *url.URL,
	limit int,
	accept func(string) bool,
) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{})
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		resolved, ok := canon.Resolve(base, s.AttrOr(attr, ""))
		if !ok {
			return true
		}
		if accept != nil && !accept(resolved) {
			return true
		}
		if _, dup := seen[resolved]; dup {
			return true
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
		return len(out) < limit
	})
	return out
}

// cleanText collapses runs of whitespace. Entities are already decoded by the
// HTML tokenizer.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
