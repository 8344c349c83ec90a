package seo

import (
	"bytes"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/seo-crawler/internal/canon"
)

// Options carries the measurements that are not derivable from the HTML.
type Options struct {
	// LoadTime is the fetch duration; zero means unknown.
	LoadTime time.Duration
	// PageSize overrides len(body) when the transferred size differs.
	PageSize int
}

// Analyze builds the Audit for body served at pageURL.
func Analyze(body []byte, pageURL string, opts Options) Audit {
	audit := Audit{
		IsIndexable:  true,
		IsFollowable: true,
		SchemaTypes:  []string{},
		PageSize:     opts.PageSize,
		LoadTimeMs:   opts.LoadTime.Milliseconds(),
	}
	if audit.PageSize <= 0 {
		audit.PageSize = len(body)
	}
	page, _ := url.Parse(pageURL)
	if page != nil {
		audit.IsHTTPS = strings.EqualFold(page.Scheme, "https")
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		score(&audit)
		return audit
	}
	doc := goquery.NewDocumentFromNode(root)

	analyzeTitle(doc, &audit)
	analyzeMeta(doc, &audit)
	analyzeHeadings(doc, &audit)
	analyzeCanonical(doc, page, &audit)
	analyzeStructuredData(doc, &audit)
	analyzeImages(doc, &audit)
	analyzeLinks(doc, page, &audit)
	analyzeTechnical(doc, &audit)

	score(&audit)
	return audit
}

func analyzeTitle(doc *goquery.Document, a *Audit) {
	a.Title = cleanText(doc.Find("title").First().Text())
	a.TitleLength = utf8.RuneCountInString(a.Title)
	a.HasTitle = a.TitleLength > 0
	a.TitleTooLong = a.TitleLength > TitleMaxLength
	a.TitleTooShort = a.HasTitle && a.TitleLength < TitleMinLength
}

func analyzeMeta(doc *goquery.Document, a *Audit) {
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name := strings.ToLower(strings.TrimSpace(s.AttrOr("name", "")))
		property := strings.ToLower(strings.TrimSpace(s.AttrOr("property", "")))
		content := cleanText(s.AttrOr("content", ""))

		if _, ok := s.Attr("charset"); ok {
			a.HasCharset = true
		}
		if strings.EqualFold(s.AttrOr("http-equiv", ""), "content-type") &&
			strings.Contains(strings.ToLower(content), "charset=") {
			a.HasCharset = true
		}

		switch {
		case name == "description" && !a.HasMetaDescription:
			a.MetaDescription = content
			a.MetaDescriptionLength = utf8.RuneCountInString(content)
			a.HasMetaDescription = a.MetaDescriptionLength > 0
		case name == "robots" && a.RobotsMeta == "":
			a.RobotsMeta = content
		case name == "viewport":
			a.HasViewport = true
		case strings.HasPrefix(property, "og:"):
			a.HasOpenGraph = true
			switch property {
			case "og:title":
				a.OGTitle = firstNonEmpty(a.OGTitle, content)
			case "og:description":
				a.OGDescription = firstNonEmpty(a.OGDescription, content)
			case "og:image":
				a.OGImage = firstNonEmpty(a.OGImage, content)
			}
		case strings.HasPrefix(name, "twitter:") || strings.HasPrefix(property, "twitter:"):
			a.HasTwitterCard = true
			if name == "twitter:card" || property == "twitter:card" {
				a.TwitterCard = firstNonEmpty(a.TwitterCard, content)
			}
		}
	})
	a.MetaDescriptionTooLong = a.MetaDescriptionLength > DescriptionMaxLength
	a.MetaDescriptionTooShort = a.HasMetaDescription && a.MetaDescriptionLength < DescriptionMinLength

	for _, token := range strings.FieldsFunc(strings.ToLower(a.RobotsMeta), isTokenSep) {
		switch token {
		case "noindex":
			a.IsIndexable = false
		case "nofollow":
			a.IsFollowable = false
		case "none":
			a.IsIndexable = false
			a.IsFollowable = false
		}
	}
}

func analyzeHeadings(doc *goquery.Document, a *Audit) {
	a.H1Count = doc.Find("h1").Length()
	a.H2Count = doc.Find("h2").Length()
	a.H3Count = doc.Find("h3").Length()
	a.H4Count = doc.Find("h4").Length()
	a.H5Count = doc.Find("h5").Length()
	a.H6Count = doc.Find("h6").Length()
	a.MissingH1 = a.H1Count == 0
	a.HasMultipleH1 = a.H1Count > 1
}

func analyzeCanonical(doc *goquery.Document, page *url.URL, a *Audit) {
	href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return
	}
	a.HasCanonical = true
	a.CanonicalURL = strings.TrimSpace(href)
	if page == nil {
		return
	}
	resolved, ok := canon.Resolve(page, href)
	if !ok {
		return
	}
	a.CanonicalURL = resolved
	if self, err := canon.Normalize(page.String()); err == nil {
		a.CanonicalIsSelf = self == resolved
	}
}

func analyzeStructuredData(doc *goquery.Document, a *Audit) {
	types := make(map[string]struct{})
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		a.JSONLDCount++
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return
		}
		collectSchemaTypes(payload, types)
	})
	a.MicrodataCount = doc.Find("[itemscope]").Length()
	a.RDFaCount = doc.Find("[vocab], [typeof], [property]").Not("meta").Length()
	a.HasStructuredData = a.JSONLDCount+a.MicrodataCount+a.RDFaCount > 0

	for t := range types {
		a.SchemaTypes = append(a.SchemaTypes, t)
	}
	sort.Strings(a.SchemaTypes)
}

// collectSchemaTypes walks decoded JSON-LD and records every @type value,
// including those nested in arrays, @graph and child objects.
func collectSchemaTypes(node any, into map[string]struct{}) {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			collectSchemaTypes(item, into)
		}
	case map[string]any:
		switch t := v["@type"].(type) {
		case string:
			if t != "" {
				into[t] = struct{}{}
			}
		case []any:
			for _, item := range t {
				if s, ok := item.(string); ok && s != "" {
					into[s] = struct{}{}
				}
			}
		}
		for key, child := range v {
			if key == "@type" {
				continue
			}
			collectSchemaTypes(child, into)
		}
	}
}

func analyzeImages(doc *goquery.Document, a *Audit) {
	imgs := doc.Find("img")
	a.TotalImages = imgs.Length()
	imgs.Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.AttrOr("alt", "")) == "" {
			a.ImagesWithoutAlt++
		}
	})
}

func analyzeLinks(doc *goquery.Document, page *url.URL, a *Audit) {
	if page == nil {
		return
	}
	host := strings.ToLower(page.Hostname())
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		resolved, ok := canon.Resolve(page, s.AttrOr("href", ""))
		if !ok {
			return
		}
		target, err := url.Parse(resolved)
		if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
			return
		}
		a.TotalLinks++
		if strings.ToLower(target.Hostname()) == host {
			a.InternalLinks++
		} else {
			a.ExternalLinks++
		}
		for _, rel := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
			if rel == "nofollow" {
				a.NofollowLinks++
				break
			}
		}
		if !hasAccessibleText(s) {
			a.LinksWithoutText++
		}
	})
}

func hasAccessibleText(s *goquery.Selection) bool {
	if strings.TrimSpace(s.Text()) != "" {
		return true
	}
	if strings.TrimSpace(s.AttrOr("aria-label", "")) != "" || strings.TrimSpace(s.AttrOr("title", "")) != "" {
		return true
	}
	found := false
	s.Find("img[alt]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		found = strings.TrimSpace(img.AttrOr("alt", "")) != ""
		return !found
	})
	return found
}

func analyzeTechnical(doc *goquery.Document, a *Audit) {
	a.Lang = strings.TrimSpace(doc.Find("html").First().AttrOr("lang", ""))
	a.HasLang = a.Lang != ""

	body := doc.Find("body").First().Clone()
	body.Find("script, style, noscript, template").Remove()
	a.WordCount = len(strings.Fields(body.Text()))
}

func isTokenSep(r rune) bool {
	return r == ',' || r == ' ' || r == '\t' || r == '\n'
}

func firstNonEmpty(current, candidate string) string {
	if current != "" {
		return current
	}
	return candidate
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
