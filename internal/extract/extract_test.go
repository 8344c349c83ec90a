package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>  Widgets &amp; Gadgets
     Store </title>
  <meta name="description" content="Buy widgets &amp; gadgets online.">
  <meta name="Keywords" content="widgets, gadgets">
  <meta name="robots" content="index, follow">
  <meta property="og:title" content="Widgets OG">
  <meta name="twitter:card" content="summary">
  <meta name="unknown" content="ignored">
  <link rel="canonical" href="/shop/">
  <link rel="stylesheet" href="/css/site.css">
  <link rel="preload stylesheet" href="/css/extra.css">
  <script src="/js/app.js"></script>
  <script>inline()</script>
</head>
<body>
  <h1>Main   heading</h1>
  <h2>First</h2><h2>Second</h2><h2>   </h2>
  <a href="/about/#team">About</a>
  <a href="/about">About again</a>
  <a href="https://other.example/page?b=2&a=1">Other</a>
  <a href="/files/report.pdf">Report</a>
  <a href="mailto:hi@example.com">Mail</a>
  <a href="javascript:void(0)">JS</a>
  <a>No href</a>
  <img src="/img/a.png" alt="A">
  <img src="/img/a.png">
  <img alt="no src">
</body>
</html>`

func TestExtractFields(t *testing.T) {
	t.Parallel()

	doc := Extract([]byte(samplePage), "https://example.com/shop/index")

	require.Equal(t, "Widgets & Gadgets Store", doc.Title)
	require.Equal(t, "https://example.com/shop", doc.Canonical)
	require.Equal(t, "Buy widgets & gadgets online.", doc.Meta["description"])
	require.Equal(t, "widgets, gadgets", doc.Meta["keywords"])
	require.Equal(t, "index, follow", doc.Meta["robots"])
	require.Equal(t, "Widgets OG", doc.Meta["ogTitle"])
	require.Equal(t, "summary", doc.Meta["twitterCard"])
	require.Equal(t, "utf-8", doc.Meta["charset"])
	require.NotContains(t, doc.Meta, "unknown")

	require.Equal(t, []string{"Main heading"}, doc.Headings["h1"])
	require.Equal(t, []string{"First", "Second"}, doc.Headings["h2"])
	require.Empty(t, doc.Headings["h3"])

	require.Equal(t, []string{
		"https://example.com/about",
		"https://other.example/page?a=1&b=2",
	}, doc.Links)
	require.Equal(t, []string{"https://example.com/img/a.png"}, doc.Images)
	require.Equal(t, []string{"https://example.com/js/app.js"}, doc.Scripts)
	require.Equal(t, []string{
		"https://example.com/css/site.css",
		"https://example.com/css/extra.css",
	}, doc.Stylesheets)
}

func TestExtractCaps(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < MaxLinks+50; i++ {
		fmt.Fprintf(&b, `<a href="/p/%d">p</a>`, i)
	}
	for i := 0; i < MaxHeadingsPerLevel+5; i++ {
		fmt.Fprintf(&b, "<h3>heading %d</h3>", i)
	}
	for i := 0; i < MaxAssetsPerKind+5; i++ {
		fmt.Fprintf(&b, `<img src="/i/%d.png">`, i)
	}
	b.WriteString("</body></html>")

	doc := Extract([]byte(b.String()), "https://example.com/")
	require.Len(t, doc.Links, MaxLinks)
	require.Len(t, doc.Headings["h3"], MaxHeadingsPerLevel)
	require.Len(t, doc.Images, MaxAssetsPerKind)
}

func TestExtractToleratesMalformedMarkup(t *testing.T) {
	t.Parallel()

	doc := Extract([]byte(`<html><head><title>Broken<body><h1>Open <a href="/x">x`), "https://example.com/")
	require.NotPanics(t, func() { _ = Extract([]byte("<<<>>>"), "::not a url") })
	require.Empty(t, Extract([]byte(`<a href="/x">x</a>`), "::not a url").Links)
	require.NotNil(t, doc.Meta)
	require.NotNil(t, doc.Headings)
}

func TestExtractHonorsBaseHref(t *testing.T) {
	t.Parallel()

	page := `<html><head><base href="https://cdn.example.com/root/"></head><body><a href="child">c</a></body></html>`
	doc := Extract([]byte(page), "https://example.com/page")
	require.Equal(t, []string{"https://cdn.example.com/root/child"}, doc.Links)
}

func ExampleExtract() {
	doc := Extract([]byte(`<title>Hello</title><a href="/a">a</a><a href="/a#x">again</a>`), "https://example.com/")
	fmt.Println(doc.Title, doc.Links)
	// Output: Hello [https://example.com/a]
}
