// Package detector decides when an HTTP fetch returned an SPA shell that
// needs a browser render.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
)

// Defaults for NewHeuristic.
const (
	DefaultMinTextLength      = 200
	DefaultScriptDensityRatio = 0.25
)

// mountPoints are the root elements client-side frameworks render into.
const mountPoints = `#root, #app, #__next, #__nuxt, [data-reactroot], [ng-app], [ng-version], app-root`

// Heuristic promotes pages whose visible text is thin while a framework
// mount point is empty or scripts dominate the markup.
type Heuristic struct {
	MinTextLength      int
	ScriptDensityRatio float64
}

// NewHeuristic creates a detector. A zero minTextLength picks the default.
func NewHeuristic(minTextLength int) *Heuristic {
	if minTextLength <= 0 {
		minTextLength = DefaultMinTextLength
	}
	return &Heuristic{MinTextLength: minTextLength, ScriptDensityRatio: DefaultScriptDensityRatio}
}

// ShouldPromote reports whether resp looks like a client-rendered shell.
func (h *Heuristic) ShouldPromote(resp crawler.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return false
	}
	if len(visibleText(doc)) >= h.MinTextLength {
		return false
	}
	if hasEmptyMountPoint(doc) {
		return true
	}
	if noscriptDemandsJS(doc) {
		return true
	}
	return h.scriptDensityHigh(doc, len(resp.Body))
}

func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(body.Text()), " ")
}

func hasEmptyMountPoint(doc *goquery.Document) bool {
	empty := false
	doc.Find(mountPoints).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == "" {
			empty = true
		}
		return !empty
	})
	return empty
}

func noscriptDemandsJS(doc *goquery.Document) bool {
	text := strings.ToLower(doc.Find("noscript").Text())
	return strings.Contains(text, "enable javascript") || strings.Contains(text, "requires javascript")
}

func (h *Heuristic) scriptDensityHigh(doc *goquery.Document, total int) bool {
	if total == 0 {
		return false
	}
	scriptBytes := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		scriptBytes += len(s.Text())
	})
	return float64(scriptBytes)/float64(total) >= h.ScriptDensityRatio
}
