package assets

import (
	"bytes"
	"fmt"
	"maps"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// ref is one discovered media reference.
type ref struct {
	URL    string
	Legacy bool
}

var directPattern = regexp.MustCompile(`(?i)https?://[^\s"'<>()\[\]{}]+\.(?:svg|png|jpeg|jpg|gif)\b`)

// scanner finds media references in strings and remembers discovery order.
type scanner struct {
	legacy *regexp.Regexp
	seen   map[string]bool
	refs   []ref
}

func newScanner(legacyScheme string) *scanner {
	return &scanner{
		legacy: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(legacyScheme) + `://[^\s"'<>()\[\]{}]+`),
		seen:   make(map[string]bool),
	}
}

// scan records every legacy and direct reference in s, in position order.
func (s *scanner) scan(text string) {
	type hit struct {
		at  int
		ref ref
	}
	var hits []hit
	for _, loc := range s.legacy.FindAllStringIndex(text, -1) {
		u := strings.TrimRight(text[loc[0]:loc[1]], ".,;:")
		// Legacy references name a resource without an extension.
		if path.Ext(u[strings.Index(u, "://")+3:]) != "" {
			continue
		}
		hits = append(hits, hit{loc[0], ref{URL: u, Legacy: true}})
	}
	for _, loc := range directPattern.FindAllStringIndex(text, -1) {
		hits = append(hits, hit{loc[0], ref{URL: text[loc[0]:loc[1]]}})
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return a.at - b.at })
	for _, h := range hits {
		if s.seen[h.ref.URL] {
			continue
		}
		s.seen[h.ref.URL] = true
		s.refs = append(s.refs, h.ref)
	}
}

// walk visits every string in a decoded JSON value. Map keys are visited in
// sorted order so discovery is deterministic.
func (s *scanner) walk(v any) {
	switch t := v.(type) {
	case string:
		s.scan(t)
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(t)) {
			s.walk(t[k])
		}
	case []any:
		for _, e := range t {
			s.walk(e)
		}
	}
}

// html scans every attribute value and text node of an HTML fragment.
func (s *scanner) html(fragment string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fmt.Errorf("parse HTML: %w", err)
	}
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range sel.Nodes[0].Attr {
			s.scan(attr.Val)
		}
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				s.scan(c.Text())
			}
		})
	})
	return nil
}

// markdownRenderer keeps raw HTML so references inside inline tags are seen.
var markdownRenderer = goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))

// markdown renders a Markdown fragment to HTML and scans the result.
func (s *scanner) markdown(src string) error {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &buf); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	return s.html(buf.String())
}
