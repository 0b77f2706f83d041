package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const svgBody = `<svg xmlns="http://www.w3.org/2000/svg"><circle r="4"/></svg>`

// fixture serves a fixed set of paths and counts requests per method+path.
type fixture struct {
	srv  *httptest.Server
	host string

	mu    sync.Mutex
	calls map[string]int

	inFlight, maxInFlight atomic.Int32
}

// route describes one served path. headOnly paths answer HEAD but fail GET.
type route struct {
	body     string
	headOnly bool
	delay    time.Duration
}

func newFixture(t *testing.T, routes map[string]route) *fixture {
	t.Helper()
	f := &fixture{calls: make(map[string]int)}
	f.srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := f.inFlight.Add(1)
		defer f.inFlight.Add(-1)
		for {
			m := f.maxInFlight.Load()
			if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}

		f.mu.Lock()
		f.calls[r.Method+" "+r.URL.Path]++
		f.mu.Unlock()

		rt, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		time.Sleep(rt.delay)
		if r.Method == http.MethodGet && rt.headOnly {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(rt.body))
	}))
	t.Cleanup(f.srv.Close)
	f.host = strings.TrimPrefix(f.srv.URL, "https://")
	return f
}

func (f *fixture) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+" "+path]
}

func (f *fixture) resolver(cfg Config) *Resolver {
	return NewResolver(cfg, WithHTTPClient(f.srv.Client()))
}

func TestResolveLegacySVG(t *testing.T) {
	f := newFixture(t, map[string]route{"/abc.svg": {body: svgBody}})
	doc := map[string]any{"question": map[string]any{
		"content": "![](web+graphie://" + f.host + "/abc)",
	}}

	env, err := f.resolver(Config{}).Resolve(context.Background(), Source{Document: doc})
	require.NoError(t, err)

	url := f.srv.URL + "/abc.svg"
	assert.Equal(t, []string{url}, env.VectorImageURLs)
	assert.Empty(t, env.RasterImageURLs)
	require.Len(t, env.SupplementaryContent, 1)
	assert.Equal(t, "<!-- source: "+url+" -->\n"+svgBody, env.SupplementaryContent[0])
	assert.Contains(t, env.PrimaryContent, "web+graphie://")
}

func TestResolveLegacyFallsThroughUnreadableSVG(t *testing.T) {
	f := newFixture(t, map[string]route{
		"/abc.svg":  {headOnly: true},
		"/abc.jpeg": {body: "jpeg"},
		"/abc.png":  {body: "png"},
	})
	doc := map[string]any{"c": "web+graphie://" + f.host + "/abc"}

	env, err := f.resolver(Config{}).Resolve(context.Background(), Source{Document: doc})
	require.NoError(t, err)

	assert.Empty(t, env.VectorImageURLs)
	assert.Equal(t, []string{f.srv.URL + "/abc.png"}, env.RasterImageURLs)
	assert.Equal(t, 1, f.count(http.MethodGet, "/abc.svg"))
	assert.Zero(t, f.count(http.MethodGet, "/abc.png"), "raster references are not fetched")
	assert.Zero(t, f.count(http.MethodHead, "/abc.jpeg"), "probing stops at the first raster hit")
}

func TestResolveDropsUnresolvable(t *testing.T) {
	f := newFixture(t, nil)
	doc := map[string]any{
		"a": "web+graphie://" + f.host + "/missing",
		"b": f.srv.URL + "/gone.svg",
	}

	env, err := f.resolver(Config{}).Resolve(context.Background(), Source{Document: doc})
	require.NoError(t, err)
	assert.Empty(t, env.VectorImageURLs)
	assert.Empty(t, env.RasterImageURLs)
	assert.Empty(t, env.SupplementaryContent)
	for _, ext := range DefaultProbeExtensions {
		assert.Equal(t, 1, f.count(http.MethodHead, "/missing."+ext))
	}
}

func TestResolveDirectLinks(t *testing.T) {
	f := newFixture(t, map[string]route{"/d.SVG": {body: svgBody}})
	doc := []any{
		"see " + f.srv.URL + "/d.SVG and https://cdn.example.com/z.png",
		"https://cdn.example.com/a.GIF",
		"https://cdn.example.com/z.png",
	}

	env, err := f.resolver(Config{}).Resolve(context.Background(), Source{Document: doc})
	require.NoError(t, err)
	assert.Equal(t, []string{f.srv.URL + "/d.SVG"}, env.VectorImageURLs)
	assert.Equal(t, []string{"https://cdn.example.com/a.GIF", "https://cdn.example.com/z.png"}, env.RasterImageURLs)
}

func TestResolveKeepsDiscoveryOrderForSupplementaryContent(t *testing.T) {
	f := newFixture(t, map[string]route{
		"/first.svg":  {body: "<svg>1</svg>", delay: 100 * time.Millisecond},
		"/second.svg": {body: "<svg>2</svg>"},
	})
	src := Source{HTML: `<p><img src="` + f.srv.URL + `/first.svg"></p><p>` + f.srv.URL + `/second.svg</p>`}

	env, err := f.resolver(Config{}).Resolve(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, env.SupplementaryContent, 2)
	assert.True(t, strings.HasSuffix(env.SupplementaryContent[0], "<svg>1</svg>"))
	assert.True(t, strings.HasSuffix(env.SupplementaryContent[1], "<svg>2</svg>"))
}

func TestResolveIsDeterministic(t *testing.T) {
	f := newFixture(t, map[string]route{
		"/x.png": {body: "x"}, "/y.svg": {body: "<svg/>"}, "/z.gif": {body: "z"},
	})
	doc := map[string]any{
		"b": []any{"web+graphie://" + f.host + "/z", "https://img.example.com/b.jpg"},
		"a": "https://img.example.com/a.jpg https://img.example.com/b.jpg",
		"c": map[string]any{"d": "web+graphie://" + f.host + "/x", "e": "web+graphie://" + f.host + "/y"},
	}
	r := f.resolver(Config{MaxConcurrentFetches: 3})

	first, err := r.Resolve(context.Background(), Source{Document: doc})
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), Source{Document: doc})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{
		f.srv.URL + "/x.png",
		f.srv.URL + "/z.gif",
		"https://img.example.com/a.jpg",
		"https://img.example.com/b.jpg",
	}, first.RasterImageURLs)
	assert.Equal(t, []string{f.srv.URL + "/y.svg"}, first.VectorImageURLs)
}

func TestResolveBoundsConcurrency(t *testing.T) {
	routes := make(map[string]route)
	var links []any
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		routes["/"+name+".svg"] = route{body: "<svg/>", delay: 30 * time.Millisecond}
	}
	f := newFixture(t, routes)
	for p := range routes {
		links = append(links, f.srv.URL+p)
	}

	env, err := f.resolver(Config{MaxConcurrentFetches: 2}).Resolve(context.Background(), Source{Document: links})
	require.NoError(t, err)
	assert.Len(t, env.VectorImageURLs, 6)
	assert.LessOrEqual(t, f.maxInFlight.Load(), int32(2))
}

func TestResolveFetchTimeoutIsPerURL(t *testing.T) {
	f := newFixture(t, map[string]route{
		"/slow.svg": {body: "<svg/>", delay: 300 * time.Millisecond},
		"/fast.svg": {body: "<svg/>"},
	})
	doc := []any{f.srv.URL + "/slow.svg", f.srv.URL + "/fast.svg"}

	env, err := f.resolver(Config{FetchTimeout: 50 * time.Millisecond}).Resolve(context.Background(), Source{Document: doc})
	require.NoError(t, err)
	assert.Equal(t, []string{f.srv.URL + "/fast.svg"}, env.VectorImageURLs)
}

func TestResolveMarkdown(t *testing.T) {
	f := newFixture(t, map[string]route{"/m.png": {body: "png"}})
	src := Source{Markdown: "# Title\n\n![graph](web+graphie://" + f.host + "/m)\n"}

	env, err := f.resolver(Config{}).Resolve(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{f.srv.URL + "/m.png"}, env.RasterImageURLs)
	assert.Equal(t, src.Markdown, env.PrimaryContent)
}

func TestResolveMarkdownInlineHTML(t *testing.T) {
	f := newFixture(t, map[string]route{"/g.svg": {body: svgBody}})
	src := Source{Markdown: "Look:\n\n<img src=\"" + f.srv.URL + "/a.png\">\n\n" +
		"A <span data-x=\"web+graphie://" + f.host + "/g\">graph</span> here.\n"}

	env, err := f.resolver(Config{}).Resolve(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{f.srv.URL + "/a.png"}, env.RasterImageURLs)
	assert.Equal(t, []string{f.srv.URL + "/g.svg"}, env.VectorImageURLs)
}

func TestResolveSameSVGFromLegacyAndDirectLink(t *testing.T) {
	f := newFixture(t, map[string]route{"/g.svg": {body: svgBody}})
	doc := []any{"web+graphie://" + f.host + "/g", f.srv.URL + "/g.svg"}

	env, err := f.resolver(Config{}).Resolve(context.Background(), Source{Document: doc})
	require.NoError(t, err)
	assert.Equal(t, []string{f.srv.URL + "/g.svg"}, env.VectorImageURLs)
	assert.Len(t, env.SupplementaryContent, 1)
}

func TestResolveScreenshot(t *testing.T) {
	r := NewResolver(Config{})
	doc := map[string]any{"q": "plain"}

	env, err := r.Resolve(context.Background(), Source{Document: doc, ScreenshotURL: "https://shots.example.com/1.png"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shots.example.com/1.png"}, env.RasterImageURLs)

	for _, bad := range []string{"ftp://shots.example.com/1.png", "https:///nohost", "::::"} {
		_, err := r.Resolve(context.Background(), Source{Document: doc, ScreenshotURL: bad})
		var invalid *InvalidScreenshotURLError
		assert.True(t, errors.As(err, &invalid), bad)
	}
}

func TestResolveNoInput(t *testing.T) {
	_, err := NewResolver(Config{}).Resolve(context.Background(), Source{})
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestEnvelopeAccounting(t *testing.T) {
	env := &Envelope{
		RasterImageURLs: []string{"data:image/png;base64,AAAA", "https://x/y.png"},
		Payloads:        []Payload{{Name: "a.png", MIMEType: "image/png", Data: make([]byte, 10)}},
	}
	assert.Equal(t, 3, env.ImageCount())
	assert.Equal(t, int64(13), env.PayloadBytes())
	refs := env.ImageReferences()
	require.Len(t, refs, 3)
	assert.True(t, strings.HasPrefix(refs[2], "data:image/png;base64,"))
	assert.True(t, env.HasVisualContext())
}

func TestSourceFromBytes(t *testing.T) {
	src, err := SourceFromBytes("item.html", []byte("<p>x</p>"))
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", src.HTML)

	src, err = SourceFromBytes("item.md", []byte("# x"))
	require.NoError(t, err)
	assert.Equal(t, "# x", src.Markdown)

	src, err = SourceFromBytes("item.json", []byte(`{"a": 1}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, src.Document)

	_, err = SourceFromBytes("item.json", []byte(`{`))
	assert.Error(t, err)
	_, err = SourceFromBytes("item.json", []byte(`null`))
	assert.ErrorIs(t, err, ErrNoInput)
}
