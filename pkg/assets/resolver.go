package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ormasoftchile/itemforge/pkg/logging"
)

// Defaults applied to zero Config fields.
const (
	DefaultLegacyScheme         = "web+graphie"
	DefaultFetchTimeout         = 10 * time.Second
	DefaultMaxConcurrentFetches = 8
	DefaultMaxSVGBytes          = 2 << 20
	DefaultUserAgent            = "itemforge/1.0"
)

// DefaultProbeExtensions is the order legacy references are probed in.
var DefaultProbeExtensions = []string{"svg", "png", "jpeg", "jpg", "gif"}

// ErrNoInput is returned when a Source carries nothing to resolve.
var ErrNoInput = errors.New("source has no document, HTML, or Markdown")

// Source is the raw input of a run. Exactly one of Document, HTML, or
// Markdown is set.
type Source struct {
	Document      any
	HTML          string
	Markdown      string
	ScreenshotURL string
	Attachments   []Payload
}

// Config tunes resolution.
type Config struct {
	LegacyScheme         string        `yaml:"legacy_scheme"`
	ProbeExtensions      []string      `yaml:"probe_extensions"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout"`
	MaxConcurrentFetches int           `yaml:"max_concurrent_fetches"`
	MaxSVGBytes          int64         `yaml:"max_svg_bytes"`
	UserAgent            string        `yaml:"user_agent"`
}

func (c Config) withDefaults() Config {
	if c.LegacyScheme == "" {
		c.LegacyScheme = DefaultLegacyScheme
	}
	if len(c.ProbeExtensions) == 0 {
		c.ProbeExtensions = DefaultProbeExtensions
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.MaxConcurrentFetches <= 0 {
		c.MaxConcurrentFetches = DefaultMaxConcurrentFetches
	}
	if c.MaxSVGBytes <= 0 {
		c.MaxSVGBytes = DefaultMaxSVGBytes
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// Resolver discovers and resolves the media references of a Source.
type Resolver struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the client used for probes and fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.log = logging.OrNop(l) }
}

// NewResolver creates a resolver.
func NewResolver(cfg Config, opts ...Option) *Resolver {
	r := &Resolver{
		cfg:    cfg.withDefaults(),
		client: http.DefaultClient,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type kind int

const (
	dropped kind = iota
	raster
	vector
)

// resolution is the outcome for one discovered reference.
type resolution struct {
	kind kind
	url  string
	svg  string
}

// Resolve builds the envelope for src. Only malformed input fails; a
// reference that cannot be resolved is logged and contributes nothing.
func (r *Resolver) Resolve(ctx context.Context, src Source) (*Envelope, error) {
	if src.ScreenshotURL != "" {
		if err := checkScreenshotURL(src.ScreenshotURL); err != nil {
			return nil, err
		}
	}

	sc := newScanner(r.cfg.LegacyScheme)
	var primary string
	switch {
	case src.Document != nil:
		data, err := json.MarshalIndent(src.Document, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("serialize document: %w", err)
		}
		primary = string(data)
		sc.walk(src.Document)
	case src.HTML != "":
		primary = src.HTML
		if err := sc.html(src.HTML); err != nil {
			return nil, err
		}
	case src.Markdown != "":
		primary = src.Markdown
		if err := sc.markdown(src.Markdown); err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoInput
	}

	results := make([]resolution, len(sc.refs))
	var g errgroup.Group
	g.SetLimit(r.cfg.MaxConcurrentFetches)
	for i, ref := range sc.refs {
		g.Go(func() error {
			if ref.Legacy {
				results[i] = r.resolveLegacy(ctx, ref.URL)
			} else {
				results[i] = r.resolveDirect(ctx, ref.URL)
			}
			return nil
		})
	}
	_ = g.Wait()

	env := &Envelope{
		PrimaryContent:       primary,
		SupplementaryContent: []string{},
		Payloads:             src.Attachments,
	}
	for _, res := range results {
		switch res.kind {
		case vector:
			if slices.Contains(env.VectorImageURLs, res.url) {
				continue
			}
			env.VectorImageURLs = append(env.VectorImageURLs, res.url)
			env.SupplementaryContent = append(env.SupplementaryContent, fmt.Sprintf("<!-- source: %s -->\n%s", res.url, res.svg))
		case raster:
			env.RasterImageURLs = append(env.RasterImageURLs, res.url)
		}
	}
	if src.ScreenshotURL != "" && !slices.Contains(env.VectorImageURLs, src.ScreenshotURL) {
		env.RasterImageURLs = append(env.RasterImageURLs, src.ScreenshotURL)
	}
	env.RasterImageURLs = sortedSet(env.RasterImageURLs)
	env.VectorImageURLs = sortedSet(env.VectorImageURLs)

	r.log.Debug("assets resolved",
		zap.Int("discovered", len(sc.refs)),
		zap.Int("raster", len(env.RasterImageURLs)),
		zap.Int("vector", len(env.VectorImageURLs)),
		zap.Int("payloads", len(env.Payloads)))
	return env, nil
}

// resolveLegacy rewrites a legacy reference to https and probes each
// extension in order. The first responding raster extension wins; an svg
// that responds but cannot be read lets probing continue.
func (r *Resolver) resolveLegacy(ctx context.Context, legacy string) resolution {
	base := "https" + legacy[strings.Index(legacy, "://"):]
	for _, ext := range r.cfg.ProbeExtensions {
		u := base + "." + ext
		if err := r.probe(ctx, u); err != nil {
			continue
		}
		if ext != "svg" {
			return resolution{kind: raster, url: u}
		}
		body, err := r.fetchSVG(ctx, u)
		if err != nil {
			r.log.Debug("svg probe responded but fetch failed", zap.String("url", u), zap.Error(err))
			continue
		}
		return resolution{kind: vector, url: u, svg: body}
	}
	r.log.Warn("legacy reference did not resolve", zap.String("url", legacy))
	return resolution{kind: dropped}
}

func (r *Resolver) resolveDirect(ctx context.Context, u string) resolution {
	if !strings.EqualFold(path.Ext(u), ".svg") {
		return resolution{kind: raster, url: u}
	}
	body, err := r.fetchSVG(ctx, u)
	if err != nil {
		r.log.Warn("svg fetch failed", zap.String("url", u), zap.Error(err))
		return resolution{kind: dropped}
	}
	return resolution{kind: vector, url: u, svg: body}
}

func (r *Resolver) probe(ctx context.Context, u string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()
	resp, err := r.do(ctx, http.MethodHead, u)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (r *Resolver) fetchSVG(ctx context.Context, u string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()
	resp, err := r.do(ctx, http.MethodGet, u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxSVGBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > r.cfg.MaxSVGBytes {
		return "", fmt.Errorf("body exceeds %d bytes", r.cfg.MaxSVGBytes)
	}
	if !utf8.Valid(data) {
		return "", errors.New("body is not UTF-8 text")
	}
	return string(data), nil
}

func (r *Resolver) do(ctx context.Context, method, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	return r.client.Do(req)
}

func sortedSet(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []string{}
	}
	return out
}
