// Package assets turns a legacy item source into an Envelope: the text
// context and resolved media references handed to every generation stage.
package assets

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// Payload is a binary attachment sent alongside the text context.
type Payload struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// DataURI encodes the payload as a base64 data URI.
func (p Payload) DataURI() string {
	return "data:" + p.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Envelope is the normalized context of one pipeline run.
type Envelope struct {
	PrimaryContent string `json:"primaryContent"`
	// SupplementaryContent holds fetched SVG bodies in discovery order, each
	// prefixed with a comment naming its source URL.
	SupplementaryContent []string `json:"supplementaryContent"`
	// RasterImageURLs and VectorImageURLs are deduplicated and sorted.
	RasterImageURLs []string  `json:"rasterImageUrls"`
	VectorImageURLs []string  `json:"vectorImageUrls"`
	Payloads        []Payload `json:"payloads,omitempty"`
}

// ImageCount is the number of images sent as visual context: raster URLs
// plus binary payloads. Vector images travel as text.
func (e *Envelope) ImageCount() int {
	return len(e.RasterImageURLs) + len(e.Payloads)
}

// PayloadBytes is the number of image bytes carried inline: binary payloads
// plus the decoded size of any data URI in the raster list.
func (e *Envelope) PayloadBytes() int64 {
	var n int64
	for _, p := range e.Payloads {
		n += int64(len(p.Data))
	}
	for _, u := range e.RasterImageURLs {
		if strings.HasPrefix(strings.ToLower(u), "data:") {
			n += dataURISize(u)
		}
	}
	return n
}

// ImageReferences lists every image reference sent to a backend: raster
// URLs followed by payload data URIs.
func (e *Envelope) ImageReferences() []string {
	refs := make([]string, 0, e.ImageCount())
	refs = append(refs, e.RasterImageURLs...)
	for _, p := range e.Payloads {
		refs = append(refs, p.DataURI())
	}
	return refs
}

// HasVisualContext reports whether any image accompanies the text.
func (e *Envelope) HasVisualContext() bool {
	return e.ImageCount() > 0
}

func dataURISize(u string) int64 {
	i := strings.IndexByte(u, ',')
	if i < 0 {
		return 0
	}
	meta, data := u[:i], u[i+1:]
	if strings.HasSuffix(meta, ";base64") {
		return int64(base64.StdEncoding.DecodedLen(len(data)))
	}
	if s, err := url.PathUnescape(data); err == nil {
		return int64(len(s))
	}
	return int64(len(data))
}

// InvalidScreenshotURLError reports a screenshot reference that is not an
// absolute http(s) URL.
type InvalidScreenshotURLError struct {
	URL    string
	Reason string
}

func (e *InvalidScreenshotURLError) Error() string {
	return fmt.Sprintf("invalid screenshot URL %q: %s", e.URL, e.Reason)
}

func checkScreenshotURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &InvalidScreenshotURLError{URL: raw, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &InvalidScreenshotURLError{URL: raw, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &InvalidScreenshotURLError{URL: raw, Reason: "missing host"}
	}
	return nil
}
