package assets

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// SourceFromBytes builds a Source from a named input, choosing the form by
// extension: .html/.htm is HTML, .md/.markdown is Markdown, anything else
// must be JSON.
func SourceFromBytes(name string, data []byte) (Source, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return Source{HTML: string(data)}, nil
	case ".md", ".markdown":
		return Source{Markdown: string(data)}, nil
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Source{}, fmt.Errorf("decode %s: %w", name, err)
	}
	if doc == nil {
		return Source{}, ErrNoInput
	}
	return Source{Document: doc}, nil
}

// LoadSource reads a source file.
func LoadSource(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read source: %w", err)
	}
	return SourceFromBytes(path, data)
}

// LoadAttachment reads a local file as a payload, sniffing its MIME type.
func LoadAttachment(path string) (Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Payload{}, fmt.Errorf("read attachment: %w", err)
	}
	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return Payload{Name: filepath.Base(path), MIMEType: mime, Data: data}, nil
}
