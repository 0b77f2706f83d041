package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Fixture is one recorded stage response.
type Fixture struct {
	Stage      string `yaml:"stage"`
	SchemaName string `yaml:"schema_name"`
	Model      string `yaml:"model"`
	Images     int    `yaml:"images"`
	Response   string `yaml:"response"`
}

// Recorder wraps a Backend and captures every successful response as a YAML
// fixture named after its stage.
type Recorder struct {
	inner   Backend
	dir     string
	secrets []string // env var names whose values should be redacted

	mu       sync.Mutex
	Captured []Fixture
}

// NewRecorder creates a recording wrapper writing fixtures to dir. An empty
// dir only keeps fixtures in memory.
func NewRecorder(inner Backend, dir string) *Recorder {
	return &Recorder{inner: inner, dir: dir}
}

// SetSecrets configures secret env var names whose values are redacted in captured output.
func (r *Recorder) SetSecrets(envVars []string) {
	r.secrets = envVars
}

// Generate delegates to the inner backend and records the response.
func (r *Recorder) Generate(ctx context.Context, req Request) ([]byte, error) {
	out, err := r.inner.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	f := Fixture{
		Stage:      req.Stage,
		SchemaName: req.SchemaName,
		Model:      r.inner.ModelName(),
		Images:     len(req.Images),
		Response:   r.redact(string(out)),
	}
	r.mu.Lock()
	r.Captured = append(r.Captured, f)
	r.mu.Unlock()

	if r.dir != "" {
		if err := WriteFixture(r.dir, f); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ModelName implements Backend.
func (r *Recorder) ModelName() string { return r.inner.ModelName() }

// redact replaces secret values with <REDACTED>.
func (r *Recorder) redact(s string) string {
	for _, envVar := range r.secrets {
		val := os.Getenv(envVar)
		if val != "" {
			s = strings.ReplaceAll(s, val, "<REDACTED>")
		}
	}
	return s
}

// WriteFixture writes f to <dir>/<stage>.yaml.
func WriteFixture(dir string, f Fixture) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create fixture dir: %w", err)
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	path := filepath.Join(dir, f.Stage+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}

// Replay serves recorded fixtures by stage. Fail-closed: a stage with no
// fixture is a call error.
type Replay struct {
	fixtures map[string]Fixture
}

// LoadReplay reads every *.yaml fixture in dir.
func LoadReplay(dir string) (*Replay, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list fixtures: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no fixtures in %s", dir)
	}
	fixtures := make([]Fixture, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read fixture: %w", err)
		}
		var f Fixture
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse fixture %s: %w", filepath.Base(p), err)
		}
		if f.Stage == "" {
			return nil, fmt.Errorf("fixture %s has no stage", filepath.Base(p))
		}
		fixtures = append(fixtures, f)
	}
	return NewReplay(fixtures...), nil
}

// NewReplay serves the given fixtures. A later fixture for the same stage
// replaces an earlier one.
func NewReplay(fixtures ...Fixture) *Replay {
	r := &Replay{fixtures: make(map[string]Fixture, len(fixtures))}
	for _, f := range fixtures {
		r.fixtures[f.Stage] = f
	}
	return r
}

// Generate returns the recorded response for req.Stage.
func (r *Replay) Generate(_ context.Context, req Request) ([]byte, error) {
	f, ok := r.fixtures[req.Stage]
	if !ok {
		return nil, fmt.Errorf("replay: no fixture for stage %q", req.Stage)
	}
	return []byte(f.Response), nil
}

// ModelName implements Backend.
func (r *Replay) ModelName() string { return "replay" }
