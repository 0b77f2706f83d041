// Package widgets holds the catalog of widget types a generated item may
// reference and the JSON Schema of each type's parameters. Rendering is done
// downstream; the catalog only knows shapes.
package widgets

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/invopop/jsonschema"
)

// Catalog answers which widget types exist and what their parameters
// look like.
type Catalog interface {
	// Schema returns the parameter schema of a widget type.
	Schema(widgetType string) (map[string]any, bool)
	// Types returns the known widget types in ascending order.
	Types() []string
}

// Registry is a Catalog built from Go parameter structs.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]map[string]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]map[string]any)}
}

// Register reflects params (a struct value or pointer) into a JSON Schema
// and records it under widgetType.
func (r *Registry) Register(widgetType string, params any) error {
	if widgetType == "" {
		return fmt.Errorf("widget type is required")
	}
	s, err := reflectSchema(params)
	if err != nil {
		return fmt.Errorf("widget %s: %w", widgetType, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.schemas[widgetType]; dup {
		return fmt.Errorf("widget %s already registered", widgetType)
	}
	r.schemas[widgetType] = s
	return nil
}

// Schema implements Catalog.
func (r *Registry) Schema(widgetType string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[widgetType]
	return s, ok
}

// Types implements Catalog.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// reflectSchema produces a self-contained schema for params using
// invopop/jsonschema with every nested struct inlined.
func reflectSchema(params any) (map[string]any, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(params)
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the built-in catalog.
func Default() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		for _, w := range builtin {
			if err := r.Register(w.name, w.params); err != nil {
				panic(err)
			}
		}
		defaultRegistry = r
	})
	return defaultRegistry
}
