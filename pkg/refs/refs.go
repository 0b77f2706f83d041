// Package refs collects the widget and interaction slots referenced from an
// item's content and enforces that every slot id has exactly one type.
package refs

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ormasoftchile/itemforge/pkg/content"
)

// Kind distinguishes widget slots from interaction slots.
type Kind string

const (
	KindWidget      Kind = "widget"
	KindInteraction Kind = "interaction"
)

// Slot is one referenced slot. Interaction slots carry no declared type at
// this layer; their type comes from the generated interaction itself.
type Slot struct {
	ID           string `json:"id"`
	Kind         Kind   `json:"kind"`
	DeclaredType string `json:"declaredType,omitempty"`
}

// Map is the set of distinct slots keyed by id.
type Map map[string]Slot

// ReferenceConflictError reports one id seen with two different types.
type ReferenceConflictError struct {
	ID           string
	ExistingType string
	NewType      string
}

func (e *ReferenceConflictError) Error() string {
	return fmt.Sprintf("slot %q referenced with conflicting types %q and %q", e.ID, e.ExistingType, e.NewType)
}

// typeLabel is the type a slot is compared and reported by. Interaction
// slots are labelled by kind so that a widget and an interaction sharing an
// id always conflict.
func (s Slot) typeLabel() string {
	if s.Kind == KindInteraction {
		return string(KindInteraction)
	}
	return s.DeclaredType
}

// Add records s, failing if s.ID is already present with a different type.
// Re-adding an identical slot is a no-op.
func (m Map) Add(s Slot) error {
	existing, ok := m[s.ID]
	if !ok {
		m[s.ID] = s
		return nil
	}
	if existing.Kind != s.Kind || existing.DeclaredType != s.DeclaredType {
		return &ReferenceConflictError{ID: s.ID, ExistingType: existing.typeLabel(), NewType: s.typeLabel()}
	}
	return nil
}

// Merge returns a new map holding the slots of a and b. It fails on the first
// id (in sorted order) whose types disagree; neither input is modified.
func Merge(a, b Map) (Map, error) {
	out := make(Map, len(a)+len(b))
	maps.Copy(out, a)
	for _, id := range slices.Sorted(maps.Keys(b)) {
		if err := out.Add(b[id]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// IDs returns every slot id of the given kind in ascending order.
func (m Map) IDs(kind Kind) []string {
	var ids []string
	for id, s := range m {
		if s.Kind == kind {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// WidgetIDs returns the widget slot ids in ascending order.
func (m Map) WidgetIDs() []string { return m.IDs(KindWidget) }

// InteractionIDs returns the interaction slot ids in ascending order.
func (m Map) InteractionIDs() []string { return m.IDs(KindInteraction) }

// Collect walks body, every feedback tree and every interaction and returns
// all referenced slots. Each part is collected into its own partial map and
// folded in with Merge; feedback blocks and interactions are visited in
// ascending id order so the first conflict reported is deterministic.
func Collect(body content.Blocks, feedback map[string]content.Blocks, interactions map[string]content.Interaction) (Map, error) {
	acc, err := walkPart(func(h content.Handlers) error { return content.Walk(body, h) })
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	for _, id := range slices.Sorted(maps.Keys(feedback)) {
		part, err := walkPart(func(h content.Handlers) error { return content.Walk(feedback[id], h) })
		if err == nil {
			acc, err = Merge(acc, part)
		}
		if err != nil {
			return nil, fmt.Errorf("feedback %s: %w", id, err)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(interactions)) {
		part, err := walkPart(func(h content.Handlers) error { return content.WalkInteraction(interactions[id], h) })
		if err == nil {
			acc, err = Merge(acc, part)
		}
		if err != nil {
			return nil, fmt.Errorf("interaction %s: %w", id, err)
		}
	}
	return acc, nil
}

// CollectBody is Collect over a body alone.
func CollectBody(body content.Blocks) (Map, error) {
	return Collect(body, nil, nil)
}

// walkPart runs one walk into a fresh accumulator.
func walkPart(walk func(content.Handlers) error) (Map, error) {
	acc := make(Map)
	h := content.Handlers{
		WidgetRef: func(id, widgetType string) error {
			return acc.Add(Slot{ID: id, Kind: KindWidget, DeclaredType: widgetType})
		},
		InteractionRef: func(id string) error {
			return acc.Add(Slot{ID: id, Kind: KindInteraction})
		},
	}
	if err := walk(h); err != nil {
		return nil, err
	}
	return acc, nil
}
