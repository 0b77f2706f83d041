package feedback

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/ormasoftchile/itemforge/pkg/content"
)

// PlanMismatchError reports a nested feedback payload whose leaves do not
// match the plan's combination ids exactly.
type PlanMismatchError struct {
	Missing []string
	Extra   []string
}

func (e *PlanMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Extra, ", "))
	}
	return "feedback payload does not match plan: " + strings.Join(parts, "; ")
}

// LeafKey is the property holding a leaf's content blocks.
const LeafKey = "content"

// Flatten checks a nested feedback payload against the plan and returns the
// raw leaf object of every combination, keyed by combination id.
//
// The payload nests one object level per dimension, keyed by that
// dimension's outcome keys; a fallback payload has a single level keyed by
// CORRECT and INCORRECT. Every plan id must have a leaf and no other leaf
// may exist.
func Flatten(plan Plan, raw []byte) (map[string]json.RawMessage, error) {
	depth := len(plan.Dimensions)
	if depth == 0 {
		depth = 1
	}

	found := make(map[string]json.RawMessage)
	var extra []string

	var walk func(node json.RawMessage, path []PathSegment) error
	walk = func(node json.RawMessage, path []PathSegment) error {
		if len(path) == depth {
			found[idOf(plan, path)] = node
			return nil
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(node, &obj); err != nil || obj == nil {
			return fmt.Errorf("feedback level %d must be an object", len(path))
		}
		resp, keys := "", []string{Correct, Incorrect}
		if len(plan.Dimensions) > 0 {
			d := plan.Dimensions[len(path)]
			resp, keys = d.ResponseIdentifier, d.Keys
		}
		for _, key := range slices.Sorted(maps.Keys(obj)) {
			next := append(slices.Clone(path), PathSegment{ResponseIdentifier: resp, Key: key})
			// An unknown key is extra whatever its value holds.
			if !slices.Contains(keys, key) {
				extra = append(extra, idOf(plan, next))
				continue
			}
			if err := walk(obj[key], next); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(json.RawMessage(bytes.TrimSpace(raw)), nil); err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(plan.Combinations))
	var missing []string
	for _, c := range plan.Combinations {
		want[c.ID] = true
		if _, ok := found[c.ID]; !ok {
			missing = append(missing, c.ID)
		}
	}
	for id := range found {
		if !want[id] {
			extra = append(extra, id)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		slices.Sort(extra)
		return nil, &PlanMismatchError{Missing: missing, Extra: extra}
	}
	return found, nil
}

func idOf(plan Plan, path []PathSegment) string {
	if len(plan.Dimensions) == 0 {
		return path[0].Key
	}
	return CombinationID(path)
}

// PayloadSchema returns the JSON Schema of the nested payload for plan. Leaf
// content refers to the content definitions, which the caller supplies
// under "$defs".
func PayloadSchema(plan Plan) map[string]any {
	leaf := LeafSchema()
	if len(plan.Dimensions) == 0 {
		return level([]string{Correct, Incorrect}, leaf)
	}
	s := leaf
	for i := len(plan.Dimensions) - 1; i >= 0; i-- {
		s = level(plan.Dimensions[i].Keys, s)
	}
	return s
}

// LeafSchema returns the schema of one leaf, for validating leaves after
// Flatten.
func LeafSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{LeafKey: content.Ref(content.DefBlocks)},
		"required":             []any{LeafKey},
		"additionalProperties": false,
	}
}

func level(keys []string, child map[string]any) map[string]any {
	props := make(map[string]any, len(keys))
	required := make([]any, 0, len(keys))
	for _, k := range keys {
		props[k] = child
		required = append(required, k)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
