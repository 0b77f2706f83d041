package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/ormasoftchile/itemforge/pkg/content"
	"github.com/ormasoftchile/itemforge/pkg/feedback"
	"github.com/ormasoftchile/itemforge/pkg/refs"
	"github.com/ormasoftchile/itemforge/pkg/widgets"
)

// Stage schema names. Backends pass them through as the structured output
// name, so they stick to [a-zA-Z0-9_-].
const (
	NameShell        = "item_shell"
	NameInteractions = "item_interactions"
	NameFeedback     = "item_feedback"
	NameFeedbackLeaf = "item_feedback_leaf"
	NameWidgets      = "item_widgets"
	NameItem         = "assessment_item"
)

const draft = "https://json-schema.org/draft/2020-12/schema"

// document wraps root with the draft marker and the content definitions.
func document(root map[string]any) map[string]any {
	out := make(map[string]any, len(root)+2)
	for k, v := range root {
		out[k] = v
	}
	out["$schema"] = draft
	out["$defs"] = content.Definitions()
	return out
}

func object(props map[string]any, required ...string) map[string]any {
	req := make([]any, 0, len(required))
	for _, r := range required {
		req = append(req, r)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             req,
		"additionalProperties": false,
	}
}

// Shell returns the schema of the first stage: identifier, title, response
// declarations and the body tree.
func Shell() map[string]any {
	return document(object(map[string]any{
		"identifier":           map[string]any{"type": "string", "minLength": 1},
		"title":                map[string]any{"type": "string"},
		"responseDeclarations": map[string]any{"type": "array", "items": mustReflect(&content.ResponseDeclaration{})},
		"body":                 content.Ref(content.DefBlocks),
	}, "identifier", "title", "responseDeclarations", "body"))
}

// Interactions returns the schema of the second stage for the given slot
// ids: {"interactions": {id: interaction}} with exactly those ids. With no
// ids it accepts any id, which is the form exported for documentation.
func Interactions(ids []string) map[string]any {
	return document(object(map[string]any{
		"interactions": keyed(ids, content.Ref(content.DefInteraction)),
	}, "interactions"))
}

// Feedback returns the schema of the nested feedback payload for plan.
func Feedback(plan feedback.Plan) map[string]any {
	return document(feedback.PayloadSchema(plan))
}

// FeedbackLeaf returns the schema of one flattened feedback leaf.
func FeedbackLeaf() map[string]any {
	return document(feedback.LeafSchema())
}

// Widgets returns the schema of the fourth stage for the given widget
// slots. Each slot's params are constrained by its type's catalog schema. A
// slot whose type is missing from the catalog is an error; callers check
// that first to report it properly.
func Widgets(slots []refs.Slot, catalog widgets.Catalog) (map[string]any, error) {
	if len(slots) == 0 {
		return document(object(map[string]any{
			"widgets": keyed(nil, anyWidget(catalog)),
		}, "widgets")), nil
	}
	props := make(map[string]any, len(slots))
	ids := make([]string, 0, len(slots))
	for _, s := range slots {
		params, ok := catalog.Schema(s.DeclaredType)
		if !ok {
			return nil, fmt.Errorf("widget %s: unknown type %q", s.ID, s.DeclaredType)
		}
		props[s.ID] = object(map[string]any{
			"type":   map[string]any{"const": s.DeclaredType},
			"params": params,
		}, "type", "params")
		ids = append(ids, s.ID)
	}
	return document(object(map[string]any{
		"widgets": object(props, ids...),
	}, "widgets")), nil
}

// Item returns the schema of an assembled item.
func Item(catalog widgets.Catalog) map[string]any {
	blocksByID := map[string]any{"type": "object", "additionalProperties": content.Ref(content.DefBlocks)}
	return document(object(map[string]any{
		"identifier":           map[string]any{"type": "string", "minLength": 1},
		"title":                map[string]any{"type": "string"},
		"body":                 content.Ref(content.DefBlocks),
		"responseDeclarations": map[string]any{"type": "array", "items": mustReflect(&content.ResponseDeclaration{})},
		"interactions":         keyed(nil, content.Ref(content.DefInteraction)),
		"widgets":              keyed(nil, anyWidget(catalog)),
		"feedbackPlan":         mustReflect(&feedback.Plan{}),
		"feedbackBlocks":       blocksByID,
	}, "identifier", "title", "body", "responseDeclarations", "interactions", "widgets", "feedbackPlan", "feedbackBlocks"))
}

// keyed is an object with exactly ids as properties, each matching value.
// With no ids any property name is accepted.
func keyed(ids []string, value map[string]any) map[string]any {
	if len(ids) == 0 {
		return map[string]any{"type": "object", "additionalProperties": value}
	}
	props := make(map[string]any, len(ids))
	for _, id := range ids {
		props[id] = value
	}
	return object(props, ids...)
}

func anyWidget(catalog widgets.Catalog) map[string]any {
	types := catalog.Types()
	enum := make([]any, 0, len(types))
	for _, t := range types {
		enum = append(enum, t)
	}
	return object(map[string]any{
		"type":   map[string]any{"enum": enum},
		"params": map[string]any{"type": "object"},
	}, "type", "params")
}

// mustReflect reflects a Go type into an inlined schema map. It only sees
// types of this module, so a failure is a programming error.
func mustReflect(v any) map[string]any {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	data, err := json.Marshal(r.Reflect(v))
	if err != nil {
		panic(fmt.Sprintf("reflect %T: %v", v, err))
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("reflect %T: %v", v, err))
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}
