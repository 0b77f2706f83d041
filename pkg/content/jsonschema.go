package content

import (
	"maps"
	"slices"
)

// JSON Schema definitions for the content tree. The tree is a tagged union,
// which struct reflection cannot express, so the definitions are built by
// hand and merged into stage schemas under "$defs".

// Definition names used in "$defs".
const (
	DefBlock       = "contentBlock"
	DefBlocks      = "contentBlocks"
	DefInline      = "contentInline"
	DefInlines     = "contentInlines"
	DefChoice      = "contentChoice"
	DefInteraction = "contentInteraction"
)

// Ref returns a "$ref" schema pointing at a local definition.
func Ref(def string) map[string]any {
	return map[string]any{"$ref": "#/$defs/" + def}
}

// Definitions returns the "$defs" entries for blocks, inlines, choices and
// interactions.
func Definitions() map[string]any {
	inlines := Ref(DefInlines)
	runs := map[string]any{"type": "array", "items": inlines}
	str := map[string]any{"type": "string"}
	id := map[string]any{"type": "string", "minLength": 1}

	blocks := []any{
		node(TypeParagraph, map[string]any{"content": inlines}),
		node(TypeHeading, map[string]any{
			"level":   map[string]any{"type": "integer", "minimum": 1, "maximum": 6},
			"content": inlines,
		}),
		node(TypeBlockquote, map[string]any{"content": Ref(DefBlocks)}),
		node(TypeUnorderedList, map[string]any{"items": runs}),
		node(TypeOrderedList, map[string]any{"items": runs}),
		node(TypeTableRich, map[string]any{
			"header": runs,
			"rows":   map[string]any{"type": "array", "items": runs},
		}, "header"),
		node(TypeCodeBlock, map[string]any{"language": str, "code": str}, "language"),
		node(TypeMathBlock, map[string]any{"mathml": str}),
		node(TypeWidgetRef, map[string]any{"widgetId": id, "widgetType": id}),
		node(TypeInteractionRef, map[string]any{"interactionId": id}),
	}

	inlineKinds := []any{
		node(TypeText, map[string]any{"content": str}),
		node(TypeMath, map[string]any{"mathml": str}),
		node(TypeInlineWidgetRef, map[string]any{"widgetId": id, "widgetType": id}),
		node(TypeInlineInteractionRef, map[string]any{"interactionId": id}),
		node(TypeGap, map[string]any{"gapId": id}),
	}

	choice := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"identifier": id,
			"content":    inlines,
			"feedback":   inlines,
		},
		"required":             []any{"identifier", "content"},
		"additionalProperties": false,
	}

	types := make([]any, 0, len(InteractionTypes()))
	for _, t := range InteractionTypes() {
		types = append(types, t)
	}
	count := map[string]any{"type": "integer", "minimum": 0}
	interaction := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type":               map[string]any{"enum": types},
			"responseIdentifier": id,
			"prompt":             inlines,
			"choices":            map[string]any{"type": "array", "items": Ref(DefChoice)},
			"gapTexts":           map[string]any{"type": "array", "items": Ref(DefChoice)},
			"content":            Ref(DefBlocks),
			"shuffle":            map[string]any{"type": "boolean"},
			"minChoices":         count,
			"maxChoices":         count,
			"expectedLength":     count,
		},
		"required":             []any{"type", "responseIdentifier"},
		"additionalProperties": false,
	}

	return map[string]any{
		DefBlock:       map[string]any{"oneOf": blocks},
		DefBlocks:      map[string]any{"type": "array", "items": Ref(DefBlock)},
		DefInline:      map[string]any{"oneOf": inlineKinds},
		DefInlines:     map[string]any{"type": "array", "items": Ref(DefInline)},
		DefChoice:      choice,
		DefInteraction: interaction,
	}
}

// node builds the schema of one tagged node. Every property is required
// except the ones listed in optional.
func node(typ string, props map[string]any, optional ...string) map[string]any {
	skip := make(map[string]bool, len(optional))
	for _, o := range optional {
		skip[o] = true
	}
	properties := map[string]any{"type": map[string]any{"const": typ}}
	required := []any{"type"}
	for _, name := range sortedKeys(props) {
		properties[name] = props[name]
		if !skip[name] {
			required = append(required, name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
