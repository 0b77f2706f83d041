package content

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBody = `[
  {"type": "heading", "level": 2, "content": [{"type": "text", "content": "Fractions"}]},
  {"type": "paragraph", "content": [
    {"type": "text", "content": "Look at "},
    {"type": "inlineWidgetRef", "widgetId": "fig_1", "widgetType": "urlImage"},
    {"type": "text", "content": " and answer: "},
    {"type": "inlineInteractionRef", "interactionId": "entry_1"}
  ]},
  {"type": "blockquote", "content": [
    {"type": "unorderedList", "items": [[{"type": "math", "mathml": "<math/>"}], [{"type": "gap", "gapId": "G1"}]]}
  ]},
  {"type": "tableRich", "header": [[{"type": "text", "content": "x"}]], "rows": [[[{"type": "inlineWidgetRef", "widgetId": "tbl_img", "widgetType": "emojiImage"}]]]},
  {"type": "widgetRef", "widgetId": "chart", "widgetType": "barChart"},
  {"type": "interactionRef", "interactionId": "choice_1"},
  {"type": "codeBlock", "code": "x = 1"}
]`

func TestBlocksUnmarshal(t *testing.T) {
	var body Blocks
	require.NoError(t, json.Unmarshal([]byte(sampleBody), &body))
	require.Len(t, body, 7)

	h, ok := body[0].(*Heading)
	require.True(t, ok, "first block should be a heading, got %T", body[0])
	assert.Equal(t, 2, h.Level)

	p := body[1].(*Paragraph)
	require.Len(t, p.Content, 4)
	assert.Equal(t, TypeInlineWidgetRef, p.Content[1].Kind())

	table := body[3].(*TableRich)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "tbl_img", table.Rows[0][0][0].(*InlineWidgetRef).WidgetID)
}

func TestBlocksMarshalKeepsDiscriminator(t *testing.T) {
	var body Blocks
	require.NoError(t, json.Unmarshal([]byte(sampleBody), &body))

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, sampleBody, string(out))
}

func TestBlocksUnmarshalUnknownType(t *testing.T) {
	var body Blocks
	err := json.Unmarshal([]byte(`[{"type": "marquee"}]`), &body)
	require.Error(t, err)

	var unknown *UnknownNodeTypeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "block", unknown.Position)
	assert.Equal(t, "marquee", unknown.Type)
}

func TestInlinesUnmarshalUnknownType(t *testing.T) {
	var run Inlines
	err := json.Unmarshal([]byte(`[{"type": "text", "content": "a"}, {"type": "blink"}]`), &run)

	var unknown *UnknownNodeTypeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "inline", unknown.Position)
}

func TestWalkVisitsReferencesInDocumentOrder(t *testing.T) {
	var body Blocks
	require.NoError(t, json.Unmarshal([]byte(sampleBody), &body))

	var seen []string
	err := Walk(body, Handlers{
		WidgetRef:      func(id, typ string) error { seen = append(seen, "w:"+id+":"+typ); return nil },
		InteractionRef: func(id string) error { seen = append(seen, "i:"+id); return nil },
		Gap:            func(id string) error { seen = append(seen, "g:"+id); return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"w:fig_1:urlImage",
		"i:entry_1",
		"g:G1",
		"w:tbl_img:emojiImage",
		"w:chart:barChart",
		"i:choice_1",
	}, seen)
}

func TestWalkStopsOnHandlerError(t *testing.T) {
	body := Blocks{
		&WidgetRef{WidgetID: "a", WidgetType: "urlImage"},
		&WidgetRef{WidgetID: "b", WidgetType: "urlImage"},
	}
	stop := errors.New("stop")
	calls := 0
	err := Walk(body, Handlers{WidgetRef: func(string, string) error {
		calls++
		return stop
	}})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestWalkInteraction(t *testing.T) {
	it := Interaction{
		Type:               ChoiceInteraction,
		ResponseIdentifier: "RESPONSE",
		Prompt:             Inlines{&InlineWidgetRef{WidgetID: "prompt_img", WidgetType: "urlImage"}},
		Choices: []Choice{
			{Identifier: "A", Content: Inlines{&Text{Content: "one"}}},
			{
				Identifier: "B",
				Content:    Inlines{&InlineWidgetRef{WidgetID: "choice_img", WidgetType: "emojiImage"}},
				Feedback:   Inlines{&InlineWidgetRef{WidgetID: "fb_img", WidgetType: "urlImage"}},
			},
		},
		Content: Blocks{&Paragraph{Content: Inlines{&Gap{GapID: "G1"}}}},
	}

	var widgets, gaps []string
	err := WalkInteraction(it, Handlers{
		WidgetRef: func(id, _ string) error { widgets = append(widgets, id); return nil },
		Gap:       func(id string) error { gaps = append(gaps, id); return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"prompt_img", "choice_img", "fb_img"}, widgets)
	assert.Equal(t, []string{"G1"}, gaps)
}

func TestInteractionValidate(t *testing.T) {
	tests := []struct {
		name    string
		it      Interaction
		wantErr bool
	}{
		{"choice ok", Interaction{Type: ChoiceInteraction, ResponseIdentifier: "R", Choices: []Choice{{Identifier: "A"}}}, false},
		{"choice without choices", Interaction{Type: ChoiceInteraction, ResponseIdentifier: "R"}, true},
		{"duplicate choice ids", Interaction{Type: OrderInteraction, ResponseIdentifier: "R", Choices: []Choice{{Identifier: "A"}, {Identifier: "A"}}}, true},
		{"text entry ok", Interaction{Type: TextEntryInteraction, ResponseIdentifier: "R"}, false},
		{"gap match without gap texts", Interaction{Type: GapMatchInteraction, ResponseIdentifier: "R"}, true},
		{"gap match ok", Interaction{Type: GapMatchInteraction, ResponseIdentifier: "R", GapTexts: []Choice{{Identifier: "T1"}},
			Content: Blocks{&Paragraph{Content: Inlines{&Gap{GapID: "G1"}, &Gap{GapID: "G2"}}}}}, false},
		{"gap match without gaps", Interaction{Type: GapMatchInteraction, ResponseIdentifier: "R", GapTexts: []Choice{{Identifier: "T1"}}}, true},
		{"duplicate gap ids", Interaction{Type: GapMatchInteraction, ResponseIdentifier: "R", GapTexts: []Choice{{Identifier: "T1"}},
			Content: Blocks{&Paragraph{Content: Inlines{&Gap{GapID: "G1"}, &Gap{GapID: "G1"}}}}}, true},
		{"missing response identifier", Interaction{Type: TextEntryInteraction}, true},
		{"unknown type", Interaction{Type: "sliderInteraction", ResponseIdentifier: "R"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.it.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsFixedChoice(t *testing.T) {
	assert.True(t, Interaction{Type: ChoiceInteraction}.IsFixedChoice())
	assert.True(t, Interaction{Type: InlineChoiceInteraction}.IsFixedChoice())
	assert.False(t, Interaction{Type: OrderInteraction}.IsFixedChoice())
	assert.False(t, Interaction{Type: TextEntryInteraction}.IsFixedChoice())
}

func TestDefinitionsCoverEveryKind(t *testing.T) {
	defs := Definitions()
	blockKinds := defs[DefBlock].(map[string]any)["oneOf"].([]any)
	inlineKinds := defs[DefInline].(map[string]any)["oneOf"].([]any)
	assert.Len(t, blockKinds, len(BlockTypes()))
	assert.Len(t, inlineKinds, len(InlineTypes()))
	assert.Len(t, blockDecoders, len(BlockTypes()))
	assert.Len(t, inlineDecoders, len(InlineTypes()))
}
