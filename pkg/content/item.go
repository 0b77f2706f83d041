package content

import (
	"encoding/json"
	"fmt"
)

// Interaction type tags.
const (
	ChoiceInteraction       = "choiceInteraction"
	InlineChoiceInteraction = "inlineChoiceInteraction"
	OrderInteraction        = "orderInteraction"
	TextEntryInteraction    = "textEntryInteraction"
	ExtendedTextInteraction = "extendedTextInteraction"
	GapMatchInteraction     = "gapMatchInteraction"
)

// InteractionTypes lists the supported interaction types.
func InteractionTypes() []string {
	return []string{
		ChoiceInteraction, InlineChoiceInteraction, OrderInteraction,
		TextEntryInteraction, ExtendedTextInteraction, GapMatchInteraction,
	}
}

// ResponseDeclaration declares one response variable of an item.
type ResponseDeclaration struct {
	Identifier      string   `json:"identifier"               jsonschema:"required,minLength=1"`
	Cardinality     string   `json:"cardinality"              jsonschema:"required,enum=single,enum=multiple,enum=ordered"`
	BaseType        string   `json:"baseType"                 jsonschema:"required,enum=identifier,enum=string,enum=integer,enum=float,enum=directedPair"`
	CorrectResponse []string `json:"correctResponse,omitempty"`
}

// Shell is the output of the first generation stage: the item skeleton with
// slot references but no interaction, widget, or feedback content.
type Shell struct {
	Identifier           string                `json:"identifier"`
	Title                string                `json:"title"`
	ResponseDeclarations []ResponseDeclaration `json:"responseDeclarations"`
	Body                 Blocks                `json:"body"`
}

// Choice is a selectable option, or a draggable gap text.
type Choice struct {
	Identifier string  `json:"identifier"`
	Content    Inlines `json:"content"`
	Feedback   Inlines `json:"feedback,omitempty"`
}

// Interaction is the generated content of one interaction slot. Fields that
// do not apply to Type are left empty.
type Interaction struct {
	Type               string   `json:"type"`
	ResponseIdentifier string   `json:"responseIdentifier"`
	Prompt             Inlines  `json:"prompt,omitempty"`
	Choices            []Choice `json:"choices,omitempty"`
	GapTexts           []Choice `json:"gapTexts,omitempty"`
	Content            Blocks   `json:"content,omitempty"`
	Shuffle            bool     `json:"shuffle,omitempty"`
	MinChoices         int      `json:"minChoices,omitempty"`
	MaxChoices         int      `json:"maxChoices,omitempty"`
	ExpectedLength     int      `json:"expectedLength,omitempty"`
}

// IsFixedChoice reports whether the interaction's outcomes are its declared
// choices rather than a correct/incorrect judgement.
func (it Interaction) IsFixedChoice() bool {
	return it.Type == ChoiceInteraction || it.Type == InlineChoiceInteraction
}

// ChoiceIdentifiers returns the choice identifiers in declared order.
func (it Interaction) ChoiceIdentifiers() []string {
	ids := make([]string, 0, len(it.Choices))
	for _, c := range it.Choices {
		ids = append(ids, c.Identifier)
	}
	return ids
}

// Validate checks the per-type shape rules a JSON Schema cannot express
// concisely.
func (it Interaction) Validate() error {
	if it.ResponseIdentifier == "" {
		return fmt.Errorf("%s: responseIdentifier is required", it.Type)
	}
	switch it.Type {
	case ChoiceInteraction, InlineChoiceInteraction, OrderInteraction:
		if len(it.Choices) == 0 {
			return fmt.Errorf("%s: at least one choice is required", it.Type)
		}
		if err := uniqueIdentifiers(it.Choices); err != nil {
			return fmt.Errorf("%s: choices: %w", it.Type, err)
		}
	case GapMatchInteraction:
		if len(it.GapTexts) == 0 {
			return fmt.Errorf("%s: at least one gap text is required", it.Type)
		}
		if err := uniqueIdentifiers(it.GapTexts); err != nil {
			return fmt.Errorf("%s: gapTexts: %w", it.Type, err)
		}
		if err := checkGaps(it.Content); err != nil {
			return fmt.Errorf("%s: %w", it.Type, err)
		}
	case TextEntryInteraction, ExtendedTextInteraction:
	default:
		return fmt.Errorf("unknown interaction type %q", it.Type)
	}
	return nil
}

// checkGaps requires at least one gap in content and no repeated gap id.
func checkGaps(content Blocks) error {
	seen := make(map[string]bool)
	err := Walk(content, Handlers{Gap: func(id string) error {
		if id == "" {
			return fmt.Errorf("gap with empty id")
		}
		if seen[id] {
			return fmt.Errorf("duplicate gap %q", id)
		}
		seen[id] = true
		return nil
	}})
	if err != nil {
		return err
	}
	if len(seen) == 0 {
		return fmt.Errorf("content has no gaps")
	}
	return nil
}

func uniqueIdentifiers(choices []Choice) error {
	seen := make(map[string]bool, len(choices))
	for _, c := range choices {
		if c.Identifier == "" {
			return fmt.Errorf("empty identifier")
		}
		if seen[c.Identifier] {
			return fmt.Errorf("duplicate identifier %q", c.Identifier)
		}
		seen[c.Identifier] = true
	}
	return nil
}

// Widget is the generated content of one widget slot. Params is opaque here;
// its shape is owned by the widget type.
type Widget struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}
