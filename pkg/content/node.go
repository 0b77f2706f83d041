// Package content defines the assessment-item content tree: a closed set of
// block and inline node kinds, their JSON codec, and an exhaustive walker.
package content

import (
	"encoding/json"
	"fmt"
)

// Block node type tags.
const (
	TypeParagraph      = "paragraph"
	TypeHeading        = "heading"
	TypeBlockquote     = "blockquote"
	TypeUnorderedList  = "unorderedList"
	TypeOrderedList    = "orderedList"
	TypeTableRich      = "tableRich"
	TypeCodeBlock      = "codeBlock"
	TypeMathBlock      = "mathBlock"
	TypeWidgetRef      = "widgetRef"
	TypeInteractionRef = "interactionRef"
)

// Inline node type tags.
const (
	TypeText                 = "text"
	TypeMath                 = "math"
	TypeInlineWidgetRef      = "inlineWidgetRef"
	TypeInlineInteractionRef = "inlineInteractionRef"
	TypeGap                  = "gap"
)

// Block is a block-level node. The set of implementations is closed: only
// types in this package satisfy it.
type Block interface {
	Kind() string
	Accept(v BlockVisitor) error
	isBlock()
}

// Inline is an inline node. Like Block, the set is closed.
type Inline interface {
	Kind() string
	Accept(v InlineVisitor) error
	isInline()
}

// Blocks is an ordered sequence of block nodes.
type Blocks []Block

// Inlines is an ordered sequence of inline nodes.
type Inlines []Inline

// --- block kinds ---

// Paragraph is a run of inline content.
type Paragraph struct {
	Content Inlines `json:"content"`
}

// Heading is a section heading (level 1-6).
type Heading struct {
	Level   int     `json:"level"`
	Content Inlines `json:"content"`
}

// Blockquote nests block content.
type Blockquote struct {
	Content Blocks `json:"content"`
}

// UnorderedList holds one inline run per item.
type UnorderedList struct {
	Items []Inlines `json:"items"`
}

// OrderedList holds one inline run per item.
type OrderedList struct {
	Items []Inlines `json:"items"`
}

// TableRich is a table whose cells carry inline content.
type TableRich struct {
	Header []Inlines   `json:"header,omitempty"`
	Rows   [][]Inlines `json:"rows"`
}

// CodeBlock is preformatted source text.
type CodeBlock struct {
	Language string `json:"language,omitempty"`
	Code     string `json:"code"`
}

// MathBlock is display math as MathML.
type MathBlock struct {
	MathML string `json:"mathml"`
}

// WidgetRef places a widget slot. The widget content is generated separately
// and must match WidgetType.
type WidgetRef struct {
	WidgetID   string `json:"widgetId"`
	WidgetType string `json:"widgetType"`
}

// InteractionRef places an interaction slot.
type InteractionRef struct {
	InteractionID string `json:"interactionId"`
}

// --- inline kinds ---

// Text is plain text.
type Text struct {
	Content string `json:"content"`
}

// Math is inline MathML.
type Math struct {
	MathML string `json:"mathml"`
}

// InlineWidgetRef places a widget slot inside running text.
type InlineWidgetRef struct {
	WidgetID   string `json:"widgetId"`
	WidgetType string `json:"widgetType"`
}

// InlineInteractionRef places an interaction slot inside running text, e.g. a
// text entry or inline choice.
type InlineInteractionRef struct {
	InteractionID string `json:"interactionId"`
}

// Gap is a drop target of a gap-match interaction.
type Gap struct {
	GapID string `json:"gapId"`
}

func (*Paragraph) isBlock()      {}
func (*Heading) isBlock()        {}
func (*Blockquote) isBlock()     {}
func (*UnorderedList) isBlock()  {}
func (*OrderedList) isBlock()    {}
func (*TableRich) isBlock()      {}
func (*CodeBlock) isBlock()      {}
func (*MathBlock) isBlock()      {}
func (*WidgetRef) isBlock()      {}
func (*InteractionRef) isBlock() {}

func (*Text) isInline()                 {}
func (*Math) isInline()                 {}
func (*InlineWidgetRef) isInline()      {}
func (*InlineInteractionRef) isInline() {}
func (*Gap) isInline()                  {}

func (*Paragraph) Kind() string      { return TypeParagraph }
func (*Heading) Kind() string        { return TypeHeading }
func (*Blockquote) Kind() string     { return TypeBlockquote }
func (*UnorderedList) Kind() string  { return TypeUnorderedList }
func (*OrderedList) Kind() string    { return TypeOrderedList }
func (*TableRich) Kind() string      { return TypeTableRich }
func (*CodeBlock) Kind() string      { return TypeCodeBlock }
func (*MathBlock) Kind() string      { return TypeMathBlock }
func (*WidgetRef) Kind() string      { return TypeWidgetRef }
func (*InteractionRef) Kind() string { return TypeInteractionRef }

func (*Text) Kind() string                 { return TypeText }
func (*Math) Kind() string                 { return TypeMath }
func (*InlineWidgetRef) Kind() string      { return TypeInlineWidgetRef }
func (*InlineInteractionRef) Kind() string { return TypeInlineInteractionRef }
func (*Gap) Kind() string                  { return TypeGap }

// --- JSON encoding ---

// Each node marshals with its "type" discriminator first. The local alias
// strips MarshalJSON so the embedded struct encodes field by field.

func (n *Paragraph) MarshalJSON() ([]byte, error) {
	type alias Paragraph
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeParagraph, (*alias)(n)})
}

func (n *Heading) MarshalJSON() ([]byte, error) {
	type alias Heading
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeHeading, (*alias)(n)})
}

func (n *Blockquote) MarshalJSON() ([]byte, error) {
	type alias Blockquote
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeBlockquote, (*alias)(n)})
}

func (n *UnorderedList) MarshalJSON() ([]byte, error) {
	type alias UnorderedList
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeUnorderedList, (*alias)(n)})
}

func (n *OrderedList) MarshalJSON() ([]byte, error) {
	type alias OrderedList
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeOrderedList, (*alias)(n)})
}

func (n *TableRich) MarshalJSON() ([]byte, error) {
	type alias TableRich
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeTableRich, (*alias)(n)})
}

func (n *CodeBlock) MarshalJSON() ([]byte, error) {
	type alias CodeBlock
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeCodeBlock, (*alias)(n)})
}

func (n *MathBlock) MarshalJSON() ([]byte, error) {
	type alias MathBlock
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeMathBlock, (*alias)(n)})
}

func (n *WidgetRef) MarshalJSON() ([]byte, error) {
	type alias WidgetRef
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeWidgetRef, (*alias)(n)})
}

func (n *InteractionRef) MarshalJSON() ([]byte, error) {
	type alias InteractionRef
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeInteractionRef, (*alias)(n)})
}

func (n *Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeText, (*alias)(n)})
}

func (n *Math) MarshalJSON() ([]byte, error) {
	type alias Math
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeMath, (*alias)(n)})
}

func (n *InlineWidgetRef) MarshalJSON() ([]byte, error) {
	type alias InlineWidgetRef
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeInlineWidgetRef, (*alias)(n)})
}

func (n *InlineInteractionRef) MarshalJSON() ([]byte, error) {
	type alias InlineInteractionRef
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeInlineInteractionRef, (*alias)(n)})
}

func (n *Gap) MarshalJSON() ([]byte, error) {
	type alias Gap
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{TypeGap, (*alias)(n)})
}

// UnknownNodeTypeError is returned when a node's "type" tag is not one of
// the known kinds for its position (block or inline).
type UnknownNodeTypeError struct {
	Position string // "block" or "inline"
	Type     string
}

func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("unknown %s node type %q", e.Position, e.Type)
}

var blockDecoders = map[string]func() Block{
	TypeParagraph:      func() Block { return &Paragraph{} },
	TypeHeading:        func() Block { return &Heading{} },
	TypeBlockquote:     func() Block { return &Blockquote{} },
	TypeUnorderedList:  func() Block { return &UnorderedList{} },
	TypeOrderedList:    func() Block { return &OrderedList{} },
	TypeTableRich:      func() Block { return &TableRich{} },
	TypeCodeBlock:      func() Block { return &CodeBlock{} },
	TypeMathBlock:      func() Block { return &MathBlock{} },
	TypeWidgetRef:      func() Block { return &WidgetRef{} },
	TypeInteractionRef: func() Block { return &InteractionRef{} },
}

var inlineDecoders = map[string]func() Inline{
	TypeText:                 func() Inline { return &Text{} },
	TypeMath:                 func() Inline { return &Math{} },
	TypeInlineWidgetRef:      func() Inline { return &InlineWidgetRef{} },
	TypeInlineInteractionRef: func() Inline { return &InlineInteractionRef{} },
	TypeGap:                  func() Inline { return &Gap{} },
}

// BlockTypes returns the block type tags in declaration order.
func BlockTypes() []string {
	return []string{
		TypeParagraph, TypeHeading, TypeBlockquote, TypeUnorderedList, TypeOrderedList,
		TypeTableRich, TypeCodeBlock, TypeMathBlock, TypeWidgetRef, TypeInteractionRef,
	}
}

// InlineTypes returns the inline type tags in declaration order.
func InlineTypes() []string {
	return []string{TypeText, TypeMath, TypeInlineWidgetRef, TypeInlineInteractionRef, TypeGap}
}

func peekType(raw json.RawMessage) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", err
	}
	return head.Type, nil
}

// UnmarshalJSON decodes a JSON array of tagged block nodes.
func (bs *Blocks) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	if raws == nil {
		*bs = nil
		return nil
	}
	out := make(Blocks, 0, len(raws))
	for i, raw := range raws {
		typ, err := peekType(raw)
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		newBlock, ok := blockDecoders[typ]
		if !ok {
			return fmt.Errorf("block %d: %w", i, &UnknownNodeTypeError{Position: "block", Type: typ})
		}
		b := newBlock()
		if err := json.Unmarshal(raw, b); err != nil {
			return fmt.Errorf("block %d (%s): %w", i, typ, err)
		}
		out = append(out, b)
	}
	*bs = out
	return nil
}

// UnmarshalJSON decodes a JSON array of tagged inline nodes.
func (is *Inlines) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	if raws == nil {
		*is = nil
		return nil
	}
	out := make(Inlines, 0, len(raws))
	for i, raw := range raws {
		typ, err := peekType(raw)
		if err != nil {
			return fmt.Errorf("inline %d: %w", i, err)
		}
		newInline, ok := inlineDecoders[typ]
		if !ok {
			return fmt.Errorf("inline %d: %w", i, &UnknownNodeTypeError{Position: "inline", Type: typ})
		}
		n := newInline()
		if err := json.Unmarshal(raw, n); err != nil {
			return fmt.Errorf("inline %d (%s): %w", i, typ, err)
		}
		out = append(out, n)
	}
	*is = out
	return nil
}
