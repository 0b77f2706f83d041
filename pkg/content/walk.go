package content

// BlockVisitor has one method per block kind. Adding a block kind adds a
// method here, so every visitor stops compiling until it handles the kind.
type BlockVisitor interface {
	VisitParagraph(*Paragraph) error
	VisitHeading(*Heading) error
	VisitBlockquote(*Blockquote) error
	VisitUnorderedList(*UnorderedList) error
	VisitOrderedList(*OrderedList) error
	VisitTableRich(*TableRich) error
	VisitCodeBlock(*CodeBlock) error
	VisitMathBlock(*MathBlock) error
	VisitWidgetRef(*WidgetRef) error
	VisitInteractionRef(*InteractionRef) error
}

// InlineVisitor has one method per inline kind.
type InlineVisitor interface {
	VisitText(*Text) error
	VisitMath(*Math) error
	VisitInlineWidgetRef(*InlineWidgetRef) error
	VisitInlineInteractionRef(*InlineInteractionRef) error
	VisitGap(*Gap) error
}

func (n *Paragraph) Accept(v BlockVisitor) error      { return v.VisitParagraph(n) }
func (n *Heading) Accept(v BlockVisitor) error        { return v.VisitHeading(n) }
func (n *Blockquote) Accept(v BlockVisitor) error     { return v.VisitBlockquote(n) }
func (n *UnorderedList) Accept(v BlockVisitor) error  { return v.VisitUnorderedList(n) }
func (n *OrderedList) Accept(v BlockVisitor) error    { return v.VisitOrderedList(n) }
func (n *TableRich) Accept(v BlockVisitor) error      { return v.VisitTableRich(n) }
func (n *CodeBlock) Accept(v BlockVisitor) error      { return v.VisitCodeBlock(n) }
func (n *MathBlock) Accept(v BlockVisitor) error      { return v.VisitMathBlock(n) }
func (n *WidgetRef) Accept(v BlockVisitor) error      { return v.VisitWidgetRef(n) }
func (n *InteractionRef) Accept(v BlockVisitor) error { return v.VisitInteractionRef(n) }

func (n *Text) Accept(v InlineVisitor) error                 { return v.VisitText(n) }
func (n *Math) Accept(v InlineVisitor) error                 { return v.VisitMath(n) }
func (n *InlineWidgetRef) Accept(v InlineVisitor) error      { return v.VisitInlineWidgetRef(n) }
func (n *InlineInteractionRef) Accept(v InlineVisitor) error { return v.VisitInlineInteractionRef(n) }
func (n *Gap) Accept(v InlineVisitor) error                  { return v.VisitGap(n) }

// Handlers is the handler table for Walk. Nil entries are skipped. Block
// and inline references of the same kind go to the same handler.
type Handlers struct {
	WidgetRef      func(id, widgetType string) error
	InteractionRef func(id string) error
	Gap            func(id string) error
}

// Walk visits blocks depth-first in document order and calls the matching
// handler for every reference node. The first handler error stops the walk.
func Walk(blocks Blocks, h Handlers) error {
	return (&walker{h: h}).blocks(blocks)
}

// WalkInteraction walks every content-bearing part of an interaction: the
// prompt, each choice's content and feedback, gap texts and gap content.
func WalkInteraction(it Interaction, h Handlers) error {
	w := &walker{h: h}
	if err := w.inlines(it.Prompt); err != nil {
		return err
	}
	for _, c := range it.Choices {
		if err := w.inlines(c.Content); err != nil {
			return err
		}
		if err := w.inlines(c.Feedback); err != nil {
			return err
		}
	}
	for _, g := range it.GapTexts {
		if err := w.inlines(g.Content); err != nil {
			return err
		}
	}
	return w.blocks(it.Content)
}

type walker struct {
	h Handlers
}

var (
	_ BlockVisitor  = (*walker)(nil)
	_ InlineVisitor = (*walker)(nil)
)

func (w *walker) blocks(bs Blocks) error {
	for _, b := range bs {
		if b == nil {
			continue
		}
		if err := b.Accept(w); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) inlines(is Inlines) error {
	for _, n := range is {
		if n == nil {
			continue
		}
		if err := n.Accept(w); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) runs(runs []Inlines) error {
	for _, r := range runs {
		if err := w.inlines(r); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) VisitParagraph(n *Paragraph) error   { return w.inlines(n.Content) }
func (w *walker) VisitHeading(n *Heading) error       { return w.inlines(n.Content) }
func (w *walker) VisitBlockquote(n *Blockquote) error { return w.blocks(n.Content) }
func (w *walker) VisitUnorderedList(n *UnorderedList) error {
	return w.runs(n.Items)
}
func (w *walker) VisitOrderedList(n *OrderedList) error { return w.runs(n.Items) }

func (w *walker) VisitTableRich(n *TableRich) error {
	if err := w.runs(n.Header); err != nil {
		return err
	}
	for _, row := range n.Rows {
		if err := w.runs(row); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) VisitCodeBlock(*CodeBlock) error { return nil }
func (w *walker) VisitMathBlock(*MathBlock) error { return nil }

func (w *walker) VisitWidgetRef(n *WidgetRef) error {
	return w.widget(n.WidgetID, n.WidgetType)
}

func (w *walker) VisitInteractionRef(n *InteractionRef) error {
	return w.interaction(n.InteractionID)
}

func (w *walker) VisitText(*Text) error { return nil }
func (w *walker) VisitMath(*Math) error { return nil }

func (w *walker) VisitInlineWidgetRef(n *InlineWidgetRef) error {
	return w.widget(n.WidgetID, n.WidgetType)
}

func (w *walker) VisitInlineInteractionRef(n *InlineInteractionRef) error {
	return w.interaction(n.InteractionID)
}

func (w *walker) VisitGap(n *Gap) error {
	if w.h.Gap == nil {
		return nil
	}
	return w.h.Gap(n.GapID)
}

func (w *walker) widget(id, typ string) error {
	if w.h.WidgetRef == nil {
		return nil
	}
	return w.h.WidgetRef(id, typ)
}

func (w *walker) interaction(id string) error {
	if w.h.InteractionRef == nil {
		return nil
	}
	return w.h.InteractionRef(id)
}
