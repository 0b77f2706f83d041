package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/ormasoftchile/itemforge/pkg/content"
	"github.com/ormasoftchile/itemforge/pkg/feedback"
	"github.com/ormasoftchile/itemforge/pkg/refs"
)

// Item is an assembled assessment item. Every widget slot referenced from
// its body, feedback, or interactions has an entry in Widgets.
type Item struct {
	Identifier           string                         `json:"identifier"`
	Title                string                         `json:"title"`
	Body                 content.Blocks                 `json:"body"`
	ResponseDeclarations []content.ResponseDeclaration  `json:"responseDeclarations"`
	Interactions         map[string]content.Interaction `json:"interactions"`
	Widgets              map[string]content.Widget      `json:"widgets"`
	FeedbackPlan         feedback.Plan                  `json:"feedbackPlan"`
	FeedbackBlocks       map[string]content.Blocks      `json:"feedbackBlocks"`
}

// References collects every slot referenced from the item.
func (it *Item) References() (refs.Map, error) {
	return refs.Collect(it.Body, it.FeedbackBlocks, it.Interactions)
}

// MissingWidgets returns the referenced widget ids with no generated entry,
// in ascending order.
func (it *Item) MissingWidgets() ([]string, error) {
	m, err := it.References()
	if err != nil {
		return nil, err
	}
	return missing(m.WidgetIDs(), it.Widgets), nil
}

func missing[V any](ids []string, have map[string]V) []string {
	var out []string
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Renderer turns validated widget parameters into markup. Implementations
// live downstream of the pipeline.
type Renderer interface {
	Render(ctx context.Context, widgetType string, params json.RawMessage) (string, error)
}

// Compiler turns an assembled item into its final document form.
type Compiler interface {
	Compile(ctx context.Context, item *Item) ([]byte, error)
}

// RenderWidgets renders every widget of item, keyed by widget id. Widgets
// are rendered in ascending id order and the first failure aborts.
func RenderWidgets(ctx context.Context, r Renderer, item *Item) (map[string]string, error) {
	out := make(map[string]string, len(item.Widgets))
	for _, id := range slices.Sorted(maps.Keys(item.Widgets)) {
		w := item.Widgets[id]
		markup, err := r.Render(ctx, w.Type, w.Params)
		if err != nil {
			return nil, fmt.Errorf("render widget %s (%s): %w", id, w.Type, err)
		}
		out[id] = markup
	}
	return out, nil
}
