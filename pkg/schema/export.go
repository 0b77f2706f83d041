package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ormasoftchile/itemforge/pkg/feedback"
	"github.com/ormasoftchile/itemforge/pkg/widgets"
)

// Exported schema kinds. Run-dependent schemas are exported in their
// open form: interactions and widgets accept any id, feedback is the
// fallback plan's payload.
const (
	KindShell        = "shell"
	KindInteractions = "interactions"
	KindFeedback     = "feedback"
	KindFeedbackLeaf = "feedback_leaf"
	KindWidgets      = "widgets"
	KindItem         = "item"
)

// Kinds lists the exportable schema kinds in pipeline order.
var Kinds = []string{KindShell, KindInteractions, KindFeedback, KindFeedbackLeaf, KindWidgets, KindItem}

// Export returns the indented JSON Schema of kind.
func Export(kind string, catalog widgets.Catalog) ([]byte, error) {
	var s map[string]any
	switch kind {
	case KindShell:
		s = Shell()
	case KindInteractions:
		s = Interactions(nil)
	case KindFeedback:
		s = Feedback(feedback.FromDimensions(nil))
	case KindFeedbackLeaf:
		s = FeedbackLeaf()
	case KindWidgets:
		var err error
		if s, err = Widgets(nil, catalog); err != nil {
			return nil, err
		}
	case KindItem:
		s = Item(catalog)
	default:
		return nil, fmt.Errorf("unknown schema kind %q: use one of %s", kind, strings.Join(Kinds, ", "))
	}
	return json.MarshalIndent(s, "", "  ")
}
