// Package feedback builds the feedback plan of an item: the complete set of
// outcome combinations that feedback content must cover.
package feedback

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/itemforge/pkg/content"
)

// Outcome keys of a binary dimension, also the combination ids of a
// fallback plan.
const (
	Correct   = "CORRECT"
	Incorrect = "INCORRECT"
)

// Mode says whether a plan has per-response dimensions.
type Mode string

const (
	ModeFallback Mode = "fallback"
	ModeNested   Mode = "nested"
)

// DimensionKind says where a dimension's keys come from.
type DimensionKind string

const (
	DimensionEnumerated DimensionKind = "enumerated"
	DimensionBinary     DimensionKind = "binary"
)

// Dimension is one response identifier's possible graded outcomes.
type Dimension struct {
	ResponseIdentifier string        `json:"responseIdentifier"`
	Kind               DimensionKind `json:"kind"`
	Keys               []string      `json:"keys"`
}

// PathSegment is one (response, outcome) step of a combination path.
type PathSegment struct {
	ResponseIdentifier string `json:"responseIdentifier"`
	Key                string `json:"key"`
}

// Combination is one point of the outcome space.
type Combination struct {
	ID   string        `json:"id"`
	Path []PathSegment `json:"path,omitempty"`
}

// Plan is the outcome space feedback must cover.
type Plan struct {
	Mode         Mode          `json:"mode"`
	Dimensions   []Dimension   `json:"dimensions"`
	Combinations []Combination `json:"combinations"`
}

// Build derives the plan for the given response declarations and generated
// interactions. Declarations are taken in order; a declaration yields a
// dimension only when some interaction answers it. Fixed-choice
// interactions yield their choice identifiers, everything else yields
// CORRECT/INCORRECT.
func Build(decls []content.ResponseDeclaration, interactions map[string]content.Interaction) Plan {
	var dims []Dimension
	for _, decl := range decls {
		it, ok := interactionFor(decl.Identifier, interactions)
		if !ok {
			continue
		}
		dims = append(dims, dimensionOf(decl.Identifier, it))
	}
	return FromDimensions(dims)
}

// FromDimensions builds the plan for an explicit dimension list.
func FromDimensions(dims []Dimension) Plan {
	if len(dims) == 0 {
		return Plan{
			Mode:       ModeFallback,
			Dimensions: []Dimension{},
			Combinations: []Combination{
				{ID: Correct},
				{ID: Incorrect},
			},
		}
	}
	return Plan{
		Mode:         ModeNested,
		Dimensions:   dims,
		Combinations: product(dims),
	}
}

// interactionFor picks the interaction answering responseID. When several
// do, the one with the smallest slot id wins so the choice is stable.
func interactionFor(responseID string, interactions map[string]content.Interaction) (content.Interaction, bool) {
	var (
		best   content.Interaction
		bestID string
		found  bool
	)
	for id, it := range interactions {
		if it.ResponseIdentifier != responseID {
			continue
		}
		if !found || id < bestID {
			best, bestID, found = it, id, true
		}
	}
	return best, found
}

func dimensionOf(responseID string, it content.Interaction) Dimension {
	if it.IsFixedChoice() && len(it.Choices) > 0 {
		return Dimension{
			ResponseIdentifier: responseID,
			Kind:               DimensionEnumerated,
			Keys:               it.ChoiceIdentifiers(),
		}
	}
	return Dimension{
		ResponseIdentifier: responseID,
		Kind:               DimensionBinary,
		Keys:               []string{Correct, Incorrect},
	}
}

// product enumerates the Cartesian product of the dimensions' keys with the
// first dimension varying slowest.
func product(dims []Dimension) []Combination {
	total := 1
	for _, d := range dims {
		total *= len(d.Keys)
	}
	out := make([]Combination, 0, total)
	path := make([]PathSegment, len(dims))
	var rec func(depth int)
	rec = func(depth int) {
		if depth == len(dims) {
			p := make([]PathSegment, len(path))
			copy(p, path)
			out = append(out, Combination{ID: CombinationID(p), Path: p})
			return
		}
		d := dims[depth]
		for _, k := range d.Keys {
			path[depth] = PathSegment{ResponseIdentifier: d.ResponseIdentifier, Key: k}
			rec(depth + 1)
		}
	}
	rec(0)
	return out
}

// CombinationID renders a path as "<response>_<key>" segments joined by "__".
// Even a single-dimension id carries the response prefix ("RESPONSE_A", not
// "A"); the bare keys stay available in the combination's Path.
func CombinationID(path []PathSegment) string {
	parts := make([]string, len(path))
	for i, seg := range path {
		parts[i] = seg.ResponseIdentifier + "_" + seg.Key
	}
	return strings.Join(parts, "__")
}

// IDs returns the combination ids in plan order.
func (p Plan) IDs() []string {
	ids := make([]string, len(p.Combinations))
	for i, c := range p.Combinations {
		ids[i] = c.ID
	}
	return ids
}

// ExpectedCount is the product of every dimension's key count, or 2 for a
// fallback plan.
func (p Plan) ExpectedCount() int {
	if len(p.Dimensions) == 0 {
		return 2
	}
	n := 1
	for _, d := range p.Dimensions {
		n *= len(d.Keys)
	}
	return n
}

// Validate re-checks the plan invariants. Plans from Build always pass;
// this guards plans decoded from elsewhere.
func (p Plan) Validate() error {
	if (p.Mode == ModeFallback) != (len(p.Dimensions) == 0) {
		return fmt.Errorf("mode %q does not match %d dimension(s)", p.Mode, len(p.Dimensions))
	}
	if len(p.Combinations) != p.ExpectedCount() {
		return fmt.Errorf("plan has %d combination(s), want %d", len(p.Combinations), p.ExpectedCount())
	}
	want := FromDimensions(p.Dimensions)
	for i, c := range want.Combinations {
		if p.Combinations[i].ID != c.ID {
			return fmt.Errorf("combination %d is %q, want %q", i, p.Combinations[i].ID, c.ID)
		}
	}
	return nil
}
