package diagram

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/itemforge/pkg/feedback"
)

func twoDimPlan() feedback.Plan {
	return feedback.FromDimensions([]feedback.Dimension{
		{ResponseIdentifier: "RESPONSE", Kind: feedback.DimensionEnumerated, Keys: []string{"A", "B"}},
		{ResponseIdentifier: "GAP", Kind: feedback.DimensionBinary, Keys: []string{feedback.Correct, feedback.Incorrect}},
	})
}

func TestGenerateMermaid_Nested(t *testing.T) {
	out, err := Generate(twoDimPlan(), FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "flowchart TD\n") {
		t.Error("missing flowchart header")
	}
	if !strings.Contains(out, `PLAN -->|"RESPONSE"| n_RESPONSE_A`) {
		t.Errorf("missing first-level edge, got:\n%s", out)
	}
	if !strings.Contains(out, `n_RESPONSE_A -->|"GAP"| n_RESPONSE_A__GAP_CORRECT`) {
		t.Errorf("missing second-level edge, got:\n%s", out)
	}
	if !strings.Contains(out, "RESPONSE_B__GAP_INCORRECT") {
		t.Error("missing leaf combination id")
	}
	if !strings.Contains(out, "class n_RESPONSE_A__GAP_CORRECT,n_RESPONSE_A__GAP_INCORRECT,n_RESPONSE_B__GAP_CORRECT,n_RESPONSE_B__GAP_INCORRECT leaf") {
		t.Errorf("leaves not styled in plan order, got:\n%s", out)
	}
}

func TestGenerateMermaid_Fallback(t *testing.T) {
	out, err := Generate(feedback.FromDimensions(nil), FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "PLAN --> n_CORRECT") || !strings.Contains(out, "PLAN --> n_INCORRECT") {
		t.Errorf("fallback leaves missing, got:\n%s", out)
	}
	if !strings.Contains(out, "fallback, 2 combination(s)") {
		t.Error("missing plan title")
	}
}

func TestGenerateASCII_Nested(t *testing.T) {
	out, err := Generate(twoDimPlan(), FormatASCII)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"1. RESPONSE (enumerated): A, B",
		"2. GAP (binary): CORRECT, INCORRECT",
		"├── A",
		"└── B",
		"│   ├── CORRECT",
		"    └── INCORRECT",
		"→ RESPONSE_B__GAP_INCORRECT",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	// Leaf ids share one column.
	col := -1
	for _, l := range strings.Split(out, "\n") {
		idx := strings.Index(l, "→")
		if idx < 0 {
			continue
		}
		i := runewidth.StringWidth(l[:idx])
		if col == -1 {
			col = i
		} else if i != col {
			t.Errorf("leaf id column %d, want %d in line %q", i, col, l)
		}
	}
	if col == -1 {
		t.Error("no leaf ids rendered")
	}
}

func TestGenerateASCII_FallbackHasNoArrows(t *testing.T) {
	out, err := Generate(feedback.FromDimensions(nil), FormatASCII)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "→") {
		t.Errorf("fallback leaves are their own ids, got:\n%s", out)
	}
	if !strings.Contains(out, "├── CORRECT") || !strings.Contains(out, "└── INCORRECT") {
		t.Errorf("missing fallback leaves:\n%s", out)
	}
	if !strings.HasPrefix(out, "╔") {
		t.Error("missing header box")
	}
}

func TestGenerate_Errors(t *testing.T) {
	if _, err := Generate(twoDimPlan(), Format("svg")); err == nil {
		t.Error("expected error for unsupported format")
	}

	bad := twoDimPlan()
	bad.Combinations = bad.Combinations[:1]
	if _, err := Generate(bad, FormatASCII); err == nil {
		t.Error("expected error for inconsistent plan")
	}
}

func TestSafeID(t *testing.T) {
	if got := safeID("a-b.c d"); got != "a_b_c_d" {
		t.Errorf("safeID = %q", got)
	}
}
