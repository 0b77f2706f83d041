// Package diagram renders feedback plans as Mermaid flowcharts or ASCII
// trees.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/itemforge/pkg/feedback"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram of plan in the given format.
func Generate(plan feedback.Plan, format Format) (string, error) {
	if err := plan.Validate(); err != nil {
		return "", fmt.Errorf("invalid plan: %w", err)
	}
	root := buildTree(plan)
	switch format {
	case FormatMermaid:
		return generateMermaid(plan, root), nil
	case FormatASCII:
		return generateASCII(plan, root), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// node is one outcome key under its parent. Leaves carry the combination
// id they stand for.
type node struct {
	id       string // prefix combination id, unique in the tree
	key      string
	response string
	leaf     string
	children []*node
}

// buildTree expands the plan's dimensions into a tree whose root-to-leaf
// paths are the plan's combinations, in plan order.
func buildTree(plan feedback.Plan) *node {
	root := &node{}
	if plan.Mode == feedback.ModeFallback {
		for _, c := range plan.Combinations {
			root.children = append(root.children, &node{id: c.ID, key: c.ID, leaf: c.ID})
		}
		return root
	}

	var expand func(n *node, prefix []feedback.PathSegment)
	expand = func(n *node, prefix []feedback.PathSegment) {
		depth := len(prefix)
		if depth == len(plan.Dimensions) {
			n.leaf = feedback.CombinationID(prefix)
			return
		}
		d := plan.Dimensions[depth]
		for _, k := range d.Keys {
			path := append(append([]feedback.PathSegment(nil), prefix...), feedback.PathSegment{ResponseIdentifier: d.ResponseIdentifier, Key: k})
			child := &node{id: feedback.CombinationID(path), key: k, response: d.ResponseIdentifier}
			n.children = append(n.children, child)
			expand(child, path)
		}
	}
	expand(root, nil)
	return root
}

func title(plan feedback.Plan) string {
	return fmt.Sprintf("Feedback plan: %s, %d combination(s)", plan.Mode, len(plan.Combinations))
}

// --- Mermaid flowchart ---

func generateMermaid(plan feedback.Plan, root *node) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	b.WriteString(fmt.Sprintf("    PLAN([%q])\n", escMermaid(title(plan))))

	var leaves []string
	var walk func(parent string, n *node)
	walk = func(parent string, n *node) {
		for _, c := range n.children {
			id := "n_" + safeID(c.id)
			if c.leaf != "" {
				leaves = append(leaves, id)
				label := c.key
				if c.leaf != c.key {
					label += "<br/>" + c.leaf
				}
				b.WriteString(fmt.Sprintf("    %s([\"%s\"])\n", id, escMermaid(label)))
			} else {
				b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", id, escMermaid(c.key)))
			}
			if c.response != "" {
				b.WriteString(fmt.Sprintf("    %s -->|%q| %s\n", parent, escMermaid(c.response), id))
			} else {
				b.WriteString(fmt.Sprintf("    %s --> %s\n", parent, id))
			}
			walk(id, c)
		}
	}
	walk("PLAN", root)

	if len(leaves) > 0 {
		b.WriteString("    classDef leaf fill:#1a3a4a,stroke:#0af\n")
		b.WriteString("    class " + strings.Join(leaves, ",") + " leaf\n")
	}
	return b.String()
}

// --- ASCII ---

func generateASCII(plan feedback.Plan, root *node) string {
	var b strings.Builder

	name := title(plan)
	boxWidth := runewidth.StringWidth(name) + 4
	b.WriteString("╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString("║" + centerPad(name, boxWidth) + "║\n")
	b.WriteString("╚" + strings.Repeat("═", boxWidth) + "╝\n")

	for i, d := range plan.Dimensions {
		b.WriteString(fmt.Sprintf("  %d. %s (%s): %s\n", i+1, d.ResponseIdentifier, d.Kind, strings.Join(d.Keys, ", ")))
	}

	// leaf is empty unless the combination id differs from the key.
	type line struct {
		text string
		leaf string
	}
	var lines []line
	var walk func(n *node, indent string)
	walk = func(n *node, indent string) {
		for i, c := range n.children {
			last := i == len(n.children)-1
			branch, next := "├── ", "│   "
			if last {
				branch, next = "└── ", "    "
			}
			l := line{text: indent + branch + c.key}
			if c.leaf != c.key {
				l.leaf = c.leaf
			}
			lines = append(lines, l)
			walk(c, indent+next)
		}
	}
	walk(root, "")

	// Leaf ids line up in one column after the widest tree line.
	col := 0
	for _, l := range lines {
		if l.leaf != "" {
			if w := runewidth.StringWidth(l.text); w > col {
				col = w
			}
		}
	}
	for _, l := range lines {
		b.WriteString(l.text)
		if l.leaf != "" {
			b.WriteString(strings.Repeat(" ", col-runewidth.StringWidth(l.text)+2))
			b.WriteString("→ " + l.leaf)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// --- string helpers ---

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	return r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}
