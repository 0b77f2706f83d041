// Package prompts renders the system and user prompts of each generation
// stage. The wording is a working default; the pipeline only depends on
// the rendered strings.
package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/ormasoftchile/itemforge/pkg/assets"
	"github.com/ormasoftchile/itemforge/pkg/content"
	"github.com/ormasoftchile/itemforge/pkg/feedback"
	"github.com/ormasoftchile/itemforge/pkg/refs"
)

// SystemPrompt is shared by every stage. The stage-specific task is in the
// user prompt.
const SystemPrompt = `You convert legacy quiz items into structured assessment items.
You work in stages; each stage returns one JSON document that MUST conform to the
JSON Schema supplied with the request. Return only that JSON document.

Content rules:
- Rich text is a tree of typed blocks and inlines. Never emit HTML or Markdown inside text nodes.
- Math is MathML inside "math" and "mathBlock" nodes.
- Anything interactive is referenced from content by id with "interactionRef" or
  "inlineInteractionRef"; anything visual with "widgetRef" or "inlineWidgetRef" and a widget type.
- An id names exactly one thing. Never reuse an id for a different widget type.
- Preserve the meaning, numbers and correct answers of the source item exactly.`

const shellTemplate = `## Stage: shell

Produce the item shell: identifier, title, response declarations and body.
Reference every interaction from the body by id; do not write interaction content yet.
Reference every image or diagram as a widget. Available widget types: {{ join .WidgetTypes ", " }}.

{{ template "source" . }}`

const interactionsTemplate = `## Stage: interactions

Write the content of these interactions: {{ join .InteractionIDs ", " }}.
Each interaction's responseIdentifier must be one of the declared responses:
{{- range .Shell.ResponseDeclarations }}
- {{ .Identifier }} ({{ .Cardinality }} {{ .BaseType }}{{ if .CorrectResponse }}, correct: {{ join .CorrectResponse ", " }}{{ end }})
{{- end }}

Shell so far:
{{ json .Shell }}

{{ template "source" . }}`

const feedbackTemplate = `## Stage: feedback

Write feedback for every outcome combination below. Nest the answer object one level per
response, in this order, keyed by outcome: {{ range $i, $d := .Plan.Dimensions }}{{ if $i }} then {{ end }}{{ $d.ResponseIdentifier }} [{{ join $d.Keys ", " }}]{{ else }}CORRECT or INCORRECT{{ end }}.
Each leaf is {"content": [blocks]}. There are exactly {{ len .Plan.Combinations }} leaves:
{{- range .Plan.Combinations }}
- {{ .ID }}
{{- end }}

Item so far:
{{ json .Shell }}

Interactions:
{{ json .Interactions }}

{{ template "source" . }}`

const widgetsTemplate = `## Stage: widgets

Write the parameters of these widgets:
{{- range .Widgets }}
- {{ .ID }}: {{ .DeclaredType }}
{{- end }}
Take images and diagrams from the source material; do not invent figures.

{{ template "source" . }}`

const sourceTemplate = `{{ define "source" }}## Source item

` + "```" + `
{{ .Envelope.PrimaryContent }}
` + "```" + `
{{- if .Envelope.SupplementaryContent }}

## Vector graphics referenced by the source
{{ range .Envelope.SupplementaryContent }}
{{ . }}
{{ end }}
{{- end }}
{{- if .Envelope.VectorImageURLs }}

Vector image URLs: {{ join .Envelope.VectorImageURLs ", " }}
{{- end }}
{{- if .Envelope.RasterImageURLs }}

Raster image URLs (also attached as images): {{ join .Envelope.RasterImageURLs ", " }}
{{- end }}{{ end }}`

var funcs = template.FuncMap{
	"join": strings.Join,
	"json": func(v any) (string, error) {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	},
}

// Compiled templates.
var (
	shellTmpl        = mustParse("shell", shellTemplate)
	interactionsTmpl = mustParse("interactions", interactionsTemplate)
	feedbackTmpl     = mustParse("feedback", feedbackTemplate)
	widgetsTmpl      = mustParse("widgets", widgetsTemplate)
)

func mustParse(name, text string) *template.Template {
	t := template.Must(template.New(name).Funcs(funcs).Parse(text))
	return template.Must(t.Parse(sourceTemplate))
}

// Data holds everything a stage prompt may mention. Fields not relevant to
// a stage are ignored by its template.
type Data struct {
	Envelope       *assets.Envelope
	WidgetTypes    []string
	Shell          *content.Shell
	InteractionIDs []string
	Interactions   map[string]content.Interaction
	Plan           feedback.Plan
	Widgets        []refs.Slot
}

// Stage names, shared with the pipeline.
const (
	StageShell        = "shell"
	StageInteractions = "interactions"
	StageFeedback     = "feedback"
	StageWidgets      = "widgets"
)

// RenderUser renders the user prompt of stage.
func RenderUser(stage string, data Data) (string, error) {
	var t *template.Template
	switch stage {
	case StageShell:
		t = shellTmpl
	case StageInteractions:
		t = interactionsTmpl
	case StageFeedback:
		t = feedbackTmpl
	case StageWidgets:
		t = widgetsTmpl
	default:
		return "", fmt.Errorf("unknown stage %q", stage)
	}
	if data.Envelope == nil {
		data.Envelope = &assets.Envelope{}
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", stage, err)
	}
	return buf.String(), nil
}
