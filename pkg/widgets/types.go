package widgets

// Built-in widget type names.
const (
	URLImage        = "urlImage"
	EmojiImage      = "emojiImage"
	SVGDiagram      = "svgDiagram"
	NumberLine      = "numberLine"
	BarChart        = "barChart"
	DataTable       = "dataTable"
	CoordinatePlane = "coordinatePlane"
)

// URLImageParams shows a raster image by URL.
type URLImageParams struct {
	URL    string `json:"url"              jsonschema:"required,minLength=1"`
	Alt    string `json:"alt"              jsonschema:"required"`
	Width  int    `json:"width,omitempty"  jsonschema:"minimum=1"`
	Height int    `json:"height,omitempty" jsonschema:"minimum=1"`
}

// EmojiImageParams shows a single emoji at a given size.
type EmojiImageParams struct {
	Emoji string `json:"emoji"          jsonschema:"required,minLength=1"`
	Size  int    `json:"size,omitempty" jsonschema:"minimum=8,maximum=512"`
}

// SVGDiagramParams embeds vector markup, usually lifted from supplementary
// content of the envelope.
type SVGDiagramParams struct {
	SVG string `json:"svg" jsonschema:"required,minLength=1"`
	Alt string `json:"alt" jsonschema:"required"`
}

// NumberLinePoint is a labelled mark on a number line.
type NumberLinePoint struct {
	Value float64 `json:"value"           jsonschema:"required"`
	Label string  `json:"label,omitempty"`
}

// NumberLineParams draws a number line.
type NumberLineParams struct {
	Min          float64           `json:"min"          jsonschema:"required"`
	Max          float64           `json:"max"          jsonschema:"required"`
	TickInterval float64           `json:"tickInterval" jsonschema:"required,exclusiveMinimum=0"`
	Points       []NumberLinePoint `json:"points,omitempty"`
}

// BarChartParams draws a vertical bar chart.
type BarChartParams struct {
	Title      string    `json:"title,omitempty"`
	Categories []string  `json:"categories" jsonschema:"required,minItems=1"`
	Values     []float64 `json:"values"     jsonschema:"required,minItems=1"`
	YLabel     string    `json:"yLabel,omitempty"`
}

// DataTableParams renders a plain data table.
type DataTableParams struct {
	Headers []string   `json:"headers" jsonschema:"required,minItems=1"`
	Rows    [][]string `json:"rows"    jsonschema:"required"`
}

// PlotPoint is a point on a coordinate plane.
type PlotPoint struct {
	X     float64 `json:"x"               jsonschema:"required"`
	Y     float64 `json:"y"               jsonschema:"required"`
	Label string  `json:"label,omitempty"`
}

// CoordinatePlaneParams draws axes with optional plotted points.
type CoordinatePlaneParams struct {
	XMin   float64     `json:"xMin"   jsonschema:"required"`
	XMax   float64     `json:"xMax"   jsonschema:"required"`
	YMin   float64     `json:"yMin"   jsonschema:"required"`
	YMax   float64     `json:"yMax"   jsonschema:"required"`
	Points []PlotPoint `json:"points,omitempty"`
}

var builtin = []struct {
	name   string
	params any
}{
	{URLImage, &URLImageParams{}},
	{EmojiImage, &EmojiImageParams{}},
	{SVGDiagram, &SVGDiagramParams{}},
	{NumberLine, &NumberLineParams{}},
	{BarChart, &BarChartParams{}},
	{DataTable, &DataTableParams{}},
	{CoordinatePlane, &CoordinatePlaneParams{}},
}
