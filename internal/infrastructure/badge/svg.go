// Package badge renders a shields-style SVG badge for an aggregate run.
package badge

import (
	"fmt"
	"html/template"
	"io"

	"github.com/felixgeelhaar/scovctl/internal/domain"
)

type Style string

const (
	StyleFlat       Style = "flat"
	StyleFlatSquare Style = "flat-square"
)

// DefaultLabel is the left-hand text of the badge.
const DefaultLabel = "statements"

type Options struct {
	Label string
	Style Style
}

var svg = template.Must(template.New("badge").Parse(`<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="20" role="img" aria-label="{{.Label}}: {{.Value}}">
  <title>{{.Label}}: {{.Value}}</title>
  <linearGradient id="s" x2="0" y2="100%">
    <stop offset="0" stop-color="#bbb" stop-opacity=".1"/>
    <stop offset="1" stop-opacity=".1"/>
  </linearGradient>
  <clipPath id="r">
    <rect width="{{.Width}}" height="20" rx="{{.Rx}}" fill="#fff"/>
  </clipPath>
  <g clip-path="url(#r)">
    <rect width="{{.LabelWidth}}" height="20" fill="#555"/>
    <rect x="{{.LabelWidth}}" width="{{.ValueWidth}}" height="20" fill="{{.Color}}"/>
    <rect width="{{.Width}}" height="20" fill="url(#s)"/>
  </g>
  <g fill="#fff" text-anchor="middle" font-family="Verdana,Geneva,DejaVu Sans,sans-serif" font-size="110">
    <text x="{{.LabelX}}" y="140" transform="scale(.1)">{{.Label}}</text>
    <text x="{{.ValueX}}" y="140" transform="scale(.1)">{{.Value}}</text>
  </g>
</svg>
`))

type badgeData struct {
	Label      string
	Value      string
	Color      string
	Width      int
	LabelWidth int
	ValueWidth int
	LabelX     int
	ValueX     int
	Rx         int
}

// Write renders the badge for result. With known statement totals the value
// is the overall percentage; otherwise it is the executed statement count
// on a grey background.
func Write(w io.Writer, result domain.Result, opts Options) error {
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	value, color := fmt.Sprintf("%d executed", result.Executed()), "#9f9f9f"
	if overall, ok := result.OverallPercent(); ok {
		value, color = formatPercent(overall), colorForPercent(overall)
	}
	if !result.Passed {
		color = "#e05d44"
	}

	labelWidth := len(opts.Label)*7 + 10
	valueWidth := len(value)*7 + 10
	rx := 3
	if opts.Style == StyleFlatSquare {
		rx = 0
	}

	return svg.Execute(w, badgeData{
		Label:      opts.Label,
		Value:      value,
		Color:      color,
		Width:      labelWidth + valueWidth,
		LabelWidth: labelWidth,
		ValueWidth: valueWidth,
		LabelX:     labelWidth * 5,
		ValueX:     (labelWidth + valueWidth/2) * 10,
		Rx:         rx,
	})
}

func formatPercent(p float64) string {
	if p == float64(int(p)) {
		return fmt.Sprintf("%.0f%%", p)
	}
	return fmt.Sprintf("%.1f%%", p)
}

func colorForPercent(p float64) string {
	switch {
	case p >= 90:
		return "#4c1"
	case p >= 75:
		return "#97ca00"
	case p >= 60:
		return "#dfb317"
	default:
		return "#e05d44"
	}
}
