// Package badge renders shields-style SVG badges for activity snapshots.
package badge

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/okanot/commitbadge/internal/activity"
)

// Style names a badge visual style. Unrecognized names fall back to flat.
type Style string

const (
	// StyleFlat is the default rounded style with a subtle gradient.
	StyleFlat Style = "flat"
	// StyleFlatSquare is flat without rounding or gradient.
	StyleFlatSquare Style = "flat-square"
	// StylePlastic is the legacy glossy style.
	StylePlastic Style = "plastic"
	// StyleForTheBadge is the tall uppercase style.
	StyleForTheBadge Style = "for-the-badge"
)

// ParseStyle maps a raw style name to a known style, defaulting to flat.
func ParseStyle(raw string) Style {
	switch Style(strings.ToLower(strings.TrimSpace(raw))) {
	case StyleFlatSquare:
		return StyleFlatSquare
	case StylePlastic:
		return StylePlastic
	case StyleForTheBadge:
		return StyleForTheBadge
	default:
		return StyleFlat
	}
}

// ColorForTier returns the badge color for a health tier.
func ColorForTier(tier activity.Tier) string {
	switch tier {
	case activity.TierHealthy:
		return "#4c1"
	case activity.TierModerate:
		return "#dfb317"
	default:
		return "#e05d44"
	}
}

// Badge is one renderable badge: a left-hand label and a right-hand message
// on a colored field.
type Badge struct {
	Label   string
	Message string
	Color   string
}

type renderParams struct {
	Label        string
	Message      string
	Color        string
	Height       int
	Radius       int
	Gradient     bool
	FontSize     int
	LabelWidth   int
	MessageWidth int
	TotalWidth   int
	LabelX       int
	MessageX     int
	TextY        int
	ShadowY      int
}

var badgeTemplate = template.Must(template.New("badge").Parse(strings.TrimSpace(`
<svg xmlns="http://www.w3.org/2000/svg" width="{{.TotalWidth}}" height="{{.Height}}" role="img" aria-label="{{.Label}}: {{.Message}}">
  <title>{{.Label}}: {{.Message}}</title>
  {{- if .Gradient}}
  <linearGradient id="s" x2="0" y2="100%">
    <stop offset="0" stop-color="#bbb" stop-opacity=".1"/>
    <stop offset="1" stop-opacity=".1"/>
  </linearGradient>
  {{- end}}
  <clipPath id="r">
    <rect width="{{.TotalWidth}}" height="{{.Height}}" rx="{{.Radius}}" fill="#fff"/>
  </clipPath>
  <g clip-path="url(#r)">
    <rect width="{{.LabelWidth}}" height="{{.Height}}" fill="#555"/>
    <rect x="{{.LabelWidth}}" width="{{.MessageWidth}}" height="{{.Height}}" fill="{{.Color}}"/>
    {{- if .Gradient}}
    <rect width="{{.TotalWidth}}" height="{{.Height}}" fill="url(#s)"/>
    {{- end}}
  </g>
  <g fill="#fff" text-anchor="middle" font-family="Verdana,Geneva,DejaVu Sans,sans-serif" font-size="{{.FontSize}}">
    <text x="{{.LabelX}}" y="{{.ShadowY}}" fill="#010101" fill-opacity=".3">{{.Label}}</text>
    <text x="{{.LabelX}}" y="{{.TextY}}">{{.Label}}</text>
    <text x="{{.MessageX}}" y="{{.ShadowY}}" fill="#010101" fill-opacity=".3">{{.Message}}</text>
    <text x="{{.MessageX}}" y="{{.TextY}}">{{.Message}}</text>
  </g>
</svg>
`)))

// Render produces the SVG payload for a badge in the given style.
func Render(b Badge, style Style) []byte {
	params := paramsForStyle(b, style)

	var buf bytes.Buffer
	if err := badgeTemplate.Execute(&buf, params); err != nil {
		// The template is static and the params are plain values; a render
		// failure is a programming error, so serve the minimal badge rather
		// than panic in a request path.
		return []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="90" height="20"/>`)
	}
	return buf.Bytes()
}

func paramsForStyle(b Badge, style Style) renderParams {
	label := b.Label
	message := b.Message
	height := 20
	radius := 3
	gradient := true
	fontSize := 11
	charWidth := 7

	switch style {
	case StyleFlatSquare:
		radius = 0
		gradient = false
	case StylePlastic:
		height = 18
		radius = 4
	case StyleForTheBadge:
		label = strings.ToUpper(label)
		message = strings.ToUpper(message)
		height = 28
		radius = 0
		gradient = false
		fontSize = 10
		charWidth = 9
	case StyleFlat:
	}

	labelWidth := textWidth(label, charWidth)
	messageWidth := textWidth(message, charWidth)
	textY := height/2 + fontSize/2
	return renderParams{
		Label:        label,
		Message:      message,
		Color:        b.Color,
		Height:       height,
		Radius:       radius,
		Gradient:     gradient,
		FontSize:     fontSize,
		LabelWidth:   labelWidth,
		MessageWidth: messageWidth,
		TotalWidth:   labelWidth + messageWidth,
		LabelX:       labelWidth / 2,
		MessageX:     labelWidth + messageWidth/2,
		TextY:        textY,
		ShadowY:      textY + 1,
	}
}

func textWidth(text string, charWidth int) int {
	const sidePadding = 10
	return len(text)*charWidth + 2*sidePadding
}
