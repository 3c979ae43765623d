package render

import (
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/menta2k/framecrop/pkg/frame"
	"github.com/menta2k/framecrop/pkg/types"
)

// Named background options offered by frame parameters
var backgroundOptions = map[string]color.NRGBA{
	"lightBlue":  {0x80, 0xD8, 0xD8, 0xFF},
	"darkBlue":   {0x20, 0x40, 0x80, 0xFF},
	"yellowGold": {0xF0, 0xD0, 0x60, 0xFF},
}

// DefaultBackground is used when a background option cannot be resolved
var DefaultBackground = color.NRGBA{0x80, 0xD8, 0xD8, 0xFF}

var namedColors = map[string]color.NRGBA{
	"black":       {0, 0, 0, 0xFF},
	"white":       {0xFF, 0xFF, 0xFF, 0xFF},
	"red":         {0xFF, 0, 0, 0xFF},
	"green":       {0, 0x80, 0, 0xFF},
	"blue":        {0, 0, 0xFF, 0xFF},
	"gold":        {0xFF, 0xD7, 0, 0xFF},
	"gray":        {0x80, 0x80, 0x80, 0xFF},
	"grey":        {0x80, 0x80, 0x80, 0xFF},
	"transparent": {},
}

// ParseColor parses #rgb, #rrggbb, #rrggbbaa, rgb(), rgba() and a few CSS
// color names.
func ParseColor(s string) (color.NRGBA, bool) {
	s = strings.TrimSpace(s)
	if c, ok := namedColors[strings.ToLower(s)]; ok {
		return c, true
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "rgb(") || strings.HasPrefix(lower, "rgba(") {
		return parseRGBFunc(lower)
	}
	return color.NRGBA{}, false
}

func parseHex(hex string) (color.NRGBA, bool) {
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6, 8:
	default:
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	if len(hex) == 6 {
		return color.NRGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xFF}, true
	}
	return color.NRGBA{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}, true
}

func parseRGBFunc(s string) (color.NRGBA, bool) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return color.NRGBA{}, false
	}
	parts := strings.Split(s[open+1:len(s)-1], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, false
	}
	var ch [4]uint8
	ch[3] = 0xFF
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || !types.Finite(v) {
			return color.NRGBA{}, false
		}
		if i == 3 {
			v *= 255
		}
		ch[i] = uint8(math.Round(math.Max(0, math.Min(255, v))))
	}
	return color.NRGBA{ch[0], ch[1], ch[2], ch[3]}, true
}

// Fill is a resolved paint: a solid color or a two-stop linear gradient.
type Fill struct {
	Solid    color.NRGBA
	Gradient *Gradient
}

// Gradient is a resolved linear gradient
type Gradient struct {
	From, To  color.NRGBA
	Direction string
}

// ResolveBackground maps a background option to a fill. Named options,
// "gradient" and "custom" (using customColor) are recognized; any other
// parseable color is used as is; everything else falls back to
// DefaultBackground.
func ResolveBackground(option, customColor string) Fill {
	switch option {
	case "gradient":
		return Fill{Gradient: &Gradient{
			From:      color.NRGBA{0xE0, 0x60, 0xE0, 0xFF},
			To:        color.NRGBA{0x80, 0x40, 0xC0, 0xFF},
			Direction: "to bottom",
		}}
	case "custom":
		if c, ok := ParseColor(customColor); ok {
			return Fill{Solid: c}
		}
		return Fill{Solid: DefaultBackground}
	}
	if c, ok := backgroundOptions[option]; ok {
		return Fill{Solid: c}
	}
	if c, ok := ParseColor(option); ok {
		return Fill{Solid: c}
	}
	return Fill{Solid: DefaultBackground}
}

// GradientFill resolves an explicit backgroundGradient property
func GradientFill(g *frame.Gradient) (Fill, bool) {
	from, ok1 := ParseColor(g.From)
	to, ok2 := ParseColor(g.To)
	if !ok1 || !ok2 {
		return Fill{}, false
	}
	return Fill{Gradient: &Gradient{From: from, To: to, Direction: g.Direction}}, true
}

// Source returns an image usable as a draw source over r
func (f Fill) Source(r types.Rect) image.Image {
	if f.Gradient == nil {
		return image.NewUniform(f.Solid)
	}
	g := &linearGradient{from: f.Gradient.From, to: f.Gradient.To}
	switch f.Gradient.Direction {
	case "to bottom":
		g.x0, g.y0, g.x1, g.y1 = r.X, r.Y, r.X, r.Y+r.H
	case "to right":
		g.x0, g.y0, g.x1, g.y1 = r.X, r.Y, r.X+r.W, r.Y
	case "to top right":
		g.x0, g.y0, g.x1, g.y1 = r.X, r.Y+r.H, r.X+r.W, r.Y
	default: // to bottom right
		g.x0, g.y0, g.x1, g.y1 = r.X, r.Y, r.X+r.W, r.Y+r.H
	}
	return g
}

// linearGradient is an unbounded image interpolating between two colors
// along the segment (x0,y0)-(x1,y1).
type linearGradient struct {
	x0, y0, x1, y1 float64
	from, to       color.NRGBA
}

func (g *linearGradient) ColorModel() color.Model { return color.NRGBAModel }

func (g *linearGradient) Bounds() image.Rectangle {
	return image.Rect(-1<<30, -1<<30, 1<<30, 1<<30)
}

func (g *linearGradient) At(x, y int) color.Color {
	dx, dy := g.x1-g.x0, g.y1-g.y0
	den := dx*dx + dy*dy
	if den == 0 {
		return g.from
	}
	t := ((float64(x)+0.5-g.x0)*dx + (float64(y)+0.5-g.y0)*dy) / den
	t = math.Max(0, math.Min(1, t))
	lerp := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
	}
	return color.NRGBA{
		lerp(g.from.R, g.to.R),
		lerp(g.from.G, g.to.G),
		lerp(g.from.B, g.to.B),
		lerp(g.from.A, g.to.A),
	}
}
