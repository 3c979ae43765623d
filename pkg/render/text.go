package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// wrapText breaks text into lines no wider than maxWidth. A single word
// wider than maxWidth gets a line of its own.
func wrapText(text string, maxWidth float64, face font.Face) []string {
	if text == "" || maxWidth <= 0 {
		return []string{text}
	}

	var lines []string
	current := ""
	for _, word := range strings.Split(text, " ") {
		test := word
		if current != "" {
			test = current + " " + word
		}
		if measure(face, test) <= maxWidth {
			current = test
			continue
		}
		if current != "" {
			lines = append(lines, current)
			current = word
		} else {
			lines = append(lines, word)
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func measure(face font.Face, s string) float64 {
	return float64(font.MeasureString(face, s)) / 64
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

// drawString draws text with its baseline starting at (x, y)
func drawString(dst draw.Image, text string, x, y float64, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: toFixed(x), Y: toFixed(y)},
	}
	d.DrawString(text)
}

// textAnchor is the canvas text alignment: alignX center/right wins over
// textAlign.
func textAnchor(textAlign, alignX string) string {
	switch alignX {
	case "center", "right":
		return alignX
	}
	if textAlign == "center" || textAlign == "right" {
		return textAlign
	}
	return "left"
}
