package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/menta2k/framecrop/pkg/types"
)

// kappa places cubic control points for a quarter circle
const kappa = 0.5522847498

// roundedRect adds a closed rounded rectangle contour to z. Clockwise
// contours fill; counter-clockwise contours cut holes in a clockwise one.
func roundedRect(z *vector.Rasterizer, r types.Rect, radius float64, clockwise bool) {
	radius = math.Max(0, math.Min(radius, math.Min(r.W, r.H)/2))
	x0, y0 := float32(r.X), float32(r.Y)
	x1, y1 := float32(r.X+r.W), float32(r.Y+r.H)
	rd := float32(radius)
	k := float32(radius * kappa)

	if clockwise {
		z.MoveTo(x0+rd, y0)
		z.LineTo(x1-rd, y0)
		if rd > 0 {
			z.CubeTo(x1-rd+k, y0, x1, y0+rd-k, x1, y0+rd)
		}
		z.LineTo(x1, y1-rd)
		if rd > 0 {
			z.CubeTo(x1, y1-rd+k, x1-rd+k, y1, x1-rd, y1)
		}
		z.LineTo(x0+rd, y1)
		if rd > 0 {
			z.CubeTo(x0+rd-k, y1, x0, y1-rd+k, x0, y1-rd)
		}
		z.LineTo(x0, y0+rd)
		if rd > 0 {
			z.CubeTo(x0, y0+rd-k, x0+rd-k, y0, x0+rd, y0)
		}
		z.ClosePath()
		return
	}

	z.MoveTo(x0+rd, y0)
	if rd > 0 {
		z.CubeTo(x0+rd-k, y0, x0, y0+rd-k, x0, y0+rd)
	}
	z.LineTo(x0, y1-rd)
	if rd > 0 {
		z.CubeTo(x0, y1-rd+k, x0+rd-k, y1, x0+rd, y1)
	}
	z.LineTo(x1-rd, y1)
	if rd > 0 {
		z.CubeTo(x1-rd+k, y1, x1, y1-rd+k, x1, y1-rd)
	}
	z.LineTo(x1, y0+rd)
	if rd > 0 {
		z.CubeTo(x1, y0+rd-k, x1-rd+k, y0, x1-rd, y0)
	}
	z.ClosePath()
}

func newRasterizer(dst image.Image) *vector.Rasterizer {
	b := dst.Bounds()
	return vector.NewRasterizer(b.Dx(), b.Dy())
}

// fillRounded paints src over dst inside a rounded rectangle
func fillRounded(dst draw.Image, r types.Rect, radius float64, src image.Image) {
	z := newRasterizer(dst)
	roundedRect(z, r, radius, true)
	z.Draw(dst, dst.Bounds(), src, dst.Bounds().Min)
}

// strokeRounded paints a stroke of the given width centered on the rounded
// rectangle outline.
func strokeRounded(dst draw.Image, r types.Rect, radius, width float64, src image.Image) {
	half := width / 2
	outer := types.Rect{X: r.X - half, Y: r.Y - half, W: r.W + width, H: r.H + width}
	z := newRasterizer(dst)
	roundedRect(z, outer, radius+half, true)
	if inner := (types.Rect{X: r.X + half, Y: r.Y + half, W: r.W - width, H: r.H - width}); inner.W > 0 && inner.H > 0 {
		roundedRect(z, inner, math.Max(0, radius-half), false)
	}
	z.Draw(dst, dst.Bounds(), src, dst.Bounds().Min)
}

// clipMask returns an alpha mask the size of bounds covering a rounded
// rectangle, scaled by opacity.
func clipMask(bounds image.Rectangle, r types.Rect, radius, opacity float64) *image.Alpha {
	mask := image.NewAlpha(bounds)
	a := uint8(math.Round(255 * math.Max(0, math.Min(1, opacity))))
	if a == 0 {
		return mask
	}
	z := newRasterizer(mask)
	roundedRect(z, r, radius, true)
	z.Draw(mask, bounds, image.NewUniform(color.Alpha{A: a}), bounds.Min)
	return mask
}
