// Package mapper converts an image's scale and offset inside a crop window
// into clamped state and drawing transforms.
//
// Offsets are expressed in display pixels relative to the crop-window center:
// an offset of {0,0} centers the scaled image in the window. Every drawing
// path (live preview, thumbnail, export) goes through Placement so there is a
// single forward transform and its inverse.
package mapper

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/image/math/f64"

	"github.com/menta2k/framecrop/pkg/types"
)

// ErrInvalidDimensions is returned when an image, window or scale cannot
// produce a finite transform.
var ErrInvalidDimensions = errors.New("mapper: invalid dimensions")

// Scale limits used when no policy is configured
const (
	DefaultMaxScale        = 5.0
	DefaultMaxScaleFactor  = 5.0
	DefaultMaxScaleCeiling = 10.0
)

// offsets smaller than this are treated as zero slack
const epsilon = 1e-9

// ScalePolicy decides the upper zoom bound for an image.
type ScalePolicy struct {
	// Proportional derives the bound from the cover scale as
	// min(cover*Factor, Ceiling); otherwise Fixed is used.
	Proportional bool    `json:"proportional" yaml:"proportional"`
	Fixed        float64 `json:"fixed" yaml:"fixed"`
	Factor       float64 `json:"factor" yaml:"factor"`
	Ceiling      float64 `json:"ceiling" yaml:"ceiling"`
}

// DefaultScalePolicy returns a fixed upper bound of DefaultMaxScale
func DefaultScalePolicy() ScalePolicy {
	return ScalePolicy{
		Fixed:   DefaultMaxScale,
		Factor:  DefaultMaxScaleFactor,
		Ceiling: DefaultMaxScaleCeiling,
	}
}

// MaxScale returns the upper zoom bound for an image whose cover scale is minCover
func (p ScalePolicy) MaxScale(minCover float64) float64 {
	if p.Proportional {
		factor, ceiling := p.Factor, p.Ceiling
		if factor <= 0 {
			factor = DefaultMaxScaleFactor
		}
		if ceiling <= 0 {
			ceiling = DefaultMaxScaleCeiling
		}
		return math.Min(minCover*factor, ceiling)
	}
	if p.Fixed <= 0 {
		return DefaultMaxScale
	}
	return p.Fixed
}

// MinCoverScale returns the smallest scale at which an image fully covers
// the window (object-fit: cover).
func MinCoverScale(imageW, imageH, windowW, windowH float64) (float64, error) {
	if !(types.Size{W: imageW, H: imageH}).Valid() || !(types.Size{W: windowW, H: windowH}).Valid() {
		return 0, fmt.Errorf("%w: image %gx%g, window %gx%g", ErrInvalidDimensions, imageW, imageH, windowW, windowH)
	}
	return math.Max(windowW/imageW, windowH/imageH), nil
}

// ScaleBounds returns the legal [min, max] scale range for an image in a window.
// When the policy's maximum falls below the cover scale the range collapses
// to the cover scale.
func ScaleBounds(policy ScalePolicy, natural, window types.Size) (float64, float64, error) {
	minScale, err := MinCoverScale(natural.W, natural.H, window.W, window.H)
	if err != nil {
		return 0, 0, err
	}
	maxScale := policy.MaxScale(minScale)
	if maxScale < minScale {
		maxScale = minScale
	}
	return minScale, maxScale, nil
}

// ClampScale limits scale to [minScale, maxScale]; minScale wins on conflict.
func ClampScale(scale, minScale, maxScale float64) float64 {
	return math.Max(minScale, math.Min(maxScale, scale))
}

// MaxOffset returns the per-axis offset magnitude that keeps the scaled image
// covering the window.
func MaxOffset(imageW, imageH, scale, windowW, windowH float64) types.Point {
	return types.Point{
		X: slack(imageW*scale, windowW),
		Y: slack(imageH*scale, windowH),
	}
}

func slack(scaled, window float64) float64 {
	m := (scaled - window) / 2
	if !types.Finite(m) || m < epsilon {
		return 0
	}
	return m
}

// ClampOffset clamps each axis of offset independently to
// [-maxOffset, +maxOffset] so the window never shows area outside the image.
func ClampOffset(offset types.Point, imageW, imageH, scale, windowW, windowH float64) types.Point {
	m := MaxOffset(imageW, imageH, scale, windowW, windowH)
	return types.Point{
		X: clamp(offset.X, -m.X, m.X),
		Y: clamp(offset.Y, -m.Y, m.Y),
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OffsetForFocus returns the clamped offset that puts a normalized focus
// point of the image at the window center.
func OffsetForFocus(focus types.Point, natural types.Size, scale float64, window types.Size) types.Point {
	fx := clamp(focus.X, 0, 1)
	fy := clamp(focus.Y, 0, 1)
	want := types.Point{
		X: scale * natural.W * (0.5 - fx),
		Y: scale * natural.H * (0.5 - fy),
	}
	return ClampOffset(want, natural.W, natural.H, scale, window.W, window.H)
}

// SourceRect is a rectangle in original image pixel coordinates.
type SourceRect struct {
	X, Y, W, H float64
}

// Placement describes how an image sits inside a crop window.
type Placement struct {
	Natural types.Size
	Window  types.Size
	Scale   float64
	Offset  types.Point
}

// Validate reports ErrInvalidDimensions for placements that cannot be drawn
func (p Placement) Validate() error {
	if !p.Natural.Valid() || !p.Window.Valid() {
		return fmt.Errorf("%w: image %gx%g, window %gx%g", ErrInvalidDimensions, p.Natural.W, p.Natural.H, p.Window.W, p.Window.H)
	}
	if !types.Finite(p.Scale, p.Offset.X, p.Offset.Y) || p.Scale <= 0 {
		return fmt.Errorf("%w: scale %g offset (%g,%g)", ErrInvalidDimensions, p.Scale, p.Offset.X, p.Offset.Y)
	}
	return nil
}

// Forward maps image pixel coordinates to window-local coordinates.
// The image center lands on the window center displaced by Offset.
func (p Placement) Forward() (f64.Aff3, error) {
	if err := p.Validate(); err != nil {
		return f64.Aff3{}, err
	}
	s := p.Scale
	tx := p.Window.W/2 + p.Offset.X - s*p.Natural.W/2
	ty := p.Window.H/2 + p.Offset.Y - s*p.Natural.H/2
	return f64.Aff3{
		s, 0, tx,
		0, s, ty,
	}, nil
}

// SourceRect returns the image rectangle that exactly fills the window,
// obtained by mapping the window corners through the inverse of Forward.
func (p Placement) SourceRect() (SourceRect, error) {
	fwd, err := p.Forward()
	if err != nil {
		return SourceRect{}, err
	}
	inv, err := Invert(fwd)
	if err != nil {
		return SourceRect{}, err
	}
	tl := Apply(inv, types.Point{})
	br := Apply(inv, types.Point{X: p.Window.W, Y: p.Window.H})
	return SourceRect{X: tl.X, Y: tl.Y, W: br.X - tl.X, H: br.Y - tl.Y}, nil
}

// Into maps image pixel coordinates onto dst, a rectangle that stands in for
// the window (for example an art box inside a larger frame canvas).
func (p Placement) Into(dst types.Rect) (f64.Aff3, error) {
	fwd, err := p.Forward()
	if err != nil {
		return f64.Aff3{}, err
	}
	if !dst.Valid() {
		return f64.Aff3{}, fmt.Errorf("%w: target %+v", ErrInvalidDimensions, dst)
	}
	kx := dst.W / p.Window.W
	ky := dst.H / p.Window.H
	return f64.Aff3{
		kx * fwd[0], 0, dst.X + kx*fwd[2],
		0, ky * fwd[4], dst.Y + ky*fwd[5],
	}, nil
}

// SourceRectFor is the functional form of Placement.SourceRect
func SourceRectFor(offset types.Point, scale, windowW, windowH, naturalW, naturalH float64) (SourceRect, error) {
	return Placement{
		Natural: types.Size{W: naturalW, H: naturalH},
		Window:  types.Size{W: windowW, H: windowH},
		Scale:   scale,
		Offset:  offset,
	}.SourceRect()
}

// Apply transforms p by m
func Apply(m f64.Aff3, p types.Point) types.Point {
	return types.Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

// Invert returns the inverse affine transform of m
func Invert(m f64.Aff3) (f64.Aff3, error) {
	det := m[0]*m[4] - m[1]*m[3]
	if det == 0 || !types.Finite(det) {
		return f64.Aff3{}, fmt.Errorf("%w: singular transform", ErrInvalidDimensions)
	}
	a := m[4] / det
	b := -m[1] / det
	d := -m[3] / det
	e := m[0] / det
	return f64.Aff3{
		a, b, -(a*m[2] + b*m[5]),
		d, e, -(d*m[2] + e*m[5]),
	}, nil
}
