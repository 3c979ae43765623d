package types

import "math"

// Point is a 2D position or displacement in display pixels
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns p+q
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Size is a width/height pair
type Size struct {
	W float64 `json:"width" yaml:"width"`
	H float64 `json:"height" yaml:"height"`
}

// Valid reports whether both dimensions are finite and strictly positive
func (s Size) Valid() bool {
	return Finite(s.W, s.H) && s.W > 0 && s.H > 0
}

// Rect is an axis-aligned rectangle with float coordinates
type Rect struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"width" yaml:"width"`
	H float64 `json:"height" yaml:"height"`
}

// Size returns the rectangle dimensions
func (r Rect) Size() Size { return Size{W: r.W, H: r.H} }

// Valid reports whether the rectangle has finite coordinates and positive area
func (r Rect) Valid() bool {
	return Finite(r.X, r.Y) && r.Size().Valid()
}

// Center returns the rectangle center
func (r Rect) Center() Point { return Point{X: r.X + r.W/2, Y: r.Y + r.H/2} }

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the normalized center of the box
func (b Box) Center() Point { return Point{X: b.X + b.W/2, Y: b.Y + b.H/2} }

// Subject represents the primary subject reported by a focus backend
type Subject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// Finite reports whether every value is neither NaN nor infinite
func Finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Detection is a focus backend's answer for one image
type Detection struct {
	Primary     Subject  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Focus returns the normalized subject center, preferring the reported
// center and falling back to the box center
func (d Detection) Focus() Point {
	p := d.Primary
	if (p.Cx != 0 || p.Cy != 0) && Finite(p.Cx, p.Cy) {
		return Point{X: p.Cx, Y: p.Cy}
	}
	if p.Box.W > 0 && p.Box.H > 0 {
		return p.Box.Center()
	}
	return Point{X: 0.5, Y: 0.5}
}
