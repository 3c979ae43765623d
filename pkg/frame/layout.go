package frame

import (
	"fmt"
	"sort"

	"github.com/menta2k/framecrop/pkg/types"
)

// Size returns the frame canvas dimensions
func (f *Frame) Size() types.Size {
	return types.Size{W: f.Width, H: f.Height}
}

// CroppedImageLayer returns the first visible layer that receives the cropped image
func (f *Frame) CroppedImageLayer() (Layer, bool) {
	for _, l := range f.Layers {
		if l.IsVisible() && l.IsCroppedImage() {
			return l, true
		}
	}
	return Layer{}, false
}

// CropWindow returns the rectangle of the frame canvas the user's image is
// cropped to: the cropped image layer's rectangle, else the explicit crop
// area, else the whole frame.
func (f *Frame) CropWindow() types.Rect {
	if l, ok := f.CroppedImageLayer(); ok {
		if r := f.LayerRect(l, types.Size{}); r.Valid() {
			return r
		}
	}
	if ca := f.CropArea; ca != nil {
		return types.Rect{X: ca.X, Y: ca.Y, W: ca.Width, H: ca.Height}
	}
	return types.Rect{W: f.Width, H: f.Height}
}

// SortedLayers returns visible layers in ascending z-order. Layers with equal
// z-index keep their declaration order.
func (f *Frame) SortedLayers() []Layer {
	out := make([]Layer, 0, len(f.Layers))
	for _, l := range f.Layers {
		if l.IsVisible() {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ZIndex < out[j].ZIndex
	})
	return out
}

// AlignedPosition returns the top-left corner of content inside a canvas.
// Explicit x and y win; otherwise alignX/alignY with margins place the
// content, falling back to the layer's own width/height when content is zero.
func AlignedPosition(p Properties, canvas, content types.Size) types.Point {
	if p.X != nil && p.Y != nil {
		return types.Point{X: *p.X, Y: *p.Y}
	}
	cw, ch := content.W, content.H
	if cw == 0 && p.Width != nil {
		cw = *p.Width
	}
	if ch == 0 && p.Height != nil {
		ch = *p.Height
	}

	var pos types.Point
	switch p.AlignX {
	case "center":
		pos.X = (canvas.W-cw)/2 + p.MarginX
	case "right":
		pos.X = canvas.W - cw - p.MarginX
	default:
		pos.X = p.MarginX
	}
	switch p.AlignY {
	case "center":
		pos.Y = (canvas.H-ch)/2 + p.MarginY
	case "bottom":
		pos.Y = canvas.H - ch - p.MarginY
	default:
		pos.Y = p.MarginY
	}
	return pos
}

// LayerRect returns the rectangle a box-shaped layer occupies. Width and
// height default to the frame size; position comes from AlignedPosition.
func (f *Frame) LayerRect(l Layer, content types.Size) types.Rect {
	p := l.Properties
	w, h := f.Width, f.Height
	if p.Width != nil {
		w = *p.Width
	}
	if p.Height != nil {
		h = *p.Height
	}
	if content.W == 0 {
		content.W = w
	}
	if content.H == 0 {
		content.H = h
	}
	pos := AlignedPosition(p, f.Size(), content)
	return types.Rect{X: pos.X, Y: pos.Y, W: w, H: h}
}

// ExportSize resolves a named size. "original" always maps to the frame's
// own dimensions at scale 1.
func (f *Frame) ExportSize(name string) (ExportSize, error) {
	if name == "" || name == OriginalSize {
		return ExportSize{Name: OriginalSize, Width: f.Width, Height: f.Height, Scale: 1}, nil
	}
	for _, es := range f.ExportSizes {
		if es.Name == name {
			if es.Scale == 0 {
				es.Scale = es.Width / f.Width
			}
			return es, nil
		}
	}
	return ExportSize{}, fmt.Errorf("%w: frame %q has no size %q", ErrUnknownSize, f.ID, name)
}

// SizeNames lists the selectable export size names, original first
func (f *Frame) SizeNames() []string {
	names := []string{OriginalSize}
	for _, es := range f.ExportSizes {
		if es.Name != OriginalSize {
			names = append(names, es.Name)
		}
	}
	return names
}
