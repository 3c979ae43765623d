// Package render composites a frame's layers and the placed user image onto
// a raster canvas.
//
// Layers are painted in ascending z-order: backgrounds, borders, text,
// static images and the cropped image slot. Preview, thumbnail and export
// all come from Render so they agree pixel for pixel.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"

	"github.com/menta2k/framecrop/pkg/frame"
	"github.com/menta2k/framecrop/pkg/mapper"
	"github.com/menta2k/framecrop/pkg/types"
)

var (
	// ErrNoImage is returned when the scene has no decoded image
	ErrNoImage = errors.New("render: no image")
	// ErrNoFrame is returned when the scene has no frame
	ErrNoFrame = errors.New("render: no frame")
	// ErrInvalidGeometry marks a layer whose geometry cannot be drawn
	ErrInvalidGeometry = errors.New("render: invalid layer geometry")
)

const (
	defaultFontSize   = 16
	defaultLineHeight = 1.2
)

var defaultTextColor = color.NRGBA{0xFF, 0xFF, 0xFF, 0xFF}

// Scene is everything one render reads.
type Scene struct {
	Frame     *frame.Frame
	Params    map[string]string
	Image     image.Image
	Placement mapper.Placement
	// Window is the crop window inside the frame canvas
	Window types.Rect
}

func (s Scene) validate() error {
	if s.Frame == nil {
		return ErrNoFrame
	}
	if s.Image == nil {
		return ErrNoImage
	}
	return s.Placement.Validate()
}

// Config holds renderer settings
type Config struct {
	Fonts     FontConfig `json:"fonts" yaml:"fonts"`
	AssetRoot string     `json:"asset_root" yaml:"asset_root"`
}

// Renderer draws scenes. Calls are serialized; font faces are not safe for
// concurrent use.
type Renderer struct {
	mu     sync.Mutex
	fonts  *FontManager
	assets Assets
	log    *slog.Logger
}

// New creates a renderer. A nil assets source loads from cfg.AssetRoot.
func New(cfg Config, assets Assets, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "render"))
	fm, err := NewFontManager(cfg.Fonts, logger)
	if err != nil {
		return nil, err
	}
	if assets == nil {
		assets = NewDirAssets(cfg.AssetRoot)
	}
	return &Renderer{fonts: fm, assets: assets, log: logger}, nil
}

// Render paints the full frame composite at frame size.
func (r *Renderer) Render(ctx context.Context, scene Scene) (*image.NRGBA, error) {
	if err := scene.validate(); err != nil {
		return nil, err
	}
	size := scene.Frame.Size()
	canvas := image.NewNRGBA(image.Rect(0, 0, int(math.Round(size.W)), int(math.Round(size.H))))

	r.mu.Lock()
	defer r.mu.Unlock()

	layers := scene.Frame.SortedLayers()
	if len(layers) == 0 {
		if err := r.drawCrop(canvas, scene, scene.Window, 0, 1); err != nil {
			return nil, err
		}
		return canvas, nil
	}
	if _, ok := scene.Frame.CroppedImageLayer(); !ok {
		// layered frame without an image slot: the crop sits under every layer
		if err := r.drawCrop(canvas, scene, scene.Window, 0, 1); err != nil {
			return nil, err
		}
	}
	for _, l := range layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.drawLayerSafe(ctx, canvas, scene, l)
	}
	return canvas, nil
}

// RenderCrop paints only the crop window, scaled by scale.
func (r *Renderer) RenderCrop(scene Scene, scale float64) (*image.NRGBA, error) {
	if err := scene.validate(); err != nil {
		return nil, err
	}
	if !types.Finite(scale) || scale <= 0 {
		scale = 1
	}
	w := scene.Window.W * scale
	h := scene.Window.H * scale
	canvas := image.NewNRGBA(image.Rect(0, 0, max(1, int(math.Round(w))), max(1, int(math.Round(h)))))

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.drawCrop(canvas, scene, types.Rect{W: w, H: h}, 0, 1); err != nil {
		return nil, err
	}
	return canvas, nil
}

// Thumbnail renders the composite and scales it to fit maxW x maxH.
func (r *Renderer) Thumbnail(ctx context.Context, scene Scene, maxW, maxH int) (*image.NRGBA, error) {
	canvas, err := r.Render(ctx, scene)
	if err != nil {
		return nil, err
	}
	if maxW <= 0 || maxH <= 0 {
		return canvas, nil
	}
	return imaging.Fit(canvas, maxW, maxH, imaging.Lanczos), nil
}

func (r *Renderer) drawLayerSafe(ctx context.Context, canvas *image.NRGBA, scene Scene, l frame.Layer) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn("layer render panicked", "layer", l.ID, "panic", rec)
		}
	}()
	if err := r.drawLayer(ctx, canvas, scene, l); err != nil {
		r.log.Warn("layer skipped", "layer", l.ID, "type", l.Type, "error", err)
	}
}

func (r *Renderer) drawLayer(ctx context.Context, canvas *image.NRGBA, scene Scene, l frame.Layer) error {
	switch l.Type {
	case frame.LayerBackground:
		return r.drawBackground(canvas, scene, l)
	case frame.LayerBorder:
		return r.drawBorder(canvas, scene, l)
	case frame.LayerText:
		return r.drawText(canvas, scene, l)
	case frame.LayerImage:
		if l.IsCroppedImage() {
			p := l.Properties
			rect := scene.Frame.LayerRect(l, types.Size{})
			if err := checkRect(rect); err != nil {
				return err
			}
			return r.drawCrop(canvas, scene, rect, p.BorderRadius, opacity(p))
		}
		return r.drawStatic(ctx, canvas, scene, l)
	}
	return fmt.Errorf("unknown layer type %q", l.Type)
}

func checkRect(rect types.Rect) error {
	if !types.Finite(rect.X, rect.Y, rect.W, rect.H) || rect.W < 0 || rect.H < 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidGeometry, rect)
	}
	return nil
}

func opacity(p frame.Properties) float64 {
	if p.Opacity == nil || !types.Finite(*p.Opacity) {
		return 1
	}
	return math.Max(0, math.Min(1, *p.Opacity))
}

// ── Layer painters ──

func (r *Renderer) drawBackground(canvas *image.NRGBA, scene Scene, l frame.Layer) error {
	p := l.Properties
	rect := scene.Frame.LayerRect(l, types.Size{})
	if err := checkRect(rect); err != nil {
		return err
	}

	var fill Fill
	switch {
	case p.BackgroundGradient != nil:
		g, ok := GradientFill(p.BackgroundGradient)
		if !ok {
			return fmt.Errorf("invalid gradient %+v", *p.BackgroundGradient)
		}
		fill = g
	case p.BackgroundColor != "":
		fill = ResolveBackground(
			frame.Interpolate(p.BackgroundColor, scene.Params),
			frame.Interpolate(p.CustomBackgroundColor, scene.Params),
		)
	default:
		return nil
	}
	fillRounded(canvas, rect, p.BorderRadius, fill.Source(rect))
	return nil
}

func (r *Renderer) drawBorder(canvas *image.NRGBA, scene Scene, l frame.Layer) error {
	p := l.Properties
	if p.BorderColor == "" || p.BorderWidth <= 0 {
		return nil
	}
	rect := scene.Frame.LayerRect(l, types.Size{})
	if err := checkRect(rect); err != nil {
		return err
	}
	if !types.Finite(p.BorderWidth, p.BorderRadius) {
		return fmt.Errorf("%w: border width %g radius %g", ErrInvalidGeometry, p.BorderWidth, p.BorderRadius)
	}
	raw := frame.Interpolate(p.BorderColor, scene.Params)
	c, ok := ParseColor(raw)
	if !ok {
		return fmt.Errorf("invalid border color %q", raw)
	}
	strokeRounded(canvas, rect, p.BorderRadius, p.BorderWidth, image.NewUniform(c))
	return nil
}

func (r *Renderer) drawText(canvas *image.NRGBA, scene Scene, l frame.Layer) error {
	p := l.Properties
	content := frame.Interpolate(p.Content, scene.Params)
	if content == "" {
		return nil
	}
	size := p.FontSize
	if size == 0 {
		size = defaultFontSize
	}
	if !types.Finite(size) || size < 0 {
		return fmt.Errorf("%w: font size %g", ErrInvalidGeometry, size)
	}

	col := defaultTextColor
	if p.Color != "" {
		if c, ok := ParseColor(frame.Interpolate(p.Color, scene.Params)); ok {
			col = c
		}
	}

	var run textRun
	if IsIconFamily(p.FontFamily) {
		content = iconText(content, r.fonts.HasIcon)
		icon, err := r.fonts.IconFace(size)
		if err != nil {
			return err
		}
		regular, err := r.fonts.Face(size, false)
		if err != nil {
			return err
		}
		run = mixedRun{primary: icon, fallback: regular, has: r.fonts.HasIcon}
	} else {
		face, err := r.fonts.Face(size, p.FontWeight.Bold())
		if err != nil {
			return err
		}
		run = plainRun{face: face}
	}

	frameSize := scene.Frame.Size()
	pos := frame.AlignedPosition(p, frameSize, types.Size{W: run.measure(content), H: size})
	anchor := textAnchor(p.TextAlign, p.AlignX)
	x := pos.X
	switch anchor {
	case "right":
		x = frameSize.W - p.MarginX
	case "center":
		x = frameSize.W / 2
	}
	y := pos.Y + size
	if !types.Finite(x, y) {
		return fmt.Errorf("%w: text position (%g,%g)", ErrInvalidGeometry, x, y)
	}

	lines := []string{content}
	if p.MaxWidth != nil && *p.MaxWidth > 0 {
		lines = run.wrap(content, *p.MaxWidth)
	}
	lineHeight := size * defaultLineHeight
	if p.LineHeight > 0 {
		lineHeight = size * p.LineHeight
	}
	for i, line := range lines {
		lx := x
		switch anchor {
		case "right":
			lx = x - run.measure(line)
		case "center":
			lx = x - run.measure(line)/2
		}
		run.draw(canvas, line, lx, y+float64(i)*lineHeight, col)
	}
	return nil
}

func (r *Renderer) drawStatic(ctx context.Context, canvas *image.NRGBA, scene Scene, l frame.Layer) error {
	p := l.Properties
	if p.ImageURL == "" {
		return nil
	}
	ref := frame.Interpolate(p.ImageURL, scene.Params)
	img, err := r.assets.Load(ctx, ref)
	if err != nil {
		return fmt.Errorf("asset %q: %w", ref, err)
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	if p.Width != nil {
		w = *p.Width
	}
	if p.Height != nil {
		h = *p.Height
	}
	var pos types.Point
	if p.X != nil {
		pos.X = *p.X
	}
	if p.Y != nil {
		pos.Y = *p.Y
	}
	if p.AlignX != "" || p.AlignY != "" {
		pos = frame.AlignedPosition(p, scene.Frame.Size(), types.Size{W: w, H: h})
	}
	rect := types.Rect{X: pos.X, Y: pos.Y, W: w, H: h}
	if err := checkRect(rect); err != nil {
		return err
	}
	if rect.W == 0 || rect.H == 0 || b.Empty() {
		return nil
	}

	kx := rect.W / float64(b.Dx())
	ky := rect.H / float64(b.Dy())
	s2d := f64.Aff3{
		kx, 0, rect.X - kx*float64(b.Min.X),
		0, ky, rect.Y - ky*float64(b.Min.Y),
	}
	composite(canvas, img, s2d, rect, p.BorderRadius, opacity(p))
	return nil
}

// drawCrop draws the user image so that the crop window maps onto dst.
func (r *Renderer) drawCrop(canvas *image.NRGBA, scene Scene, dst types.Rect, radius, alpha float64) error {
	if dst.W == 0 || dst.H == 0 {
		return nil
	}
	s2d, err := scene.Placement.Into(dst)
	if err != nil {
		return err
	}
	// Placement works in bitmap-relative coordinates
	b := scene.Image.Bounds()
	s2d[2] -= s2d[0] * float64(b.Min.X)
	s2d[5] -= s2d[4] * float64(b.Min.Y)
	composite(canvas, scene.Image, s2d, dst, radius, alpha)
	return nil
}

// composite resamples src through s2d into clip on canvas, masked by a
// rounded rectangle and opacity.
func composite(canvas *image.NRGBA, src image.Image, s2d f64.Aff3, clip types.Rect, radius, alpha float64) {
	area := image.Rect(
		int(math.Floor(clip.X)), int(math.Floor(clip.Y)),
		int(math.Ceil(clip.X+clip.W)), int(math.Ceil(clip.Y+clip.H)),
	).Intersect(canvas.Bounds())
	if area.Empty() {
		return
	}
	layer := image.NewNRGBA(area)
	xdraw.CatmullRom.Transform(layer, s2d, src, src.Bounds(), xdraw.Src, nil)
	mask := clipMask(canvas.Bounds(), clip, radius, alpha)
	draw.DrawMask(canvas, area, layer, area.Min, mask, area.Min, draw.Over)
}

// ── Text runs ──

type textRun interface {
	measure(s string) float64
	wrap(s string, maxWidth float64) []string
	draw(dst draw.Image, s string, x, y float64, col color.Color)
}

type plainRun struct {
	face font.Face
}

func (p plainRun) measure(s string) float64 { return measure(p.face, s) }

func (p plainRun) wrap(s string, maxWidth float64) []string { return wrapText(s, maxWidth, p.face) }

func (p plainRun) draw(dst draw.Image, s string, x, y float64, col color.Color) {
	drawString(dst, s, x, y, col, p.face)
}

// mixedRun draws runes the icon font has with primary and everything else
// with fallback.
type mixedRun struct {
	primary, fallback font.Face
	has               func(rune) bool
}

func (m mixedRun) faceFor(r rune) font.Face {
	if r != ' ' && m.has(r) {
		return m.primary
	}
	return m.fallback
}

func (m mixedRun) measure(s string) float64 {
	var w float64
	for _, r := range s {
		w += measure(m.faceFor(r), string(r))
	}
	return w
}

func (m mixedRun) wrap(s string, _ float64) []string { return []string{s} }

func (m mixedRun) draw(dst draw.Image, s string, x, y float64, col color.Color) {
	for _, r := range s {
		face := m.faceFor(r)
		drawString(dst, string(r), x, y, col, face)
		x += measure(face, string(r))
	}
}
