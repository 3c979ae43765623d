package mapper

import (
	"errors"
	"math"
	"testing"

	"github.com/menta2k/framecrop/pkg/types"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestMinCoverScale(t *testing.T) {
	s, err := MinCoverScale(1000, 500, 300, 200)
	if err != nil {
		t.Fatalf("MinCoverScale failed: %v", err)
	}
	if !almostEqual(s, 0.4) {
		t.Errorf("Expected min cover scale 0.4, got %f", s)
	}

	tests := []struct {
		name                           string
		imageW, imageH, windowW, windowH float64
	}{
		{"zero image width", 0, 500, 300, 200},
		{"zero window height", 1000, 500, 300, 0},
		{"negative window", 1000, 500, -300, 200},
		{"nan image", math.NaN(), 500, 300, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MinCoverScale(tt.imageW, tt.imageH, tt.windowW, tt.windowH); !errors.Is(err, ErrInvalidDimensions) {
				t.Errorf("Expected ErrInvalidDimensions, got %v", err)
			}
		})
	}
}

func TestClampOffsetScenario(t *testing.T) {
	got := ClampOffset(types.Point{X: 500, Y: 500}, 1000, 500, 1.0, 300, 200)
	if !almostEqual(got.X, 350) || !almostEqual(got.Y, 150) {
		t.Errorf("Expected {350,150}, got %+v", got)
	}

	got = ClampOffset(types.Point{X: -500, Y: -500}, 1000, 500, 1.0, 300, 200)
	if !almostEqual(got.X, -350) || !almostEqual(got.Y, -150) {
		t.Errorf("Expected {-350,-150}, got %+v", got)
	}
}

func TestClampOffsetAtCoverScale(t *testing.T) {
	// The limiting axis has no slack at cover scale; the other keeps
	// whatever the formula allows (400-300)/2 = 50.
	got := ClampOffset(types.Point{X: 500, Y: 500}, 1000, 500, 0.4, 300, 200)
	if got.Y != 0 {
		t.Errorf("Expected Y offset 0 at cover scale, got %f", got.Y)
	}
	if !almostEqual(got.X, 50) {
		t.Errorf("Expected X offset 50, got %f", got.X)
	}

	// Same aspect ratio as the window: both axes collapse.
	minScale, err := MinCoverScale(600, 400, 300, 200)
	if err != nil {
		t.Fatalf("MinCoverScale failed: %v", err)
	}
	for _, req := range []types.Point{{X: 10, Y: 10}, {X: -1e6, Y: 1e6}, {X: 0.1, Y: -0.1}} {
		got := ClampOffset(req, 600, 400, minScale, 300, 200)
		if got.X != 0 || got.Y != 0 {
			t.Errorf("Expected {0,0} for %+v at cover scale, got %+v", req, got)
		}
	}
}

func TestClampOffsetBoundsAndIdempotence(t *testing.T) {
	minScale, _ := MinCoverScale(1000, 500, 300, 200)
	offsets := []types.Point{{X: 0, Y: 0}, {X: 1e4, Y: -1e4}, {X: -37, Y: 12}, {X: 349.9, Y: 150.1}}
	for _, scale := range []float64{minScale, 0.5, 1, 2.5, 5} {
		limit := MaxOffset(1000, 500, scale, 300, 200)
		for _, off := range offsets {
			once := ClampOffset(off, 1000, 500, scale, 300, 200)
			if math.Abs(once.X) > math.Max(0, (1000*scale-300)/2)+1e-9 ||
				math.Abs(once.Y) > math.Max(0, (500*scale-200)/2)+1e-9 {
				t.Errorf("Offset %+v at scale %f exceeds limit %+v", once, scale, limit)
			}
			twice := ClampOffset(once, 1000, 500, scale, 300, 200)
			if once != twice {
				t.Errorf("ClampOffset not idempotent: %+v then %+v", once, twice)
			}
		}
	}
}

func TestClampOffsetNaN(t *testing.T) {
	got := ClampOffset(types.Point{X: math.NaN(), Y: 20}, 1000, 500, 1, 300, 200)
	if got.X != 0 || got.Y != 20 {
		t.Errorf("Expected NaN axis to reset to 0, got %+v", got)
	}
}

func TestScaleBounds(t *testing.T) {
	natural := types.Size{W: 1000, H: 500}
	window := types.Size{W: 300, H: 200}

	minScale, maxScale, err := ScaleBounds(DefaultScalePolicy(), natural, window)
	if err != nil {
		t.Fatalf("ScaleBounds failed: %v", err)
	}
	if !almostEqual(minScale, 0.4) || maxScale != DefaultMaxScale {
		t.Errorf("Expected [0.4, 5], got [%f, %f]", minScale, maxScale)
	}

	proportional := ScalePolicy{Proportional: true, Factor: 5, Ceiling: 10}
	_, maxScale, _ = ScaleBounds(proportional, natural, window)
	if !almostEqual(maxScale, 2.0) {
		t.Errorf("Expected proportional max 2.0, got %f", maxScale)
	}

	// A tiny image needs more than the fixed maximum just to cover.
	minScale, maxScale, _ = ScaleBounds(DefaultScalePolicy(), types.Size{W: 10, H: 10}, window)
	if !almostEqual(minScale, 30) || !almostEqual(maxScale, 30) {
		t.Errorf("Expected collapsed range [30, 30], got [%f, %f]", minScale, maxScale)
	}
	if got := ClampScale(12, minScale, maxScale); got != minScale {
		t.Errorf("Expected min scale to win, got %f", got)
	}
}

func TestSourceRectInvertsForward(t *testing.T) {
	cases := []Placement{
		{Natural: types.Size{W: 1000, H: 500}, Window: types.Size{W: 300, H: 200}, Scale: 0.4},
		{Natural: types.Size{W: 1000, H: 500}, Window: types.Size{W: 300, H: 200}, Scale: 1, Offset: types.Point{X: 350, Y: -150}},
		{Natural: types.Size{W: 640, H: 960}, Window: types.Size{W: 536, H: 920}, Scale: 2.3, Offset: types.Point{X: -12.5, Y: 40}},
	}
	for i, p := range cases {
		src, err := p.SourceRect()
		if err != nil {
			t.Fatalf("case %d: SourceRect failed: %v", i, err)
		}
		fwd, err := p.Forward()
		if err != nil {
			t.Fatalf("case %d: Forward failed: %v", i, err)
		}
		tl := Apply(fwd, types.Point{X: src.X, Y: src.Y})
		br := Apply(fwd, types.Point{X: src.X + src.W, Y: src.Y + src.H})
		if !almostEqual(tl.X, 0) || !almostEqual(tl.Y, 0) ||
			!almostEqual(br.X, p.Window.W) || !almostEqual(br.Y, p.Window.H) {
			t.Errorf("case %d: source rect %+v maps to %+v..%+v, want window %+v", i, src, tl, br, p.Window)
		}
		if !almostEqual(src.W, p.Window.W/p.Scale) || !almostEqual(src.H, p.Window.H/p.Scale) {
			t.Errorf("case %d: unexpected source size %fx%f", i, src.W, src.H)
		}
	}
}

func TestSourceRectCentered(t *testing.T) {
	src, err := SourceRectFor(types.Point{}, 1, 300, 200, 1000, 500)
	if err != nil {
		t.Fatalf("SourceRectFor failed: %v", err)
	}
	want := SourceRect{X: 350, Y: 150, W: 300, H: 200}
	if !almostEqual(src.X, want.X) || !almostEqual(src.Y, want.Y) || !almostEqual(src.W, want.W) || !almostEqual(src.H, want.H) {
		t.Errorf("Expected %+v, got %+v", want, src)
	}

	// Positive offset moves the image right, so the visible source shifts left.
	src, _ = SourceRectFor(types.Point{X: 100}, 1, 300, 200, 1000, 500)
	if !almostEqual(src.X, 250) {
		t.Errorf("Expected sx 250, got %f", src.X)
	}
}

func TestSourceRectInvalid(t *testing.T) {
	if _, err := SourceRectFor(types.Point{}, 1, 0, 200, 1000, 500); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Expected ErrInvalidDimensions for zero window, got %v", err)
	}
	if _, err := SourceRectFor(types.Point{}, 0, 300, 200, 1000, 500); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Expected ErrInvalidDimensions for zero scale, got %v", err)
	}
	if _, err := SourceRectFor(types.Point{X: math.Inf(1)}, 1, 300, 200, 1000, 500); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Expected ErrInvalidDimensions for infinite offset, got %v", err)
	}
}

func TestIntoScalesWindowOntoTarget(t *testing.T) {
	p := Placement{Natural: types.Size{W: 1000, H: 500}, Window: types.Size{W: 300, H: 200}, Scale: 1}
	dst := types.Rect{X: 80, Y: 40, W: 600, H: 400}
	m, err := p.Into(dst)
	if err != nil {
		t.Fatalf("Into failed: %v", err)
	}
	src, _ := p.SourceRect()
	tl := Apply(m, types.Point{X: src.X, Y: src.Y})
	br := Apply(m, types.Point{X: src.X + src.W, Y: src.Y + src.H})
	if !almostEqual(tl.X, 80) || !almostEqual(tl.Y, 40) || !almostEqual(br.X, 680) || !almostEqual(br.Y, 440) {
		t.Errorf("Expected source rect to fill target, got %+v..%+v", tl, br)
	}
}

func TestInvertRoundTrip(t *testing.T) {
	p := Placement{Natural: types.Size{W: 800, H: 600}, Window: types.Size{W: 400, H: 400}, Scale: 1.7, Offset: types.Point{X: 20, Y: -30}}
	fwd, _ := p.Forward()
	inv, err := Invert(fwd)
	if err != nil {
		t.Fatalf("Invert failed: %v", err)
	}
	in := types.Point{X: 123.4, Y: 56.7}
	out := Apply(inv, Apply(fwd, in))
	if !almostEqual(in.X, out.X) || !almostEqual(in.Y, out.Y) {
		t.Errorf("Expected round trip to %+v, got %+v", in, out)
	}
}

func TestOffsetForFocus(t *testing.T) {
	natural := types.Size{W: 1000, H: 500}
	window := types.Size{W: 300, H: 200}

	if got := OffsetForFocus(types.Point{X: 0.5, Y: 0.5}, natural, 1, window); got.X != 0 || got.Y != 0 {
		t.Errorf("Expected centered focus to give {0,0}, got %+v", got)
	}

	// Focus at 40% across: shift image right by 100px.
	got := OffsetForFocus(types.Point{X: 0.4, Y: 0.5}, natural, 1, window)
	if !almostEqual(got.X, 100) || got.Y != 0 {
		t.Errorf("Expected {100,0}, got %+v", got)
	}

	// Focus at the far edge clamps to the legal range.
	got = OffsetForFocus(types.Point{X: 0, Y: 1}, natural, 1, window)
	if !almostEqual(got.X, 350) || !almostEqual(got.Y, -150) {
		t.Errorf("Expected {350,-150}, got %+v", got)
	}
}
