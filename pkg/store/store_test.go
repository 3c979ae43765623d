package store

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/menta2k/framecrop/pkg/frame"
	"github.com/menta2k/framecrop/pkg/mapper"
	"github.com/menta2k/framecrop/pkg/types"
)

func createTestImage(width, height int) image.Image {
	return image.NewNRGBA(image.Rect(0, 0, width, height))
}

func newFrame(t *testing.T, w, h float64) *frame.Frame {
	t.Helper()
	f, err := frame.NewCustom(w, h)
	if err != nil {
		t.Fatalf("NewCustom failed: %v", err)
	}
	return f
}

func loadImage(t *testing.T, s *Store, w, h int) string {
	t.Helper()
	key := s.AddImage("photo.jpg")
	gen, err := s.BeginLoad(key)
	if err != nil {
		t.Fatalf("BeginLoad failed: %v", err)
	}
	if err := s.CompleteLoad(key, gen, createTestImage(w, h)); err != nil {
		t.Fatalf("CompleteLoad failed: %v", err)
	}
	return key
}

func TestCompleteLoadStartsAtCoverScale(t *testing.T) {
	s := New(mapper.DefaultScalePolicy(), nil)
	if err := s.SelectFrame(newFrame(t, 300, 200)); err != nil {
		t.Fatalf("SelectFrame failed: %v", err)
	}
	key := loadImage(t, s, 1000, 500)

	img, err := s.Image(key)
	if err != nil {
		t.Fatalf("Image failed: %v", err)
	}
	if !img.Initialized || math.Abs(img.Scale-0.4) > 1e-9 || img.Offset != (types.Point{}) {
		t.Errorf("Unexpected initial state: %+v", img)
	}
	if img.Natural != (types.Size{W: 1000, H: 500}) {
		t.Errorf("Unexpected natural size %+v", img.Natural)
	}
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	s := New(mapper.DefaultScalePolicy(), nil)
	key := s.AddImage("a.png")

	first, _ := s.BeginLoad(key)
	second, _ := s.BeginLoad(key)

	if err := s.CompleteLoad(key, first, createTestImage(10, 10)); !errors.Is(err, ErrStaleLoad) {
		t.Errorf("Expected ErrStaleLoad for superseded decode, got %v", err)
	}
	if img, _ := s.Image(key); img.Initialized {
		t.Error("Stale decode must not initialize the image")
	}
	if err := s.CompleteLoad(key, second, createTestImage(20, 10)); err != nil {
		t.Fatalf("CompleteLoad failed: %v", err)
	}
	if img, _ := s.Image(key); img.Natural.W != 20 {
		t.Errorf("Expected current decode to win, got %+v", img.Natural)
	}
}

func TestDecodeForRemovedImageIsDiscarded(t *testing.T) {
	s := New(mapper.DefaultScalePolicy(), nil)
	key := s.AddImage("a.png")
	gen, _ := s.BeginLoad(key)
	if err := s.RemoveImage(key); err != nil {
		t.Fatalf("RemoveImage failed: %v", err)
	}
	if err := s.CompleteLoad(key, gen, createTestImage(10, 10)); !errors.Is(err, ErrUnknownImage) {
		t.Errorf("Expected ErrUnknownImage, got %v", err)
	}
}

func TestFailLoadDropsHandle(t *testing.T) {
	s := New(mapper.DefaultScalePolicy(), nil)
	key := s.AddImage("broken.png")
	gen, _ := s.BeginLoad(key)
	s.FailLoad(key, gen)

	if _, err := s.Image(key); !errors.Is(err, ErrUnknownImage) {
		t.Errorf("Expected failed image to be removed, got %v", err)
	}
	if _, ok := s.Selected(); ok {
		t.Error("Expected no selection after the only image failed")
	}
}

func TestRemoveSelectsNeighbour(t *testing.T) {
	s := New(mapper.DefaultScalePolicy(), nil)
	a := s.AddImage("a")
	b := s.AddImage("b")
	c := s.AddImage("c")
	if err := s.Select(b); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if err := s.RemoveImage(b); err != nil {
		t.Fatalf("RemoveImage failed: %v", err)
	}
	sel, ok := s.Selected()
	if !ok || sel.Key != c {
		t.Errorf("Expected %s selected, got %+v", c, sel)
	}
	if got := len(s.Images()); got != 2 {
		t.Errorf("Expected 2 images, got %d", got)
	}
	if err := s.Select(a); err != nil {
		t.Errorf("Select failed: %v", err)
	}
}

func TestSetTransformClamps(t *testing.T) {
	s := New(mapper.DefaultScalePolicy(), nil)
	if err := s.SelectFrame(newFrame(t, 300, 200)); err != nil {
		t.Fatalf("SelectFrame failed: %v", err)
	}
	key := loadImage(t, s, 1000, 500)

	if err := s.SetTransform(key, 1, types.Point{X: 500, Y: 500}); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}
	img, _ := s.Image(key)
	if img.Scale != 1 || img.Offset != (types.Point{X: 350, Y: 150}) {
		t.Errorf("Expected scale 1 offset {350,150}, got %f %+v", img.Scale, img.Offset)
	}

	if err := s.SetTransform(key, 50, types.Point{}); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}
	if img, _ := s.Image(key); img.Scale != mapper.DefaultMaxScale {
		t.Errorf("Expected scale clamped to %f, got %f", mapper.DefaultMaxScale, img.Scale)
	}

	if err := s.SetTransform(key, 0.01, types.Point{X: 80}); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}
	img, _ = s.Image(key)
	if math.Abs(img.Scale-0.4) > 1e-9 || img.Offset.X != 50 {
		t.Errorf("Expected cover scale with X slack 50, got %f %+v", img.Scale, img.Offset)
	}
}

func TestSetOffsetRequiresDecodedImage(t *testing.T) {
	s := New(mapper.DefaultScalePolicy(), nil)
	if err := s.SelectFrame(newFrame(t, 300, 200)); err != nil {
		t.Fatalf("SelectFrame failed: %v", err)
	}
	key := s.AddImage("pending.png")
	if err := s.SetOffset(key, types.Point{X: 1}); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
	if err := s.SetOffset("missing", types.Point{}); !errors.Is(err, ErrUnknownImage) {
		t.Errorf("Expected ErrUnknownImage, got %v", err)
	}
}

func TestSelectFrameReclampsImages(t *testing.T) {
	s := New(mapper.DefaultScalePolicy(), nil)
	if err := s.SelectFrame(newFrame(t, 300, 200)); err != nil {
		t.Fatalf("SelectFrame failed: %v", err)
	}
	key := loadImage(t, s, 1000, 500)
	if err := s.SetTransform(key, 0.5, types.Point{X: 100, Y: 25}); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}

	// A taller window needs a larger cover scale: 500/500 = 1.
	if err := s.SelectFrame(newFrame(t, 300, 500)); err != nil {
		t.Fatalf("SelectFrame failed: %v", err)
	}
	img, _ := s.Image(key)
	if img.Scale != 1 {
		t.Errorf("Expected scale raised to cover 1.0, got %f", img.Scale)
	}
	if img.Offset.Y != 0 || img.Offset.X != 100 {
		t.Errorf("Expected offset {100,0}, got %+v", img.Offset)
	}
}

func TestParametersAndExportSettings(t *testing.T) {
	s := New(mapper.DefaultScalePolicy(), nil)
	ravn, err := frame.Lookup("ravn-card")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if err := s.SelectFrame(ravn); err != nil {
		t.Fatalf("SelectFrame failed: %v", err)
	}

	if err := s.SetParameter(ravn.ID, "cardTitle", "Ada"); err != nil {
		t.Fatalf("SetParameter failed: %v", err)
	}
	if err := s.SetParameter(ravn.ID, "nope", "x"); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("Expected ErrUnknownParameter, got %v", err)
	}
	params := s.Parameters(ravn.ID)
	if params["cardTitle"] != "Ada" || params["backgroundColor"] != "lightBlue" {
		t.Errorf("Unexpected parameters %v", params)
	}

	if err := s.ToggleExportSize("large"); err != nil {
		t.Fatalf("ToggleExportSize failed: %v", err)
	}
	if err := s.ToggleExportSize("original"); err != nil {
		t.Fatalf("ToggleExportSize failed: %v", err)
	}
	if err := s.ToggleExportSize("giant"); !errors.Is(err, frame.ErrUnknownSize) {
		t.Errorf("Expected ErrUnknownSize, got %v", err)
	}
	s.SetExportFormat(" WebP ")
	s.SetBaseName("")
	got := s.ExportSettings()
	if len(got.Sizes) != 1 || got.Sizes[0] != "large" || got.Format != "webp" || got.BaseName != DefaultBaseName {
		t.Errorf("Unexpected export settings %+v", got)
	}

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Frame.ID != "ravn-card" || snap.Window != (types.Rect{X: 80, Y: 80, W: 536, H: 920}) || snap.Params["cardTitle"] != "Ada" {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}

func TestCustomFrames(t *testing.T) {
	s := New(mapper.DefaultScalePolicy(), nil)
	f := newFrame(t, 640, 480)
	if err := s.AddCustomFrame(f); err != nil {
		t.Fatalf("AddCustomFrame failed: %v", err)
	}
	got, err := s.FrameByID(f.ID)
	if err != nil || got != f {
		t.Errorf("Expected custom frame lookup, got %v (%v)", got, err)
	}
	if _, err := s.FrameByID("l-square"); err != nil {
		t.Errorf("Expected catalog fallback, got %v", err)
	}
	if err := s.AddCustomFrame(&frame.Frame{ID: "bad", Title: "Bad"}); err == nil {
		t.Error("Expected invalid custom frame to be rejected")
	}
	if _, err := (&Store{}).Snapshot(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame, got %v", err)
	}
}
