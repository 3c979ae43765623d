package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/chai2010/webp"
)

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeFormats(t *testing.T) {
	src := createTestImage(120, 80)

	var jpg, wp bytes.Buffer
	if err := jpeg.Encode(&jpg, src, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode failed: %v", err)
	}
	if err := webp.Encode(&wp, src, &webp.Options{Lossless: true}); err != nil {
		t.Fatalf("webp.Encode failed: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"png", encodePNG(t, src)},
		{"jpeg", jpg.Bytes()},
		{"webp", wp.Bytes()},
	}

	d := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := d.Decode(bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 80 {
				t.Errorf("Expected 120x80, got %v", img.Bounds())
			}
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	pngOnly := NewWithConfig(Config{SupportedFormats: []string{"png"}, MinImageSize: 50}, nil)

	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, createTestImage(100, 100), nil); err != nil {
		t.Fatalf("jpeg.Encode failed: %v", err)
	}
	if _, err := pngOnly.Decode(&jpg); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}

	if _, err := pngOnly.Decode(bytes.NewReader(encodePNG(t, createTestImage(40, 100)))); !errors.Is(err, ErrTooSmall) {
		t.Errorf("Expected ErrTooSmall, got %v", err)
	}

	if _, err := pngOnly.Decode(strings.NewReader("definitely not an image")); err == nil {
		t.Error("Expected error for garbage input")
	}
}

func TestStartResolves(t *testing.T) {
	d := New()
	p := d.Start(context.Background(), bytes.NewReader(encodePNG(t, createTestImage(10, 10))))

	var called bool
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	img, err := p.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if img.Bounds().Dx() != 10 {
		t.Errorf("Expected width 10, got %d", img.Bounds().Dx())
	}

	p.OnDone(func(img image.Image, err error) { called = img != nil && err == nil })
	if !called {
		t.Error("Expected OnDone after completion to run immediately")
	}
}

func TestStartCanceled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := New().Start(ctx, pr)
	cancel()

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Pending did not complete after cancel")
	}
	if _, err := p.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestResolvedPending(t *testing.T) {
	boom := errors.New("boom")
	if _, err := Resolved(nil, boom).Wait(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}
}
