package processing

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/framecrop/pkg/mapper"
)

func createTestImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 255 / width), uint8(y * 255 / height), 100, 255})
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"png", FormatPNG, true},
		{" JPG ", FormatJPEG, true},
		{".jpeg", FormatJPEG, true},
		{"WebP", FormatWebP, true},
		{"gif", "", false},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
	if FormatJPEG.Extension() != "jpg" || FormatWebP.Extension() != "webp" {
		t.Error("Unexpected extensions")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(64, 32)

	for _, format := range []Format{FormatPNG, FormatJPEG, FormatWebP} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := p.Encode(&buf, src, format, EncodeOptions{Quality: 80}); err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			img, got, err := p.DecodeBytes(buf.Bytes())
			if err != nil {
				t.Fatalf("DecodeBytes failed: %v", err)
			}
			if got != string(format) {
				t.Errorf("Expected format %s, got %s", format, got)
			}
			if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
				t.Errorf("Unexpected bounds %v", img.Bounds())
			}
		})
	}

	if err := p.Encode(&bytes.Buffer{}, src, "tga", EncodeOptions{}); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor()
	path := filepath.Join(t.TempDir(), "out.webp")
	if err := p.SaveImage(createTestImage(20, 10), path, FormatWebP, EncodeOptions{Lossless: true}); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	img, err := p.LoadImageSmart(path)
	if err != nil {
		t.Fatalf("LoadImageSmart failed: %v", err)
	}
	if img.Bounds().Dx() != 20 {
		t.Errorf("Expected width 20, got %d", img.Bounds().Dx())
	}
	if _, err := p.LoadImage(filepath.Join(t.TempDir(), "missing.png")); !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestLoadImageFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/text" {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("hello"))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, createTestImage(8, 8))
	}))
	defer srv.Close()

	p := NewProcessor()
	img, err := p.LoadImageSmart(srv.URL + "/img.png")
	if err != nil {
		t.Fatalf("LoadImageSmart failed: %v", err)
	}
	if img.Bounds().Dx() != 8 {
		t.Errorf("Expected width 8, got %d", img.Bounds().Dx())
	}
	if _, err := p.LoadImageFromURL(srv.URL + "/text"); err == nil {
		t.Error("Expected error for non-image content type")
	}
	if _, err := p.LoadImageFromURL("ftp://example.com/a.png"); err == nil {
		t.Error("Expected error for unsupported scheme")
	}
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	b64, err := p.PrepareImageForModel(createTestImage(400, 200), FormatJPEG, 100, 85)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	img, _, err := p.DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("Expected 100x50, got %v", img.Bounds())
	}
}

func TestResizeAndFit(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(300, 100)
	if r := p.Resize(src, 30, 20); r.Bounds().Dx() != 30 || r.Bounds().Dy() != 20 {
		t.Errorf("Resize: unexpected bounds %v", r.Bounds())
	}
	if r := p.Resize(src, 300, 100); r.Bounds().Dx() != 300 {
		t.Errorf("Resize to same size: unexpected bounds %v", r.Bounds())
	}
	if f := p.Fit(src, 60, 60); f.Bounds().Dx() != 60 || f.Bounds().Dy() != 20 {
		t.Errorf("Fit: unexpected bounds %v", f.Bounds())
	}
}

func TestCreateCropOverlay(t *testing.T) {
	p := NewProcessor()
	src := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	out := p.CreateCropOverlay(src, mapper.SourceRect{X: 10, Y: 10, W: 50, H: 50})

	if got := color.NRGBAModel.Convert(out.At(10, 30)).(color.NRGBA); got != (color.NRGBA{255, 204, 0, 255}) {
		t.Errorf("Expected outline pixel, got %v", got)
	}
	if got := color.NRGBAModel.Convert(out.At(35, 35)).(color.NRGBA); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("Expected crosshair pixel, got %v", got)
	}
	if got := src.NRGBAAt(10, 30); got.A != 0 {
		t.Error("Overlay must not modify the source image")
	}
}
