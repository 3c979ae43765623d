package vision

import (
	"image"
	"image/color"
	"testing"
)

// createTestImage draws a white square on black; the square spans
// [x0,x1)x[y0,y1) as fractions of the image size
func createTestImage(width, height int, x0, y0, x1, y1 float64) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fx, fy := float64(x)/float64(width), float64(y)/float64(height)
			if fx >= x0 && fx < x1 && fy >= y0 && fy < y1 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}
	return img
}

func TestNew(t *testing.T) {
	detector := New()
	if detector.config.EdgeThreshold != 0.01 {
		t.Errorf("Expected edge threshold 0.01, got %f", detector.config.EdgeThreshold)
	}
	if detector.config.TopRegions != 5 {
		t.Errorf("Expected 5 top regions, got %d", detector.config.TopRegions)
	}
}

func TestNewWithConfigFillsDefaults(t *testing.T) {
	detector := NewWithConfig(DetectionConfig{EdgeThreshold: 0.2})
	if detector.config.EdgeThreshold != 0.2 {
		t.Errorf("Expected edge threshold 0.2, got %f", detector.config.EdgeThreshold)
	}
	if detector.config.MaxDimension != 256 {
		t.Errorf("Expected default max dimension, got %d", detector.config.MaxDimension)
	}
}

func TestRegionGeometry(t *testing.T) {
	region := Region{X: 10, Y: 20, Width: 100, Height: 80}
	if x, y := region.Center(); x != 60 || y != 60 {
		t.Errorf("Expected center (60,60), got (%d,%d)", x, y)
	}
	if region.Area() != 8000 {
		t.Errorf("Expected area 8000, got %d", region.Area())
	}
}

func TestDetectSubjects(t *testing.T) {
	detector := New()
	img := createTestImage(200, 200, 0.2, 0.2, 0.4, 0.4)

	regions, err := detector.DetectSubjects(img)
	if err != nil {
		t.Fatalf("DetectSubjects failed: %v", err)
	}
	if len(regions) == 0 {
		t.Fatal("Expected to detect at least one region")
	}
	for i := 1; i < len(regions); i++ {
		if regions[i].Score > regions[i-1].Score {
			t.Errorf("Regions not sorted by score at %d", i)
		}
	}
}

func TestFocusFollowsSubject(t *testing.T) {
	detector := New()

	p, err := detector.Focus(createTestImage(200, 200, 0.2, 0.2, 0.4, 0.4))
	if err != nil {
		t.Fatalf("Focus failed: %v", err)
	}
	if p.X > 0.45 || p.Y > 0.45 {
		t.Errorf("Expected focus in the top-left quadrant, got %+v", p)
	}

	p, err = detector.Focus(createTestImage(200, 200, 0.6, 0.6, 0.8, 0.8))
	if err != nil {
		t.Fatalf("Focus failed: %v", err)
	}
	if p.X < 0.55 || p.Y < 0.55 {
		t.Errorf("Expected focus in the bottom-right quadrant, got %+v", p)
	}
}

func TestFocusDownsamplesLargeImages(t *testing.T) {
	detector := New()
	p, err := detector.Focus(createTestImage(800, 400, 0.6, 0.3, 0.8, 0.7))
	if err != nil {
		t.Fatalf("Focus failed: %v", err)
	}
	if p.X < 0.55 || p.X > 0.85 {
		t.Errorf("Expected focus x inside the square, got %+v", p)
	}
}

func TestFocusOnBlankImageIsCenter(t *testing.T) {
	detector := New()
	p, err := detector.Focus(createTestImage(100, 100, 0, 0, 0, 0))
	if err != nil {
		t.Fatalf("Focus failed: %v", err)
	}
	if p.X != 0.5 || p.Y != 0.5 {
		t.Errorf("Expected center, got %+v", p)
	}
}

func TestCalculateSaliencyMap(t *testing.T) {
	detector := New()
	saliencyMap := detector.calculateSaliencyMap(createTestImage(100, 100, 0.25, 0.25, 0.5, 0.5))

	if len(saliencyMap) != 100 || len(saliencyMap[0]) != 100 {
		t.Fatalf("Expected 100x100 map, got %dx%d", len(saliencyMap[0]), len(saliencyMap))
	}
	if saliencyMap[10][10] != 0 {
		t.Errorf("Expected zero saliency on flat black, got %f", saliencyMap[10][10])
	}
	if saliencyMap[35][35] <= 0 {
		t.Error("Expected positive saliency inside the square")
	}
}

func BenchmarkFocus(b *testing.B) {
	detector := New()
	img := createTestImage(1200, 800, 0.3, 0.3, 0.6, 0.6)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		detector.Focus(img)
	}
}
