package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExportFilename(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		size    string
		cropped bool
		w, h    int
		ext     string
		want    string
	}{
		{"original", "cropped-image", "", false, 688, 1046, "png", "cropped-image_688x1046.png"},
		{"named size", "card", "large", false, 1376, 2092, "webp", "card_large_1376x2092.webp"},
		{"cropped original", "card", "", true, 536, 920, "jpg", "card_cropped_536x920.jpg"},
		{"cropped size", "card", "thumbnail", true, 268, 460, "pdf", "card_thumbnail_cropped_268x460.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExportFilename(tt.base, tt.size, tt.cropped, tt.w, tt.h, tt.ext); got != tt.want {
				t.Errorf("ExportFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExportBaseName(t *testing.T) {
	tests := map[string]string{
		"holiday.PNG":     "holiday",
		"photo.final.jpg": "photo.final",
		"notes.txt":       "notes.txt",
		"  ":              "cropped-image",
		"a:b?.webp":       "a_b_",
		"/tmp/dir/x.png":  "x",
		".png":            "cropped-image",
	}
	for in, want := range tests {
		if got := ExportBaseName(in, "cropped-image"); got != want {
			t.Errorf("ExportBaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFileHelpers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if !DirExists(dir) || FileExists(dir) {
		t.Error("Expected a directory")
	}
	file := filepath.Join(dir, "img.webp")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if !FileExists(file) || !IsImageFile(file) || GetFileExtension(file) != "webp" {
		t.Error("Expected an image file")
	}
	if FormatFileSize(2048) != "2.0 KB" || FormatFileSize(10) != "10 B" {
		t.Errorf("Unexpected sizes %q %q", FormatFileSize(2048), FormatFileSize(10))
	}
}
