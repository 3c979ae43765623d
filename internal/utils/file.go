package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var imageExts = []string{"jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp"}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the lowercased file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	ext := GetFileExtension(filename)
	for _, imgExt := range imageExts {
		if ext == imgExt {
			return true
		}
	}
	return false
}

// StripImageExtension removes a trailing image extension, keeping any other
func StripImageExtension(filename string) string {
	if IsImageFile(filename) {
		return strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	return filename
}

// ExportBaseName turns a user or upload file name into a safe export stem.
// Empty results fall back to def.
func ExportBaseName(name, def string) string {
	base := SanitizeFilename(StripImageExtension(filepath.Base(strings.TrimSpace(name))))
	if base == "" || base == "." {
		return def
	}
	return base
}

// ExportFilename builds "{base}{_size}_{W}x{H}.{ext}", or with "_cropped"
// before the dimensions for bare crops. sizeSuffix is empty for the
// original size.
func ExportFilename(base, sizeSuffix string, cropped bool, width, height int, ext string) string {
	var b strings.Builder
	b.WriteString(base)
	if sizeSuffix != "" {
		b.WriteString("_")
		b.WriteString(sizeSuffix)
	}
	if cropped {
		b.WriteString("_cropped")
	}
	fmt.Fprintf(&b, "_%dx%d.%s", width, height, ext)
	return b.String()
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && info.IsDir()
}

// SanitizeFilename removes or replaces invalid characters in filenames
func SanitizeFilename(filename string) string {
	// Replace invalid characters with underscores
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := filename
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	// Remove leading/trailing spaces and dots
	return strings.Trim(result, " .")
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
