package render

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// FontConfig selects TTF/OTF files. Empty paths use the embedded Go fonts;
// an empty IconFont disables icon glyphs.
type FontConfig struct {
	Regular  string `json:"regular" yaml:"regular"`
	Bold     string `json:"bold" yaml:"bold"`
	IconFont string `json:"icon_font" yaml:"icon_font"`
}

type faceKey struct {
	style fontStyle
	size  float64
}

type fontStyle int

const (
	styleRegular fontStyle = iota
	styleBold
	styleIcon
)

// FontManager handles font loading with fallback and caches faces per size.
type FontManager struct {
	regular *opentype.Font
	bold    *opentype.Font
	icon    *opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
	buf   sfnt.Buffer
}

// NewFontManager loads the configured fonts. Custom fonts that fail to load
// are replaced by the embedded Go fonts with a warning.
func NewFontManager(cfg FontConfig, logger *slog.Logger) (*FontManager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	regular, err := loadFont(cfg.Regular, goregular.TTF, logger)
	if err != nil {
		return nil, err
	}
	bold, err := loadFont(cfg.Bold, gobold.TTF, logger)
	if err != nil {
		return nil, err
	}
	fm := &FontManager{regular: regular, bold: bold, faces: make(map[faceKey]font.Face)}
	if cfg.IconFont != "" {
		icon, err := loadFont(cfg.IconFont, nil, logger)
		if err != nil {
			logger.Warn("icon font unavailable, icons render as bullets", "path", cfg.IconFont, "error", err)
		}
		fm.icon = icon
	}
	return fm, nil
}

func loadFont(path string, fallback []byte, logger *slog.Logger) (*opentype.Font, error) {
	data := fallback
	if path != "" {
		custom, err := os.ReadFile(path)
		if err != nil {
			if fallback == nil {
				return nil, fmt.Errorf("failed to read font: %w", err)
			}
			logger.Warn("could not load custom font, using default", "path", path, "error", err)
		} else {
			data = custom
		}
	}
	if data == nil {
		return nil, nil
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		if path != "" && fallback != nil {
			logger.Warn("could not parse custom font, using default", "path", path, "error", err)
			return opentype.Parse(fallback)
		}
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return parsed, nil
}

// HasIconFont reports whether an icon font is loaded
func (fm *FontManager) HasIconFont() bool {
	return fm.icon != nil
}

// HasIcon reports whether the icon font has a glyph for r
func (fm *FontManager) HasIcon(r rune) bool {
	if fm.icon == nil {
		return false
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()
	idx, err := fm.icon.GlyphIndex(&fm.buf, r)
	return err == nil && idx != 0
}

// Face returns a text face at size pixels
func (fm *FontManager) Face(size float64, bold bool) (font.Face, error) {
	if bold {
		return fm.face(styleBold, size)
	}
	return fm.face(styleRegular, size)
}

// IconFace returns the icon font face, or the regular face when no icon font is loaded
func (fm *FontManager) IconFace(size float64) (font.Face, error) {
	if fm.icon == nil {
		return fm.face(styleRegular, size)
	}
	return fm.face(styleIcon, size)
}

func (fm *FontManager) face(style fontStyle, size float64) (font.Face, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	key := faceKey{style: style, size: size}
	if f, ok := fm.faces[key]; ok {
		return f, nil
	}
	parsed := fm.regular
	switch style {
	case styleBold:
		parsed = fm.bold
	case styleIcon:
		parsed = fm.icon
	}
	// DPI 72 makes one point one pixel
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	fm.faces[key] = face
	return face, nil
}
