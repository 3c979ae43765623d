// Package export renders a scene at the selected sizes and encodes each
// result as PNG, WebP, JPEG or a single-page PDF.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/menta2k/framecrop/internal/utils"
	"github.com/menta2k/framecrop/pkg/frame"
	"github.com/menta2k/framecrop/pkg/processing"
	"github.com/menta2k/framecrop/pkg/render"
)

// ErrUnsupportedFormat is returned for output formats other than png, webp, jpeg and pdf
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// DefaultBaseName is the file name stem used when none is given
const DefaultBaseName = "cropped-image"

// FormatPDF wraps the PNG rendering in a PDF page
const FormatPDF = "pdf"

// Config holds encoder settings
type Config struct {
	Quality  int  `json:"quality" yaml:"quality"`
	Lossless bool `json:"lossless" yaml:"lossless"`
}

// DefaultConfig returns quality 92, lossy WebP
func DefaultConfig() Config {
	return Config{Quality: 92}
}

// Request describes one export
type Request struct {
	Scene       render.Scene
	Sizes       []string
	Format      string
	BaseName    string
	CroppedOnly bool
}

// Artifact is one encoded output file
type Artifact struct {
	Filename string
	Size     frame.ExportSize
	Width    int
	Height   int
	Format   string
	Data     []byte
}

// Exporter renders and encodes exports
type Exporter struct {
	renderer  *render.Renderer
	processor *processing.Processor
	config    Config
	log       *slog.Logger
}

// New creates an exporter drawing with r
func New(r *render.Renderer, config Config, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = DefaultConfig().Quality
	}
	return &Exporter{
		renderer:  r,
		processor: processing.NewProcessor(),
		config:    config,
		log:       logger.With(slog.String("component", "export")),
	}
}

// ParseFormat normalizes an export format name
func ParseFormat(s string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(s), FormatPDF) {
		return FormatPDF, nil
	}
	f, err := processing.ParseFormat(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return string(f), nil
}

func extension(format string) string {
	if format == FormatPDF {
		return FormatPDF
	}
	return processing.Format(format).Extension()
}

// Export renders every requested size. The full composite is rendered once
// at frame size and resampled per size; bare crops are rendered directly at
// each size's scale.
func (e *Exporter) Export(ctx context.Context, req Request) ([]Artifact, error) {
	if req.Scene.Frame == nil {
		return nil, render.ErrNoFrame
	}
	format, err := ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	sizes := req.Sizes
	if len(sizes) == 0 {
		sizes = []string{frame.OriginalSize}
	}
	resolved := make([]frame.ExportSize, 0, len(sizes))
	for _, name := range sizes {
		es, err := req.Scene.Frame.ExportSize(name)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, es)
	}
	base := utils.ExportBaseName(req.BaseName, DefaultBaseName)

	var composite *image.NRGBA
	if !req.CroppedOnly {
		composite, err = e.renderer.Render(ctx, req.Scene)
		if err != nil {
			return nil, err
		}
	}

	artifacts := make([]Artifact, 0, len(resolved))
	for _, es := range resolved {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var img *image.NRGBA
		if req.CroppedOnly {
			img, err = e.renderer.RenderCrop(req.Scene, es.Scale)
			if err != nil {
				return nil, err
			}
		} else {
			img = e.resize(composite, es)
		}

		data, err := e.encode(img, format)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", es.Name, err)
		}
		suffix := es.Name
		if suffix == frame.OriginalSize {
			suffix = ""
		}
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		artifact := Artifact{
			Filename: utils.ExportFilename(base, suffix, req.CroppedOnly, w, h, extension(format)),
			Size:     es,
			Width:    w,
			Height:   h,
			Format:   format,
			Data:     data,
		}
		e.log.Debug("export rendered", "file", artifact.Filename, "bytes", len(data))
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

func (e *Exporter) resize(composite *image.NRGBA, es frame.ExportSize) *image.NRGBA {
	if es.Name == frame.OriginalSize {
		return composite
	}
	w := max(1, int(math.Round(es.Width)))
	h := max(1, int(math.Round(es.Height)))
	return e.processor.Resize(composite, w, h)
}

func (e *Exporter) encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	if format == FormatPDF {
		if err := writePDF(&buf, img, e.processor); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	opts := processing.EncodeOptions{Quality: e.config.Quality, Lossless: e.config.Lossless}
	if err := e.processor.Encode(&buf, img, processing.Format(format), opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writePDF places img on a single page of exactly its pixel size in points
func writePDF(w *bytes.Buffer, img image.Image, proc *processing.Processor) error {
	b := img.Bounds()
	width, height := float64(b.Dx()), float64(b.Dy())

	var raster bytes.Buffer
	if err := proc.Encode(&raster, img, processing.FormatPNG, processing.EncodeOptions{}); err != nil {
		return err
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetCreator("framecrop", false)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("P", gofpdf.SizeType{Wd: width, Ht: height})

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("export", opts, &raster)
	pdf.ImageOptions("export", 0, 0, width, height, false, opts, 0, "")
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return pdf.Output(w)
}

// Save writes artifacts into dir and returns their paths
func Save(dir string, artifacts []Artifact) ([]string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		path := filepath.Join(dir, a.Filename)
		if err := os.WriteFile(path, a.Data, 0644); err != nil {
			return paths, fmt.Errorf("write %s: %w", a.Filename, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
