// Package focus picks the point of an image that automatic placement should
// center in the crop window.
package focus

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/menta2k/framecrop/pkg/detection"
	"github.com/menta2k/framecrop/pkg/llamacpp"
	"github.com/menta2k/framecrop/pkg/ollama"
	"github.com/menta2k/framecrop/pkg/processing"
	"github.com/menta2k/framecrop/pkg/types"
	"github.com/menta2k/framecrop/pkg/vision"
)

// Backend names accepted by Config.Backend
const (
	BackendNone     = "none"
	BackendSaliency = "saliency"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// ErrUnknownBackend is returned by New for unrecognized backend names
var ErrUnknownBackend = errors.New("focus: unknown backend")

// Locator returns a focus point normalized to [0,1] on both axes
type Locator interface {
	Locate(ctx context.Context, img image.Image) (types.Point, error)
}

// Config selects and tunes a locator
type Config struct {
	Backend       string                 `json:"backend" yaml:"backend"`
	URL           string                 `json:"url" yaml:"url"`
	Model         string                 `json:"model" yaml:"model"`
	Prompt        string                 `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	MaxDimension  int                    `json:"max_dimension" yaml:"max_dimension"`
	Quality       int                    `json:"quality" yaml:"quality"`
	MinConfidence float64                `json:"min_confidence" yaml:"min_confidence"`
	Timeout       time.Duration          `json:"timeout" yaml:"timeout"`
	Saliency      vision.DetectionConfig `json:"saliency" yaml:"saliency"`
}

// DefaultConfig disables automatic focus
func DefaultConfig() Config {
	return Config{
		Backend:       BackendNone,
		URL:           "http://localhost:11434",
		Model:         "minicpm-v",
		MaxDimension:  768,
		Quality:       85,
		MinConfidence: 0.3,
		Timeout:       2 * time.Minute,
		Saliency:      vision.DefaultConfig(),
	}
}

// New builds the locator cfg names
func New(cfg Config, logger *slog.Logger) (Locator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "focus"))

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone, "center":
		return Center{}, nil
	case BackendSaliency:
		return NewSaliency(vision.NewWithConfig(cfg.Saliency)), nil
	case BackendOllama:
		c, err := ollama.NewClient(cfg.URL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return NewModel(detection.NewDetector(c, cfg.Model, detectorOptions(cfg, logger)...), cfg, logger), nil
	case BackendLlamaCpp:
		c, err := llamacpp.NewClient(cfg.URL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return NewModel(detection.NewDetector(c, cfg.Model, detectorOptions(cfg, logger)...), cfg, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}

func detectorOptions(cfg Config, logger *slog.Logger) []detection.Option {
	return []detection.Option{
		detection.WithPrompt(cfg.Prompt),
		detection.WithMinConfidence(cfg.MinConfidence),
		detection.WithLogger(logger),
	}
}

// Center always returns the image center
type Center struct{}

func (Center) Locate(context.Context, image.Image) (types.Point, error) {
	return types.Point{X: 0.5, Y: 0.5}, nil
}

// Saliency locates the most salient region offline
type Saliency struct {
	detector *vision.SubjectDetector
}

// NewSaliency wraps d
func NewSaliency(d *vision.SubjectDetector) *Saliency {
	return &Saliency{detector: d}
}

func (s *Saliency) Locate(ctx context.Context, img image.Image) (types.Point, error) {
	if err := ctx.Err(); err != nil {
		return types.Point{}, err
	}
	return s.detector.Focus(img)
}

// Model asks a vision model for the subject. When the model finds none the
// image center is returned.
type Model struct {
	detector  *detection.Detector
	processor *processing.Processor
	maxDim    int
	quality   int
	log       *slog.Logger
}

// NewModel wraps d, downscaling images per cfg before upload
func NewModel(d *detection.Detector, cfg Config, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = def.MaxDimension
	}
	if cfg.Quality <= 0 {
		cfg.Quality = def.Quality
	}
	return &Model{
		detector:  d,
		processor: processing.NewProcessor(),
		maxDim:    cfg.MaxDimension,
		quality:   cfg.Quality,
		log:       logger,
	}
}

func (m *Model) Locate(ctx context.Context, img image.Image) (types.Point, error) {
	b64, err := m.processor.PrepareImageForModel(img, processing.FormatJPEG, m.maxDim, m.quality)
	if err != nil {
		return types.Point{}, fmt.Errorf("prepare image: %w", err)
	}
	start := time.Now()
	result, err := m.detector.Detect(ctx, b64)
	if errors.Is(err, detection.ErrNoSubject) {
		m.log.Info("no subject found, centering", "elapsed", time.Since(start))
		return Center{}.Locate(ctx, img)
	}
	if err != nil {
		return types.Point{}, err
	}
	p := result.Focus()
	m.log.Info("subject located",
		"label", result.Primary.Label,
		"confidence", result.Primary.Confidence,
		"x", p.X, "y", p.Y,
		"elapsed", time.Since(start))
	return p, nil
}
