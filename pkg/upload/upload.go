// Package upload decodes user supplied images and signals completion
// through a Pending value the caller awaits before touching geometry.
package upload

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/menta2k/framecrop/pkg/processing"
)

var (
	// ErrUnsupportedFormat is returned for decodable formats outside Config.SupportedFormats
	ErrUnsupportedFormat = errors.New("upload: unsupported image format")
	// ErrTooSmall is returned for images below Config.MinImageSize
	ErrTooSmall = errors.New("upload: image too small")
)

// Config holds decoder limits
type Config struct {
	SupportedFormats []string `json:"supported_formats" yaml:"supported_formats"`
	MinImageSize     int      `json:"min_image_size" yaml:"min_image_size"`
}

// DefaultConfig accepts every format the decoder understands, at least 1x1
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"jpeg", "png", "gif", "bmp", "tiff", "webp"},
		MinImageSize:     1,
	}
}

// Decoder turns uploaded bytes into bitmaps
type Decoder struct {
	config    Config
	processor *processing.Processor
	log       *slog.Logger
}

// New creates a decoder with default configuration
func New() *Decoder {
	return NewWithConfig(DefaultConfig(), nil)
}

// NewWithConfig creates a decoder with custom configuration. A nil logger
// uses slog.Default().
func NewWithConfig(config Config, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MinImageSize < 1 {
		config.MinImageSize = 1
	}
	return &Decoder{
		config:    config,
		processor: processing.NewProcessor(),
		log:       logger.With(slog.String("component", "upload")),
	}
}

// Decode reads and validates one image
func (d *Decoder) Decode(r io.Reader) (image.Image, error) {
	img, format, err := d.processor.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if !d.isFormatSupported(format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err := d.ValidateImage(img); err != nil {
		return nil, err
	}
	d.log.Debug("image decoded", "format", format, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

func (d *Decoder) isFormatSupported(format string) bool {
	if len(d.config.SupportedFormats) == 0 {
		return true
	}
	for _, supported := range d.config.SupportedFormats {
		if strings.EqualFold(format, supported) || (format == "jpeg" && strings.EqualFold(supported, "jpg")) {
			return true
		}
	}
	return false
}

// ValidateImage checks if an image meets minimum requirements
func (d *Decoder) ValidateImage(img image.Image) error {
	b := img.Bounds()
	if b.Dx() < d.config.MinImageSize || b.Dy() < d.config.MinImageSize {
		return fmt.Errorf("%w: %dx%d (minimum: %d)", ErrTooSmall, b.Dx(), b.Dy(), d.config.MinImageSize)
	}
	return nil
}

// Start decodes r on a new goroutine. The decode is abandoned, and Wait
// returns ctx's error, if ctx ends first.
func (d *Decoder) Start(ctx context.Context, r io.Reader) *Pending {
	p := newPending()
	go func() {
		img, err := d.Decode(r)
		if err != nil {
			p.reject(err)
			return
		}
		p.resolve(img)
	}()
	go func() {
		select {
		case <-ctx.Done():
			p.reject(ctx.Err())
		case <-p.done:
		}
	}()
	return p
}

// DoneCallback receives a Pending's outcome
type DoneCallback func(img image.Image, err error)

// Pending is an in-flight decode. It completes exactly once.
type Pending struct {
	mu        sync.Mutex
	done      chan struct{}
	img       image.Image
	err       error
	callbacks []DoneCallback
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Resolved returns an already completed Pending
func Resolved(img image.Image, err error) *Pending {
	p := newPending()
	if err != nil {
		p.reject(err)
	} else {
		p.resolve(img)
	}
	return p
}

func (p *Pending) resolve(img image.Image) { p.complete(img, nil) }

func (p *Pending) reject(err error) { p.complete(nil, err) }

func (p *Pending) complete(img image.Image, err error) {
	p.mu.Lock()
	select {
	case <-p.done:
		p.mu.Unlock()
		return
	default:
	}
	p.img, p.err = img, err
	close(p.done)
	callbacks := p.callbacks
	p.callbacks = nil
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(img, err)
	}
}

// Done is closed once the decode has finished
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the decode finishes or ctx ends
func (p *Pending) Wait(ctx context.Context) (image.Image, error) {
	select {
	case <-p.done:
		return p.img, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnDone registers cb to run with the outcome. If the decode already
// finished cb runs immediately on the caller's goroutine.
func (p *Pending) OnDone(cb DoneCallback) {
	p.mu.Lock()
	select {
	case <-p.done:
		p.mu.Unlock()
		cb(p.img, p.err)
		return
	default:
	}
	p.callbacks = append(p.callbacks, cb)
	p.mu.Unlock()
}
