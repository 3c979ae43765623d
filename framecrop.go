// Package framecrop places a user photo inside a decorated frame template and
// exports the composite.
//
// A Session ties the pieces together: images are decoded in the background
// and committed to a state store, a controller turns pointer and wheel input
// into clamped offsets and zoom, a renderer composites the frame's layers
// around the crop, and an exporter writes PNG, WebP, JPEG or PDF files at the
// frame's named sizes.
//
// Basic usage:
//
//	s, err := framecrop.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.SelectFrameByID("ravn-card"); err != nil {
//		log.Fatal(err)
//	}
//	f, _ := os.Open("photo.jpg")
//	load, err := s.Load(ctx, "photo.jpg", f)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := load.Wait(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	// drag 40px to the right
//	c := s.Controller()
//	c.PointerDown(types.Point{X: 100, Y: 100})
//	c.PointerMove(types.Point{X: 140, Y: 100})
//	c.PointerUp()
//
//	paths, err := s.ExportTo(ctx, "./output")
//
// The packages underneath can be used on their own: pkg/mapper holds the
// placement math, pkg/frame the template model and catalog, pkg/render the
// compositor and pkg/export the encoders.
package framecrop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/menta2k/framecrop/internal/config"
	"github.com/menta2k/framecrop/pkg/controller"
	"github.com/menta2k/framecrop/pkg/export"
	"github.com/menta2k/framecrop/pkg/focus"
	"github.com/menta2k/framecrop/pkg/frame"
	"github.com/menta2k/framecrop/pkg/mapper"
	"github.com/menta2k/framecrop/pkg/render"
	"github.com/menta2k/framecrop/pkg/store"
	"github.com/menta2k/framecrop/pkg/upload"
)

// Version of the framecrop library
const Version = "0.3.0"

// ErrClosed is returned by operations on a closed session
var ErrClosed = errors.New("framecrop: session closed")

// Session is one editing session: a set of images, the selected frame and
// the export settings. It is safe for concurrent use.
type Session struct {
	cfg       *config.Config
	store     *store.Store
	decoder   *upload.Decoder
	ctrl      *controller.Controller
	renderer  *render.Renderer
	target    *render.Target
	exporter  *export.Exporter
	locator   focus.Locator
	autoFocus bool
	log       *slog.Logger

	mu     sync.Mutex
	closed bool
	loads  sync.WaitGroup
}

// Option customizes a Session
type Option func(*options)

type options struct {
	logger   *slog.Logger
	assets   render.Assets
	locator  focus.Locator
	ctrlOpts []controller.Option
}

// WithLogger sets the session logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithAssets replaces the directory asset source for static image layers
func WithAssets(a render.Assets) Option {
	return func(o *options) { o.assets = a }
}

// WithLocator replaces the configured focus backend. Loads are then
// auto-placed with it.
func WithLocator(l focus.Locator) Option {
	return func(o *options) { o.locator = l }
}

// WithControllerOptions passes options through to the controller
func WithControllerOptions(opts ...controller.Option) Option {
	return func(o *options) { o.ctrlOpts = append(o.ctrlOpts, opts...) }
}

// New creates a session with the default configuration
func New(opts ...Option) (*Session, error) {
	return NewWithConfig(config.Default(), opts...)
}

// NewWithConfig creates a session from cfg
func NewWithConfig(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	renderer, err := render.New(cfg.Render, o.assets, logger)
	if err != nil {
		return nil, err
	}

	autoFocus := o.locator != nil
	locator := o.locator
	if locator == nil {
		locator, err = focus.New(cfg.Focus, logger)
		if err != nil {
			return nil, err
		}
		if _, center := locator.(focus.Center); !center {
			autoFocus = true
		}
	}

	st := store.New(cfg.Interaction.Scale, logger)
	st.SetExportFormat(cfg.Export.Format)
	st.SetCroppedOnly(cfg.Export.CroppedOnly)

	ctrlOpts := append([]controller.Option{controller.WithLogger(logger)}, o.ctrlOpts...)
	s := &Session{
		cfg:       cfg,
		store:     st,
		decoder:   upload.NewWithConfig(cfg.Upload, logger),
		ctrl:      controller.New(st, cfg.Interaction.Config, ctrlOpts...),
		renderer:  renderer,
		target:    render.NewTarget(renderer),
		exporter:  export.New(renderer, cfg.Export.Config, logger),
		locator:   locator,
		autoFocus: autoFocus,
		log:       logger.With(slog.String("component", "session")),
	}
	return s, nil
}

// Store exposes the session state
func (s *Session) Store() *store.Store { return s.store }

// Controller returns the drag and zoom controller for the selected image
func (s *Session) Controller() *controller.Controller { return s.ctrl }

// Loading tracks one background decode
type Loading struct {
	Key  string
	done chan struct{}
	err  error
}

// Done is closed once the image is committed or has failed
func (l *Loading) Done() <-chan struct{} { return l.done }

// Wait blocks until the load finishes or ctx ends
func (l *Loading) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Load adds an image named name and decodes r in the background
func (s *Session) Load(ctx context.Context, name string, r io.Reader) (*Loading, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	key := s.store.AddImage(name)
	gen, err := s.store.BeginLoad(key)
	if err != nil {
		return nil, err
	}
	return s.track(ctx, key, gen, s.decoder.Start(ctx, r)), nil
}

// LoadDecoded adds an image that is already decoded, such as one fetched
// from a URL
func (s *Session) LoadDecoded(ctx context.Context, name string, img image.Image) (*Loading, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := s.decoder.ValidateImage(img); err != nil {
		return nil, err
	}
	key := s.store.AddImage(name)
	gen, err := s.store.BeginLoad(key)
	if err != nil {
		return nil, err
	}
	return s.track(ctx, key, gen, upload.Resolved(img, nil)), nil
}

// Replace decodes new content for an existing image. A decode still running
// for key is discarded when it finishes; if the replacement fails the
// previous bitmap stays.
func (s *Session) Replace(ctx context.Context, key, name string, r io.Reader) (*Loading, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := s.store.SetFilename(key, name); err != nil {
		return nil, err
	}
	gen, err := s.store.BeginLoad(key)
	if err != nil {
		return nil, err
	}
	return s.track(ctx, key, gen, s.decoder.Start(ctx, r)), nil
}

// track commits p's bitmap to the store when it resolves, unless a newer
// load for key started meanwhile
func (s *Session) track(ctx context.Context, key string, gen uint64, p *upload.Pending) *Loading {
	l := &Loading{Key: key, done: make(chan struct{})}
	s.loads.Add(1)
	p.OnDone(func(img image.Image, err error) {
		defer s.loads.Done()
		defer close(l.done)
		if err != nil {
			s.log.Warn("image decode failed", "key", key, "error", err)
			s.store.FailLoad(key, gen)
			l.err = err
			return
		}
		if err := s.store.CompleteLoad(key, gen, img); err != nil {
			l.err = err
			return
		}
		if s.autoFocus && s.store.Frame() != nil {
			if err := s.autoPlace(ctx, key); err != nil {
				s.log.Warn("auto placement failed", "key", key, "error", err)
			}
		}
	})
	return l
}

// Remove deletes an image
func (s *Session) Remove(key string) error {
	return s.store.RemoveImage(key)
}

// Select makes key the image the controller and renders act on
func (s *Session) Select(key string) error {
	return s.store.Select(key)
}

// SelectFrame activates f; custom frames are validated first
func (s *Session) SelectFrame(f *frame.Frame) error {
	if f.IsCustom {
		if _, err := s.store.FrameByID(f.ID); err != nil {
			if err := s.store.AddCustomFrame(f); err != nil {
				return err
			}
		}
	}
	return s.store.SelectFrame(f)
}

// SelectFrameByID activates a custom or catalog frame
func (s *Session) SelectFrameByID(id string) error {
	f, err := s.store.FrameByID(id)
	if err != nil {
		return err
	}
	return s.store.SelectFrame(f)
}

// SetParameter sets a parameter of the selected frame
func (s *Session) SetParameter(id, value string) error {
	f := s.store.Frame()
	if f == nil {
		return store.ErrNoFrame
	}
	return s.store.SetParameter(f.ID, id, value)
}

// Scene builds the render input from the current state, using the live drag
// offset while a drag is in progress
func (s *Session) Scene() (render.Scene, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return render.Scene{}, err
	}
	img := snap.Image
	if img.Key == "" {
		return render.Scene{}, render.ErrNoImage
	}
	if !img.Initialized {
		return render.Scene{}, fmt.Errorf("%w: %s", store.ErrNotReady, img.Key)
	}
	if live, err := s.ctrl.Offset(); err == nil {
		img.Offset = live
	}
	return render.Scene{
		Frame:     snap.Frame,
		Params:    snap.Params,
		Image:     img.Image,
		Placement: img.Placement(snap.Window.Size()),
		Window:    snap.Window,
	}, nil
}

// Preview repaints the session's canvas and returns it. On failure the
// error is returned and the previous canvas is kept.
func (s *Session) Preview(ctx context.Context) (*image.NRGBA, error) {
	scene, err := s.Scene()
	if err != nil {
		return nil, err
	}
	if err := s.target.Paint(ctx, scene); err != nil {
		return nil, err
	}
	return s.target.Canvas(), nil
}

// LastPreview returns the last successful preview, or nil
func (s *Session) LastPreview() *image.NRGBA {
	return s.target.Canvas()
}

// Thumbnail renders the composite scaled to fit maxW x maxH
func (s *Session) Thumbnail(ctx context.Context, maxW, maxH int) (*image.NRGBA, error) {
	scene, err := s.Scene()
	if err != nil {
		return nil, err
	}
	return s.renderer.Thumbnail(ctx, scene, maxW, maxH)
}

// Export renders the selected image with the store's export settings
func (s *Session) Export(ctx context.Context) ([]export.Artifact, error) {
	scene, err := s.Scene()
	if err != nil {
		return nil, err
	}
	settings := s.store.ExportSettings()
	base := settings.BaseName
	if base == store.DefaultBaseName {
		if img, ok := s.store.Selected(); ok && strings.TrimSpace(img.Filename) != "" {
			base = img.Filename
		}
	}
	return s.exporter.Export(ctx, export.Request{
		Scene:       scene,
		Sizes:       settings.Sizes,
		Format:      settings.Format,
		BaseName:    base,
		CroppedOnly: settings.CroppedOnly,
	})
}

// ExportTo exports and writes the files into dir; empty dir means the
// configured output directory
func (s *Session) ExportTo(ctx context.Context, dir string) ([]string, error) {
	if dir == "" {
		dir = s.cfg.Export.OutputDir
	}
	artifacts, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}
	paths, err := export.Save(dir, artifacts)
	if err != nil {
		return paths, err
	}
	s.log.Info("export written", "dir", dir, "files", len(paths))
	return paths, nil
}

// AutoPlace asks the focus locator where the subject of the selected image
// is and moves it to the center of the crop window
func (s *Session) AutoPlace(ctx context.Context) error {
	img, ok := s.store.Selected()
	if !ok {
		return render.ErrNoImage
	}
	return s.autoPlace(ctx, img.Key)
}

func (s *Session) autoPlace(ctx context.Context, key string) error {
	img, err := s.store.Image(key)
	if err != nil {
		return err
	}
	if !img.Initialized {
		return fmt.Errorf("%w: %s", store.ErrNotReady, key)
	}
	p, err := s.locator.Locate(ctx, img.Image)
	if err != nil {
		return err
	}
	window := s.store.Window()
	offset := mapper.OffsetForFocus(p, img.Natural, img.Scale, window.Size())
	s.log.Debug("auto placement", "key", key, "focus", p, "offset", offset)
	return s.store.SetOffset(key, offset)
}

// Close stops pending wheel flushes and waits for running decodes
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.ctrl.Close()
	s.loads.Wait()
	return nil
}
