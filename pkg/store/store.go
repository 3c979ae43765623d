// Package store holds the editing session state: loaded images with their
// placement, the selected frame and its parameters, and export settings.
//
// All mutation goes through the methods below. Reads return copies so callers
// never share mutable state with the store.
package store

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/menta2k/framecrop/pkg/frame"
	"github.com/menta2k/framecrop/pkg/mapper"
	"github.com/menta2k/framecrop/pkg/types"
)

var (
	// ErrUnknownImage is returned for keys that are not (or no longer) in the store
	ErrUnknownImage = errors.New("store: unknown image")
	// ErrStaleLoad is returned when a decode finishes for a superseded load
	ErrStaleLoad = errors.New("store: stale image load")
	// ErrNotReady is returned when an image has not finished decoding
	ErrNotReady = errors.New("store: image not decoded yet")
	// ErrNoFrame is returned when an operation needs a selected frame
	ErrNoFrame = errors.New("store: no frame selected")
	// ErrUnknownParameter is returned for parameters the frame does not define
	ErrUnknownParameter = errors.New("store: unknown parameter")
)

// DefaultBaseName is used for exports when the user gives no file name
const DefaultBaseName = "cropped-image"

// ImageState is a snapshot of one loaded image.
type ImageState struct {
	Key         string
	Filename    string
	Image       image.Image
	Natural     types.Size
	Scale       float64
	Offset      types.Point
	Initialized bool
	Generation  uint64
}

// Placement returns the image's placement inside a crop window
func (s ImageState) Placement(window types.Size) mapper.Placement {
	return mapper.Placement{Natural: s.Natural, Window: window, Scale: s.Scale, Offset: s.Offset}
}

// ExportSettings are the user's export choices.
type ExportSettings struct {
	Sizes       []string
	Format      string
	CroppedOnly bool
	BaseName    string
}

// Snapshot is a consistent view of everything a render or export needs.
type Snapshot struct {
	Frame  *frame.Frame
	Window types.Rect
	Params map[string]string
	Image  ImageState
	Export ExportSettings
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	policy   mapper.ScalePolicy
	images   map[string]*ImageState
	order    []string
	selected string
	frame    *frame.Frame
	window   types.Rect
	params   map[string]map[string]string
	custom   []*frame.Frame
	export   ExportSettings
	gen      uint64
	log      *slog.Logger
}

// New creates an empty store. A nil logger uses slog.Default().
func New(policy mapper.ScalePolicy, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		policy: policy,
		images: make(map[string]*ImageState),
		params: make(map[string]map[string]string),
		export: ExportSettings{
			Sizes:    []string{frame.OriginalSize},
			Format:   "png",
			BaseName: DefaultBaseName,
		},
		log: logger.With(slog.String("component", "store")),
	}
}

// ScalePolicy returns the zoom bound policy applied to every image
func (s *Store) ScalePolicy() mapper.ScalePolicy {
	return s.policy
}

// ── Images ──

// AddImage registers a new, not yet decoded image and returns its key.
// The first image added becomes the selection.
func (s *Store) AddImage(filename string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := uuid.NewString()
	s.images[key] = &ImageState{Key: key, Filename: filename, Scale: 1}
	s.order = append(s.order, key)
	if s.selected == "" {
		s.selected = key
	}
	return key
}

// BeginLoad starts a decode for key and returns its generation. Any decode
// started earlier for the same key becomes stale.
func (s *Store) BeginLoad(key string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownImage, key)
	}
	s.gen++
	img.Generation = s.gen
	return s.gen, nil
}

// CompleteLoad installs a decoded bitmap if gen is still the image's current
// load. The image starts at cover scale, centered.
func (s *Store) CompleteLoad(key string, gen uint64, bitmap image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[key]
	if !ok {
		s.log.Debug("discarding decode for removed image", "key", key, "gen", gen)
		return fmt.Errorf("%w: %s", ErrUnknownImage, key)
	}
	if img.Generation != gen {
		s.log.Debug("discarding stale decode", "key", key, "gen", gen, "current", img.Generation)
		return fmt.Errorf("%w: %s generation %d, current %d", ErrStaleLoad, key, gen, img.Generation)
	}
	b := bitmap.Bounds()
	natural := types.Size{W: float64(b.Dx()), H: float64(b.Dy())}
	if !natural.Valid() {
		return fmt.Errorf("%w: decoded image is %dx%d", mapper.ErrInvalidDimensions, b.Dx(), b.Dy())
	}

	img.Image = bitmap
	img.Natural = natural
	img.Scale = 1
	img.Offset = types.Point{}
	img.Initialized = true
	if s.frame != nil {
		if minScale, err := mapper.MinCoverScale(natural.W, natural.H, s.window.W, s.window.H); err == nil {
			img.Scale = minScale
		}
	}
	s.log.Debug("image loaded", "key", key, "width", b.Dx(), "height", b.Dy(), "scale", img.Scale)
	return nil
}

// FailLoad drops an image whose current decode failed. Failures of stale
// loads are ignored.
func (s *Store) FailLoad(key string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[key]
	if !ok || img.Generation != gen {
		return
	}
	if img.Initialized {
		// A replacement failed; keep the previous bitmap.
		return
	}
	s.removeLocked(key)
}

// RemoveImage deletes an image; a pending decode for it will be discarded.
func (s *Store) RemoveImage(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownImage, key)
	}
	s.removeLocked(key)
	return nil
}

func (s *Store) removeLocked(key string) {
	delete(s.images, key)
	idx := slices.Index(s.order, key)
	if idx >= 0 {
		s.order = slices.Delete(s.order, idx, idx+1)
	}
	if s.selected == key {
		s.selected = ""
		if len(s.order) > 0 {
			s.selected = s.order[min(idx, len(s.order)-1)]
		}
	}
}

// Select makes key the image the controller acts on
func (s *Store) Select(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownImage, key)
	}
	s.selected = key
	return nil
}

// Selected returns the selected image
func (s *Store) Selected() (ImageState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, ok := s.images[s.selected]
	if !ok {
		return ImageState{}, false
	}
	return *img, true
}

// Image returns the image stored under key
func (s *Store) Image(key string) (ImageState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, ok := s.images[key]
	if !ok {
		return ImageState{}, fmt.Errorf("%w: %s", ErrUnknownImage, key)
	}
	return *img, nil
}

// Images returns every image in insertion order
func (s *Store) Images() []ImageState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ImageState, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.images[key])
	}
	return out
}

// SetFilename renames an image
func (s *Store) SetFilename(key, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownImage, key)
	}
	img.Filename = filename
	return nil
}

// SetOffset commits an offset, clamped against the current scale and window.
func (s *Store) SetOffset(key string, offset types.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := s.readyLocked(key)
	if err != nil {
		return err
	}
	img.Offset = mapper.ClampOffset(offset, img.Natural.W, img.Natural.H, img.Scale, s.window.W, s.window.H)
	return nil
}

// SetTransform commits scale and offset together. The scale is clamped to
// the image's legal range first, then the offset against that scale.
func (s *Store) SetTransform(key string, scale float64, offset types.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := s.readyLocked(key)
	if err != nil {
		return err
	}
	minScale, maxScale, err := mapper.ScaleBounds(s.policy, img.Natural, s.window.Size())
	if err != nil {
		return err
	}
	if !types.Finite(scale) {
		return fmt.Errorf("%w: scale %g", mapper.ErrInvalidDimensions, scale)
	}
	img.Scale = mapper.ClampScale(scale, minScale, maxScale)
	img.Offset = mapper.ClampOffset(offset, img.Natural.W, img.Natural.H, img.Scale, s.window.W, s.window.H)
	return nil
}

func (s *Store) readyLocked(key string) (*ImageState, error) {
	img, ok := s.images[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownImage, key)
	}
	if !img.Initialized {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, key)
	}
	if s.frame == nil {
		return nil, ErrNoFrame
	}
	return img, nil
}

// ── Frames ──

// SelectFrame activates a frame: derives its crop window, seeds parameter
// defaults and re-clamps every loaded image against the new window.
func (s *Store) SelectFrame(f *frame.Frame) error {
	if err := frame.Validate(f); err != nil {
		return err
	}
	window := f.CropWindow()
	if !window.Valid() {
		return fmt.Errorf("%w: crop window %+v", mapper.ErrInvalidDimensions, window)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame = f
	s.window = window
	if _, ok := s.params[f.ID]; !ok {
		s.params[f.ID] = f.Defaults()
	}

	valid := make(map[string]bool)
	for _, name := range f.SizeNames() {
		valid[name] = true
	}
	sizes := s.export.Sizes[:0:0]
	for _, name := range s.export.Sizes {
		if valid[name] {
			sizes = append(sizes, name)
		}
	}
	if len(sizes) == 0 {
		sizes = []string{frame.OriginalSize}
	}
	s.export.Sizes = sizes

	for _, img := range s.images {
		if !img.Initialized {
			continue
		}
		minScale, maxScale, err := mapper.ScaleBounds(s.policy, img.Natural, window.Size())
		if err != nil {
			continue
		}
		img.Scale = mapper.ClampScale(img.Scale, minScale, maxScale)
		img.Offset = mapper.ClampOffset(img.Offset, img.Natural.W, img.Natural.H, img.Scale, window.W, window.H)
	}
	s.log.Debug("frame selected", "frame", f.ID, "window", window)
	return nil
}

// Frame returns the selected frame, or nil
func (s *Store) Frame() *frame.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Window returns the selected frame's crop window
func (s *Store) Window() types.Rect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

// AddCustomFrame validates and stores a user-authored frame
func (s *Store) AddCustomFrame(f *frame.Frame) error {
	if err := frame.Validate(f); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f.IsCustom = true
	s.custom = append(s.custom, f)
	return nil
}

// CustomFrames returns the user-authored frames
func (s *Store) CustomFrames() []*frame.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.custom)
}

// FrameByID finds a custom frame, falling back to the built-in catalog
func (s *Store) FrameByID(id string) (*frame.Frame, error) {
	s.mu.RLock()
	for _, f := range s.custom {
		if f.ID == id {
			s.mu.RUnlock()
			return f, nil
		}
	}
	s.mu.RUnlock()
	return frame.Lookup(id)
}

// ── Parameters ──

// SetParameter stores a parameter value for a frame. Values for the selected
// frame are checked against its parameter list.
func (s *Store) SetParameter(frameID, id, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame != nil && s.frame.ID == frameID {
		if _, ok := s.frame.Parameter(id); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownParameter, frameID, id)
		}
	}
	values, ok := s.params[frameID]
	if !ok {
		values = make(map[string]string)
		s.params[frameID] = values
	}
	values[id] = value
	return nil
}

// Parameters returns the frame's stored values; for the selected frame they
// are merged over the defaults.
func (s *Store) Parameters(frameID string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paramsLocked(frameID)
}

func (s *Store) paramsLocked(frameID string) map[string]string {
	if s.frame != nil && s.frame.ID == frameID {
		return s.frame.Resolve(s.params[frameID])
	}
	out := make(map[string]string, len(s.params[frameID]))
	for k, v := range s.params[frameID] {
		out[k] = v
	}
	return out
}

// ── Export settings ──

// ToggleExportSize adds or removes a size from the export selection
func (s *Store) ToggleExportSize(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSizeLocked(name); err != nil {
		return err
	}
	if idx := slices.Index(s.export.Sizes, name); idx >= 0 {
		s.export.Sizes = slices.Delete(slices.Clone(s.export.Sizes), idx, idx+1)
		return nil
	}
	s.export.Sizes = append(slices.Clone(s.export.Sizes), name)
	return nil
}

// SetExportSizes replaces the export selection
func (s *Store) SetExportSizes(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range names {
		if err := s.checkSizeLocked(name); err != nil {
			return err
		}
	}
	s.export.Sizes = slices.Compact(slices.Clone(names))
	return nil
}

func (s *Store) checkSizeLocked(name string) error {
	if s.frame == nil {
		return ErrNoFrame
	}
	_, err := s.frame.ExportSize(name)
	return err
}

// SetExportFormat records the output format (png, webp, jpeg, pdf)
func (s *Store) SetExportFormat(format string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.export.Format = strings.ToLower(strings.TrimSpace(format))
}

// SetCroppedOnly switches between the full composite and the bare crop
func (s *Store) SetCroppedOnly(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.export.CroppedOnly = v
}

// SetBaseName sets the export file name stem; empty restores the default
func (s *Store) SetBaseName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(name) == "" {
		name = DefaultBaseName
	}
	s.export.BaseName = name
}

// ExportSettings returns the current export choices
func (s *Store) ExportSettings() ExportSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.export
	out.Sizes = slices.Clone(s.export.Sizes)
	return out
}

// Snapshot returns the selected frame, parameters, selected image and export
// settings read under one lock.
func (s *Store) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.frame == nil {
		return Snapshot{}, ErrNoFrame
	}
	snap := Snapshot{
		Frame:  s.frame,
		Window: s.window,
		Params: s.paramsLocked(s.frame.ID),
		Export: s.export,
	}
	snap.Export.Sizes = slices.Clone(s.export.Sizes)
	if img, ok := s.images[s.selected]; ok {
		snap.Image = *img
	}
	return snap, nil
}
