// Package controller turns pointer drags and wheel input into committed
// image placement changes.
//
// A drag keeps a live offset for immediate feedback and commits it once, on
// pointer up or leave. Wheel input is coalesced: at most one flush per
// MinWheelInterval, with a single trailing timer carrying any excess.
package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/menta2k/framecrop/pkg/mapper"
	"github.com/menta2k/framecrop/pkg/store"
	"github.com/menta2k/framecrop/pkg/types"
)

var (
	// ErrNoImage is returned when no image is selected
	ErrNoImage = errors.New("controller: no image selected")
	// ErrNotReady is returned while the selected image is still decoding
	ErrNotReady = errors.New("controller: image not ready")
)

// State is the part of the store the controller reads and commits to.
type State interface {
	Selected() (store.ImageState, bool)
	Window() types.Rect
	ScalePolicy() mapper.ScalePolicy
	SetOffset(key string, offset types.Point) error
	SetTransform(key string, scale float64, offset types.Point) error
}

// Config holds zoom tuning.
type Config struct {
	// ZoomStep is the scale change per wheel flush at scale 1. Below scale 1
	// the step shrinks proportionally.
	ZoomStep float64 `json:"zoom_step" yaml:"zoom_step"`
	// MinWheelInterval bounds how often wheel input is committed.
	MinWheelInterval time.Duration `json:"min_wheel_interval" yaml:"min_wheel_interval"`
}

// DefaultConfig returns a 0.05 zoom step at 30 commits per second
func DefaultConfig() Config {
	return Config{
		ZoomStep:         0.05,
		MinWheelInterval: time.Second / 30,
	}
}

// Controller is safe for concurrent use; wheel flushes run on timer goroutines.
type Controller struct {
	mu    sync.Mutex
	state State
	cfg   Config
	clock Clock
	log   *slog.Logger

	dragging bool
	dragKey  string
	last     types.Point
	live     *types.Point

	wheelAccum float64
	lastFlush  time.Time
	pending    Timer
	timerSeq   uint64
	closed     bool
}

// Option customizes a Controller
type Option func(*Controller)

// WithClock replaces the wall clock, mainly for tests
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.log = l }
}

// New creates a controller committing to state
func New(state State, cfg Config, opts ...Option) *Controller {
	def := DefaultConfig()
	if cfg.ZoomStep <= 0 {
		cfg.ZoomStep = def.ZoomStep
	}
	if cfg.MinWheelInterval <= 0 {
		cfg.MinWheelInterval = def.MinWheelInterval
	}
	c := &Controller{
		state: state,
		cfg:   cfg,
		clock: realClock{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(slog.String("component", "controller"))
	return c
}

func (c *Controller) ready() (store.ImageState, error) {
	img, ok := c.state.Selected()
	if !ok {
		return store.ImageState{}, ErrNoImage
	}
	if !img.Initialized {
		return store.ImageState{}, fmt.Errorf("%w: %s", ErrNotReady, img.Key)
	}
	return img, nil
}

// ── Drag ──

// PointerDown starts a drag at p
func (c *Controller) PointerDown(p types.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, err := c.ready()
	if err != nil {
		return err
	}
	c.dragging = true
	c.dragKey = img.Key
	c.last = p
	c.live = nil
	return nil
}

// PointerMove updates the live offset by the movement since the last point.
// Moves outside a drag are ignored.
func (c *Controller) PointerMove(p types.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dragging {
		return nil
	}
	img, err := c.ready()
	if err != nil {
		c.resetDrag()
		return err
	}
	if img.Key != c.dragKey {
		// selection changed mid-gesture
		c.resetDrag()
		return nil
	}

	base := img.Offset
	if c.live != nil {
		base = *c.live
	}
	win := c.state.Window()
	next := mapper.ClampOffset(base.Add(p.Sub(c.last)), img.Natural.W, img.Natural.H, img.Scale, win.W, win.H)
	c.live = &next
	c.last = p
	return nil
}

// PointerUp commits the live offset and ends the drag
func (c *Controller) PointerUp() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dragging {
		return nil
	}
	key, live := c.dragKey, c.live
	c.resetDrag()
	if live == nil {
		return nil
	}
	return c.state.SetOffset(key, *live)
}

// PointerLeave behaves like PointerUp
func (c *Controller) PointerLeave() error {
	return c.PointerUp()
}

func (c *Controller) resetDrag() {
	c.dragging = false
	c.dragKey = ""
	c.live = nil
}

// Dragging reports whether a drag gesture is in progress
func (c *Controller) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dragging
}

// Offset returns the offset to display: the live drag offset if one exists,
// otherwise the committed one.
func (c *Controller) Offset() (types.Point, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, err := c.ready()
	if err != nil {
		return types.Point{}, err
	}
	if c.dragging && c.live != nil && c.dragKey == img.Key {
		return *c.live, nil
	}
	return img.Offset, nil
}

// ── Wheel ──

// Wheel adds deltaY to the zoom accumulator. Positive deltas zoom out.
func (c *Controller) Wheel(deltaY float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	if _, err := c.ready(); err != nil {
		return err
	}
	if !types.Finite(deltaY) {
		return fmt.Errorf("%w: wheel delta %g", mapper.ErrInvalidDimensions, deltaY)
	}
	c.wheelAccum += deltaY
	c.stopPending()

	now := c.clock.Now()
	elapsed := now.Sub(c.lastFlush)
	if c.lastFlush.IsZero() || elapsed >= c.cfg.MinWheelInterval {
		c.lastFlush = now
		return c.flushLocked()
	}

	c.timerSeq++
	seq := c.timerSeq
	c.pending = c.clock.AfterFunc(c.cfg.MinWheelInterval-elapsed, func() { c.onTimer(seq) })
	return nil
}

func (c *Controller) onTimer(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || seq != c.timerSeq || c.pending == nil {
		return
	}
	c.pending = nil
	c.lastFlush = c.clock.Now()
	if err := c.flushLocked(); err != nil {
		c.log.Warn("wheel flush failed", "error", err)
	}
}

func (c *Controller) stopPending() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

// Pending reports whether a trailing wheel flush is scheduled
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Flush commits any accumulated wheel input immediately
func (c *Controller) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopPending()
	c.lastFlush = c.clock.Now()
	return c.flushLocked()
}

func (c *Controller) flushLocked() error {
	accum := c.wheelAccum
	c.wheelAccum = 0
	if accum == 0 {
		return nil
	}
	img, err := c.ready()
	if err != nil {
		return err
	}

	step := math.Min(c.cfg.ZoomStep, c.cfg.ZoomStep*img.Scale)
	if accum > 0 {
		step = -step
	}
	return c.applyScale(img, img.Scale+step)
}

func (c *Controller) applyScale(img store.ImageState, scale float64) error {
	win := c.state.Window()
	minScale, maxScale, err := mapper.ScaleBounds(c.state.ScalePolicy(), img.Natural, win.Size())
	if err != nil {
		return err
	}
	scale = mapper.ClampScale(scale, minScale, maxScale)
	offset := mapper.ClampOffset(img.Offset, img.Natural.W, img.Natural.H, scale, win.W, win.H)
	if err := c.state.SetTransform(img.Key, scale, offset); err != nil {
		return err
	}
	if c.dragging && c.live != nil && c.dragKey == img.Key {
		live := mapper.ClampOffset(*c.live, img.Natural.W, img.Natural.H, scale, win.W, win.H)
		c.live = &live
	}
	c.log.Debug("scale committed", "key", img.Key, "scale", scale, "offset", offset)
	return nil
}

// ── Direct placement ──

// SetScale commits an absolute scale, clamped to the legal range
func (c *Controller) SetScale(scale float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, err := c.ready()
	if err != nil {
		return err
	}
	if !types.Finite(scale) {
		return fmt.Errorf("%w: scale %g", mapper.ErrInvalidDimensions, scale)
	}
	return c.applyScale(img, scale)
}

// SetOffset commits an absolute offset, clamped to the legal range
func (c *Controller) SetOffset(offset types.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, err := c.ready()
	if err != nil {
		return err
	}
	return c.state.SetOffset(img.Key, offset)
}

// Close cancels any pending wheel flush. Further wheel input is ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPending()
	c.closed = true
}
