package render

import (
	"context"
	"image"
	"sync"
)

// Target is a repaintable canvas. A failed paint leaves the previous
// canvas in place.
type Target struct {
	renderer *Renderer

	mu     sync.RWMutex
	canvas *image.NRGBA
	gen    uint64
}

// NewTarget creates an empty target painted by r
func NewTarget(r *Renderer) *Target {
	return &Target{renderer: r}
}

// Paint re-renders scene onto the target
func (t *Target) Paint(ctx context.Context, scene Scene) error {
	canvas, err := t.renderer.Render(ctx, scene)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.canvas = canvas
	t.gen++
	t.mu.Unlock()
	return nil
}

// Canvas returns the last successful paint, or nil
func (t *Target) Canvas() *image.NRGBA {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.canvas
}

// Generation counts successful paints
func (t *Target) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.gen
}
