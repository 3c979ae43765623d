package render

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"strings"
	"sync"

	"github.com/menta2k/framecrop/pkg/processing"
)

// ErrAssetNotFound is returned by asset sources for unknown references
var ErrAssetNotFound = errors.New("render: asset not found")

// Assets resolves static image layer references
type Assets interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// DirAssets loads assets from a directory or over HTTP(S), caching decoded
// images by reference.
type DirAssets struct {
	root      string
	processor *processing.Processor

	mu    sync.Mutex
	cache map[string]image.Image
}

// NewDirAssets creates a loader resolving relative references against root
func NewDirAssets(root string) *DirAssets {
	return &DirAssets{
		root:      root,
		processor: processing.NewProcessor(),
		cache:     make(map[string]image.Image),
	}
}

// Load returns the decoded asset
func (a *DirAssets) Load(ctx context.Context, ref string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	if img, ok := a.cache[ref]; ok {
		a.mu.Unlock()
		return img, nil
	}
	a.mu.Unlock()

	source := ref
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		source = filepath.Join(a.root, filepath.FromSlash(strings.TrimPrefix(ref, "/")))
	}
	img, err := a.processor.LoadImageSmart(source)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.cache[ref] = img
	a.mu.Unlock()
	return img, nil
}

// MapAssets serves assets from memory
type MapAssets map[string]image.Image

// Load returns the named image or ErrAssetNotFound
func (m MapAssets) Load(_ context.Context, ref string) (image.Image, error) {
	if img, ok := m[ref]; ok {
		return img, nil
	}
	return nil, ErrAssetNotFound
}
