package frame

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownFrame is returned when a frame id is not in the catalog
	ErrUnknownFrame = errors.New("frame: unknown frame")
	// ErrUnknownSize is returned for export size names a frame does not define
	ErrUnknownSize = errors.New("frame: unknown export size")
)

//go:embed catalog.json
var catalogJSON []byte

var (
	catalogOnce   sync.Once
	catalogFrames []*Frame
	catalogErr    error
)

func loadCatalog() {
	var doc struct {
		Frames []json.RawMessage `json:"frames"`
	}
	if err := json.Unmarshal(catalogJSON, &doc); err != nil {
		catalogErr = fmt.Errorf("catalog: %w", err)
		return
	}
	for i, raw := range doc.Frames {
		f, err := Parse(raw)
		if err != nil {
			catalogErr = fmt.Errorf("catalog frame %d: %w", i, err)
			return
		}
		catalogFrames = append(catalogFrames, f)
	}
}

// Catalog returns the built-in frames in declaration order. The frames are
// shared and must be treated as read-only.
func Catalog() ([]*Frame, error) {
	catalogOnce.Do(loadCatalog)
	if catalogErr != nil {
		return nil, catalogErr
	}
	out := make([]*Frame, len(catalogFrames))
	copy(out, catalogFrames)
	return out, nil
}

// Lookup returns the built-in frame with the given id
func Lookup(id string) (*Frame, error) {
	frames, err := Catalog()
	if err != nil {
		return nil, err
	}
	for _, f := range frames {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, id)
}
