package frame

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/menta2k/framecrop/pkg/types"
)

// MaxDimension is the largest accepted frame width or height in pixels.
const MaxDimension = 10000

//go:embed frame.schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// ValidationError lists every problem found in a frame definition.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid frame: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// Parse validates data against the frame schema, decodes it and checks the
// result. No frame is returned unless it is valid.
func Parse(data []byte) (*Frame, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("malformed JSON: %v", err)}}
	}
	if !result.Valid() {
		verr := &ValidationError{}
		for _, e := range result.Errors() {
			verr.add("%s", e.String())
		}
		return nil, verr
	}

	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("decode: %v", err)}}
	}
	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads and parses a frame definition from disk
func LoadFile(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Validate checks the semantic rules the schema cannot express.
func Validate(f *Frame) error {
	verr := &ValidationError{}
	if f == nil {
		verr.add("frame is nil")
		return verr
	}

	checkDimension(verr, "width", f.Width)
	checkDimension(verr, "height", f.Height)

	if ca := f.CropArea; ca != nil {
		if !types.Finite(ca.X, ca.Y, ca.Width, ca.Height) || ca.Width <= 0 || ca.Height <= 0 {
			verr.add("cropArea must have positive width and height")
		} else if ca.X < 0 || ca.Y < 0 || ca.X+ca.Width > f.Width || ca.Y+ca.Height > f.Height {
			verr.add("cropArea %gx%g at (%g,%g) exceeds the %gx%g frame", ca.Width, ca.Height, ca.X, ca.Y, f.Width, f.Height)
		}
	}

	seenSizes := make(map[string]struct{}, len(f.ExportSizes))
	for i, es := range f.ExportSizes {
		if es.Name == "" {
			verr.add("exportSizes[%d]: name is required", i)
		}
		if _, dup := seenSizes[es.Name]; dup {
			verr.add("exportSizes[%d]: duplicate name %q", i, es.Name)
		}
		seenSizes[es.Name] = struct{}{}
		if !types.Finite(es.Width, es.Height, es.Scale) || es.Width <= 0 || es.Height <= 0 {
			verr.add("exportSizes[%d] %q: width and height must be positive", i, es.Name)
		}
		if es.Scale < 0 {
			verr.add("exportSizes[%d] %q: scale must not be negative", i, es.Name)
		}
	}

	params := make(map[string]Parameter, len(f.Parameters))
	for i, p := range f.Parameters {
		if p.ID == "" {
			verr.add("parameters[%d]: id is required", i)
			continue
		}
		if _, dup := params[p.ID]; dup {
			verr.add("parameters[%d]: duplicate id %q", i, p.ID)
		}
		params[p.ID] = p
		switch p.Type {
		case ParamText, ParamColor:
		case ParamSelect:
			if len(p.Options) == 0 {
				verr.add("parameter %q: select needs options", p.ID)
			}
		default:
			verr.add("parameter %q: unknown type %q", p.ID, p.Type)
		}
	}
	for _, p := range f.Parameters {
		if p.Condition == "" {
			continue
		}
		cond, err := ParseCondition(p.Condition)
		if err != nil {
			verr.add("parameter %q: %v", p.ID, err)
			continue
		}
		if _, ok := params[cond.Param]; !ok {
			verr.add("parameter %q: condition references unknown parameter %q", p.ID, cond.Param)
		}
	}

	seenLayers := make(map[string]struct{}, len(f.Layers))
	for i, l := range f.Layers {
		if l.ID == "" {
			verr.add("layers[%d]: id is required", i)
		}
		if _, dup := seenLayers[l.ID]; dup {
			verr.add("layers[%d]: duplicate id %q", i, l.ID)
		}
		seenLayers[l.ID] = struct{}{}
		switch l.Type {
		case LayerBackground, LayerBorder, LayerText, LayerImage:
		default:
			verr.add("layer %q: unknown type %q", l.ID, l.Type)
		}
	}

	return verr.orNil()
}

func checkDimension(verr *ValidationError, name string, v float64) {
	switch {
	case !types.Finite(v) || v <= 0:
		verr.add("%s must be greater than 0", name)
	case v > MaxDimension:
		verr.add("%s must not exceed %d", name, MaxDimension)
	}
}

// NewCustom builds a plain crop frame from user-entered dimensions.
func NewCustom(width, height float64) (*Frame, error) {
	f := &Frame{
		ID:          "custom-" + uuid.NewString(),
		Title:       fmt.Sprintf("Custom (%g×%g)", width, height),
		Width:       width,
		Height:      height,
		Description: fmt.Sprintf("Custom frame %gx%g", width, height),
		IsCustom:    true,
	}
	if err := Validate(f); err != nil {
		return nil, err
	}
	return f, nil
}
