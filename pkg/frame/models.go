// Package frame models frame templates: canvas size, editable parameters,
// ordered decorative layers and named export sizes.
package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// CroppedImageSlot is the imageUrl that marks the layer receiving the
// user's cropped image.
const CroppedImageSlot = "{{croppedImage}}"

// OriginalSize names the export size that keeps the frame's own dimensions.
const OriginalSize = "original"

// Layer types
const (
	LayerBackground = "background"
	LayerBorder     = "border"
	LayerText       = "text"
	LayerImage      = "image"
)

// Parameter types
const (
	ParamText   = "text"
	ParamSelect = "select"
	ParamColor  = "color"
)

// Frame is a named template. Width and Height are the full canvas size.
type Frame struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Width       float64      `json:"width"`
	Height      float64      `json:"height"`
	Description string       `json:"description,omitempty"`
	IsCustom    bool         `json:"isCustom,omitempty"`
	Parameters  []Parameter  `json:"parameters,omitempty"`
	Layers      []Layer      `json:"layers,omitempty"`
	ExportSizes []ExportSize `json:"exportSizes,omitempty"`
	CropArea    *CropArea    `json:"cropArea,omitempty"`
}

// Parameter is a user-editable value referenced from layers as {{id}}.
type Parameter struct {
	ID           string   `json:"id"`
	Name         string   `json:"name,omitempty"`
	Type         string   `json:"type"`
	Label        string   `json:"label"`
	DefaultValue string   `json:"defaultValue"`
	Options      []Option `json:"options,omitempty"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	Step         *float64 `json:"step,omitempty"`
	// Condition hides the parameter unless it holds, e.g.
	// backgroundColor === "custom".
	Condition string `json:"condition,omitempty"`
}

// Option is one choice of a select parameter. In JSON it is either a bare
// string or an object with value and label.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// UnmarshalJSON accepts "value" or {"value": ..., "label": ...}
func (o *Option) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		o.Value, o.Label = s, s
		return nil
	}
	type plain Option
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("option must be a string or {value,label}: %w", err)
	}
	if p.Label == "" {
		p.Label = p.Value
	}
	*o = Option(p)
	return nil
}

// Layer is one visual element of a frame.
type Layer struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Name       string     `json:"name,omitempty"`
	Visible    *bool      `json:"visible,omitempty"` // nil = visible
	ZIndex     float64    `json:"zIndex"`
	Properties Properties `json:"properties"`
}

// IsVisible reports whether the layer should be painted
func (l Layer) IsVisible() bool {
	return l.Visible == nil || *l.Visible
}

// IsCroppedImage reports whether the layer is the cropped image slot
func (l Layer) IsCroppedImage() bool {
	return l.Type == LayerImage && l.Properties.ImageURL == CroppedImageSlot
}

// Properties holds geometry and style for every layer type. Pointer fields
// distinguish "unset" from zero.
type Properties struct {
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	Width   *float64 `json:"width,omitempty"`
	Height  *float64 `json:"height,omitempty"`
	AlignX  string   `json:"alignX,omitempty"`
	AlignY  string   `json:"alignY,omitempty"`
	MarginX float64  `json:"marginX,omitempty"`
	MarginY float64  `json:"marginY,omitempty"`

	BackgroundColor       string    `json:"backgroundColor,omitempty"`
	CustomBackgroundColor string    `json:"customBackgroundColor,omitempty"`
	BackgroundGradient    *Gradient `json:"backgroundGradient,omitempty"`

	BorderColor  string  `json:"borderColor,omitempty"`
	BorderWidth  float64 `json:"borderWidth,omitempty"`
	BorderRadius float64 `json:"borderRadius,omitempty"`

	Color      string     `json:"color,omitempty"`
	FontSize   float64    `json:"fontSize,omitempty"`
	FontFamily string     `json:"fontFamily,omitempty"`
	FontWeight FontWeight `json:"fontWeight,omitempty"`
	TextAlign  string     `json:"textAlign,omitempty"`
	MaxWidth   *float64   `json:"maxWidth,omitempty"`
	LineHeight float64    `json:"lineHeight,omitempty"` // multiplier of FontSize
	Content    string     `json:"content,omitempty"`

	ImageURL string   `json:"imageUrl,omitempty"`
	Opacity  *float64 `json:"opacity,omitempty"`
}

// Gradient is a two-stop linear gradient
type Gradient struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Direction string `json:"direction,omitempty"`
}

// FontWeight is a CSS font weight; JSON may carry "bold", "600" or 600.
type FontWeight string

// UnmarshalJSON accepts both strings and numbers
func (w *FontWeight) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = FontWeight(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("fontWeight must be a string or number: %w", err)
	}
	*w = FontWeight(n.String())
	return nil
}

// Bold reports whether the weight selects a bold face (600 and above)
func (w FontWeight) Bold() bool {
	switch w {
	case "bold", "bolder":
		return true
	}
	n, err := strconv.Atoi(string(w))
	return err == nil && n >= 600
}

// ExportSize is a named output resolution.
type ExportSize struct {
	Name   string  `json:"name"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale,omitempty"`
}

// CropArea is an explicit crop window inside the frame canvas
type CropArea struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
