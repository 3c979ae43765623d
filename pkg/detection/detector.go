package detection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/menta2k/framecrop/pkg/client"
	"github.com/menta2k/framecrop/pkg/types"
)

// ErrNoSubject is returned when the model reports no usable subject
var ErrNoSubject = errors.New("detection: no subject found")

// DefaultPrompt asks for the dominant subject's box in normalized coordinates
const DefaultPrompt = `You are an image subject locator.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence",
  "tags": ["tag1", "tag2", "tag3"]
}

RULES
- All coordinates are normalized to [0,1] (NOT pixels), origin top-left.
- The box tightly includes the visually dominant subject (prefer faces, people, animals; else the most salient object).
- cx, cy is the point that should stay centered when the image is cropped, usually the face or the box center.
- If no subject is found, return {"primary":{"label":"none","confidence":0.0,"box":{"x":0.25,"y":0.25,"w":0.5,"h":0.5},"cx":0.5,"cy":0.5},"description":"","tags":[]}
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

var fallbackIndicators = []string{"unclear", "parse", "error", "fallback", "non-json"}

// Detector locates subjects through a vision model
type Detector struct {
	client        client.VisionClient
	model         string
	prompt        string
	minConfidence float64
	log           *slog.Logger
}

// Option configures a Detector
type Option func(*Detector)

// WithPrompt replaces DefaultPrompt
func WithPrompt(p string) Option {
	return func(d *Detector) {
		if p != "" {
			d.prompt = p
		}
	}
}

// WithMinConfidence drops detections below c
func WithMinConfidence(c float64) Option {
	return func(d *Detector) { d.minConfidence = c }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDetector creates a detector querying model through c
func NewDetector(c client.VisionClient, model string, opts ...Option) *Detector {
	d := &Detector{
		client: c,
		model:  model,
		prompt: DefaultPrompt,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect asks the model for the primary subject of the base64 image.
// ErrNoSubject means the model answered but found nothing usable.
func (d *Detector) Detect(ctx context.Context, imageB64 string) (*types.Detection, error) {
	raw, err := d.client.Query(ctx, d.model, d.prompt, imageB64)
	if err != nil {
		return nil, err
	}
	result, err := ParseDetection(raw)
	if err != nil {
		d.log.Warn("unparseable model answer", "model", d.model, "error", err)
		return nil, ErrNoSubject
	}
	if strings.EqualFold(result.Primary.Label, "none") {
		return nil, ErrNoSubject
	}
	if result.Primary.Confidence > 0 && result.Primary.Confidence < d.minConfidence {
		d.log.Debug("detection below threshold", "label", result.Primary.Label, "confidence", result.Primary.Confidence)
		return nil, ErrNoSubject
	}
	return result, nil
}

// ParseDetection extracts a Detection from a model answer, tolerating code
// fences, comments, trailing commas and surrounding prose
func ParseDetection(raw string) (*types.Detection, error) {
	cleaned := sanitizeModelJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, errors.New("no JSON object in answer")
	}

	var result types.Detection
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, err
	}
	for _, indicator := range fallbackIndicators {
		if strings.Contains(strings.ToLower(result.Primary.Label), indicator) {
			result.Primary.Label = "none"
			result.Primary.Confidence = 0
			break
		}
	}

	result.Primary.Box = normalizeBox(result.Primary.Box)
	result.Primary.Cx = clamp(result.Primary.Cx, 0, 1)
	result.Primary.Cy = clamp(result.Primary.Cy, 0, 1)
	result.Tags = normalizeTags(result.Tags)
	return &result, nil
}

func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func clamp(v, lo, hi float64) float64 {
	if !types.Finite(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox keeps the box inside the unit square
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// normalizeTags lowercases, dedups and keeps at most five tags
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
