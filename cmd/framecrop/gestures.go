package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/framecrop/pkg/types"
)

// Gesture is one recorded pointer or wheel event. WaitMs pauses before the
// event is replayed.
type Gesture struct {
	Type   string  `yaml:"type" json:"type"`
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Delta  float64 `yaml:"delta" json:"delta"`
	WaitMs int     `yaml:"waitMs" json:"waitMs"`
}

// pointerTarget receives replayed gestures; *controller.Controller
// satisfies it
type pointerTarget interface {
	PointerDown(p types.Point) error
	PointerMove(p types.Point) error
	PointerUp() error
	PointerLeave() error
	Wheel(deltaY float64) error
	Flush() error
}

// loadGestures reads a YAML or JSON list of gestures
func loadGestures(path string) ([]Gesture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gestures: %w", err)
	}
	var gestures []Gesture
	if err := yaml.Unmarshal(data, &gestures); err != nil {
		return nil, fmt.Errorf("failed to parse gestures: %w", err)
	}
	return gestures, nil
}

func replay(ctx context.Context, target pointerTarget, gestures []Gesture, sleep func(time.Duration)) error {
	for i, g := range gestures {
		if err := ctx.Err(); err != nil {
			return err
		}
		if g.WaitMs > 0 {
			sleep(time.Duration(g.WaitMs) * time.Millisecond)
		}
		p := types.Point{X: g.X, Y: g.Y}
		var err error
		switch strings.ToLower(g.Type) {
		case "down":
			err = target.PointerDown(p)
		case "move":
			err = target.PointerMove(p)
		case "up":
			err = target.PointerUp()
		case "leave":
			err = target.PointerLeave()
		case "wheel":
			err = target.Wheel(g.Delta)
		default:
			err = fmt.Errorf("unknown gesture type %q", g.Type)
		}
		if err != nil {
			return fmt.Errorf("gesture %d (%s): %w", i, g.Type, err)
		}
	}
	return target.Flush()
}
