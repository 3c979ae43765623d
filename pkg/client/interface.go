package client

import "context"

// VisionClient sends one image plus a prompt to a vision model and returns
// the model's raw text answer
type VisionClient interface {
	Query(ctx context.Context, model, prompt, imgB64 string) (string, error)
	Ping(ctx context.Context) error
}
