package draft

import "context"

// Prompt is the instruction pair handed to the text generator.
type Prompt struct {
	System string
	User   string
}

// Generator turns a Prompt into proposed reply text.
// The returned text is always complete: either generated or a fixed fallback.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}
