package providers

import "context"

// Engine is the minimal surface a recognition provider implements.
type Engine interface {
	// Name returns a short stable identifier used in logs and provenance.
	Name() string
	// Recognize extracts text from a single image.
	Recognize(ctx context.Context, in Input) (Result, error)
}

// BatchEngine is implemented by providers whose API accepts several images in
// one request and returns per-image results in input order.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, ins []Input) ([]Result, error)
}

// Input is one image handed to an engine.
type Input struct {
	Image         []byte
	MediaType     string
	LanguageHints []string
}

// Result is the raw engine output for one image.
type Result struct {
	Text       string
	Confidence float64
}
