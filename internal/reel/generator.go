package reel

import "context"

// GenerationRequest asks a generator for new content of ContentType.
// InputPath is the latest file of the type's source, OutputPath is where the
// generator must write its result.
type GenerationRequest struct {
	Dir           string
	ContentType   ContentType
	TargetVersion int
	Instruction   string
	InputPath     string
	OutputPath    string
}

// Generator produces new content bytes. It returns the producer tag to
// record on the resulting version.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (producer string, err error)
}
