package testutil

import (
	"context"
	"errors"
	"os"
	"sync"

	"reel-go/internal/reel"
)

// FakeGenerator writes Content, or the instruction when Content is nil, to
// each request's output path and remembers what it was asked for.
type FakeGenerator struct {
	Producer string
	Content  []byte
	// FailFor makes requests for these content types return Err.
	FailFor map[reel.ContentType]bool
	Err     error

	mu       sync.Mutex
	requests []reel.GenerationRequest
}

var _ reel.Generator = (*FakeGenerator)(nil)

func NewFakeGenerator() *FakeGenerator {
	return &FakeGenerator{Producer: "fake-model"}
}

func (g *FakeGenerator) Generate(ctx context.Context, req reel.GenerationRequest) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.FailFor[req.ContentType] {
		if g.Err != nil {
			return "", g.Err
		}
		return "", errors.New("generation failed")
	}

	out := g.Content
	if out == nil {
		out = []byte(req.Instruction)
	}
	if err := os.WriteFile(req.OutputPath, out, 0644); err != nil {
		return "", err
	}
	return g.Producer, nil
}

// Requests returns a copy of every request received so far.
func (g *FakeGenerator) Requests() []reel.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]reel.GenerationRequest(nil), g.requests...)
}
