package generate

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"

	"reel-go/internal/config"
	"reel-go/internal/reel"
)

// Set dispatches each request to the generator registered for its content
// type.
type Set struct {
	byType map[reel.ContentType]reel.Generator
}

var _ reel.Generator = (*Set)(nil)

func NewSet() *Set {
	return &Set{byType: make(map[reel.ContentType]reel.Generator)}
}

// NewSetFromConfig builds a command generator for every configured entry.
func NewSetFromConfig(cfgs []config.GeneratorConfig) (*Set, error) {
	s := NewSet()
	for _, c := range cfgs {
		ct, err := reel.ParseContentType(c.ContentType)
		if err != nil {
			return nil, fmt.Errorf("generator %q: %w", c.Name, err)
		}
		g, err := NewCommandGeneratorFromConfig(c)
		if err != nil {
			return nil, err
		}
		if err := s.Register(ct, g); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) Register(ct reel.ContentType, g reel.Generator) error {
	if _, ok := s.byType[ct]; ok {
		return fmt.Errorf("generator for %s already registered", ct)
	}
	s.byType[ct] = g
	return nil
}

// Types lists the content types that have a generator.
func (s *Set) Types() []reel.ContentType {
	var out []reel.ContentType
	for _, ct := range reel.AllContentTypes() {
		if _, ok := s.byType[ct]; ok {
			out = append(out, ct)
		}
	}
	return out
}

func (s *Set) Generate(ctx context.Context, req reel.GenerationRequest) (string, error) {
	g, ok := s.byType[req.ContentType]
	if !ok {
		return "", fmt.Errorf("no generator configured for %s", req.ContentType)
	}
	return g.Generate(ctx, req)
}

// NewLimiter converts a requests-per-minute budget into a token bucket with
// a burst of one. Zero or less means unlimited.
func NewLimiter(requestsPerMinute float64) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(requestsPerMinute/60), 1)
}

// PollInterval returns the worker poll interval from config, defaulting
// to one minute.
func PollInterval(cfg config.WorkerConfig) time.Duration {
	if cfg.PollIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(cfg.PollIntervalSeconds) * time.Second
}

func checkOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("no output written: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("empty output at %s", path)
	}
	return nil
}
