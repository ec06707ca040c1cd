package reel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// WorkerSummary counts what one pass over the queue did.
type WorkerSummary struct {
	Claimed   int
	Completed int
	Failed    int
}

// ProcessQueue runs every pending job in dirs once. A job whose generation
// or recording fails is archived as failed with the error attached and no
// ledger version is recorded for it. Only queue storage failures and
// cancellation end the pass early.
func (s *Service) ProcessQueue(ctx context.Context, dirs []string) (WorkerSummary, error) {
	var sum WorkerSummary
	if s.generator == nil {
		return sum, errors.New("no generator configured")
	}

	jobs, err := s.queue.ListPending(dirs)
	if err != nil {
		return sum, fmt.Errorf("listing pending jobs: %w", err)
	}

	for _, job := range jobs {
		if err := s.limiter.Wait(ctx); err != nil {
			return sum, err
		}
		ok, err := s.queue.Claim(job)
		if err != nil {
			return sum, fmt.Errorf("claiming %s: %w", job.ID(), err)
		}
		if !ok {
			continue
		}
		sum.Claimed++

		if err := s.runJob(ctx, job); err != nil {
			s.logger.Error("job generation failed", "job", job.ID(), "error", err)
			if ferr := s.queue.Fail(job, err.Error()); ferr != nil {
				return sum, fmt.Errorf("failing %s: %w", job.ID(), ferr)
			}
			sum.Failed++
			continue
		}
		if err := s.queue.Complete(job); err != nil {
			return sum, fmt.Errorf("completing %s: %w", job.ID(), err)
		}
		sum.Completed++
	}
	return sum, nil
}

func (s *Service) runJob(ctx context.Context, job *Job) error {
	ct := job.ContentType
	instruction, err := s.queue.ReadPayload(job)
	if err != nil {
		return err
	}
	if _, err := s.Reconcile(job.Dir); err != nil {
		return err
	}

	src := ct.SourceType()
	input, err := s.ledger.LatestPath(job.Dir, src)
	if err != nil {
		return err
	}
	if input == "" {
		return fmt.Errorf("%w: no %s in %s to generate from", ErrNotFound, src, job.Dir)
	}

	out, err := os.CreateTemp(job.Dir, "."+ct.BaseName()+"_gen-*"+ct.Extension())
	if err != nil {
		return storageErr("create", job.Dir, err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	s.logger.Info("generating", "job", job.ID(), "type", ct, "input", input)
	producer, err := s.generator.Generate(ctx, GenerationRequest{
		Dir:           job.Dir,
		ContentType:   ct,
		TargetVersion: job.TargetVersion,
		Instruction:   instruction,
		InputPath:     input,
		OutputPath:    outPath,
	})
	if err != nil {
		return &GenerationError{ContentType: ct, Err: err}
	}
	if producer == "" {
		producer = "unknown"
	}

	rec, err := s.ledger.RecordFile(job.Dir, ct, outPath, producer)
	if err != nil {
		return err
	}
	if rec.Version != job.TargetVersion {
		s.logger.Warn("recorded version differs from job target", "job", job.ID(), "version", rec.Version, "target", job.TargetVersion)
	}
	return nil
}

// RunWorker processes the queue for document (or the whole workspace when
// empty) every interval until ctx is cancelled. With once set it makes a
// single pass.
func (s *Service) RunWorker(ctx context.Context, document string, interval time.Duration, once bool) error {
	for {
		dirs, err := s.ScopeDirs(document)
		if err != nil {
			return err
		}
		sum, err := s.ProcessQueue(ctx, dirs)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("queue pass failed", "error", err)
			if once {
				return err
			}
		} else if sum.Claimed > 0 {
			s.logger.Info("queue pass finished", "claimed", sum.Claimed, "completed", sum.Completed, "failed", sum.Failed)
		}
		if once {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
