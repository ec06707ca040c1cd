package reel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// FastForwardReason is the machine-readable outcome of a fast-forward.
type FastForwardReason string

const (
	ReasonAdvanced         FastForwardReason = "advanced"
	ReasonNotFound         FastForwardReason = "not_found"
	ReasonAlreadySatisfied FastForwardReason = "already_satisfied"
	ReasonSourceMissing    FastForwardReason = "source_missing"
	ReasonVersionConflict  FastForwardReason = "version_conflict"
)

// FastForwardResult reports what a fast-forward did. From is the version
// of latest before the call; To is latest afterwards.
type FastForwardResult struct {
	Advanced bool
	Reason   FastForwardReason
	From     int
	To       int
}

// Err maps a non-advancing reason to its sentinel error, or nil.
func (r FastForwardResult) Err() error {
	switch r.Reason {
	case ReasonNotFound:
		return ErrNotFound
	case ReasonAlreadySatisfied:
		return ErrAlreadySatisfied
	case ReasonSourceMissing:
		return ErrSourceMissing
	case ReasonVersionConflict:
		return ErrVersionConflict
	}
	return nil
}

// FastForward copies the bytes of the latest version of ct into every
// version number after it up to target, registering each copy with producer
// "fast-forward". Expected no-op conditions are returned as a result with
// Advanced=false and never as an error; only storage and ledger corruption
// failures are returned as errors.
func (l *Ledger) FastForward(dir string, ct ContentType, target int) (FastForwardResult, error) {
	if err := checkType(ct); err != nil {
		return FastForwardResult{}, err
	}
	if _, err := os.Stat(filepath.Join(dir, LedgerFilename)); err != nil {
		if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
			return FastForwardResult{}, storageErr("stat", dir, err)
		}
		res := FastForwardResult{Reason: ReasonNotFound}
		l.logSkip(dir, ct, target, res)
		return res, nil
	}

	var res FastForwardResult
	var added []VersionRecord
	err := l.locks.with(dir, func() error {
		rec, err := readLedgerRecord(dir)
		if err != nil {
			return err
		}
		e := rec.entry(ct)
		latest := e.latest()
		if latest == nil {
			res = FastForwardResult{Reason: ReasonNotFound}
			return nil
		}
		res.From, res.To = latest.Version, latest.Version
		if latest.Version >= target {
			res.Reason = ReasonAlreadySatisfied
			return nil
		}
		// latest may have been restored to an older version; numbers already
		// registered above it are never reused.
		if e.maxVersion() >= target {
			res.Reason = ReasonVersionConflict
			return nil
		}
		src := filepath.Join(dir, latest.Filename)
		if info, err := os.Stat(src); err != nil || !info.Mode().IsRegular() {
			res.Reason = ReasonSourceMissing
			return nil
		}

		// An unregistered file already holding one of the numbers blocks
		// the whole range.
		for v := e.maxVersion() + 1; v <= target; v++ {
			if _, err := os.Lstat(filepath.Join(dir, ct.Filename(v))); err == nil {
				res.Reason = ReasonVersionConflict
				return nil
			}
		}

		var written []string
		cleanup := func() {
			for _, p := range written {
				os.Remove(p)
			}
		}
		now := l.clock.Now().UTC()
		for v := e.maxVersion() + 1; v <= target; v++ {
			name := ct.Filename(v)
			dst := filepath.Join(dir, name)
			if err := copyExclusive(src, dst); err != nil {
				cleanup()
				added = nil
				switch {
				case errors.Is(err, ErrVersionExists):
					res.Reason = ReasonVersionConflict
					return nil
				case errors.Is(err, ErrSourceMissing):
					res.Reason = ReasonSourceMissing
					return nil
				}
				return err
			}
			written = append(written, dst)
			added = append(added, VersionRecord{Version: v, Filename: name, CreatedAt: now, Producer: ProducerFastForward})
		}

		e.Versions = append(e.Versions, added...)
		e.Latest = ct.Filename(target)
		if err := writeLedgerRecord(dir, rec); err != nil {
			cleanup()
			return err
		}
		res = FastForwardResult{Advanced: true, Reason: ReasonAdvanced, From: res.From, To: target}
		return nil
	})
	if err != nil {
		return FastForwardResult{}, fmt.Errorf("fast-forwarding %s in %s to v%d: %w", ct, dir, target, err)
	}

	if !res.Advanced {
		l.logSkip(dir, ct, target, res)
		return res, nil
	}
	l.logger.Info("fast-forwarded", "dir", dir, "type", ct, "from", res.From, "to", res.To)
	for _, vr := range added {
		l.emit(dir, ct, ActionFastForward, vr)
	}
	return res, nil
}

func (l *Ledger) logSkip(dir string, ct ContentType, target int, res FastForwardResult) {
	l.logger.Info("fast-forward skipped", "dir", dir, "type", ct, "target", target, "current", res.From, "reason", string(res.Reason))
}

func copyExclusive(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceMissing, src)
		}
		return storageErr("open", src, err)
	}
	defer f.Close()
	return writeExclusive(dst, f)
}
