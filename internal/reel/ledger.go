package reel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// Ledger tracks versions of every content type per asset directory. All
// mutations are read-modify-write of the whole versions.json under a
// per-directory lock. Reads go straight to disk.
type Ledger struct {
	locks   *dirLocks
	clock   Clock
	logger  Logger
	journal Journal
}

// NewLedger creates a Ledger. A nil journal disables event recording.
func NewLedger(clock Clock, logger Logger, journal Journal) *Ledger {
	if journal == nil {
		journal = NopJournal{}
	}
	return &Ledger{
		locks:   newDirLocks(),
		clock:   clock,
		logger:  logger,
		journal: journal,
	}
}

func (l *Ledger) emit(dir string, ct ContentType, action string, rec VersionRecord) {
	ev := LedgerEvent{
		Dir:         dir,
		ContentType: ct,
		Action:      action,
		Version:     rec.Version,
		Producer:    rec.Producer,
		At:          l.clock.Now().UTC(),
	}
	if err := l.journal.LedgerEvent(ev); err != nil {
		l.logger.Warn("journaling ledger event failed", "dir", dir, "type", ct, "action", action, "error", err)
	}
}

func checkType(ct ContentType) error {
	if !ct.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownContentType, string(ct))
	}
	return nil
}

// RecordVersion stores content as the next version of ct in dir and makes
// it latest. The version file is created exclusively; an unregistered file
// already sitting at that name yields ErrVersionExists. On any failure the
// ledger is left unchanged and no partial file remains.
func (l *Ledger) RecordVersion(dir string, ct ContentType, content io.Reader, producer string) (*VersionRecord, error) {
	if err := checkType(ct); err != nil {
		return nil, err
	}
	if !ct.IsBinary() {
		data, err := io.ReadAll(content)
		if err != nil {
			return nil, fmt.Errorf("reading content: %w", err)
		}
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: %s requires UTF-8 text", ErrInvalidContent, ct)
		}
		content = bytes.NewReader(data)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, storageErr("mkdir", dir, err)
	}

	var recorded VersionRecord
	err := l.locks.with(dir, func() error {
		rec, err := readLedgerRecord(dir)
		if err != nil {
			return err
		}
		e := rec.entry(ct)
		next := e.maxVersion() + 1
		name := ct.Filename(next)
		path := filepath.Join(dir, name)

		if err := writeExclusive(path, content); err != nil {
			return err
		}

		recorded = VersionRecord{
			Version:   next,
			Filename:  name,
			CreatedAt: l.clock.Now().UTC(),
			Producer:  producer,
		}
		e.Versions = append(e.Versions, recorded)
		e.Latest = name

		if err := writeLedgerRecord(dir, rec); err != nil {
			os.Remove(path)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recording %s in %s: %w", ct, dir, err)
	}

	l.logger.Info("version recorded", "dir", dir, "type", ct, "version", recorded.Version, "producer", producer)
	l.emit(dir, ct, ActionRecord, recorded)
	return &recorded, nil
}

// RecordText records a text version.
func (l *Ledger) RecordText(dir string, ct ContentType, text string, producer string) (*VersionRecord, error) {
	return l.RecordVersion(dir, ct, bytes.NewReader([]byte(text)), producer)
}

// RecordFile records a copy of the file at src.
func (l *Ledger) RecordFile(dir string, ct ContentType, src string, producer string) (*VersionRecord, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()
	return l.RecordVersion(dir, ct, f, producer)
}

// writeExclusive creates path, failing if it already exists, and copies r into it.
func writeExclusive(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrVersionExists, path)
		}
		return storageErr("create", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return storageErr("write", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return storageErr("close", path, err)
	}
	return nil
}

// GetLatest returns the latest version record, or nil if none exist.
func (l *Ledger) GetLatest(dir string, ct ContentType) (*VersionRecord, error) {
	if err := checkType(ct); err != nil {
		return nil, err
	}
	rec, err := readLedgerRecord(dir)
	if err != nil {
		return nil, err
	}
	e := rec.lookup(ct)
	if e == nil {
		return nil, nil
	}
	latest := e.latest()
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// GetVersionNumber returns the version number of latest, or 0.
func (l *Ledger) GetVersionNumber(dir string, ct ContentType) (int, error) {
	latest, err := l.GetLatest(dir, ct)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return 0, nil
	}
	return latest.Version, nil
}

// ListVersions returns every version of ct in dir in ascending order.
func (l *Ledger) ListVersions(dir string, ct ContentType) ([]VersionRecord, error) {
	if err := checkType(ct); err != nil {
		return nil, err
	}
	rec, err := readLedgerRecord(dir)
	if err != nil {
		return nil, err
	}
	e := rec.lookup(ct)
	if e == nil {
		return nil, nil
	}
	return append([]VersionRecord(nil), e.Versions...), nil
}

// LatestPath returns the path of the latest file for ct, or "" if none.
func (l *Ledger) LatestPath(dir string, ct ContentType) (string, error) {
	latest, err := l.GetLatest(dir, ct)
	if err != nil || latest == nil {
		return "", err
	}
	return filepath.Join(dir, latest.Filename), nil
}

// SetLatest repoints latest at an existing version. It returns false without
// touching the ledger when the version is unknown or already latest.
func (l *Ledger) SetLatest(dir string, ct ContentType, version int) (bool, error) {
	if err := checkType(ct); err != nil {
		return false, err
	}
	if _, err := os.Stat(filepath.Join(dir, LedgerFilename)); err != nil {
		l.logger.Info("set latest skipped", "dir", dir, "type", ct, "version", version, "reason", "no ledger")
		return false, nil
	}

	var changed VersionRecord
	var reason string
	err := l.locks.with(dir, func() error {
		rec, err := readLedgerRecord(dir)
		if err != nil {
			return err
		}
		e := rec.lookup(ct)
		if e == nil {
			reason = "not_found"
			return nil
		}
		target := e.find(version)
		if target == nil {
			reason = "not_found"
			return nil
		}
		if e.Latest == target.Filename {
			reason = "already_latest"
			return nil
		}
		e.Latest = target.Filename
		changed = *target
		return writeLedgerRecord(dir, rec)
	})
	if err != nil {
		return false, fmt.Errorf("setting latest %s in %s: %w", ct, dir, err)
	}
	if reason != "" {
		l.logger.Info("set latest skipped", "dir", dir, "type", ct, "version", version, "reason", reason)
		return false, nil
	}

	l.logger.Info("latest set", "dir", dir, "type", ct, "version", version)
	l.emit(dir, ct, ActionSetLatest, changed)
	return true, nil
}

// MigrateLegacy renames canonical non-versioned files into version 1 for
// every content type that has no versions yet. Running it again is a no-op.
func (l *Ledger) MigrateLegacy(dir string) (map[ContentType]bool, error) {
	migrated := make(map[ContentType]bool)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return migrated, nil
	}

	var records []VersionRecord
	var types []ContentType
	err := l.locks.with(dir, func() error {
		rec, err := readLedgerRecord(dir)
		if err != nil {
			return err
		}

		type rename struct{ from, to string }
		var done []rename
		rollback := func() {
			for _, r := range done {
				os.Rename(r.to, r.from)
			}
		}

		for _, ct := range AllContentTypes() {
			if e := rec.lookup(ct); e != nil && len(e.Versions) > 0 {
				continue
			}
			legacy := filepath.Join(dir, ct.CanonicalFilename())
			info, err := os.Stat(legacy)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			name := ct.Filename(1)
			target := filepath.Join(dir, name)
			if _, err := os.Stat(target); err == nil {
				// An unregistered v1 is left to discovery.
				continue
			}
			if err := os.Rename(legacy, target); err != nil {
				rollback()
				return storageErr("rename", legacy, err)
			}
			done = append(done, rename{from: legacy, to: target})

			vr := VersionRecord{Version: 1, Filename: name, CreatedAt: info.ModTime().UTC(), Producer: ProducerMigrated}
			e := rec.entry(ct)
			e.Versions = append(e.Versions, vr)
			e.Latest = name
			records = append(records, vr)
			types = append(types, ct)
		}

		if len(done) == 0 {
			return nil
		}
		if err := writeLedgerRecord(dir, rec); err != nil {
			rollback()
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("migrating legacy files in %s: %w", dir, err)
	}

	for i, ct := range types {
		migrated[ct] = true
		l.logger.Info("legacy file migrated", "dir", dir, "type", ct, "file", records[i].Filename)
		l.emit(dir, ct, ActionMigrate, records[i])
	}
	return migrated, nil
}
