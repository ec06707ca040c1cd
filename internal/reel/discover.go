package reel

import (
	"errors"
	"fmt"
	"os"
)

// Discover registers versioned files present in dir but absent from its
// ledger, with producer "external" and the file's modification time. For each
// content type that gained versions, latest moves to the highest registered
// version. Types with nothing new are left exactly as they were, and gaps in
// numbering are kept as they are. It returns the count of new registrations
// per content type; a missing dir yields an empty map.
func (l *Ledger) Discover(dir string) (map[ContentType]int, error) {
	found := make(map[ContentType]int)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return found, nil
		}
		return nil, storageErr("readdir", dir, err)
	}

	type candidate struct {
		ct      ContentType
		version int
		entry   os.DirEntry
	}
	var candidates []candidate
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if ct, v, ok := MatchVersionedFilename(entry.Name()); ok {
			candidates = append(candidates, candidate{ct: ct, version: v, entry: entry})
		}
	}
	if len(candidates) == 0 {
		return found, nil
	}

	var added []struct {
		ct ContentType
		vr VersionRecord
	}
	err = l.locks.with(dir, func() error {
		rec, err := readLedgerRecord(dir)
		if err != nil {
			return err
		}
		touched := make(map[ContentType]bool)
		for _, c := range candidates {
			e := rec.entry(c.ct)
			if e.find(c.version) != nil {
				continue
			}
			info, err := c.entry.Info()
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return storageErr("stat", c.entry.Name(), err)
			}
			vr := VersionRecord{
				Version:   c.version,
				Filename:  c.entry.Name(),
				CreatedAt: info.ModTime().UTC(),
				Producer:  ProducerExternal,
			}
			e.Versions = append(e.Versions, vr)
			touched[c.ct] = true
			added = append(added, struct {
				ct ContentType
				vr VersionRecord
			}{c.ct, vr})
		}
		if len(touched) == 0 {
			return nil
		}
		for ct := range touched {
			e := rec.entry(ct)
			e.sortVersions()
			e.Latest = e.Versions[len(e.Versions)-1].Filename
		}
		return writeLedgerRecord(dir, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("discovering versions in %s: %w", dir, err)
	}

	for _, a := range added {
		found[a.ct]++
		l.emit(dir, a.ct, ActionDiscover, a.vr)
	}
	for ct, n := range found {
		l.logger.Info("versions discovered", "dir", dir, "type", ct, "count", n)
	}
	return found, nil
}

// DiscoverDirs runs Discover over dirs and returns the total registered.
func (l *Ledger) DiscoverDirs(dirs []string) (int, error) {
	total := 0
	for _, dir := range dirs {
		found, err := l.Discover(dir)
		if err != nil {
			return total, err
		}
		for _, n := range found {
			total += n
		}
	}
	return total, nil
}
