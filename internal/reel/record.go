package reel

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// LedgerFilename is the per-directory ledger record.
const LedgerFilename = "versions.json"

// Producer tags written by the core.
const (
	ProducerFastForward = "fast-forward"
	ProducerManualEdit  = "manual-edit"
	ProducerExternal    = "external"
	ProducerMigrated    = "migrated"
)

// VersionRecord is one immutable version of a content type in a directory.
type VersionRecord struct {
	Version   int       `json:"version"`
	Filename  string    `json:"file"`
	CreatedAt time.Time `json:"created"`
	Producer  string    `json:"producer"`
}

// legacy records carry "model" instead of "producer", no "version",
// and naive isoformat timestamps.
type versionJSON struct {
	Version  int    `json:"version,omitempty"`
	File     string `json:"file"`
	Created  string `json:"created"`
	Producer string `json:"producer,omitempty"`
	Model    string `json:"model,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func (r *VersionRecord) UnmarshalJSON(data []byte) error {
	var raw versionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.File == "" {
		return errors.New("version entry has no file")
	}
	created, err := parseTimestamp(raw.Created)
	if err != nil {
		return err
	}
	producer := raw.Producer
	if producer == "" {
		producer = raw.Model
	}
	version := raw.Version
	if version == 0 {
		_, v, ok := MatchVersionedFilename(raw.File)
		if !ok {
			return fmt.Errorf("cannot derive version from %q", raw.File)
		}
		version = v
	}
	*r = VersionRecord{Version: version, Filename: raw.File, CreatedAt: created, Producer: producer}
	return nil
}

func (r VersionRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(versionJSON{
		Version:  r.Version,
		File:     r.Filename,
		Created:  r.CreatedAt.UTC().Format(time.RFC3339Nano),
		Producer: r.Producer,
	})
}

type typeEntry struct {
	Latest   string          `json:"latest"`
	Versions []VersionRecord `json:"versions"`
}

func (e *typeEntry) find(version int) *VersionRecord {
	for i := range e.Versions {
		if e.Versions[i].Version == version {
			return &e.Versions[i]
		}
	}
	return nil
}

func (e *typeEntry) maxVersion() int {
	highest := 0
	for _, v := range e.Versions {
		if v.Version > highest {
			highest = v.Version
		}
	}
	return highest
}

// latest returns the record named by Latest, or nil.
func (e *typeEntry) latest() *VersionRecord {
	if e.Latest == "" {
		return nil
	}
	for i := range e.Versions {
		if e.Versions[i].Filename == e.Latest {
			return &e.Versions[i]
		}
	}
	return nil
}

func (e *typeEntry) sortVersions() {
	sort.SliceStable(e.Versions, func(i, j int) bool {
		return e.Versions[i].Version < e.Versions[j].Version
	})
}

// ledgerRecord is the in-memory form of versions.json. Keys that are not
// known content types are carried through untouched.
type ledgerRecord struct {
	entries map[ContentType]*typeEntry
	unknown map[string]json.RawMessage
}

func newLedgerRecord() *ledgerRecord {
	return &ledgerRecord{
		entries: make(map[ContentType]*typeEntry),
		unknown: make(map[string]json.RawMessage),
	}
}

// entry returns the entry for ct, creating an empty one if absent.
func (r *ledgerRecord) entry(ct ContentType) *typeEntry {
	e, ok := r.entries[ct]
	if !ok {
		e = &typeEntry{}
		r.entries[ct] = e
	}
	return e
}

// lookup returns the entry for ct without creating it.
func (r *ledgerRecord) lookup(ct ContentType) *typeEntry {
	return r.entries[ct]
}

func readLedgerRecord(dir string) (*ledgerRecord, error) {
	path := filepath.Join(dir, LedgerFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newLedgerRecord(), nil
		}
		return nil, storageErr("read", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptLedger, path, err)
	}

	rec := newLedgerRecord()
	for key, value := range raw {
		ct := ContentType(key)
		if !ct.Valid() {
			rec.unknown[key] = value
			continue
		}
		var e typeEntry
		if err := json.Unmarshal(value, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %s: %v", ErrCorruptLedger, path, key, err)
		}
		e.sortVersions()
		rec.entries[ct] = &e
	}
	return rec, nil
}

// writeLedgerRecord persists rec atomically via a temp file in dir.
func writeLedgerRecord(dir string, rec *ledgerRecord) error {
	out := make(map[string]any, len(rec.entries)+len(rec.unknown))
	for key, value := range rec.unknown {
		out[key] = value
	}
	for ct, e := range rec.entries {
		if len(e.Versions) == 0 {
			continue
		}
		out[string(ct)] = e
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger record: %w", err)
	}

	path := filepath.Join(dir, LedgerFilename)
	tmp, err := os.CreateTemp(dir, "."+LedgerFilename+".tmp-*")
	if err != nil {
		return storageErr("create", path, err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return storageErr("write", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return storageErr("sync", path, err)
	}
	if err := tmp.Close(); err != nil {
		return storageErr("close", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return storageErr("rename", path, err)
	}
	success = true
	return nil
}
