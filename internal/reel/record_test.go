package reel

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const legacyLedger = `{
  "en_text": {
    "latest": "final_text_en_v2.txt",
    "versions": [
      {"file": "final_text_en_v2.txt", "created": "2024-01-02T10:00:00", "producer": "manual-edit"},
      {"file": "final_text_en_v1.txt", "created": "2024-01-01T10:00:00.123456", "model": "gpt-4"}
    ]
  },
  "pdf_state": {"done": true}
}`

func TestReadLedgerRecord_Legacy(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, LedgerFilename), []byte(legacyLedger), 0644); err != nil {
		t.Fatal(err)
	}

	rec, err := readLedgerRecord(dir)
	if err != nil {
		t.Fatalf("readLedgerRecord() error = %v", err)
	}
	e := rec.lookup(EnText)
	if e == nil || len(e.Versions) != 2 {
		t.Fatalf("en_text entry = %+v, want two versions", e)
	}
	if e.Versions[0].Version != 1 || e.Versions[1].Version != 2 {
		t.Errorf("versions = %d,%d, want sorted 1,2", e.Versions[0].Version, e.Versions[1].Version)
	}
	if e.Versions[0].Producer != "gpt-4" {
		t.Errorf("legacy model not read as producer: %q", e.Versions[0].Producer)
	}
	wantCreated := time.Date(2024, 1, 1, 10, 0, 0, 123456000, time.UTC)
	if !e.Versions[0].CreatedAt.Equal(wantCreated) {
		t.Errorf("CreatedAt = %v, want %v", e.Versions[0].CreatedAt, wantCreated)
	}
	if e.latest() == nil || e.latest().Version != 2 {
		t.Errorf("latest() = %+v, want v2", e.latest())
	}
}

func TestWriteLedgerRecord_PreservesUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, LedgerFilename), []byte(legacyLedger), 0644); err != nil {
		t.Fatal(err)
	}
	rec, err := readLedgerRecord(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := writeLedgerRecord(dir, rec); err != nil {
		t.Fatalf("writeLedgerRecord() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LedgerFilename))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("written ledger is not JSON: %v", err)
	}
	var pdfState struct {
		Done bool `json:"done"`
	}
	if err := json.Unmarshal(raw["pdf_state"], &pdfState); err != nil || !pdfState.Done {
		t.Errorf("pdf_state = %s, want it preserved", raw["pdf_state"])
	}

	var entry struct {
		Latest   string `json:"latest"`
		Versions []struct {
			Version  int    `json:"version"`
			File     string `json:"file"`
			Producer string `json:"producer"`
		} `json:"versions"`
	}
	if err := json.Unmarshal(raw["en_text"], &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Latest != "final_text_en_v2.txt" || len(entry.Versions) != 2 || entry.Versions[0].Producer != "gpt-4" {
		t.Errorf("en_text entry = %+v", entry)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, ".*tmp*"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestReadLedgerRecord_Errors(t *testing.T) {
	t.Run("missing file is empty", func(t *testing.T) {
		rec, err := readLedgerRecord(t.TempDir())
		if err != nil {
			t.Fatalf("readLedgerRecord() error = %v", err)
		}
		if len(rec.entries) != 0 {
			t.Errorf("entries = %v, want none", rec.entries)
		}
	})

	for name, content := range map[string]string{
		"not json":         "{garbage",
		"bad entry":        `{"image": {"latest": 3}}`,
		"bad timestamp":    `{"image": {"latest": "image_to_use_v1.png", "versions": [{"file": "image_to_use_v1.png", "created": "yesterday"}]}}`,
		"underivable file": `{"image": {"latest": "x.png", "versions": [{"file": "x.png", "created": "2024-01-01T00:00:00Z"}]}}`,
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, LedgerFilename), []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := readLedgerRecord(dir)
			if !errors.Is(err, ErrCorruptLedger) {
				t.Errorf("readLedgerRecord() error = %v, want ErrCorruptLedger", err)
			}
		})
	}
}

func TestVersionRecord_MarshalJSON(t *testing.T) {
	vr := VersionRecord{
		Version:   3,
		Filename:  "image_to_use_v3.png",
		CreatedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Producer:  ProducerFastForward,
	}
	data, err := json.Marshal(vr)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"version":3,"file":"image_to_use_v3.png","created":"2024-01-15T10:30:00Z","producer":"fast-forward"}`
	if string(data) != want {
		t.Errorf("MarshalJSON() = %s, want %s", data, want)
	}
}
