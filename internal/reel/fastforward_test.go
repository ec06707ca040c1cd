package reel_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reel-go/internal/reel"
	"reel-go/internal/testutil"
)

func TestLedger_FastForward_Scenario(t *testing.T) {
	l, _ := newTestLedger(t)
	dir := t.TempDir()

	res, err := l.FastForward(dir, reel.EnText, 3)
	if err != nil {
		t.Fatalf("FastForward() on empty dir error = %v", err)
	}
	if res.Advanced || res.Reason != reel.ReasonNotFound {
		t.Errorf("FastForward() on empty dir = %+v, want not_found", res)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("files created in empty dir: %v", entries)
	}

	rec, err := l.RecordText(dir, reel.EnText, "hello", "model-x")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Version != 1 {
		t.Fatalf("RecordText() version = %d, want 1", rec.Version)
	}

	res, err = l.FastForward(dir, reel.EnText, 3)
	if err != nil {
		t.Fatalf("FastForward() error = %v", err)
	}
	if !res.Advanced || res.From != 1 || res.To != 3 {
		t.Errorf("FastForward() = %+v, want advanced 1->3", res)
	}
	for _, v := range []int{2, 3} {
		got := testutil.ReadFile(t, filepath.Join(dir, reel.EnText.Filename(v)))
		if got != "hello" {
			t.Errorf("v%d content = %q, want %q", v, got, "hello")
		}
	}

	latest, err := l.GetLatest(dir, reel.EnText)
	if err != nil {
		t.Fatal(err)
	}
	if latest.Version != 3 || latest.Producer != reel.ProducerFastForward {
		t.Errorf("latest = %+v, want v3 by fast-forward", latest)
	}
}

func TestLedger_FastForward_NoOps(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, l *reel.Ledger, dir string)
		target int
		want   reel.FastForwardReason
		err    error
	}{
		{
			name:   "no versions of type",
			setup:  func(t *testing.T, l *reel.Ledger, dir string) { mustRecord(t, l, dir, reel.Image, 1) },
			target: 2,
			want:   reel.ReasonNotFound,
			err:    reel.ErrNotFound,
		},
		{
			name:   "target below latest",
			setup:  func(t *testing.T, l *reel.Ledger, dir string) { mustRecord(t, l, dir, reel.EnText, 3) },
			target: 2,
			want:   reel.ReasonAlreadySatisfied,
			err:    reel.ErrAlreadySatisfied,
		},
		{
			name:   "target equals latest",
			setup:  func(t *testing.T, l *reel.Ledger, dir string) { mustRecord(t, l, dir, reel.EnText, 3) },
			target: 3,
			want:   reel.ReasonAlreadySatisfied,
			err:    reel.ErrAlreadySatisfied,
		},
		{
			name: "latest file deleted",
			setup: func(t *testing.T, l *reel.Ledger, dir string) {
				mustRecord(t, l, dir, reel.EnText, 1)
				if err := os.Remove(filepath.Join(dir, reel.EnText.Filename(1))); err != nil {
					t.Fatal(err)
				}
			},
			target: 3,
			want:   reel.ReasonSourceMissing,
			err:    reel.ErrSourceMissing,
		},
		{
			name: "latest restored below registered versions",
			setup: func(t *testing.T, l *reel.Ledger, dir string) {
				mustRecord(t, l, dir, reel.EnText, 3)
				if _, err := l.SetLatest(dir, reel.EnText, 1); err != nil {
					t.Fatal(err)
				}
			},
			target: 3,
			want:   reel.ReasonVersionConflict,
			err:    reel.ErrVersionConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newTestLedger(t)
			dir := t.TempDir()
			tt.setup(t, l, dir)
			before, _ := l.ListVersions(dir, reel.EnText)

			res, err := l.FastForward(dir, reel.EnText, tt.target)
			if err != nil {
				t.Fatalf("FastForward() error = %v", err)
			}
			if res.Advanced || res.Reason != tt.want {
				t.Errorf("FastForward() = %+v, want reason %s", res, tt.want)
			}
			if !errors.Is(res.Err(), tt.err) {
				t.Errorf("Err() = %v, want %v", res.Err(), tt.err)
			}

			after, _ := l.ListVersions(dir, reel.EnText)
			if len(after) != len(before) {
				t.Errorf("versions changed from %d to %d", len(before), len(after))
			}
			if testutil.Exists(filepath.Join(dir, reel.EnText.Filename(tt.target))) && len(before) < tt.target {
				t.Errorf("target file v%d created", tt.target)
			}
		})
	}
}

func TestLedger_FastForward_FromRestoredLatest(t *testing.T) {
	l, _ := newTestLedger(t)
	dir := t.TempDir()
	for _, content := range []string{"one", "two", "three"} {
		if _, err := l.RecordText(dir, reel.EnText, content, "model-x"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := l.SetLatest(dir, reel.EnText, 2); err != nil {
		t.Fatal(err)
	}

	res, err := l.FastForward(dir, reel.EnText, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Advanced || res.From != 2 || res.To != 5 {
		t.Fatalf("FastForward() = %+v, want advanced 2->5", res)
	}
	if got := testutil.ReadFile(t, filepath.Join(dir, reel.EnText.Filename(3))); got != "three" {
		t.Errorf("v3 overwritten: %q", got)
	}
	for _, v := range []int{4, 5} {
		if got := testutil.ReadFile(t, filepath.Join(dir, reel.EnText.Filename(v))); got != "two" {
			t.Errorf("v%d content = %q, want %q", v, got, "two")
		}
	}
}

func TestLedger_FastForward_BinaryIdentical(t *testing.T) {
	l, _ := newTestLedger(t)
	dir := t.TempDir()
	payload := "\x89PNG\r\n\x1a\n\x00\x01\xff"
	if _, err := l.RecordText(dir, reel.Image, payload, "model-x"); err != nil {
		t.Fatal(err)
	}

	if _, err := l.FastForward(dir, reel.Image, 4); err != nil {
		t.Fatal(err)
	}
	for v := 2; v <= 4; v++ {
		if got := testutil.ReadFile(t, filepath.Join(dir, reel.Image.Filename(v))); got != payload {
			t.Errorf("v%d differs from source", v)
		}
	}
}

func TestLedger_FastForward_BlockedByUnregisteredFile(t *testing.T) {
	l, _ := newTestLedger(t)
	dir := t.TempDir()
	mustRecord(t, l, dir, reel.EnText, 1)
	testutil.WriteVersionFile(t, dir, reel.EnText, 3, "hand written")

	res, err := l.FastForward(dir, reel.EnText, 3)
	if err != nil {
		t.Fatalf("FastForward() error = %v", err)
	}
	if res.Advanced || res.Reason != reel.ReasonVersionConflict || res.From != 1 {
		t.Errorf("FastForward() = %+v, want version_conflict from 1", res)
	}
	if versions, _ := l.ListVersions(dir, reel.EnText); len(versions) != 1 {
		t.Errorf("ledger has %d versions, want 1", len(versions))
	}
	if got := testutil.ReadFile(t, filepath.Join(dir, reel.EnText.Filename(3))); got != "hand written" {
		t.Errorf("unregistered file = %q", got)
	}
	if testutil.Exists(filepath.Join(dir, reel.EnText.Filename(2))) {
		t.Error("partial fast-forward left v2 behind")
	}
	if v, _ := l.GetVersionNumber(dir, reel.EnText); v != 1 {
		t.Errorf("latest = %d, want 1", v)
	}
}

func mustRecord(t *testing.T, l *reel.Ledger, dir string, ct reel.ContentType, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := l.RecordText(dir, ct, "content", "model-x"); err != nil {
			t.Fatal(err)
		}
	}
}
