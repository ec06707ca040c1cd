package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"reel-go/internal/reel"
)

type recordingReconciler struct {
	dirs chan string
}

func (r *recordingReconciler) Reconcile(dir string) (int, error) {
	r.dirs <- dir
	return 1, nil
}

func newWorkspace(t *testing.T) (reel.Workspace, string) {
	t.Helper()
	root := t.TempDir()
	unit := filepath.Join(root, "book", "scene_0001")
	if err := os.MkdirAll(unit, 0755); err != nil {
		t.Fatal(err)
	}
	return reel.NewWorkspace(root, nil), unit
}

func TestWatcher_Classify(t *testing.T) {
	ws, unit := newWorkspace(t)
	w := New(ws, nil, time.Millisecond, nil)

	newDoc := filepath.Join(ws.Root, "atlas")
	hidden := filepath.Join(ws.Root, ".cache")
	notUnit := filepath.Join(ws.Root, "book", "drafts")
	for _, d := range []string{newDoc, hidden, notUnit} {
		if err := os.Mkdir(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name       string
		path       string
		op         fsnotify.Op
		wantDir    string
		wantNewDir string
	}{
		{name: "versioned file created", path: filepath.Join(unit, "image_v2.png"), op: fsnotify.Create, wantDir: unit},
		{name: "versioned file written", path: filepath.Join(unit, "final_text_en_v3.txt"), op: fsnotify.Write, wantDir: unit},
		{name: "legacy canonical file", path: filepath.Join(unit, "image.png"), op: fsnotify.Create, wantDir: unit},
		{name: "unrelated file", path: filepath.Join(unit, "notes.md"), op: fsnotify.Create},
		{name: "ledger file", path: filepath.Join(unit, reel.LedgerFilename), op: fsnotify.Write},
		{name: "removal ignored", path: filepath.Join(unit, "image_v2.png"), op: fsnotify.Remove},
		{name: "chmod ignored", path: filepath.Join(unit, "image_v2.png"), op: fsnotify.Chmod},
		{name: "new document", path: newDoc, op: fsnotify.Create, wantDir: newDoc, wantNewDir: newDoc},
		{name: "hidden directory", path: hidden, op: fsnotify.Create},
		{name: "non-unit directory", path: notUnit, op: fsnotify.Create},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, newDir := w.classify(fsnotify.Event{Name: tt.path, Op: tt.op})
			if dir != tt.wantDir || newDir != tt.wantNewDir {
				t.Errorf("classify() = (%q, %q), want (%q, %q)", dir, newDir, tt.wantDir, tt.wantNewDir)
			}
		})
	}
}

func TestWatcher_RunDebouncesPerDirectory(t *testing.T) {
	ws, unit := newWorkspace(t)
	rec := &recordingReconciler{dirs: make(chan string, 10)}
	w := New(ws, rec, 100*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register its directories.
	time.Sleep(200 * time.Millisecond)

	for _, name := range []string{"image_v1.png", "image_v2.png", "final_text_en_v1.txt"} {
		if err := os.WriteFile(filepath.Join(unit, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case dir := <-rec.dirs:
		if dir != unit {
			t.Errorf("reconciled %q, want %q", dir, unit)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reconcile after writing versioned files")
	}

	select {
	case dir := <-rec.dirs:
		t.Errorf("unexpected second reconcile of %q for one burst", dir)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestWatcher_RunMissingRoot(t *testing.T) {
	ws := reel.NewWorkspace(filepath.Join(t.TempDir(), "missing"), nil)
	w := New(ws, &recordingReconciler{dirs: make(chan string, 1)}, time.Millisecond, nil)
	if err := w.Run(context.Background()); err == nil {
		t.Error("Run() expected error for missing root")
	}
}
