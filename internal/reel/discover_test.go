package reel_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"reel-go/internal/reel"
	"reel-go/internal/testutil"
)

func TestLedger_Discover_KeepsGaps(t *testing.T) {
	l, _ := newTestLedger(t)
	dir := t.TempDir()
	testutil.WriteVersionFile(t, dir, reel.EnText, 6, "six")
	testutil.WriteVersionFile(t, dir, reel.EnText, 8, "eight")
	testutil.WriteFile(t, dir, "notes.txt", "ignored")
	testutil.WriteFile(t, dir, "final_text_en_vX.txt", "ignored")

	found, err := l.Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(found) != 1 || found[reel.EnText] != 2 {
		t.Fatalf("Discover() = %v, want en_text:2", found)
	}

	versions, _ := l.ListVersions(dir, reel.EnText)
	if len(versions) != 2 || versions[0].Version != 6 || versions[1].Version != 8 {
		t.Errorf("versions = %+v, want 6 and 8", versions)
	}
	for _, v := range versions {
		if v.Producer != reel.ProducerExternal {
			t.Errorf("v%d producer = %q", v.Version, v.Producer)
		}
	}
	if v, _ := l.GetVersionNumber(dir, reel.EnText); v != 8 {
		t.Errorf("latest = %d, want 8", v)
	}
	if testutil.Exists(filepath.Join(dir, reel.EnText.Filename(7))) {
		t.Error("gap filled in")
	}

	again, err := l.Discover(dir)
	if err != nil || len(again) != 0 {
		t.Errorf("second Discover() = (%v, %v), want nothing", again, err)
	}
}

func TestLedger_Discover_LeavesOtherTypesAlone(t *testing.T) {
	l, _ := newTestLedger(t)
	dir := t.TempDir()
	mustRecord(t, l, dir, reel.EnText, 2)
	if _, err := l.SetLatest(dir, reel.EnText, 1); err != nil {
		t.Fatal(err)
	}
	img := testutil.WriteVersionFile(t, dir, reel.Image, 1, "png")
	mtime := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	if err := os.Chtimes(img, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	found, err := l.Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[reel.Image] != 1 {
		t.Errorf("Discover() = %v, want image:1", found)
	}
	if v, _ := l.GetVersionNumber(dir, reel.EnText); v != 1 {
		t.Errorf("en_text latest = %d, want restored 1", v)
	}
	latest, _ := l.GetLatest(dir, reel.Image)
	if latest == nil || !latest.CreatedAt.Equal(mtime) {
		t.Errorf("image latest = %+v, want created at file mtime", latest)
	}
}

func TestLedger_Discover_MissingDir(t *testing.T) {
	l, _ := newTestLedger(t)
	found, err := l.Discover(filepath.Join(t.TempDir(), "missing"))
	if err != nil || len(found) != 0 {
		t.Errorf("Discover() = (%v, %v), want empty", found, err)
	}
}

func TestService_Reconcile(t *testing.T) {
	ws := testutil.NewTestWorkspace(t)
	svc := reel.NewService(ws, reel.Deps{Clock: testutil.FixedClock()})
	dir := testutil.MakeDir(t, ws.Root, "doc", "scene_0001")
	testutil.WriteFile(t, dir, "image_to_use.png", "legacy")
	testutil.WriteVersionFile(t, dir, reel.EnText, 2, "external")

	n, err := svc.Reconcile(dir)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Reconcile() = %d, want 2", n)
	}
	if v, _ := svc.Ledger().GetVersionNumber(dir, reel.Image); v != 1 {
		t.Errorf("image latest = %d, want 1", v)
	}
	if v, _ := svc.Ledger().GetVersionNumber(dir, reel.EnText); v != 2 {
		t.Errorf("en_text latest = %d, want 2", v)
	}
}
