package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reel-go/internal/config"
	"reel-go/internal/reel"
	"reel-go/internal/vault"
)

// newTestConfig returns a config with a filesystem vault and a migrated
// sqlite journal under a temp dir.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig("test-host", t.TempDir())
	if err := os.MkdirAll(cfg.Workspace.Root, 0755); err != nil {
		t.Fatalf("creating workspace: %v", err)
	}
	if err := MigrateJournal(cfg); err != nil {
		t.Fatalf("MigrateJournal() error = %v", err)
	}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, operation string) *ReelApp {
	t.Helper()
	a, err := NewReelApp(context.Background(), cfg, operation, "")
	if err != nil {
		t.Fatalf("NewReelApp() error = %v", err)
	}
	return a
}

func unitDir(t *testing.T, cfg *config.Config) string {
	t.Helper()
	dir := filepath.Join(cfg.Workspace.Root, "doc", "scene_0001")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating unit dir: %v", err)
	}
	return dir
}

func remoteJournalVersion(t *testing.T, cfg *config.Config) int64 {
	t.Helper()
	v, err := vault.NewFileSystemVault("local", cfg.Vaults[0].FSVaultRoot)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	version, err := v.GetMetadataVersion(context.Background(), cfg.HostID, journalMetadataName)
	if err != nil {
		t.Fatalf("GetMetadataVersion() error = %v", err)
	}
	return version
}

func TestReelApp_RecordUploadsJournal(t *testing.T) {
	cfg := newTestConfig(t)
	dir := unitDir(t, cfg)

	a := newTestApp(t, cfg, "Record")
	rec, err := a.Record(dir, "en_text", strings.NewReader("hello"), "cli")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.Version != 1 {
		t.Errorf("Version = %d, want 1", rec.Version)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if got := remoteJournalVersion(t, cfg); got != 1 {
		t.Errorf("remote journal version = %d, want 1", got)
	}

	b := newTestApp(t, cfg, "History")
	defer b.Close()

	ops, err := b.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("len(History()) = %d, want 1", len(ops))
	}
	if ops[0].Operation != "Record" || ops[0].Status != StatusSuccess {
		t.Errorf("operation = %q/%q, want Record/success", ops[0].Operation, ops[0].Status)
	}

	events, err := b.LedgerLog(dir, "", 0)
	if err != nil {
		t.Fatalf("LedgerLog() error = %v", err)
	}
	if len(events) != 1 || events[0].Action != reel.ActionRecord {
		t.Fatalf("LedgerLog() = %+v, want one record event", events)
	}

	rec, path, err := b.Latest(dir, "en_text")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if rec == nil || path != filepath.Join(dir, "final_text_en_v1.txt") {
		t.Errorf("Latest() = %+v, %q", rec, path)
	}
}

func TestReelApp_RecordRegistersUntrackedFilesFirst(t *testing.T) {
	cfg := newTestConfig(t)
	dir := unitDir(t, cfg)
	if err := os.WriteFile(filepath.Join(dir, reel.EnText.Filename(1)), []byte("synced"), 0644); err != nil {
		t.Fatal(err)
	}

	a := newTestApp(t, cfg, "Record")
	defer a.Close()
	rec, err := a.Record(dir, "en_text", strings.NewReader("hello"), reel.ProducerManualEdit)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.Version != 2 || rec.Producer != reel.ProducerManualEdit {
		t.Errorf("record = %+v, want v2 by %s", rec, reel.ProducerManualEdit)
	}
	versions, _, err := a.Versions(dir, "en_text")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 || versions[0].Producer != reel.ProducerExternal {
		t.Errorf("versions = %+v, want discovered v1 then v2", versions)
	}
}

func TestReelApp_ReadOnlyCommandsDoNotUpload(t *testing.T) {
	cfg := newTestConfig(t)
	dir := unitDir(t, cfg)

	a := newTestApp(t, cfg, "Status")
	if _, err := a.Status("doc"); err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if _, _, err := a.PageStatus(dir); err != nil {
		t.Fatalf("PageStatus() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if got := remoteJournalVersion(t, cfg); got != 0 {
		t.Errorf("remote journal version = %d, want 0", got)
	}
}

func TestReelApp_FailedOperationIsRecorded(t *testing.T) {
	cfg := newTestConfig(t)
	dir := unitDir(t, cfg)

	a := newTestApp(t, cfg, "FastForward")
	if _, err := a.FastForward(dir, "not_a_type", 2); err == nil {
		t.Fatal("FastForward() with unknown type expected error")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	b := newTestApp(t, cfg, "History")
	defer b.Close()
	ops, err := b.History(1)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Status != StatusError {
		t.Errorf("History() = %+v, want one error operation", ops)
	}
}

func TestReelApp_FastForwardDocument(t *testing.T) {
	cfg := newTestConfig(t)
	dir := unitDir(t, cfg)

	a := newTestApp(t, cfg, "FastForwardDocument")
	defer a.Close()

	for _, text := range []string{"one", "two"} {
		if _, err := a.Record(dir, "en_text", strings.NewReader(text), "cli"); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if _, err := a.Record(dir, "image", strings.NewReader("png"), "cli"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	outcomes, err := a.FastForwardDocument("doc")
	if err != nil {
		t.Fatalf("FastForwardDocument() error = %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("len(outcomes) = %d, want 1", len(outcomes))
	}
	if outcomes[0].ContentType != reel.Image || !outcomes[0].Result.Advanced || outcomes[0].Result.To != 2 {
		t.Errorf("outcome = %+v, want image advanced to 2", outcomes[0])
	}

	expected, err := a.ExpectedVersion(filepath.Join(cfg.Workspace.Root, "doc"), true)
	if err != nil {
		t.Fatalf("ExpectedVersion() error = %v", err)
	}
	if expected != 2 {
		t.Errorf("ExpectedVersion() = %d, want 2", expected)
	}
}

func TestReelApp_FailJob(t *testing.T) {
	cfg := newTestConfig(t)
	dir := unitDir(t, cfg)

	a := newTestApp(t, cfg, "FailJob")
	defer a.Close()

	if _, err := a.Enqueue(dir, "image", "make the sky blue", 1); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	payload, err := a.Payload(dir, "image", 1)
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	if payload != "make the sky blue" {
		t.Errorf("Payload() = %q", payload)
	}

	if err := a.FailJob(dir, "image", 1, "bad prompt"); err != nil {
		t.Fatalf("FailJob() error = %v", err)
	}

	failed, err := a.Jobs("doc", reel.JobFailed)
	if err != nil {
		t.Fatalf("Jobs() error = %v", err)
	}
	if len(failed) != 1 || failed[0].Error != "bad prompt" {
		t.Fatalf("Jobs(failed) = %+v, want one job failed with \"bad prompt\"", failed)
	}

	if _, err := a.FindJob(dir, "image", 2); !errors.Is(err, reel.ErrNotFound) {
		t.Errorf("FindJob() missing error = %v, want ErrNotFound", err)
	}
}

func TestReelApp_RunWorkerWithoutGenerators(t *testing.T) {
	cfg := newTestConfig(t)

	a := newTestApp(t, cfg, "Worker")
	defer a.Close()

	if err := a.RunWorker(context.Background(), "", 0, true); err == nil {
		t.Fatal("RunWorker() without generators expected error")
	}
}

func TestNewReelApp_Errors(t *testing.T) {
	t.Run("journal behind remote", func(t *testing.T) {
		cfg := newTestConfig(t)
		dir := unitDir(t, cfg)

		a := newTestApp(t, cfg, "Record")
		if _, err := a.Record(dir, "en_text", strings.NewReader("hi"), "cli"); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if err := a.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		cfg.Database.DataDir = filepath.Join(t.TempDir(), "fresh")
		if err := MigrateJournal(cfg); err != nil {
			t.Fatalf("MigrateJournal() error = %v", err)
		}
		_, err := NewReelApp(context.Background(), cfg, "Status", "")
		if err == nil || !strings.Contains(err.Error(), "behind") {
			t.Errorf("NewReelApp() error = %v, want journal behind remote", err)
		}
	})

	t.Run("unmigrated journal", func(t *testing.T) {
		cfg := config.NewConfig("test-host", t.TempDir())
		_, err := NewReelApp(context.Background(), cfg, "Status", "")
		if err == nil || !strings.Contains(err.Error(), "out of date") {
			t.Errorf("NewReelApp() error = %v, want schema out of date", err)
		}
	})

	t.Run("no vaults", func(t *testing.T) {
		cfg := config.NewConfig("test-host", t.TempDir())
		cfg.Vaults = nil
		if _, err := NewReelApp(context.Background(), cfg, "Status", ""); err == nil {
			t.Fatal("NewReelApp() without vaults expected error")
		}
	})
}

func TestSetupEncryption(t *testing.T) {
	cfg := config.NewConfig("test-host", t.TempDir())
	if err := SetupEncryption(cfg, "secret"); err == nil {
		t.Error("SetupEncryption() with type none expected error")
	}

	cfg.Encryption.Type = "age"
	if err := SetupEncryption(cfg, "secret"); err != nil {
		t.Fatalf("SetupEncryption() error = %v", err)
	}
	for _, p := range []string{cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("key file %s not created: %v", p, err)
		}
	}
}
