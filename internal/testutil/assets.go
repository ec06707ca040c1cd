package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"reel-go/internal/reel"
)

// NewTestWorkspace returns a workspace rooted in a fresh temp dir.
func NewTestWorkspace(t *testing.T) reel.Workspace {
	t.Helper()
	return reel.NewWorkspace(t.TempDir(), nil)
}

// MakeDir creates root/elems... and returns its path.
func MakeDir(t *testing.T, root string, elems ...string) string {
	t.Helper()
	dir := filepath.Join(append([]string{root}, elems...)...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating %s: %v", dir, err)
	}
	return dir
}

// WriteVersionFile writes a versioned file directly, bypassing the ledger,
// the way an external tool would.
func WriteVersionFile(t *testing.T, dir string, ct reel.ContentType, version int, content string) string {
	t.Helper()
	path := filepath.Join(dir, ct.Filename(version))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// WriteFile writes content to dir/name.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content of path, failing the test if it is missing.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
