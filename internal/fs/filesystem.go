package fs

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"reel-go/internal/reel"
)

// OSFilesystemManager walks the real workspace tree for sync and decides
// which relative paths stay local.
type OSFilesystemManager struct {
	ignore *IgnoreMatcher
}

// NewOSFilesystemManager creates a manager that skips paths matching any of
// the given patterns in addition to the built-in defaults.
func NewOSFilesystemManager(patterns []string) *OSFilesystemManager {
	all := append(append([]string{}, defaultIgnorePatterns...), patterns...)
	return &OSFilesystemManager{ignore: NewIgnoreMatcher(all)}
}

// NewOSFilesystemManagerForRoot adds the patterns found in root/.reelignore.
func NewOSFilesystemManagerForRoot(root string, patterns []string) (*OSFilesystemManager, error) {
	fromFile, err := ParseIgnoreFile(filepath.Join(root, IgnoreFilename))
	if err != nil {
		return nil, err
	}
	return NewOSFilesystemManager(append(append([]string{}, patterns...), fromFile...)), nil
}

// Ignored reports whether relativePath, or any directory above it, is
// ignored. Every component but the last is treated as a directory.
func (m *OSFilesystemManager) Ignored(relativePath string) bool {
	p := strings.Trim(filepath.ToSlash(relativePath), "/")
	if p == "" || p == "." {
		return false
	}
	parts := strings.Split(p, "/")
	for i := range parts {
		if m.ignore.Match(strings.Join(parts[:i+1], "/"), i < len(parts)-1) {
			return true
		}
	}
	return false
}

// ListFiles returns slash-separated paths of the regular files under root,
// sorted. Ignored directories are not descended into.
func (m *OSFilesystemManager) ListFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if m.ignore.Match(filepath.ToSlash(rel), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Patterns returns the active ignore patterns, for display.
func (m *OSFilesystemManager) Patterns() []string {
	return m.ignore.Patterns()
}

var _ reel.FileIndex = (*OSFilesystemManager)(nil)
