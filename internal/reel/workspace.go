package reel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultUnitPrefixes name the per-page directories inside a document.
var DefaultUnitPrefixes = []string{"scene_", "page_"}

// Workspace describes the on-disk layout: <root>/<document>/<unit>.
type Workspace struct {
	Root         string
	UnitPrefixes []string
}

// NewWorkspace returns a Workspace, defaulting the unit prefixes.
func NewWorkspace(root string, unitPrefixes []string) Workspace {
	if len(unitPrefixes) == 0 {
		unitPrefixes = DefaultUnitPrefixes
	}
	return Workspace{Root: root, UnitPrefixes: unitPrefixes}
}

// DocumentDir returns the directory of a document by name.
func (w Workspace) DocumentDir(name string) string {
	return filepath.Join(w.Root, name)
}

// IsUnitName reports whether a directory name looks like a unit directory.
func (w Workspace) IsUnitName(name string) bool {
	for _, p := range w.UnitPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Documents lists document directories under the root.
func (w Workspace) Documents() ([]string, error) {
	entries, err := os.ReadDir(w.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing documents in %s: %w", w.Root, err)
	}
	var docs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		docs = append(docs, filepath.Join(w.Root, e.Name()))
	}
	sort.Strings(docs)
	return docs, nil
}

// UnitDirs lists the unit directories of a document in name order.
func (w Workspace) UnitDirs(docDir string) ([]string, error) {
	entries, err := os.ReadDir(docDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing units in %s: %w", docDir, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && w.IsUnitName(e.Name()) {
			dirs = append(dirs, filepath.Join(docDir, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// DocumentDirs returns the document directory followed by its unit directories.
func (w Workspace) DocumentDirs(docDir string) ([]string, error) {
	units, err := w.UnitDirs(docDir)
	if err != nil {
		return nil, err
	}
	return append([]string{docDir}, units...), nil
}

// AllDirs returns every document and unit directory under the root.
func (w Workspace) AllDirs() ([]string, error) {
	docs, err := w.Documents()
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, doc := range docs {
		d, err := w.DocumentDirs(doc)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, d...)
	}
	return dirs, nil
}

// Rel returns dir relative to the root for display, or dir unchanged when
// it lies outside the root.
func (w Workspace) Rel(dir string) string {
	rel, err := filepath.Rel(w.Root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return dir
	}
	return rel
}
