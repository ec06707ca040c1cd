package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"reel-go/internal/reel"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// It mirrors object keys as paths:
//
//	<root>/
//	  objects/
//	    <document>/<unit>/<file>
//	  metadata/
//	    <hostID>/<name>          (per-host metadata files)
//	    <hostID>/<name>.version
type FileSystemVault struct {
	name        string
	root        string
	objectsDir  string
	metadataDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	objectsDir := filepath.Join(root, "objects")
	metadataDir := filepath.Join(root, "metadata")

	if err := os.MkdirAll(objectsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create objects directory: %w", err)
	}
	if err := os.MkdirAll(metadataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}

	return &FileSystemVault{
		name:        name,
		root:        root,
		objectsDir:  objectsDir,
		metadataDir: metadataDir,
	}, nil
}

// objectPath maps a key to its file, rejecting keys that escape the vault.
func (v *FileSystemVault) objectPath(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.Join(v.objectsDir, rel), nil
}

func (v *FileSystemVault) Exists(_ context.Context, key string) (bool, error) {
	path, err := v.objectPath(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking object: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

func (v *FileSystemVault) Put(_ context.Context, key string, r io.Reader, size int64) error {
	path, err := v.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	return v.writeFile(path, r, size)
}

func (v *FileSystemVault) Get(_ context.Context, key string, w io.Writer) error {
	path, err := v.objectPath(key)
	if err != nil {
		return err
	}
	return v.readFile(path, w, fmt.Sprintf("object not found: %s", key))
}

func (v *FileSystemVault) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(v.objectsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(v.objectsDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (v *FileSystemVault) metadataPath(hostID, name string) string {
	return filepath.Join(v.metadataDir, hostID, name)
}

// PutMetadata stores metadata for a specific host along with a version marker.
func (v *FileSystemVault) PutMetadata(_ context.Context, hostID string, name string, r io.Reader, size int64, version int64) error {
	destPath := v.metadataPath(hostID, name)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	if err := v.writeFile(destPath, r, size); err != nil {
		return err
	}

	versionData := strconv.FormatInt(version, 10)
	return os.WriteFile(destPath+".version", []byte(versionData), 0644)
}

// GetMetadataVersion returns the metadata version for a host.
// Returns 0 if no version file exists.
func (v *FileSystemVault) GetMetadataVersion(_ context.Context, hostID string, name string) (int64, error) {
	data, err := os.ReadFile(v.metadataPath(hostID, name) + ".version")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// GetMetadata retrieves metadata for a specific host and writes it to w.
func (v *FileSystemVault) GetMetadata(_ context.Context, hostID string, name string, w io.Writer) error {
	return v.readFile(v.metadataPath(hostID, name), w, fmt.Sprintf("metadata %q not found for host: %s", name, hostID))
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup(context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	for _, dir := range []string{v.objectsDir, v.metadataDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}

	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func (v *FileSystemVault) readFile(srcPath string, w io.Writer, notFoundMsg string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s", notFoundMsg)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return nil
}

var _ reel.Vault = (*FileSystemVault)(nil)
