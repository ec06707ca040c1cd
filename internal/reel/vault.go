package reel

import (
	"context"
	"io"
)

// Vault is remote storage for asset files, keyed by slash-separated paths
// relative to the workspace root, plus per-host metadata such as the
// journal snapshot.
type Vault interface {
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Put stores size bytes read from r under key, replacing any object there.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the object stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// List returns every object key that starts with prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// PutMetadata stores a named metadata item for a host along with a version marker.
	PutMetadata(ctx context.Context, hostID, name string, r io.Reader, size int64, version int64) error

	// GetMetadata writes a named metadata item for a host to w.
	GetMetadata(ctx context.Context, hostID, name string, w io.Writer) error

	// GetMetadataVersion returns 0 when nothing is stored.
	GetMetadataVersion(ctx context.Context, hostID, name string) (int64, error)

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
