package reel

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means there is no prior version to act on.
	ErrNotFound = errors.New("no version to act on")

	// ErrAlreadySatisfied means the requested target is already met.
	ErrAlreadySatisfied = errors.New("target version already satisfied")

	// ErrSourceMissing means the ledger names a file that is absent on disk.
	ErrSourceMissing = errors.New("latest version file missing from disk")

	// ErrVersionConflict means the requested versions are already registered
	// while latest points at an older one.
	ErrVersionConflict = errors.New("target versions already registered")

	ErrCorruptLedger      = errors.New("ledger record is malformed")
	ErrVersionExists      = errors.New("version file already exists")
	ErrInvalidContent     = errors.New("content is not valid for this content type")
	ErrUnknownContentType = errors.New("unknown content type")

	ErrJobStateConflict = errors.New("job is not in the expected state")
	ErrJobExists        = errors.New("job already exists")
)

// StorageError reports a failed write or read against local storage.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}

// GenerationError wraps a failure returned by a Generator.
type GenerationError struct {
	ContentType ContentType
	Err         error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating %s: %v", e.ContentType, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
