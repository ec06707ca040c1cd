package reel

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// LockFilename guards read-modify-write of versions.json across processes.
const LockFilename = LedgerFilename + ".lock"

// dirLocks serializes ledger mutations per directory. Within a process a
// mutex keyed by the cleaned directory path is taken first, then an advisory
// file lock so that a worker and an interactive command cannot interleave.
type dirLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDirLocks() *dirLocks {
	return &dirLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *dirLocks) get(dir string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[dir]
	if !ok {
		m = &sync.Mutex{}
		l.locks[dir] = m
	}
	return m
}

// with runs fn while holding both locks for dir. dir must exist.
func (l *dirLocks) with(dir string, fn func() error) error {
	key, err := filepath.Abs(dir)
	if err != nil {
		key = filepath.Clean(dir)
	}
	m := l.get(key)
	m.Lock()
	defer m.Unlock()

	fl := flock.New(filepath.Join(dir, LockFilename))
	if err := fl.Lock(); err != nil {
		return storageErr("lock", fl.Path(), fmt.Errorf("acquiring ledger lock: %w", err))
	}
	defer fl.Unlock()

	return fn()
}
