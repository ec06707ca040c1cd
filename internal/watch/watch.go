// Package watch registers versioned files as soon as they appear in the
// workspace.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"reel-go/internal/reel"
)

// Reconciler runs legacy migration and discovery over one directory.
type Reconciler interface {
	Reconcile(dir string) (int, error)
}

// Watcher watches the workspace root, every document directory and every
// unit directory. Bursts of file events in one directory are collapsed
// into a single Reconcile once the directory has been quiet for the
// debounce period.
type Watcher struct {
	ws       reel.Workspace
	target   Reconciler
	debounce time.Duration
	logger   reel.Logger

	// OnReconcile, when set, is called after each debounced pass.
	OnReconcile func(dir string, registered int, err error)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(ws reel.Workspace, target Reconciler, debounce time.Duration, logger reel.Logger) *Watcher {
	if logger == nil {
		logger = reel.NewNopLogger()
	}
	return &Watcher{
		ws:       ws,
		target:   target,
		debounce: debounce,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.ws.Root); err != nil {
		return fmt.Errorf("watching %s: %w", w.ws.Root, err)
	}
	dirs, err := w.ws.AllDirs()
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			return fmt.Errorf("watching %s: %w", d, err)
		}
	}
	w.logger.Info("watching workspace", "root", w.ws.Root, "dirs", len(dirs)+1)

	fire := make(chan string)
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			dir, newDir := w.classify(ev)
			if newDir != "" {
				w.addTree(fw, newDir)
			}
			if dir != "" {
				w.schedule(ctx, dir, fire)
			}
		case dir := <-fire:
			n, err := w.target.Reconcile(dir)
			if err != nil {
				w.logger.Error("discovery failed", "dir", dir, "error", err)
			} else if n > 0 {
				w.logger.Info("registered versions", "dir", dir, "count", n)
			}
			if w.OnReconcile != nil {
				w.OnReconcile(dir, n, err)
			}
		}
	}
}

// classify returns the directory to reconcile for ev, if any, and a newly
// created directory that must be watched, if any.
func (w *Watcher) classify(ev fsnotify.Event) (dir string, newDir string) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", ""
	}
	name := filepath.Base(ev.Name)
	parent := filepath.Dir(ev.Name)

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.isWatchable(ev.Name) {
				return ev.Name, ev.Name
			}
			return "", ""
		}
	}

	if _, _, ok := reel.MatchVersionedFilename(name); ok {
		return parent, ""
	}
	for _, ct := range reel.AllContentTypes() {
		if name == ct.CanonicalFilename() {
			return parent, ""
		}
	}
	return "", ""
}

// isWatchable reports whether path is a document directory or a unit
// directory of one.
func (w *Watcher) isWatchable(path string) bool {
	name := filepath.Base(path)
	if name == "" || name[0] == '.' {
		return false
	}
	parent := filepath.Dir(path)
	if filepath.Clean(parent) == filepath.Clean(w.ws.Root) {
		return true
	}
	return w.ws.IsUnitName(name) && filepath.Clean(filepath.Dir(parent)) == filepath.Clean(w.ws.Root)
}

// addTree watches a new document or unit directory and, for a document,
// any unit directories already inside it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) {
	if err := fw.Add(dir); err != nil {
		w.logger.Warn("cannot watch directory", "dir", dir, "error", err)
		return
	}
	if filepath.Clean(filepath.Dir(dir)) != filepath.Clean(w.ws.Root) {
		return
	}
	units, err := w.ws.UnitDirs(dir)
	if err != nil {
		w.logger.Warn("cannot list units", "dir", dir, "error", err)
		return
	}
	for _, u := range units {
		if err := fw.Add(u); err != nil {
			w.logger.Warn("cannot watch directory", "dir", u, "error", err)
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, dir string, fire chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[dir]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[dir] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, dir)
		w.mu.Unlock()
		select {
		case fire <- dir:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for dir, t := range w.timers {
		t.Stop()
		delete(w.timers, dir)
	}
}
