// Package watch monitors a project tree for source changes and turns each
// settled burst of changes into a synthetic push event, so workflows re-run
// on save during local development.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long the tree must stay quiet before a burst
// of changes is reported as one change set.
const DefaultSettleDelay = 500 * time.Millisecond

// ignoredDirs are directory names never watched. They hold generated or
// runner-internal state whose churn must not retrigger runs.
var ignoredDirs = map[string]bool{
	".git":         true,
	".stagehand":   true,
	".hg":          true,
	"node_modules": true,
	"__pycache__":  true,
	".pytest_cache": true,
	".mypy_cache":  true,
	".venv":        true,
	"venv":         true,
}

// Watcher watches a project tree and reports settled change sets.
type Watcher struct {
	watcher *fsnotify.Watcher
	changes chan []string
	errors  chan error
	done    chan struct{}
	rootDir string

	mu          sync.Mutex
	settleDelay time.Duration
	pending     map[string]bool
	settleTimer *time.Timer
	closed      bool
}

// NewWatcher creates a Watcher over rootDir and all its subdirectories,
// skipping ignored directories. The watcher starts delivering change sets
// immediately.
func NewWatcher(rootDir string) (*Watcher, error) {
	rootDir = filepath.Clean(rootDir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:     watcher,
		changes:     make(chan []string, 10),
		errors:      make(chan error, 10),
		done:        make(chan struct{}),
		rootDir:     rootDir,
		settleDelay: DefaultSettleDelay,
		pending:     make(map[string]bool),
	}

	if err := w.addRecursive(rootDir); err != nil {
		watcher.Close()
		return nil, err
	}

	go w.processEvents()

	return w, nil
}

// addRecursive adds the directory and all its non-ignored subdirectories
// to the watcher.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		if !info.IsDir() {
			return nil
		}
		if path != dir && ignoredDirs[info.Name()] {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return err
		}
		return nil
	})
}

// processEvents consumes fsnotify events and accumulates pending changes
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				// Error channel full, drop the error
			}
		}
	}
}

// handleEvent records one fsnotify event and resets the settle timer
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if ignored(w.rootDir, path) {
		return
	}

	// New directories join the watch so nested changes keep arriving
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addRecursive(path); err != nil {
				select {
				case w.errors <- err:
				default:
				}
			}
			return
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		// Ignore chmod events
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	w.pending[path] = true

	// One timer covers the whole burst: every event pushes settling out
	if w.settleTimer != nil {
		w.settleTimer.Stop()
	}
	w.settleTimer = time.AfterFunc(w.settleDelay, w.flushPending)
}

// flushPending emits the accumulated change set once the tree settles
func (w *Watcher) flushPending() {
	w.mu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for path := range w.pending {
		changed = append(changed, path)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	sort.Strings(changed)

	select {
	case w.changes <- changed:
	case <-w.done:
	default:
		// Changes channel full, drop the change set
	}
}

// ignored reports whether path sits under an ignored directory
func ignored(rootDir, path string) bool {
	rel, err := filepath.Rel(rootDir, path)
	if err != nil {
		return false
	}
	for _, part := range splitPath(rel) {
		if ignoredDirs[part] {
			return true
		}
	}
	return false
}

// splitPath splits a relative path into its components
func splitPath(rel string) []string {
	var parts []string
	for rel != "" && rel != "." {
		dir, file := filepath.Split(rel)
		if file != "" {
			parts = append(parts, file)
		}
		rel = filepath.Clean(dir)
		if rel == string(filepath.Separator) {
			break
		}
	}
	return parts
}

// Changes returns the channel delivering settled change sets
func (w *Watcher) Changes() <-chan []string {
	return w.changes
}

// Errors returns the channel delivering watcher errors
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// RootDir returns the directory being watched
func (w *Watcher) RootDir() string {
	return w.rootDir
}

// SetSettleDelay adjusts the quiet period required before a change set is
// reported. Call before changes start arriving.
func (w *Watcher) SetSettleDelay(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.settleDelay = delay
}

// Close stops the watcher and releases resources
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.settleTimer != nil {
		w.settleTimer.Stop()
	}
	w.pending = nil
	w.mu.Unlock()

	close(w.done)
	return w.watcher.Close()
}

// Run blocks delivering each settled change set to callback until the
// context ends or the watcher closes. Callback errors are reported through
// the error channel and do not stop watching.
func (w *Watcher) Run(ctx context.Context, callback func(ctx context.Context, changed []string) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case changed, ok := <-w.changes:
			if !ok {
				return nil
			}
			if err := callback(ctx, changed); err != nil {
				select {
				case w.errors <- err:
				default:
				}
			}
		}
	}
}
