package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, rootDir string) *Watcher {
	t.Helper()
	w, err := NewWatcher(rootDir)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.SetSettleDelay(50 * time.Millisecond)
	t.Cleanup(func() { w.Close() })
	return w
}

func waitForChanges(t *testing.T, w *Watcher) []string {
	t.Helper()
	select {
	case changed := <-w.Changes():
		return changed
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change set")
		return nil
	}
}

func TestWatcherReportsWrite(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)
	if w.RootDir() != dir {
		t.Errorf("RootDir() = %q, want %q", w.RootDir(), dir)
	}

	path := filepath.Join(dir, "main.py")
	if err := os.WriteFile(path, []byte("print('hi')\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	changed := waitForChanges(t, w)
	if len(changed) == 0 {
		t.Fatal("change set is empty")
	}
	found := false
	for _, p := range changed {
		if p == path {
			found = true
		}
	}
	if !found {
		t.Errorf("change set %v missing %s", changed, path)
	}
}

func TestWatcherCoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	// Rapid writes to several files settle into one change set
	for _, name := range []string{"a.py", "b.py", "c.py"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	changed := waitForChanges(t, w)
	if len(changed) < 3 {
		t.Errorf("change set = %v, want all three files", changed)
	}

	select {
	case extra := <-w.Changes():
		t.Errorf("unexpected second change set: %v", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherIgnoresInternalDirs(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{".git", ".stagehand"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
	}
	w := newTestWatcher(t, dir)

	if err := os.WriteFile(filepath.Join(dir, ".git", "index"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".stagehand", "history.db"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case changed := <-w.Changes():
		t.Errorf("ignored directories produced change set: %v", changed)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherPicksUpNewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	subDir := filepath.Join(dir, "pkg")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	// Give the watcher a moment to register the new directory
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(subDir, "mod.py")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	changed := waitForChanges(t, w)
	found := false
	for _, p := range changed {
		if p == path {
			found = true
		}
	}
	if !found {
		t.Errorf("change set %v missing %s", changed, path)
	}
}

func TestWatcherRunInvokesCallback(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []string, 1)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(ctx context.Context, changed []string) error {
			select {
			case got <- changed:
			default:
			}
			return nil
		})
	}()

	if err := os.WriteFile(filepath.Join(dir, "main.py"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case changed := <-got:
		if len(changed) == 0 {
			t.Error("callback received empty change set")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("callback never invoked")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestWatcherCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
