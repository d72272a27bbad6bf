package storage

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is how long the data file must stay quiet before an
// external change is picked up.
const watchDebounce = 200 * time.Millisecond

// Watch observes the data file for changes made by other processes (a text
// editor, a sync tool) and drops the in-memory copy when the content on disk
// no longer matches what this store last read or wrote. The next operation
// then reloads the file. Watch blocks until ctx is cancelled.
func (s *JSONStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Editors and our own writes replace the file by rename, so the
	// directory is watched rather than the file itself.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.log.Infow("watching data file", "path", s.path)

	target := filepath.Clean(s.path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				pending = time.After(watchDebounce)
			}
		case <-pending:
			pending = nil
			s.reloadIfChanged()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warnw("data file watcher error", "error", err)
		}
	}
}

// reloadIfChanged invalidates the cached document when the file differs
// from the last content this store saw.
func (s *JSONStore) reloadIfChanged() {
	content, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warnw("failed to read data file after change", "path", s.path, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil && sha256.Sum256(content) == s.lastHash {
		return
	}
	if s.data != nil {
		s.log.Infow("data file changed on disk, reloading", "path", s.path)
	}
	s.data = nil
}
