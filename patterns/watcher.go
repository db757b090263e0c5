package patterns

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long to wait for more changes before reloading.
const defaultDebounce = 500 * time.Millisecond

// Watcher hot-reloads a pattern library when its directory changes.
// Changes are debounced so a burst of writes triggers one reload.
type Watcher struct {
	library  *Library
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	pendingMu sync.Mutex
	pending   bool
}

// NewWatcher creates a watcher over the library's directory.
func NewWatcher(library *Library, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create pattern watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		library:  library,
		watcher:  fsw,
		logger:   logger,
		debounce: defaultDebounce,
	}, nil
}

// Start begins watching. The directory is created if missing so patterns can
// be dropped in later.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.library.dir, 0755); err != nil {
		return fmt.Errorf("create pattern dir: %w", err)
	}

	if err := w.addWatchesRecursive(w.library.dir); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Pattern watcher started",
		"dir", w.library.dir,
		"debounce", w.debounce)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// addWatchesRecursive watches the directory tree, skipping hidden dirs.
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && base != "." {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				"path", path,
				"error", err)
		}
		return nil
	})
}

// processEvents handles fsnotify events and fires a debounced reload.
func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Pattern watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// handleFSEvent marks a reload pending for relevant changes.
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addWatchesRecursive(event.Name)
			return
		}
	}

	if strings.ToLower(filepath.Ext(event.Name)) != ".json" {
		return
	}

	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()

	w.logger.Debug("Pattern change detected",
		"path", event.Name,
		"op", event.Op.String())
}

// flushPending reloads the library once per debounce window with changes.
func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	dirty := w.pending
	w.pending = false
	w.pendingMu.Unlock()

	if !dirty {
		return
	}
	if err := w.library.Reload(); err != nil {
		w.logger.Error("Pattern reload failed", "error", err)
	}
}
