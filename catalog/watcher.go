package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// Target receives the workers a Watcher loads.
type Target interface {
	RegisterWorker(ctx context.Context, def subagent.Definition) error
	UnregisterWorker(ctx context.Context, id string) (bool, error)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for reload events.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// OnReload registers a callback invoked after each file is reconciled, with
// the worker IDs the file now provides.
func OnReload(fn func(path string, ids []string)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// Watcher registers every worker found below its directories and keeps the
// target in step as files are created, changed or removed. Each worker is
// owned by the file that defined it first; a later file claiming the same
// ID is ignored with a warning.
type Watcher struct {
	target   Target
	dirs     []string
	logger   *slog.Logger
	onReload func(path string, ids []string)

	mu    sync.Mutex
	files map[string][]string // path -> worker IDs
	owner map[string]string   // worker ID -> path

	runMu  sync.Mutex
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher over dirs.
func NewWatcher(target Target, dirs []string, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		target: target,
		dirs:   slices.Clone(dirs),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		files:  make(map[string][]string),
		owner:  make(map[string]string),
	}
	for _, fn := range opts {
		fn(w)
	}
	return w
}

// Sync loads every catalog file once. A file that fails to parse is
// reported and skipped; the rest are still registered.
func (w *Watcher) Sync(ctx context.Context) error {
	var errs []error
	for _, dir := range w.dirs {
		paths, err := Files(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, path := range paths {
			if err := w.reload(ctx, path); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Start syncs the catalog and then watches for changes until ctx is done or
// Stop is called. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.runMu.Lock()
	defer w.runMu.Unlock()
	if w.done != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: watch: %w", err)
	}
	for _, dir := range w.dirs {
		if err := w.watchTree(fsw, dir); err != nil {
			fsw.Close()
			return err
		}
	}
	if err := w.Sync(ctx); err != nil {
		w.logger.Warn("catalog sync incomplete", "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx, fsw, w.done)
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.runMu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Files returns the worker IDs each loaded file provides.
func (w *Watcher) Files() map[string][]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string][]string, len(w.files))
	for p, ids := range w.files {
		out[p] = slices.Clone(ids)
	}
	return out
}

func (w *Watcher) watchTree(fsw *fsnotify.Watcher, dir string) error {
	dirs, err := walkDirs(dir)
	if err != nil {
		if os.IsNotExist(err) {
			w.logger.Warn("catalog directory missing", "dir", dir)
			return nil
		}
		return fmt.Errorf("catalog: walk %s: %w", dir, err)
	}
	for _, d := range dirs {
		if err := fsw.Add(d); err != nil {
			return fmt.Errorf("catalog: watch %s: %w", d, err)
		}
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	defer fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("catalog watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.removeTree(ctx, path)
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.watchTree(fsw, path); err != nil {
				w.logger.Error("catalog watch failed", "dir", path, "error", err)
			}
			paths, _ := Files(path)
			for _, p := range paths {
				w.reloadLogged(ctx, p)
			}
			return
		}
		if IsCatalogFile(path) {
			w.reloadLogged(ctx, path)
		}
	case ev.Has(fsnotify.Write):
		if IsCatalogFile(path) {
			w.reloadLogged(ctx, path)
		}
	}
}

func (w *Watcher) reloadLogged(ctx context.Context, path string) {
	if err := w.reload(ctx, path); err != nil {
		w.logger.Warn("catalog reload failed, keeping previous workers", "path", path, "error", err)
	}
}

// reload reconciles the workers provided by one file.
func (w *Watcher) reload(ctx context.Context, path string) error {
	entries, err := LoadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			w.removeFile(ctx, path)
			return nil
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var ids []string
	for _, e := range entries {
		def := e.Definition()
		if owner, ok := w.owner[def.ID]; ok && owner != path {
			w.logger.Warn("catalog worker defined twice, ignoring", "worker", def.ID, "path", path, "owner", owner)
			continue
		}
		if slices.Contains(ids, def.ID) {
			continue
		}
		if err := w.target.RegisterWorker(ctx, def); err != nil {
			w.logger.Warn("catalog worker rejected", "worker", def.ID, "path", path, "error", err)
			continue
		}
		ids = append(ids, def.ID)
		w.owner[def.ID] = path
	}

	for _, old := range w.files[path] {
		if !slices.Contains(ids, old) {
			w.unregisterLocked(ctx, old)
		}
	}
	if len(ids) == 0 {
		delete(w.files, path)
	} else {
		w.files[path] = ids
	}
	w.logger.Info("catalog file loaded", "path", path, "workers", len(ids))

	if w.onReload != nil {
		w.onReload(path, slices.Clone(ids))
	}
	return nil
}

func (w *Watcher) removeFile(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removeFileLocked(ctx, path)
}

// removeTree drops a removed file, or every file below a removed directory.
func (w *Watcher) removeTree(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prefix := path + string(filepath.Separator)
	for p := range w.files {
		if p == path || strings.HasPrefix(p, prefix) {
			w.removeFileLocked(ctx, p)
		}
	}
}

func (w *Watcher) removeFileLocked(ctx context.Context, path string) {
	ids, ok := w.files[path]
	if !ok {
		return
	}
	for _, id := range ids {
		w.unregisterLocked(ctx, id)
	}
	delete(w.files, path)
	w.logger.Info("catalog file removed", "path", path, "workers", len(ids))
	if w.onReload != nil {
		w.onReload(path, nil)
	}
}

func (w *Watcher) unregisterLocked(ctx context.Context, id string) {
	delete(w.owner, id)
	if _, err := w.target.UnregisterWorker(ctx, id); err != nil {
		w.logger.Warn("catalog unregister failed", "worker", id, "error", err)
	}
}
