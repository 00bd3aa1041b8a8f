package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"cotpulse/pkg/contracts/domain"
)

// Subdirectories of the imports directory that consumed files move to.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// ImportFunc consumes one dropped file.
type ImportFunc func(ctx context.Context, kind domain.DatasetKind, name string, content []byte) error

// Watcher imports files dropped into a directory. Events for the same path
// are debounced so a file written in several chunks is read once.
type Watcher struct {
	dir      string
	debounce time.Duration
	importFn ImportFunc
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher creates a watcher for dir. A non-positive debounce uses 500ms.
func NewWatcher(dir string, debounce time.Duration, fn ImportFunc, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		importFn: fn,
		logger:   logger.With(slog.String("component", "import_watcher")),
		pending:  make(map[string]time.Time),
	}
}

// Run replays files already waiting in the directory, then watches it until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create import dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.InfoContext(ctx, "watching import directory", slog.String("dir", w.dir))

	w.replay(ctx)

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "import watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) replay(ctx context.Context) {
	existing, err := FindImports(w.dir)
	if err != nil {
		w.logger.WarnContext(ctx, "scan import directory failed", slog.String("error", err.Error()))
		return
	}
	for _, f := range existing {
		w.consume(ctx, f.Path)
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if _, ok := ClassifyImport(event.Name); !ok {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()
	var ready []string

	w.mu.Lock()
	for path, seen := range w.pending {
		if now.Sub(seen) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.consume(ctx, path)
	}
}

// consume imports path and moves it into processed/ or failed/.
func (w *Watcher) consume(ctx context.Context, path string) {
	kind, ok := ClassifyImport(path)
	if !ok {
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.WarnContext(ctx, "read import failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return
	}

	name := filepath.Base(path)
	target := ProcessedDir
	if err := w.importFn(ctx, kind, name, content); err != nil {
		target = FailedDir
		w.logger.ErrorContext(ctx, "import failed",
			slog.String("dataset", string(kind)),
			slog.String("file", name),
			slog.String("error", err.Error()))
	} else {
		w.logger.InfoContext(ctx, "imported file",
			slog.String("dataset", string(kind)),
			slog.String("file", name))
	}

	if err := w.archive(path, target); err != nil {
		w.logger.WarnContext(ctx, "archive import failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

func (w *Watcher) archive(path, sub string) error {
	dir := filepath.Join(w.dir, sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	stamped := time.Now().UTC().Format("20060102T150405.000") + "_" + filepath.Base(path)
	return os.Rename(path, filepath.Join(dir, stamped))
}
