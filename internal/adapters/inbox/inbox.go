// Package inbox imports quote files dropped into a watched directory.
//
// Every *.json file that appears in the directory is imported and then
// renamed: to <name>.imported when it was applied, or to <name>.rejected when
// it is not a JSON array of quotes. Producers should write files under another
// name and rename them into place; a file that is still empty is left for the
// next write event.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

const (
	// DefaultSettle is how long a file must go without write events before
	// it is imported.
	DefaultSettle = 250 * time.Millisecond

	// scanWorkers bounds the startup scan.
	scanWorkers = 4

	suffixImported = ".imported"
	suffixRejected = ".rejected"
)

// Importer appends the quotes of a JSON payload. *app.QuoteService satisfies it.
type Importer interface {
	Import(ctx context.Context, payload []byte) (int, error)
}

// Config contains the dependencies of a Watcher.
type Config struct {
	// Dir is the watched directory. It is created if missing.
	Dir string

	Importer Importer

	// Settle defaults to DefaultSettle.
	Settle time.Duration

	Logger *slog.Logger
}

// Watcher imports files from a directory.
type Watcher struct {
	dir      string
	importer Importer
	settle   time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher. Panics if cfg.Importer is nil.
func New(cfg Config) *Watcher {
	if cfg.Importer == nil {
		panic("inbox: Config.Importer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	settle := cfg.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}

	return &Watcher{
		dir:      cfg.Dir,
		importer: cfg.Importer,
		settle:   settle,
		logger:   logger.With(slog.String("component", "inbox"), slog.String("dir", cfg.Dir)),
		pending:  make(map[string]*time.Timer),
	}
}

// Run imports the files already in the directory, then every file that
// arrives, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return fmt.Errorf("creating inbox dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating inbox watcher: %w", err)
	}
	defer fw.Close()

	// Watch before scanning so a file is either seen by the scan or evented.
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching inbox dir: %w", err)
	}

	if err := w.Scan(ctx); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "inbox watching for quote files")

	ready := make(chan string)
	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(context.WithoutCancel(ctx), "inbox stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isQuoteFile(event.Name) {
				continue
			}

			w.schedule(ctx, event.Name, ready)

		case path := <-ready:
			w.process(ctx, path)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}

			w.logger.WarnContext(ctx, "inbox watcher error", slog.Any("error", err))
		}
	}
}

// Scan imports every quote file currently in the directory.
func (w *Watcher) Scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading inbox dir: %w", err)
	}

	var paths []string

	for _, e := range entries {
		if e.Type().IsRegular() && isQuoteFile(e.Name()) {
			paths = append(paths, filepath.Join(w.dir, e.Name()))
		}
	}

	if len(paths) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "importing waiting quote files", slog.Int("count", len(paths)))

	return app.FanOut(ctx, scanWorkers, paths, func(ctx context.Context, path string) error {
		w.process(ctx, path)
		return ctx.Err()
	})
}

// schedule (re)starts the settle timer of path. When it fires the path is
// handed to the run loop.
func (w *Watcher) schedule(ctx context.Context, path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}

	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// process imports one file and renames it. Failures are logged.
func (w *Watcher) process(ctx context.Context, path string) {
	if err := w.ImportFile(ctx, path); err != nil {
		w.logger.WarnContext(ctx, "importing quote file failed",
			slog.String("file", filepath.Base(path)),
			slog.Any("error", err),
		)
	}
}

// ImportFile imports path and renames it to mark the outcome. A file that no
// longer exists or is still empty is skipped.
func (w *Watcher) ImportFile(ctx context.Context, path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	if len(payload) == 0 {
		return nil
	}

	logger := w.logger.With(slog.String("file", filepath.Base(path)))

	n, err := w.importer.Import(ctx, payload)

	switch {
	case domain.IsFormat(err):
		logger.WarnContext(ctx, "quote file rejected", slog.Any("error", err))

		return rename(path, suffixRejected)

	case err != nil && !domain.IsStorage(err):
		return err

	case err != nil:
		logger.WarnContext(ctx, "quote file imported in memory only", slog.Int("count", n), slog.Any("error", err))

	default:
		logger.InfoContext(ctx, "quote file imported", slog.Int("count", n))
	}

	return rename(path, suffixImported)
}

func rename(path, suffix string) error {
	if err := os.Rename(path, path+suffix); err != nil {
		return fmt.Errorf("marking %s: %w", filepath.Base(path), err)
	}

	return nil
}

func isQuoteFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}
