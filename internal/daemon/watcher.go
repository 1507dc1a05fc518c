package daemon

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lejeunerenard/file-assets/internal/config"
	"github.com/lejeunerenard/file-assets/internal/errors"
	"github.com/lejeunerenard/file-assets/internal/logfields"
)

// SourceWatcher monitors the configured source roots and fires debounced
// export triggers when their content changes.
type SourceWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	roots     []string
	logger    *slog.Logger
	mu        sync.Mutex
	stopChan  chan struct{}
	stopped   bool
}

// NewSourceWatcher creates a watcher over every configured source. Directory
// sources are watched recursively; file sources watch their parent
// directory. fire is called once per settled change burst.
func NewSourceWatcher(sources []config.SourceConfig, debounce time.Duration, fire func(cause string), logger *slog.Logger) (*SourceWatcher, error) {
	if len(sources) == 0 {
		return nil, errors.DaemonError("source watcher needs at least one source")
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to create file watcher")
	}

	debouncer, err := NewDebouncer(debounce, 10*debounce, fire)
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}

	roots := make([]string, 0, len(sources))
	for _, src := range sources {
		root := src.Path
		if fi, statErr := os.Stat(root); statErr == nil && !fi.IsDir() {
			root = filepath.Dir(root)
		}
		roots = append(roots, root)
	}

	return &SourceWatcher{
		watcher:   watcher,
		debouncer: debouncer,
		roots:     roots,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}, nil
}

// Start registers the watch roots and begins monitoring.
func (w *SourceWatcher) Start(ctx context.Context) error {
	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			return err
		}
	}

	w.logger.Info("source watcher started", logfields.Count(len(w.roots)))

	go w.debouncer.Run(ctx)
	go w.watchLoop(ctx)
	return nil
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *SourceWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopChan)
	return w.watcher.Close()
}

// addTree watches a directory and every directory below it. fsnotify does
// not recurse on its own.
func (w *SourceWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WrapError(err, errors.CategoryDaemon, "failed to walk watch root").
				WithContext("path", path)
		}
		if !d.IsDir() {
			return nil
		}
		if addErr := w.watcher.Add(path); addErr != nil {
			return errors.WrapError(addErr, errors.CategoryDaemon, "failed to watch directory").
				WithContext("path", path)
		}
		return nil
	})
}

func (w *SourceWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			// New directories join the watch so changes under them
			// keep triggering.
			if event.Op&fsnotify.Create == fsnotify.Create {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory",
							logfields.Path(event.Name), logfields.Error(err))
					}
				}
			}
			w.logger.Debug("source change detected",
				logfields.Path(event.Name),
				slog.String("op", event.Op.String()))
			w.debouncer.Request()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("source watcher error", logfields.Error(err))
		}
	}
}
