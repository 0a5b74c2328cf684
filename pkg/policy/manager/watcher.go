package manager

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultWatchDebounce is used when LoaderConfig.WatchDebounce is zero.
const defaultWatchDebounce = 100 * time.Millisecond

// searchPathWatcher turns fsnotify events under the search paths into
// debounced invalidations. Only policy files are considered; editor
// temporaries and hidden files are ignored.
type searchPathWatcher struct {
	fsw        *fsnotify.Watcher
	extensions []string
	debounce   time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending []string // changed files since the last invalidation
}

func newSearchPathWatcher(dirs, extensions []string, debounce time.Duration, logger *slog.Logger) (*searchPathWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	w := &searchPathWatcher{
		fsw:        fsw,
		extensions: extensions,
		debounce:   debounce,
		logger:     logger,
	}
	for _, dir := range dirs {
		if err := w.addTree(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
		}
	}
	return w, nil
}

// addTree watches dir and its non-hidden subdirectories. fsnotify is not
// recursive, so nested policy directories are added one by one.
func (w *searchPathWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		w.logger.Debug("watching policy directory", "path", path)
		return w.fsw.Add(path)
	})
}

// relevant reports whether an event can change a resolved policy.
func (w *searchPathWatcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, want := range w.extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// run delivers invalidations to onChange until ctx is cancelled. A new
// subdirectory is watched as soon as it appears.
func (w *searchPathWatcher) run(ctx context.Context, onChange func(paths []string)) error {
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("policy watcher closed")
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn("failed to watch new policy directory", "path", ev.Name, "error", err)
					}
					continue
				}
			}
			if w.relevant(ev) {
				w.logger.Debug("policy file changed", "path", ev.Name, "op", ev.Op.String())
				w.schedule(ev.Name, onChange)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("policy watcher closed")
			}
			w.logger.Error("policy watcher error", "error", err)
		}
	}
}

// schedule restarts the quiet period. onChange runs once per burst with
// every file touched during it.
func (w *searchPathWatcher) schedule(path string, onChange func(paths []string)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, path)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		paths := w.pending
		w.pending = nil
		w.timer = nil
		w.mu.Unlock()
		if len(paths) > 0 {
			onChange(paths)
		}
	})
}

func (w *searchPathWatcher) stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = nil
	w.mu.Unlock()

	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("failed to close policy watcher", "error", err)
	}
}

func isDirectory(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
