// Package watch notifies about changes in the book source so serve mode can rebuild.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before a rebuild.
const DefaultDebounce = 200 * time.Millisecond

// ChangeCallback receives the absolute paths changed during one quiet period,
// sorted and deduplicated.
type ChangeCallback func(paths []string)

// Options configures Watch.
type Options struct {
	Roots    []string // directories watched recursively
	Ignore   []string // absolute directories whose events are dropped (e.g. the output dir)
	Debounce time.Duration
}

// Watch starts an fsnotify watcher on every root and calls cb once per burst
// of changes until ctx is cancelled.
//
// New directories created at runtime are added to the watch list. Editor
// temp files and hidden entries are ignored.
func Watch(ctx context.Context, opts Options, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ignore := make([]string, 0, len(opts.Ignore))
	for _, p := range opts.Ignore {
		if abs, err := filepath.Abs(p); err == nil {
			ignore = append(ignore, abs)
		}
	}
	ignored := func(p string) bool {
		for _, ig := range ignore {
			if p == ig || strings.HasPrefix(p, ig+string(os.PathSeparator)) {
				return true
			}
		}
		return false
	}

	for _, root := range opts.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		if _, err := os.Stat(abs); err != nil {
			logger.Warn("watcher: skipping root", slog.String("root", abs), slog.String("error", err.Error()))
			continue
		}
		if err := addDirsRecursive(w, abs, ignored); err != nil {
			return err
		}
		logger.Info("watcher: started", slog.String("root", abs))
	}

	var timer *time.Timer
	var timerCh <-chan time.Time
	pending := make(map[string]struct{})

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			cb(paths)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ignored(ev.Name) || skipName(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name, ignored); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
				}
			}

			logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			pending[ev.Name] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// skipName filters hidden files and common editor artifacts.
func skipName(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") ||
		strings.HasSuffix(name, ".tmp")
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string, ignored func(string) bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if ignored(path) || (path != root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
