package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultDebounce is how long the watcher waits for a burst of changes to
// settle before reporting it.
const DefaultDebounce = 2 * time.Second

// WatchDataDir monitors dir for changes to input documents and calls
// onChange once per settled batch of changes. Errors from onChange are
// logged and watching continues. Blocks until ctx is cancelled.
func WatchDataDir(ctx context.Context, dir string, debounce time.Duration, onChange func(context.Context) error, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	matcher, err := loadIgnoreMatcher(dir)
	if err != nil {
		return fmt.Errorf("loading ignore patterns: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, dir, dir, matcher); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	changed := make(map[string]struct{})
	batchTimer := time.NewTimer(debounce)
	batchTimer.Stop()

	logger.Info("watching data directory", "dir", dir, "debounce", debounce)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if !isIgnored(dir, event.Name, true, matcher) {
					if err := watchTree(watcher, dir, event.Name, matcher); err != nil {
						logger.Warn("watching new directory failed", "dir", event.Name, "error", err)
					}
				}
				continue
			}

			if !shouldWatchFile(dir, event.Name, matcher) {
				continue
			}

			changed[event.Name] = struct{}{}
			batchTimer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)

		case <-batchTimer.C:
			if len(changed) == 0 {
				continue
			}
			logger.Info("data directory changed", "files", len(changed))
			changed = make(map[string]struct{})

			if err := onChange(ctx); err != nil {
				logger.Error("processing changes failed", "error", err)
			}
		}
	}
}

// watchTree adds start and every directory below it that is not ignored
// relative to the data directory dir.
func watchTree(watcher *fsnotify.Watcher, dir, start string, matcher gitignore.Matcher) error {
	return filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isIgnored(dir, path, true, matcher) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// shouldWatchFile reports whether a change to path concerns an input
// document of the data directory.
func shouldWatchFile(dir, path string, matcher gitignore.Matcher) bool {
	if !isDocument(filepath.Base(path)) {
		return false
	}
	return !isIgnored(dir, path, false, matcher)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
