package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 100 * time.Millisecond

// watchRules calls onChange after .cue files under path change, until ctx
// is done. path may be a directory, watched recursively, or a single file.
func watchRules(ctx context.Context, path string, logger *slog.Logger, onChange func()) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	file := ""
	if info.IsDir() {
		err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return watcher.Add(p)
			}
			return nil
		})
	} else {
		// Watch the parent; saves may replace the file.
		file = filepath.Clean(path)
		err = watcher.Add(filepath.Dir(path))
	}
	if err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if file == "" && ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := watcher.Add(ev.Name); err != nil {
						logger.Warn("failed to watch new directory", "dir", ev.Name, "error", err)
					}
					continue
				}
			}
			if filepath.Ext(ev.Name) != ".cue" || (file != "" && filepath.Clean(ev.Name) != file) {
				continue
			}
			logger.Debug("rule file changed", "file", ev.Name, "op", ev.Op.String())
			fire = time.After(watchDebounce)

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher: %w", err)
		}
	}
}
