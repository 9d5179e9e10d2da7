package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"
)

const watchDebounceDelay = 100 * time.Millisecond

// watchFile watches a config file and invokes onChange after writes,
// debounced so editor save patterns (truncate+write, rename-over) produce a
// single reload. The watch survives brief deletion of the file.
func watchFile(ctx context.Context, path string, onChange func()) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory containing the file; some platforms don't
	// deliver events for directly watched files after rename-over saves.
	configDir := filepath.Dir(absPath)
	configFile := filepath.Base(absPath)

	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", configDir, err)
	}

	slog.Info("Watching config file", "path", absPath)
	go watchLoop(ctx, watcher, absPath, configFile, onChange)

	return nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, absPath, configFile string, onChange func()) {
	defer watcher.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != configFile {
				continue
			}

			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(watchDebounceDelay, func() {
					slog.Debug("Config file changed", "path", absPath)
					onChange()
				})

			case event.Op&fsnotify.Remove != 0:
				slog.Warn("Config file was deleted", "path", absPath)
				go tryRewatch(ctx, watcher, absPath, onChange)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

// tryRewatch re-arms the directory watch after the config file disappears,
// giving up after a few seconds.
func tryRewatch(ctx context.Context, watcher *fsnotify.Watcher, absPath string, onChange func()) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; i < 10; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(absPath); err != nil {
				continue
			}
			if err := watcher.Add(filepath.Dir(absPath)); err != nil {
				continue
			}
			slog.Info("Re-established watch on config file", "path", absPath)
			onChange()
			return
		}
	}

	slog.Warn("Failed to re-establish watch on config file", "path", absPath)
}
