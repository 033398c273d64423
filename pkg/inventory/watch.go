package inventory

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reacts to inventory and context file changes. Events are
// debounced so an editor save burst triggers one rebuild, not five.
type Watcher struct {
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher that logs through the given logger.
func NewWatcher(logger zerolog.Logger) *Watcher {
	return &Watcher{
		logger: logger.With().Str("component", "inventory-watch").Logger(),
	}
}

// Watch starts watching the given files and directories and invokes
// onChange after each debounced batch of relevant changes. Event
// processing runs until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, paths []string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.watcher = watcher

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Failed to stat watch path")
			continue
		}
		if info.IsDir() {
			if err := w.watchDirectory(path); err != nil {
				w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch directory")
			}
		} else if err := watcher.Add(path); err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch file")
		}
	}

	go w.processEvents(ctx, onChange)

	w.logger.Info().Int("paths", len(paths)).Msg("Watching inventory for changes")
	return nil
}

// Close stops event delivery.
func (w *Watcher) Close() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) processEvents(ctx context.Context, onChange func()) {
	const debounce = 500 * time.Millisecond
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !watchableFile(event.Name) {
				continue
			}
			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Inventory file changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, onChange)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("File watcher error")
		}
	}
}

func (w *Watcher) watchDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func watchableFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json", ".cue", ".star":
		return true
	}
	return false
}
