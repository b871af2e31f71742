package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/zeal/pkg/async"
	"github.com/platinummonkey/zeal/pkg/config"
)

// reloadDelay coalesces the burst of events editors produce on save
const reloadDelay = 500 * time.Millisecond

// watchConfig restarts the subscription whenever path changes. The parent
// directory is watched so atomic rename-on-save is seen.
func watchConfig(ctx context.Context, path string, l *listener) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	async.SafeGo(ctx, 0, "config watcher", l.logger, func(ctx context.Context) error {
		defer watcher.Close()

		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					pending = time.After(reloadDelay)
				}
			case <-pending:
				pending = nil
				reloadFrom(ctx, path, l)
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				l.log.WithError(err).Warn("Config watcher error")
			}
		}
	})

	l.log.WithField("path", path).Info("Watching config file")
	return nil
}

func reloadFrom(ctx context.Context, path string, l *listener) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		l.log.WithError(err).Warn("Ignoring invalid config change")
		return
	}
	if err := l.reload(ctx, cfg); err != nil {
		l.log.WithError(err).Error("Failed to apply config change")
		return
	}
	l.log.WithField("path", path).Info("Configuration reloaded")
}
