package health_monitor_config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads path whenever it is written or replaced and hands the new
// Config to onChange. An invalid file is logged and skipped. Runs until ctx ends.
func Watch(ctx context.Context, path string, onChange func(*Config), log *zap.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Editors save by rename, so the directory is watched rather than the inode.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)
	log = log.With(zap.String("component", "config_watch"), zap.String("path", path))
	log.Info("watching config")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				log.Warn("config reload failed; keeping previous", zap.Error(err))
				continue
			}
			log.Info("config reloaded")
			onChange(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", zap.Error(err))
		}
	}
}
