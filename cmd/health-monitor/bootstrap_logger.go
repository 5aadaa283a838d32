package main

import (
	"context"

	config "github.com/NordCoder/Healthwatch/internal/config/health-monitor"
	"github.com/NordCoder/Healthwatch/internal/obs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func initLogger(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	l, err := obs.NewLogger(obs.LogConfig{
		Level:      cfg.Log.Level,
		Pretty:     cfg.Log.Pretty,
		Atomic:     &level,
		App:        cfg.App.Name,
		Env:        cfg.App.Env,
		Ver:        cfg.App.Version,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	return l, level, err
}

// watchLogLevel applies log.level edits without a restart; other keys need one.
func watchLogLevel(ctx context.Context, path string, level zap.AtomicLevel, l *zap.Logger) {
	if path == "" {
		return
	}
	go func() {
		err := config.Watch(ctx, path, func(c *config.Config) {
			next, err := zapcore.ParseLevel(c.Log.Level)
			if err != nil {
				l.Warn("ignoring log level", zap.String("level", c.Log.Level))
				return
			}
			if next != level.Level() {
				level.SetLevel(next)
				l.Info("log level changed", zap.Stringer("level", next))
			}
		}, l)
		if err != nil {
			l.Warn("config watch disabled", zap.Error(err))
		}
	}()
}
