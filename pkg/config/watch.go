package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/taskhub/pkg/observability"
)

// WatchFile reloads the configuration whenever the YAML file at path changes
// and passes the result to onChange. Reloads that fail to parse or validate
// are logged and skipped. It blocks until ctx is done.
//
// The parent directory is watched rather than the file so that editors that
// replace the file by rename are noticed.
func WatchFile(ctx context.Context, path string, logger *observability.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := reload(abs)
			if err != nil {
				logger.WithError(err).WithField("path", abs).Warn("Ignoring invalid config change")
				continue
			}
			logger.WithField("path", abs).Info("Configuration reloaded")
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Config watcher error")
		}
	}
}

func reload(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogLevelReloader returns an onChange callback that applies the reloaded log level
func LogLevelReloader(logger *observability.Logger) func(*Config) {
	return func(cfg *Config) {
		logger.SetLevel(cfg.Observability.Level())
	}
}
