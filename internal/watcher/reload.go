package watcher

import (
	"context"

	"go.uber.org/zap"

	"bookmarksync/internal/config"
)

// ApplyFunc receives every configuration that loaded and validated
type ApplyFunc func(cfg *config.Config)

// ConfigReloader re-reads a config file whenever it changes. A file that does
// not parse or validate is logged and skipped; the last good one stays active.
type ConfigReloader struct {
	path    string
	apply   ApplyFunc
	watcher *Watcher
	log     *zap.Logger
}

// NewConfigReloader creates a reloader for path
func NewConfigReloader(path string, apply ApplyFunc, logger *zap.Logger) *ConfigReloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ConfigReloader{
		path:  path,
		apply: apply,
		log:   logger.Named("reload"),
	}
	r.watcher = New(path, r.Reload, logger)
	return r
}

// Watcher exposes the underlying file watcher, e.g. to shorten its debounce
func (r *ConfigReloader) Watcher() *Watcher {
	return r.watcher
}

// Run blocks until ctx ends
func (r *ConfigReloader) Run(ctx context.Context) error {
	return r.watcher.Watch(ctx)
}

// Reload loads the file once and applies it if it is valid
func (r *ConfigReloader) Reload() {
	cfg, _, err := config.LoadFromPath(r.path)
	if err != nil {
		r.log.Warn("ignoring unreadable config", zap.String("path", r.path), zap.Error(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		r.log.Warn("ignoring invalid config", zap.String("path", r.path), zap.Error(err))
		return
	}
	r.log.Info("config reloaded", zap.Strings("databases", cfg.Databases))
	r.apply(cfg)
}
