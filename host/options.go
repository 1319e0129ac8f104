package host

import (
	"log/slog"

	"github.com/reglet-dev/embedc/domain/entities"
	"github.com/reglet-dev/embedc/domain/ports"
)

type engineConfig struct {
	config   *entities.Config
	logger   *slog.Logger
	runner   ports.CommandRunner
	loader   ports.LibraryLoader
	cacheDir *string
}

// Option defines a functional option for configuring the Engine.
type Option func(*engineConfig)

// WithConfig replaces the configuration loaded from EMBEDC_* variables.
func WithConfig(cfg entities.Config) Option {
	return func(c *engineConfig) {
		c.config = &cfg
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithRunner sets the command runner used to invoke the toolchain.
func WithRunner(runner ports.CommandRunner) Option {
	return func(c *engineConfig) {
		c.runner = runner
	}
}

// WithLoader sets the dynamic library loader.
func WithLoader(loader ports.LibraryLoader) Option {
	return func(c *engineConfig) {
		c.loader = loader
	}
}

// WithCacheDir places precompiled artifacts under dir instead of next to
// their source files.
func WithCacheDir(dir string) Option {
	return func(c *engineConfig) {
		c.cacheDir = &dir
	}
}
