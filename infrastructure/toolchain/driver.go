// Package toolchain drives the external C/C++ compiler: it detects a working
// compiler, decides when a cached artifact is stale and builds translation
// units into dynamic libraries.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/reglet-dev/embedc/domain/entities"
	domainerrors "github.com/reglet-dev/embedc/domain/errors"
	"github.com/reglet-dev/embedc/domain/ports"
	"github.com/reglet-dev/embedc/infrastructure/dynlib"
)

const (
	// VersionFlag is passed to each candidate compiler during detection.
	VersionFlag = "--version"

	probeTimeout = 10 * time.Second
)

type driverConfig struct {
	logger *slog.Logger
}

// Option configures a Driver.
type Option func(*driverConfig)

// WithLogger sets the driver's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *driverConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Driver builds translation units with the configured toolchain.
type Driver struct {
	runner   ports.CommandRunner
	logger   *slog.Logger
	config   entities.Config
	detected string
	mu       sync.Mutex
}

// NewDriver creates a Driver running commands through runner.
func NewDriver(runner ports.CommandRunner, cfg entities.Config, opts ...Option) *Driver {
	dc := driverConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&dc)
	}
	return &Driver{runner: runner, config: cfg, logger: dc.logger}
}

// Config returns the driver's configuration.
func (d *Driver) Config() entities.Config {
	return d.config
}

// Detect returns the first candidate compiler answering a version probe.
// Only a successful detection is cached, so a later call retries after a
// compiler is installed.
func (d *Driver) Detect(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.detected != "" {
		return d.detected, nil
	}

	candidates := d.config.Candidates
	if d.config.Toolchain != "" {
		candidates = []string{d.config.Toolchain}
	}

	var outputs []string
	for _, cc := range candidates {
		res, err := d.runner.Run(ctx, ports.CommandRequest{
			Command: cc,
			Args:    []string{VersionFlag},
			Timeout: int(probeTimeout.Milliseconds()),
		})
		if err != nil {
			outputs = append(outputs, err.Error())
			continue
		}
		if res.ExitCode != 0 || res.IsTimeout {
			outputs = append(outputs, strings.TrimSpace(res.Output))
			continue
		}
		d.detected = cc
		d.logger.Info("toolchain detected", "toolchain", cc, "version", firstLine(res.Output))
		return cc, nil
	}

	return "", &domainerrors.ToolchainNotFoundError{
		Candidates: candidates,
		Output:     strings.Join(outputs, "\n"),
	}
}

// Toolchain resolves the compiler for a build: an explicit override wins
// over detection.
func (d *Driver) Toolchain(ctx context.Context, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return d.Detect(ctx)
}

// NeedsRebuild reports whether artifact is missing or older than source.
// A missing source with an existing artifact reuses the artifact.
func NeedsRebuild(source, artifact string) (bool, error) {
	ai, err := os.Stat(artifact)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat artifact: %w", err)
	}

	si, err := os.Stat(source)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat source: %w", err)
	}
	return si.ModTime().After(ai.ModTime()), nil
}

// Paths returns where the translation unit and artifact of a precompiled
// source live: next to the source, or flattened into the cache directory.
func (d *Driver) Paths(source string) (unit, artifact string) {
	base := source
	if d.config.CacheDir != "" {
		abs, err := filepath.Abs(source)
		if err != nil {
			abs = source
		}
		base = filepath.Join(d.config.CacheDir, flatten(abs))
	}
	unit = base + ".cpp"
	return unit, unit + dynlib.Ext()
}

func flatten(path string) string {
	r := strings.NewReplacer(string(filepath.Separator), "_", "/", "_", ":", "_")
	return strings.TrimLeft(r.Replace(path), "_")
}

// BuildRequest describes one compiler run.
type BuildRequest struct {
	// Unit is the translation unit path. When Code is non-nil it is
	// written there first.
	Unit     string
	Code     []byte
	Artifact string

	// Toolchain overrides the detected compiler.
	Toolchain string

	// Transient builds have unique names and skip the artifact lock.
	Transient bool
}

// Build compiles req.Unit into req.Artifact. On failure the partial
// artifact is removed and a CompileError carries the compiler output.
func (d *Driver) Build(ctx context.Context, req BuildRequest) (*entities.Artifact, error) {
	cc, err := d.Toolchain(ctx, req.Toolchain)
	if err != nil {
		return nil, err
	}

	if !req.Transient {
		if err := os.MkdirAll(filepath.Dir(req.Artifact), 0o755); err != nil {
			return nil, fmt.Errorf("creating artifact directory: %w", err)
		}
		unlock, err := lockFile(req.Artifact + ".lock")
		if err != nil {
			return nil, fmt.Errorf("locking %s: %w", req.Artifact, err)
		}
		defer unlock()
	}

	if req.Code != nil {
		if err := os.WriteFile(req.Unit, req.Code, 0o644); err != nil {
			return nil, fmt.Errorf("writing translation unit: %w", err)
		}
	}

	args := make([]string, 0, len(d.config.Flags)+len(d.config.Libs)+3)
	args = append(args, d.config.Flags...)
	args = append(args, "-o", req.Artifact, req.Unit)
	args = append(args, d.config.Libs...)

	d.logger.Debug("building", "toolchain", cc, "unit", req.Unit, "artifact", req.Artifact)
	res, err := d.runner.Run(ctx, ports.CommandRequest{
		Command: cc,
		Args:    args,
		Timeout: int(d.config.BuildTimeout.Milliseconds()),
	})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 || res.IsTimeout {
		_ = os.Remove(req.Artifact)
		return nil, &domainerrors.CompileError{
			File:      req.Unit,
			Toolchain: cc,
			Output:    res.Output,
			Args:      append([]string{cc}, args...),
			ExitCode:  res.ExitCode,
			IsTimeout: res.IsTimeout,
		}
	}

	info, err := os.Stat(req.Artifact)
	if err != nil {
		return nil, fmt.Errorf("compiler reported success without an artifact: %w", err)
	}
	d.logger.Debug("built", "artifact", req.Artifact, "duration_ms", res.DurationMs)

	return &entities.Artifact{
		Path:      req.Artifact,
		ModTime:   info.ModTime(),
		Source:    req.Unit,
		Transient: req.Transient,
	}, nil
}

// BuildTransient compiles code into a library inside a fresh private
// directory under TempDir, so no other build can reuse its path while it is
// loaded. The translation unit is removed afterwards; the artifact and its
// directory (Artifact.Dir) belong to the caller.
func (d *Driver) BuildTransient(ctx context.Context, code []byte, toolchain string) (*entities.Artifact, error) {
	base := d.config.TempDir
	if base == "" {
		base = os.TempDir()
	}
	dir, err := os.MkdirTemp(base, "embedc-")
	if err != nil {
		return nil, fmt.Errorf("creating build directory: %w", err)
	}
	unit := filepath.Join(dir, "fragment.cpp")
	defer os.Remove(unit)

	if err := os.WriteFile(unit, code, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("writing translation unit: %w", err)
	}

	art, err := d.Build(ctx, BuildRequest{
		Unit:      unit,
		Artifact:  filepath.Join(dir, "fragment"+dynlib.Ext()),
		Toolchain: toolchain,
		Transient: true,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	art.Dir = dir
	return art, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
