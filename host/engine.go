package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/reglet-dev/embedc/application/codegen"
	appconfig "github.com/reglet-dev/embedc/application/config"
	"github.com/reglet-dev/embedc/application/directive"
	"github.com/reglet-dev/embedc/application/marshal"
	"github.com/reglet-dev/embedc/domain/entities"
	domainerrors "github.com/reglet-dev/embedc/domain/errors"
	"github.com/reglet-dev/embedc/domain/ports"
	"github.com/reglet-dev/embedc/host/registry"
	"github.com/reglet-dev/embedc/infrastructure/dynlib"
	"github.com/reglet-dev/embedc/infrastructure/exec"
	"github.com/reglet-dev/embedc/infrastructure/toolchain"
	"github.com/reglet-dev/embedc/log"
)

// ErrClosed is returned by an Engine used after Close.
var ErrClosed = errors.New("engine is closed")

// Engine compiles, loads and calls embedded fragments.
type Engine struct {
	config    entities.Config
	logger    *slog.Logger
	loader    ports.LibraryLoader
	driver    *toolchain.Driver
	parser    *directive.Parser
	marshal   *marshal.Marshaller
	registry  *registry.Registry
	teardown  *Teardown
	closed    chan struct{}
	closeOnce sync.Once
}

// NewEngine creates an Engine. Without WithConfig the configuration comes
// from defaults and EMBEDC_* environment variables.
func NewEngine(opts ...Option) (*Engine, error) {
	var ec engineConfig
	for _, opt := range opts {
		opt(&ec)
	}

	var cfg entities.Config
	if ec.config != nil {
		cfg = *ec.config
	} else {
		loaded, err := appconfig.Load("")
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if ec.cacheDir != nil {
		cfg.CacheDir = *ec.cacheDir
	}
	if err := appconfig.Validate(cfg); err != nil {
		return nil, err
	}

	logger := ec.logger
	if logger == nil {
		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, &domainerrors.ConfigError{Field: "log_level", Err: err}
		}
		logger = log.New(log.WithLevel(level))
	}
	runner := ec.runner
	if runner == nil {
		runner = exec.NewRunner(exec.WithTimeout(cfg.BuildTimeout))
	}
	loader := ec.loader
	if loader == nil {
		loader = dynlib.Loader{}
	}

	return &Engine{
		config:   cfg,
		logger:   logger,
		loader:   loader,
		driver:   toolchain.NewDriver(runner, cfg, toolchain.WithLogger(logger)),
		parser:   directive.NewParser(),
		marshal:  marshal.New(marshal.WithLogger(logger)),
		registry: registry.NewRegistry(),
		teardown: NewTeardown(logger),
		closed:   make(chan struct{}),
	}, nil
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() entities.Config {
	return e.config
}

// Toolchain returns the detected compiler.
func (e *Engine) Toolchain(ctx context.Context) (string, error) {
	return e.driver.Detect(ctx)
}

func (e *Engine) checkOpen() error {
	select {
	case <-e.closed:
		return ErrClosed
	default:
		return nil
	}
}

// caller locates the host code calling into the engine.
func caller(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "", 0
	}
	return file, line
}

// Inline compiles source as a transient inline fragment and calls it with
// values from environment.
func (e *Engine) Inline(ctx context.Context, source string, environment ports.Environment) (any, error) {
	file, line := caller(1)
	return e.InlineAt(ctx, file, line, source, environment)
}

// InlineAt is Inline with an explicit host location for diagnostics.
func (e *Engine) InlineAt(ctx context.Context, file string, line int, source string, environment ports.Environment) (any, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if environment == nil {
		return nil, &domainerrors.EnvironmentError{Op: "range", Err: errors.New("nil environment")}
	}
	unit, lib, err := e.transient(ctx, directive.NewFragment(file, line, source, true), environment)
	if err != nil {
		return nil, err
	}
	// A transient library is called exactly once.
	defer e.marshal.Release(lib)
	return e.marshal.Call(lib, unit, environment)
}

// Embed compiles source as transient native code and returns the loaded
// library so its functions can be bound with Library.Bind.
func (e *Engine) Embed(ctx context.Context, source string) (ports.Library, error) {
	file, line := caller(1)
	return e.EmbedAt(ctx, file, line, source)
}

// EmbedAt is Embed with an explicit host location for diagnostics.
func (e *Engine) EmbedAt(ctx context.Context, file string, line int, source string) (ports.Library, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	_, lib, err := e.transient(ctx, directive.NewFragment(file, line, source, false), nil)
	return lib, err
}

// transient parses, builds and loads one fragment. The artifact and the
// library are queued for teardown.
func (e *Engine) transient(ctx context.Context, frag directive.Fragment, environment ports.Environment) (*entities.CodeUnit, ports.Library, error) {
	unit, err := e.parser.Parse(frag)
	if err != nil {
		return nil, nil, err
	}
	if unit.Inline && unit.ImportAll && environment != nil {
		if err := marshal.ImportAll(unit, environment); err != nil {
			return nil, nil, err
		}
	}

	art, err := e.driver.BuildTransient(ctx, []byte(codegen.RenderString(unit)), unit.Toolchain)
	if err != nil {
		return nil, nil, err
	}
	if art.Dir != "" {
		e.teardown.Remove(art.Dir)
	}
	e.teardown.Remove(art.Path)

	lib, err := e.loader.Open(art.Path)
	if err != nil {
		return nil, nil, err
	}
	e.teardown.Unload(lib)
	return unit, lib, nil
}

// InlinePrecompiled calls the precompiled fragment source from the caller's
// Go file, building the file's library first if it is missing or stale.
func (e *Engine) InlinePrecompiled(ctx context.Context, source string, environment ports.Environment) (any, error) {
	file, _ := caller(1)
	return e.RunPrecompiled(ctx, file, source, environment)
}

// EmbedPrecompiled returns the library precompiled from the caller's Go file.
func (e *Engine) EmbedPrecompiled(ctx context.Context, source string) (ports.Library, error) {
	file, _ := caller(1)
	return e.EmbedPrecompiledAt(ctx, file, source)
}

// EmbedPrecompiledAt returns the library precompiled from file, which must
// contain source as a literal EmbedPrecompiled argument.
func (e *Engine) EmbedPrecompiledAt(ctx context.Context, file, source string) (ports.Library, error) {
	entry, err := e.precompiled(ctx, file)
	if err != nil {
		return nil, err
	}
	if _, ok := entry.Unit(fragmentKey(source)); !ok {
		return nil, fragmentNotFound(file)
	}
	return entry.Library(), nil
}

// RunPrecompiled calls the unit compiled from fragment source in file.
func (e *Engine) RunPrecompiled(ctx context.Context, file, source string, environment ports.Environment) (any, error) {
	if environment == nil {
		return nil, &domainerrors.EnvironmentError{Op: "range", Err: errors.New("nil environment")}
	}
	entry, err := e.precompiled(ctx, file)
	if err != nil {
		return nil, err
	}
	unit, ok := entry.Unit(fragmentKey(source))
	if !ok {
		return nil, fragmentNotFound(file)
	}
	return e.marshal.Call(entry.Library(), unit, environment)
}

// LoadPrecompiled builds file's library if needed and returns it.
func (e *Engine) LoadPrecompiled(ctx context.Context, file string) (ports.Library, error) {
	entry, err := e.precompiled(ctx, file)
	if err != nil {
		return nil, err
	}
	return entry.Library(), nil
}

func fragmentNotFound(file string) error {
	return fmt.Errorf("fragment is not a string literal argument of a precompiled call in %s: %w",
		file, domainerrors.ErrNotFound)
}

// precompiled returns the loaded entry for file. The file is scanned and
// its staleness checked once per engine.
func (e *Engine) precompiled(ctx context.Context, file string) (*registry.Entry, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(file); err == nil {
		file = abs
	}

	entry := e.registry.Entry(file)
	entry.Lock()
	defer entry.Unlock()
	if entry.Loaded() {
		return entry, nil
	}

	frags, err := ScanFile(file)
	if err != nil {
		return nil, err
	}
	if len(frags) == 0 {
		return nil, fragmentNotFound(file)
	}

	compiled := make([]registry.Compiled, 0, len(frags))
	units := make([]*entities.CodeUnit, 0, len(frags))
	var cc string
	for i, frag := range frags {
		unit, err := e.parser.Parse(frag)
		if err != nil {
			return nil, err
		}
		unit.FuncName = fmt.Sprintf("func_%d", i+1)
		// Arguments are fixed at build time, so only explicit IMPORTs count.
		unit.ImportAll = false
		if unit.Toolchain != "" {
			cc = unit.Toolchain
		}
		compiled = append(compiled, registry.Compiled{Text: strings.Join(frag.Lines, "\n"), Unit: unit})
		units = append(units, unit)
	}

	unitPath, artifact := e.driver.Paths(file)
	stale, err := toolchain.NeedsRebuild(file, artifact)
	if err != nil {
		return nil, err
	}
	if stale {
		e.logger.Info("rebuilding", "source", file, "artifact", artifact, "fragments", len(units))
		var buf bytes.Buffer
		if err := codegen.RenderFile(&buf, file, units); err != nil {
			return nil, err
		}
		_, err := e.driver.Build(ctx, toolchain.BuildRequest{
			Unit:      unitPath,
			Code:      buf.Bytes(),
			Artifact:  artifact,
			Toolchain: cc,
		})
		if !e.config.KeepSources {
			if rmErr := os.Remove(unitPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				e.logger.Warn("removing translation unit", "path", unitPath, "error", rmErr)
			}
		}
		if err != nil {
			return nil, err
		}
	} else {
		e.logger.Debug("artifact up to date", "source", file, "artifact", artifact)
	}

	lib, err := e.openArtifact(artifact)
	if err != nil {
		return nil, err
	}
	if err := entry.Attach(compiled, lib, artifact); err != nil {
		return nil, err
	}
	return entry, nil
}

// Close unloads every library and deletes transient artifacts. It is safe
// to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.teardown.Run()
	})
	return nil
}

// fragmentKey normalises fragment text for matching call sites against
// scanned literals.
func fragmentKey(text string) string {
	return strings.Join(directive.SplitLines(text), "\n")
}
