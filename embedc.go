// Package embedc compiles C and C++ fragments written inside Go source,
// loads them as shared libraries and calls them with values taken from a
// binding environment.
//
// The package-level functions use a default engine created on first use
// from DefaultConfig and EMBEDC_* environment variables. Call Shutdown
// before exit to unload libraries and delete transient artifacts.
//
//	environment := embedc.NewEnvironment(nil).Local("x", 5)
//	_, err := embedc.Inline("IMPORT int &x\nx = 7;", environment)
package embedc

import (
	"context"
	"runtime"
	"sync"

	"github.com/reglet-dev/embedc/host"
)

var (
	defaultMu     sync.Mutex
	defaultEngine *host.Engine
)

// Default returns the package-level engine, creating it if needed.
func Default() (*host.Engine, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEngine == nil {
		e, err := host.NewEngine()
		if err != nil {
			return nil, err
		}
		defaultEngine = e
	}
	return defaultEngine, nil
}

// SetDefault replaces the package-level engine. The previous engine is not
// closed.
func SetDefault(e *host.Engine) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultEngine = e
}

// Shutdown closes the package-level engine. The next call creates a new one.
func Shutdown() error {
	defaultMu.Lock()
	e := defaultEngine
	defaultEngine = nil
	defaultMu.Unlock()
	if e == nil {
		return nil
	}
	return e.Close()
}

func callerOf(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "", 0
	}
	return file, line
}

func inline(source string, environment Environment) (any, error) {
	file, line := callerOf(2)
	e, err := Default()
	if err != nil {
		return nil, err
	}
	return e.InlineAt(context.Background(), file, line, source, environment)
}

// Inline compiles source and calls it with values from environment. The
// result is the fragment's return value converted to a Go value, or nil.
func Inline(source string, environment Environment) (any, error) {
	return inline(source, environment)
}

// C is shorthand for Inline.
func C(source string, environment Environment) (any, error) {
	return inline(source, environment)
}

// Embed compiles source as native code and returns the loaded library.
func Embed(source string) (Library, error) {
	file, line := callerOf(1)
	e, err := Default()
	if err != nil {
		return nil, err
	}
	return e.EmbedAt(context.Background(), file, line, source)
}

// InlinePrecompiled calls a fragment compiled together with every other
// literal fragment of the calling Go file. The file's library is rebuilt
// only when the file is newer than it. source must be a string literal.
func InlinePrecompiled(source string, environment Environment) (any, error) {
	file, _ := callerOf(1)
	e, err := Default()
	if err != nil {
		return nil, err
	}
	return e.RunPrecompiled(context.Background(), file, source, environment)
}

// EmbedPrecompiled returns the library precompiled from the calling Go file.
// source must be a string literal.
func EmbedPrecompiled(source string) (Library, error) {
	file, _ := callerOf(1)
	e, err := Default()
	if err != nil {
		return nil, err
	}
	return e.EmbedPrecompiledAt(context.Background(), file, source)
}
