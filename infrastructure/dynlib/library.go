// Package dynlib opens compiled artifacts as dynamic libraries and binds
// their exported functions to Go function values.
package dynlib

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
	domainerrors "github.com/reglet-dev/embedc/domain/errors"
	"github.com/reglet-dev/embedc/domain/ports"
)

var errClosed = errors.New("library is closed")

// Ext is the platform's dynamic library file extension.
func Ext() string {
	switch runtime.GOOS {
	case "windows":
		return ".dll"
	case "darwin":
		return ".dylib"
	default:
		return ".so"
	}
}

// Library is an open dynamic library.
type Library struct {
	path   string
	handle uintptr
	mu     sync.RWMutex
	closed bool
}

var _ ports.Library = (*Library)(nil)

// Open loads the library at path.
func Open(path string) (*Library, error) {
	h, err := openLibrary(path)
	if err != nil {
		return nil, &domainerrors.LoadError{Path: path, Err: err}
	}
	return &Library{path: path, handle: h}, nil
}

// Path is the file the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Symbol resolves the address of an exported symbol.
func (l *Library) Symbol(name string) (uintptr, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return 0, &domainerrors.SymbolError{Symbol: name, Path: l.path, Err: errClosed}
	}
	addr, err := lookupSymbol(l.handle, name)
	if err != nil {
		return 0, &domainerrors.SymbolError{Symbol: name, Path: l.path, Err: err}
	}
	if addr == 0 {
		return 0, &domainerrors.SymbolError{Symbol: name, Path: l.path, Err: domainerrors.ErrNotFound}
	}
	return addr, nil
}

// Bind points fnPtr, a pointer to a Go func variable, at the exported
// function name. Argument and return types follow purego's rules.
func (l *Library) Bind(name string, fnPtr any) error {
	addr, err := l.Symbol(name)
	if err != nil {
		return err
	}
	return Register(fnPtr, addr)
}

// Close unloads the library. Closing twice is a no-op.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := closeLibrary(l.handle); err != nil {
		return fmt.Errorf("unloading %s: %w", l.path, err)
	}
	return nil
}

// Register binds fnPtr to the native function at addr, turning purego's
// panics on unsupported signatures into errors.
func Register(fnPtr any, addr uintptr) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("binding native function: %v", r)
		}
	}()
	purego.RegisterFunc(fnPtr, addr)
	return nil
}

// Loader implements ports.LibraryLoader.
type Loader struct{}

var _ ports.LibraryLoader = Loader{}

// Open loads the library at path.
func (Loader) Open(path string) (ports.Library, error) {
	lib, err := Open(path)
	if err != nil {
		return nil, err
	}
	return lib, nil
}
