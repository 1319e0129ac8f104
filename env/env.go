// Package env provides an in-memory binding environment: the local and global
// variable scopes a native fragment reads from and writes back to.
package env

import (
	"fmt"
	"sync"

	"github.com/reglet-dev/embedc/domain/entities"
	"github.com/reglet-dev/embedc/domain/ports"
)

// Tuple is an immutable sequence. Arrays imported from a Tuple are passed to
// native code but never written back.
type Tuple []any

// Scope is an ordered name→value table safe for concurrent use.
type Scope struct {
	values map[string]any
	names  []string
	mu     sync.RWMutex
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{values: make(map[string]any)}
}

// Bind sets name to value and returns the scope for chaining.
func (s *Scope) Bind(name string, value any) *Scope {
	s.Store(name, value)
	return s
}

// Store sets name to value, keeping first-insertion order.
func (s *Scope) Store(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = value
}

// Lookup returns the value bound to name.
func (s *Scope) Lookup(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Names lists bound names in insertion order.
func (s *Scope) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...)
}

// Environment pairs a local scope with a (possibly shared) global scope.
type Environment struct {
	locals  *Scope
	globals *Scope
}

var _ ports.Environment = (*Environment)(nil)

// New creates an environment with a fresh local scope. A nil globals scope
// is replaced by an empty one; pass a shared scope to model package state.
func New(globals *Scope) *Environment {
	if globals == nil {
		globals = NewScope()
	}
	return &Environment{locals: NewScope(), globals: globals}
}

// Local binds a local variable and returns the environment for chaining.
func (e *Environment) Local(name string, value any) *Environment {
	e.locals.Store(name, value)
	return e
}

// Global binds a global variable and returns the environment for chaining.
func (e *Environment) Global(name string, value any) *Environment {
	e.globals.Store(name, value)
	return e
}

// Globals exposes the global scope so it can be shared with other environments.
func (e *Environment) Globals() *Scope {
	return e.globals
}

func (e *Environment) scope(scope entities.Scope) *Scope {
	if scope == entities.ScopeGlobal {
		return e.globals
	}
	return e.locals
}

// Get implements ports.Environment.
func (e *Environment) Get(scope entities.Scope, name string) (any, bool) {
	return e.scope(scope).Lookup(name)
}

// Set implements ports.Environment.
func (e *Environment) Set(scope entities.Scope, name string, value any) error {
	if scope != entities.ScopeLocal && scope != entities.ScopeGlobal {
		return fmt.Errorf("unknown scope %d", scope)
	}
	e.scope(scope).Store(name, value)
	return nil
}

// Names implements ports.Environment.
func (e *Environment) Names(scope entities.Scope) []string {
	return e.scope(scope).Names()
}

// Lookup resolves name in the local scope first, then the global scope.
func (e *Environment) Lookup(name string) (any, entities.Scope, bool) {
	if v, ok := e.locals.Lookup(name); ok {
		return v, entities.ScopeLocal, true
	}
	if v, ok := e.globals.Lookup(name); ok {
		return v, entities.ScopeGlobal, true
	}
	return nil, entities.ScopeLocal, false
}
