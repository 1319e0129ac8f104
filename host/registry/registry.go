// Package registry tracks, per precompiled source file, the parsed code
// units and the dynamic library built from them.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/reglet-dev/embedc/domain/entities"
	"github.com/reglet-dev/embedc/domain/ports"
)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	strictMode bool // Fail on a second library for one source
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		strictMode: true,
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithStrictMode enables/disables strict mode for duplicate attachments.
// Default is true (fail on duplicates). Disable only for testing or hot-reloading.
func WithStrictMode(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictMode = enabled
	}
}

// Registry maps source identities to their compiled state.
type Registry struct {
	config  registryConfig
	entries sync.Map // map[string]*Entry
}

// NewRegistry creates a new Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{config: cfg}
}

// Entry returns the entry for identity, creating it on first use.
func (r *Registry) Entry(identity string) *Entry {
	v, _ := r.entries.LoadOrStore(identity, &Entry{identity: identity, strict: r.config.strictMode})
	return v.(*Entry)
}

// Lookup returns the entry for identity if one exists.
func (r *Registry) Lookup(identity string) (*Entry, bool) {
	v, ok := r.entries.Load(identity)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// List returns all known identities, sorted.
func (r *Registry) List() []string {
	var keys []string
	r.entries.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

// Compiled pairs a fragment's text with the unit parsed from it.
type Compiled struct {
	Text string
	Unit *entities.CodeUnit
}

// Entry is the compiled state of one source file. Build serialises the
// work of producing it; the accessors are safe for concurrent use.
type Entry struct {
	library  ports.Library
	units    map[string]*entities.CodeUnit
	identity string
	artifact string
	order    []*entities.CodeUnit
	build    sync.Mutex
	mu       sync.RWMutex
	strict   bool
}

// Identity is the source file the entry belongs to.
func (e *Entry) Identity() string {
	return e.identity
}

// Lock acquires the entry's build lock.
func (e *Entry) Lock() {
	e.build.Lock()
}

// Unlock releases the entry's build lock.
func (e *Entry) Unlock() {
	e.build.Unlock()
}

// Attach records the units and loaded library of the entry. In strict
// mode an entry accepts a library only once.
func (e *Entry) Attach(compiled []Compiled, lib ports.Library, artifact string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.strict && e.library != nil {
		return fmt.Errorf("library for %q already attached", e.identity)
	}

	e.units = make(map[string]*entities.CodeUnit, len(compiled))
	e.order = make([]*entities.CodeUnit, 0, len(compiled))
	for _, c := range compiled {
		// The first of several identical fragments wins.
		if _, dup := e.units[c.Text]; !dup {
			e.units[c.Text] = c.Unit
		}
		e.order = append(e.order, c.Unit)
	}
	e.library = lib
	e.artifact = artifact
	return nil
}

// Loaded reports whether a library has been attached.
func (e *Entry) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.library != nil
}

// Library returns the attached library, or nil.
func (e *Entry) Library() ports.Library {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.library
}

// Artifact returns the path the library was loaded from.
func (e *Entry) Artifact() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.artifact
}

// Unit returns the unit compiled from the fragment text.
func (e *Entry) Unit(text string) (*entities.CodeUnit, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	u, ok := e.units[text]
	return u, ok
}

// Units returns the entry's units in file order.
func (e *Entry) Units() []*entities.CodeUnit {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*entities.CodeUnit(nil), e.order...)
}
