// Package marshal moves values between a binding environment and a compiled
// code unit: it coerces arguments, invokes the native function, and writes
// by-reference and array results back to the scope they came from.
package marshal

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/reglet-dev/embedc/domain/entities"
	domainerrors "github.com/reglet-dev/embedc/domain/errors"
	"github.com/reglet-dev/embedc/domain/ports"
	"github.com/reglet-dev/embedc/env"
	"github.com/reglet-dev/embedc/infrastructure/dynlib"
)

type marshallerConfig struct {
	logger *slog.Logger
}

// Option configures a Marshaller.
type Option func(*marshallerConfig)

// WithLogger sets the logger used for callback failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *marshallerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Marshaller invokes code units against a binding environment. Calls are
// serialised because callback slots are shared between calls.
type Marshaller struct {
	logger    *slog.Logger
	callbacks *callbackTable
	funcs     map[string]map[string]reflect.Value // library path -> signature key -> registered func
	mu        sync.Mutex
}

// New creates a Marshaller.
func New(opts ...Option) *Marshaller {
	cfg := marshallerConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Marshaller{
		logger:    cfg.logger,
		callbacks: newCallbackTable(cfg.logger),
		funcs:     make(map[string]map[string]reflect.Value),
	}
}

// Release drops the functions registered for lib. Call it when lib will not
// be called again, before or after it is closed.
func (m *Marshaller) Release(lib ports.Library) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.funcs, lib.Path())
}

// argument is one prepared native argument and what is needed to commit it.
type argument struct {
	binding  entities.Binding
	declared string
	orig     any
	value    reflect.Value // passed to the native function
	holder   reflect.Value // reference holder pointer or array buffer
	commit   bool
}

// Call invokes unit's function from lib with values drawn from environment
// and returns the converted result. Void functions return nil.
func (m *Marshaller) Call(lib ports.Library, unit *entities.CodeUnit, environment ports.Environment) (any, error) {
	if environment == nil {
		return nil, &domainerrors.EnvironmentError{Op: "range", Err: errors.New("nil environment")}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ret := entities.ParseType(returnType(unit))
	if ret.Array || !ret.Known() {
		return nil, &domainerrors.ConversionError{Name: unit.FuncName, Target: "return", Declared: ret.Raw, Err: errUnsupported}
	}
	retType := nativeType(ret.Tag)

	a := &arena{}
	defer runtime.KeepAlive(a)

	session := m.callbacks.session()
	defer session.release()

	args := make([]*argument, 0, len(unit.Arguments))
	for _, arg := range unit.Arguments {
		p, err := m.prepare(arg, unit, environment, a, session)
		if err != nil {
			return nil, err
		}
		args = append(args, p)
	}
	defer runtime.KeepAlive(args)

	sym, err := lib.Symbol(unit.FuncName)
	if err != nil {
		return nil, err
	}

	in := make([]reflect.Type, len(args))
	values := make([]reflect.Value, len(args))
	for i, p := range args {
		in[i] = p.value.Type()
		values[i] = p.value
	}
	fn, err := m.function(lib.Path(), sym, in, retType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", unit.FuncName, err)
	}

	out := fn.Call(values)

	// The body has run, so POST runs whatever write-back reports.
	var firstErr error
	for _, p := range args {
		if err := p.writeBack(environment); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Decode before POST, which may free the returned buffer.
	var result any
	if retType != nil && firstErr == nil {
		result = fromNative(out[0], ret.Tag)
	}

	if unit.Inline {
		if post, err := lib.Symbol(unit.PostName()); err == nil {
			purego.SyscallN(post)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}

func returnType(unit *entities.CodeUnit) string {
	if unit.ReturnType == "" {
		return entities.DefaultReturnType
	}
	return unit.ReturnType
}

// resolve looks name up in the local scope, then the global one.
func resolve(environment ports.Environment, name string) (any, entities.Scope, error) {
	if v, ok := environment.Get(entities.ScopeLocal, name); ok {
		return v, entities.ScopeLocal, nil
	}
	if v, ok := environment.Get(entities.ScopeGlobal, name); ok {
		return v, entities.ScopeGlobal, nil
	}
	return nil, entities.ScopeLocal, &domainerrors.EnvironmentError{Op: "lookup", Name: name, Err: domainerrors.ErrNotFound}
}

func (m *Marshaller) prepare(arg entities.Argument, unit *entities.CodeUnit, environment ports.Environment, a *arena, session *callbackSession) (*argument, error) {
	b := entities.NewBinding(arg)
	name := b.Name
	if b.Mode == entities.PassFuncPtr {
		name = strings.TrimPrefix(name, entities.FuncPtrPrefix)
	}

	v, scope, err := resolve(environment, name)
	if err != nil {
		return nil, err
	}
	b.Scope = scope
	p := &argument{binding: b, declared: arg.Type, orig: v}

	convErr := func(err error) error {
		return &domainerrors.ConversionError{
			Name:     name,
			Value:    v,
			Target:   entities.CType(arg.Type, false),
			Declared: arg.Type,
			Err:      err,
		}
	}

	switch b.Mode {
	case entities.PassFuncPtr:
		fp, ok := unit.Functions[arg.Name]
		if !ok {
			return nil, convErr(fmt.Errorf("no DEF signature for %s", name))
		}
		addr, err := session.acquire(fp, v)
		if err != nil {
			return nil, convErr(err)
		}
		p.value = reflect.ValueOf(addr)

	case entities.PassArray:
		if err := p.prepareArray(a); err != nil {
			return nil, convErr(err)
		}

	case entities.PassReference:
		if err := p.prepareReference(a); err != nil {
			return nil, convErr(err)
		}

	default:
		if !b.Type.Known() {
			return nil, convErr(errUnsupported)
		}
		val, err := toNative(v, b.Type.Tag, a)
		if err != nil {
			return nil, convErr(err)
		}
		p.value = val
	}
	return p, nil
}

func (p *argument) prepareReference(a *arena) error {
	tag := p.binding.Type.Tag
	t := nativeType(tag)
	if t == nil {
		return errUnsupported
	}
	holder := reflect.New(t)
	if tag.Class() == entities.ClassText {
		// Non-text seeds start as NULL.
		if isText(p.orig) {
			addr, err := a.text(p.orig, tag)
			if err != nil {
				return err
			}
			holder.Elem().SetUint(uint64(addr))
		}
	} else {
		val, err := toNative(p.orig, tag, a)
		if err != nil {
			return err
		}
		holder.Elem().Set(val)
	}
	p.holder = holder
	p.value = reflect.ValueOf(holder.UnsafePointer())
	p.commit = true
	return nil
}

func (p *argument) prepareArray(a *arena) error {
	tag := p.binding.Type.Tag
	t := nativeType(tag)
	if t == nil {
		return errUnsupported
	}
	rv := reflect.ValueOf(p.orig)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return errNotSequence
	}

	n := rv.Len()
	buf := reflect.MakeSlice(reflect.SliceOf(t), n, n)
	for i := 0; i < n; i++ {
		val, err := toNative(rv.Index(i).Interface(), tag, a)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		buf.Index(i).Set(val)
	}

	p.holder = buf
	if n == 0 {
		p.value = reflect.ValueOf(unsafe.Pointer(nil))
	} else {
		p.value = reflect.ValueOf(buf.Index(0).Addr().UnsafePointer())
	}
	p.commit = !immutable(p.orig)
	return nil
}

// immutable reports whether writes to v's elements must not reach the host.
func immutable(v any) bool {
	if _, ok := v.(env.Tuple); ok {
		return true
	}
	return reflect.TypeOf(v).Kind() == reflect.Array
}

// writeBack stores the post-call value of a reference or array into the
// scope the binding was resolved from.
func (p *argument) writeBack(environment ports.Environment) error {
	if !p.commit {
		return nil
	}
	tag := p.binding.Type.Tag

	var value any
	switch p.binding.Mode {
	case entities.PassReference:
		value = restore(p.orig, fromNative(p.holder.Elem(), tag))
	case entities.PassArray:
		orig := reflect.ValueOf(p.orig)
		fresh := reflect.MakeSlice(orig.Type(), p.holder.Len(), p.holder.Len())
		for i := 0; i < p.holder.Len(); i++ {
			host := restore(orig.Index(i).Interface(), fromNative(p.holder.Index(i), tag))
			elem, _ := adapt(host, fresh.Type().Elem())
			fresh.Index(i).Set(elem)
		}
		value = fresh.Interface()
	default:
		return nil
	}

	if err := environment.Set(p.binding.Scope, p.binding.Name, value); err != nil {
		var envErr *domainerrors.EnvironmentError
		if errors.As(err, &envErr) {
			return err
		}
		return &domainerrors.EnvironmentError{Op: "store", Name: p.binding.Name, Err: err}
	}
	return nil
}

// function returns a Go func value bound to sym with the given signature.
// Callers hold m.mu.
func (m *Marshaller) function(path string, sym uintptr, in []reflect.Type, out reflect.Type) (reflect.Value, error) {
	var outs []reflect.Type
	if out != nil {
		outs = []reflect.Type{out}
	}
	ft := reflect.FuncOf(in, outs, false)
	key := fmt.Sprintf("%x:%s", sym, ft)
	if fn, ok := m.funcs[path][key]; ok {
		return fn, nil
	}

	ptr := reflect.New(ft)
	if err := dynlib.Register(ptr.Interface(), sym); err != nil {
		return reflect.Value{}, err
	}
	fn := ptr.Elem()
	if m.funcs[path] == nil {
		m.funcs[path] = make(map[string]reflect.Value)
	}
	m.funcs[path][key] = fn
	return fn, nil
}
