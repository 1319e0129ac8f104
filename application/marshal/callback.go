package marshal

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/reglet-dev/embedc/domain/entities"
)

// maxCallbackSlots stays below purego's process-wide callback limit, since
// native callbacks can never be released.
const maxCallbackSlots = 1024

var (
	errNotCallable   = errors.New("not a function")
	errTooManySlots  = fmt.Errorf("more than %d distinct callback slots", maxCallbackSlots)
	errArityMismatch = errors.New("argument count does not match the DEF signature")
)

// callbackSlot is one native callback whose Go target is swapped per call.
type callbackSlot struct {
	addr   uintptr
	fp     entities.FuncPtr
	target reflect.Value
	arena  arena
	logger *slog.Logger
}

// callbackTable caches callback slots by native signature.
type callbackTable struct {
	slots  map[string][]*callbackSlot
	total  int
	logger *slog.Logger
	mu     sync.Mutex
}

func newCallbackTable(logger *slog.Logger) *callbackTable {
	return &callbackTable{slots: make(map[string][]*callbackSlot), logger: logger}
}

// callbackSession hands out slots for one native call.
type callbackSession struct {
	table *callbackTable
	used  map[string]int
	taken []*callbackSlot
}

func (t *callbackTable) session() *callbackSession {
	return &callbackSession{table: t, used: make(map[string]int)}
}

func signatureKey(fp entities.FuncPtr) string {
	return fp.ReturnType + "(" + strings.Join(fp.ArgTypes, ",") + ")"
}

// acquire points a free slot with fp's signature at callable and returns
// the native function pointer.
func (s *callbackSession) acquire(fp entities.FuncPtr, callable any) (uintptr, error) {
	fv := reflect.ValueOf(callable)
	if !fv.IsValid() || fv.Kind() != reflect.Func {
		return 0, errNotCallable
	}
	ft := fv.Type()
	params := fp.Params()
	if ft.IsVariadic() {
		if len(params) < ft.NumIn()-1 {
			return 0, errArityMismatch
		}
	} else if ft.NumIn() != len(params) {
		return 0, errArityMismatch
	}

	key := signatureKey(fp)
	idx := s.used[key]
	s.used[key] = idx + 1

	slot, err := s.table.slot(key, idx, fp)
	if err != nil {
		return 0, err
	}
	slot.target = fv
	s.taken = append(s.taken, slot)
	return slot.addr, nil
}

// release detaches every slot taken by the session.
func (s *callbackSession) release() {
	for _, slot := range s.taken {
		slot.target = reflect.Value{}
		slot.arena = arena{}
	}
	s.taken = nil
}

func (t *callbackTable) slot(key string, idx int, fp entities.FuncPtr) (*callbackSlot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if slots := t.slots[key]; idx < len(slots) {
		return slots[idx], nil
	}
	if t.total >= maxCallbackSlots {
		return nil, errTooManySlots
	}

	ft, err := callbackType(fp)
	if err != nil {
		return nil, err
	}
	slot := &callbackSlot{fp: fp, logger: t.logger}
	addr, err := newCallback(reflect.MakeFunc(ft, slot.invoke).Interface())
	if err != nil {
		return nil, err
	}
	slot.addr = addr
	t.slots[key] = append(t.slots[key], slot)
	t.total++
	return slot, nil
}

func newCallback(fn any) (addr uintptr, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("creating native callback: %v", r)
		}
	}()
	return purego.NewCallback(fn), nil
}

// callbackType is the native-facing Go signature of a DEF.
func callbackType(fp entities.FuncPtr) (reflect.Type, error) {
	params := fp.Params()
	in := make([]reflect.Type, len(params))
	for i, raw := range params {
		spec := entities.ParseType(raw)
		t := nativeType(spec.Tag)
		if spec.Array || t == nil {
			return nil, fmt.Errorf("argument %d %q: %w", i, raw, errUnsupported)
		}
		in[i] = t
	}
	var out []reflect.Type
	ret := entities.ParseType(fp.ReturnType)
	if !ret.Known() || ret.Array {
		return nil, fmt.Errorf("return %q: %w", fp.ReturnType, errUnsupported)
	}
	if t := nativeType(ret.Tag); t != nil {
		out = []reflect.Type{t}
	}
	return reflect.FuncOf(in, out, false), nil
}

// invoke runs on the native thread. Panics must not unwind into native
// frames, so they are logged and a zero value is returned.
func (s *callbackSlot) invoke(args []reflect.Value) (results []reflect.Value) {
	ret := entities.ParseType(s.fp.ReturnType)
	zero := func() []reflect.Value {
		if t := nativeType(ret.Tag); t != nil {
			return []reflect.Value{reflect.Zero(t)}
		}
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("callback panicked", "function", s.fp.Name, "panic", r)
			results = zero()
		}
	}()

	if !s.target.IsValid() {
		s.logger.Error("callback invoked outside of a native call", "function", s.fp.Name)
		return zero()
	}

	ft := s.target.Type()
	params := s.fp.Params()
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		host := fromNative(arg, entities.ParseType(params[i]).Tag)
		v, ok := adapt(host, paramType(ft, i))
		if !ok {
			s.logger.Warn("callback argument not convertible",
				"function", s.fp.Name, "index", i, "value", host)
		}
		in[i] = v
	}

	out := s.target.Call(in)
	if nativeType(ret.Tag) == nil {
		return nil
	}
	var r any
	if len(out) > 0 {
		r = out[0].Interface()
	}
	val, err := toNative(r, ret.Tag, &s.arena)
	if err != nil {
		s.logger.Error("callback result not convertible",
			"function", s.fp.Name, "value", r, "error", err)
		return zero()
	}
	return []reflect.Value{val}
}

func paramType(ft reflect.Type, i int) reflect.Type {
	if ft.IsVariadic() && i >= ft.NumIn()-1 {
		return ft.In(ft.NumIn() - 1).Elem()
	}
	return ft.In(i)
}
