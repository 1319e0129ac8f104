package marshal

import (
	"errors"
	"math"
	"reflect"

	"github.com/reglet-dev/embedc/domain/entities"
	"github.com/reglet-dev/embedc/infrastructure/dynlib"
)

var (
	errUnsupported   = errors.New("unsupported native type")
	errNotInteger    = errors.New("not an integer")
	errNotNumber     = errors.New("not a number")
	errNotBool       = errors.New("not a boolean")
	errNotText       = errors.New("not text")
	errNotPointer    = errors.New("not a pointer")
	errNotSequence   = errors.New("not a sequence")
	errOverflow      = errors.New("value out of range")
	errNil           = errors.New("nil value")
	errEmptySequence = errors.New("cannot infer the element type of an empty sequence")
)

// arena owns the Go memory handed to native code for the duration of a call.
type arena struct {
	keep []any
}

// text encodes v as a NUL-terminated narrow or wide string and returns its
// address. nil encodes as NULL.
func (a *arena) text(v any, tag entities.TypeTag) (uintptr, error) {
	var s string
	switch x := v.(type) {
	case nil:
		return 0, nil
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.String {
			return 0, errNotText
		}
		s = rv.String()
	}
	if tag == entities.TypeUString {
		keep, addr := dynlib.WideString(s)
		a.keep = append(a.keep, keep)
		return addr, nil
	}
	b := dynlib.CString(s)
	a.keep = append(a.keep, b)
	return dynlib.Addr(b), nil
}

func isText(v any) bool {
	switch v.(type) {
	case string, []byte:
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.IsValid() && rv.Kind() == reflect.String
}

// toNative coerces a host value into the Go type carrying tag.
func toNative(v any, tag entities.TypeTag, a *arena) (reflect.Value, error) {
	t := nativeType(tag)
	if t == nil {
		return reflect.Value{}, errUnsupported
	}
	if tag.Class() == entities.ClassText {
		addr, err := a.text(v, tag)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(addr), nil
	}

	out := reflect.New(t).Elem()
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		if tag.Class() == entities.ClassPointer {
			return out, nil
		}
		return reflect.Value{}, errNil
	}
	from := kindClass(rv.Kind())

	switch tag.Class() {
	case entities.ClassSigned:
		switch from {
		case entities.ClassSigned:
			n := rv.Int()
			if out.OverflowInt(n) {
				return reflect.Value{}, errOverflow
			}
			out.SetInt(n)
		case entities.ClassUnsigned:
			u := rv.Uint()
			if u > math.MaxInt64 || out.OverflowInt(int64(u)) {
				return reflect.Value{}, errOverflow
			}
			out.SetInt(int64(u))
		case entities.ClassBool:
			out.SetInt(boolInt(rv.Bool()))
		default:
			return reflect.Value{}, errNotInteger
		}
	case entities.ClassUnsigned:
		switch from {
		case entities.ClassSigned:
			n := rv.Int()
			if n < 0 || out.OverflowUint(uint64(n)) {
				return reflect.Value{}, errOverflow
			}
			out.SetUint(uint64(n))
		case entities.ClassUnsigned:
			u := rv.Uint()
			if out.OverflowUint(u) {
				return reflect.Value{}, errOverflow
			}
			out.SetUint(u)
		case entities.ClassBool:
			out.SetUint(uint64(boolInt(rv.Bool())))
		default:
			return reflect.Value{}, errNotInteger
		}
	case entities.ClassFloat:
		switch from {
		case entities.ClassSigned:
			out.SetFloat(float64(rv.Int()))
		case entities.ClassUnsigned:
			out.SetFloat(float64(rv.Uint()))
		case entities.ClassFloat:
			f := rv.Float()
			if out.OverflowFloat(f) {
				return reflect.Value{}, errOverflow
			}
			out.SetFloat(f)
		default:
			return reflect.Value{}, errNotNumber
		}
	case entities.ClassBool:
		switch from {
		case entities.ClassBool:
			out.SetBool(rv.Bool())
		case entities.ClassSigned:
			out.SetBool(rv.Int() != 0)
		case entities.ClassUnsigned:
			out.SetBool(rv.Uint() != 0)
		default:
			return reflect.Value{}, errNotBool
		}
	case entities.ClassPointer:
		switch rv.Kind() {
		case reflect.UnsafePointer:
			out.SetUint(uint64(rv.Pointer()))
		case reflect.Uintptr:
			out.SetUint(rv.Uint())
		default:
			switch from {
			case entities.ClassSigned:
				out.SetUint(uint64(rv.Int()))
			case entities.ClassUnsigned:
				out.SetUint(rv.Uint())
			default:
				return reflect.Value{}, errNotPointer
			}
		}
	default:
		return reflect.Value{}, errUnsupported
	}
	return out, nil
}

// fromNative turns a native value into its host representation: int, uint,
// float64, bool, string or uintptr.
func fromNative(v reflect.Value, tag entities.TypeTag) any {
	switch tag.Class() {
	case entities.ClassSigned:
		return int(v.Int())
	case entities.ClassUnsigned:
		return uint(v.Uint())
	case entities.ClassFloat:
		return v.Float()
	case entities.ClassBool:
		return v.Bool()
	case entities.ClassText:
		return decodeText(uintptr(v.Uint()), tag)
	case entities.ClassPointer:
		return uintptr(v.Uint())
	default:
		return nil
	}
}

func decodeText(addr uintptr, tag entities.TypeTag) string {
	if tag == entities.TypeUString {
		return dynlib.GoWideString(addr)
	}
	return dynlib.GoString(addr)
}

// restore converts a written-back host value to the Go type of the value it
// replaces when both belong to the same class, so an int32 stays an int32
// and []byte text stays []byte.
func restore(orig, host any) any {
	if orig == nil || host == nil {
		return host
	}
	ot := reflect.TypeOf(orig)
	hv := reflect.ValueOf(host)
	if hv.Type() == ot {
		return host
	}
	if s, ok := host.(string); ok && ot.Kind() == reflect.Slice && ot.Elem().Kind() == reflect.Uint8 {
		return reflect.ValueOf([]byte(s)).Convert(ot).Interface()
	}
	oc, hc := kindClass(ot.Kind()), kindClass(hv.Kind())
	if oc == hc || (isInteger(oc) && isInteger(hc)) {
		if hv.Type().ConvertibleTo(ot) {
			return hv.Convert(ot).Interface()
		}
	}
	return host
}

// adapt converts a host value for a Go parameter or element of type t.
func adapt(host any, t reflect.Type) (reflect.Value, bool) {
	if host == nil {
		return reflect.Zero(t), true
	}
	hv := reflect.ValueOf(host)
	if hv.Type().AssignableTo(t) {
		return hv, true
	}
	if s, ok := host.(string); ok && t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return reflect.ValueOf([]byte(s)).Convert(t), true
	}
	oc, hc := kindClass(t.Kind()), kindClass(hv.Kind())
	if oc == hc || (isNumeric(oc) && isNumeric(hc)) {
		if hv.Type().ConvertibleTo(t) {
			return hv.Convert(t), true
		}
	}
	return reflect.Zero(t), false
}

func isInteger(c entities.TypeClass) bool {
	return c == entities.ClassSigned || c == entities.ClassUnsigned
}

func isNumeric(c entities.TypeClass) bool {
	return isInteger(c) || c == entities.ClassFloat
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
