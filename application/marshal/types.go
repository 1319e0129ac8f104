package marshal

import (
	"reflect"
	"unsafe"

	"github.com/reglet-dev/embedc/domain/entities"
)

var (
	typeBool    = reflect.TypeOf(false)
	typeUintptr = reflect.TypeOf(uintptr(0))
	typePointer = reflect.TypeOf(unsafe.Pointer(nil))
)

var signedTypes = map[uintptr]reflect.Type{
	1: reflect.TypeOf(int8(0)),
	2: reflect.TypeOf(int16(0)),
	4: reflect.TypeOf(int32(0)),
	8: reflect.TypeOf(int64(0)),
}

var unsignedTypes = map[uintptr]reflect.Type{
	1: reflect.TypeOf(uint8(0)),
	2: reflect.TypeOf(uint16(0)),
	4: reflect.TypeOf(uint32(0)),
	8: reflect.TypeOf(uint64(0)),
}

// nativeType is the Go type carrying tag across the call boundary. Text and
// pointer tags travel as addresses. Void yields nil.
func nativeType(tag entities.TypeTag) reflect.Type {
	switch tag.Class() {
	case entities.ClassBool:
		return typeBool
	case entities.ClassSigned:
		return signedTypes[tag.Size()]
	case entities.ClassUnsigned:
		if tag == entities.TypeSizeT {
			return typeUintptr
		}
		return unsignedTypes[tag.Size()]
	case entities.ClassFloat:
		if tag.Size() == 4 {
			return reflect.TypeOf(float32(0))
		}
		return reflect.TypeOf(float64(0))
	case entities.ClassText, entities.ClassPointer:
		return typeUintptr
	default:
		return nil
	}
}

// kindClass maps a Go kind onto the value class it represents.
func kindClass(k reflect.Kind) entities.TypeClass {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return entities.ClassSigned
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return entities.ClassUnsigned
	case reflect.Float32, reflect.Float64:
		return entities.ClassFloat
	case reflect.Bool:
		return entities.ClassBool
	case reflect.String:
		return entities.ClassText
	case reflect.Uintptr, reflect.UnsafePointer:
		return entities.ClassPointer
	default:
		return entities.ClassNone
	}
}

// inferTag picks the declared type for a Go value of kind k.
func inferTag(t reflect.Type) (string, bool) {
	switch t.Kind() {
	case reflect.Int, reflect.Int64:
		return "longlong", true
	case reflect.Int32:
		return "int", true
	case reflect.Int16:
		return "short", true
	case reflect.Int8:
		return "int8", true
	case reflect.Uint, reflect.Uint64:
		return "ulonglong", true
	case reflect.Uint32:
		return "uint", true
	case reflect.Uint16:
		return "ushort", true
	case reflect.Uint8:
		return "ubyte", true
	case reflect.Float64:
		return "double", true
	case reflect.Float32:
		return "float", true
	case reflect.String:
		return "string", true
	case reflect.Bool:
		return "bool", true
	case reflect.Uintptr, reflect.UnsafePointer:
		return "void*", true
	default:
		return "", false
	}
}
