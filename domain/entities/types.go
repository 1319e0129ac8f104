package entities

import (
	"runtime"
	"strings"
	"unsafe"
)

// TypeTag identifies one native type from the closed set the marshalling layer
// can exchange with the host.
type TypeTag int

const (
	TypeUnknown TypeTag = iota
	TypeVoid
	TypeBool
	TypeChar
	TypeByte
	TypeUByte
	TypeShort
	TypeUShort
	TypeInt
	TypeUInt
	TypeLong
	TypeULong
	TypeLongLong
	TypeULongLong
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUInt8
	TypeUInt16
	TypeUInt32
	TypeUInt64
	TypeSizeT
	TypeFloat
	TypeDouble
	TypeString
	TypeUString
	TypePointer
)

// TypeClass groups tags by how their values are represented on the host side.
type TypeClass int

const (
	ClassNone TypeClass = iota
	ClassSigned
	ClassUnsigned
	ClassFloat
	ClassBool
	ClassText
	ClassPointer
)

type typeInfo struct {
	tag   TypeTag
	name  string // canonical semantic name
	ctype string
	class TypeClass
	size  uintptr
}

var (
	longSize    uintptr = 8
	pointerSize         = unsafe.Sizeof(uintptr(0))
)

func init() {
	// LLP64: long stays 32 bits on Windows.
	if runtime.GOOS == "windows" || pointerSize == 4 {
		longSize = 4
	}
	for i := range typeTable {
		switch typeTable[i].tag {
		case TypeLong, TypeULong:
			typeTable[i].size = longSize
		case TypeSizeT, TypePointer, TypeString, TypeUString:
			typeTable[i].size = pointerSize
		}
	}
}

var typeTable = []typeInfo{
	{TypeVoid, "void", "void", ClassNone, 0},
	{TypeBool, "bool", "bool", ClassBool, 1},
	{TypeChar, "char", "char", ClassSigned, 1},
	{TypeByte, "byte", "signed char", ClassSigned, 1},
	{TypeUByte, "ubyte", "unsigned char", ClassUnsigned, 1},
	{TypeShort, "short", "short", ClassSigned, 2},
	{TypeUShort, "ushort", "unsigned short", ClassUnsigned, 2},
	{TypeInt, "int", "int", ClassSigned, 4},
	{TypeUInt, "uint", "unsigned int", ClassUnsigned, 4},
	{TypeLong, "long", "long", ClassSigned, 8},
	{TypeULong, "ulong", "unsigned long", ClassUnsigned, 8},
	{TypeLongLong, "longlong", "long long", ClassSigned, 8},
	{TypeULongLong, "ulonglong", "unsigned long long", ClassUnsigned, 8},
	{TypeInt8, "int8", "int8_t", ClassSigned, 1},
	{TypeInt16, "int16", "int16_t", ClassSigned, 2},
	{TypeInt32, "int32", "int32_t", ClassSigned, 4},
	{TypeInt64, "int64", "int64_t", ClassSigned, 8},
	{TypeUInt8, "uint8", "uint8_t", ClassUnsigned, 1},
	{TypeUInt16, "uint16", "uint16_t", ClassUnsigned, 2},
	{TypeUInt32, "uint32", "uint32_t", ClassUnsigned, 4},
	{TypeUInt64, "uint64", "uint64_t", ClassUnsigned, 8},
	{TypeSizeT, "size_t", "size_t", ClassUnsigned, 8},
	{TypeFloat, "float", "float", ClassFloat, 4},
	{TypeDouble, "double", "double", ClassFloat, 8},
	{TypeString, "string", "const char*", ClassText, 8},
	{TypeUString, "ustring", "const wchar_t*", ClassText, 8},
	{TypePointer, "void*", "void*", ClassPointer, 8},
}

// typeAliases maps accepted spellings onto canonical names.
var typeAliases = map[string]string{
	"str":     "string",
	"ustr":    "ustring",
	"voidp":   "void*",
	"float32": "float",
	"float64": "double",
	"uchar":   "ubyte",
}

func lookupType(name string) (typeInfo, bool) {
	if alias, ok := typeAliases[name]; ok {
		name = alias
	}
	for _, info := range typeTable {
		if info.name == name {
			return info, true
		}
	}
	return typeInfo{}, false
}

func infoOf(tag TypeTag) (typeInfo, bool) {
	for _, info := range typeTable {
		if info.tag == tag {
			return info, true
		}
	}
	return typeInfo{}, false
}

// String returns the canonical semantic name of the tag.
func (t TypeTag) String() string {
	if info, ok := infoOf(t); ok {
		return info.name
	}
	return "unknown"
}

// Class reports how values of the tag are represented on the host side.
func (t TypeTag) Class() TypeClass {
	info, _ := infoOf(t)
	return info.class
}

// Size is the native size of the tag in bytes on the running platform.
func (t TypeTag) Size() uintptr {
	info, _ := infoOf(t)
	return info.size
}

// CType is the C spelling of the tag.
func (t TypeTag) CType() string {
	info, _ := infoOf(t)
	return info.ctype
}

// TypeSpec is a parsed declared type such as "int", "double[]" or "ustring".
type TypeSpec struct {
	Raw   string
	Tag   TypeTag
	Array bool
}

// ParseType resolves a semantic type name. Unknown names yield TypeUnknown;
// names ending in '*' that are not in the table are treated as opaque pointers.
func ParseType(raw string) TypeSpec {
	spec := TypeSpec{Raw: raw}
	name := strings.TrimSpace(raw)
	if strings.HasSuffix(name, "[]") {
		spec.Array = true
		name = strings.TrimSpace(strings.TrimSuffix(name, "[]"))
	}
	if info, ok := lookupType(name); ok {
		spec.Tag = info.tag
		return spec
	}
	if strings.HasSuffix(name, "*") {
		spec.Tag = TypePointer
	}
	return spec
}

// Elem returns the spec of one array element.
func (s TypeSpec) Elem() TypeSpec {
	return TypeSpec{Raw: strings.TrimSuffix(s.Raw, "[]"), Tag: s.Tag}
}

// Known reports whether the spec maps onto a marshallable tag.
func (s TypeSpec) Known() bool {
	return s.Tag != TypeUnknown
}

// CType renders a declared semantic type as a C parameter type.
func CType(raw string, constant bool) string {
	name := strings.TrimSpace(raw)
	if strings.HasSuffix(name, "[]") {
		name = strings.TrimSpace(strings.TrimSuffix(name, "[]")) + "*"
	}
	var typ string
	switch name {
	case "string", "str":
		typ = "const char*"
	case "string*", "str*":
		typ = "const char**"
	case "ustring", "ustr":
		typ = "const wchar_t*"
	case "ustring*", "ustr*":
		typ = "const wchar_t**"
	case "voidp", "void*":
		typ = "void*"
	default:
		typ = name
		base := strings.TrimRight(name, "*")
		if info, ok := lookupType(base); ok && info.class != ClassText && info.class != ClassPointer {
			typ = info.ctype + name[len(base):]
		}
	}
	if constant {
		typ = "const " + typ
	}
	return typ
}
