package entities

import "strings"

const (
	// RefMarker prefixes a binding name passed by reference.
	RefMarker = "&"
	// ArrayMarker suffixes a declared type passed as a fixed-length array.
	ArrayMarker = "[]"
	// FuncPtrPrefix names the opaque argument generated for a DEF directive.
	FuncPtrPrefix = "func_ptr_"
	// PostSuffix names the cleanup function generated for inline units.
	PostSuffix = "_post"
	// DefaultReturnType is used when a fragment has no RETURN directive.
	DefaultReturnType = "int"
)

// Argument is one (declared type, binding name) pair of a code unit.
// Keeping both halves in one value keeps them positionally aligned.
type Argument struct {
	Type string // e.g. "int", "double[]", "ustring"
	Name string // e.g. "x", "&total", "func_ptr_mult"
}

// BindingName is the environment name of the argument without markers.
func (a Argument) BindingName() string {
	return strings.TrimPrefix(a.Name, RefMarker)
}

// ByRef reports whether native mutations propagate back to the host.
func (a Argument) ByRef() bool {
	return strings.HasPrefix(a.Name, RefMarker)
}

// IsArray reports whether the argument is passed as a pointer to a buffer.
func (a Argument) IsArray() bool {
	return strings.HasSuffix(a.Type, ArrayMarker)
}

// IsFuncPtr reports whether the argument was generated by a DEF directive.
func (a Argument) IsFuncPtr() bool {
	return strings.HasPrefix(a.Name, FuncPtrPrefix)
}

// FuncPtr describes a host callable exposed to native code by DEF.
type FuncPtr struct {
	Name       string   // host callable name
	ReturnType string   // semantic return type
	ArgTypes   []string // semantic argument types
}

// Params returns the argument types, treating a lone "void" as none.
func (f FuncPtr) Params() []string {
	if len(f.ArgTypes) == 1 && f.ArgTypes[0] == "void" {
		return nil
	}
	return f.ArgTypes
}

// CodeUnit is the parsed form of one embedded fragment.
type CodeUnit struct {
	FuncName   string
	Arguments  []Argument
	Source     []string
	ReturnType string
	Preamble   []string
	Post       []string
	Toolchain  string
	ImportAll  bool
	Inline     bool

	// File and Line locate the fragment in the host source.
	File string
	Line int

	// Functions is keyed by the generated argument name (func_ptr_<name>).
	Functions map[string]FuncPtr
}

// Variables returns the binding names in argument order.
func (u *CodeUnit) Variables() []string {
	names := make([]string, len(u.Arguments))
	for i, arg := range u.Arguments {
		names[i] = arg.Name
	}
	return names
}

// Binds reports whether name is already bound, with or without a reference marker.
func (u *CodeUnit) Binds(name string) bool {
	for _, arg := range u.Arguments {
		if arg.Name == name || arg.BindingName() == name {
			return true
		}
	}
	return false
}

// AddArgument appends an argument to the unit.
func (u *CodeUnit) AddArgument(typ, name string) {
	u.Arguments = append(u.Arguments, Argument{Type: typ, Name: name})
}

// PostName is the symbol of the unit's cleanup function.
func (u *CodeUnit) PostName() string {
	return u.FuncName + PostSuffix
}

// Clone returns a copy whose argument list can be extended independently.
func (u *CodeUnit) Clone() *CodeUnit {
	c := *u
	c.Arguments = append([]Argument(nil), u.Arguments...)
	c.Source = append([]string(nil), u.Source...)
	c.Preamble = append([]string(nil), u.Preamble...)
	c.Post = append([]string(nil), u.Post...)
	if u.Functions != nil {
		c.Functions = make(map[string]FuncPtr, len(u.Functions))
		for k, v := range u.Functions {
			c.Functions[k] = v
		}
	}
	return &c
}
