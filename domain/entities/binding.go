package entities

// PassMode is how a binding crosses into native code.
type PassMode int

const (
	PassValue PassMode = iota
	PassReference
	PassArray
	PassFuncPtr
)

func (m PassMode) String() string {
	switch m {
	case PassReference:
		return "reference"
	case PassArray:
		return "array"
	case PassFuncPtr:
		return "function-pointer"
	default:
		return "value"
	}
}

// Scope is the origin scope of a binding in the host environment.
type Scope int

const (
	ScopeLocal Scope = iota
	ScopeGlobal
)

func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "local"
}

// Binding is one named value exchanged between host and native code.
type Binding struct {
	Name  string
	Type  TypeSpec
	Mode  PassMode
	Scope Scope
}

// NewBinding derives the binding for a code unit argument. The scope is
// filled in when the value is resolved.
func NewBinding(arg Argument) Binding {
	b := Binding{Name: arg.BindingName(), Type: ParseType(arg.Type)}
	switch {
	case arg.IsFuncPtr():
		b.Mode = PassFuncPtr
	case b.Type.Array:
		b.Mode = PassArray
	case arg.ByRef():
		b.Mode = PassReference
	default:
		b.Mode = PassValue
	}
	return b
}
