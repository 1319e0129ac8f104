// Package codegen renders code units into C++ translation units whose
// functions are exported with C linkage.
package codegen

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/reglet-dev/embedc/domain/entities"
)

// Params renders the parameter list of an inline unit. Reference bindings
// become C++ references; arrays become plain pointers.
func Params(unit *entities.CodeUnit) string {
	params := make([]string, len(unit.Arguments))
	for i, arg := range unit.Arguments {
		name := arg.Name
		if arg.IsArray() {
			name = arg.BindingName()
		}
		params[i] = entities.CType(arg.Type, false) + " " + name
	}
	return strings.Join(params, ",")
}

// Signature renders the primary function declaration of an inline unit.
func Signature(unit *entities.CodeUnit) string {
	return fmt.Sprintf("%s %s(%s)", entities.CType(unit.ReturnType, false), unit.FuncName, Params(unit))
}

// Render writes one unit: its preamble followed by an extern "C" block.
// Inline units are wrapped in the primary function and a zero-argument
// cleanup function holding the POST statements; other units contribute
// their source as-is.
func Render(w io.Writer, unit *entities.CodeUnit) error {
	bw := bufio.NewWriter(w)

	bw.WriteString(strings.Join(unit.Preamble, "\n"))
	bw.WriteString("\nextern \"C\" {\n")
	if unit.Inline {
		bw.WriteString(Signature(unit) + " {")
	}
	bw.WriteString(strings.Join(unit.Source, "\n"))
	if unit.Inline {
		if ret := strings.TrimSpace(unit.ReturnType); ret != "void" {
			bw.WriteString("\nreturn {};")
		}
		bw.WriteString("\n}\n")
		fmt.Fprintf(bw, "void %s() {\n", unit.PostName())
		bw.WriteString(strings.Join(unit.Post, "\n"))
		bw.WriteString("\n}\n")
	}
	bw.WriteString("\n}  //extern C\n\n")

	return bw.Flush()
}

// RenderFile writes several units into one translation unit, headed by a
// comment naming the owning source.
func RenderFile(w io.Writer, source string, units []*entities.CodeUnit) error {
	if _, err := fmt.Fprintf(w, "//%s\n", source); err != nil {
		return err
	}
	for _, unit := range units {
		if err := Render(w, unit); err != nil {
			return fmt.Errorf("render %s: %w", unit.FuncName, err)
		}
	}
	return nil
}

// RenderString renders a unit to a string.
func RenderString(unit *entities.CodeUnit) string {
	var sb strings.Builder
	_ = Render(&sb, unit)
	return sb.String()
}
