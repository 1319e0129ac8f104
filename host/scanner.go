package host

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"github.com/reglet-dev/embedc/application/directive"
)

// Names of the calls whose literal fragments are compiled ahead of use.
const (
	InlinePrecompiledCall = "InlinePrecompiled"
	EmbedPrecompiledCall  = "EmbedPrecompiled"
)

// ScanFile returns the literal fragments passed to InlinePrecompiled and
// EmbedPrecompiled calls in the Go file at path, in source order. The first
// string literal argument of each call is the fragment; calls without one
// are ignored.
func ScanFile(path string) ([]directive.Fragment, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}

	var frags []directive.Fragment
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		var inline bool
		switch callName(call.Fun) {
		case InlinePrecompiledCall:
			inline = true
		case EmbedPrecompiledCall:
		default:
			return true
		}
		for _, arg := range call.Args {
			lit, ok := arg.(*ast.BasicLit)
			if !ok || lit.Kind != token.STRING {
				continue
			}
			text, err := strconv.Unquote(lit.Value)
			if err != nil {
				continue
			}
			frags = append(frags, directive.NewFragment(path, fset.Position(lit.Pos()).Line, text, inline))
			break
		}
		return true
	})
	return frags, nil
}

func callName(fun ast.Expr) string {
	switch f := fun.(type) {
	case *ast.Ident:
		return f.Name
	case *ast.SelectorExpr:
		return f.Sel.Name
	default:
		return ""
	}
}
