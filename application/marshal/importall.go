package marshal

import (
	"reflect"
	"strings"

	"github.com/reglet-dev/embedc/domain/entities"
	domainerrors "github.com/reglet-dev/embedc/domain/errors"
	"github.com/reglet-dev/embedc/domain/ports"
)

// ImportAll appends an argument for every environment variable the unit does
// not bind yet, locals first. Names starting with "_" and values without a
// native representation are skipped. Sequences import as arrays, everything
// else by reference.
func ImportAll(unit *entities.CodeUnit, environment ports.Environment) error {
	for _, scope := range []entities.Scope{entities.ScopeLocal, entities.ScopeGlobal} {
		for _, name := range environment.Names(scope) {
			if strings.HasPrefix(name, "_") || unit.Binds(name) {
				continue
			}
			if scope == entities.ScopeGlobal {
				// Shadowed by a local that was skipped.
				if _, ok := environment.Get(entities.ScopeLocal, name); ok {
					continue
				}
			}
			value, _ := environment.Get(scope, name)
			typ, seq, err := Infer(value)
			if err != nil {
				return &domainerrors.ConversionError{
					Name:     name,
					Value:    value,
					Target:   "array",
					Declared: entities.ArrayMarker,
					Err:      err,
				}
			}
			switch {
			case typ == "":
			case seq:
				unit.AddArgument(typ+entities.ArrayMarker, name)
			default:
				unit.AddArgument(typ, entities.RefMarker+name)
			}
		}
	}
	return nil
}

// Infer returns the declared type for a Go value. seq reports a slice or
// array, in which case typ names the element type. An empty typ means the
// value has no native representation. Sequences of interface elements are
// typed by their first element, so an empty one cannot be inferred.
func Infer(value any) (typ string, seq bool, err error) {
	if value == nil {
		return "", false, nil
	}
	t := reflect.TypeOf(value)
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		typ, _ = inferTag(t)
		return typ, false, nil
	}

	elem := t.Elem()
	if elem.Kind() == reflect.Interface {
		rv := reflect.ValueOf(value)
		if rv.Len() == 0 {
			return "", true, errEmptySequence
		}
		first := rv.Index(0).Elem()
		if !first.IsValid() {
			return "", false, nil
		}
		elem = first.Type()
	}
	typ, ok := inferTag(elem)
	if !ok {
		return "", false, nil
	}
	return typ, true, nil
}
