package ports

import "github.com/reglet-dev/embedc/domain/entities"

// Environment is the caller's live variable scope, split into local and
// global scopes. It replaces any direct access to the host's execution state.
type Environment interface {
	// Get returns the value bound to name in scope.
	Get(scope entities.Scope, name string) (any, bool)

	// Set commits a new value for name in scope. The value must be visible
	// to the caller's subsequent reads.
	Set(scope entities.Scope, name string, value any) error

	// Names lists the names bound in scope in a stable order.
	Names(scope entities.Scope) []string
}
