package embedc

import (
	"github.com/reglet-dev/embedc/domain/entities"
	domainerrors "github.com/reglet-dev/embedc/domain/errors"
	"github.com/reglet-dev/embedc/domain/ports"
	"github.com/reglet-dev/embedc/env"
)

// Environment is the variable scope a fragment reads from and writes back to.
type Environment = ports.Environment

// Library is a loaded native library.
type Library = ports.Library

// Config controls toolchain selection, build flags and artifact placement.
type Config = entities.Config

// Tuple is an immutable sequence; arrays imported from it are never written back.
type Tuple = env.Tuple

// ErrorDetail is re-exported from entities for callers reporting failures.
type ErrorDetail = entities.ErrorDetail

// NewEnvironment creates an environment sharing globals, or a private
// global scope when globals is nil.
func NewEnvironment(globals *env.Scope) *env.Environment {
	return env.New(globals)
}

// ToErrorDetail converts err into a structured ErrorDetail.
func ToErrorDetail(err error) *ErrorDetail {
	return domainerrors.ToErrorDetail(err)
}
