// Package errors provides the typed failures raised by the embedding pipeline.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/reglet-dev/embedc/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// ErrNotFound is wrapped by environment lookups of unbound names.
var ErrNotFound = stdErrors.New("not found")

// DetailedError is implemented by error types that can describe themselves
// as a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// ParseError reports a malformed directive in a fragment.
type ParseError struct {
	File   string
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	loc := ""
	if e.File != "" {
		loc = fmt.Sprintf("%s:%d: ", e.File, e.Line)
	} else if e.Line > 0 {
		loc = fmt.Sprintf("line %d: ", e.Line)
	}
	return fmt.Sprintf("%s%s '%s'", loc, e.Reason, strings.TrimSpace(e.Text))
}

// ToErrorDetail implements DetailedError.
func (e *ParseError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "parse", Code: "directive"}
}

// CompileError reports a toolchain run that exited non-zero.
type CompileError struct {
	File      string
	Toolchain string
	Output    string
	Args      []string
	ExitCode  int
	IsTimeout bool
}

func (e *CompileError) Error() string {
	if e.IsTimeout {
		return fmt.Sprintf("compiling %s with %s timed out", e.File, e.Toolchain)
	}
	msg := fmt.Sprintf("compiling %s with %s failed with exit code %d", e.File, e.Toolchain, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ":\n" + out
	}
	return msg
}

// ToErrorDetail implements DetailedError.
func (e *CompileError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message:   e.Error(),
		Type:      "compile",
		Code:      fmt.Sprintf("exit_%d", e.ExitCode),
		IsTimeout: e.IsTimeout,
		Details: map[string]any{
			"file":      e.File,
			"toolchain": e.Toolchain,
			"args":      e.Args,
		},
	}
}

// ToolchainNotFoundError reports that no candidate compiler answered a version probe.
type ToolchainNotFoundError struct {
	Output     string
	Candidates []string
}

func (e *ToolchainNotFoundError) Error() string {
	return fmt.Sprintf("C compiler not found or configured (tried %s)", strings.Join(e.Candidates, ", "))
}

// ToErrorDetail implements DetailedError.
func (e *ToolchainNotFoundError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "toolchain", Code: "not_found", IsNotFound: true}
}

// ConversionError reports a host value that cannot become its declared native type.
type ConversionError struct {
	Err      error
	Value    any
	Target   string // native representation
	Declared string // semantic type from the fragment
	Name     string
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("problem converting '%v' to '%s' '%s'", e.Value, e.Target, e.Declared)
	if e.Name != "" {
		msg = fmt.Sprintf("%s: %s", e.Name, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConversionError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "conversion", Code: e.Declared}
}

// EnvironmentError reports a binding environment that cannot serve a read or write-back.
type EnvironmentError struct {
	Err  error
	Op   string // "lookup", "store", "range"
	Name string
}

func (e *EnvironmentError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("binding environment %s of %q failed: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("binding environment %s failed: %v", e.Op, e.Err)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *EnvironmentError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message:    e.Error(),
		Type:       "environment",
		Code:       e.Op,
		IsNotFound: stdErrors.Is(e.Err, ErrNotFound),
	}
}

// LoadError reports a dynamic library that could not be opened.
type LoadError struct {
	Err  error
	Path string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s failed: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *LoadError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "load", Code: "open"}
}

// SymbolError reports a missing exported symbol.
type SymbolError struct {
	Err    error
	Symbol string
	Path   string
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("symbol %s not found in %s: %v", e.Symbol, e.Path, e.Err)
}

func (e *SymbolError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *SymbolError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "load", Code: "symbol", IsNotFound: true}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}

// ExecError reports a command that could not be started.
type ExecError struct {
	Err     error
	Command string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("running %q failed: %v", e.Command, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ExecError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "exec", Code: "start"}
}
