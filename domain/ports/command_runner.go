package ports

import (
	"context"
)

// CommandRunner defines the interface for command execution.
// The toolchain driver runs compilers and version probes through it.
type CommandRunner interface {
	// Run executes a command and returns the result. A non-zero exit is
	// reported in the result, not as an error.
	Run(ctx context.Context, req CommandRequest) (*CommandResult, error)
}

// CommandRequest holds parameters for command execution.
type CommandRequest struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
	Timeout int // milliseconds
}

// CommandResult represents the result of a command execution.
type CommandResult struct {
	// Output interleaves stdout and stderr in arrival order.
	Output     string
	ExitCode   int
	DurationMs int64
	IsTimeout  bool
}
