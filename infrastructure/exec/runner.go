// Package exec runs external commands on the host with combined output capture.
package exec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	domainerrors "github.com/reglet-dev/embedc/domain/errors"
	"github.com/reglet-dev/embedc/domain/ports"
)

// runnerConfig holds the configuration for command execution.
type runnerConfig struct {
	timeout time.Duration
}

func defaultRunnerConfig() runnerConfig {
	return runnerConfig{
		timeout: 2 * time.Minute,
	}
}

// RunnerOption is a functional option for configuring the Runner.
type RunnerOption func(*runnerConfig)

// WithTimeout sets the default execution timeout. Requests carrying their own
// timeout override it. A zero or negative duration is ignored.
func WithTimeout(d time.Duration) RunnerOption {
	return func(c *runnerConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Runner implements ports.CommandRunner with os/exec.
type Runner struct {
	config runnerConfig
}

var _ ports.CommandRunner = (*Runner)(nil)

// NewRunner creates a Runner with the given options.
func NewRunner(opts ...RunnerOption) *Runner {
	cfg := defaultRunnerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Runner{config: cfg}
}

// Run executes req. Exit codes and timeouts are reported in the result; an
// error is returned only when the command cannot be started.
func (r *Runner) Run(ctx context.Context, req ports.CommandRequest) (*ports.CommandResult, error) {
	if req.Command == "" {
		return nil, &domainerrors.ExecError{Command: req.Command, Err: errors.New("command is required")}
	}

	timeout := r.config.timeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: running the configured toolchain is the purpose of this function
	cmd := exec.CommandContext(ctx, req.Command, req.Args...)
	if req.Dir != "" {
		cmd.Dir = req.Dir
	}
	if len(req.Env) > 0 {
		cmd.Env = req.Env
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()

	res := &ports.CommandResult{
		Output:     output.String(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err == nil {
		return res, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		res.IsTimeout = true
		res.ExitCode = -1
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	return nil, &domainerrors.ExecError{Command: req.Command, Err: err}
}
