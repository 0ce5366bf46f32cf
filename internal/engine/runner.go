package engine

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Runner invokes the external program in a step working directory and blocks
// until it terminates. There is no timeout by default; physical simulations
// may run arbitrarily long.
type Runner struct {
	Command string
	Args    []string
	Timeout time.Duration // 0 means no timeout
}

func (r *Runner) Run(ctx context.Context, dir string) error {
	if r.Command == "" {
		return ErrNoCommand
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Command, r.Args...)
	cmd.Dir = dir

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s after %s: %w", r.Command, r.Timeout, ErrTimeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExecError{Command: r.Command, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return &ExecError{Command: r.Command, ExitCode: -1, Err: err}
	}
	return nil
}
