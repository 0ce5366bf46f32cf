// Package engine drives one external simulation program through files and a
// command invocation. Adapters translate between a program's native delimited
// output/input and the canonical point set model; the orchestrator never sees
// engine-specific formats.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/cosim/internal/pointset"
)

var (
	ErrMissingStep = errors.New("no engine output for step")
	ErrTimeout     = errors.New("engine invocation timed out")
	ErrNoCommand   = errors.New("engine has no command configured")
)

// Adapter is the capability set of one external engine. Implementations own
// their point set history; the orchestrator is agnostic to which variant
// sits on either side of a transfer.
type Adapter interface {
	// Ingest parses the engine's native output for a step into a point set.
	Ingest(ctx context.Context, step string) (*pointset.Set, error)
	// Prepare materializes the engine's native input for a step from the
	// canonical field values, without mutating the set.
	Prepare(ctx context.Context, step string, set *pointset.Set) error
	// Invoke runs the external program to completion for a step. Failures
	// are fatal to the run; a half-completed physical simulation cannot be
	// resumed safely.
	Invoke(ctx context.Context, step string) error
}

// ParseError reports malformed engine output with its location.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// ExecError reports an external engine process that terminated abnormally.
type ExecError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %v", e.Command, e.ExitCode, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
