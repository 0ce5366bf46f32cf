package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerSuccess(t *testing.T) {
	r := &Runner{Command: "true"}
	assert.NoError(t, r.Run(context.Background(), t.TempDir()))
}

func TestRunnerExitCode(t *testing.T) {
	r := &Runner{Command: "false"}
	err := r.Run(context.Background(), t.TempDir())

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 1, execErr.ExitCode)
}

func TestRunnerCommandNotFound(t *testing.T) {
	r := &Runner{Command: "definitely-not-a-real-binary"}
	err := r.Run(context.Background(), t.TempDir())

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, -1, execErr.ExitCode)
}

func TestRunnerTimeout(t *testing.T) {
	r := &Runner{Command: "sleep", Args: []string{"5"}, Timeout: 50 * time.Millisecond}
	err := r.Run(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRunnerNoCommand(t *testing.T) {
	r := &Runner{}
	assert.ErrorIs(t, r.Run(context.Background(), t.TempDir()), ErrNoCommand)
}

func TestRunnerRunsInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{Command: "touch", Args: []string{"marker"}}
	require.NoError(t, r.Run(context.Background(), dir))
	assert.FileExists(t, dir+"/marker")
}
