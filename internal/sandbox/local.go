package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
	"time"

	"github.com/judgyse/judgyse-go/internal/judgeerr"
)

// Local runs the command directly on the host under a new process group, so
// that a timeout can kill the whole tree rather than just the shell. It is
// the back-end used when RUN_IN_DOCKER is unset (spec.md §6).
type Local struct{}

// Run spawns /bin/sh -c spec.Command in spec.WorkDir. Memory containment and
// metering are already baked into spec.Command by the caller (ulimit -v and
// the time(1) wrapper); Local only owns process lifecycle and the timeout.
func (Local) Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", spec.Command)
	cmd.Dir = spec.WorkDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// CommandContext kills only the direct child on cancellation; Cancel
	// is overridden here to kill the whole process group instead, since the
	// judged program may itself fork.
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	started := time.Now()
	err := cmd.Run()
	elapsed := time.Since(started)

	result := RunResult{
		Output:   combined.String(),
		WallTime: elapsed,
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled):
		return result, judgeerr.TimeLimitExceeded{Detail: "wall clock deadline exceeded"}
	case err == nil:
		result.ExitCode = 0
		return result, nil
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	default:
		return result, judgeerr.SystemError{Detail: err.Error()}
	}
}
