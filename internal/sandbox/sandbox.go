// Package sandbox runs a single command in an isolated environment with a
// memory cap, network disabled, and bind-mounted working directories,
// returning combined output, exit code, an OOM flag, and wall time
// (spec.md §4.B). Two back-ends implement the Sandbox interface: Local
// (host shell, killed when ctx is done) and Container (docker client).
package sandbox

import (
	"context"
	"time"
)

// Mount is one bind mount from the host into the sandbox.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// RunSpec describes one sandboxed invocation.
type RunSpec struct {
	// Command is the fully rendered shell command to execute (already
	// wrapped with the meter and, where applicable, a ulimit -v prefix).
	// No timeout(1) wrapper is added; the time limit is ctx's deadline.
	Command string
	// Image selects the container to run Command in; ignored by the local
	// back-end.
	Image string
	// WorkDir is the host working directory. The local back-end runs
	// Command there; the container back-end bind-mounts it at /execution
	// and runs Command in /execution.
	WorkDir string
	// MemoryLimit is a spec.md §6 memory-size string ("256m"); empty means
	// no cap.
	MemoryLimit string
	// Mounts are bind mounts into the sandbox; the local back-end ignores
	// these (it already runs with WorkDir as cwd on the host filesystem).
	Mounts []Mount
	// NetworkDisabled, when true, disables networking in the sandbox.
	NetworkDisabled bool
}

// RunResult is what a sandbox invocation produced. The Judging pipeline,
// not the sandbox, decides verdicts from these facts (spec.md §4.D).
type RunResult struct {
	// Output is stdout and stderr combined: interleaved in the order the
	// process wrote them for the local back-end, stdout followed by stderr
	// for the container back-end.
	Output string
	// ExitCode is the process/container exit status.
	ExitCode int
	// OOMKilled is true when the sandbox provider reports the process was
	// killed for exceeding its memory cap.
	OOMKilled bool
	// WallTime is the sandbox's own measurement of elapsed time, taken on
	// the host with time.Now around the run; for the container back-end it
	// stands in for the meter's %e field, which container mode omits. The
	// container's own StartedAt/FinishedAt timestamps are not read.
	WallTime time.Duration
}

// Sandbox runs one command to completion or until ctx is done. Cancelling
// ctx is how a caller aborts an in-flight run: both back-ends treat
// cancellation as "terminate now and report TimeLimitExceeded", realizing
// the §9 "Stop() on the running sandbox handle" redesign idiomatically —
// in Go that handle is the context.
type Sandbox interface {
	Run(ctx context.Context, spec RunSpec) (RunResult, error)
}
