// Package judgeerr mirrors the exception hierarchy of the original Python
// judge (exception.py): a small set of sentinel error types that the
// pipeline and session layer classify on with errors.As, instead of string
// matching.
package judgeerr

import "fmt"

// Aborted is raised at a per-testcase iteration boundary once the session's
// abort flag has been observed set.
type Aborted struct{}

func (Aborted) Error() string { return "judging aborted" }

// MemoryLimitExceeded describes a run over its memory cap. The pipeline does
// not raise it: it sets a per-testcase MEMORY_LIMIT_EXCEEDED verdict directly
// from the OOM flag or the peak-memory reading.
type MemoryLimitExceeded struct{ Detail string }

func (e MemoryLimitExceeded) Error() string {
	if e.Detail == "" {
		return "memory limit exceeded"
	}
	return "memory limit exceeded: " + e.Detail
}

// TimeLimitExceeded is caught inside the pipeline loop the same way.
type TimeLimitExceeded struct{ Detail string }

func (e TimeLimitExceeded) Error() string {
	if e.Detail == "" {
		return "time limit exceeded"
	}
	return "time limit exceeded: " + e.Detail
}

// RuntimeError marks a testcase run that failed at runtime without a
// non-zero exit code (e.g. a "file" test that produced no output file); the
// pipeline reports it as that testcase's verdict and keeps going.
type RuntimeError struct{ Detail string }

func (e RuntimeError) Error() string { return "runtime error: " + e.Detail }

// CompileError is terminal: no per-testcase events follow it.
type CompileError struct{ Detail string }

func (e CompileError) Error() string { return "compile error: " + e.Detail }

// SystemError is terminal and represents a sandbox-provider API fault
// (docker daemon unreachable, container create/attach failure, ...).
type SystemError struct{ Detail string }

func (e SystemError) Error() string { return "system error: " + e.Detail }

// UnknownError is terminal and is the catch-all for anything the pipeline
// did not anticipate; it must never be allowed to take the session down
// silently.
type UnknownError struct{ Detail string }

func (e UnknownError) Error() string { return "unknown error: " + e.Detail }

// JudgerError means a custom judger script produced a malformed verdict
// (missing status/point). Classified as SystemError on the wire.
type JudgerError struct{ Detail string }

func (e JudgerError) Error() string { return "judger error: " + e.Detail }

// --- User-input errors (session/field validation, spec.md §7) ---

// MissingField is raised when command.init's payload omits a strict field
// of JudgeSession.
type MissingField struct{ Field string }

func (e MissingField) Error() string { return fmt.Sprintf("missing field: %s", e.Field) }

// InvalidField is raised when a field is present but fails shape/type
// validation.
type InvalidField struct {
	Field  string
	Reason string
}

func (e InvalidField) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// InvalidTestcaseIndex is raised by command.testcase when the index falls
// outside the session's test_range.
type InvalidTestcaseIndex struct{ Index int }

func (e InvalidTestcaseIndex) Error() string {
	return fmt.Sprintf("invalid testcase index: %d", e.Index)
}

// CommandNotFound is raised for any inbound command name the session state
// machine does not recognize.
type CommandNotFound struct{ Command string }

func (e CommandNotFound) Error() string { return fmt.Sprintf("command not found: %s", e.Command) }
