// Package pipeline drives compile → per-testcase execute+compare → verdict
// aggregation (spec.md §4.D), emitting a stream of Events over a channel so
// the caller's connection loop can forward them while a heartbeat and an
// abort signal keep running on the same scheduler.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/judgyse/judgyse-go/internal/catalogue"
	"github.com/judgyse/judgyse-go/internal/compare"
	"github.com/judgyse/judgyse-go/internal/config"
	"github.com/judgyse/judgyse-go/internal/judgeerr"
	"github.com/judgyse/judgyse-go/internal/memsize"
	"github.com/judgyse/judgyse-go/internal/meter"
	"github.com/judgyse/judgyse-go/internal/sandbox"
	"github.com/judgyse/judgyse-go/internal/session"
	"github.com/judgyse/judgyse-go/internal/status"
)

// Position identifies which event this is in the stream: "compiler",
// "overall", or a zero-based testcase index.
type Position struct {
	Testcase   int
	IsOverall  bool
	IsCompiler bool
}

func CompilerPosition() Position      { return Position{IsCompiler: true} }
func OverallPosition() Position       { return Position{IsOverall: true} }
func TestcasePosition(i int) Position { return Position{Testcase: i} }

// Event is one entry of the judge event stream.
type Event struct {
	Position Position
	Status   status.Code
	Time     float64
	Memory   [2]float64 // average, peak, MiB
	Point    float64
	Feedback string
	Message  string // compiler warn text
}

// Paths is where a session's artifacts live on disk (spec.md §3).
type Paths struct {
	ExecutionDir string
	TestcasesDir string
}

func (p Paths) testcaseDir(i int) string { return filepath.Join(p.TestcasesDir, fmt.Sprint(i)) }

// Deps bundles the Judge orchestrator's collaborators.
type Deps struct {
	Catalogue *catalogue.Catalogue
	Box       sandbox.Sandbox
	Paths     Paths
}

// Judge runs one session to completion, sending Events on the returned
// channel and closing it when done. Cancelling ctx is how the caller
// aborts a running judge: the next per-testcase iteration boundary (or an
// in-flight sandbox call, which also observes ctx) raises Aborted instead
// of continuing (spec.md §5).
func Judge(ctx context.Context, deps Deps, s *session.JudgeSession) (<-chan Event, <-chan error) {
	events := make(chan Event, 8)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errc)
		if err := run(ctx, deps, s, events); err != nil {
			errc <- err
		}
	}()

	return events, errc
}

func run(ctx context.Context, deps Deps, s *session.JudgeSession, events chan<- Event) error {
	lang, err := deps.Catalogue.GetLanguage(s.Language.Name)
	if err != nil {
		return err
	}
	comp, err := deps.Catalogue.GetCompiler(s.Compiler.Name)
	if err != nil {
		return err
	}

	code, executable := lang.Render(s.SubmissionID)
	image := comp.RenderImage(s.Compiler.Version)
	compileCmd := comp.RenderCompile(code, executable, s.Language.Version)
	executeCmd := comp.RenderExecute(executable)

	if err := compileStep(ctx, deps, image, compileCmd, events); err != nil {
		if ctx.Err() != nil {
			return judgeerr.Aborted{}
		}
		return err
	}

	var worst status.Code
	first := true

	for i := s.TestRange.Lo; i <= s.TestRange.Hi; i++ {
		if ctx.Err() != nil {
			return judgeerr.Aborted{}
		}

		ev, err := runTestcase(ctx, deps, s, i, image, executeCmd)
		var rte judgeerr.RuntimeError
		if isType(err, &rte) {
			ev, err = Event{Position: TestcasePosition(i), Status: status.RuntimeError, Feedback: rte.Detail}, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return judgeerr.Aborted{}
			}
			return err
		}
		events <- ev

		if first {
			worst = ev.Status
			first = false
		} else {
			worst = status.Worse(worst, ev.Status)
		}
	}

	events <- Event{Position: OverallPosition(), Status: worst}
	return nil
}

func compileStep(ctx context.Context, deps Deps, image, compileCmd string, events chan<- Event) error {
	command := compileCmd
	if config.HardLimit {
		limitKiB, err := memsize.ParseKiB(config.CompilerMemLimit)
		if err != nil {
			return judgeerr.SystemError{Detail: err.Error()}
		}
		command = fmt.Sprintf("ulimit -v %d && %s", limitKiB, compileCmd)
	}

	result, err := deps.Box.Run(ctx, sandbox.RunSpec{
		Command:         command,
		Image:           image,
		WorkDir:         deps.Paths.ExecutionDir,
		MemoryLimit:     config.CompilerMemLimit,
		NetworkDisabled: true,
	})
	if err != nil {
		return judgeerr.CompileError{Detail: err.Error()}
	}
	if result.ExitCode != 0 {
		return judgeerr.CompileError{Detail: strings.TrimSpace(result.Output)}
	}
	if strings.TrimSpace(result.Output) != "" {
		events <- Event{Position: CompilerPosition(), Message: result.Output}
	}
	return nil
}

func runTestcase(ctx context.Context, deps Deps, s *session.JudgeSession, i int, image, executeCmd string) (Event, error) {
	testDir := deps.Paths.testcaseDir(i)
	inputPath := filepath.Join(testDir, s.TestFile.InputName)
	outputPath := filepath.Join(testDir, s.TestFile.OutputName)

	expected, err := os.ReadFile(outputPath)
	if err != nil {
		return Event{}, judgeerr.SystemError{Detail: err.Error()}
	}

	runCmd := executeCmd
	if s.TestType == "std" {
		runCmd = fmt.Sprintf("cat %s | %s", s.TestFile.InputName, executeCmd)
	}

	local := !config.RunInDocker
	runCmd = meter.Wrap(config.TimePath, runCmd, local)

	if config.HardLimit {
		limitKiB, err := memsize.ParseKiB(s.Limit.Memory)
		if err != nil {
			return Event{}, judgeerr.SystemError{Detail: err.Error()}
		}
		runCmd = fmt.Sprintf(`/bin/bash -c "ulimit -v %d && %s"`, limitKiB, runCmd)
	}

	mounts := []sandbox.Mount{
		{Source: inputPath, Target: filepath.Join("/execution", s.TestFile.InputName), ReadOnly: true},
	}

	// The per-testcase deadline is exactly limit.time: that expiry, not a
	// separate timeout(1) wrapper, is what turns into TimeLimitExceeded
	// below. A timeout(1) prefix would race the sandbox's own ctx handling
	// and could kill `time` before it prints the meter trailer.
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(s.Limit.Time*float64(time.Second)))
	defer cancel()

	if local {
		if err := os.Link(inputPath, filepath.Join(deps.Paths.ExecutionDir, s.TestFile.InputName)); err != nil {
			_ = copyFile(inputPath, filepath.Join(deps.Paths.ExecutionDir, s.TestFile.InputName))
		}
	}

	result, runErr := deps.Box.Run(runCtx, sandbox.RunSpec{
		Command:         runCmd,
		Image:           image,
		WorkDir:         deps.Paths.ExecutionDir,
		MemoryLimit:     s.Limit.Memory,
		Mounts:          mounts,
		NetworkDisabled: true,
	})

	var tle judgeerr.TimeLimitExceeded
	if isType(runErr, &tle) {
		if ctx.Err() != nil {
			// The session's own ctx was cancelled (abort), not the
			// per-testcase deadline; let the caller see that as Aborted.
			return Event{}, judgeerr.Aborted{}
		}
		return Event{Position: TestcasePosition(i), Status: status.TimeLimitExceeded}, nil
	}
	if runErr != nil {
		return Event{}, judgeerr.SystemError{Detail: runErr.Error()}
	}

	reading, stdout, err := meter.Parse(result.Output)
	if err != nil {
		return Event{}, judgeerr.SystemError{Detail: err.Error()}
	}

	limitBytes, err := memsize.Parse(s.Limit.Memory)
	if err != nil {
		return Event{}, judgeerr.SystemError{Detail: err.Error()}
	}
	limitMiB := float64(limitBytes) / 1024 / 1024

	if result.OOMKilled || reading.PeakMemoryMiB > limitMiB {
		return Event{
			Position: TestcasePosition(i),
			Status:   status.MemoryLimitExceeded,
			Memory:   [2]float64{reading.AvgMemoryMiB, reading.PeakMemoryMiB},
		}, nil
	}

	if reading.ExitCode != 0 {
		return Event{
			Position: TestcasePosition(i),
			Status:   status.RuntimeError,
			Feedback: stdout,
			Time:     reading.CPUTimeSeconds,
			Memory:   [2]float64{reading.AvgMemoryMiB, reading.PeakMemoryMiB},
		}, nil
	}

	output := stdout
	if s.TestType == "file" {
		raw, err := os.ReadFile(filepath.Join(deps.Paths.ExecutionDir, s.TestFile.OutputName))
		if err != nil {
			return Event{}, judgeerr.RuntimeError{Detail: "expected output file was not produced: " + err.Error()}
		}
		output = string(raw)
	}

	wallTime := reading.CPUTimeSeconds
	if !reading.HasCPUTime {
		wallTime = result.WallTime.Seconds()
	}

	verdict, err := compareOutput(ctx, deps, s, i, output, string(expected), wallTime, reading)
	if err != nil {
		return Event{}, err
	}

	return Event{
		Position: TestcasePosition(i),
		Status:   verdict.Status,
		Time:     wallTime,
		Memory:   [2]float64{reading.AvgMemoryMiB, reading.PeakMemoryMiB},
		Point:    verdict.Point,
		Feedback: verdict.Feedback,
	}, nil
}

// testcasePoint splits the session's total point value equally across its
// testcases: point=3.0 over 3 testcases awards 1.0 per ACCEPTED testcase.
func testcasePoint(s *session.JudgeSession) float64 {
	count := s.TestRange.Count()
	if count <= 0 {
		return s.Point
	}
	return s.Point / float64(count)
}

// compareOutput dispatches to the builtin diff or, for a custom judger, runs
// it through the same Sandbox the testcase itself just used. The judger
// never touches time/memory: those were already captured above.
func compareOutput(ctx context.Context, deps Deps, s *session.JudgeSession, i int, output, expected string, wallTime float64, reading meter.Reading) (compare.Verdict, error) {
	point := testcasePoint(s)

	if s.JudgeMode.Mode != session.ModeJudger {
		// Anything other than the documented custom-judger mode falls back
		// to the builtin diff rather than trying to run a judger script
		// that was never uploaded.
		return compare.Builtin(output, expected, s.JudgeMode.TrimEndl, s.JudgeMode.Case, point), nil
	}

	meta := compare.JudgerMetadata{
		Index:    i,
		Point:    point,
		Language: s.Language.Name,
		Time:     wallTime,
		Memory:   reading.PeakMemoryMiB,
	}
	verdict, err := compare.Judger(ctx, deps.Box, sandbox.RunSpec{
		Command:         judgerCommand,
		WorkDir:         deps.Paths.ExecutionDir,
		NetworkDisabled: true,
	}, output, expected, meta)
	if err != nil {
		return compare.Verdict{}, judgeerr.SystemError{Detail: err.Error()}
	}
	return verdict, nil
}

// judgerCommand runs the custom judger uploaded to execution/judger.py
// (command.judger, spec.md §4.F).
const judgerCommand = "python3 judger.py"

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func isType[T error](err error, target *T) bool {
	if err == nil {
		return false
	}
	if t, ok := err.(T); ok {
		*target = t
		return true
	}
	return false
}
