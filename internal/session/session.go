// Package session holds the JudgeSession data model of spec.md §3 and its
// field validation rules (spec.md §7 MissingField/InvalidField).
package session

// Limit is the per-testcase resource ceiling.
type Limit struct {
	Time   float64 // seconds
	Memory string  // spec.md §6 memory-size grammar, e.g. "256m"
}

// JudgeMode selects the comparator. Mode 0 is the built-in diff (TrimEndl/
// Case apply); mode 1 is a custom judger uploaded via command.judger.
type JudgeMode struct {
	Mode     int
	TrimEndl bool
	Case     bool
}

const (
	ModeBuiltin = 0
	ModeJudger  = 1
)

// LangRef names a language and, for compiled languages, the standard
// version to target.
type LangRef struct {
	Name    string
	Version string
}

// CompilerRef names a compiler and an image version, or "latest".
type CompilerRef struct {
	Name    string
	Version string
}

// TestRange is the inclusive testcase index range [Lo, Hi].
type TestRange struct {
	Lo, Hi int
}

// Contains reports whether i falls within the range.
func (r TestRange) Contains(i int) bool {
	return i >= r.Lo && i <= r.Hi
}

// Count is the number of testcases the range spans.
func (r TestRange) Count() int {
	if r.Hi < r.Lo {
		return 0
	}
	return r.Hi - r.Lo + 1
}

// TestFile names the input/output filenames used under testcases/<i>/ and,
// for test_type "file", under execution/ for the program's own output.
type TestFile struct {
	InputName  string
	OutputName string
}

// JudgeSession is the per-connection record created on command.init.
type JudgeSession struct {
	SubmissionID string
	Language     LangRef
	Compiler     CompilerRef
	TestRange    TestRange
	TestFile     TestFile
	TestType     string // "file" or "std"
	JudgeMode    JudgeMode
	Limit        Limit
	Point        float64
}
