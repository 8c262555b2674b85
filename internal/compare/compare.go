// Package compare implements the two verdict comparators of spec.md §4.E:
// a built-in string diff (trim-empty-line, case-fold) and a custom judger
// invoked as a subprocess over a JSON contract instead of shell-interpolated
// arguments.
package compare

import (
	"strings"

	"github.com/judgyse/judgyse-go/internal/status"
)

// Verdict is what either comparator produces for one testcase.
type Verdict struct {
	Status   status.Code
	Point    float64
	Feedback string
}

// Builtin compares output against expected using the trim_endl/case flags.
// Byte-equality after the requested normalization is ACCEPTED (awarding
// point, the caller's share of the session's total for this testcase);
// anything else is WRONG_ANSWER with the raw output as feedback.
func Builtin(output, expected string, trimEndl, caseFold bool, point float64) Verdict {
	a, b := output, expected
	if trimEndl {
		a = dropEmptyLines(a)
		b = dropEmptyLines(b)
	}
	if caseFold {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}

	if a == b {
		return Verdict{Status: status.Accepted, Point: point}
	}
	return Verdict{Status: status.WrongAnswer, Point: 0, Feedback: output}
}

func dropEmptyLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
