// Package meter wraps a sandboxed command with the time(1) trailer that
// carries CPU time and memory metrics, and parses that trailer back out of
// the sandbox's combined stdout+stderr (spec.md §4.C).
package meter

import (
	"fmt"
	"strconv"
	"strings"
)

const sentinel = "--judgyse_static:"

// Reading is the parsed metrics trailer. CPUTimeSeconds is only populated
// for the local back-end: the container back-end takes wall time from the
// sandbox's own RunResult.WallTime instead of %e.
type Reading struct {
	CPUTimeSeconds float64
	HasCPUTime     bool
	AvgMemoryMiB   float64
	PeakMemoryMiB  float64
	ExitCode       int
}

// Wrap prepends the time(1) invocation to cmd. In local mode the format
// string also captures wall time (%e); in container mode it is omitted
// because the sandbox reports wall time itself.
func Wrap(timePath, cmd string, local bool) string {
	if local {
		return fmt.Sprintf(
			`%s --format="%stime=%%e,amemory=%%K,pmemory=%%M,return=%%x" %s`,
			timePath, sentinel, cmd,
		)
	}
	return fmt.Sprintf(
		`%s --format="%samemory=%%K,pmemory=%%M,return=%%x" %s`,
		timePath, sentinel, cmd,
	)
}

// Parse locates the last occurrence of the sentinel in combined output,
// splits the trailing "k=v,k=v,..." line into a map, and returns the
// parsed Reading plus everything before the sentinel (the program's own
// stdout).
func Parse(combined string) (Reading, string, error) {
	idx := strings.LastIndex(combined, sentinel)
	if idx < 0 {
		return Reading{}, "", fmt.Errorf("meter: sentinel %q not found in output", sentinel)
	}

	stdout := combined[:idx]
	trailer := strings.TrimRight(combined[idx+len(sentinel):], "\n")

	fields := map[string]string{}
	for _, kv := range strings.Split(trailer, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		fields[k] = v
	}

	reading, err := parseFields(fields)
	if err != nil {
		return Reading{}, stdout, err
	}
	return reading, stdout, nil
}

func parseFields(fields map[string]string) (Reading, error) {
	var r Reading

	if raw, ok := fields["time"]; ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Reading{}, fmt.Errorf("meter: invalid time=%q: %w", raw, err)
		}
		r.CPUTimeSeconds = v
		r.HasCPUTime = true
	}

	amemory, err := parseKiB(fields, "amemory")
	if err != nil {
		return Reading{}, err
	}
	pmemory, err := parseKiB(fields, "pmemory")
	if err != nil {
		return Reading{}, err
	}
	r.AvgMemoryMiB = amemory / 1024
	r.PeakMemoryMiB = pmemory / 1024

	ret, ok := fields["return"]
	if !ok {
		return Reading{}, fmt.Errorf("meter: missing return code field")
	}
	code, err := strconv.Atoi(ret)
	if err != nil {
		return Reading{}, fmt.Errorf("meter: invalid return=%q: %w", ret, err)
	}
	r.ExitCode = code

	return r, nil
}

func parseKiB(fields map[string]string, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("meter: missing %s field", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("meter: invalid %s=%q: %w", key, raw, err)
	}
	return v, nil
}
