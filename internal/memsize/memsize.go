// Package memsize parses the memory-size grammar of spec.md §6:
// ^[0-9]+[KMG]$ (case-insensitive), denoting kibi/mebi/gibibytes.
package memsize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var pattern = regexp.MustCompile(`^[0-9]+[KMGkmg]$`)

// Parse converts a memory-size string like "256m" into a byte count.
// Anything not matching the grammar is rejected.
func Parse(mem string) (int64, error) {
	if !pattern.MatchString(mem) {
		return 0, fmt.Errorf("memsize: invalid memory size %q", mem)
	}

	unit := strings.ToUpper(mem[len(mem)-1:])
	value, err := strconv.ParseInt(mem[:len(mem)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("memsize: invalid numeric part of %q: %w", mem, err)
	}

	switch unit {
	case "K":
		return value * 1024, nil
	case "M":
		return value * 1024 * 1024, nil
	case "G":
		return value * 1024 * 1024 * 1024, nil
	default:
		return 0, fmt.Errorf("memsize: unknown unit in %q", mem)
	}
}

// ParseKiB is Parse divided down to kibibytes, the unit `ulimit -v` expects.
func ParseKiB(mem string) (int64, error) {
	bytes, err := Parse(mem)
	if err != nil {
		return 0, err
	}
	return bytes / 1024, nil
}
