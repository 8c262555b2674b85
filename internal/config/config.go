// Package config loads the environment variables recognized by spec.md §6,
// the same way the teacher's serve/internal/config/const.go does: a best-
// effort godotenv.Load() followed by getEnv(key, default)-backed package
// vars.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var (
	// ServerPort is the HTTP listen address, teacher's ServerPort var.
	ServerPort string

	// RunInDocker selects the container sandbox back-end when true.
	RunInDocker bool
	// InsideDocker means the process itself runs inside a container; setting
	// it also turns RunInDocker on. The judge directory is not derived from
	// the container name: it is JudgyseDir either way.
	InsideDocker bool
	// HardLimit adds a `ulimit -v` memory prefix to the compile and run
	// commands. Time is enforced by the per-testcase deadline in both modes;
	// no timeout(1) wrapper is composed.
	HardLimit bool

	// CompilerMemLimit bounds memory during the compile step.
	CompilerMemLimit string
	// TimePath overrides the time(1) binary used by the meter. TimeoutPath
	// is read from TIMEOUT_PATH but nothing in this repo invokes it.
	TimePath    string
	TimeoutPath string

	// HeartbeatInterval is how often the session's is_alive loop polls the
	// connection.
	HeartbeatInterval time.Duration

	// Wipe clears execution/ and testcases/ on process startup.
	Wipe bool

	// JudgyseDir is the judge directory holding execution/, testcases/ and
	// the catalogue files, used as is whether or not InsideDocker is set.
	JudgyseDir string

	// Env selects pretty-printed ("development") vs compact JSON output.
	Env string
	// LogLevel is read but otherwise left to the caller; this repo logs
	// with the standard library logger like the teacher does, so the value
	// is informational only.
	LogLevel string
)

// Init loads .env (if present, warning but not failing otherwise) and
// (re)populates every package var from the environment, applying the
// defaults spec.md §6 documents.
func Init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	ServerPort = getEnv("PORT", ":8080")

	InsideDocker = getEnv("INSIDE_DOCKER", "") == "1"
	RunInDocker = InsideDocker || getEnv("RUN_IN_DOCKER", "") == "1"
	HardLimit = getEnv("HARD_LIMIT", "") == "1"

	CompilerMemLimit = getEnv("COMPILER_MEM_LIMIT", "1024m")
	TimePath = getEnv("TIME_PATH", "/usr/bin/time")
	TimeoutPath = getEnv("TIMEOUT_PATH", "/usr/bin/timeout")

	HeartbeatInterval = getEnvSeconds("HEARTBEAT_INTERVAL", 3)

	Wipe = getEnv("WIPE", "") == "1"
	JudgyseDir = getEnv("JUDGYSE_DIR", "/judgyse")

	Env = getEnv("ENV", "development")
	LogLevel = getEnv("LOG_LEVEL", "info")
}

// JSONIndent mirrors utils.py's json_indent: pretty-print in development,
// compact otherwise.
func JSONIndent() string {
	if Env == "development" {
		return "  "
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(defaultSeconds) * time.Second
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %ds", key, raw, defaultSeconds)
		return time.Duration(defaultSeconds) * time.Second
	}
	return time.Duration(n) * time.Second
}
