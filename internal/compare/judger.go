package compare

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/judgyse/judgyse-go/internal/judgeerr"
	"github.com/judgyse/judgyse-go/internal/sandbox"
	"github.com/judgyse/judgyse-go/internal/status"
)

// JudgerMetadata is the context handed to a custom judger alongside the
// output/expected pair, per spec.md §4.E.
type JudgerMetadata struct {
	Index    int     `json:"index"`
	Point    float64 `json:"point"`
	Language string  `json:"language"`
	Time     float64 `json:"time"`
	Memory   float64 `json:"memory"`
}

type judgerRequest struct {
	Output   string         `json:"output"`
	Expected string         `json:"expected"`
	Metadata JudgerMetadata `json:"metadata"`
}

// judgerResponse is the object form of a judger's result; the bare JSON
// bool form is tried first in parseJudgerOutput and never reaches it.
type judgerResponse struct {
	Status   *int     `json:"status"`
	Point    *float64 `json:"point"`
	Feedback string   `json:"feedback"`
}

// Judger runs a custom judger script through box, passing the
// (output, expected, metadata) triple as a JSON document over stdin instead
// of interpolating them into a shell command (spec.md §9 Open Questions).
// The script must write exactly one JSON value to stdout: a bare boolean,
// or an object with "status" and "point".
func Judger(ctx context.Context, box sandbox.Sandbox, spec sandbox.RunSpec, output, expected string, meta JudgerMetadata) (Verdict, error) {
	req := judgerRequest{Output: output, Expected: expected, Metadata: meta}
	payload, err := json.Marshal(req)
	if err != nil {
		return Verdict{}, judgeerr.JudgerError{Detail: err.Error()}
	}

	spec.Command = fmt.Sprintf(`echo %s | %s`, shellQuote(string(payload)), spec.Command)
	result, err := box.Run(ctx, spec)
	if err != nil {
		return Verdict{}, err
	}

	return parseJudgerOutput(result.Output, meta.Point)
}

func parseJudgerOutput(raw string, fallbackPoint float64) (Verdict, error) {
	trimmed := strings.TrimSpace(raw)

	var asBool bool
	if err := json.Unmarshal([]byte(trimmed), &asBool); err == nil {
		if asBool {
			return Verdict{Status: status.Accepted, Point: fallbackPoint}, nil
		}
		return Verdict{Status: status.WrongAnswer}, nil
	}

	var resp judgerResponse
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return Verdict{}, judgeerr.JudgerError{Detail: "judger did not print a JSON bool or object: " + err.Error()}
	}
	if resp.Status == nil || resp.Point == nil {
		return Verdict{}, judgeerr.JudgerError{Detail: "judger result missing status or point"}
	}

	return Verdict{
		Status:   status.Code(*resp.Status),
		Point:    *resp.Point,
		Feedback: resp.Feedback,
	}, nil
}

// shellQuote wraps s in single quotes for safe inclusion as one shell word,
// escaping embedded single quotes the POSIX way.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
