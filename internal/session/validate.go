package session

import (
	"github.com/judgyse/judgyse-go/internal/judgeerr"
)

// strictFields lists every JudgeSession field that command.init must supply;
// there are no optional ones in this data model (spec.md §3).
var strictFields = []string{
	"submission_id", "language", "compiler", "test_range",
	"test_file", "test_type", "judge_mode", "limit", "point",
}

// Parse builds a JudgeSession from the decoded command.init payload,
// checking every strict field is present (MissingField) and every present
// field has the expected shape (InvalidField) before constructing anything.
func Parse(data map[string]any) (*JudgeSession, error) {
	for _, field := range strictFields {
		if _, ok := data[field]; !ok {
			return nil, judgeerr.MissingField{Field: field}
		}
	}

	submissionID, ok := data["submission_id"].(string)
	if !ok {
		return nil, judgeerr.InvalidField{Field: "submission_id", Reason: "expected string"}
	}

	langName, langVersion, err := parseNameVersion(data["language"], "language")
	if err != nil {
		return nil, err
	}
	language := LangRef{Name: langName, Version: langVersion}

	compName, compVersion, err := parseNameVersion(data["compiler"], "compiler")
	if err != nil {
		return nil, err
	}
	compiler := CompilerRef{Name: compName, Version: compVersion}

	testRange, err := parseTestRange(data["test_range"])
	if err != nil {
		return nil, err
	}

	testFile, err := parseTestFile(data["test_file"])
	if err != nil {
		return nil, err
	}

	testType, ok := data["test_type"].(string)
	if !ok || (testType != "file" && testType != "std") {
		return nil, judgeerr.InvalidField{Field: "test_type", Reason: `expected "file" or "std"`}
	}

	judgeMode, err := parseJudgeMode(data["judge_mode"])
	if err != nil {
		return nil, err
	}

	limit, err := parseLimit(data["limit"])
	if err != nil {
		return nil, err
	}

	point, ok := asFloat(data["point"])
	if !ok {
		return nil, judgeerr.InvalidField{Field: "point", Reason: "expected number"}
	}

	return &JudgeSession{
		SubmissionID: submissionID,
		Language:     language,
		Compiler:     compiler,
		TestRange:    testRange,
		TestFile:     testFile,
		TestType:     testType,
		JudgeMode:    judgeMode,
		Limit:        limit,
		Point:        point,
	}, nil
}

// parseNameVersion parses the [name, version] pair shared by the language
// and compiler fields; the caller wraps the result in the right ref type.
func parseNameVersion(v any, field string) (name, version string, err error) {
	pair, ok := v.([]any)
	if !ok || len(pair) != 2 {
		return "", "", judgeerr.InvalidField{Field: field, Reason: "expected [name, version] pair"}
	}
	name, ok = pair[0].(string)
	if !ok {
		return "", "", judgeerr.InvalidField{Field: field, Reason: "name must be a string"}
	}
	version, _ = pair[1].(string)
	return name, version, nil
}

func parseTestRange(v any) (TestRange, error) {
	pair, ok := v.([]any)
	if !ok || len(pair) != 2 {
		return TestRange{}, judgeerr.InvalidField{Field: "test_range", Reason: "expected [lo, hi] pair"}
	}
	lo, loOK := asFloat(pair[0])
	hi, hiOK := asFloat(pair[1])
	if !loOK || !hiOK {
		return TestRange{}, judgeerr.InvalidField{Field: "test_range", Reason: "lo/hi must be numbers"}
	}
	return TestRange{Lo: int(lo), Hi: int(hi)}, nil
}

func parseTestFile(v any) (TestFile, error) {
	pair, ok := v.([]any)
	if !ok || len(pair) != 2 {
		return TestFile{}, judgeerr.InvalidField{Field: "test_file", Reason: "expected [input, output] pair"}
	}
	input, inOK := pair[0].(string)
	output, outOK := pair[1].(string)
	if !inOK || !outOK {
		return TestFile{}, judgeerr.InvalidField{Field: "test_file", Reason: "input/output must be strings"}
	}
	return TestFile{InputName: input, OutputName: output}, nil
}

func parseJudgeMode(v any) (JudgeMode, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return JudgeMode{}, judgeerr.InvalidField{Field: "judge_mode", Reason: "expected object"}
	}
	mode, ok := asFloat(obj["mode"])
	if !ok {
		return JudgeMode{}, judgeerr.InvalidField{Field: "judge_mode.mode", Reason: "expected number"}
	}
	trimEndl, _ := obj["trim_endl"].(bool)
	caseFold, _ := obj["case"].(bool)
	return JudgeMode{Mode: int(mode), TrimEndl: trimEndl, Case: caseFold}, nil
}

func parseLimit(v any) (Limit, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Limit{}, judgeerr.InvalidField{Field: "limit", Reason: "expected object"}
	}
	time, ok := asFloat(obj["time"])
	if !ok {
		return Limit{}, judgeerr.InvalidField{Field: "limit.time", Reason: "expected number"}
	}
	memory, ok := obj["memory"].(string)
	if !ok {
		return Limit{}, judgeerr.InvalidField{Field: "limit.memory", Reason: "expected string"}
	}
	return Limit{Time: time, Memory: memory}, nil
}

// asFloat accepts the float64 that encoding/json always produces for JSON
// numbers, regardless of whether the source literal had a decimal point.
func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
