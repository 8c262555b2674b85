package session

import (
	"testing"

	"github.com/judgyse/judgyse-go/internal/judgeerr"
)

func validPayload() map[string]any {
	return map[string]any{
		"submission_id": "sub-1",
		"language":      []any{"go", "1.22"},
		"compiler":      []any{"gc", "latest"},
		"test_range":    []any{float64(1), float64(3)},
		"test_file":     []any{"input.txt", "output.txt"},
		"test_type":     "file",
		"judge_mode":    map[string]any{"mode": float64(0), "trim_endl": true, "case": false},
		"limit":         map[string]any{"time": float64(2.0), "memory": "256m"},
		"point":         float64(3.0),
	}
}

func TestParseValidPayload(t *testing.T) {
	s, err := Parse(validPayload())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.SubmissionID != "sub-1" || s.TestRange != (TestRange{Lo: 1, Hi: 3}) {
		t.Fatalf("s = %+v", s)
	}
	if s.JudgeMode.Mode != ModeBuiltin || !s.JudgeMode.TrimEndl {
		t.Fatalf("judge mode = %+v", s.JudgeMode)
	}
	if s.Limit.Memory != "256m" {
		t.Fatalf("limit = %+v", s.Limit)
	}
}

func TestParseMissingField(t *testing.T) {
	data := validPayload()
	delete(data, "limit")
	_, err := Parse(data)
	if err == nil {
		t.Fatalf("expected error")
	}
	if e, ok := err.(judgeerr.MissingField); !ok || e.Field != "limit" {
		t.Fatalf("err = %v, want MissingField{limit}", err)
	}
}

func TestParseInvalidTestType(t *testing.T) {
	data := validPayload()
	data["test_type"] = "bogus"
	_, err := Parse(data)
	if _, ok := err.(judgeerr.InvalidField); !ok {
		t.Fatalf("err = %v, want InvalidField", err)
	}
}

func TestTestRangeContainsAndCount(t *testing.T) {
	r := TestRange{Lo: 5, Hi: 5}
	if !r.Contains(5) || r.Contains(4) || r.Contains(6) {
		t.Fatalf("Contains wrong for single-element range")
	}
	if r.Count() != 1 {
		t.Fatalf("Count = %d, want 1", r.Count())
	}
}
