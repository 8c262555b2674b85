package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/judgyse/judgyse-go/internal/catalogue"
	"github.com/judgyse/judgyse-go/internal/sandbox"
	"github.com/judgyse/judgyse-go/internal/session"
	"github.com/judgyse/judgyse-go/internal/status"
)

// fakeBox replays a scripted RunResult/error pair for each successive Run
// call: index 0 is the compile step, index 1+ are testcases in order.
type fakeBox struct {
	calls   int
	results []sandbox.RunResult
	errs    []error
}

func (f *fakeBox) Run(ctx context.Context, spec sandbox.RunSpec) (sandbox.RunResult, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], err
	}
	return sandbox.RunResult{}, err
}

func setupCatalogue(t *testing.T) *catalogue.Catalogue {
	t.Helper()
	dir := t.TempDir()
	languages := map[string]catalogue.Language{
		"go": {File: "sub_{id}.go", Executable: "sub_{id}"},
	}
	compilers := map[string]catalogue.Compiler{
		"gc": {Image: "golang:{version}", Compile: "go build -o {executable} {source}", Execute: "./{executable}"},
	}
	langPath := filepath.Join(dir, "languages.json")
	compPath := filepath.Join(dir, "compilers.json")
	writeJSON(t, langPath, languages)
	writeJSON(t, compPath, compilers)

	cat := catalogue.New()
	if err := cat.Reload(langPath, compPath); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return cat
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func basicSession(t *testing.T, dir string) (*session.JudgeSession, Paths) {
	t.Helper()
	paths := Paths{
		ExecutionDir: filepath.Join(dir, "execution"),
		TestcasesDir: filepath.Join(dir, "testcases"),
	}
	if err := os.MkdirAll(paths.ExecutionDir, 0o755); err != nil {
		t.Fatal(err)
	}
	tc0 := filepath.Join(paths.TestcasesDir, "0")
	if err := os.MkdirAll(tc0, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tc0, "input.txt"), []byte("1 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tc0, "output.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := &session.JudgeSession{
		SubmissionID: "s1",
		Language:     session.LangRef{Name: "go", Version: "1.22"},
		Compiler:     session.CompilerRef{Name: "gc", Version: "latest"},
		TestRange:    session.TestRange{Lo: 0, Hi: 0},
		TestFile:     session.TestFile{InputName: "input.txt", OutputName: "output.txt"},
		TestType:     "std",
		JudgeMode:    session.JudgeMode{Mode: session.ModeBuiltin, TrimEndl: true},
		Limit:        session.Limit{Time: 2.0, Memory: "256m"},
		Point:        1.0,
	}
	return s, paths
}

func drain(t *testing.T, events <-chan Event, errc <-chan error) ([]Event, error) {
	t.Helper()
	var got []Event
	var runErr error
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
			} else {
				got = append(got, ev)
			}
		case err, ok := <-errc:
			if !ok {
				errc = nil
			} else {
				runErr = err
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out draining pipeline")
		}
		if events == nil && errc == nil {
			return got, runErr
		}
	}
}

func TestJudgeAcceptedSingleTestcase(t *testing.T) {
	cat := setupCatalogue(t)
	s, paths := basicSession(t, t.TempDir())

	box := &fakeBox{
		results: []sandbox.RunResult{
			{ExitCode: 0}, // compile
			{Output: "hello\n--judgyse_static:time=0.01,amemory=100,pmemory=200,return=0\n"},
		},
	}

	events, errc := Judge(context.Background(), Deps{Catalogue: cat, Box: box, Paths: paths}, s)
	got, err := drain(t, events, errc)
	if err != nil {
		t.Fatalf("Judge returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2 (testcase + overall): %+v", len(got), got)
	}
	if got[0].Status != status.Accepted || got[0].Point != 1.0 {
		t.Fatalf("testcase event = %+v", got[0])
	}
	if !got[1].Position.IsOverall || got[1].Status != status.Accepted {
		t.Fatalf("overall event = %+v", got[1])
	}
}

func TestJudgeCompileErrorYieldsNoTestcaseEvents(t *testing.T) {
	cat := setupCatalogue(t)
	s, paths := basicSession(t, t.TempDir())

	box := &fakeBox{
		results: []sandbox.RunResult{
			{ExitCode: 1, Output: "syntax error"},
		},
	}

	events, errc := Judge(context.Background(), Deps{Catalogue: cat, Box: box, Paths: paths}, s)
	got, err := drain(t, events, errc)
	if err == nil {
		t.Fatalf("expected compile error")
	}
	if len(got) != 0 {
		t.Fatalf("expected no events on compile error, got %+v", got)
	}
}

func TestJudgeWrongAnswer(t *testing.T) {
	cat := setupCatalogue(t)
	s, paths := basicSession(t, t.TempDir())

	box := &fakeBox{
		results: []sandbox.RunResult{
			{ExitCode: 0},
			{Output: "bye\n--judgyse_static:time=0.01,amemory=100,pmemory=200,return=0\n"},
		},
	}

	events, errc := Judge(context.Background(), Deps{Catalogue: cat, Box: box, Paths: paths}, s)
	got, err := drain(t, events, errc)
	if err != nil {
		t.Fatalf("Judge returned error: %v", err)
	}
	if got[0].Status != status.WrongAnswer || got[0].Point != 0 {
		t.Fatalf("testcase event = %+v", got[0])
	}
	if got[1].Status != status.WrongAnswer {
		t.Fatalf("overall = %+v", got[1])
	}
}
