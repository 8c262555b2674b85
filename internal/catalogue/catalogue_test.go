package catalogue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestRenderTemplates(t *testing.T) {
	lang := Language{File: "{id}.go", Executable: "{id}"}
	code, exe := lang.Render("sub-1")
	if code != "sub-1.go" || exe != "sub-1" {
		t.Fatalf("got (%s, %s)", code, exe)
	}

	comp := Compiler{
		Image:   "golang:{version}",
		Compile: "go build -o {executable} {source}",
		Execute: "./{executable}",
	}
	if got := comp.RenderImage("1.23"); got != "golang:1.23" {
		t.Fatalf("RenderImage = %s", got)
	}
	if got := comp.RenderCompile("a.go", "a", "1.23"); got != "go build -o a a.go" {
		t.Fatalf("RenderCompile = %s", got)
	}
	if got := comp.RenderExecute("a"); got != "./a" {
		t.Fatalf("RenderExecute = %s", got)
	}
}

func TestReloadAndLookup(t *testing.T) {
	dir := t.TempDir()
	langPath := filepath.Join(dir, "language.json")
	compPath := filepath.Join(dir, "compiler.json")

	langs := map[string]Language{
		"go": {File: "{id}.go", Executable: "{id}"},
	}
	comps := map[string]Compiler{
		"go": {Image: "golang:{version}", Compile: "go build -o {executable} {source}", Execute: "./{executable}"},
	}
	writeJSON(t, langPath, langs)
	writeJSON(t, compPath, comps)

	c := New()
	if err := c.Reload(langPath, compPath); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	l, err := c.GetLanguage("go")
	if err != nil || l.File != "{id}.go" {
		t.Fatalf("GetLanguage = %+v, %v", l, err)
	}

	if _, err := c.GetLanguage("cobol"); err == nil {
		t.Fatalf("expected error for unknown language")
	}

	comp, err := c.GetCompiler("go")
	if err != nil || comp.Image != "golang:{version}" {
		t.Fatalf("GetCompiler = %+v, %v", comp, err)
	}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
