// Package catalogue holds the two static, JSON-backed tables that map a
// language name to its source/executable filename templates and a compiler
// name to its image/compile/execute command templates (spec.md §3/§4.A).
package catalogue

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/judgyse/judgyse-go/internal/judgeerr"
)

// Language is the {file, executable} template pair for one language entry.
// Templates use the single placeholder {id}.
type Language struct {
	File       string `json:"file"`
	Executable string `json:"executable"`
}

// Render expands {id} in both templates for a given submission id.
func (l Language) Render(submissionID string) (code, executable string) {
	code = render(l.File, map[string]string{"id": submissionID})
	executable = render(l.Executable, map[string]string{"id": submissionID})
	return
}

// Compiler is the {image, compile, execute} template triple for one
// compiler entry. {version} appears in image, {source, executable,
// version} in compile, {executable} in execute.
type Compiler struct {
	Image   string `json:"image"`
	Compile string `json:"compile"`
	Execute string `json:"execute"`
}

// RenderImage expands {version} in the image template.
func (c Compiler) RenderImage(version string) string {
	return render(c.Image, map[string]string{"version": version})
}

// RenderCompile expands {source, executable, version} in the compile
// template.
func (c Compiler) RenderCompile(source, executable, version string) string {
	return render(c.Compile, map[string]string{
		"source":     source,
		"executable": executable,
		"version":    version,
	})
}

// RenderExecute expands {executable} in the execute template.
func (c Compiler) RenderExecute(executable string) string {
	return render(c.Execute, map[string]string{"executable": executable})
}

// render performs straight placeholder substitution. No shell escaping is
// applied here on purpose: the surrounding templates are operator-supplied
// catalogue data, not untrusted input (see spec.md §9 design notes).
func render(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Catalogue is a process-wide, mutable-on-reload pair of lookup tables.
type Catalogue struct {
	mu        sync.RWMutex
	languages map[string]Language
	compilers map[string]Compiler
}

// New returns an empty catalogue; load it with Reload before use.
func New() *Catalogue {
	return &Catalogue{
		languages: map[string]Language{},
		compilers: map[string]Compiler{},
	}
}

// GetLanguage looks up a language entry by name. A miss is a SystemError,
// surfaced to the session the way an unresolved catalogue lookup is in
// spec.md §4.A.
func (c *Catalogue) GetLanguage(name string) (Language, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.languages[name]
	if !ok {
		return Language{}, judgeerr.SystemError{Detail: fmt.Sprintf("unknown language: %s", name)}
	}
	return l, nil
}

// GetCompiler looks up a compiler entry by name.
func (c *Catalogue) GetCompiler(name string) (Compiler, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.compilers[name]
	if !ok {
		return Compiler{}, judgeerr.SystemError{Detail: fmt.Sprintf("unknown compiler: %s", name)}
	}
	return comp, nil
}

// ReplaceLanguage overwrites the on-disk language catalogue with raw JSON
// (declare.language) without reloading the in-memory table; Reload does
// that explicitly, matching the source's two-step write-then-reload
// protocol (spec.md §5 "Catalogue JSON: write + reload is not atomic").
func ReplaceLanguage(path string, raw json.RawMessage) error {
	return os.WriteFile(path, raw, 0o644)
}

// ReplaceCompiler overwrites the on-disk compiler catalogue.
func ReplaceCompiler(path string, raw json.RawMessage) error {
	return os.WriteFile(path, raw, 0o644)
}

// Reload re-reads both catalogue files from disk into memory. Not safe to
// call concurrently with an in-flight judging session (single-session
// process, per spec.md §5).
func (c *Catalogue) Reload(languagesPath, compilersPath string) error {
	languages, err := loadTable[Language](languagesPath)
	if err != nil {
		return judgeerr.SystemError{Detail: err.Error()}
	}
	compilers, err := loadTable[Compiler](compilersPath)
	if err != nil {
		return judgeerr.SystemError{Detail: err.Error()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.languages = languages
	c.compilers = compilers
	return nil
}

func loadTable[T any](path string) (map[string]T, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]T{}, nil
		}
		return nil, fmt.Errorf("read catalogue %s: %w", path, err)
	}
	var table map[string]T
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parse catalogue %s: %w", path, err)
	}
	return table, nil
}
