package sessionmgr

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/judgyse/judgyse-go/internal/catalogue"
	"github.com/judgyse/judgyse-go/internal/sandbox"
)

// fakeConn is an in-memory Conn: inbound frames are fed through in, outbound
// frames land in out for assertions.
type fakeConn struct {
	in     chan []byte
	mu     sync.Mutex
	out    []any
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	raw, ok := <-c.in
	if !ok {
		return 0, nil, os.ErrClosed
	}
	return 1, raw, nil
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.in)
	}
	return nil
}

func (c *fakeConn) push(topic string, payload any) {
	raw, _ := json.Marshal([2]any{topic, payload})
	c.in <- raw
}

func (c *fakeConn) topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var got []string
	for _, v := range c.out {
		if tuple, ok := v.([2]any); ok {
			if s, ok := tuple[0].(string); ok {
				got = append(got, s)
			}
		}
	}
	return got
}

func (c *fakeConn) waitFor(t *testing.T, topic string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, got := range c.topics() {
			if got == topic {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for topic %q, saw %v", topic, c.topics())
}

// fakeBox always returns a compile-OK, accepted-testcase meter trailer.
type fakeBox struct{}

func (fakeBox) Run(ctx context.Context, spec sandbox.RunSpec) (sandbox.RunResult, error) {
	return sandbox.RunResult{Output: "hello\n--judgyse_static:time=0.01,amemory=10,pmemory=20,return=0\n"}, nil
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	cat := catalogue.New()
	langPath := filepath.Join(dir, "languages.json")
	compPath := filepath.Join(dir, "compilers.json")
	mustWriteJSON(t, langPath, map[string]catalogue.Language{
		"go": {File: "sub_{id}.go", Executable: "sub_{id}"},
	})
	mustWriteJSON(t, compPath, map[string]catalogue.Compiler{
		"gc": {Image: "golang:{version}", Compile: "go build -o {executable} {source}", Execute: "./{executable}"},
	})
	if err := cat.Reload(langPath, compPath); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return New(cat, fakeBox{}, dir), dir
}

func mustWriteJSON(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
}

func initPayload() map[string]any {
	return map[string]any{
		"submission_id": "s1",
		"language":      []any{"go", "1.22"},
		"compiler":      []any{"gc", "latest"},
		"test_range":    []any{float64(0), float64(0)},
		"test_file":     []any{"input.txt", "output.txt"},
		"test_type":     "std",
		"judge_mode":    map[string]any{"mode": float64(0), "trim_endl": true, "case": false},
		"limit":         map[string]any{"time": float64(2), "memory": "256m"},
		"point":         float64(1),
	}
}

func TestManagerBusyAfterConnect(t *testing.T) {
	m, _ := newTestManager(t)
	if m.Busy() {
		t.Fatal("fresh manager reported busy")
	}
	conn := newFakeConn()
	go m.Connect(conn)

	deadline := time.Now().Add(time.Second)
	for !m.Busy() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !m.Busy() {
		t.Fatal("manager never became busy after Connect")
	}
	conn.push("close", nil)
}

func TestManagerFullRunProducesAcceptedVerdict(t *testing.T) {
	m, dir := newTestManager(t)
	conn := newFakeConn()
	go m.Connect(conn)

	conn.push("command.start", nil)
	conn.push("command.init", initPayload())
	conn.waitFor(t, "judge.init")

	if err := os.MkdirAll(filepath.Join(dir, "testcases", "0"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "testcases", "0", "input.txt"), []byte("1 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "testcases", "0", "output.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	conn.push("command.judge", nil)
	conn.waitFor(t, "judge.overall")
	conn.waitFor(t, "judge.done")

	conn.mu.Lock()
	for _, v := range conn.out {
		if tuple, ok := v.([2]any); ok && tuple[0] == "judge.overall" && tuple[1] != 0 {
			conn.mu.Unlock()
			t.Fatalf("judge.overall = %v, want 0 (ACCEPTED)", tuple[1])
		}
	}
	conn.mu.Unlock()

	conn.push("close", nil)
}
