// Package sessionmgr is the per-connection state machine of spec.md §4.F:
// it receives command frames, writes uploaded artifacts to disk, drives the
// judging pipeline, and streams results back, enforcing that at most one
// connection is active at a time.
package sessionmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/judgyse/judgyse-go/internal/catalogue"
	"github.com/judgyse/judgyse-go/internal/config"
	"github.com/judgyse/judgyse-go/internal/judgeerr"
	"github.com/judgyse/judgyse-go/internal/pipeline"
	"github.com/judgyse/judgyse-go/internal/sandbox"
	"github.com/judgyse/judgyse-go/internal/session"
	"github.com/judgyse/judgyse-go/internal/wireframe"
)

// Status is the state exposed by command.status and GET /status.
type Status string

const (
	StatusDisconnect Status = "disconnect"
	StatusIdle       Status = "idle"
	StatusBusy       Status = "busy"
)

// Conn is the minimal duplex transport the Manager needs; *websocket.Conn
// satisfies it directly.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// Manager is the single process-wide session state machine. It is not a
// package-level global: the server entry point owns one instance.
type Manager struct {
	mu       sync.Mutex
	status   Status
	conn     Conn
	session  *session.JudgeSession
	cancel   context.CancelFunc
	done     chan struct{}
	cat      *catalogue.Catalogue
	box      sandbox.Sandbox
	judgeDir string
}

// New builds an idle Manager bound to a catalogue and sandbox back-end.
func New(cat *catalogue.Catalogue, box sandbox.Sandbox, judgeDir string) *Manager {
	return &Manager{status: StatusDisconnect, cat: cat, box: box, judgeDir: judgeDir}
}

// Busy reports whether a connection currently owns the Manager.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status != StatusDisconnect
}

// Status returns the current SessionStatus.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connect takes ownership of conn and drives its receive loop until the
// client closes, disconnects, or asks to; returns once the connection is
// done. Call Busy first under the server's own lock to reject concurrent
// connections with close code 1013 (spec.md §4.F).
func (m *Manager) Connect(conn Conn) {
	done := make(chan struct{})
	m.mu.Lock()
	m.conn = conn
	m.status = StatusIdle
	m.session = nil
	m.done = done
	m.mu.Unlock()

	go m.heartbeat(done)
	defer m.disconnect()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := wireframe.Decode(raw)
		if err != nil {
			continue
		}
		if frame.Topic == "close" {
			return
		}
		m.handle(frame)
	}
}

func (m *Manager) disconnect() {
	m.mu.Lock()
	cancel := m.cancel
	m.status = StatusDisconnect
	m.session = nil
	m.cancel = nil
	conn := m.conn
	m.conn = nil
	done := m.done
	m.done = nil
	m.mu.Unlock()

	if done != nil {
		close(done)
	}
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// heartbeat mirrors the original session's is_alive poll: a periodic no-op
// frame so a load balancer or idle-timeout proxy does not see a silent
// connection during a long judge run.
func (m *Manager) heartbeat(done <-chan struct{}) {
	interval := config.HeartbeatInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.send("heartbeat", nil)
		}
	}
}

func (m *Manager) handle(f wireframe.Frame) {
	switch f.Topic {
	case "command.start":
		m.cmdStart()
	case "command.init":
		m.cmdInit(f.Payload)
	case "command.code":
		m.cmdCode(f.Payload)
	case "command.judger":
		m.cmdJudger(f.Payload)
	case "command.testcase":
		m.cmdTestcase(f.Payload)
	case "command.judge":
		go m.cmdJudge()
	case "command.status":
		m.send("status", map[string]any{"status": string(m.Status())})
	case "command.abort":
		m.cmdAbort()
	case "declare.env":
		m.cmdDeclareEnv(f.Payload)
	case "declare.language":
		m.cmdDeclareCatalogue(f.Payload, "language")
	case "declare.compiler":
		m.cmdDeclareCatalogue(f.Payload, "compiler")
	case "declare.load":
		m.cmdDeclareLoad()
	default:
		m.send("unknown", f.Topic)
		_ = judgeerr.CommandNotFound{Command: f.Topic}
	}
}

func (m *Manager) cmdStart() {
	m.mu.Lock()
	m.status = StatusBusy
	m.session = nil
	m.mu.Unlock()

	if err := os.RemoveAll(m.executionDir()); err != nil {
		log.Printf("sessionmgr: wipe execution dir: %v", err)
	}
	if err := os.RemoveAll(m.testcasesDir()); err != nil {
		log.Printf("sessionmgr: wipe testcases dir: %v", err)
	}
	_ = os.MkdirAll(m.executionDir(), 0o755)
	_ = os.MkdirAll(m.testcasesDir(), 0o755)
}

func (m *Manager) cmdInit(payload any) {
	data, ok := payload.(map[string]any)
	if !ok {
		m.replyError("judge.init", judgeerr.InvalidField{Field: "payload", Reason: "expected object"})
		return
	}
	s, err := session.Parse(data)
	if err != nil {
		m.replyError("judge.init", err)
		return
	}
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
	m.send("judge.init", map[string]any{"status": 0})
}

func (m *Manager) cmdCode(payload any) {
	s := m.currentSession()
	if s == nil {
		m.replyError("judge.write:code", judgeerr.InvalidField{Field: "session", Reason: "command.init not run yet"})
		return
	}
	content, compressed, err := parseUpload(payload)
	if err != nil {
		m.replyError("judge.write:code", err)
		return
	}
	if compressed {
		content, err = inflate(content)
		if err != nil {
			m.replyError("judge.write:code", judgeerr.SystemError{Detail: err.Error()})
			return
		}
	}

	lang, err := m.cat.GetLanguage(s.Language.Name)
	if err != nil {
		m.replyError("judge.write:code", err)
		return
	}
	fileName, _ := lang.Render(s.SubmissionID)
	if err := os.WriteFile(filepath.Join(m.executionDir(), fileName), []byte(content), 0o644); err != nil {
		m.replyError("judge.write:code", judgeerr.SystemError{Detail: err.Error()})
		return
	}
	m.send("judge.write:code", map[string]any{"status": 0})
}

func (m *Manager) cmdJudger(payload any) {
	content, compressed, err := parseUpload(payload)
	if err != nil {
		m.replyError("judge.write:judger", err)
		return
	}
	if compressed {
		content, err = inflate(content)
		if err != nil {
			m.replyError("judge.write:judger", judgeerr.SystemError{Detail: err.Error()})
			return
		}
	}
	if err := os.WriteFile(filepath.Join(m.executionDir(), "judger.py"), []byte(content), 0o644); err != nil {
		m.replyError("judge.write:judger", judgeerr.SystemError{Detail: err.Error()})
		return
	}
	m.send("judge.write:judger", map[string]any{"status": 0})
}

func (m *Manager) cmdTestcase(payload any) {
	s := m.currentSession()
	if s == nil {
		m.replyError("judge.write:testcase", judgeerr.InvalidField{Field: "session", Reason: "command.init not run yet"})
		return
	}
	index, input, output, compressed, err := parseTestcaseUpload(payload)
	if err != nil {
		m.replyError("judge.write:testcase", err)
		return
	}
	if !s.TestRange.Contains(index) {
		m.replyError("judge.write:testcase", judgeerr.InvalidTestcaseIndex{Index: index})
		return
	}
	if compressed {
		input, err = inflate(input)
		if err != nil {
			m.replyError("judge.write:testcase", judgeerr.SystemError{Detail: err.Error()})
			return
		}
		output, err = inflate(output)
		if err != nil {
			m.replyError("judge.write:testcase", judgeerr.SystemError{Detail: err.Error()})
			return
		}
	}

	dir := filepath.Join(m.testcasesDir(), fmt.Sprint(index))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.replyError("judge.write:testcase", judgeerr.SystemError{Detail: err.Error()})
		return
	}
	if err := os.WriteFile(filepath.Join(dir, s.TestFile.InputName), []byte(input), 0o644); err != nil {
		m.replyError("judge.write:testcase", judgeerr.SystemError{Detail: err.Error()})
		return
	}
	if err := os.WriteFile(filepath.Join(dir, s.TestFile.OutputName), []byte(output), 0o644); err != nil {
		m.replyError("judge.write:testcase", judgeerr.SystemError{Detail: err.Error()})
		return
	}
	m.send("judge.write:testcase", map[string]any{"status": 0, "index": index})
}

func (m *Manager) cmdAbort() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel == nil {
		m.send("error", "no active session")
		return
	}
	cancel()
}

func (m *Manager) cmdDeclareEnv(payload any) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return
	}
	for k, v := range obj {
		if s, ok := v.(string); ok {
			os.Setenv(k, s)
		}
	}
}

func (m *Manager) cmdDeclareCatalogue(payload any, kind string) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	var writeErr error
	if kind == "language" {
		writeErr = catalogue.ReplaceLanguage(m.languagesPath(), raw)
	} else {
		writeErr = catalogue.ReplaceCompiler(m.compilersPath(), raw)
	}
	if writeErr != nil {
		log.Printf("sessionmgr: write %s catalogue: %v", kind, writeErr)
	}
}

func (m *Manager) cmdDeclareLoad() {
	if err := m.cat.Reload(m.languagesPath(), m.compilersPath()); err != nil {
		log.Printf("sessionmgr: reload catalogue: %v", err)
	}
}

func (m *Manager) cmdJudge() {
	s := m.currentSession()
	if s == nil {
		m.replyError("judge.error:system", judgeerr.InvalidField{Field: "session", Reason: "command.init not run yet"})
		m.send("judge.done", nil)
		m.setIdle()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	deps := pipeline.Deps{
		Catalogue: m.cat,
		Box:       m.box,
		Paths:     pipeline.Paths{ExecutionDir: m.executionDir(), TestcasesDir: m.testcasesDir()},
	}
	events, errc := pipeline.Judge(ctx, deps, s)

	for ev := range events {
		m.forwardEvent(ev)
	}

	if err := <-errc; err != nil {
		m.forwardTerminalError(err)
	}

	m.send("judge.done", nil)
	m.setIdle()
}

func (m *Manager) forwardEvent(ev pipeline.Event) {
	switch {
	case ev.Position.IsCompiler:
		m.send("judge.compiler", ev.Message)
	case ev.Position.IsOverall:
		m.send("judge.overall", int(ev.Status))
	default:
		m.send("judge.result", map[string]any{
			"position": ev.Position.Testcase,
			"status":   int(ev.Status),
			"time":     ev.Time,
			"memory":   [2]float64{ev.Memory[0], ev.Memory[1]},
			"point":    ev.Point,
			"feedback": ev.Feedback,
		})
	}
}

func (m *Manager) forwardTerminalError(err error) {
	switch err.(type) {
	case judgeerr.Aborted:
		m.send("judge.aborted", nil)
	case judgeerr.CompileError:
		m.send("judge.error:compiler", err.Error())
	default:
		m.send("judge.error:system", err.Error())
	}
}

func (m *Manager) setIdle() {
	m.mu.Lock()
	m.status = StatusIdle
	m.session = nil
	m.cancel = nil
	m.mu.Unlock()
}

func (m *Manager) currentSession() *session.JudgeSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *Manager) send(topic string, payload any) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.WriteJSON([2]any{topic, payload}); err != nil {
		log.Printf("sessionmgr: write %s: %v", topic, err)
	}
}

func (m *Manager) replyError(topic string, err error) {
	code := errorCode(err)
	m.send(topic, map[string]any{"status": 1, "code": code, "error": err.Error()})
}

func errorCode(err error) string {
	switch err.(type) {
	case judgeerr.MissingField:
		return "missing_field"
	case judgeerr.InvalidField:
		return "invalid_field"
	case judgeerr.InvalidTestcaseIndex:
		return "invalid_testcase_count"
	case judgeerr.CommandNotFound:
		return "command_not_found"
	default:
		return "error"
	}
}

func (m *Manager) executionDir() string { return filepath.Join(m.judgeDir, "execution") }
func (m *Manager) testcasesDir() string { return filepath.Join(m.judgeDir, "testcases") }
func (m *Manager) languagesPath() string {
	return filepath.Join(m.judgeDir, "languages.json")
}
func (m *Manager) compilersPath() string {
	return filepath.Join(m.judgeDir, "compilers.json")
}
