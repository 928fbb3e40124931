package prompt

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abcfe/abcfe-keyring/internal/prompt/api"
	"github.com/abcfe/abcfe-keyring/internal/prompt/components"
	tea "github.com/charmbracelet/bubbletea"
)

// fakeDaemon serves the subset of the keyring API the approval window uses.
type fakeDaemon struct {
	mu        sync.Mutex
	approvals api.Approvals
	calls     []string
	password  string
}

func (d *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, r.Method+" "+r.URL.Path)

	write := func(status int, data interface{}, errMsg, code string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		raw, _ := json.Marshal(data)
		json.NewEncoder(w).Encode(api.RestResp{Success: errMsg == "", Data: raw, Error: errMsg, Code: code})
	}

	switch r.Method + " " + r.URL.Path {
	case "GET /api/v1/status":
		write(200, api.Status{Status: "LOCKED"}, "", "")
	case "GET /api/v1/approvals":
		write(200, d.approvals, "", "")
	case "GET /api/v1/sign/req-1":
		write(200, api.SignRequest{ID: "req-1", ChainID: "cosmoshub-4", Message: "68656c6c6f", MessageText: "hello"}, "", "")
	case "GET /api/v1/txconfig/req-2":
		write(200, api.TxConfigRequest{ID: "req-2", Config: api.TxConfig{ChainID: "cosmoshub-4", Gas: 200000, Fee: "5000uatom"}}, "", "")
	case "POST /api/v1/sign/req-1/approve", "POST /api/v1/txconfig/req-2/approve", "POST /api/v1/sign/req-1/reject":
		write(200, api.Resolved{ID: "req", Resolved: true}, "", "")
	case "POST /api/v1/unlock":
		var body struct{ Password string }
		json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "pw1" {
			write(401, nil, "wrong password", "wrong_password")
			return
		}
		d.password = body.Password
		write(200, api.Status{Status: "UNLOCKED"}, "", "")
	default:
		write(404, nil, "not found", "unknown_request")
	}
}

func (d *fakeDaemon) called(call string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.calls {
		if c == call {
			return true
		}
	}
	return false
}

func newTestModel(t *testing.T, d *fakeDaemon) Model {
	t.Helper()
	ts := httptest.NewServer(d)
	t.Cleanup(ts.Close)
	return NewModel(Config{LogPrefix: filepath.Join(t.TempDir(), "syslogs")}, api.NewClientWithURL(ts.URL))
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", next)
	}
	return model, cmd
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestFlatten(t *testing.T) {
	items := flatten(&api.Approvals{
		Unlock:   []string{"unlock"},
		TxConfig: []string{"b"},
		Sign:     []string{"a", "c"},
	})
	want := []Item{{KindUnlock, "unlock"}, {KindTxConfig, "b"}, {KindSign, "a"}, {KindSign, "c"}}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d: expected %+v, got %+v", i, want[i], items[i])
		}
	}
	if flatten(nil) != nil {
		t.Error("nil approvals should flatten to nil")
	}
}

func TestModel_ListAndApproveSign(t *testing.T) {
	d := &fakeDaemon{approvals: api.Approvals{Sign: []string{"req-1"}}}
	m := newTestModel(t, d)

	m, _ = update(t, m, m.refresh()())
	if !m.online || len(m.items) != 1 || m.items[0].ID != "req-1" {
		t.Fatalf("unexpected model after refresh: online=%v items=%v", m.online, m.items)
	}

	m, _ = update(t, m, m.fetchDetail(m.items[0])())
	if !strings.Contains(m.detail, "hello") || !strings.Contains(m.detail, "cosmoshub-4") {
		t.Fatalf("detail does not show the message: %q", m.detail)
	}
	if !strings.Contains(m.View(), "req-1") {
		t.Fatal("view does not list the request")
	}

	msg := m.approve(m.items[0])()
	if am, ok := msg.(actionMsg); !ok || am.err != nil {
		t.Fatalf("approve failed: %+v", msg)
	}
	if !d.called("POST /api/v1/sign/req-1/approve") {
		t.Fatal("approve endpoint not called")
	}
}

func TestModel_RejectSign(t *testing.T) {
	d := &fakeDaemon{approvals: api.Approvals{Sign: []string{"req-1"}}}
	m := newTestModel(t, d)
	m, _ = update(t, m, m.refresh()())

	if am := m.reject(m.items[0])().(actionMsg); am.err != nil {
		t.Fatalf("reject failed: %v", am.err)
	}
	if !d.called("POST /api/v1/sign/req-1/reject") {
		t.Fatal("reject endpoint not called")
	}
}

func TestModel_TxConfigDetail(t *testing.T) {
	d := &fakeDaemon{approvals: api.Approvals{TxConfig: []string{"req-2"}}}
	m := newTestModel(t, d)
	m, _ = update(t, m, m.refresh()())

	m, _ = update(t, m, m.fetchDetail(m.items[0])())
	if !strings.Contains(m.detail, "5000uatom") {
		t.Fatalf("detail does not show the fee: %q", m.detail)
	}

	if am := m.approve(m.items[0])().(actionMsg); am.err != nil {
		t.Fatalf("approve failed: %v", am.err)
	}
	if !d.called("POST /api/v1/txconfig/req-2/approve") {
		t.Fatal("approve endpoint not called")
	}
}

func TestModel_UnlockPassword(t *testing.T) {
	d := &fakeDaemon{approvals: api.Approvals{Unlock: []string{"unlock"}}}
	m := newTestModel(t, d)
	m, _ = update(t, m, m.refresh()())

	m, _ = update(t, m, keyRunes("a"))
	if !m.unlocking {
		t.Fatal("approving an unlock request should open the password input")
	}

	m, _ = update(t, m, keyRunes("pw1"))
	if m.password.Value() != "pw1" {
		t.Fatalf("password input did not receive keys: %q", m.password.Value())
	}
	if strings.Contains(m.View(), "pw1") {
		t.Fatal("password must be masked in the view")
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.unlocking || m.password.Value() != "" {
		t.Fatal("enter should close and clear the password input")
	}
	if cmd == nil {
		t.Fatal("enter should submit the password")
	}
	if am := cmd().(actionMsg); am.err != nil {
		t.Fatalf("unlock failed: %v", am.err)
	}
	if d.password != "pw1" {
		t.Fatalf("daemon did not receive the password")
	}
}

func TestModel_UnlockWrongPassword(t *testing.T) {
	d := &fakeDaemon{}
	m := newTestModel(t, d)

	am := m.unlock("nope")().(actionMsg)
	apiErr, ok := am.err.(*api.APIError)
	if !ok || apiErr.Code != "wrong_password" || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected wrong_password API error, got %v", am.err)
	}

	m, _ = update(t, m, am)
	if !strings.Contains(m.notice, "wrong_password") {
		t.Fatalf("notice does not show the error: %q", m.notice)
	}
}

func TestModel_EscCancelsPassword(t *testing.T) {
	d := &fakeDaemon{approvals: api.Approvals{Unlock: []string{"unlock"}}}
	m := newTestModel(t, d)
	m, _ = update(t, m, m.refresh()())

	m, _ = update(t, m, keyRunes("a"))
	m, _ = update(t, m, keyRunes("secret"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.unlocking || m.password.Value() != "" {
		t.Fatal("esc should cancel and clear the password input")
	}
	if d.called("POST /api/v1/unlock") {
		t.Fatal("esc must not submit the password")
	}
}

func TestModel_SelectionSurvivesRefresh(t *testing.T) {
	d := &fakeDaemon{approvals: api.Approvals{Sign: []string{"a", "b", "c"}}}
	m := newTestModel(t, d)
	m, _ = update(t, m, m.refresh()())

	m, _ = update(t, m, keyRunes("j"))
	m, _ = update(t, m, keyRunes("j"))
	if item, _ := m.current(); item.ID != "c" {
		t.Fatalf("expected c selected, got %+v", item)
	}

	d.mu.Lock()
	d.approvals = api.Approvals{Sign: []string{"c", "d"}}
	d.mu.Unlock()
	m, _ = update(t, m, m.refresh()())
	if item, _ := m.current(); item.ID != "c" {
		t.Fatalf("selection lost after refresh: %+v", item)
	}
}

func TestModel_Offline(t *testing.T) {
	m := NewModel(Config{}, api.NewClientWithURL("http://127.0.0.1:1"))
	m, _ = update(t, m, m.refresh()())
	if m.online || m.lastErr == "" {
		t.Fatal("unreachable daemon should be reported offline")
	}
}

func TestLogViewer(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "syslogs")
	lv := components.NewLogViewer(prefix, 2)

	lv.Refresh()
	if lines := lv.GetLines(); len(lines) != 1 || !strings.Contains(lines[0].Message, "로그 파일 없음") {
		t.Fatalf("expected missing file notice, got %+v", lines)
	}

	content := strings.Join([]string{
		`{"level":"INFO","date":"2026-01-02T10:00:00.000Z","msg":"info","Info":"first"}`,
		`{"level":"WARN","date":"2026-01-02T10:00:01.000Z","msg":"warn","Warn":"second"}`,
		`{"level":"ERROR","date":"2026-01-02T10:00:02.000Z","msg":"error","Err":"third"}`,
		"",
	}, "\n")
	if err := os.WriteFile(lv.GetLogPath(), []byte(content), 0o600); err != nil {
		t.Fatalf("write log: %v", err)
	}
	// mtime 해상도 차이 회피
	os.Chtimes(lv.GetLogPath(), time.Now(), time.Now().Add(time.Second))

	if err := lv.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	lines := lv.GetLines()
	if len(lines) != 2 {
		t.Fatalf("expected last 2 lines, got %d", len(lines))
	}
	if lines[0].Message != "second" || lines[0].Level != "WARN" || lines[0].Time != "10:00:01" {
		t.Fatalf("unexpected line: %+v", lines[0])
	}
	if lines[1].Message != "third" || lines[1].Level != "ERROR" {
		t.Fatalf("unexpected line: %+v", lines[1])
	}
}
