package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/schedctl/internal/logs"
	"github.com/loykin/schedctl/internal/scheduler"
	"github.com/loykin/schedctl/internal/settings"
)

type fakeScheduler struct {
	mu       sync.Mutex
	running  bool
	launches int
	startErr error
	stopErr  error
}

func (f *fakeScheduler) Start(context.Context) (scheduler.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return scheduler.StartResult{}, f.startErr
	}
	if f.running {
		return scheduler.StartResult{Started: false, Handle: "101"}, nil
	}
	f.launches++
	f.running = true
	return scheduler.StartResult{Started: true, Handle: "101"}, nil
}

func (f *fakeScheduler) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.running = false
	return nil
}

func (f *fakeScheduler) Status(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeScheduler) Snapshot(ctx context.Context) scheduler.Snapshot {
	running := f.Status(ctx)
	s := scheduler.Snapshot{State: scheduler.StateStopped, Running: running, Mode: "process"}
	if running {
		s.State = scheduler.StateRunning
		s.Handle = "101"
	}
	return s
}

type fixture struct {
	h       http.Handler
	sched   *fakeScheduler
	logDir  string
	tail    string
	summary string
	store   *settings.Store
	static  string
}

func setupRouter(t *testing.T, base string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	f := &fixture{
		sched:   &fakeScheduler{},
		logDir:  filepath.Join(dir, "logs"),
		tail:    filepath.Join(dir, "logs", "scheduler.log"),
		summary: filepath.Join(dir, "logs", "service.log"),
		store:   settings.NewStore(filepath.Join(dir, "settings.ini")),
		static:  filepath.Join(dir, "web"),
	}
	r := NewRouter(Options{
		Scheduler:   f.sched,
		Logs:        logs.Reader{Dir: f.logDir},
		SummaryFile: f.summary,
		TailFile:    f.tail,
		Settings:    f.store,
		StaticDir:   f.static,
	}, base)
	f.h = r.Handler()
	return f
}

func doReq(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestSchedulerLifecycleRoutes(t *testing.T) {
	f := setupRouter(t, "/api")

	rec := doReq(t, f.h, http.MethodGet, "/api/scheduler/status", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["running"] != false {
		t.Fatalf("status before start: %d %s", rec.Code, rec.Body.String())
	}

	rec = doReq(t, f.h, http.MethodPost, "/api/scheduler/start", nil)
	m := decode(t, rec)
	if rec.Code != http.StatusOK || m["status"] != "started" || m["handle"] != "101" {
		t.Fatalf("start: %d %v", rec.Code, m)
	}
	rec = doReq(t, f.h, http.MethodPost, "/api/scheduler/start", nil)
	if m := decode(t, rec); m["status"] != "already_running" {
		t.Fatalf("second start: %v", m)
	}
	if f.sched.launches != 1 {
		t.Fatalf("launches = %d", f.sched.launches)
	}

	rec = doReq(t, f.h, http.MethodGet, "/api/scheduler/state", nil)
	if m := decode(t, rec); m["state"] != "running" || m["running"] != true {
		t.Fatalf("state: %v", m)
	}

	rec = doReq(t, f.h, http.MethodPost, "/api/scheduler/stop", nil)
	if m := decode(t, rec); rec.Code != http.StatusOK || m["status"] != "stopped" {
		t.Fatalf("stop: %d %v", rec.Code, m)
	}
}

func TestSchedulerErrorsAre500(t *testing.T) {
	f := setupRouter(t, "")
	f.sched.startErr = &scheduler.StartError{Handle: "7", Output: "Traceback: boom", Err: scheduler.ErrNotAlive}
	rec := doReq(t, f.h, http.MethodPost, "/scheduler/start", nil)
	m := decode(t, rec)
	if rec.Code != http.StatusInternalServerError || m["status"] != "error" || !strings.Contains(m["error"].(string), "Traceback: boom") {
		t.Fatalf("start failure: %d %v", rec.Code, m)
	}

	f.sched.stopErr = errors.New("docker stop scheduler: exit status 1")
	rec = doReq(t, f.h, http.MethodPost, "/scheduler/stop", nil)
	if m := decode(t, rec); rec.Code != http.StatusInternalServerError || m["status"] != "error" {
		t.Fatalf("stop failure: %d %v", rec.Code, m)
	}
}

func TestSchedulerLogs(t *testing.T) {
	f := setupRouter(t, "")
	rec := doReq(t, f.h, http.MethodGet, "/scheduler/logs", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["log"] != "" {
		t.Fatalf("missing log: %d %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(f.tail); err != nil {
		t.Fatalf("tail file should be created: %v", err)
	}

	var b strings.Builder
	for i := 1; i <= 150; i++ {
		fmt.Fprintf(&b, "l%d\n", i)
	}
	writeFile(t, f.tail, b.String())
	rec = doReq(t, f.h, http.MethodGet, "/scheduler/logs?lines=3", nil)
	if got := decode(t, rec)["log"]; got != "l148\nl149\nl150" {
		t.Fatalf("lines=3: %q", got)
	}
	rec = doReq(t, f.h, http.MethodGet, "/scheduler/logs?lines=abc", nil)
	got := decode(t, rec)["log"].(string)
	if n := len(strings.Split(got, "\n")); n != 100 {
		t.Fatalf("bad lines should default to 100, got %d", n)
	}
	rec = doReq(t, f.h, http.MethodGet, "/scheduler/logs?lines=1099511627776", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("huge lines: %d", rec.Code)
	}
	if n := len(strings.Split(decode(t, rec)["log"].(string), "\n")); n != 150 {
		t.Fatalf("huge lines should return the whole file, got %d", n)
	}
}

func TestLogFiles(t *testing.T) {
	f := setupRouter(t, "")
	rec := doReq(t, f.h, http.MethodGet, "/log-files", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing date: %d", rec.Code)
	}
	rec = doReq(t, f.h, http.MethodGet, "/log-files?date=09-09-2025", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: %d", rec.Code)
	}
	rec = doReq(t, f.h, http.MethodGet, "/log-files?date=2025-09-09", nil)
	m := decode(t, rec)
	if rec.Code != http.StatusOK {
		t.Fatalf("no dir: %d", rec.Code)
	}
	if files, ok := m["files"].([]any); !ok || len(files) != 0 {
		t.Fatalf("expected empty files list, got %v", m["files"])
	}

	writeFile(t, filepath.Join(f.logDir, "2025", "September", "run_2025-September-09_1.txt"), "INFO network ok\n")
	rec = doReq(t, f.h, http.MethodGet, "/log-files?date=2025-09-09", nil)
	m = decode(t, rec)
	if files := m["files"].([]any); len(files) != 1 || files[0] != "run_2025-September-09_1.txt" {
		t.Fatalf("files: %v", m["files"])
	}
	if m["local_path"] != filepath.Join(f.logDir, "2025", "September") {
		t.Fatalf("local_path: %v", m["local_path"])
	}
}

func TestLogFileContent(t *testing.T) {
	f := setupRouter(t, "")
	writeFile(t, filepath.Join(f.logDir, "2025", "September", "a.txt"), "hello")

	cases := []struct {
		query string
		code  int
	}{
		{"filename=a.txt&date=2025-09-09", http.StatusOK},
		{"filename=a.txt", http.StatusBadRequest},
		{"date=2025-09-09", http.StatusBadRequest},
		{"filename=../secret&date=2025-09-09", http.StatusBadRequest},
		{"filename=../secret&date=garbage", http.StatusBadRequest},
		{"filename=a.txt&date=garbage", http.StatusBadRequest},
		{"filename=absent.txt&date=2025-09-09", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := doReq(t, f.h, http.MethodGet, "/log-file-content?"+tc.query, nil)
		if rec.Code != tc.code {
			t.Fatalf("%s: got %d want %d (%s)", tc.query, rec.Code, tc.code, rec.Body.String())
		}
	}
	rec := doReq(t, f.h, http.MethodGet, "/log-file-content?filename=a.txt&date=2025-09-09", nil)
	if m := decode(t, rec); m["content"] != "hello" || m["filename"] != "a.txt" {
		t.Fatalf("content: %v", m)
	}
}

func TestSummaryRoutes(t *testing.T) {
	f := setupRouter(t, "")
	rec := doReq(t, f.h, http.MethodGet, "/logs/summary", nil)
	m := decode(t, rec)
	if rec.Code != http.StatusNotFound || m["error"] == nil {
		t.Fatalf("missing summary file: %d %v", rec.Code, m)
	}
	if sk, ok := m["summary"].(map[string]any); !ok || len(sk) != len(logs.Categories) {
		t.Fatalf("skeleton missing: %v", m["summary"])
	}

	writeFile(t, f.summary, "INFO database connected successfully\nERROR network timeout\nrandom text\n")
	rec = doReq(t, f.h, http.MethodGet, "/logs/summary", nil)
	m = decode(t, rec)
	sum := m["summary"].(map[string]any)
	if rec.Code != http.StatusOK || sum["database"].(map[string]any)["success"] != float64(1) || sum["network"].(map[string]any)["error"] != float64(1) {
		t.Fatalf("summary: %d %v", rec.Code, m)
	}

	rec = doReq(t, f.h, http.MethodGet, "/logs/summary-by-date", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("summary-by-date without date: %d", rec.Code)
	}
	rec = doReq(t, f.h, http.MethodGet, "/logs/summary-by-date?date=2025-09-09", nil)
	if m := decode(t, rec); rec.Code != http.StatusNotFound || m["summary"] == nil {
		t.Fatalf("summary-by-date no files: %d %v", rec.Code, m)
	}
	writeFile(t, filepath.Join(f.logDir, "2025", "September", "x_2025-September-09_1.txt"), "WARNING hardware hot\n")
	rec = doReq(t, f.h, http.MethodGet, "/logs/summary-by-date?date=2025-09-09", nil)
	m = decode(t, rec)
	if rec.Code != http.StatusOK || m["summary"].(map[string]any)["hardware"].(map[string]any)["warning"] != float64(1) {
		t.Fatalf("summary-by-date: %d %v", rec.Code, m)
	}
}

func TestConfigRoutes(t *testing.T) {
	f := setupRouter(t, "/api")
	rec := doReq(t, f.h, http.MethodGet, "/api/config", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "{}" {
		t.Fatalf("empty config: %d %s", rec.Code, rec.Body.String())
	}

	rec = doReq(t, f.h, http.MethodPost, "/api/config", `{"zeta":{"b":2,"a":true},"alpha":{"x":"1"}}`)
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "success" {
		t.Fatalf("post config: %d %s", rec.Code, rec.Body.String())
	}
	rec = doReq(t, f.h, http.MethodGet, "/api/config", nil)
	if got := strings.TrimSpace(rec.Body.String()); got != `{"zeta":{"b":"2","a":"true"},"alpha":{"x":"1"}}` {
		t.Fatalf("ordered config: %s", got)
	}

	for _, bad := range []string{`[1,2]`, `{"a":"flat"}`, `not json`, `{"a":{"k":"x\"\"\"y\nz"}}`} {
		rec = doReq(t, f.h, http.MethodPost, "/api/config", bad)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("payload %q: got %d", bad, rec.Code)
		}
	}
	rec = doReq(t, f.h, http.MethodGet, "/api/config", nil)
	if !strings.Contains(rec.Body.String(), "zeta") {
		t.Fatalf("rejected payloads must not touch the file: %s", rec.Body.String())
	}
}

func TestHealthzStaticAndMetrics(t *testing.T) {
	f := setupRouter(t, "/api")
	rec := doReq(t, f.h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}

	writeFile(t, filepath.Join(f.static, "index.html"), "<h1>dashboard</h1>")
	writeFile(t, filepath.Join(f.static, "assets", "app.js"), "console.log(1)")
	rec = doReq(t, f.h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "dashboard") {
		t.Fatalf("index: %d %s", rec.Code, rec.Body.String())
	}
	rec = doReq(t, f.h, http.MethodGet, "/assets/app.js", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("asset: %d", rec.Code)
	}
	rec = doReq(t, f.h, http.MethodGet, "/../../etc/passwd", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("escape: %d", rec.Code)
	}
	rec = doReq(t, f.h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("metrics should be off by default: %d", rec.Code)
	}

	gin.SetMode(gin.TestMode)
	h := NewRouter(Options{Metrics: true}, "").Handler()
	rec = doReq(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics enabled: %d", rec.Code)
	}
}

func TestServeReturnsNilOnShutdown(t *testing.T) {
	srv := NewServer("127.0.0.1:0", http.NotFoundHandler(), nil)
	done := make(chan error, 1)
	go func() { done <- Serve(srv) }()
	// Close may race ahead of ListenAndServe; either way Serve must return nil.
	for {
		_ = srv.Close()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Serve: %v", err)
			}
			return
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}
