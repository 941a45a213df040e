package schedctl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

func newService(t *testing.T) (*Service, string) {
	t.Helper()
	return newServiceWith(t, t.TempDir(), "")
}

// newServiceWith loads a process-mode config from dir with extra TOML appended.
func newServiceWith(t *testing.T, dir, extra string) (*Service, string) {
	t.Helper()
	p := filepath.Join(dir, "schedctl.toml")
	body := `
[server]
listen = "127.0.0.1:0"

[scheduler]
command = "sleep 30"
grace = "100ms"
stop_timeout = "2s"

[log]
level = "error"
` + extra
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	s, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Stop(context.Background())
		_ = s.Close()
	})
	return s, dir
}

func TestServiceLifecycle(t *testing.T) {
	requireUnix(t)
	s, dir := newService(t)
	ctx := context.Background()

	res, err := s.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !res.Started || res.Handle == "" {
		t.Fatalf("unexpected start result: %+v", res)
	}
	again, err := s.Start(ctx)
	if err != nil || again.Started || again.Handle != res.Handle {
		t.Fatalf("second start should be a no-op: %+v %v", again, err)
	}
	if !s.Status(ctx) {
		t.Fatal("expected running")
	}
	b, err := os.ReadFile(filepath.Join(dir, "run", "scheduler.pid"))
	if err != nil || !strings.Contains(string(b), res.Handle) {
		t.Fatalf("registry should hold the handle: %q %v", b, err)
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.Status(ctx) {
		t.Fatal("expected stopped")
	}
	if snap := s.Snapshot(ctx); snap.Running || snap.Handle != "" {
		t.Fatalf("snapshot after stop: %+v", snap)
	}
}

func TestServiceSettingsAndSummary(t *testing.T) {
	s, _ := newService(t)

	doc, err := s.Settings()
	if err != nil || len(doc.Sections) != 0 {
		t.Fatalf("expected empty settings: %+v %v", doc, err)
	}
	doc.Set("scheduler", "interval", "5m")
	if err := s.ReplaceSettings(doc); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := s.Settings()
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := got.Get("scheduler", "interval"); v != "5m" {
		t.Fatalf("settings not persisted: %+v", got)
	}

	sum, err := s.Summary()
	if err == nil {
		t.Fatal("expected error for missing service log")
	}
	if sum.Total() != 0 || len(sum) == 0 {
		t.Fatalf("expected zeroed skeleton, got %v", sum)
	}
}

func TestServiceHTTP(t *testing.T) {
	s, _ := newService(t)
	srv, err := s.NewHTTPServer()
	if err != nil {
		t.Fatalf("NewHTTPServer: %v", err)
	}
	if srv.TLSConfig != nil {
		t.Fatal("TLS should be off by default")
	}

	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()
	for _, p := range []string{"/healthz", "/api/scheduler/status", "/api/config"} {
		resp, err := http.Get(ts.URL + p)
		if err != nil {
			t.Fatalf("GET %s: %v", p, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status %d", p, resp.StatusCode)
		}
	}

	done := make(chan error, 1)
	go func() { done <- Serve(srv) }()
	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
}

func TestServiceHistory(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")
	s, _ := newServiceWith(t, dir, "\n[history]\nsinks = [\"sqlite://"+filepath.ToSlash(db)+"\"]\n")
	ctx := context.Background()

	if _, err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scheduler/history?limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("history: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Events []struct {
			Type string `json:"type"`
			Mode string `json:"mode"`
		} `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Events) != 2 || body.Events[0].Type != "stop" || body.Events[1].Type != "start" {
		t.Fatalf("unexpected history: %+v", body.Events)
	}
	if body.Events[0].Mode != "process" {
		t.Fatalf("mode not recorded: %+v", body.Events[0])
	}
}
