package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	body   string
}

func newDaemon(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{r.Method, r.URL.Path, r.URL.RawQuery, string(b)})
		r.Body = io.NopCloser(bytes.NewReader(b))
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/api/", Timeout: 2 * time.Second}), &calls
}

func TestDefaults(t *testing.T) {
	c := New(Config{})
	require.Equal(t, DefaultBaseURL, c.baseURL)
	require.Equal(t, "http://127.0.0.1:6001", c.rootURL)
	require.Equal(t, 10*time.Second, c.client.Timeout)
}

func TestIsReachableUsesHealthz(t *testing.T) {
	c, calls := newDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	require.True(t, c.IsReachable(context.Background()))
	require.Equal(t, "/healthz", (*calls)[0].path)

	dead := New(Config{BaseURL: "http://127.0.0.1:1/api", Timeout: 200 * time.Millisecond})
	require.False(t, dead.IsReachable(context.Background()))
}

func TestSchedulerLifecycle(t *testing.T) {
	running := false
	c, calls := newDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/scheduler/start":
			if running {
				_, _ = w.Write([]byte(`{"status":"already_running","handle":"4242"}`))
				return
			}
			running = true
			_, _ = w.Write([]byte(`{"status":"started","handle":"4242"}`))
		case "/api/scheduler/stop":
			running = false
			_, _ = w.Write([]byte(`{"status":"stopped"}`))
		case "/api/scheduler/status":
			_ = json.NewEncoder(w).Encode(map[string]bool{"running": running})
		case "/api/scheduler/state":
			_, _ = w.Write([]byte(`{"state":"running","running":true,"handle":"4242","mode":"process"}`))
		}
	})
	ctx := context.Background()

	res, err := c.StartScheduler(ctx)
	require.NoError(t, err)
	require.Equal(t, "4242", res.Handle)
	require.False(t, res.AlreadyRunning())

	res, err = c.StartScheduler(ctx)
	require.NoError(t, err)
	require.True(t, res.AlreadyRunning())

	up, err := c.SchedulerRunning(ctx)
	require.NoError(t, err)
	require.True(t, up)

	st, err := c.SchedulerState(ctx)
	require.NoError(t, err)
	require.Equal(t, SchedulerState{State: "running", Running: true, Handle: "4242", Mode: "process"}, st)

	require.NoError(t, c.StopScheduler(ctx))
	up, err = c.SchedulerRunning(ctx)
	require.NoError(t, err)
	require.False(t, up)

	require.Equal(t, http.MethodPost, (*calls)[0].method)
	require.Equal(t, http.MethodGet, (*calls)[2].method)
}

func TestStartFailureIsAPIError(t *testing.T) {
	c, _ := newDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","error":"scheduler exited during grace period: boom"}`))
	})
	res, err := c.StartScheduler(context.Background())
	require.Error(t, err)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, http.StatusInternalServerError, ae.StatusCode)
	require.Contains(t, ae.Message, "boom")
	require.Equal(t, "error", res.Status)
}

func TestNonJSONErrorBody(t *testing.T) {
	c, _ := newDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	err := c.StopScheduler(context.Background())
	require.EqualError(t, err, "HTTP 502")
}

func TestSchedulerLogsQuery(t *testing.T) {
	c, calls := newDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"log":"a\nb"}`))
	})
	out, err := c.SchedulerLogs(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, "a\nb", out)
	require.Equal(t, "lines=5", (*calls)[0].query)

	_, err = c.SchedulerLogs(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, (*calls)[1].query)
}

func TestLogFilesAndContent(t *testing.T) {
	c, calls := newDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/log-files":
			_, _ = w.Write([]byte(`{"files":["2025-September-10_a.txt"],"local_path":"logs/2025/September"}`))
		case "/api/log-file-content":
			if r.URL.Query().Get("filename") == "missing.txt" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":"log file not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{"filename":"x.txt","content":"hello","local_path":"logs/2025/September"}`))
		}
	})
	ctx := context.Background()
	day := time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC)

	files, err := c.LogFiles(ctx, day)
	require.NoError(t, err)
	require.Equal(t, []string{"2025-September-10_a.txt"}, files.Files)
	require.Equal(t, "date=2025-09-10", (*calls)[0].query)

	content, err := c.LogFileContent(ctx, day, "x.txt")
	require.NoError(t, err)
	require.Equal(t, "hello", content.Content)

	_, err = c.LogFileContent(ctx, day, "missing.txt")
	require.True(t, IsNotFound(err))
}

func TestSummaryKeepsSkeletonOnError(t *testing.T) {
	c, _ := newDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/logs/summary" {
			_, _ = w.Write([]byte(`{"summary":{"database":{"error":2,"success":1,"warning":0}}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"summary":{"database":{"error":0,"success":0,"warning":0}},"error":"no log files"}`))
	})
	ctx := context.Background()

	s, err := c.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, s["database"]["error"])
	require.Equal(t, 3, s.Total())

	s, err = c.SummaryByDate(ctx, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	require.True(t, IsNotFound(err))
	require.Contains(t, s, "database")
	require.Zero(t, s.Total())
}

func TestConfigRoundTrip(t *testing.T) {
	stored := []byte(`{}`)
	c, calls := newDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			stored, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{"status":"success"}`))
			return
		}
		_, _ = w.Write(stored)
	})
	ctx := context.Background()

	require.NoError(t, c.SetConfig(ctx, []byte(`{"B":{"z":"1","a":"2"}}`)))
	require.Equal(t, `{"B":{"z":"1","a":"2"}}`, (*calls)[0].body)

	got, err := c.GetConfig(ctx)
	require.NoError(t, err)
	require.JSONEq(t, `{"B":{"z":"1","a":"2"}}`, string(got))

	require.NoError(t, c.SetConfig(ctx, map[string]map[string]string{"A": {"k": "v"}}))
	require.JSONEq(t, `{"A":{"k":"v"}}`, (*calls)[2].body)
}

func TestHistory(t *testing.T) {
	c, calls := newDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"events":[{"type":"stop","occurred_at":"2025-09-10T11:44:28Z","name":"scheduler","handle":"4242"}]}`))
	})
	events, err := c.History(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "stop", events[0].Type)
	require.Equal(t, 2025, events[0].OccurredAt.Year())
	require.Equal(t, "limit=5", (*calls)[0].query)

	missing, _ := newDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})
	_, err = missing.History(context.Background(), 0)
	require.True(t, IsNotFound(err))
}
