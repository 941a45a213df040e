package server

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/schedctl/internal/history"
	"github.com/loykin/schedctl/internal/logs"
	"github.com/loykin/schedctl/internal/metrics"
	"github.com/loykin/schedctl/internal/scheduler"
	"github.com/loykin/schedctl/internal/settings"
)

// Scheduler is the lifecycle surface the router drives.
type Scheduler interface {
	Start(ctx context.Context) (scheduler.StartResult, error)
	Stop(ctx context.Context) error
	Status(ctx context.Context) bool
	Snapshot(ctx context.Context) scheduler.Snapshot
}

// Options wires the router to its collaborators.
type Options struct {
	Scheduler   Scheduler
	Logs        logs.Reader
	SummaryFile string // file behind /logs/summary
	TailFile    string // file behind /scheduler/logs
	TailLines   int    // default for /scheduler/logs
	Settings    *settings.Store
	History     history.Reader // optional, enables /scheduler/history
	HistoryName string         // worker name to query History for
	StaticDir   string
	Metrics     bool // expose /metrics and record HTTP metrics
	Logger      *slog.Logger
}

// Router provides embeddable HTTP handlers for the control plane.
// Endpoints, relative to basePath:
//
//	POST /scheduler/start
//	POST /scheduler/stop
//	GET  /scheduler/status
//	GET  /scheduler/state
//	GET  /scheduler/logs?lines=N
//	GET  /scheduler/history?limit=N (when a queryable history sink is configured)
//	GET  /log-files?date=YYYY-MM-DD
//	GET  /log-file-content?filename=...&date=YYYY-MM-DD
//	GET  /logs/summary
//	GET  /logs/summary-by-date?date=YYYY-MM-DD
//	GET  /config
//	POST /config
//
// /healthz and /metrics are served at the root. Unmatched GETs fall back to
// files under StaticDir.
type Router struct {
	o        Options
	basePath string
	log      *slog.Logger
}

// NewRouter constructs a Router. basePath may be empty or start with '/'.
func NewRouter(o Options, basePath string) *Router {
	lg := o.Logger
	if lg == nil {
		lg = slog.Default()
	}
	if o.TailLines <= 0 {
		o.TailLines = logs.DefaultTailLines
	}
	return &Router{o: o, basePath: sanitizeBase(basePath), log: lg.With("component", "http")}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	if r.o.Metrics {
		g.Use(metrics.GinMiddleware())
		g.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	g.GET("/healthz", func(c *gin.Context) { writeJSON(c, http.StatusOK, gin.H{"ok": true}) })

	group := g.Group(r.basePath)
	if r.o.Scheduler != nil {
		group.POST("/scheduler/start", r.handleStart)
		group.POST("/scheduler/stop", r.handleStop)
		group.GET("/scheduler/status", r.handleStatus)
		group.GET("/scheduler/state", r.handleState)
	}
	group.GET("/scheduler/logs", r.handleTail)
	if r.o.History != nil {
		group.GET("/scheduler/history", r.handleHistory)
	}
	group.GET("/log-files", r.handleLogFiles)
	group.GET("/log-file-content", r.handleLogFileContent)
	group.GET("/logs/summary", r.handleSummary)
	group.GET("/logs/summary-by-date", r.handleSummaryByDate)
	if r.o.Settings != nil {
		group.GET("/config", r.handleGetConfig)
		group.POST("/config", r.handlePostConfig)
	}
	g.NoRoute(r.handleStatic)
	return g
}

// NewServer builds an http.Server for handler on addr. tlsCfg may be nil.
func NewServer(addr string, handler http.Handler, tlsCfg *tls.Config) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Serve runs srv until it is shut down, using TLS when srv.TLSConfig is set.
// http.ErrServerClosed is reported as nil.
func Serve(srv *http.Server) error {
	var err error
	if srv.TLSConfig != nil {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type statusResp struct {
	Status string `json:"status"`
	Handle string `json:"handle,omitempty"`
	Error  string `json:"error,omitempty"`
}

type summaryResp struct {
	Summary logs.Summary `json:"summary"`
	Error   string       `json:"error,omitempty"`
}

func (r *Router) fail(c *gin.Context, code int, err error, body any) {
	if code >= http.StatusInternalServerError {
		r.log.Error("request failed", "route", c.FullPath(), "err", err)
	} else {
		r.log.Debug("request rejected", "route", c.FullPath(), "err", err)
	}
	writeJSON(c, code, body)
}

func (r *Router) handleStart(c *gin.Context) {
	res, err := r.o.Scheduler.Start(c.Request.Context())
	if err != nil {
		r.fail(c, http.StatusInternalServerError, err, statusResp{Status: "error", Error: err.Error()})
		return
	}
	status := "started"
	if !res.Started {
		status = "already_running"
	}
	writeJSON(c, http.StatusOK, statusResp{Status: status, Handle: res.Handle})
}

func (r *Router) handleStop(c *gin.Context) {
	if err := r.o.Scheduler.Stop(c.Request.Context()); err != nil {
		r.fail(c, http.StatusInternalServerError, err, statusResp{Status: "error", Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, statusResp{Status: "stopped"})
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"running": r.o.Scheduler.Status(c.Request.Context())})
}

func (r *Router) handleState(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.o.Scheduler.Snapshot(c.Request.Context()))
}

func (r *Router) handleTail(c *gin.Context) {
	n := r.o.TailLines
	if s := c.Query("lines"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			n = v
		}
	}
	lines, err := logs.ReadTail(r.o.TailFile, n)
	if err != nil {
		r.fail(c, http.StatusInternalServerError, err, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"log": strings.Join(lines, "\n")})
}

func (r *Router) handleHistory(c *gin.Context) {
	limit := history.DefaultRecentLimit
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			r.fail(c, http.StatusBadRequest, err, errorResp{Error: "limit must be a positive integer"})
			return
		}
		limit = min(v, 1000)
	}
	events, err := r.o.History.Recent(c.Request.Context(), r.o.HistoryName, limit)
	if err != nil {
		r.fail(c, http.StatusInternalServerError, err, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"events": events})
}

func (r *Router) requireDate(c *gin.Context) (time.Time, bool) {
	s := c.Query("date")
	if s == "" {
		r.fail(c, http.StatusBadRequest, logs.ErrInvalidDate, errorResp{Error: "missing date parameter"})
		return time.Time{}, false
	}
	d, err := logs.ParseDate(s)
	if err != nil {
		r.fail(c, http.StatusBadRequest, err, errorResp{Error: err.Error()})
		return time.Time{}, false
	}
	return d, true
}

func (r *Router) handleLogFiles(c *gin.Context) {
	d, ok := r.requireDate(c)
	if !ok {
		return
	}
	files, err := r.o.Logs.ListFilesForDate(d)
	if err != nil {
		r.fail(c, statusFor(err), err, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"files": files, "local_path": r.o.Logs.DateDir(d)})
}

func (r *Router) handleLogFileContent(c *gin.Context) {
	name := c.Query("filename")
	if name == "" || c.Query("date") == "" {
		r.fail(c, http.StatusBadRequest, logs.ErrInvalidFilename, errorResp{Error: "missing filename or date parameter"})
		return
	}
	if err := logs.ValidateFilename(name); err != nil {
		r.fail(c, http.StatusBadRequest, err, errorResp{Error: err.Error()})
		return
	}
	d, ok := r.requireDate(c)
	if !ok {
		return
	}
	content, err := r.o.Logs.ReadFile(d, name)
	if err != nil {
		r.fail(c, statusFor(err), err, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"filename": name, "content": content, "local_path": r.o.Logs.DateDir(d)})
}

func (r *Router) handleSummary(c *gin.Context) {
	s, err := logs.Summarize(r.o.SummaryFile)
	if err != nil {
		r.fail(c, statusFor(err), err, summaryResp{Summary: s, Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, summaryResp{Summary: s})
}

func (r *Router) handleSummaryByDate(c *gin.Context) {
	d, ok := r.requireDate(c)
	if !ok {
		return
	}
	s, err := r.o.Logs.SummarizeByDate(d)
	if err != nil {
		r.fail(c, statusFor(err), err, summaryResp{Summary: s, Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, summaryResp{Summary: s})
}

func (r *Router) handleGetConfig(c *gin.Context) {
	doc, err := r.o.Settings.Read()
	if err != nil {
		r.fail(c, http.StatusInternalServerError, err, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, doc)
}

func (r *Router) handlePostConfig(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 4<<20))
	if err != nil {
		r.fail(c, http.StatusBadRequest, err, errorResp{Error: err.Error()})
		return
	}
	doc, err := settings.ParseDocument(body)
	if err != nil {
		r.fail(c, http.StatusBadRequest, err, errorResp{Error: err.Error()})
		return
	}
	if err := r.o.Settings.Write(doc); err != nil {
		r.fail(c, statusFor(err), err, errorResp{Error: err.Error()})
		return
	}
	r.log.Info("config replaced", "sections", len(doc.Sections))
	writeJSON(c, http.StatusOK, statusResp{Status: "success"})
}

func (r *Router) handleStatic(c *gin.Context) {
	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		if p := staticFile(r.o.StaticDir, c.Request.URL.Path); p != "" {
			c.File(p)
			return
		}
	}
	writeJSON(c, http.StatusNotFound, errorResp{Error: "not found"})
}
