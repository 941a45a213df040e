// Package schedctl embeds the scheduler control plane: lifecycle control of
// a single scheduler worker, log inspection and the INI settings store,
// served over HTTP.
package schedctl

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/schedctl/internal/config"
	"github.com/loykin/schedctl/internal/logs"
	"github.com/loykin/schedctl/internal/metrics"
	"github.com/loykin/schedctl/internal/scheduler"
	"github.com/loykin/schedctl/internal/server"
	"github.com/loykin/schedctl/internal/settings"
	itls "github.com/loykin/schedctl/internal/tls"
)

// Re-exported so embedders can hold the values without importing internal packages.
type (
	Config      = config.Config
	StartResult = scheduler.StartResult
	Snapshot    = scheduler.Snapshot
	Summary     = logs.Summary
	Document    = settings.Document
)

// LoadConfig reads a TOML config file (path may be empty) with SCHEDCTL_*
// environment overrides.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// Service is a fully wired control plane.
type Service struct {
	cfg      *Config
	log      *slog.Logger
	ctrl     *scheduler.Controller
	settings *settings.Store
	logs     logs.Reader
	router   *server.Router
}

// New wires the controller, registry, history sinks, log reader and settings
// store described by cfg. Metrics are registered on the default registry when
// enabled.
func New(ctx context.Context, cfg *Config) (*Service, error) {
	lg := cfg.SlogConfig().New()
	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return nil, err
		}
	}
	ctrl, err := scheduler.FromConfig(ctx, cfg, lg)
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:      cfg,
		log:      lg,
		ctrl:     ctrl,
		settings: settings.NewStore(cfg.Settings.Path),
		logs:     logs.Reader{Dir: cfg.Logs.Dir, Ext: cfg.Logs.Ext, DateFile: cfg.Logs.DateFile},
	}
	s.router = server.NewRouter(server.Options{
		Scheduler:   ctrl,
		Logs:        s.logs,
		SummaryFile: cfg.Logs.SummaryFile,
		TailFile:    cfg.TailFile(),
		TailLines:   cfg.Logs.TailLines,
		Settings:    s.settings,
		History:     ctrl.History(),
		HistoryName: ctrl.Name(),
		StaticDir:   cfg.Server.StaticDir,
		Metrics:     cfg.Metrics.Enabled,
		Logger:      lg,
	}, cfg.Server.BasePath)
	return s, nil
}

// Logger returns the service logger.
func (s *Service) Logger() *slog.Logger { return s.log }

// Start launches the scheduler unless it is already running.
func (s *Service) Start(ctx context.Context) (StartResult, error) { return s.ctrl.Start(ctx) }

// Stop stops the scheduler. A scheduler that is already gone counts as stopped.
func (s *Service) Stop(ctx context.Context) error { return s.ctrl.Stop(ctx) }

// Status reports whether the scheduler is alive.
func (s *Service) Status(ctx context.Context) bool { return s.ctrl.Status(ctx) }

// Snapshot returns the detailed lifecycle state.
func (s *Service) Snapshot(ctx context.Context) Snapshot { return s.ctrl.Snapshot(ctx) }

// Summary classifies the service log.
func (s *Service) Summary() (Summary, error) { return logs.Summarize(s.cfg.Logs.SummaryFile) }

// Settings returns the settings document.
func (s *Service) Settings() (*Document, error) { return s.settings.Read() }

// ReplaceSettings overwrites the settings file with doc.
func (s *Service) ReplaceSettings(doc *Document) error { return s.settings.Write(doc) }

// Handler returns the HTTP API, mountable in any mux.
func (s *Service) Handler() http.Handler { return s.router.Handler() }

// NewHTTPServer builds the configured HTTP server, with TLS when enabled.
// Run it with Serve.
func (s *Service) NewHTTPServer() (*http.Server, error) {
	tlsCfg, err := itls.SetupTLS(s.cfg.Server.TLS)
	if err != nil {
		return nil, err
	}
	return server.NewServer(s.cfg.Server.Listen, s.Handler(), tlsCfg), nil
}

// Serve runs srv until it is shut down.
func Serve(srv *http.Server) error { return server.Serve(srv) }

// Close releases the registry and history sinks. The scheduler itself keeps
// running.
func (s *Service) Close() error { return s.ctrl.Close() }

// RegisterMetrics registers the collectors on r.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
