package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/schedctl/internal/logger"
	"github.com/loykin/schedctl/pkg/client"
)

// Drives a running daemon (schedctl serve) through the Go client: start the
// scheduler, show its state and log tail, then summarize today's logs.
func main() {
	logCfg := logger.Config{Slog: logger.SlogConfig{
		Level:      logger.LevelInfo,
		Format:     logger.FormatText,
		Color:      os.Getenv("CI") != "true",
		TimeStamps: true,
	}}
	slogger := logCfg.NewSlogger()
	slog.SetDefault(slogger)

	cfg := client.DefaultConfig()
	if u := os.Getenv("SCHEDCTL_URL"); u != "" {
		cfg.BaseURL = u
	}
	cfg.Logger = slogger
	api := client.New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !api.IsReachable(ctx) {
		slog.Warn("schedctl daemon not reachable", "url", cfg.BaseURL, "hint", "schedctl serve schedctl.toml")
		return
	}

	res, err := api.StartScheduler(ctx)
	if err != nil {
		slog.Error("start failed", "error", err)
		os.Exit(1)
	}
	slog.Info("start", "status", res.Status, "handle", res.Handle)

	st, err := api.SchedulerState(ctx)
	if err != nil {
		slog.Error("state failed", "error", err)
		os.Exit(1)
	}
	slog.Info("state", "state", st.State, "running", st.Running, "mode", st.Mode, "started_at", st.StartedAt)

	if tail, err := api.SchedulerLogs(ctx, 10); err == nil {
		slog.Info("log tail", "lines", tail)
	}

	sum, err := api.SummaryByDate(ctx, time.Now())
	if client.IsNotFound(err) {
		slog.Info("no log files for today")
	} else if err != nil {
		slog.Error("summary failed", "error", err)
	} else {
		for cat, outcomes := range sum {
			slog.Info("summary", "category", cat, "error", outcomes["error"], "success", outcomes["success"], "warning", outcomes["warning"])
		}
	}
}
