package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/loykin/schedctl"
)

const shutdownTimeout = 10 * time.Second

// runServe loads the config, optionally daemonizes, and serves the HTTP API
// until ctx is cancelled. The scheduler is left running on shutdown.
func runServe(ctx context.Context, flags *ServeFlags) error {
	cfg, err := schedctl.LoadConfig(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	pidfile := flags.PidFile
	if pidfile == "" {
		pidfile = cfg.Server.PIDFile
	}
	if flags.Daemonize {
		logfile := flags.LogFile
		if logfile == "" {
			logfile = cfg.Server.LogFile
		}
		return daemonize(pidfile, logfile)
	}

	svc, err := schedctl.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()
	lg := svc.Logger()

	srv, err := svc.NewHTTPServer()
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	if pidfile != "" {
		if err := writePidFile(pidfile, os.Getpid()); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = removePidFile(pidfile) }()
	}

	protocol := "HTTP"
	if srv.TLSConfig != nil {
		protocol = "HTTPS"
	}
	lg.Info("starting schedctl server", "protocol", protocol, "listen", cfg.Server.Listen, "base_path", cfg.Server.BasePath)

	errCh := make(chan error, 1)
	go func() { errCh <- schedctl.Serve(srv) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}
