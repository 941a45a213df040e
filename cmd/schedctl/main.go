package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot(os.Stdout)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot(out io.Writer) *cobra.Command {
	globalFlags := &GlobalFlags{}
	c := &command{out: out, flags: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createStartCommand(c),
		createStopCommand(c),
		createStatusCommand(c),
		createLogsCommand(c),
		createFilesCommand(c),
		createFileCommand(c),
		createSummaryCommand(c),
		createHistoryCommand(c),
		createConfigCommand(c),
		createInitCommand(out),
	)
	return root
}

// createRootCommand creates the root command with the persistent connection flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "schedctl",
		Short: "Scheduler control plane",
		Long: `schedctl starts, stops and monitors a scheduler worker, exposes its logs
and an INI settings file over HTTP.

Examples:
  schedctl serve --config=schedctl.toml   # Run the daemon
  schedctl start                          # Start the scheduler via the daemon
  schedctl status --detailed
  schedctl logs --lines=50
  schedctl summary --date=2025-09-10
  schedctl config get`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "daemon URL (default derived from --config, else http://127.0.0.1:6001/api)")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 30*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&flags.Insecure, "insecure", false, "skip TLS certificate verification")
	root.PersistentFlags().StringVar(&flags.CACert, "ca-cert", "", "CA certificate used to verify the daemon")

	return root
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Run the schedctl daemon",
		Long: `Run the HTTP control plane. Configuration is read from the TOML file
given as argument or via --config, with SCHEDCTL_* environment overrides.

Examples:
  schedctl serve schedctl.toml
  schedctl serve --config=schedctl.toml --daemonize`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serveFlags.ConfigPath = globalFlags.ConfigPath
			if len(args) > 0 {
				serveFlags.ConfigPath = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, serveFlags)
		},
	}

	cmd.Flags().BoolVar(&serveFlags.Daemonize, "daemonize", false, "run as daemon in background")
	cmd.Flags().StringVar(&serveFlags.PidFile, "pidfile", "", "write the daemon PID to this file (default [server].pidfile)")
	cmd.Flags().StringVar(&serveFlags.LogFile, "logfile", "", "redirect daemon output to file (default [server].logfile)")

	return cmd
}

func createStartCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Ask the daemon to start the scheduler. Starting an already running
scheduler is a no-op and reports the existing handle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error { return c.Start(cmd.Context()) },
	}
}

func createStopCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the scheduler",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return c.Stop(cmd.Context()) },
	}
}

func createStatusCommand(c *command) *cobra.Command {
	var detailed bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the scheduler is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(cmd.Context(), detailed)
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "show lifecycle state, handle and start time")
	return cmd
}

func createLogsCommand(c *command) *cobra.Command {
	f := &LogsFlags{}
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the tail of the scheduler log",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return c.Logs(cmd.Context(), *f) },
	}
	cmd.Flags().IntVar(&f.Lines, "lines", 0, "number of lines (default: daemon setting)")
	return cmd
}

func createFilesCommand(c *command) *cobra.Command {
	f := &DateFlags{}
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List the log files of a date",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return c.Files(cmd.Context(), *f) },
	}
	cmd.Flags().StringVar(&f.Date, "date", "", "date as YYYY-MM-DD (default today)")
	return cmd
}

func createFileCommand(c *command) *cobra.Command {
	f := &DateFlags{}
	cmd := &cobra.Command{
		Use:   "file <filename>",
		Short: "Print one dated log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Filename = args[0]
			return c.FileContent(cmd.Context(), *f)
		},
	}
	cmd.Flags().StringVar(&f.Date, "date", "", "date as YYYY-MM-DD (default today)")
	return cmd
}

func createSummaryCommand(c *command) *cobra.Command {
	f := &DateFlags{}
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize log lines by category and outcome",
		Long: `Without --date the service log is summarized; with --date all log files
of that day are aggregated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error { return c.Summary(cmd.Context(), *f) },
	}
	cmd.Flags().StringVar(&f.Date, "date", "", "date as YYYY-MM-DD")
	return cmd
}

func createHistoryCommand(c *command) *cobra.Command {
	f := &HistoryFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scheduler start and stop events",
		Long:  `Requires a sqlite or postgres history sink on the daemon.`,
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return c.History(cmd.Context(), *f) },
	}
	cmd.Flags().IntVar(&f.Limit, "limit", 20, "maximum number of events")
	return cmd
}

func createConfigCommand(c *command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or replace the settings file",
	}
	get := &cobra.Command{
		Use:   "get",
		Short: "Print the settings document as JSON",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return c.ConfigGet(cmd.Context()) },
	}
	f := &ConfigSetFlags{}
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the settings document",
		Long: `Replace the whole settings file with a JSON object of sections.
The document is read from --file, or from stdin when --file is "-" or empty.

Example:
  echo '{"scheduler":{"interval":"5m"}}' | schedctl config set`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.ConfigSet(cmd.Context(), *f, cmd.InOrStdin())
		},
	}
	set.Flags().StringVar(&f.File, "file", "", "JSON file to upload")
	cmd.AddCommand(get, set)
	return cmd
}

func createInitCommand(out io.Writer) *cobra.Command {
	f := &InitFlags{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter schedctl.toml",
		Long: `Generate a starter configuration. Types: process, container,
container-api (Docker Engine probe) and sql (sqlite registry and history).

Examples:
  schedctl init --type container --name lama-scheduler --output schedctl.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error { return runInit(out, *f) },
	}
	cmd.Flags().StringVar(&f.Type, "type", "process", "template type")
	cmd.Flags().StringVar(&f.Name, "name", "scheduler", "scheduler name")
	cmd.Flags().StringVar(&f.Output, "output", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&f.Force, "force", false, "overwrite an existing output file")
	return cmd
}
