package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/loykin/schedctl"
	"github.com/loykin/schedctl/pkg/client"
)

// command runs the client-side subcommands against a daemon.
type command struct {
	out   io.Writer
	flags *GlobalFlags
}

// client builds an API client. Without --api-url the address comes from
// the [server] section of --config, else the default listen address.
func (c *command) client() (*client.Client, error) {
	cfg := client.Config{
		BaseURL:  c.flags.APIUrl,
		Timeout:  c.flags.APITimeout,
		Insecure: c.flags.Insecure,
	}
	if c.flags.CACert != "" {
		cfg.TLS = &client.TLSClientConfig{Enabled: true, CACert: c.flags.CACert}
	}
	if cfg.BaseURL == "" && c.flags.ConfigPath != "" {
		sc, err := schedctl.LoadConfig(c.flags.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
		cfg.BaseURL = baseURLFor(sc)
	}
	return client.New(cfg), nil
}

// baseURLFor turns a listen address into a client URL. Wildcard hosts are
// dialled on loopback.
func baseURLFor(cfg *schedctl.Config) string {
	scheme := "http"
	if cfg.Server.TLS != nil && cfg.Server.TLS.Enabled {
		scheme = "https"
	}
	host, port, err := net.SplitHostPort(cfg.Server.Listen)
	if err != nil {
		return client.DefaultBaseURL
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return scheme + "://" + net.JoinHostPort(host, port) + cfg.Server.BasePath
}

func (c *command) Start(ctx context.Context) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	res, err := api.StartScheduler(ctx)
	if err != nil {
		return err
	}
	if res.AlreadyRunning() {
		_, _ = fmt.Fprintf(c.out, "scheduler already running (handle %s)\n", res.Handle)
		return nil
	}
	_, _ = fmt.Fprintf(c.out, "scheduler started (handle %s)\n", res.Handle)
	return nil
}

func (c *command) Stop(ctx context.Context) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	if err := api.StopScheduler(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.out, "scheduler stopped")
	return nil
}

func (c *command) Status(ctx context.Context, detailed bool) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	if detailed {
		st, err := api.SchedulerState(ctx)
		if err != nil {
			return err
		}
		return c.printJSON(st)
	}
	running, err := api.SchedulerRunning(ctx)
	if err != nil {
		return err
	}
	if running {
		_, _ = fmt.Fprintln(c.out, "running")
	} else {
		_, _ = fmt.Fprintln(c.out, "stopped")
	}
	return nil
}

func (c *command) Logs(ctx context.Context, f LogsFlags) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	text, err := api.SchedulerLogs(ctx, f.Lines)
	if err != nil {
		return err
	}
	if text != "" {
		_, _ = fmt.Fprintln(c.out, text)
	}
	return nil
}

func (c *command) Files(ctx context.Context, f DateFlags) error {
	day, err := parseDate(f.Date)
	if err != nil {
		return err
	}
	api, err := c.client()
	if err != nil {
		return err
	}
	res, err := api.LogFiles(ctx, day)
	if err != nil {
		return err
	}
	for _, name := range res.Files {
		_, _ = fmt.Fprintln(c.out, name)
	}
	return nil
}

func (c *command) FileContent(ctx context.Context, f DateFlags) error {
	day, err := parseDate(f.Date)
	if err != nil {
		return err
	}
	api, err := c.client()
	if err != nil {
		return err
	}
	res, err := api.LogFileContent(ctx, day, f.Filename)
	if err != nil {
		return err
	}
	_, _ = io.WriteString(c.out, res.Content)
	return nil
}

func (c *command) Summary(ctx context.Context, f DateFlags) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	var sum client.Summary
	if f.Date == "" {
		sum, err = api.Summary(ctx)
	} else {
		day, perr := parseDate(f.Date)
		if perr != nil {
			return perr
		}
		sum, err = api.SummaryByDate(ctx, day)
	}
	if err != nil {
		return err
	}
	printSummary(c.out, sum)
	return nil
}

func (c *command) History(ctx context.Context, f HistoryFlags) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	events, err := api.History(ctx, f.Limit)
	if client.IsNotFound(err) {
		return fmt.Errorf("daemon has no queryable history sink configured")
	}
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tEVENT\tMODE\tHANDLE\tERROR")
	for _, e := range events {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.OccurredAt.Local().Format(time.DateTime), e.Type, e.Mode, e.Handle, e.Error)
	}
	return tw.Flush()
}

func (c *command) ConfigGet(ctx context.Context) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	raw, err := api.GetConfig(ctx)
	if err != nil {
		return err
	}
	// json.Indent keeps the served section order.
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(c.out)
	return err
}

func (c *command) ConfigSet(ctx context.Context, f ConfigSetFlags, stdin io.Reader) error {
	var (
		body []byte
		err  error
	)
	if f.File == "" || f.File == "-" {
		body, err = io.ReadAll(stdin)
	} else {
		body, err = os.ReadFile(f.File)
	}
	if err != nil {
		return fmt.Errorf("read settings document: %w", err)
	}
	if !json.Valid(body) {
		return fmt.Errorf("settings document is not valid JSON")
	}
	api, err := c.client()
	if err != nil {
		return err
	}
	if err := api.SetConfig(ctx, body); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.out, "settings replaced")
	return nil
}

func (c *command) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.out, string(b))
	return nil
}

// parseDate accepts YYYY-MM-DD; empty means today.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now(), nil
	}
	d, err := time.Parse(client.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

var summaryCategories = []string{"hardware", "network", "database", "application", "login", "logout"}

func printSummary(w io.Writer, sum client.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CATEGORY\tERROR\tSUCCESS\tWARNING")
	for _, cat := range summaryCategories {
		o := sum[cat]
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", cat, o["error"], o["success"], o["warning"])
	}
	_ = tw.Flush()
}
