package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL matches the daemon's default listen address and base path.
const DefaultBaseURL = "http://127.0.0.1:6001/api"

// DateLayout is the format of the date query parameter.
const DateLayout = "2006-01-02"

// Client provides HTTP client functionality to talk to a schedctl daemon
type Client struct {
	baseURL string
	rootURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *slog.Logger // Optional logger for client operations
	TLS      *TLSClientConfig
	Insecure bool // Skip TLS verification
}

// TLSClientConfig holds TLS configuration for client
type TLSClientConfig struct {
	Enabled    bool   // Enable TLS
	CACert     string // CA certificate file path
	ClientCert string // Client certificate file
	ClientKey  string // Client private key file
	ServerName string // Server name for verification
	SkipVerify bool   // Skip certificate verification
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 10 * time.Second,
	}
}

// DefaultTLSConfig returns default TLS client configuration
func DefaultTLSConfig() Config {
	return Config{
		BaseURL: "https://127.0.0.1:6001/api",
		Timeout: 10 * time.Second,
		TLS: &TLSClientConfig{
			Enabled: true,
		},
	}
}

// InsecureConfig returns insecure client configuration (skip TLS verification)
func InsecureConfig() Config {
	return Config{
		BaseURL:  "https://127.0.0.1:6001/api",
		Timeout:  10 * time.Second,
		Insecure: true,
	}
}

// New creates a new schedctl API client with TLS support
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	// Setup HTTP transport with TLS configuration
	transport := &http.Transport{}

	// Configure TLS if needed
	if config.TLS != nil && config.TLS.Enabled || config.Insecure {
		tlsConfig, err := setupClientTLS(config)
		if err != nil {
			config.Logger.Error("TLS setup failed", "error", err)
		} else {
			transport.TLSClientConfig = tlsConfig
		}
	}

	base := strings.TrimRight(config.BaseURL, "/")
	return &Client{
		baseURL: base,
		rootURL: rootOf(base),
		logger:  config.Logger,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// IsReachable checks if the daemon is running and reachable via /healthz.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rootURL+"/healthz", nil)
	if err != nil {
		c.logger.Debug("Failed to create request for reachability check", "error", err)
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("Daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	isReachable := resp.StatusCode == http.StatusOK
	c.logger.Debug("Daemon reachability check", "reachable", isReachable, "status", resp.StatusCode)
	return isReachable
}

// StartScheduler asks the daemon to start the scheduler. An already running
// scheduler is not an error; check StartResponse.AlreadyRunning.
func (c *Client) StartScheduler(ctx context.Context) (StartResponse, error) {
	var out StartResponse
	err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/scheduler/start", nil, &out)
	return out, err
}

// StopScheduler asks the daemon to stop the scheduler.
func (c *Client) StopScheduler(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodPost, c.baseURL+"/scheduler/stop", nil, nil)
}

// SchedulerRunning reports the daemon's liveness verdict.
func (c *Client) SchedulerRunning(ctx context.Context) (bool, error) {
	var out struct {
		Running bool `json:"running"`
	}
	err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/scheduler/status", nil, &out)
	return out.Running, err
}

// SchedulerState returns the detailed lifecycle view.
func (c *Client) SchedulerState(ctx context.Context) (SchedulerState, error) {
	var out SchedulerState
	err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/scheduler/state", nil, &out)
	return out, err
}

// SchedulerLogs returns the last lines of the scheduler log joined by
// newlines. lines <= 0 uses the daemon default.
func (c *Client) SchedulerLogs(ctx context.Context, lines int) (string, error) {
	u := c.baseURL + "/scheduler/logs"
	if lines > 0 {
		u += "?lines=" + strconv.Itoa(lines)
	}
	var out struct {
		Log string `json:"log"`
	}
	err := c.doRequest(ctx, http.MethodGet, u, nil, &out)
	return out.Log, err
}

// LogFiles lists the log files recorded for date.
func (c *Client) LogFiles(ctx context.Context, date time.Time) (LogFiles, error) {
	q := url.Values{"date": {date.Format(DateLayout)}}
	var out LogFiles
	err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/log-files?"+q.Encode(), nil, &out)
	return out, err
}

// LogFileContent fetches one log file for date.
func (c *Client) LogFileContent(ctx context.Context, date time.Time, filename string) (LogFileContent, error) {
	q := url.Values{"date": {date.Format(DateLayout)}, "filename": {filename}}
	var out LogFileContent
	err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/log-file-content?"+q.Encode(), nil, &out)
	return out, err
}

// Summary returns the category/outcome counts of the service log. On a
// missing log the zeroed summary is returned together with the error.
func (c *Client) Summary(ctx context.Context) (Summary, error) {
	return c.summary(ctx, c.baseURL+"/logs/summary")
}

// SummaryByDate aggregates the counts across all log files of date.
func (c *Client) SummaryByDate(ctx context.Context, date time.Time) (Summary, error) {
	q := url.Values{"date": {date.Format(DateLayout)}}
	return c.summary(ctx, c.baseURL+"/logs/summary-by-date?"+q.Encode())
}

// History lists recent lifecycle events, newest first. The daemon answers
// 404 when no queryable history sink is configured; see IsNotFound.
func (c *Client) History(ctx context.Context, limit int) ([]HistoryEvent, error) {
	u := c.baseURL + "/scheduler/history"
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	var out historyResponse
	if err := c.doRequest(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (c *Client) summary(ctx context.Context, u string) (Summary, error) {
	var out summaryResponse
	err := c.doRequest(ctx, http.MethodGet, u, nil, &out)
	return out.Summary, err
}

// GetConfig returns the settings document as raw JSON. Section and key
// order is preserved as served.
func (c *Client) GetConfig(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/config", nil, &out)
	return out, err
}

// SetConfig replaces the whole settings document. doc may be raw JSON
// ([]byte or json.RawMessage) or any value that marshals to a JSON object
// of objects.
func (c *Client) SetConfig(ctx context.Context, doc any) error {
	var body []byte
	switch v := doc.(type) {
	case []byte:
		body = v
	case json.RawMessage:
		body = v
	default:
		b, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		body = b
	}
	return c.doRequest(ctx, http.MethodPost, c.baseURL+"/config", body, nil)
}

func setupClientTLS(config Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	// Handle insecure mode (skip verification)
	if config.Insecure {
		tlsConfig.InsecureSkipVerify = true
		return tlsConfig, nil
	}

	// Configure TLS settings
	if config.TLS != nil {
		// Skip verification if requested
		if config.TLS.SkipVerify {
			tlsConfig.InsecureSkipVerify = true
		}

		// Set server name for verification
		if config.TLS.ServerName != "" {
			tlsConfig.ServerName = config.TLS.ServerName
		}

		// Load CA certificate if provided
		if config.TLS.CACert != "" {
			if err := loadCACert(tlsConfig, config.TLS.CACert); err != nil {
				return nil, fmt.Errorf("failed to load CA certificate: %w", err)
			}
		}

		// Load client certificate if provided
		if config.TLS.ClientCert != "" && config.TLS.ClientKey != "" {
			cert, err := tls.LoadX509KeyPair(config.TLS.ClientCert, config.TLS.ClientKey)
			if err != nil {
				return nil, fmt.Errorf("failed to load client certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
	}

	return tlsConfig, nil
}

// loadCACert loads CA certificate from file and adds it to TLS config
func loadCACert(tlsConfig *tls.Config, caCertPath string) error {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return fmt.Errorf("failed to parse CA certificate")
	}

	tlsConfig.RootCAs = caCertPool
	return nil
}

// doRequest performs an HTTP request, decodes a 2xx body into out (when
// non-nil) and turns anything else into *APIError. Error bodies that still
// carry a payload (summaries) are decoded into out as well.
func (c *Client) doRequest(ctx context.Context, method, url string, body []byte, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "url", url)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 == 2 {
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return c.handleErrorResponse(resp.StatusCode, data, out)
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(status int, data []byte, out any) error {
	var errorResp ErrorResponse
	if err := json.Unmarshal(data, &errorResp); err != nil {
		c.logger.Error("Failed to decode error response", "status", status)
		return &APIError{StatusCode: status}
	}
	if out != nil {
		_ = json.Unmarshal(data, out)
	}

	c.logger.Error("API request failed", "error", errorResp.Error, "status", status)
	return &APIError{StatusCode: status, Message: errorResp.Error}
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// rootOf strips the path from a base URL, leaving scheme and host.
func rootOf(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return base
	}
	return u.Scheme + "://" + u.Host
}
